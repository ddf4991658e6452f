// Package webhook verifies and decodes payment processor notifications.
//
// The signature header has the form "t=<unix seconds>,v1=<hex>", where the hex
// value is HMAC-SHA256(secret, "<t>.<raw body>"). Several v1 entries may be
// present during secret rotation; any match is accepted.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"plantcare/internal/models"
)

// SignatureHeader carries the signature of the raw request body.
const SignatureHeader = "Payment-Signature"

// DefaultTolerance bounds how old a signed timestamp may be.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingSignature    = errors.New("webhook: missing signature")
	ErrInvalidSignature    = errors.New("webhook: signature mismatch")
	ErrTimestampOutOfRange = errors.New("webhook: timestamp outside tolerance")
	ErrMalformedHeader     = errors.New("webhook: malformed signature header")
)

// Sign computes the header value for payload at ts.
func Sign(payload []byte, secret string, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + computeSignature(payload, secret, t)
}

func computeSignature(payload []byte, secret, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks header against payload. tolerance <= 0 disables the timestamp check.
func Verify(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}
	var (
		ts   string
		sigs []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return ErrMalformedHeader
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrMalformedHeader)
	}

	want := []byte(computeSignature(payload, secret, ts))
	matched := false
	for _, s := range sigs {
		if hmac.Equal(want, []byte(strings.ToLower(s))) {
			matched = true
			break
		}
	}
	if !matched {
		return ErrInvalidSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return ErrTimestampOutOfRange
		}
	}
	return nil
}

// Envelope is the outer notification document sent by the payment processor.
type Envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the object of a checkout.session.completed notification.
type CheckoutSession struct {
	ID        string            `json:"id"`
	Mode      string            `json:"mode"`
	Customer  string            `json:"customer"`
	Metadata  map[string]string `json:"metadata"`
	LineItems []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
		Price    struct {
			Product struct {
				ID       string            `json:"id"`
				Metadata map[string]string `json:"metadata"`
			} `json:"product"`
		} `json:"price"`
	} `json:"line_items"`
}

// DecodeEnvelope parses the outer notification.
func DecodeEnvelope(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, errors.New("decode webhook envelope: missing id or type")
	}
	return &env, nil
}

// PurchaseFromCheckout converts a checkout.session.completed envelope into a PurchaseEvent.
// The listing id of each line item comes from its product's "listing_id" metadata.
func PurchaseFromCheckout(env *Envelope, receivedAt time.Time) (*models.PurchaseEvent, error) {
	var s CheckoutSession
	if err := json.Unmarshal(env.Data.Object, &s); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	ev := &models.PurchaseEvent{
		ID:         env.ID,
		Type:       env.Type,
		SessionID:  s.ID,
		UserID:     s.Metadata["user_id"],
		Mode:       s.Mode,
		ReceivedAt: receivedAt,
	}
	for _, li := range s.LineItems {
		ev.LineItems = append(ev.LineItems, models.LineItem{
			ID:        li.ID,
			ProductID: li.Price.Product.ID,
			ListingID: li.Price.Product.Metadata["listing_id"],
			Quantity:  li.Quantity,
		})
	}
	return ev, nil
}
