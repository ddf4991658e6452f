package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantcare/internal/caregen"
	"plantcare/internal/models"
	"plantcare/internal/webhook"
)

const testSecret = "whsec_test"

var webhookNow = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

const checkoutBody = `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
  "id":"cs_1","mode":"payment","metadata":{"user_id":"user-1"},
  "line_items":[{"id":"li_1","quantity":1,"price":{"product":{"id":"prod_1","metadata":{"listing_id":"fern"}}}}]}}}`

type recordingProcessor struct {
	mu     sync.Mutex
	events []models.PurchaseEvent
}

func (r *recordingProcessor) ProcessPurchase(_ context.Context, ev models.PurchaseEvent) caregen.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return caregen.Report{EventID: ev.ID}
}

type publisher struct {
	err    error
	events []*models.PurchaseEvent
}

func (p *publisher) publish(_ context.Context, ev *models.PurchaseEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func newWebhook(pub *publisher, proc *recordingProcessor) *PaymentWebhook {
	h := &PaymentWebhook{
		Secret:    testSecret,
		Tolerance: webhook.DefaultTolerance,
		Processor: proc,
		Now:       func() time.Time { return webhookNow },
	}
	if pub != nil {
		h.Publish = pub.publish
	}
	return h
}

func postWebhook(t *testing.T, h *PaymentWebhook, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.POST("/webhooks/payment", h.Handle)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	h.Wait()
	return w
}

func sign(body string) string {
	return webhook.Sign([]byte(body), testSecret, webhookNow)
}

func TestWebhook_QueuesCheckout(t *testing.T) {
	pub := &publisher{}
	proc := &recordingProcessor{}
	h := newWebhook(pub, proc)

	w := postWebhook(t, h, checkoutBody, sign(checkoutBody))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, webhookNow, ev.ReceivedAt)
	require.Len(t, ev.LineItems, 1)
	assert.Equal(t, "fern", ev.LineItems[0].ListingID)
	assert.Empty(t, proc.events, "queued events are not processed inline")
}

func TestWebhook_PublishFailureProcessesInline(t *testing.T) {
	pub := &publisher{err: errors.New("broker down")}
	proc := &recordingProcessor{}
	h := newWebhook(pub, proc)

	w := postWebhook(t, h, checkoutBody, sign(checkoutBody))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, proc.events, 1)
	assert.Equal(t, "evt_1", proc.events[0].ID)
}

func TestWebhook_NoQueueProcessesInline(t *testing.T) {
	proc := &recordingProcessor{}
	h := newWebhook(nil, proc)

	w := postWebhook(t, h, checkoutBody, sign(checkoutBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, proc.events, 1)
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	pub := &publisher{}
	h := newWebhook(pub, &recordingProcessor{})

	w := postWebhook(t, h, checkoutBody, "t=1,v1=00")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postWebhook(t, h, checkoutBody, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, pub.events)
}

func TestWebhook_MissingSecretIsServerError(t *testing.T) {
	h := newWebhook(&publisher{}, &recordingProcessor{})
	h.Secret = ""

	w := postWebhook(t, h, checkoutBody, sign(checkoutBody))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhook_AcknowledgesWithoutGeneration(t *testing.T) {
	cases := map[string]string{
		"other event type": `{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`,
		"no user id":       `{"id":"evt_3","type":"checkout.session.completed","data":{"object":{"id":"cs_2","line_items":[{"id":"li"}]}}}`,
		"no line items":    `{"id":"evt_4","type":"checkout.session.completed","data":{"object":{"id":"cs_3","metadata":{"user_id":"u"}}}}`,
		"bad session":      `{"id":"evt_5","type":"checkout.session.completed","data":{"object":"oops"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			pub := &publisher{}
			proc := &recordingProcessor{}
			h := newWebhook(pub, proc)

			w := postWebhook(t, h, body, sign(body))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, pub.events)
			assert.Empty(t, proc.events)
		})
	}
}

func TestWebhook_InvalidEnvelope(t *testing.T) {
	body := `{"type":"checkout.session.completed"}`
	h := newWebhook(&publisher{}, &recordingProcessor{})

	w := postWebhook(t, h, body, sign(body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_GenerationFailureStillAcknowledged(t *testing.T) {
	listings := failingListings{}
	gen := caregen.New(listings, nil, nil)
	h := &PaymentWebhook{
		Secret:    testSecret,
		Tolerance: webhook.DefaultTolerance,
		Processor: gen,
		Now:       func() time.Time { return webhookNow },
	}

	w := postWebhook(t, h, checkoutBody, sign(checkoutBody))

	assert.Equal(t, http.StatusOK, w.Code)
}

type failingListings struct{}

func (failingListings) GetListingCare(context.Context, string) (*models.Listing, error) {
	return nil, errors.New("db down")
}

func (failingListings) UpdateCareTips(context.Context, string, []string) error {
	return errors.New("db down")
}
