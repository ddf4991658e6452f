package controller

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"plantcare/internal/caregen"
	"plantcare/internal/models"
	"plantcare/internal/webhook"
	"plantcare/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	maxWebhookBody = 1 << 20
	inlineTimeout  = 30 * time.Second
)

// PurchaseProcessor runs care generation in-process when the queue is unavailable.
type PurchaseProcessor interface {
	ProcessPurchase(ctx context.Context, ev models.PurchaseEvent) caregen.Report
}

// PaymentWebhook receives payment processor notifications.
type PaymentWebhook struct {
	Secret    string
	Tolerance time.Duration
	// Publish queues the event for the worker; an error makes the handler process it inline.
	Publish   func(ctx context.Context, ev *models.PurchaseEvent) error
	Processor PurchaseProcessor
	Now       func() time.Time

	inline sync.WaitGroup
}

func (h *PaymentWebhook) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Handle verifies the notification and hands completed checkouts to care generation.
// Once the signature is valid the response is always 200: care generation never fails the payment flow.
func (h *PaymentWebhook) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}
	if h.Secret == "" {
		logger.Error(ctx, "PAYMENT_WEBHOOK_SECRET is not set")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfiguration"})
		return
	}
	if err := webhook.Verify(body, c.GetHeader(webhook.SignatureHeader), h.Secret, h.now(), h.Tolerance); err != nil {
		logger.Warn(ctx, "Webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook Error"})
		return
	}
	env, err := webhook.DecodeEnvelope(body)
	if err != nil {
		logger.Warn(ctx, "Webhook payload rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	ctx = logger.With(ctx, "event_id", env.ID, "event_type", env.Type)

	if env.Type == models.EventCheckoutCompleted {
		h.checkoutCompleted(ctx, env)
	} else {
		logger.Info(ctx, "Webhook event acknowledged without action")
	}
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func (h *PaymentWebhook) checkoutCompleted(ctx context.Context, env *webhook.Envelope) {
	ev, err := webhook.PurchaseFromCheckout(env, h.now())
	if err != nil {
		logger.Error(ctx, "Checkout session could not be decoded", "error", err)
		return
	}
	if ev.UserID == "" {
		logger.Error(ctx, "User ID not found in session metadata", "session_id", ev.SessionID)
		return
	}
	if len(ev.LineItems) == 0 {
		logger.Error(ctx, "No line items found for checkout session", "session_id", ev.SessionID)
		return
	}

	if h.Publish != nil {
		err := h.Publish(ctx, ev)
		if err == nil {
			logger.Info(ctx, "Purchase queued for care generation", "line_items", len(ev.LineItems))
			return
		}
		logger.Warn(ctx, "Purchase publish failed; generating care tasks inline", "error", err)
	}
	h.processInline(ctx, *ev)
}

// processInline runs generation detached from the request so the acknowledgement is not delayed.
func (h *PaymentWebhook) processInline(ctx context.Context, ev models.PurchaseEvent) {
	if h.Processor == nil {
		logger.Error(ctx, "No care processor configured; purchase dropped")
		return
	}
	bg, cancel := context.WithTimeout(logger.WithContext(context.Background(), logger.FromContext(ctx)), inlineTimeout)
	h.inline.Add(1)
	go func() {
		defer h.inline.Done()
		defer cancel()
		h.Processor.ProcessPurchase(bg, ev)
	}()
}

// Wait blocks until inline processing started by Handle has finished.
func (h *PaymentWebhook) Wait() {
	h.inline.Wait()
}
