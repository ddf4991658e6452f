package models

import "time"

// EventCheckoutCompleted is the only payment event type that generates care tasks.
const EventCheckoutCompleted = "checkout.session.completed"

// PurchaseEvent is the message payload for Kafka: one completed checkout.
type PurchaseEvent struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	SessionID  string     `json:"session_id"`
	UserID     string     `json:"user_id"`
	Mode       string     `json:"mode"` // payment, subscription
	LineItems  []LineItem `json:"line_items"`
	ReceivedAt time.Time  `json:"received_at"`
}

// LineItem is one purchased listing within a checkout.
type LineItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	ListingID string `json:"listing_id,omitempty"`
	Quantity  int    `json:"quantity"`
}
