// Sign-webhook prints a signed checkout.session.completed notification as a curl command.
// Run: go run ./scripts/sign-webhook --user buyer-1 --listing fern-structured --listing cactus-legacy
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"plantcare/internal/models"
	"plantcare/internal/webhook"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

type product struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

type lineItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Price    struct {
		Product product `json:"product"`
	} `json:"price"`
}

func main() {
	user := pflag.String("user", "test-user", "buyer user id placed in session metadata")
	listings := pflag.StringSlice("listing", []string{"seed-structured"}, "listing id per line item (repeatable)")
	eventID := pflag.String("event", "", "event id (random when empty)")
	url := pflag.String("url", "http://localhost:8080/webhooks/payment", "webhook endpoint")
	pflag.Parse()

	secret := os.Getenv("PAYMENT_WEBHOOK_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "PAYMENT_WEBHOOK_SECRET not set")
		os.Exit(1)
	}
	if *eventID == "" {
		*eventID = "evt_" + uuid.NewString()
	}

	items := make([]lineItem, 0, len(*listings))
	for i, id := range *listings {
		var li lineItem
		li.ID = fmt.Sprintf("li_%d", i+1)
		li.Quantity = 1
		li.Price.Product = product{ID: "prod_" + id, Metadata: map[string]string{"listing_id": id}}
		items = append(items, li)
	}
	body, err := json.Marshal(map[string]interface{}{
		"id":   *eventID,
		"type": models.EventCheckoutCompleted,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":         "cs_" + uuid.NewString(),
				"mode":       "payment",
				"metadata":   map[string]string{"user_id": *user},
				"line_items": items,
			},
		},
	})
	if err != nil {
		panic(err)
	}

	sig := webhook.Sign(body, secret, time.Now())
	fmt.Printf("curl -X POST %s -H 'Content-Type: application/json' -H '%s: %s' -d '%s'\n",
		*url, webhook.SignatureHeader, sig, body)
}
