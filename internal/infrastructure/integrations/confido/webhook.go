package confido

import (
	"encoding/json"
	"time"
)

// Webhook event types that settle an invoice
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventInvoicePaid      = "invoice.paid"
)

// WebhookEvent is the body Confido POSTs on payment activity
type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		PaymentLinkID string     `json:"paymentLinkId"`
		Reference     string     `json:"reference"`
		Amount        int64      `json:"amount"`
		PaidAt        *time.Time `json:"paidAt"`
	} `json:"data"`
}

// IsPayment reports whether the event marks an invoice as paid
func (e WebhookEvent) IsPayment() bool {
	return e.Type == EventPaymentSucceeded || e.Type == EventInvoicePaid
}

// ParseWebhook decodes a webhook body
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var ev WebhookEvent
	err := json.Unmarshal(body, &ev)
	return ev, err
}
