package providers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"fieldhub/internal/engine/events"
)

// StripeMapper normalizes Stripe webhook payloads.
type StripeMapper struct{}

var stripeEvents = map[string]string{
	"customer.created":              events.CustomerCreated,
	"customer.updated":              events.CustomerUpdated,
	"customer.deleted":              events.CustomerDeleted,
	"invoice.created":               events.InvoiceCreated,
	"invoice.finalized":             events.InvoiceSent,
	"invoice.paid":                  events.InvoicePaid,
	"invoice.payment_failed":        events.PaymentFailed,
	"payment_intent.succeeded":      events.PaymentReceived,
	"payment_intent.payment_failed": events.PaymentFailed,
	"charge.refunded":               events.PaymentRefunded,
}

func (m *StripeMapper) Provider() string        { return "stripe" }
func (m *StripeMapper) SignatureHeader() string { return "stripe-signature" }

func (m *StripeMapper) Map(header http.Header, body []byte) (*InboundEvent, error) {
	if err := requireSignature(header, m.SignatureHeader()); err != nil {
		return nil, err
	}

	var payload struct {
		Type string `json:"type"`
		Data struct {
			Object map[string]interface{} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed stripe payload: %w", err)
	}

	canonical, ok := stripeEvents[payload.Type]
	if !ok {
		return nil, &UnmappedEventError{Provider: m.Provider(), ProviderEvent: payload.Type}
	}

	return &InboundEvent{Event: canonical, Data: payload.Data.Object}, nil
}
