package events

import (
	"context"
	"errors"
	"testing"
)

func TestCategory(t *testing.T) {
	cases := []struct {
		event    string
		expected string
	}{
		{InvoicePaid, "invoice"},
		{CustomerCreated, "customer"},
		{JobCompleted, "job"},
		{PaymentRefunded, "payment"},
		{ReferralConverted, "referral"},
		{"ping", "ping"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Category(tc.event); got != tc.expected {
			t.Errorf("Category(%q) = %q, expected %q", tc.event, got, tc.expected)
		}
	}
}

func TestRoute_DispatchesByCategory(t *testing.T) {
	router := NewRouter()

	var invoiceEvents, paymentEvents []string
	router.Register(CategoryInvoice, HandlerFunc(func(ctx context.Context, event string, data map[string]interface{}) error {
		invoiceEvents = append(invoiceEvents, event)
		return nil
	}))
	router.Register(CategoryPayment, HandlerFunc(func(ctx context.Context, event string, data map[string]interface{}) error {
		paymentEvents = append(paymentEvents, event)
		return nil
	}))

	ctx := context.Background()
	router.Route(ctx, InvoicePaid, nil)
	router.Route(ctx, InvoiceCreated, nil)
	router.Route(ctx, PaymentReceived, nil)

	if len(invoiceEvents) != 2 {
		t.Errorf("Expected 2 invoice events, got %v", invoiceEvents)
	}
	if len(paymentEvents) != 1 || paymentEvents[0] != PaymentReceived {
		t.Errorf("Expected [payment.received], got %v", paymentEvents)
	}
}

func TestRoute_UnknownEventDropped(t *testing.T) {
	router := NewRouter()

	called := false
	router.Register(CategoryInvoice, HandlerFunc(func(ctx context.Context, event string, data map[string]interface{}) error {
		called = true
		return nil
	}))

	// No handler for this category; must not panic or cross-dispatch.
	router.Route(context.Background(), "subscription.renewed", nil)
	if called {
		t.Error("Unknown event must not reach unrelated handlers")
	}
}

func TestRoute_HandlerErrorNotPropagated(t *testing.T) {
	router := NewRouter()
	router.Register(CategoryCustomer, HandlerFunc(func(ctx context.Context, event string, data map[string]interface{}) error {
		return errors.New("downstream unavailable")
	}))

	// Route swallows handler errors; reaching the next line is the assertion.
	router.Route(context.Background(), CustomerUpdated, nil)
}

func TestRegisterDomainHandlers_CoversVocabulary(t *testing.T) {
	router := NewRouter()
	RegisterDomainHandlers(router, nil)

	for _, event := range []string{
		CustomerCreated, CustomerUpdated, CustomerDeleted,
		JobCreated, JobUpdated, JobCompleted, JobCancelled,
		InvoiceCreated, InvoiceSent, InvoicePaid, InvoiceOverdue,
		PaymentReceived, PaymentFailed, PaymentRefunded,
		ReferralCreated, ReferralConverted,
	} {
		if _, ok := router.handlers[Category(event)]; !ok {
			t.Errorf("No handler registered for %s", event)
		}
	}
}
