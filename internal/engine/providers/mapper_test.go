package providers

import (
	"errors"
	"net/http"
	"testing"
)

func headerWith(name, value string) http.Header {
	h := http.Header{}
	h.Set(name, value)
	return h
}

func TestStripeMapper_Map(t *testing.T) {
	m := &StripeMapper{}

	tests := []struct {
		name      string
		header    http.Header
		body      string
		wantEvent string
		wantErr   error
	}{
		{
			name:      "invoice paid",
			header:    headerWith("stripe-signature", "t=1,v1=abc"),
			body:      `{"type":"invoice.paid","data":{"object":{"id":"in_123","amount_due":5000}}}`,
			wantEvent: "invoice.paid",
		},
		{
			name:      "payment succeeded",
			header:    headerWith("stripe-signature", "sig"),
			body:      `{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`,
			wantEvent: "payment.received",
		},
		{
			name:    "missing signature header",
			header:  http.Header{},
			body:    `{"type":"invoice.paid","data":{"object":{}}}`,
			wantErr: ErrMissingSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Map(tt.header, []byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Map() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Map() error = %v", err)
			}
			if got.Event != tt.wantEvent {
				t.Errorf("Map() event = %s, want %s", got.Event, tt.wantEvent)
			}
		})
	}
}

func TestStripeMapper_UnmappedEvent(t *testing.T) {
	m := &StripeMapper{}
	_, err := m.Map(headerWith("stripe-signature", "sig"), []byte(`{"type":"price.created","data":{"object":{}}}`))

	var unmapped *UnmappedEventError
	if !errors.As(err, &unmapped) {
		t.Fatalf("Map() error = %v, want UnmappedEventError", err)
	}
	if unmapped.Provider != "stripe" || unmapped.ProviderEvent != "price.created" {
		t.Errorf("unexpected error detail: %+v", unmapped)
	}
}

func TestStripeMapper_MalformedPayload(t *testing.T) {
	m := &StripeMapper{}
	if _, err := m.Map(headerWith("stripe-signature", "sig"), []byte(`{not json`)); err == nil {
		t.Fatalf("Map() accepted malformed payload")
	}
}

func TestQuickBooksMapper_Map(t *testing.T) {
	m := &QuickBooksMapper{}

	body := `{"eventNotifications":[{"realmId":"9341","dataChangeEvent":{"entities":[
		{"name":"Payment","id":"145","operation":"Create"},
		{"name":"Invoice","id":"146","operation":"Create"}
	]}}]}`

	got, err := m.Map(headerWith("intuit-signature", "sig"), []byte(body))
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if got.Event != "payment.received" {
		t.Errorf("Map() event = %s, want payment.received", got.Event)
	}
	// Only the first entity of the batch is mapped.
	if got.Data["id"] != "145" {
		t.Errorf("Map() data id = %v, want 145", got.Data["id"])
	}
	if got.Data["realm_id"] != "9341" {
		t.Errorf("Map() realm_id = %v, want 9341", got.Data["realm_id"])
	}
}

func TestQuickBooksMapper_EmptyNotification(t *testing.T) {
	m := &QuickBooksMapper{}
	_, err := m.Map(headerWith("intuit-signature", "sig"), []byte(`{"eventNotifications":[]}`))

	var unmapped *UnmappedEventError
	if !errors.As(err, &unmapped) {
		t.Fatalf("Map() error = %v, want UnmappedEventError", err)
	}
}

func TestSalesforceMapper_Map(t *testing.T) {
	m := &SalesforceMapper{}

	got, err := m.Map(
		headerWith("x-salesforce-signature", "sig"),
		[]byte(`{"sobjectType":"Account","changeType":"CREATE","record":{"Id":"001xx","Name":"Acme"}}`),
	)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if got.Event != "customer.created" {
		t.Errorf("Map() event = %s, want customer.created", got.Event)
	}
	if got.Data["Name"] != "Acme" {
		t.Errorf("Map() data = %v", got.Data)
	}
}

func TestHubSpotMapper_Map(t *testing.T) {
	m := &HubSpotMapper{}

	got, err := m.Map(
		headerWith("x-hubspot-signature", "sig"),
		[]byte(`[{"subscriptionType":"deal.creation","objectId":42,"portalId":7}]`),
	)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if got.Event != "job.created" {
		t.Errorf("Map() event = %s, want job.created", got.Event)
	}
	if got.Data["object_id"] != "42" {
		t.Errorf("Map() object_id = %v, want 42", got.Data["object_id"])
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	for _, provider := range []string{"stripe", "quickbooks", "salesforce", "hubspot"} {
		m, ok := r.Get(provider)
		if !ok {
			t.Fatalf("registry missing %s", provider)
		}
		if m.Provider() != provider {
			t.Errorf("mapper provider = %s, want %s", m.Provider(), provider)
		}
		if m.SignatureHeader() == "" {
			t.Errorf("%s mapper has no signature header", provider)
		}
	}

	if _, ok := r.Get("fax"); ok {
		t.Errorf("registry returned a mapper for an unknown provider")
	}
}
