package providers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"fieldhub/internal/engine/events"
)

// QuickBooksMapper normalizes QuickBooks change notifications.
//
// QuickBooks batches several changed entities per call; only the first
// entity of the first notification is mapped. Known limitation.
type QuickBooksMapper struct{}

var quickbooksEvents = map[string]string{
	"Customer/Create": events.CustomerCreated,
	"Customer/Update": events.CustomerUpdated,
	"Customer/Delete": events.CustomerDeleted,
	"Invoice/Create":  events.InvoiceCreated,
	"Invoice/Emailed": events.InvoiceSent,
	"Payment/Create":  events.PaymentReceived,
	"Payment/Void":    events.PaymentRefunded,
}

func (m *QuickBooksMapper) Provider() string        { return "quickbooks" }
func (m *QuickBooksMapper) SignatureHeader() string { return "intuit-signature" }

func (m *QuickBooksMapper) Map(header http.Header, body []byte) (*InboundEvent, error) {
	if err := requireSignature(header, m.SignatureHeader()); err != nil {
		return nil, err
	}

	var payload struct {
		EventNotifications []struct {
			RealmID         string `json:"realmId"`
			DataChangeEvent struct {
				Entities []struct {
					Name      string `json:"name"`
					ID        string `json:"id"`
					Operation string `json:"operation"`
				} `json:"entities"`
			} `json:"dataChangeEvent"`
		} `json:"eventNotifications"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed quickbooks payload: %w", err)
	}

	if len(payload.EventNotifications) == 0 || len(payload.EventNotifications[0].DataChangeEvent.Entities) == 0 {
		return nil, &UnmappedEventError{Provider: m.Provider(), ProviderEvent: "(empty notification)"}
	}

	notification := payload.EventNotifications[0]
	entity := notification.DataChangeEvent.Entities[0]
	key := entity.Name + "/" + entity.Operation

	canonical, ok := quickbooksEvents[key]
	if !ok {
		return nil, &UnmappedEventError{Provider: m.Provider(), ProviderEvent: key}
	}

	return &InboundEvent{
		Event: canonical,
		Data: map[string]interface{}{
			"entity":    entity.Name,
			"id":        entity.ID,
			"operation": entity.Operation,
			"realm_id":  notification.RealmID,
		},
	}, nil
}
