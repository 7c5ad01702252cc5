package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"fieldhub/internal/engine/events"
)

// HubSpotMapper normalizes HubSpot subscription events. HubSpot posts an
// array of events per call; only the first is mapped, matching the
// QuickBooks limitation.
type HubSpotMapper struct{}

var hubspotEvents = map[string]string{
	"contact.creation":       events.CustomerCreated,
	"contact.propertyChange": events.CustomerUpdated,
	"contact.deletion":       events.CustomerDeleted,
	"deal.creation":          events.JobCreated,
	"deal.propertyChange":    events.JobUpdated,
}

func (m *HubSpotMapper) Provider() string        { return "hubspot" }
func (m *HubSpotMapper) SignatureHeader() string { return "x-hubspot-signature" }

func (m *HubSpotMapper) Map(header http.Header, body []byte) (*InboundEvent, error) {
	if err := requireSignature(header, m.SignatureHeader()); err != nil {
		return nil, err
	}

	var payload []struct {
		SubscriptionType string `json:"subscriptionType"`
		ObjectID         int64  `json:"objectId"`
		PortalID         int64  `json:"portalId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed hubspot payload: %w", err)
	}
	if len(payload) == 0 {
		return nil, &UnmappedEventError{Provider: m.Provider(), ProviderEvent: "(empty batch)"}
	}

	first := payload[0]
	canonical, ok := hubspotEvents[first.SubscriptionType]
	if !ok {
		return nil, &UnmappedEventError{Provider: m.Provider(), ProviderEvent: first.SubscriptionType}
	}

	return &InboundEvent{
		Event: canonical,
		Data: map[string]interface{}{
			"object_id": strconv.FormatInt(first.ObjectID, 10),
			"portal_id": strconv.FormatInt(first.PortalID, 10),
		},
	}, nil
}
