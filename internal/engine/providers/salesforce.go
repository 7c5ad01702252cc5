package providers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"fieldhub/internal/engine/events"
)

// SalesforceMapper normalizes Salesforce change notifications.
type SalesforceMapper struct{}

var salesforceEvents = map[string]string{
	"Account/CREATE":     events.CustomerCreated,
	"Account/UPDATE":     events.CustomerUpdated,
	"Account/DELETE":     events.CustomerDeleted,
	"Opportunity/CREATE": events.JobCreated,
	"Opportunity/UPDATE": events.JobUpdated,
	"Lead/CREATE":        events.ReferralCreated,
	"Lead/CONVERT":       events.ReferralConverted,
}

func (m *SalesforceMapper) Provider() string        { return "salesforce" }
func (m *SalesforceMapper) SignatureHeader() string { return "x-salesforce-signature" }

func (m *SalesforceMapper) Map(header http.Header, body []byte) (*InboundEvent, error) {
	if err := requireSignature(header, m.SignatureHeader()); err != nil {
		return nil, err
	}

	var payload struct {
		SObjectType string                 `json:"sobjectType"`
		ChangeType  string                 `json:"changeType"`
		Record      map[string]interface{} `json:"record"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed salesforce payload: %w", err)
	}

	key := payload.SObjectType + "/" + payload.ChangeType
	canonical, ok := salesforceEvents[key]
	if !ok {
		return nil, &UnmappedEventError{Provider: m.Provider(), ProviderEvent: key}
	}

	return &InboundEvent{Event: canonical, Data: payload.Record}, nil
}
