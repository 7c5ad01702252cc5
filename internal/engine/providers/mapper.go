package providers

import (
	"errors"
	"fmt"
	"net/http"
)

// InboundEvent is a provider webhook normalized to the canonical vocabulary.
type InboundEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// ErrMissingSignature is returned when the provider's signature header is
// absent. Mapping never starts without it; the caller still has to verify
// the signature value itself against the endpoint secret.
var ErrMissingSignature = errors.New("missing provider signature header")

// UnmappedEventError marks a provider event with no canonical equivalent.
// Callers decide whether to log-and-ignore or escalate.
type UnmappedEventError struct {
	Provider      string
	ProviderEvent string
}

func (e *UnmappedEventError) Error() string {
	return fmt.Sprintf("unmapped %s event: %s", e.Provider, e.ProviderEvent)
}

// Mapper translates one provider's inbound webhook shape.
type Mapper interface {
	Provider() string
	SignatureHeader() string
	Map(header http.Header, body []byte) (*InboundEvent, error)
}

// Registry holds mappers keyed by provider name. Adding a provider means
// registering a mapper, not editing a dispatch function.
type Registry struct {
	mappers map[string]Mapper
}

func NewRegistry() *Registry {
	return &Registry{mappers: make(map[string]Mapper)}
}

func (r *Registry) Register(m Mapper) {
	r.mappers[m.Provider()] = m
}

func (r *Registry) Get(provider string) (Mapper, bool) {
	m, ok := r.mappers[provider]
	return m, ok
}

func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.mappers))
	for name := range r.mappers {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry returns a registry with all built-in provider mappers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&StripeMapper{})
	r.Register(&QuickBooksMapper{})
	r.Register(&SalesforceMapper{})
	r.Register(&HubSpotMapper{})
	return r
}

func requireSignature(header http.Header, name string) error {
	if header.Get(name) == "" {
		return ErrMissingSignature
	}
	return nil
}
