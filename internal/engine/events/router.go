package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Handler processes canonical events for one domain category. Handlers are
// registered once at startup; the router never needs editing to add one.
type Handler interface {
	Handle(ctx context.Context, event string, data map[string]interface{}) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event string, data map[string]interface{}) error

func (f HandlerFunc) Handle(ctx context.Context, event string, data map[string]interface{}) error {
	return f(ctx, event, data)
}

type Router struct {
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

func (r *Router) Register(category string, h Handler) {
	r.handlers[category] = h
}

// Route dispatches the event to the handler registered for its category.
// Unknown events are logged and dropped; handler errors are logged, never
// propagated, so a slow or broken handler cannot fail the inbound HTTP path.
func (r *Router) Route(ctx context.Context, event string, data map[string]interface{}) {
	handler, ok := r.handlers[Category(event)]
	if !ok {
		log.Warn().Str("event", event).Msg("no handler registered for event")
		return
	}

	if err := handler.Handle(ctx, event, data); err != nil {
		log.Error().Err(err).Str("event", event).Msg("event handler failed")
	}
}
