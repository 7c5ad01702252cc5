package events

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"fieldhub/internal/platform/models"
	"fieldhub/internal/platform/repositories"
)

// domainHandler records inbound lifecycle events for one category on the
// integration audit trail.
type domainHandler struct {
	category string
	logs     *repositories.LogRepository
}

func (h *domainHandler) Handle(ctx context.Context, event string, data map[string]interface{}) error {
	log.Info().Str("event", event).Str("category", h.category).Msg("handling domain event")

	integrationID, _ := data["integration_id"].(string)
	if integrationID == "" || h.logs == nil {
		return nil
	}

	return h.logs.Append(&models.IntegrationLog{
		IntegrationID: integrationID,
		Level:         models.LogLevelInfo,
		Category:      h.category,
		Message:       fmt.Sprintf("received %s event", event),
	})
}

// RegisterDomainHandlers wires the default handler set for every canonical
// category. Callers can still Register custom handlers over these.
func RegisterDomainHandlers(r *Router, logs *repositories.LogRepository) {
	for _, category := range []string{
		CategoryCustomer,
		CategoryJob,
		CategoryInvoice,
		CategoryPayment,
		CategoryReferral,
	} {
		r.Register(category, &domainHandler{category: category, logs: logs})
	}
}
