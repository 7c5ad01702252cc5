package workers

import (
	"time"

	"github.com/rs/zerolog/log"
	"fieldhub/internal/engine/delivery"
	"fieldhub/internal/engine/integrations"
	"fieldhub/internal/platform/models"
	"fieldhub/internal/platform/repositories"
)

// Workers holds the background loops that keep delivery and sync state
// moving when no request is driving them.
type Workers struct {
	integrations *repositories.IntegrationRepository
	endpoints    *repositories.EndpointRepository
	deliveries   *repositories.DeliveryRepository
	engine       *delivery.Engine
	service      *integrations.Service
}

func New(
	integrationRepo *repositories.IntegrationRepository,
	endpointRepo *repositories.EndpointRepository,
	deliveryRepo *repositories.DeliveryRepository,
	engine *delivery.Engine,
	service *integrations.Service,
) *Workers {
	return &Workers{
		integrations: integrationRepo,
		endpoints:    endpointRepo,
		deliveries:   deliveryRepo,
		engine:       engine,
		service:      service,
	}
}

// ResumeDueRetries picks up deliveries whose next_retry_at has passed and
// hands them back to the engine. The scan can race an attempt loop in the
// server process; the engine claims the row before attempting, so a
// delivery already taken elsewhere is refused here, never attempted twice.
func (w *Workers) ResumeDueRetries() {
	due, err := w.deliveries.ListDueRetries(time.Now().UnixMilli(), 100)
	if err != nil {
		log.Error().Err(err).Msg("failed to scan for due retries")
		return
	}

	for _, d := range due {
		endpoint, err := w.endpoints.GetByID(d.EndpointID)
		if err != nil || endpoint == nil {
			log.Warn().Str("delivery_id", d.ID).Str("endpoint_id", d.EndpointID).
				Msg("due retry has no endpoint, marking failed")
			d.Status = models.DeliveryStatusFailed
			d.Error = "endpoint no longer exists"
			d.NextRetryAt = nil
			w.deliveries.Update(d)
			continue
		}

		if err := w.engine.Resume(endpoint, d); err != nil {
			log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to resume delivery")
		}
	}

	if len(due) > 0 {
		log.Info().Int("count", len(due)).Msg("resumed due deliveries")
	}
}

// RunScheduledSyncs triggers a sync for every active integration whose
// cadence has elapsed.
func (w *Workers) RunScheduledSyncs() {
	dueList, err := w.integrations.ListSyncDue(time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Msg("failed to scan for due syncs")
		return
	}

	for _, integration := range dueList {
		res := w.service.TriggerSync(integration.ID, integrations.SyncRequest{
			Type:        models.SyncTypeIncremental,
			TriggeredBy: models.SyncTriggerSystem,
		})
		if !res.Success {
			log.Error().Str("integration_id", integration.ID).Str("code", res.Error.Code).
				Str("message", res.Error.Message).Msg("scheduled sync failed to start")
			continue
		}
		log.Info().Str("integration_id", integration.ID).Msg("scheduled sync started")
	}
}

// RefreshExpiringTokens renews OAuth access tokens that expire within the
// next window so syncs never start with a dead token.
func (w *Workers) RefreshExpiringTokens(window time.Duration) {
	list, err := w.integrations.List(false)
	if err != nil {
		log.Error().Err(err).Msg("failed to list integrations for token refresh")
		return
	}

	cutoff := time.Now().Add(window).Unix()
	for _, integration := range list {
		creds := integration.Credentials
		if creds.RefreshToken == "" || creds.TokenExpiresAt == nil || *creds.TokenExpiresAt > cutoff {
			continue
		}

		res := w.service.RefreshToken(integration.ID)
		if !res.Success {
			log.Error().Str("integration_id", integration.ID).Str("message", res.Error.Message).
				Msg("proactive token refresh failed")
			continue
		}
		log.Info().Str("integration_id", integration.ID).Msg("access token refreshed ahead of expiry")
	}
}
