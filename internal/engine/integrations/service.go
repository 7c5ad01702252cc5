package integrations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"fieldhub/internal/engine/delivery"
	pkgerrors "fieldhub/internal/pkg/errors"
	"fieldhub/internal/platform/config"
	"fieldhub/internal/platform/models"
	"fieldhub/internal/platform/repositories"
	"fieldhub/internal/platform/secrets"
)

// Service is the integration registry. It is constructed once at startup and
// passed by reference; there is no global instance.
type Service struct {
	integrations *repositories.IntegrationRepository
	endpoints    *repositories.EndpointRepository
	deliveries   *repositories.DeliveryRepository
	syncs        *repositories.SyncRepository
	logs         *repositories.LogRepository

	engine     *delivery.Engine
	connectors ConnectorFactory
	secrets    secrets.Store
	oauthCfg   config.OAuthConfig
	webhookCfg config.WebhooksConfig

	mu      sync.Mutex
	running map[string]context.CancelFunc // sync job id -> cancel
}

type Params struct {
	Integrations *repositories.IntegrationRepository
	Endpoints    *repositories.EndpointRepository
	Deliveries   *repositories.DeliveryRepository
	Syncs        *repositories.SyncRepository
	Logs         *repositories.LogRepository
	Engine       *delivery.Engine
	Connectors   ConnectorFactory
	Secrets      secrets.Store
	OAuth        config.OAuthConfig
	Webhooks     config.WebhooksConfig
}

func NewService(p Params) *Service {
	if p.Secrets == nil {
		p.Secrets = secrets.Passthrough{}
	}
	return &Service{
		integrations: p.Integrations,
		endpoints:    p.Endpoints,
		deliveries:   p.Deliveries,
		syncs:        p.Syncs,
		logs:         p.Logs,
		engine:       p.Engine,
		connectors:   p.Connectors,
		secrets:      p.Secrets,
		oauthCfg:     p.OAuth,
		webhookCfg:   p.Webhooks,
		running:      make(map[string]context.CancelFunc),
	}
}

// --- Integration CRUD ---

func (s *Service) CreateIntegration(integration *models.Integration) Result {
	if integration.Name == "" || integration.Provider == "" {
		return failInvalid(pkgerrors.ErrCodeCreate, "name and provider are required")
	}
	if integration.Category == "" {
		integration.Category = models.CategoryCRM
	}
	if integration.SyncDirection == "" {
		integration.SyncDirection = models.SyncDirectionTwoWay
	}

	if err := s.secrets.Seal(&integration.Credentials); err != nil {
		return fail(pkgerrors.ErrCodeCreate, "failed to seal credentials")
	}

	if err := s.integrations.Create(integration); err != nil {
		return fail(pkgerrors.ErrCodeCreate, err.Error())
	}

	s.appendLog(integration.ID, models.LogLevelInfo, "config", "integration created")
	return ok(integration)
}

func (s *Service) GetIntegration(id string) Result {
	integration, err := s.integrations.GetByID(id)
	if err != nil {
		return fail(pkgerrors.ErrCodeFetch, err.Error())
	}
	if integration == nil {
		return failNotFound(pkgerrors.ErrCodeFetch, "integration not found")
	}
	return ok(integration)
}

func (s *Service) ListIntegrations(includeDisabled bool) Result {
	list, err := s.integrations.List(includeDisabled)
	if err != nil {
		return fail(pkgerrors.ErrCodeFetch, err.Error())
	}
	return ok(list)
}

func (s *Service) UpdateIntegration(id string, updates *models.Integration) Result {
	existing, err := s.integrations.GetByID(id)
	if err != nil {
		return fail(pkgerrors.ErrCodeUpdate, err.Error())
	}
	if existing == nil || existing.Disabled() {
		return failNotFound(pkgerrors.ErrCodeUpdate, "integration not found")
	}

	if updates.Name != "" {
		existing.Name = updates.Name
	}
	if updates.Status != "" {
		existing.Status = updates.Status
	}
	if updates.SyncDirection != "" {
		existing.SyncDirection = updates.SyncDirection
	}
	if updates.SyncCadenceMinutes > 0 {
		existing.SyncCadenceMinutes = updates.SyncCadenceMinutes
	}
	if updates.FieldMappings != nil {
		existing.FieldMappings = updates.FieldMappings
	}
	if updates.Events != nil {
		existing.Events = updates.Events
	}

	if err := s.integrations.Update(existing); err != nil {
		return fail(pkgerrors.ErrCodeUpdate, err.Error())
	}

	s.appendLog(id, models.LogLevelInfo, "config", "integration updated")
	return ok(existing)
}

// DeleteIntegration soft-disables; sync jobs, deliveries and logs remain
// queryable for audit.
func (s *Service) DeleteIntegration(id string) Result {
	existing, err := s.integrations.GetByID(id)
	if err != nil {
		return fail(pkgerrors.ErrCodeDelete, err.Error())
	}
	if existing == nil {
		return failNotFound(pkgerrors.ErrCodeDelete, "integration not found")
	}

	if err := s.integrations.Disable(id); err != nil {
		return fail(pkgerrors.ErrCodeDelete, err.Error())
	}

	// Stop outbound traffic for the integration's endpoints.
	endpoints, err := s.endpoints.ListByIntegration(id)
	if err == nil {
		for _, endpoint := range endpoints {
			s.engine.CancelEndpoint(endpoint.ID)
		}
	}

	s.appendLog(id, models.LogLevelInfo, "config", "integration disabled")
	return ok(nil)
}

// --- Connection testing ---

type TestResult struct {
	Connected bool   `json:"connected"`
	LatencyMs int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}

// TestIntegration runs a lightweight connectivity and auth check. Stored
// credentials are never mutated; only the status flips on auth failure.
func (s *Service) TestIntegration(id string) Result {
	integration, err := s.integrations.GetByID(id)
	if err != nil {
		return fail(pkgerrors.ErrCodeTest, err.Error())
	}
	if integration == nil || integration.Disabled() {
		return failNotFound(pkgerrors.ErrCodeTest, "integration not found")
	}

	connector, err := s.connectors(integration)
	if err != nil {
		return fail(pkgerrors.ErrCodeTest, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	pingErr := connector.Ping(ctx)
	latency := time.Since(start).Milliseconds()

	if pingErr != nil {
		if errors.Is(pingErr, ErrAuthFailed) {
			s.integrations.UpdateStatus(id, models.IntegrationStatusError, pingErr.Error())
		}
		s.appendLog(id, models.LogLevelError, "connection", "connection test failed: "+pingErr.Error())
		return ok(&TestResult{Connected: false, LatencyMs: latency, Message: pingErr.Error()})
	}

	if integration.Status == models.IntegrationStatusConfiguring || integration.Status == models.IntegrationStatusError {
		s.integrations.UpdateStatus(id, models.IntegrationStatusActive, "")
	}
	s.appendLog(id, models.LogLevelInfo, "connection", "connection test succeeded")
	return ok(&TestResult{Connected: true, LatencyMs: latency})
}

// --- Webhook endpoints ---

func (s *Service) CreateEndpoint(integrationID string, endpoint *models.WebhookEndpoint) Result {
	integration, err := s.integrations.GetByID(integrationID)
	if err != nil {
		return fail(pkgerrors.ErrCodeCreate, err.Error())
	}
	if integration == nil || integration.Disabled() {
		return failNotFound(pkgerrors.ErrCodeCreate, "integration not found")
	}
	if endpoint.URL == "" {
		return failInvalid(pkgerrors.ErrCodeCreate, "url is required")
	}

	endpoint.IntegrationID = integrationID
	if endpoint.Secret == "" {
		endpoint.Secret = generateSecret()
	}
	if endpoint.Retry.MaxRetries == 0 {
		endpoint.Retry = models.RetryConfig{
			MaxRetries:        s.webhookCfg.DefaultMaxRetries,
			RetryDelayMs:      s.webhookCfg.DefaultRetryDelay.Milliseconds(),
			BackoffMultiplier: s.webhookCfg.DefaultBackoffMultiplier,
		}
	}

	if err := s.endpoints.Create(endpoint); err != nil {
		return fail(pkgerrors.ErrCodeCreate, err.Error())
	}

	s.appendLog(integrationID, models.LogLevelInfo, "webhook", "endpoint created: "+endpoint.URL)
	return ok(endpoint)
}

func (s *Service) ListEndpoints(integrationID string) Result {
	list, err := s.endpoints.ListByIntegration(integrationID)
	if err != nil {
		return fail(pkgerrors.ErrCodeFetch, err.Error())
	}
	return ok(list)
}

// EndpointUpdate carries a partial endpoint change; absent fields are left
// untouched. Active is a pointer so "not sent" and "deactivate" stay
// distinguishable.
type EndpointUpdate struct {
	URL     string              `json:"url"`
	Secret  string              `json:"secret"`
	Events  []string            `json:"events"`
	Retry   *models.RetryConfig `json:"retry_config"`
	Headers map[string]string   `json:"headers"`
	Active  *bool               `json:"active"`
}

func (s *Service) UpdateEndpoint(id string, updates EndpointUpdate) Result {
	existing, err := s.endpoints.GetByID(id)
	if err != nil {
		return fail(pkgerrors.ErrCodeUpdate, err.Error())
	}
	if existing == nil {
		return failNotFound(pkgerrors.ErrCodeUpdate, "endpoint not found")
	}

	if updates.URL != "" {
		existing.URL = updates.URL
	}
	if updates.Secret != "" {
		existing.Secret = updates.Secret
	}
	if updates.Events != nil {
		existing.Events = updates.Events
	}
	if updates.Retry != nil && updates.Retry.MaxRetries > 0 {
		existing.Retry = *updates.Retry
	}
	if updates.Headers != nil {
		existing.Headers = updates.Headers
	}
	if updates.Active != nil {
		existing.Active = *updates.Active
	}

	if err := s.endpoints.Update(existing); err != nil {
		return fail(pkgerrors.ErrCodeUpdate, err.Error())
	}
	return ok(existing)
}

// DeleteEndpoint removes the endpoint and cancels its pending retries so no
// delivery completes against a deleted target.
func (s *Service) DeleteEndpoint(id string) Result {
	existing, err := s.endpoints.GetByID(id)
	if err != nil {
		return fail(pkgerrors.ErrCodeDelete, err.Error())
	}
	if existing == nil {
		return failNotFound(pkgerrors.ErrCodeDelete, "endpoint not found")
	}

	s.engine.CancelEndpoint(id)

	if err := s.endpoints.Delete(id); err != nil {
		return fail(pkgerrors.ErrCodeDelete, err.Error())
	}

	s.appendLog(existing.IntegrationID, models.LogLevelInfo, "webhook", "endpoint deleted: "+existing.URL)
	return ok(nil)
}

func (s *Service) GetDeliveries(endpointID string, limit int) Result {
	list, err := s.deliveries.ListByEndpoint(endpointID, limit)
	if err != nil {
		return fail(pkgerrors.ErrCodeFetch, err.Error())
	}
	return ok(list)
}

// RetryDelivery re-sends a failed delivery as a fresh attempt sequence using
// the stored payload snapshot.
func (s *Service) RetryDelivery(deliveryID string) Result {
	d, err := s.deliveries.GetByID(deliveryID)
	if err != nil {
		return fail(pkgerrors.ErrCodeRetry, err.Error())
	}
	if d == nil {
		return failNotFound(pkgerrors.ErrCodeRetry, "delivery not found")
	}
	if d.Status != models.DeliveryStatusFailed {
		return failInvalid(pkgerrors.ErrCodeRetry, "only failed deliveries can be retried")
	}

	endpoint, err := s.endpoints.GetByID(d.EndpointID)
	if err != nil {
		return fail(pkgerrors.ErrCodeRetry, err.Error())
	}
	if endpoint == nil {
		return failNotFound(pkgerrors.ErrCodeRetry, "endpoint no longer exists")
	}

	replay, err := s.engine.Send(endpoint, d.Event, []byte(d.Payload))
	if err != nil {
		return fail(pkgerrors.ErrCodeRetry, err.Error())
	}
	return ok(replay)
}

// TestEndpoint sends a signed ping event through the normal delivery path.
func (s *Service) TestEndpoint(id string) Result {
	endpoint, err := s.endpoints.GetByID(id)
	if err != nil {
		return fail(pkgerrors.ErrCodeTest, err.Error())
	}
	if endpoint == nil {
		return failNotFound(pkgerrors.ErrCodeTest, "endpoint not found")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"event":     "ping",
		"timestamp": time.Now().Unix(),
	})

	d, err := s.engine.Send(endpoint, "ping", payload)
	if err != nil {
		return fail(pkgerrors.ErrCodeTest, err.Error())
	}
	return ok(d)
}

// --- Outbound dispatch ---

type outboundPayload struct {
	Event     string                 `json:"event"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Dispatch fans a canonical event out to every active endpoint subscribed to
// it. Delivery handles are returned immediately; sending is asynchronous.
func (s *Service) Dispatch(event string, data map[string]interface{}) []*models.WebhookDelivery {
	endpoints, err := s.endpoints.ListActiveForEvent(event)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to select endpoints for event")
		return nil
	}

	payload, err := json.Marshal(outboundPayload{Event: event, Timestamp: time.Now().Unix(), Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode outbound payload")
		return nil
	}

	var dispatched []*models.WebhookDelivery
	for _, endpoint := range endpoints {
		d, err := s.engine.Send(endpoint, event, payload)
		if err != nil {
			log.Error().Err(err).Str("endpoint_id", endpoint.ID).Msg("failed to start delivery")
			continue
		}
		dispatched = append(dispatched, d)
	}
	return dispatched
}

// --- Logs ---

func (s *Service) GetLogs(integrationID, level string, limit int) Result {
	list, err := s.logs.List(integrationID, level, limit)
	if err != nil {
		return fail(pkgerrors.ErrCodeFetch, err.Error())
	}
	return ok(list)
}

func (s *Service) appendLog(integrationID, level, category, message string) {
	err := s.logs.Append(&models.IntegrationLog{
		IntegrationID: integrationID,
		Level:         level,
		Category:      category,
		Message:       message,
	})
	if err != nil {
		log.Error().Err(err).Str("integration_id", integrationID).Msg("failed to append integration log")
	}
}

func generateSecret() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for secret issuance
		panic(fmt.Sprintf("secret generation: %v", err))
	}
	return "whsec_" + hex.EncodeToString(buf)
}
