package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"fieldhub/internal/engine/events"
	"fieldhub/internal/engine/integrations"
	"fieldhub/internal/engine/providers"
	"fieldhub/internal/engine/signature"
	pkgerrors "fieldhub/internal/pkg/errors"
	"fieldhub/internal/platform/models"
	"fieldhub/internal/platform/repositories"
)

const maxInboundBody = 1 << 20 // 1 MiB

// InboundHandler accepts provider webhooks, verifies and normalizes them,
// and acknowledges before any downstream work runs.
type InboundHandler struct {
	registry     *providers.Registry
	integrations *repositories.IntegrationRepository
	router       *events.Router
	service      *integrations.Service
}

func NewInboundHandler(registry *providers.Registry, repo *repositories.IntegrationRepository, router *events.Router, service *integrations.Service) *InboundHandler {
	return &InboundHandler{
		registry:     registry,
		integrations: repo,
		router:       router,
		service:      service,
	}
}

func (h *InboundHandler) Handle(w http.ResponseWriter, r *http.Request) {
	providerName := param(r, "provider")

	mapper, known := h.registry.Get(providerName)
	if !known {
		pkgerrors.WriteError(w, http.StatusNotFound, pkgerrors.ErrCodeNotFound,
			"Unknown webhook provider", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBody))
	if err != nil {
		pkgerrors.WriteError(w, http.StatusBadRequest, pkgerrors.ErrCodeInvalidInput,
			"Failed to read request body", nil)
		return
	}

	sig := r.Header.Get(mapper.SignatureHeader())
	if sig == "" {
		pkgerrors.WriteError(w, http.StatusUnauthorized, pkgerrors.ErrCodeInvalidSignature,
			"Missing signature header", nil)
		return
	}

	integration := h.authenticate(providerName, body, sig)
	if integration == nil {
		pkgerrors.WriteError(w, http.StatusUnauthorized, pkgerrors.ErrCodeInvalidSignature,
			"Signature verification failed", nil)
		return
	}

	inbound, err := mapper.Map(r.Header, body)
	if err != nil {
		var unmapped *providers.UnmappedEventError
		if errors.As(err, &unmapped) {
			log.Warn().Str("provider", providerName).Str("provider_event", unmapped.ProviderEvent).
				Msg("ignoring unmapped provider event")
			pkgerrors.WriteError(w, http.StatusBadRequest, pkgerrors.ErrCodeInvalidInput,
				unmapped.Error(), nil)
			return
		}
		pkgerrors.WriteError(w, http.StatusBadRequest, pkgerrors.ErrCodeInvalidInput,
			"Malformed webhook payload", nil)
		return
	}

	// Acknowledge now; routing and fan-out happen off the request path.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"received": true})

	data := inbound.Data
	if data == nil {
		data = make(map[string]interface{})
	}
	data["integration_id"] = integration.ID
	data["provider"] = providerName

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		h.router.Route(ctx, inbound.Event, data)
		h.service.Dispatch(inbound.Event, data)
	}()
}

// authenticate finds the provider integration whose webhook secret signs
// the payload. Integrations without a secret never match.
func (h *InboundHandler) authenticate(provider string, body []byte, sig string) *models.Integration {
	candidates, err := h.integrations.ListByProvider(provider)
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("failed to load integrations for inbound webhook")
		return nil
	}

	for _, integration := range candidates {
		secret := integration.Credentials.WebhookSecret
		if secret == "" {
			continue
		}
		if signature.Verify(body, sig, []byte(secret), signature.SHA256) {
			return integration
		}
	}
	return nil
}
