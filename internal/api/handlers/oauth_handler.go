package handlers

import (
	"net/http"

	"fieldhub/internal/engine/integrations"
	pkgerrors "fieldhub/internal/pkg/errors"
)

type OAuthHandler struct {
	service *integrations.Service
}

func NewOAuthHandler(service *integrations.Service) *OAuthHandler {
	return &OAuthHandler{service: service}
}

// Authorize returns the provider authorization URL for the integration.
// The UI redirects the user there.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.InitiateOAuth(param(r, "integration_id")), http.StatusOK)
}

// Callback is the redirect target registered with the provider.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		pkgerrors.WriteError(w, http.StatusBadRequest, pkgerrors.ErrCodeInvalidInput,
			"Missing code or state", nil)
		return
	}
	writeResult(w, h.service.CompleteOAuth(code, state), http.StatusOK)
}

func (h *OAuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.RefreshToken(param(r, "integration_id")), http.StatusOK)
}
