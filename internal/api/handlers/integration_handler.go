package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	apiContext "fieldhub/internal/api/context"
	"fieldhub/internal/engine/integrations"
	"fieldhub/internal/platform/models"
)

type IntegrationHandler struct {
	service *integrations.Service
}

func NewIntegrationHandler(service *integrations.Service) *IntegrationHandler {
	return &IntegrationHandler{service: service}
}

func param(r *http.Request, name string) string {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName(name)
}

// writeResult translates the service envelope into an HTTP response. The
// envelope itself is the body either way; only the status code varies,
// chosen from the error kind the service classified the failure with.
func writeResult(w http.ResponseWriter, res integrations.Result, successStatus int) {
	status := successStatus
	if !res.Success {
		switch res.Error.Kind {
		case integrations.KindNotFound:
			status = http.StatusNotFound
		case integrations.KindInvalid:
			status = http.StatusBadRequest
		default:
			status = http.StatusUnprocessableEntity
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(res)
}

func (h *IntegrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var integration models.Integration
	if err := json.NewDecoder(r.Body).Decode(&integration); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeResult(w, h.service.CreateIntegration(&integration), http.StatusCreated)
}

func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	includeDisabled := r.URL.Query().Get("include_disabled") == "true"
	writeResult(w, h.service.ListIntegrations(includeDisabled), http.StatusOK)
}

func (h *IntegrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.GetIntegration(param(r, "integration_id")), http.StatusOK)
}

func (h *IntegrationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var updates models.Integration
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeResult(w, h.service.UpdateIntegration(param(r, "integration_id"), &updates), http.StatusOK)
}

func (h *IntegrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.DeleteIntegration(param(r, "integration_id")), http.StatusOK)
}

func (h *IntegrationHandler) Test(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.TestIntegration(param(r, "integration_id")), http.StatusOK)
}

func (h *IntegrationHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var req integrations.SyncRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	writeResult(w, h.service.TriggerSync(param(r, "integration_id"), req), http.StatusAccepted)
}

func (h *IntegrationHandler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeResult(w, h.service.GetSyncHistory(param(r, "integration_id"), limit), http.StatusOK)
}

func (h *IntegrationHandler) SyncErrors(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.GetSyncErrors(param(r, "job_id")), http.StatusOK)
}

func (h *IntegrationHandler) CancelSync(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.CancelSync(param(r, "job_id")), http.StatusOK)
}

func (h *IntegrationHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	level := r.URL.Query().Get("level")
	writeResult(w, h.service.GetLogs(param(r, "integration_id"), level, limit), http.StatusOK)
}
