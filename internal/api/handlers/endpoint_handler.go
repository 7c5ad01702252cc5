package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"fieldhub/internal/engine/integrations"
	"fieldhub/internal/platform/models"
)

type EndpointHandler struct {
	service *integrations.Service
}

func NewEndpointHandler(service *integrations.Service) *EndpointHandler {
	return &EndpointHandler{service: service}
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	var endpoint models.WebhookEndpoint
	if err := json.NewDecoder(r.Body).Decode(&endpoint); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeResult(w, h.service.CreateEndpoint(param(r, "integration_id"), &endpoint), http.StatusCreated)
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.ListEndpoints(param(r, "integration_id")), http.StatusOK)
}

func (h *EndpointHandler) Update(w http.ResponseWriter, r *http.Request) {
	var updates integrations.EndpointUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeResult(w, h.service.UpdateEndpoint(param(r, "endpoint_id"), updates), http.StatusOK)
}

func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.DeleteEndpoint(param(r, "endpoint_id")), http.StatusOK)
}

func (h *EndpointHandler) Test(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.TestEndpoint(param(r, "endpoint_id")), http.StatusOK)
}

func (h *EndpointHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeResult(w, h.service.GetDeliveries(param(r, "endpoint_id"), limit), http.StatusOK)
}

func (h *EndpointHandler) RetryDelivery(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.service.RetryDelivery(param(r, "delivery_id")), http.StatusAccepted)
}
