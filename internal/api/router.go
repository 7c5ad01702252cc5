package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apiContext "fieldhub/internal/api/context"
	"fieldhub/internal/api/handlers"
	"fieldhub/internal/api/middleware"
)

type Dependencies struct {
	HealthHandler      *handlers.HealthHandler
	InboundHandler     *handlers.InboundHandler
	IntegrationHandler *handlers.IntegrationHandler
	EndpointHandler    *handlers.EndpointHandler
	OAuthHandler       *handlers.OAuthHandler
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	logged := middleware.RequestLogging

	// Health
	router.GET("/health", wrap(deps.HealthHandler.Check))

	// Inbound provider webhooks
	router.POST("/webhooks/:provider",
		chain(deps.InboundHandler.Handle, logged, middleware.RateLimit("inbound")))

	// OAuth callback (provider-facing, no /api prefix)
	router.GET("/oauth/callback", chain(deps.OAuthHandler.Callback, logged))

	// Integration management
	router.POST("/api/v1/integrations",
		chain(deps.IntegrationHandler.Create, logged, middleware.RateLimit("api_write")))
	router.GET("/api/v1/integrations",
		chain(deps.IntegrationHandler.List, logged, middleware.RateLimit("api_read")))
	router.GET("/api/v1/integrations/:integration_id",
		chain(deps.IntegrationHandler.Get, logged, middleware.RateLimit("api_read")))
	router.PATCH("/api/v1/integrations/:integration_id",
		chain(deps.IntegrationHandler.Update, logged, middleware.RateLimit("api_write")))
	router.DELETE("/api/v1/integrations/:integration_id",
		chain(deps.IntegrationHandler.Delete, logged, middleware.RateLimit("api_write")))
	router.POST("/api/v1/integrations/:integration_id/test",
		chain(deps.IntegrationHandler.Test, logged, middleware.RateLimit("api_write")))

	// OAuth
	router.GET("/api/v1/integrations/:integration_id/oauth/authorize",
		chain(deps.OAuthHandler.Authorize, logged, middleware.RateLimit("api_read")))
	router.POST("/api/v1/integrations/:integration_id/oauth/refresh",
		chain(deps.OAuthHandler.Refresh, logged, middleware.RateLimit("api_write")))

	// Sync jobs
	router.POST("/api/v1/integrations/:integration_id/sync",
		chain(deps.IntegrationHandler.TriggerSync, logged, middleware.RateLimit("api_write")))
	router.GET("/api/v1/integrations/:integration_id/sync-history",
		chain(deps.IntegrationHandler.SyncHistory, logged, middleware.RateLimit("api_read")))
	router.GET("/api/v1/sync-jobs/:job_id/errors",
		chain(deps.IntegrationHandler.SyncErrors, logged, middleware.RateLimit("api_read")))
	router.POST("/api/v1/sync-jobs/:job_id/cancel",
		chain(deps.IntegrationHandler.CancelSync, logged, middleware.RateLimit("api_write")))

	// Logs
	router.GET("/api/v1/integrations/:integration_id/logs",
		chain(deps.IntegrationHandler.Logs, logged, middleware.RateLimit("api_read")))

	// Webhook endpoints
	router.POST("/api/v1/integrations/:integration_id/endpoints",
		chain(deps.EndpointHandler.Create, logged, middleware.RateLimit("api_write")))
	router.GET("/api/v1/integrations/:integration_id/endpoints",
		chain(deps.EndpointHandler.List, logged, middleware.RateLimit("api_read")))
	router.PATCH("/api/v1/endpoints/:endpoint_id",
		chain(deps.EndpointHandler.Update, logged, middleware.RateLimit("api_write")))
	router.DELETE("/api/v1/endpoints/:endpoint_id",
		chain(deps.EndpointHandler.Delete, logged, middleware.RateLimit("api_write")))
	router.POST("/api/v1/endpoints/:endpoint_id/test",
		chain(deps.EndpointHandler.Test, logged, middleware.RateLimit("api_write")))
	router.GET("/api/v1/endpoints/:endpoint_id/deliveries",
		chain(deps.EndpointHandler.Deliveries, logged, middleware.RateLimit("api_read")))
	router.POST("/api/v1/deliveries/:delivery_id/retry",
		chain(deps.EndpointHandler.RetryDelivery, logged, middleware.RateLimit("api_write")))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
