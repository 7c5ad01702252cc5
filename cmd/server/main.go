package main

import (
	"fmt"
	"log"
	"net/http"

	"fieldhub/internal/api"
	"fieldhub/internal/api/handlers"
	"fieldhub/internal/engine/delivery"
	"fieldhub/internal/engine/events"
	"fieldhub/internal/engine/integrations"
	"fieldhub/internal/engine/providers"
	"fieldhub/internal/pkg/logger"
	"fieldhub/internal/platform/config"
	"fieldhub/internal/platform/database"
	"fieldhub/internal/platform/repositories"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Repositories
	integrationRepo := repositories.NewIntegrationRepository(db)
	endpointRepo := repositories.NewEndpointRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	syncRepo := repositories.NewSyncRepository(db)
	logRepo := repositories.NewLogRepository(db)

	// Engine and services
	engine := delivery.NewEngine(deliveryRepo, endpointRepo, cfg.Webhooks.DeliveryTimeout)
	defer engine.Close()

	service := integrations.NewService(integrations.Params{
		Integrations: integrationRepo,
		Endpoints:    endpointRepo,
		Deliveries:   deliveryRepo,
		Syncs:        syncRepo,
		Logs:         logRepo,
		Engine:       engine,
		Connectors:   integrations.NewHTTPConnectorFactory(cfg.Webhooks.DeliveryTimeout),
		OAuth:        cfg.OAuth,
		Webhooks:     cfg.Webhooks,
	})

	eventRouter := events.NewRouter()
	events.RegisterDomainHandlers(eventRouter, logRepo)

	registry := providers.DefaultRegistry()

	// Handlers
	healthHandler := handlers.NewHealthHandler(db)
	inboundHandler := handlers.NewInboundHandler(registry, integrationRepo, eventRouter, service)
	integrationHandler := handlers.NewIntegrationHandler(service)
	endpointHandler := handlers.NewEndpointHandler(service)
	oauthHandler := handlers.NewOAuthHandler(service)

	// Router
	deps := &api.Dependencies{
		HealthHandler:      healthHandler,
		InboundHandler:     inboundHandler,
		IntegrationHandler: integrationHandler,
		EndpointHandler:    endpointHandler,
		OAuthHandler:       oauthHandler,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
