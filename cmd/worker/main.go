package main

import (
	"log"
	"time"

	"fieldhub/internal/engine/delivery"
	"fieldhub/internal/engine/integrations"
	"fieldhub/internal/pkg/logger"
	"fieldhub/internal/platform/config"
	"fieldhub/internal/platform/database"
	"fieldhub/internal/platform/repositories"
	"fieldhub/internal/workers"
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

	integrationRepo := repositories.NewIntegrationRepository(db)
	endpointRepo := repositories.NewEndpointRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	syncRepo := repositories.NewSyncRepository(db)
	logRepo := repositories.NewLogRepository(db)

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

	w := workers.New(integrationRepo, endpointRepo, deliveryRepo, engine, service)

	log.Println("Starting background workers...")

	go runRetryScanner(w, cfg.Webhooks.RetryScanInterval)
	go runSyncScheduler(w, cfg.Sync.SchedulerInterval)
	go runTokenRefresher(w)

	// Keep process alive
	select {}
}

func runRetryScanner(w *workers.Workers, interval time.Duration) {
	// Catch up on deliveries orphaned by the previous shutdown first.
	w.ResumeDueRetries()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		w.ResumeDueRetries()
	}
}

func runSyncScheduler(w *workers.Workers, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		w.RunScheduledSyncs()
	}
}

func runTokenRefresher(w *workers.Workers) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		w.RefreshExpiringTokens(15 * time.Minute)
	}
}
