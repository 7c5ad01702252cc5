package integrations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"fieldhub/internal/engine/delivery"
	"fieldhub/internal/platform/config"
	"fieldhub/internal/platform/models"
	"fieldhub/internal/platform/repositories"
)

const testSchema = `
CREATE TABLE integrations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	provider TEXT NOT NULL,
	category TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'configuring',
	credentials TEXT NOT NULL DEFAULT '{}',
	sync_direction TEXT NOT NULL DEFAULT 'two-way',
	sync_cadence_minutes INTEGER NOT NULL DEFAULT 0,
	field_mappings TEXT NOT NULL DEFAULT '{}',
	events TEXT NOT NULL DEFAULT '[]',
	total_syncs INTEGER NOT NULL DEFAULT 0,
	successful_syncs INTEGER NOT NULL DEFAULT 0,
	failed_syncs INTEGER NOT NULL DEFAULT 0,
	records_synced INTEGER NOT NULL DEFAULT 0,
	last_sync_at INTEGER,
	last_error TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	disabled_at INTEGER
);

CREATE TABLE webhook_endpoints (
	id TEXT PRIMARY KEY,
	integration_id TEXT NOT NULL,
	url TEXT NOT NULL,
	secret TEXT NOT NULL,
	events TEXT NOT NULL DEFAULT '[]',
	retry_config TEXT NOT NULL DEFAULT '{}',
	headers TEXT NOT NULL DEFAULT '{}',
	active INTEGER NOT NULL DEFAULT 1,
	total_deliveries INTEGER NOT NULL DEFAULT 0,
	failed_deliveries INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE webhook_deliveries (
	id TEXT PRIMARY KEY,
	endpoint_id TEXT NOT NULL,
	event TEXT NOT NULL,
	payload TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL,
	response_status INTEGER,
	response_headers TEXT,
	response_body TEXT,
	error TEXT,
	sent_at INTEGER,
	delivered_at INTEGER,
	next_retry_at INTEGER,
	created_at INTEGER NOT NULL
);

CREATE TABLE sync_jobs (
	id TEXT PRIMARY KEY,
	integration_id TEXT NOT NULL,
	type TEXT NOT NULL,
	direction TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	triggered_by TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	total_records INTEGER NOT NULL DEFAULT 0,
	processed_records INTEGER NOT NULL DEFAULT 0,
	successful_records INTEGER NOT NULL DEFAULT 0,
	failed_records INTEGER NOT NULL DEFAULT 0,
	skipped_records INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER,
	completed_at INTEGER,
	created_at INTEGER NOT NULL
);

CREATE TABLE sync_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	record_id TEXT NOT NULL,
	code TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE TABLE integration_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	integration_id TEXT NOT NULL,
	level TEXT NOT NULL,
	category TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);
`

type testEnv struct {
	db           *sql.DB
	service      *Service
	integrations *repositories.IntegrationRepository
	endpoints    *repositories.EndpointRepository
	deliveries   *repositories.DeliveryRepository
	syncs        *repositories.SyncRepository
	logs         *repositories.LogRepository
	engine       *delivery.Engine
	connector    *fakeConnector
}

type fakeConnector struct {
	pingErr  error
	fetchErr error
	records  []Record
	push     func(ctx context.Context, record Record) error
}

func (f *fakeConnector) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeConnector) FetchRecords(ctx context.Context, job *models.SyncJob) ([]Record, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.records, nil
}

func (f *fakeConnector) PushRecord(ctx context.Context, record Record) error {
	if f.push != nil {
		return f.push(ctx, record)
	}
	return nil
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	env := &testEnv{
		db:           db,
		integrations: repositories.NewIntegrationRepository(db),
		endpoints:    repositories.NewEndpointRepository(db),
		deliveries:   repositories.NewDeliveryRepository(db),
		syncs:        repositories.NewSyncRepository(db),
		logs:         repositories.NewLogRepository(db),
		connector:    &fakeConnector{},
	}

	env.engine = delivery.NewEngine(env.deliveries, env.endpoints, 5*time.Second)
	t.Cleanup(env.engine.Close)

	env.service = NewService(Params{
		Integrations: env.integrations,
		Endpoints:    env.endpoints,
		Deliveries:   env.deliveries,
		Syncs:        env.syncs,
		Logs:         env.logs,
		Engine:       env.engine,
		Connectors: func(integration *models.Integration) (Connector, error) {
			return env.connector, nil
		},
		OAuth: config.OAuthConfig{StateSecret: "test-state-secret"},
		Webhooks: config.WebhooksConfig{
			DefaultMaxRetries:        3,
			DefaultRetryDelay:        10 * time.Millisecond,
			DefaultBackoffMultiplier: 2,
		},
	})
	return env
}

func createTestIntegration(t *testing.T, env *testEnv, provider string) *models.Integration {
	t.Helper()
	res := env.service.CreateIntegration(&models.Integration{
		Name:     "Test " + provider,
		Provider: provider,
		Category: models.CategoryAccounting,
	})
	if !res.Success {
		t.Fatalf("CreateIntegration failed: %+v", res.Error)
	}
	return res.Data.(*models.Integration)
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
