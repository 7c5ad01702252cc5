package integrations

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"fieldhub/internal/platform/models"
)

func makeRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			ID:     fmt.Sprintf("rec_%d", i+1),
			Fields: map[string]interface{}{"name": fmt.Sprintf("Record %d", i+1)},
		}
	}
	return records
}

func waitForJob(t *testing.T, env *testEnv, jobID string) *models.SyncJob {
	t.Helper()
	var job *models.SyncJob
	waitFor(t, 5*time.Second, func() bool {
		job, _ = env.syncs.GetJob(jobID)
		return job != nil && job.Terminal()
	})
	return job
}

func TestTriggerSync_Completes(t *testing.T) {
	env := setupEnv(t)
	integration := createTestIntegration(t, env, "quickbooks")
	env.connector.records = makeRecords(10)

	res := env.service.TriggerSync(integration.ID, SyncRequest{Type: models.SyncTypeFull})
	if !res.Success {
		t.Fatalf("Expected success, got %+v", res.Error)
	}

	job := res.Data.(*models.SyncJob)
	if job.Status != models.SyncStatusPending {
		t.Errorf("Expected job to start pending, got %s", job.Status)
	}
	if job.TriggeredBy != models.SyncTriggerUser {
		t.Errorf("Expected default trigger user, got %s", job.TriggeredBy)
	}

	done := waitForJob(t, env, job.ID)
	if done.Status != models.SyncStatusCompleted {
		t.Fatalf("Expected completed, got %s", done.Status)
	}
	if done.TotalRecords != 10 || done.ProcessedRecords != 10 || done.SuccessfulRecords != 10 {
		t.Errorf("Expected 10/10/10, got %d/%d/%d", done.TotalRecords, done.ProcessedRecords, done.SuccessfulRecords)
	}
	if done.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", done.Progress)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("Expected started_at and completed_at to be set")
	}

	stored, _ := env.integrations.GetByID(integration.ID)
	if stored.TotalSyncs != 1 || stored.SuccessfulSyncs != 1 {
		t.Errorf("Expected sync counters 1/1, got %d/%d", stored.TotalSyncs, stored.SuccessfulSyncs)
	}
	if stored.RecordsSynced != 10 {
		t.Errorf("Expected 10 records counted, got %d", stored.RecordsSynced)
	}
	if stored.LastSyncAt == nil {
		t.Error("Expected last_sync_at to be set")
	}
}

func TestTriggerSync_BadRecordDoesNotAbort(t *testing.T) {
	env := setupEnv(t)
	integration := createTestIntegration(t, env, "quickbooks")
	env.service.UpdateIntegration(integration.ID, &models.Integration{
		SyncDirection: models.SyncDirectionOut,
	})

	env.connector.records = makeRecords(100)
	env.connector.push = func(ctx context.Context, record Record) error {
		if record.ID == "rec_50" {
			return fmt.Errorf("provider rejected record: missing required field")
		}
		return nil
	}

	res := env.service.TriggerSync(integration.ID, SyncRequest{})
	if !res.Success {
		t.Fatalf("Expected success, got %+v", res.Error)
	}

	job := waitForJob(t, env, res.Data.(*models.SyncJob).ID)
	if job.Status != models.SyncStatusCompleted {
		t.Fatalf("One bad record must not fail the job, got %s", job.Status)
	}
	if job.SuccessfulRecords != 99 {
		t.Errorf("Expected 99 successful records, got %d", job.SuccessfulRecords)
	}
	if job.FailedRecords != 1 {
		t.Errorf("Expected 1 failed record, got %d", job.FailedRecords)
	}

	errs, err := env.syncs.ListErrors(job.ID)
	if err != nil {
		t.Fatalf("ListErrors failed: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("Expected exactly 1 sync error, got %d", len(errs))
	}
	if errs[0].Code != "RECORD_SYNC_FAILED" {
		t.Errorf("Expected RECORD_SYNC_FAILED, got %s", errs[0].Code)
	}
	if errs[0].RecordID != "rec_50" {
		t.Errorf("Expected sync error to name rec_50, got %s", errs[0].RecordID)
	}
}

func TestTriggerSync_AuthFailureAbortsJob(t *testing.T) {
	env := setupEnv(t)
	integration := createTestIntegration(t, env, "salesforce")
	env.connector.fetchErr = ErrAuthFailed

	res := env.service.TriggerSync(integration.ID, SyncRequest{})
	if !res.Success {
		t.Fatalf("Expected success, got %+v", res.Error)
	}

	job := waitForJob(t, env, res.Data.(*models.SyncJob).ID)
	if job.Status != models.SyncStatusFailed {
		t.Fatalf("Expected failed, got %s", job.Status)
	}

	stored, _ := env.integrations.GetByID(integration.ID)
	if stored.Status != models.IntegrationStatusError {
		t.Errorf("Expected auth failure to flip integration to error, got %s", stored.Status)
	}
	if stored.FailedSyncs != 1 {
		t.Errorf("Expected 1 failed sync, got %d", stored.FailedSyncs)
	}
}

func TestTriggerSync_PushAppliesFieldMappings(t *testing.T) {
	env := setupEnv(t)
	integration := createTestIntegration(t, env, "hubspot")
	env.service.UpdateIntegration(integration.ID, &models.Integration{
		SyncDirection: models.SyncDirectionOut,
		FieldMappings: map[string]string{"name": "properties.firstname"},
	})

	var pushed []Record
	env.connector.push = func(ctx context.Context, record Record) error {
		pushed = append(pushed, record)
		return nil
	}
	env.connector.records = makeRecords(3)

	res := env.service.TriggerSync(integration.ID, SyncRequest{})
	if !res.Success {
		t.Fatalf("Expected success, got %+v", res.Error)
	}

	job := waitForJob(t, env, res.Data.(*models.SyncJob).ID)
	if job.Status != models.SyncStatusCompleted {
		t.Fatalf("Expected completed, got %s", job.Status)
	}
	if len(pushed) != 3 {
		t.Fatalf("Expected 3 pushed records, got %d", len(pushed))
	}
	for _, record := range pushed {
		if _, renamed := record.Fields["properties.firstname"]; !renamed {
			t.Errorf("Expected mapped field name, got %v", record.Fields)
		}
		if _, original := record.Fields["name"]; original {
			t.Errorf("Expected source field to be renamed, got %v", record.Fields)
		}
	}
}

func TestCancelSync(t *testing.T) {
	env := setupEnv(t)
	integration := createTestIntegration(t, env, "salesforce")
	env.service.UpdateIntegration(integration.ID, &models.Integration{
		SyncDirection: models.SyncDirectionOut,
	})

	var processed int32
	started := make(chan struct{})
	env.connector.push = func(ctx context.Context, record Record) error {
		if atomic.AddInt32(&processed, 1) == 1 {
			close(started)
		}
		time.Sleep(10 * time.Millisecond)
		return nil
	}
	env.connector.records = makeRecords(200)

	res := env.service.TriggerSync(integration.ID, SyncRequest{})
	if !res.Success {
		t.Fatalf("Expected success, got %+v", res.Error)
	}
	jobID := res.Data.(*models.SyncJob).ID

	<-started
	if cancelled := env.service.CancelSync(jobID); !cancelled.Success {
		t.Fatalf("Expected cancel to succeed, got %+v", cancelled.Error)
	}

	job := waitForJob(t, env, jobID)
	if job.Status != models.SyncStatusCancelled {
		t.Fatalf("Expected cancelled, got %s", job.Status)
	}
	if job.SkippedRecords == 0 {
		t.Error("Expected remaining records to be counted as skipped")
	}
	if job.ProcessedRecords+job.SkippedRecords != job.TotalRecords {
		t.Errorf("Counters must add up: %d processed + %d skipped != %d total",
			job.ProcessedRecords, job.SkippedRecords, job.TotalRecords)
	}

	// Cancelling a finished job is rejected.
	if again := env.service.CancelSync(jobID); again.Success {
		t.Error("Expected cancel of a finished job to fail")
	}
}

func TestCancelSync_OrphanedJob(t *testing.T) {
	env := setupEnv(t)
	integration := createTestIntegration(t, env, "salesforce")

	// A job left running by a crashed worker has no in-process cancel func.
	orphan := &models.SyncJob{
		IntegrationID: integration.ID,
		Type:          models.SyncTypeFull,
		Direction:     models.SyncDirectionIn,
		Status:        models.SyncStatusRunning,
		TriggeredBy:   models.SyncTriggerSystem,
	}
	if err := env.syncs.CreateJob(orphan); err != nil {
		t.Fatalf("Failed to seed job: %v", err)
	}

	if res := env.service.CancelSync(orphan.ID); !res.Success {
		t.Fatalf("Expected success, got %+v", res.Error)
	}

	job, _ := env.syncs.GetJob(orphan.ID)
	if job.Status != models.SyncStatusCancelled {
		t.Errorf("Expected cancelled, got %s", job.Status)
	}
	if job.CompletedAt == nil {
		t.Error("Expected completed_at to be set")
	}
}

func TestGetSyncHistory(t *testing.T) {
	env := setupEnv(t)
	integration := createTestIntegration(t, env, "quickbooks")
	env.connector.records = makeRecords(1)

	for i := 0; i < 3; i++ {
		res := env.service.TriggerSync(integration.ID, SyncRequest{})
		if !res.Success {
			t.Fatalf("TriggerSync failed: %+v", res.Error)
		}
		waitForJob(t, env, res.Data.(*models.SyncJob).ID)
	}

	res := env.service.GetSyncHistory(integration.ID, 10)
	if !res.Success {
		t.Fatalf("Expected success, got %+v", res.Error)
	}
	if jobs := res.Data.([]*models.SyncJob); len(jobs) != 3 {
		t.Errorf("Expected 3 jobs, got %d", len(jobs))
	}
}
