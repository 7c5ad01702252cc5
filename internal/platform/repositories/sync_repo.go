package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"fieldhub/internal/platform/models"
)

type SyncRepository struct {
	db *sql.DB
}

func NewSyncRepository(db *sql.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

const syncJobColumns = `id, integration_id, type, direction, status, triggered_by, progress,
	total_records, processed_records, successful_records, failed_records, skipped_records,
	started_at, completed_at, created_at`

func (r *SyncRepository) CreateJob(job *models.SyncJob) error {
	job.ID = "syn_" + uuid.New().String()
	job.CreatedAt = time.Now().Unix()
	if job.Status == "" {
		job.Status = models.SyncStatusPending
	}

	_, err := r.db.Exec(`
		INSERT INTO sync_jobs (id, integration_id, type, direction, status, triggered_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.IntegrationID, job.Type, job.Direction, job.Status, job.TriggeredBy, job.CreatedAt)
	return err
}

func (r *SyncRepository) GetJob(id string) (*models.SyncJob, error) {
	row := r.db.QueryRow(`SELECT `+syncJobColumns+` FROM sync_jobs WHERE id = ?`, id)
	return scanSyncJob(row)
}

func (r *SyncRepository) ListJobs(integrationID string, limit int) ([]*models.SyncJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT `+syncJobColumns+` FROM sync_jobs
		WHERE integration_id = ? ORDER BY created_at DESC LIMIT ?
	`, integrationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *SyncRepository) UpdateJob(job *models.SyncJob) error {
	_, err := r.db.Exec(`
		UPDATE sync_jobs
		SET status = ?, progress = ?, total_records = ?, processed_records = ?,
		    successful_records = ?, failed_records = ?, skipped_records = ?,
		    started_at = ?, completed_at = ?
		WHERE id = ?
	`, job.Status, job.Progress, job.TotalRecords, job.ProcessedRecords,
		job.SuccessfulRecords, job.FailedRecords, job.SkippedRecords,
		job.StartedAt, job.CompletedAt, job.ID)
	return err
}

func (r *SyncRepository) AddError(syncErr *models.SyncError) error {
	syncErr.Timestamp = time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO sync_errors (job_id, record_id, code, message, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, syncErr.JobID, syncErr.RecordID, syncErr.Code, syncErr.Message, syncErr.Timestamp)
	return err
}

func (r *SyncRepository) ListErrors(jobID string) ([]*models.SyncError, error) {
	rows, err := r.db.Query(`
		SELECT id, job_id, record_id, code, message, timestamp
		FROM sync_errors WHERE job_id = ? ORDER BY id ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []*models.SyncError
	for rows.Next() {
		var e models.SyncError
		if err := rows.Scan(&e.ID, &e.JobID, &e.RecordID, &e.Code, &e.Message, &e.Timestamp); err != nil {
			return nil, err
		}
		errs = append(errs, &e)
	}
	return errs, rows.Err()
}

func scanSyncJob(row rowScanner) (*models.SyncJob, error) {
	var j models.SyncJob
	var startedAt, completedAt sql.NullInt64

	err := row.Scan(&j.ID, &j.IntegrationID, &j.Type, &j.Direction, &j.Status, &j.TriggeredBy,
		&j.Progress, &j.TotalRecords, &j.ProcessedRecords, &j.SuccessfulRecords,
		&j.FailedRecords, &j.SkippedRecords, &startedAt, &completedAt, &j.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if startedAt.Valid {
		j.StartedAt = &startedAt.Int64
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Int64
	}

	return &j, nil
}
