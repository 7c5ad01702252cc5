package models

const (
	SyncStatusPending   = "pending"
	SyncStatusRunning   = "running"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
	SyncStatusCancelled = "cancelled"
)

const (
	SyncTypePull        = "pull"
	SyncTypePush        = "push"
	SyncTypeFull        = "full"
	SyncTypeIncremental = "incremental"
)

const (
	SyncTriggerSystem  = "system"
	SyncTriggerUser    = "user"
	SyncTriggerWebhook = "webhook"
)

type SyncJob struct {
	ID                string `json:"id"`
	IntegrationID     string `json:"integration_id"`
	Type              string `json:"type"`
	Direction         string `json:"direction"`
	Status            string `json:"status"`
	TriggeredBy       string `json:"triggered_by"`
	Progress          int    `json:"progress"` // 0-100
	TotalRecords      int    `json:"total_records"`
	ProcessedRecords  int    `json:"processed_records"`
	SuccessfulRecords int    `json:"successful_records"`
	FailedRecords     int    `json:"failed_records"`
	SkippedRecords    int    `json:"skipped_records"`
	StartedAt         *int64 `json:"started_at,omitempty"`
	CompletedAt       *int64 `json:"completed_at,omitempty"`
	CreatedAt         int64  `json:"created_at"`
}

// Terminal reports whether the job has finished.
func (j *SyncJob) Terminal() bool {
	switch j.Status {
	case SyncStatusCompleted, SyncStatusFailed, SyncStatusCancelled:
		return true
	}
	return false
}

type SyncError struct {
	ID        int64  `json:"id"`
	JobID     string `json:"job_id"`
	RecordID  string `json:"record_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
