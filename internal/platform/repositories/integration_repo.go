package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"fieldhub/internal/platform/models"
)

type IntegrationRepository struct {
	db *sql.DB
}

func NewIntegrationRepository(db *sql.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

const integrationColumns = `id, name, provider, category, status, credentials, sync_direction, sync_cadence_minutes,
	field_mappings, events, total_syncs, successful_syncs, failed_syncs, records_synced,
	last_sync_at, last_error, created_at, updated_at, disabled_at`

func (r *IntegrationRepository) Create(integration *models.Integration) error {
	integration.ID = "int_" + uuid.New().String()
	integration.CreatedAt = time.Now().Unix()
	integration.UpdatedAt = integration.CreatedAt
	if integration.Status == "" {
		integration.Status = models.IntegrationStatusConfiguring
	}

	credsJSON, err := json.Marshal(integration.Credentials)
	if err != nil {
		return err
	}
	mappingsJSON, err := json.Marshal(integration.FieldMappings)
	if err != nil {
		return err
	}
	eventsJSON, err := json.Marshal(integration.Events)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO integrations (id, name, provider, category, status, credentials, sync_direction, sync_cadence_minutes, field_mappings, events, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, integration.ID, integration.Name, integration.Provider, integration.Category, integration.Status,
		string(credsJSON), integration.SyncDirection, integration.SyncCadenceMinutes,
		string(mappingsJSON), string(eventsJSON), integration.CreatedAt, integration.UpdatedAt)
	return err
}

func (r *IntegrationRepository) GetByID(id string) (*models.Integration, error) {
	row := r.db.QueryRow(`SELECT `+integrationColumns+` FROM integrations WHERE id = ?`, id)
	return scanIntegration(row)
}

func (r *IntegrationRepository) List(includeDisabled bool) ([]*models.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations`
	if !includeDisabled {
		query += ` WHERE disabled_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var integrations []*models.Integration
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		integrations = append(integrations, integration)
	}
	return integrations, rows.Err()
}

func (r *IntegrationRepository) Update(integration *models.Integration) error {
	integration.UpdatedAt = time.Now().Unix()

	credsJSON, err := json.Marshal(integration.Credentials)
	if err != nil {
		return err
	}
	mappingsJSON, err := json.Marshal(integration.FieldMappings)
	if err != nil {
		return err
	}
	eventsJSON, err := json.Marshal(integration.Events)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE integrations
		SET name = ?, status = ?, credentials = ?, sync_direction = ?, sync_cadence_minutes = ?,
		    field_mappings = ?, events = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, integration.Name, integration.Status, string(credsJSON), integration.SyncDirection,
		integration.SyncCadenceMinutes, string(mappingsJSON), string(eventsJSON),
		integration.LastError, integration.UpdatedAt, integration.ID)
	return err
}

// Disable soft-deletes the integration. Sync jobs, deliveries and logs are
// kept for audit history.
func (r *IntegrationRepository) Disable(id string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE integrations SET status = ?, disabled_at = ?, updated_at = ? WHERE id = ? AND disabled_at IS NULL
	`, models.IntegrationStatusInactive, now, now, id)
	return err
}

func (r *IntegrationRepository) UpdateStatus(id, status, lastError string) error {
	_, err := r.db.Exec(`UPDATE integrations SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, lastError, time.Now().Unix(), id)
	return err
}

// RecordSyncOutcome rolls a finished sync job into the integration counters.
func (r *IntegrationRepository) RecordSyncOutcome(id string, succeeded bool, recordsSynced int) error {
	success := 0
	failed := 0
	if succeeded {
		success = 1
	} else {
		failed = 1
	}
	_, err := r.db.Exec(`
		UPDATE integrations
		SET total_syncs = total_syncs + 1,
		    successful_syncs = successful_syncs + ?,
		    failed_syncs = failed_syncs + ?,
		    records_synced = records_synced + ?,
		    last_sync_at = ?,
		    updated_at = ?
		WHERE id = ?
	`, success, failed, recordsSynced, time.Now().Unix(), time.Now().Unix(), id)
	return err
}

// ListByProvider returns non-disabled integrations for one provider.
func (r *IntegrationRepository) ListByProvider(provider string) ([]*models.Integration, error) {
	rows, err := r.db.Query(`
		SELECT `+integrationColumns+` FROM integrations
		WHERE provider = ? AND disabled_at IS NULL
		ORDER BY created_at ASC
	`, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var integrations []*models.Integration
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		integrations = append(integrations, integration)
	}
	return integrations, rows.Err()
}

// ListSyncDue returns active integrations whose sync cadence has elapsed.
func (r *IntegrationRepository) ListSyncDue(now int64) ([]*models.Integration, error) {
	rows, err := r.db.Query(`
		SELECT `+integrationColumns+` FROM integrations
		WHERE disabled_at IS NULL AND status = ? AND sync_cadence_minutes > 0
		  AND (last_sync_at IS NULL OR last_sync_at + sync_cadence_minutes * 60 <= ?)
	`, models.IntegrationStatusActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*models.Integration
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, integration)
	}
	return due, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntegration(row rowScanner) (*models.Integration, error) {
	var i models.Integration
	var credsStr, mappingsStr, eventsStr string
	var lastSyncAt, disabledAt sql.NullInt64
	var lastError sql.NullString

	err := row.Scan(&i.ID, &i.Name, &i.Provider, &i.Category, &i.Status, &credsStr, &i.SyncDirection,
		&i.SyncCadenceMinutes, &mappingsStr, &eventsStr, &i.TotalSyncs, &i.SuccessfulSyncs,
		&i.FailedSyncs, &i.RecordsSynced, &lastSyncAt, &lastError, &i.CreatedAt, &i.UpdatedAt, &disabledAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if lastSyncAt.Valid {
		i.LastSyncAt = &lastSyncAt.Int64
	}
	if disabledAt.Valid {
		i.DisabledAt = &disabledAt.Int64
	}
	if lastError.Valid {
		i.LastError = lastError.String
	}
	json.Unmarshal([]byte(credsStr), &i.Credentials)
	json.Unmarshal([]byte(mappingsStr), &i.FieldMappings)
	json.Unmarshal([]byte(eventsStr), &i.Events)

	return &i, nil
}
