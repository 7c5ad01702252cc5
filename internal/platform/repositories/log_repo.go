package repositories

import (
	"database/sql"
	"time"

	"fieldhub/internal/platform/models"
)

// LogRepository is append-only. Log rows are never updated or deleted so the
// audit trail stays intact.
type LogRepository struct {
	db *sql.DB
}

func NewLogRepository(db *sql.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Append(entry *models.IntegrationLog) error {
	entry.Timestamp = time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO integration_logs (integration_id, level, category, message, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, entry.IntegrationID, entry.Level, entry.Category, entry.Message, entry.Timestamp)
	return err
}

func (r *LogRepository) List(integrationID, level string, limit int) ([]*models.IntegrationLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, integration_id, level, category, message, timestamp FROM integration_logs WHERE integration_id = ?`
	args := []interface{}{integrationID}
	if level != "" {
		query += ` AND level = ?`
		args = append(args, level)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.IntegrationLog
	for rows.Next() {
		var l models.IntegrationLog
		if err := rows.Scan(&l.ID, &l.IntegrationID, &l.Level, &l.Category, &l.Message, &l.Timestamp); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
