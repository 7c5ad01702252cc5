package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"fieldhub/internal/platform/models"
)

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

const deliveryColumns = `id, endpoint_id, event, payload, status, attempts, max_attempts,
	response_status, response_headers, response_body, error, sent_at, delivered_at, next_retry_at, created_at`

func (r *DeliveryRepository) Create(delivery *models.WebhookDelivery) error {
	delivery.ID = "whd_" + uuid.New().String()
	delivery.CreatedAt = time.Now().Unix()
	if delivery.Status == "" {
		delivery.Status = models.DeliveryStatusPending
	}

	_, err := r.db.Exec(`
		INSERT INTO webhook_deliveries (id, endpoint_id, event, payload, status, attempts, max_attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, delivery.ID, delivery.EndpointID, delivery.Event, delivery.Payload, delivery.Status,
		delivery.Attempts, delivery.MaxAttempts, delivery.CreatedAt)
	return err
}

func (r *DeliveryRepository) GetByID(id string) (*models.WebhookDelivery, error) {
	row := r.db.QueryRow(`SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id = ?`, id)
	return scanDelivery(row)
}

func (r *DeliveryRepository) ListByEndpoint(endpointID string, limit int) ([]*models.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE endpoint_id = ? ORDER BY created_at DESC LIMIT ?
	`, endpointID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, rows.Err()
}

// Update persists the mutable outcome fields after an attempt.
func (r *DeliveryRepository) Update(delivery *models.WebhookDelivery) error {
	headersJSON, err := json.Marshal(delivery.ResponseHeaders)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE webhook_deliveries
		SET status = ?, attempts = ?, response_status = ?, response_headers = ?, response_body = ?,
		    error = ?, sent_at = ?, delivered_at = ?, next_retry_at = ?
		WHERE id = ?
	`, delivery.Status, delivery.Attempts, delivery.ResponseStatus, string(headersJSON),
		delivery.ResponseBody, delivery.Error, delivery.SentAt, delivery.DeliveredAt,
		delivery.NextRetryAt, delivery.ID)
	return err
}

// ClaimRetry atomically takes ownership of a retrying delivery before its
// next attempt. The conditional update is the ownership handshake between
// the server and worker processes: whichever engine flips the row first
// runs the attempt, the other sees zero rows affected and backs off.
func (r *DeliveryRepository) ClaimRetry(id string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE webhook_deliveries
		SET status = ?, next_retry_at = NULL
		WHERE id = ? AND status = ?
	`, models.DeliveryStatusPending, id, models.DeliveryStatusRetrying)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListDueRetries returns retrying deliveries whose next attempt time has
// passed. Used by the worker to resume schedules lost on restart.
func (r *DeliveryRepository) ListDueRetries(nowMillis int64, limit int) ([]*models.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?
		ORDER BY next_retry_at ASC LIMIT ?
	`, models.DeliveryStatusRetrying, nowMillis, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, rows.Err()
}

func scanDelivery(row rowScanner) (*models.WebhookDelivery, error) {
	var d models.WebhookDelivery
	var responseStatus sql.NullInt64
	var responseHeaders, responseBody, errMsg sql.NullString
	var sentAt, deliveredAt, nextRetryAt sql.NullInt64

	err := row.Scan(&d.ID, &d.EndpointID, &d.Event, &d.Payload, &d.Status, &d.Attempts, &d.MaxAttempts,
		&responseStatus, &responseHeaders, &responseBody, &errMsg, &sentAt, &deliveredAt, &nextRetryAt, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if responseStatus.Valid {
		d.ResponseStatus = int(responseStatus.Int64)
	}
	if responseHeaders.Valid {
		json.Unmarshal([]byte(responseHeaders.String), &d.ResponseHeaders)
	}
	if responseBody.Valid {
		d.ResponseBody = responseBody.String
	}
	if errMsg.Valid {
		d.Error = errMsg.String
	}
	if sentAt.Valid {
		d.SentAt = &sentAt.Int64
	}
	if deliveredAt.Valid {
		d.DeliveredAt = &deliveredAt.Int64
	}
	if nextRetryAt.Valid {
		d.NextRetryAt = &nextRetryAt.Int64
	}

	return &d, nil
}
