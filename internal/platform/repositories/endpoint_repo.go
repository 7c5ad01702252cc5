package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"fieldhub/internal/platform/models"
)

type EndpointRepository struct {
	db *sql.DB
}

func NewEndpointRepository(db *sql.DB) *EndpointRepository {
	return &EndpointRepository{db: db}
}

const endpointColumns = `id, integration_id, url, secret, events, retry_config, headers, active,
	total_deliveries, failed_deliveries, created_at, updated_at`

func (r *EndpointRepository) Create(endpoint *models.WebhookEndpoint) error {
	endpoint.ID = "whe_" + uuid.New().String()
	endpoint.CreatedAt = time.Now().Unix()
	endpoint.UpdatedAt = endpoint.CreatedAt
	endpoint.Active = true

	eventsJSON, err := json.Marshal(endpoint.Events)
	if err != nil {
		return err
	}
	retryJSON, err := json.Marshal(endpoint.Retry)
	if err != nil {
		return err
	}
	headersJSON, err := json.Marshal(endpoint.Headers)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO webhook_endpoints (id, integration_id, url, secret, events, retry_config, headers, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, endpoint.ID, endpoint.IntegrationID, endpoint.URL, endpoint.Secret, string(eventsJSON),
		string(retryJSON), string(headersJSON), endpoint.Active, endpoint.CreatedAt, endpoint.UpdatedAt)
	return err
}

func (r *EndpointRepository) GetByID(id string) (*models.WebhookEndpoint, error) {
	row := r.db.QueryRow(`SELECT `+endpointColumns+` FROM webhook_endpoints WHERE id = ?`, id)
	return scanEndpoint(row)
}

func (r *EndpointRepository) ListByIntegration(integrationID string) ([]*models.WebhookEndpoint, error) {
	rows, err := r.db.Query(`SELECT `+endpointColumns+` FROM webhook_endpoints WHERE integration_id = ? ORDER BY created_at DESC`, integrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEndpoints(rows)
}

// ListActiveForEvent returns active endpoints subscribed to the event across
// all enabled integrations. Subscription matching happens in the app since
// events are a JSON column.
func (r *EndpointRepository) ListActiveForEvent(event string) ([]*models.WebhookEndpoint, error) {
	rows, err := r.db.Query(`
		SELECT ` + endpointColumns + ` FROM webhook_endpoints e
		WHERE e.active = 1
		  AND EXISTS (SELECT 1 FROM integrations i WHERE i.id = e.integration_id AND i.disabled_at IS NULL)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	endpoints, err := collectEndpoints(rows)
	if err != nil {
		return nil, err
	}

	var matched []*models.WebhookEndpoint
	for _, e := range endpoints {
		if e.SubscribedTo(event) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (r *EndpointRepository) Update(endpoint *models.WebhookEndpoint) error {
	endpoint.UpdatedAt = time.Now().Unix()

	eventsJSON, err := json.Marshal(endpoint.Events)
	if err != nil {
		return err
	}
	retryJSON, err := json.Marshal(endpoint.Retry)
	if err != nil {
		return err
	}
	headersJSON, err := json.Marshal(endpoint.Headers)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE webhook_endpoints
		SET url = ?, secret = ?, events = ?, retry_config = ?, headers = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, endpoint.URL, endpoint.Secret, string(eventsJSON), string(retryJSON), string(headersJSON),
		endpoint.Active, endpoint.UpdatedAt, endpoint.ID)
	return err
}

func (r *EndpointRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM webhook_endpoints WHERE id = ?`, id)
	return err
}

func (r *EndpointRepository) IncrementDeliveries(id string, failed bool) error {
	failedInc := 0
	if failed {
		failedInc = 1
	}
	_, err := r.db.Exec(`
		UPDATE webhook_endpoints
		SET total_deliveries = total_deliveries + 1, failed_deliveries = failed_deliveries + ?
		WHERE id = ?
	`, failedInc, id)
	return err
}

func collectEndpoints(rows *sql.Rows) ([]*models.WebhookEndpoint, error) {
	var endpoints []*models.WebhookEndpoint
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints, rows.Err()
}

func scanEndpoint(row rowScanner) (*models.WebhookEndpoint, error) {
	var e models.WebhookEndpoint
	var eventsStr, retryStr, headersStr string

	err := row.Scan(&e.ID, &e.IntegrationID, &e.URL, &e.Secret, &eventsStr, &retryStr, &headersStr,
		&e.Active, &e.TotalDeliveries, &e.FailedDeliveries, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	json.Unmarshal([]byte(eventsStr), &e.Events)
	json.Unmarshal([]byte(retryStr), &e.Retry)
	json.Unmarshal([]byte(headersStr), &e.Headers)

	return &e, nil
}
