package models

const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
	DeliveryStatusRetrying  = "retrying"
)

// RetryConfig controls the delivery retry schedule for an endpoint.
// Delay for attempt k+1 is RetryDelayMs * BackoffMultiplier^(k-1).
type RetryConfig struct {
	MaxRetries        int     `json:"max_retries"`
	RetryDelayMs      int64   `json:"retry_delay_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

type WebhookEndpoint struct {
	ID               string            `json:"id"`
	IntegrationID    string            `json:"integration_id"`
	URL              string            `json:"url"`
	Secret           string            `json:"secret"`
	Events           []string          `json:"events"` // JSON array in DB
	Retry            RetryConfig       `json:"retry"`
	Headers          map[string]string `json:"headers,omitempty"` // JSON object in DB
	Active           bool              `json:"active"`
	TotalDeliveries  int               `json:"total_deliveries"`
	FailedDeliveries int               `json:"failed_deliveries"`
	CreatedAt        int64             `json:"created_at"`
	UpdatedAt        int64             `json:"updated_at"`
}

// SubscribedTo reports whether the endpoint wants the given event.
// An empty subscription list means all events.
func (e *WebhookEndpoint) SubscribedTo(event string) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, ev := range e.Events {
		if ev == event {
			return true
		}
	}
	return false
}

type WebhookDelivery struct {
	ID              string            `json:"id"`
	EndpointID      string            `json:"endpoint_id"`
	Event           string            `json:"event"`
	Payload         string            `json:"payload"` // JSON snapshot of the body sent
	Status          string            `json:"status"`  // pending, delivered, failed, retrying
	Attempts        int               `json:"attempts"`
	MaxAttempts     int               `json:"max_attempts"`
	ResponseStatus  int               `json:"response_status,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	Error           string            `json:"error,omitempty"`
	SentAt          *int64            `json:"sent_at,omitempty"`
	DeliveredAt     *int64            `json:"delivered_at,omitempty"`
	NextRetryAt     *int64            `json:"next_retry_at,omitempty"` // unix millis
	CreatedAt       int64             `json:"created_at"`
}

// Terminal reports whether the delivery can no longer change state.
func (d *WebhookDelivery) Terminal() bool {
	return d.Status == DeliveryStatusDelivered || d.Status == DeliveryStatusFailed
}
