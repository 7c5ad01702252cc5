package delivery

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"fieldhub/internal/engine/signature"
	"fieldhub/internal/platform/models"
	"fieldhub/internal/platform/repositories"
)

const (
	DefaultTimeout      = 30 * time.Second
	maxResponseSnapshot = 4096
)

// Engine performs signed webhook deliveries with retry and exponential
// backoff. Each delivery runs its attempts sequentially on its own
// goroutine; deliveries to the same endpoint for different events are
// independent and may interleave.
type Engine struct {
	deliveries *repositories.DeliveryRepository
	endpoints  *repositories.EndpointRepository
	client     *http.Client

	mu      sync.Mutex
	pending map[string]*retryHandle // delivery id -> cancellation handle
	stop    chan struct{}
	closed  bool
	wg      sync.WaitGroup
}

type retryHandle struct {
	endpointID string
	cancel     chan struct{}
}

func NewEngine(deliveries *repositories.DeliveryRepository, endpoints *repositories.EndpointRepository, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		deliveries: deliveries,
		endpoints:  endpoints,
		client:     &http.Client{Timeout: timeout},
		pending:    make(map[string]*retryHandle),
		stop:       make(chan struct{}),
	}
}

// Backoff returns the delay before attempt+1, given that `attempt` attempts
// have already been made: baseDelay * multiplier^(attempt-1).
func Backoff(cfg models.RetryConfig, attempt int) time.Duration {
	base := time.Duration(cfg.RetryDelayMs) * time.Millisecond
	if attempt <= 1 {
		return base
	}
	multiplier := cfg.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	return time.Duration(float64(base) * math.Pow(multiplier, float64(attempt-1)))
}

// Send registers a delivery for the event and returns it immediately; the
// attempt loop runs asynchronously.
func (e *Engine) Send(endpoint *models.WebhookEndpoint, event string, payload []byte) (*models.WebhookDelivery, error) {
	maxAttempts := endpoint.Retry.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, fmt.Errorf("delivery engine is closed")
	}
	e.wg.Add(1)
	e.mu.Unlock()

	d := &models.WebhookDelivery{
		EndpointID:  endpoint.ID,
		Event:       event,
		Payload:     string(payload),
		Status:      models.DeliveryStatusPending,
		MaxAttempts: maxAttempts,
	}
	if err := e.deliveries.Create(d); err != nil {
		e.wg.Done()
		return nil, err
	}

	go e.run(endpoint, d)
	return d, nil
}

// Resume continues a retrying delivery whose scheduled attempt time has
// passed, e.g. after a process restart lost the in-memory timer. Ownership
// is claimed through the delivery row, so an engine in another process
// cannot resume the same delivery: only one claim wins.
func (e *Engine) Resume(endpoint *models.WebhookEndpoint, d *models.WebhookDelivery) error {
	if d.Terminal() {
		return fmt.Errorf("delivery %s is already %s", d.ID, d.Status)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("delivery engine is closed")
	}
	if _, active := e.pending[d.ID]; active {
		e.mu.Unlock()
		return fmt.Errorf("delivery %s already has a live retry timer", d.ID)
	}
	e.wg.Add(1)
	e.mu.Unlock()

	claimed, err := e.deliveries.ClaimRetry(d.ID)
	if err != nil {
		e.wg.Done()
		return err
	}
	if !claimed {
		e.wg.Done()
		return fmt.Errorf("delivery %s is owned by another attempt loop", d.ID)
	}
	d.Status = models.DeliveryStatusPending
	d.NextRetryAt = nil

	go e.run(endpoint, d)
	return nil
}

// CancelEndpoint aborts pending retries for a deleted endpoint. The affected
// deliveries are marked failed so they are never attempted against an
// endpoint that no longer exists.
func (e *Engine) CancelEndpoint(endpointID string) {
	e.mu.Lock()
	for id, handle := range e.pending {
		if handle.endpointID == endpointID {
			close(handle.cancel)
			delete(e.pending, id)
		}
	}
	e.mu.Unlock()
}

// Close stops accepting new deliveries and waits for in-flight attempts.
// Deliveries parked in a backoff wait stay `retrying` and are resumed by
// the retry worker on next start.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.stop)
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Engine) run(endpoint *models.WebhookEndpoint, d *models.WebhookDelivery) {
	defer e.wg.Done()

	for {
		e.attempt(endpoint, d)

		if d.Status == models.DeliveryStatusDelivered {
			if err := e.endpoints.IncrementDeliveries(endpoint.ID, false); err != nil {
				log.Error().Err(err).Str("endpoint_id", endpoint.ID).Msg("failed to update endpoint counters")
			}
			log.Info().Str("delivery_id", d.ID).Str("event", d.Event).Int("attempts", d.Attempts).Msg("webhook delivered")
			return
		}

		if d.Attempts >= d.MaxAttempts {
			d.Status = models.DeliveryStatusFailed
			d.NextRetryAt = nil
			e.persist(d)
			if err := e.endpoints.IncrementDeliveries(endpoint.ID, true); err != nil {
				log.Error().Err(err).Str("endpoint_id", endpoint.ID).Msg("failed to update endpoint counters")
			}
			log.Warn().Str("delivery_id", d.ID).Str("event", d.Event).Str("error", d.Error).Msg("webhook delivery failed permanently")
			return
		}

		delay := Backoff(endpoint.Retry, d.Attempts)
		next := time.Now().Add(delay).UnixMilli()
		d.Status = models.DeliveryStatusRetrying
		d.NextRetryAt = &next
		e.persist(d)

		handle := e.track(d.ID, endpoint.ID)
		timer := time.NewTimer(delay)

		select {
		case <-timer.C:
			e.untrack(d.ID)
			// Re-claim the row before attempting. While the timer was
			// parked the row was visible to the retry scanner, and the
			// worker runs in a separate process that cannot see this
			// engine's pending map; losing the claim means it took over.
			claimed, err := e.deliveries.ClaimRetry(d.ID)
			if err != nil {
				log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to claim delivery for retry")
				return
			}
			if !claimed {
				return
			}
			d.Status = models.DeliveryStatusPending
			d.NextRetryAt = nil
		case <-handle.cancel:
			timer.Stop()
			e.untrack(d.ID)
			d.Status = models.DeliveryStatusFailed
			d.Error = "endpoint removed before retry"
			d.NextRetryAt = nil
			e.persist(d)
			return
		case <-e.stop:
			timer.Stop()
			e.untrack(d.ID)
			// Left as retrying with next_retry_at set; the worker resumes it.
			return
		}
	}
}

// attempt performs exactly one HTTP POST and records the outcome. Attempts
// within a delivery are strictly sequential; the counter never exceeds
// MaxAttempts.
func (e *Engine) attempt(endpoint *models.WebhookEndpoint, d *models.WebhookDelivery) {
	d.Attempts++
	now := time.Now().Unix()
	d.SentAt = &now

	req, err := http.NewRequest(http.MethodPost, endpoint.URL, bytes.NewReader([]byte(d.Payload)))
	if err != nil {
		d.Error = err.Error()
		e.persist(d)
		return
	}

	sig := signature.Sign([]byte(d.Payload), []byte(endpoint.Secret))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", sig)
	req.Header.Set("X-Webhook-Event", d.Event)
	req.Header.Set("X-Webhook-Delivery-Id", d.ID)
	req.Header.Set("X-Webhook-Timestamp", fmt.Sprintf("%d", now))
	for name, value := range endpoint.Headers {
		req.Header.Set(name, value)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		// Network errors and timeouts retry the same way as non-2xx.
		d.Error = err.Error()
		d.ResponseStatus = 0
		e.persist(d)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSnapshot))
	d.ResponseStatus = resp.StatusCode
	d.ResponseBody = string(body)
	d.ResponseHeaders = flattenHeaders(resp.Header)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.Status = models.DeliveryStatusDelivered
		deliveredAt := time.Now().Unix()
		d.DeliveredAt = &deliveredAt
		d.Error = ""
		d.NextRetryAt = nil
	} else {
		d.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	e.persist(d)
}

func (e *Engine) persist(d *models.WebhookDelivery) {
	if err := e.deliveries.Update(d); err != nil {
		log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to persist delivery state")
	}
}

func (e *Engine) track(deliveryID, endpointID string) *retryHandle {
	handle := &retryHandle{endpointID: endpointID, cancel: make(chan struct{})}
	e.mu.Lock()
	e.pending[deliveryID] = handle
	e.mu.Unlock()
	return handle
}

func (e *Engine) untrack(deliveryID string) {
	e.mu.Lock()
	delete(e.pending, deliveryID)
	e.mu.Unlock()
}

func flattenHeaders(h http.Header) map[string]string {
	flat := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			flat[name] = values[0]
		}
	}
	return flat
}
