package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fieldhub/internal/platform/models"
)

// ErrAuthFailed marks an expired or invalid credential. Auth errors are not
// retried; they flip the integration status to error until re-auth.
var ErrAuthFailed = errors.New("provider authentication failed")

// Record is one provider-side entity moving through a sync.
type Record struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// Connector talks to one provider's API on behalf of one integration.
type Connector interface {
	Ping(ctx context.Context) error
	FetchRecords(ctx context.Context, job *models.SyncJob) ([]Record, error)
	PushRecord(ctx context.Context, record Record) error
}

// ConnectorFactory builds a connector for an integration. Tests inject
// fakes; production uses NewHTTPConnectorFactory.
type ConnectorFactory func(integration *models.Integration) (Connector, error)

var providerBaseURLs = map[string]string{
	"stripe":     "https://api.stripe.com/v1",
	"quickbooks": "https://quickbooks.api.intuit.com/v3",
	"salesforce": "", // instance URL comes from credentials
	"hubspot":    "https://api.hubapi.com/crm/v3",
}

// NewHTTPConnectorFactory returns connectors that speak plain authenticated
// REST to the provider base URL.
func NewHTTPConnectorFactory(timeout time.Duration) ConnectorFactory {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return func(integration *models.Integration) (Connector, error) {
		baseURL, ok := providerBaseURLs[integration.Provider]
		if !ok {
			return nil, fmt.Errorf("no connector for provider %s", integration.Provider)
		}
		if baseURL == "" {
			baseURL = integration.Credentials.InstanceURL
		}
		if baseURL == "" {
			return nil, fmt.Errorf("provider %s requires an instance URL", integration.Provider)
		}
		return &httpConnector{
			baseURL:     baseURL,
			credentials: integration.Credentials,
			client:      client,
		}, nil
	}
}

type httpConnector struct {
	baseURL     string
	credentials models.Credentials
	client      *http.Client
}

func (c *httpConnector) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.credentials.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.credentials.AccessToken)
	} else if c.credentials.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.credentials.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, ErrAuthFailed
	}
	return resp, nil
}

func (c *httpConnector) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("provider unavailable: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *httpConnector) FetchRecords(ctx context.Context, job *models.SyncJob) ([]Record, error) {
	resp, err := c.do(ctx, http.MethodGet, "/records", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Data []Record `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed provider response: %w", err)
	}
	return payload.Data, nil
}

func (c *httpConnector) PushRecord(ctx context.Context, record Record) error {
	resp, err := c.do(ctx, http.MethodPost, "/records", record)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
