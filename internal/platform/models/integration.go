package models

const (
	IntegrationStatusActive      = "active"
	IntegrationStatusInactive    = "inactive"
	IntegrationStatusError       = "error"
	IntegrationStatusConfiguring = "configuring"
)

const (
	CategoryCRM           = "crm"
	CategoryAccounting    = "accounting"
	CategoryProperty      = "property"
	CategoryPayment       = "payment"
	CategoryCommunication = "communication"
	CategoryAnalytics     = "analytics"
)

const (
	SyncDirectionIn     = "one-way-in"
	SyncDirectionOut    = "one-way-out"
	SyncDirectionTwoWay = "two-way"
)

// Credentials are stored as a JSON column. Sealing is the responsibility of
// the secrets store; IsEncrypted records whether it ran.
type Credentials struct {
	AccessToken    string `json:"access_token,omitempty"`
	RefreshToken   string `json:"refresh_token,omitempty"`
	TokenExpiresAt *int64 `json:"token_expires_at,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	InstanceURL    string `json:"instance_url,omitempty"`
	// WebhookSecret is the shared secret the provider signs inbound
	// webhooks with.
	WebhookSecret string `json:"webhook_secret,omitempty"`
	IsEncrypted   bool   `json:"is_encrypted"`
}

type Integration struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Provider           string            `json:"provider"`
	Category           string            `json:"category"`
	Status             string            `json:"status"` // active, inactive, error, configuring
	Credentials        Credentials       `json:"credentials"`
	SyncDirection      string            `json:"sync_direction"`
	SyncCadenceMinutes int               `json:"sync_cadence_minutes"`
	FieldMappings      map[string]string `json:"field_mappings,omitempty"` // JSON object in DB
	Events             []string          `json:"events"`                   // JSON array in DB
	TotalSyncs         int               `json:"total_syncs"`
	SuccessfulSyncs    int               `json:"successful_syncs"`
	FailedSyncs        int               `json:"failed_syncs"`
	RecordsSynced      int               `json:"records_synced"`
	LastSyncAt         *int64            `json:"last_sync_at,omitempty"`
	LastError          string            `json:"last_error,omitempty"`
	CreatedAt          int64             `json:"created_at"`
	UpdatedAt          int64             `json:"updated_at"`
	DisabledAt         *int64            `json:"disabled_at,omitempty"`
}

// Disabled reports whether the integration has been soft-deleted.
func (i *Integration) Disabled() bool {
	return i.DisabledAt != nil
}

type IntegrationLog struct {
	ID            int64  `json:"id"`
	IntegrationID string `json:"integration_id"`
	Level         string `json:"level"` // info, warn, error
	Category      string `json:"category"`
	Message       string `json:"message"`
	Timestamp     int64  `json:"timestamp"`
}

const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)
