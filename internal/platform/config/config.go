package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Webhooks WebhooksConfig `mapstructure:"webhooks"`
	Sync     SyncConfig     `mapstructure:"sync"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type WebhooksConfig struct {
	// Defaults applied when an endpoint is created without a retry policy.
	DefaultMaxRetries        int           `mapstructure:"default_max_retries"`
	DefaultRetryDelay        time.Duration `mapstructure:"default_retry_delay"`
	DefaultBackoffMultiplier float64       `mapstructure:"default_backoff_multiplier"`

	DeliveryTimeout   time.Duration `mapstructure:"delivery_timeout"`
	RetryScanInterval time.Duration `mapstructure:"retry_scan_interval"`
	InboundPerMinute  int           `mapstructure:"inbound_per_minute"`
}

type SyncConfig struct {
	SchedulerInterval time.Duration `mapstructure:"scheduler_interval"`
}

type OAuthConfig struct {
	StateSecret string                    `mapstructure:"state_secret"`
	Providers   map[string]OAuthAppConfig `mapstructure:"providers"`
}

// OAuthAppConfig holds the app registration for a single provider.
type OAuthAppConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("webhooks.default_max_retries", 3)
	viper.SetDefault("webhooks.default_retry_delay", "1s")
	viper.SetDefault("webhooks.default_backoff_multiplier", 2.0)
	viper.SetDefault("webhooks.delivery_timeout", "30s")
	viper.SetDefault("webhooks.retry_scan_interval", "1m")
	viper.SetDefault("webhooks.inbound_per_minute", 600)
	viper.SetDefault("sync.scheduler_interval", "1m")
}
