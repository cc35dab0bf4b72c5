package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// MonitorConfig drives journai-health, both for a single check and the monitor loop.
type MonitorConfig struct {
	AppURL        string        `env:"JOURNAI_APP_URL,required,notEmpty"`
	Interval      time.Duration `env:"JOURNAI_HEALTH_INTERVAL" envDefault:"30s"`
	Timeout       time.Duration `env:"JOURNAI_HEALTH_TIMEOUT" envDefault:"10s"`
	DatabaseURL   string        `env:"JOURNAI_DATABASE_URL"`
	DataAPIURL    string        `env:"SUPABASE_URL"`
	DataAPIKey    string        `env:"SUPABASE_ANON_KEY"`
	ProjectID     string        `env:"JOURNAI_PROJECT_ID"`
	StorageBucket string        `env:"JOURNAI_STORAGE_BUCKET"`

	// HMAC interoperability keys switch the storage probe to the S3-compatible XML API.
	StorageHMACAccessKey string `env:"JOURNAI_STORAGE_HMAC_ACCESS_KEY"`
	StorageHMACSecret    string `env:"JOURNAI_STORAGE_HMAC_SECRET"`
	StorageEndpoint      string `env:"JOURNAI_STORAGE_ENDPOINT" envDefault:"https://storage.googleapis.com"`

	SlackWebhookURL      string `env:"JOURNAI_SLACK_WEBHOOK_URL"`
	AlertWebhookURL      string `env:"JOURNAI_ALERT_WEBHOOK_URL"`
	AlertWebhookTemplate string `env:"JOURNAI_ALERT_WEBHOOK_TEMPLATE"`
	AlertLogName         string `env:"JOURNAI_ALERT_LOG_NAME" envDefault:"journai-health-alerts"`
	CloudLoggingAlerts   bool   `env:"JOURNAI_ALERT_CLOUD_LOGGING" envDefault:"false"`
	DryRun               bool   `env:"JOURNAI_DRY_RUN" envDefault:"false"`

	LogLevel    string `env:"JOURNAI_LOG_LEVEL" envDefault:"info"`
	HealthPort  int    `env:"JOURNAI_HEALTH_PORT" envDefault:"8080"`
	MetricsPort int    `env:"JOURNAI_METRICS_PORT" envDefault:"9090"`
}

// LoadMonitor reads MonitorConfig from the environment and an optional .env
// file in dir. An empty dir means the current directory.
func LoadMonitor(dir string) (MonitorConfig, error) {
	if err := loadDotEnvIfPresent(dotEnvPath(dir)); err != nil {
		return MonitorConfig{}, err
	}

	var cfg MonitorConfig
	if err := env.Parse(&cfg); err != nil {
		return MonitorConfig{}, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := validateURL(cfg.AppURL, "JOURNAI_APP_URL"); err != nil {
		return MonitorConfig{}, err
	}
	if cfg.Interval <= 0 {
		return MonitorConfig{}, fmt.Errorf("JOURNAI_HEALTH_INTERVAL must be greater than 0")
	}
	if cfg.Timeout <= 0 {
		return MonitorConfig{}, fmt.Errorf("JOURNAI_HEALTH_TIMEOUT must be greater than 0")
	}
	for name, value := range map[string]string{
		"SUPABASE_URL":              cfg.DataAPIURL,
		"JOURNAI_SLACK_WEBHOOK_URL": cfg.SlackWebhookURL,
		"JOURNAI_ALERT_WEBHOOK_URL": cfg.AlertWebhookURL,
		"JOURNAI_STORAGE_ENDPOINT":  cfg.StorageEndpoint,
	} {
		if value == "" {
			continue
		}
		if err := validateURL(value, name); err != nil {
			return MonitorConfig{}, err
		}
	}
	if (cfg.StorageHMACAccessKey == "") != (cfg.StorageHMACSecret == "") {
		return MonitorConfig{}, fmt.Errorf("JOURNAI_STORAGE_HMAC_ACCESS_KEY and JOURNAI_STORAGE_HMAC_SECRET must be set together")
	}
	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		return MonitorConfig{}, fmt.Errorf("JOURNAI_HEALTH_PORT out of range: %d", cfg.HealthPort)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return MonitorConfig{}, fmt.Errorf("JOURNAI_METRICS_PORT out of range: %d", cfg.MetricsPort)
	}

	return cfg, nil
}

// UsesHMACStorage reports whether bucket probes go through the S3-compatible API.
func (c MonitorConfig) UsesHMACStorage() bool {
	return c.StorageHMACAccessKey != "" && c.StorageHMACSecret != ""
}
