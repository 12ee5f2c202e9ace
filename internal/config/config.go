// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Market        MarketConfig        `yaml:"market"`
	Monitor       MonitorConfig       `yaml:"monitor"`
	Swap          SwapConfig          `yaml:"swap"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig defines the sample/alert store settings. Driver "postgres"
// is the production store; "memory" runs everything in-process for local
// development.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// MarketConfig defines market-data provider settings.
type MarketConfig struct {
	APIKey    string          `yaml:"api_key"`
	BaseURL   string          `yaml:"base_url"`
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines provider API rate limiting settings.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second"`
	Burst      int     `yaml:"burst"`
	DailyLimit int64   `yaml:"daily_limit"`
}

// MonitorConfig defines the scheduled price monitoring settings.
type MonitorConfig struct {
	Chains         []string      `yaml:"chains"`
	Schedule       string        `yaml:"schedule"`
	SurgeThreshold float64       `yaml:"surge_threshold"`
	SurgeWindow    time.Duration `yaml:"surge_window"`
	AdminEmail     string        `yaml:"admin_email"`
}

// SwapConfig defines the cross-asset swap-rate calculation settings.
type SwapConfig struct {
	SourceAsset string  `yaml:"source_asset"`
	TargetAsset string  `yaml:"target_asset"`
	FeeRate     float64 `yaml:"fee_rate"`
}

// NotificationsConfig defines notification delivery settings.
type NotificationsConfig struct {
	Backend string        `yaml:"backend"` // smtp, webhook, noop
	SMTP    SMTPConfig    `yaml:"smtp"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SMTPConfig defines SMTP email delivery settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// WebhookConfig defines generic webhook delivery settings.
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyMarketDefaults(&cfg.Market)
	applyMonitorDefaults(&cfg.Monitor)
	applySwapDefaults(&cfg.Swap)
	applyNotificationsDefaults(&cfg.Notifications)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Driver == "" {
		d.Driver = "postgres"
	}
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyMarketDefaults(m *MarketConfig) {
	if m.BaseURL == "" {
		m.BaseURL = "https://deep-index.moralis.io/api/v2.2/market-data/global/market-cap"
	}
	if m.Timeout == 0 {
		m.Timeout = 10 * time.Second
	}
	if m.RateLimit.PerSecond == 0 {
		m.RateLimit.PerSecond = 2.0
	}
	if m.RateLimit.Burst == 0 {
		m.RateLimit.Burst = 5
	}
	if m.RateLimit.DailyLimit == 0 {
		m.RateLimit.DailyLimit = 2000
	}
}

func applyMonitorDefaults(m *MonitorConfig) {
	if len(m.Chains) == 0 {
		m.Chains = []string{"ethereum", "polygon"}
	}
	if m.Schedule == "" {
		m.Schedule = "*/5 * * * *"
	}
	if m.SurgeThreshold == 0 {
		m.SurgeThreshold = 1.03
	}
	if m.SurgeWindow == 0 {
		m.SurgeWindow = time.Hour
	}
}

func applySwapDefaults(s *SwapConfig) {
	if s.SourceAsset == "" {
		s.SourceAsset = "ethereum"
	}
	if s.TargetAsset == "" {
		s.TargetAsset = "bitcoin"
	}
	if s.FeeRate == 0 {
		s.FeeRate = 0.03
	}
}

func applyNotificationsDefaults(n *NotificationsConfig) {
	if n.Backend == "" {
		n.Backend = "noop"
	}
	if n.SMTP.Port == 0 {
		n.SMTP.Port = 587
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if cfg.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.name is required"))
		}
		if cfg.Database.User == "" {
			errs = append(errs, fmt.Errorf("database.user is required"))
		}
	case "memory":
		// No connection settings needed.
	default:
		errs = append(errs, fmt.Errorf(
			"database.driver must be one of: postgres, memory (got %q)",
			cfg.Database.Driver,
		))
	}

	if cfg.Market.APIKey == "" {
		errs = append(errs, fmt.Errorf("market.api_key is required"))
	}

	if cfg.Monitor.AdminEmail == "" {
		errs = append(errs, fmt.Errorf("monitor.admin_email is required"))
	}

	switch cfg.Notifications.Backend {
	case "smtp":
		if cfg.Notifications.SMTP.Host == "" {
			errs = append(errs, fmt.Errorf(
				"notifications.smtp.host is required when backend is smtp",
			))
		}
		if cfg.Notifications.SMTP.From == "" {
			errs = append(errs, fmt.Errorf(
				"notifications.smtp.from is required when backend is smtp",
			))
		}
	case "webhook":
		if cfg.Notifications.Webhook.URL == "" {
			errs = append(errs, fmt.Errorf(
				"notifications.webhook.url is required when backend is webhook",
			))
		}
	case "noop":
		// Nothing to validate.
	default:
		errs = append(errs, fmt.Errorf(
			"notifications.backend must be one of: smtp, webhook, noop (got %q)",
			cfg.Notifications.Backend,
		))
	}

	return errors.Join(errs...)
}
