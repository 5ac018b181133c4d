package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file
const (
	EnvDatabaseURL = "MAILSEED_DATABASE_URL"
	EnvServiceKey  = "MAILSEED_SERVICE_KEY"
	EnvAPIKey      = "MAILSEED_API_KEY"
)

// Config represents the mailseed configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Seed     SeedConfig     `yaml:"seed"`
	Journal  JournalConfig  `yaml:"journal"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig locates the relational store
type DatabaseConfig struct {
	URL        string `yaml:"url"`         // postgres://... or sqlite://path
	ServiceKey string `yaml:"service_key"` // privileged credential, normally from the environment
}

// SeedConfig tunes how seed data is written
type SeedConfig struct {
	BatchSize         int           `yaml:"batch_size"`
	Concurrency       int           `yaml:"concurrency"`
	Mode              string        `yaml:"mode"` // transaction, saga
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	SelfName          string        `yaml:"self_name"`
	SelfEmail         string        `yaml:"self_email"`
}

// JournalConfig locates the saga write journal
type JournalConfig struct {
	Path        string        `yaml:"path"` // empty keeps the journal in memory
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// APIConfig contains admin HTTP API settings
type APIConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	APIKey       string        `yaml:"api_key"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ListenAddr    string        `yaml:"listen_addr"`
	Path          string        `yaml:"path"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	AllowedIPs    []string      `yaml:"allowed_ips"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load reads the optional YAML file at path, applies the environment and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv lets the environment override credentials and the store URL
func (c *Config) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvDatabaseURL)); v != "" {
		c.Database.URL = v
	}
	if v := strings.TrimSpace(getenv(EnvServiceKey)); v != "" {
		c.Database.ServiceKey = v
	}
	if v := strings.TrimSpace(getenv(EnvAPIKey)); v != "" {
		c.API.APIKey = v
	}
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Seed.BatchSize == 0 {
		c.Seed.BatchSize = 200
	}
	if c.Seed.Concurrency == 0 {
		c.Seed.Concurrency = 4
	}
	if c.Seed.Mode == "" {
		c.Seed.Mode = "transaction"
	}
	if c.Seed.SessionTTL == 0 {
		c.Seed.SessionTTL = 24 * time.Hour
	}
	if c.Seed.SelfName == "" {
		c.Seed.SelfName = "Me"
	}
	if c.Seed.SelfEmail == "" {
		c.Seed.SelfEmail = "me@mailseed.local"
	}

	if c.Journal.LockTimeout == 0 {
		c.Journal.LockTimeout = 5 * time.Second
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 30 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 60 * time.Second
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = 60 * time.Second
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.FlushInterval == 0 {
		c.Metrics.FlushInterval = 10 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required (set %s or database.url)", EnvDatabaseURL)
	}
	if !strings.HasPrefix(c.Database.URL, "postgres://") &&
		!strings.HasPrefix(c.Database.URL, "postgresql://") &&
		!strings.HasPrefix(c.Database.URL, "sqlite://") {
		return fmt.Errorf("database URL must start with postgres://, postgresql:// or sqlite://")
	}
	if c.Database.ServiceKey == "" {
		return fmt.Errorf("service key is required (set %s or database.service_key)", EnvServiceKey)
	}

	if c.Seed.BatchSize < 1 || c.Seed.BatchSize > 1000 {
		return fmt.Errorf("seed.batch_size must be between 1 and 1000, got %d", c.Seed.BatchSize)
	}
	if c.Seed.Concurrency < 1 {
		return fmt.Errorf("seed.concurrency must be positive, got %d", c.Seed.Concurrency)
	}
	if c.Seed.Mode != "transaction" && c.Seed.Mode != "saga" {
		return fmt.Errorf("invalid seed.mode: %s (must be transaction or saga)", c.Seed.Mode)
	}
	if c.Seed.RequestsPerSecond < 0 {
		return fmt.Errorf("seed.requests_per_second must not be negative")
	}
	if c.Seed.SessionTTL < 0 {
		return fmt.Errorf("seed.session_ttl must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

// RequireAPIKey reports an error when the admin API has no key configured
func (c *Config) RequireAPIKey() error {
	if c.API.APIKey == "" {
		return fmt.Errorf("api key is required to serve the admin API (set %s or api.api_key)", EnvAPIKey)
	}
	return nil
}
