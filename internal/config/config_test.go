package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "sqlite:///tmp/mailseed.db"
  service_key: "file-key"

seed:
  batch_size: 50
  concurrency: 8
  mode: saga
  requests_per_second: 20
  session_ttl: 2h

journal:
  path: "/tmp/journal.db"

api:
  listen_addr: ":9080"
  api_key: "test-api-key"

metrics:
  enabled: true
  allowed_ips: ["10.0.0.0/8"]

logging:
  level: "debug"
  format: "text"
`)
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvServiceKey, "")
	t.Setenv(EnvAPIKey, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "sqlite:///tmp/mailseed.db" {
		t.Errorf("Database.URL = %v", cfg.Database.URL)
	}
	if cfg.Seed.BatchSize != 50 {
		t.Errorf("Seed.BatchSize = %v, want 50", cfg.Seed.BatchSize)
	}
	if cfg.Seed.Mode != "saga" {
		t.Errorf("Seed.Mode = %v, want saga", cfg.Seed.Mode)
	}
	if cfg.Seed.SessionTTL != 2*time.Hour {
		t.Errorf("Seed.SessionTTL = %v, want 2h", cfg.Seed.SessionTTL)
	}
	if cfg.Journal.Path != "/tmp/journal.db" {
		t.Errorf("Journal.Path = %v", cfg.Journal.Path)
	}
	if cfg.API.APIKey != "test-api-key" {
		t.Errorf("API.APIKey = %v", cfg.API.APIKey)
	}
	if !cfg.Metrics.Enabled || len(cfg.Metrics.AllowedIPs) != 1 {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://seeder@localhost/mail")
	t.Setenv(EnvServiceKey, "env-key")
	t.Setenv(EnvAPIKey, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Seed.BatchSize != 200 {
		t.Errorf("default Seed.BatchSize = %v, want 200", cfg.Seed.BatchSize)
	}
	if cfg.Seed.Concurrency != 4 {
		t.Errorf("default Seed.Concurrency = %v, want 4", cfg.Seed.Concurrency)
	}
	if cfg.Seed.Mode != "transaction" {
		t.Errorf("default Seed.Mode = %v, want transaction", cfg.Seed.Mode)
	}
	if cfg.Seed.SessionTTL != 24*time.Hour {
		t.Errorf("default Seed.SessionTTL = %v, want 24h", cfg.Seed.SessionTTL)
	}
	if cfg.Journal.LockTimeout != 5*time.Second {
		t.Errorf("default Journal.LockTimeout = %v, want 5s", cfg.Journal.LockTimeout)
	}
	if cfg.API.ListenAddr != ":8080" {
		t.Errorf("default API.ListenAddr = %v, want :8080", cfg.API.ListenAddr)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %v, want /metrics", cfg.Metrics.Path)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default Logging = %+v", cfg.Logging)
	}
	if err := cfg.RequireAPIKey(); err == nil {
		t.Error("RequireAPIKey() should fail without a key")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "sqlite:///tmp/file.db"
  service_key: "file-key"
`)
	t.Setenv(EnvDatabaseURL, "sqlite:///tmp/env.db")
	t.Setenv(EnvServiceKey, "env-key")
	t.Setenv(EnvAPIKey, "env-api")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.URL != "sqlite:///tmp/env.db" {
		t.Errorf("Database.URL = %v, want env value", cfg.Database.URL)
	}
	if cfg.Database.ServiceKey != "env-key" {
		t.Errorf("ServiceKey = %v, want env value", cfg.Database.ServiceKey)
	}
	if cfg.API.APIKey != "env-api" {
		t.Errorf("APIKey = %v, want env value", cfg.API.APIKey)
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		key     string
		wantErr string
	}{
		{"no url", "", "k", EnvDatabaseURL},
		{"no key", "sqlite:///tmp/x.db", "", EnvServiceKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDatabaseURL, tt.url)
			t.Setenv(EnvServiceKey, tt.key)

			_, err := Load("")
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not name %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{Database: DatabaseConfig{URL: "sqlite:///tmp/x.db", ServiceKey: "k"}}
		c.setDefaults()
		return c
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unsupported scheme", func(c *Config) { c.Database.URL = "mysql://x" }, true},
		{"batch too large", func(c *Config) { c.Seed.BatchSize = 5000 }, true},
		{"zero concurrency", func(c *Config) { c.Seed.Concurrency = -1 }, true},
		{"bad mode", func(c *Config) { c.Seed.Mode = "yolo" }, true},
		{"negative rate", func(c *Config) { c.Seed.RequestsPerSecond = -1 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"postgresql scheme", func(c *Config) { c.Database.URL = "postgresql://u@h/db" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "database: [unterminated")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}
