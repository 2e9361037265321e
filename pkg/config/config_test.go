package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.ListenAddress != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Path != "leadforge.db" {
		t.Errorf("expected leadforge.db, got %s", cfg.Storage.Path)
	}
	if cfg.Scheduler.TickInterval != time.Minute {
		t.Errorf("expected 1m tick interval, got %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.MaxSendAttempts != 10 {
		t.Errorf("expected 10 max send attempts, got %d", cfg.Scheduler.MaxSendAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.Server.ListenAddress != ":8080" {
		t.Errorf("expected default listen address, got %s", cfg.Server.ListenAddress)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  listen_address: ":9090"
storage:
  path: /var/lib/leadforge/leadforge.db
scheduler:
  tick_interval: 30s
  max_parallel_sends: 4
catalog:
  paths:
    - /etc/leadforge/templates
  watch: true
telemetry:
  logging:
    level: debug
    format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Path != "/var/lib/leadforge/leadforge.db" {
		t.Errorf("unexpected storage path: %s", cfg.Storage.Path)
	}
	if cfg.Scheduler.TickInterval != 30*time.Second {
		t.Errorf("expected 30s tick interval, got %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.MaxParallelSends != 4 {
		t.Errorf("expected 4 parallel sends, got %d", cfg.Scheduler.MaxParallelSends)
	}
	// Unset file keys keep their defaults.
	if cfg.Scheduler.MaxSendAttempts != 10 {
		t.Errorf("expected default max send attempts, got %d", cfg.Scheduler.MaxSendAttempts)
	}
	if !cfg.Catalog.Watch {
		t.Error("expected catalog watch enabled")
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Telemetry.Logging)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LEADFORGE_LISTEN_ADDRESS", ":7070")
	t.Setenv("LEADFORGE_DB_PATH", "/tmp/override.db")
	t.Setenv("LEADFORGE_TICK_INTERVAL", "15s")
	t.Setenv("LEADFORGE_MAX_SEND_ATTEMPTS", "3")
	t.Setenv("LEADFORGE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != ":7070" {
		t.Errorf("expected :7070, got %s", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Path != "/tmp/override.db" {
		t.Errorf("expected /tmp/override.db, got %s", cfg.Storage.Path)
	}
	if cfg.Scheduler.TickInterval != 15*time.Second {
		t.Errorf("expected 15s tick interval, got %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.MaxSendAttempts != 3 {
		t.Errorf("expected 3 max send attempts, got %d", cfg.Scheduler.MaxSendAttempts)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected warn log level, got %s", cfg.Telemetry.Logging.Level)
	}
}

func TestValidate_ZeroMaxSendAttempts(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.MaxSendAttempts = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero max send attempts disables the cap and should validate: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen address", func(c *Config) { c.Server.ListenAddress = "" }},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }},
		{"zero tick interval", func(c *Config) { c.Scheduler.TickInterval = 0 }},
		{"negative max send attempts", func(c *Config) { c.Scheduler.MaxSendAttempts = -1 }},
		{"bad log level", func(c *Config) { c.Telemetry.Logging.Level = "loud" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestTelemetryConfig(t *testing.T) {
	t.Setenv("LEADFORGE_ENV", "production")

	cfg := Default()
	tel := cfg.TelemetryConfig("1.2.3")

	if tel.ServiceName != "leadforge" {
		t.Errorf("expected service name leadforge, got %s", tel.ServiceName)
	}
	if tel.ServiceVersion != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", tel.ServiceVersion)
	}
	if tel.Environment != "production" {
		t.Errorf("expected production environment, got %s", tel.Environment)
	}
}
