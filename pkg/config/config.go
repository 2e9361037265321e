package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/leadforge/leadforge/pkg/telemetry"
)

// Config is the top-level application configuration.
type Config struct {
	// Server configures the HTTP API server.
	Server ServerConfig `yaml:"server"`

	// Storage configures the persistence layer.
	Storage StorageConfig `yaml:"storage"`

	// Scheduler configures the drip scheduler.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Catalog configures campaign template loading.
	Catalog CatalogConfig `yaml:"catalog"`

	// Telemetry configures logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the host:port the API server binds to.
	ListenAddress string `yaml:"listen_address" validate:"required"`

	// ReadTimeout bounds request read time.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds response write time.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig configures the persistence layer.
type StorageConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" validate:"required"`
}

// SchedulerConfig configures the drip scheduler.
type SchedulerConfig struct {
	// TickInterval is how often the scheduler evaluates memberships.
	TickInterval time.Duration `yaml:"tick_interval" validate:"gt=0"`

	// MaxParallelSends bounds concurrent sends per tick.
	MaxParallelSends int `yaml:"max_parallel_sends" validate:"gt=0"`

	// MaxSendAttempts caps retries for a single step before the membership
	// is parked. Zero disables the cap.
	MaxSendAttempts int `yaml:"max_send_attempts" validate:"gte=0"`
}

// CatalogConfig configures campaign template loading.
type CatalogConfig struct {
	// Paths are files or directories to load templates from.
	Paths []string `yaml:"paths"`

	// Watch enables hot reloading of templates on file changes.
	Watch bool `yaml:"watch"`
}

// TelemetryConfig mirrors the telemetry package configuration.
type TelemetryConfig struct {
	Logging  telemetry.LoggingConfig  `yaml:"logging"`
	Tracing  telemetry.TracingConfig  `yaml:"tracing"`
	Metrics  telemetry.MetricsConfig  `yaml:"metrics"`
	Activity telemetry.ActivityConfig `yaml:"activity"`
}

// Default returns the default application configuration.
func Default() *Config {
	tel := telemetry.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			ListenAddress:   ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Path: "leadforge.db",
		},
		Scheduler: SchedulerConfig{
			TickInterval:     time.Minute,
			MaxParallelSends: 10,
			MaxSendAttempts:  10,
		},
		Catalog: CatalogConfig{
			Paths: []string{"templates"},
			Watch: false,
		},
		Telemetry: TelemetryConfig{
			Logging:  tel.Logging,
			Tracing:  tel.Tracing,
			Metrics:  tel.Metrics,
			Activity: tel.Activity,
		},
	}
}

// Load reads configuration from an optional YAML file, applies environment
// overrides, and validates the result. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel := telemetry.Config{
		ServiceName: "leadforge",
		Logging:     c.Telemetry.Logging,
		Tracing:     c.Telemetry.Tracing,
		Metrics:     c.Telemetry.Metrics,
		Activity:    c.Telemetry.Activity,
	}
	if err := tel.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	return nil
}

// TelemetryConfig assembles the telemetry package configuration.
func (c *Config) TelemetryConfig(version string) *telemetry.Config {
	env := os.Getenv("LEADFORGE_ENV")
	if env == "" {
		env = "development"
	}
	return &telemetry.Config{
		ServiceName:    "leadforge",
		ServiceVersion: version,
		Environment:    env,
		Logging:        c.Telemetry.Logging,
		Tracing:        c.Telemetry.Tracing,
		Metrics:        c.Telemetry.Metrics,
		Activity:       c.Telemetry.Activity,
	}
}

// applyEnvOverrides applies LEADFORGE_* environment variables over the
// loaded configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEADFORGE_LISTEN_ADDRESS"); v != "" {
		cfg.Server.ListenAddress = v
	}
	if v := os.Getenv("LEADFORGE_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("LEADFORGE_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.TickInterval = d
		}
	}
	if v := os.Getenv("LEADFORGE_MAX_PARALLEL_SENDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.MaxParallelSends = n
		}
	}
	if v := os.Getenv("LEADFORGE_MAX_SEND_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.MaxSendAttempts = n
		}
	}
	if v := os.Getenv("LEADFORGE_LOG_LEVEL"); v != "" {
		cfg.Telemetry.Logging.Level = v
	}
	if v := os.Getenv("LEADFORGE_LOG_FORMAT"); v != "" {
		cfg.Telemetry.Logging.Format = v
	}
	if v := os.Getenv("LEADFORGE_TRACE_EXPORTER"); v != "" {
		cfg.Telemetry.Tracing.Exporter = v
	}
	if v := os.Getenv("LEADFORGE_TRACE_ENDPOINT"); v != "" {
		cfg.Telemetry.Tracing.Endpoint = v
	}
}
