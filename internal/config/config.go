package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

var globalConfig *Config

// Config holds all environment backed configuration for the chat service.
type Config struct {
	// HTTP Server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Database
	DatabaseURL          string        `env:"DATABASE_URL,notEmpty"`
	DBPostgresqlRead1DSN string        `env:"DB_POSTGRESQL_READ1_DSN"`
	DBMaxIdleConns       int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBMaxOpenConns       int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBConnMaxLifetime    time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	AutoMigrate          bool          `env:"AUTO_MIGRATE" envDefault:"true"`

	// Language model
	ModelBaseURL      string `env:"MODEL_BASE_URL" envDefault:"http://localhost:8001/v1"`
	ModelAPIKey       string `env:"MODEL_API_KEY" envDefault:"changeme"`
	ModelName         string `env:"MODEL_NAME" envDefault:"jan-v1-4b"`
	ModelSystemPrompt string `env:"MODEL_SYSTEM_PROMPT"`

	// Generation runtime
	GenerationMailboxSize int           `env:"GENERATION_MAILBOX_SIZE" envDefault:"16"`
	GenerationIdleTimeout time.Duration `env:"GENERATION_IDLE_TIMEOUT" envDefault:"5m"`
	GenerationSendTimeout time.Duration `env:"GENERATION_SEND_TIMEOUT" envDefault:"10s"`

	// Ownership leases
	RedisURL          string        `env:"REDIS_URL"`
	OwnershipLeaseTTL time.Duration `env:"OWNERSHIP_LEASE_TTL" envDefault:"30s"`

	// Orphan sweeper
	SweepEnabled         bool          `env:"SWEEP_ENABLED" envDefault:"true"`
	SweepIntervalMinutes int           `env:"SWEEP_INTERVAL_MINUTES" envDefault:"5"`
	SweepStaleAfter      time.Duration `env:"SWEEP_STALE_AFTER" envDefault:"15m"`

	// Observability / Logging
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string `env:"SERVICE_NAME" envDefault:"chat-api"`
	ServiceNamespace string `env:"SERVICE_NAMESPACE" envDefault:"jan"`
	ServiceVersion   string `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment      string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"console"`

	// Caller data in logs: none, hashed or full
	TelemetryPIILevel string `env:"TELEMETRY_PII_LEVEL" envDefault:"hashed"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	globalConfig = cfg
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTPPort)
	}
	if c.GenerationMailboxSize <= 0 {
		return errors.New("GENERATION_MAILBOX_SIZE must be positive")
	}
	if c.GenerationIdleTimeout <= 0 {
		return errors.New("GENERATION_IDLE_TIMEOUT must be positive")
	}
	if c.SweepEnabled && c.SweepIntervalMinutes <= 0 {
		return errors.New("SWEEP_INTERVAL_MINUTES must be positive when the sweeper is enabled")
	}
	if _, err := url.ParseRequestURI(c.ModelBaseURL); err != nil {
		return fmt.Errorf("invalid MODEL_BASE_URL: %w", err)
	}
	if c.RedisURL != "" {
		if _, err := url.Parse(c.RedisURL); err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
	}
	return nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsSQLite reports whether DATABASE_URL points at a SQLite database.
func (c *Config) IsSQLite() bool {
	return strings.HasPrefix(c.DatabaseURL, "sqlite:") || strings.HasPrefix(c.DatabaseURL, "file:")
}

// GetGlobal returns the config loaded last by Load.
func GetGlobal() *Config {
	return globalConfig
}
