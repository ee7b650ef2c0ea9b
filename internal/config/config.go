// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/kamazennext/catalog/internal/auth"
)

// Ledger drivers.
const (
	LedgerDriverFile     = "file"
	LedgerDriverPostgres = "postgres"
)

// Metrics backends.
const (
	MetricsPrometheus = "prometheus"
	MetricsMemory     = "memory"
)

// devIPSalt is only acceptable outside production.
const devIPSalt = "dev-only-click-salt"

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Catalog store. Paths are resolved once at startup.
	CatalogPath        string        `env:"CATALOG_PATH" envDefault:"data/products.json"`
	BackupDir          string        `env:"BACKUP_DIR" envDefault:""` // defaults to <catalog dir>/backups
	BackupRetention    int           `env:"BACKUP_RETENTION" envDefault:"0"`
	CatalogLockTimeout time.Duration `env:"CATALOG_LOCK_TIMEOUT" envDefault:"5s"`

	// Click ledger
	LedgerDriver       string        `env:"LEDGER_DRIVER" envDefault:"file"`
	LedgerDir          string        `env:"LEDGER_DIR" envDefault:"data/clicks"`
	ClickIPSalt        string        `env:"CLICK_IP_SALT" envDefault:"dev-only-click-salt"`
	ClickAppendTimeout time.Duration `env:"CLICK_APPEND_TIMEOUT" envDefault:"2s"`

	// Database (PostgreSQL), required by LEDGER_DRIVER=postgres
	DatabaseURL string `env:"DATABASE_URL"`

	// Cache (Redis). Optional: enables shared import sessions and the admin
	// rate limiter.
	RedisURL string `env:"REDIS_URL"`

	// Admin access
	AdminUser         string        `env:"ADMIN_USER" envDefault:"admin"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"` // Argon2id PHC string; empty disables admin
	AdminSessionTTL   time.Duration `env:"ADMIN_SESSION_TTL" envDefault:"12h"`

	// Bulk import
	ImportRequiredColumns []string      `env:"IMPORT_REQUIRED_COLUMNS" envSeparator:"," envDefault:"name,category,website_url"`
	ImportPreviewRows     int           `env:"IMPORT_PREVIEW_ROWS" envDefault:"10"`
	ImportTokenTTL        time.Duration `env:"IMPORT_TOKEN_TTL" envDefault:"30m"`
	ImportMaxRows         int           `env:"IMPORT_MAX_ROWS" envDefault:"5000"`
	ImportMaxUploadBytes  int64         `env:"IMPORT_MAX_UPLOAD_BYTES" envDefault:"2097152"`

	// Metrics
	MetricsBackend string `env:"METRICS_BACKEND" envDefault:"prometheus"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitRedirectEnabled  bool          `env:"RATE_LIMIT_REDIRECT_ENABLED" envDefault:"true"`
	RateLimitRedirectRequests int           `env:"RATE_LIMIT_REDIRECT_REQUESTS" envDefault:"120"`
	RateLimitRedirectWindow   time.Duration `env:"RATE_LIMIT_REDIRECT_WINDOW" envDefault:"1m"`
	RateLimitAdminPerMinute   int           `env:"RATE_LIMIT_ADMIN_PER_MINUTE" envDefault:"60"`
	RateLimitAdminBurst       int           `env:"RATE_LIMIT_ADMIN_BURST" envDefault:"20"`

	// CORS configuration for the public read API
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes for JSON endpoints (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AdminEnabled reports whether an admin password hash is configured.
func (c *Config) AdminEnabled() bool {
	return c.AdminPasswordHash != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// RequiredColumns returns the trimmed, lower-cased required import columns.
func (c *Config) RequiredColumns() []string {
	out := make([]string, 0, len(c.ImportRequiredColumns))
	for _, col := range c.ImportRequiredColumns {
		if trimmed := strings.ToLower(strings.TrimSpace(col)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.CatalogPath) == "" {
		errs = append(errs, errors.New("CATALOG_PATH must not be empty"))
	}

	switch c.LedgerDriver {
	case LedgerDriverFile:
		if strings.TrimSpace(c.LedgerDir) == "" {
			errs = append(errs, errors.New("LEDGER_DIR must not be empty"))
		}
	case LedgerDriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when LEDGER_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("LEDGER_DRIVER must be %q or %q, got %q", LedgerDriverFile, LedgerDriverPostgres, c.LedgerDriver))
	}

	if c.MetricsBackend != MetricsPrometheus && c.MetricsBackend != MetricsMemory {
		errs = append(errs, fmt.Errorf("METRICS_BACKEND must be %q or %q, got %q", MetricsPrometheus, MetricsMemory, c.MetricsBackend))
	}

	if c.ClickIPSalt == "" {
		errs = append(errs, errors.New("CLICK_IP_SALT must not be empty"))
	} else if c.IsProduction() && c.ClickIPSalt == devIPSalt {
		errs = append(errs, errors.New("CLICK_IP_SALT must be set in production"))
	}

	if c.AdminPasswordHash != "" {
		if err := auth.CheckHash(c.AdminPasswordHash); err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_PASSWORD_HASH: %w", err))
		}
	}

	if len(c.RequiredColumns()) == 0 {
		errs = append(errs, errors.New("IMPORT_REQUIRED_COLUMNS must name at least one column"))
	}
	if c.ImportMaxUploadBytes <= 0 {
		errs = append(errs, errors.New("IMPORT_MAX_UPLOAD_BYTES must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
