// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Billing provider webhook settings
	WebhookSecret      string        // Shared HMAC signing secret from the billing provider
	WebhookRateLimit   int           // Max webhook requests per client per window
	WebhookRateWindow  time.Duration // Fixed rate-limit window
	TimestampTolerance time.Duration // Max |now - payload timestamp| before a replay reject

	// Admin API
	AdminSecret string // X-Admin-Secret header value for admin routes

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (empty = disabled)
}

// Defaults
const (
	DefaultPort               = "8080"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultRateLimit          = 100
	DefaultRateWindowSeconds  = 60
	DefaultTimestampTolerance = 300
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:        os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		WebhookSecret:      os.Getenv("LEMONSQUEEZY_WEBHOOK_SECRET"),
		WebhookRateLimit:   int(getEnvInt64("WEBHOOK_RATE_LIMIT", DefaultRateLimit)),
		WebhookRateWindow:  time.Duration(getEnvInt64("WEBHOOK_RATE_WINDOW_SECONDS", DefaultRateWindowSeconds)) * time.Second,
		TimestampTolerance: time.Duration(getEnvInt64("WEBHOOK_TIMESTAMP_TOLERANCE_SECONDS", DefaultTimestampTolerance)) * time.Second,
		AdminSecret:        os.Getenv("ADMIN_SECRET"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
// The webhook secret is only enforced outside development so local
// servers can boot without provider credentials; the webhook endpoint
// itself rejects every request until the secret is configured.
func (c *Config) Validate() error {
	if c.IsProduction() && c.WebhookSecret == "" {
		return fmt.Errorf("LEMONSQUEEZY_WEBHOOK_SECRET is required in production")
	}

	if c.WebhookRateLimit <= 0 {
		return fmt.Errorf("WEBHOOK_RATE_LIMIT must be positive")
	}
	if c.WebhookRateWindow <= 0 {
		return fmt.Errorf("WEBHOOK_RATE_WINDOW_SECONDS must be positive")
	}
	if c.TimestampTolerance < 0 {
		return fmt.Errorf("WEBHOOK_TIMESTAMP_TOLERANCE_SECONDS must not be negative")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}
