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

	// Underwriting settings
	MaxCoverage      uint64        // largest coverage amount create-policy accepts, minor units
	PolicyTermBlocks uint64        // fixed policy validity window in ledger blocks
	BlockTime        time.Duration // interval at which the ledger sequence advances

	// Security
	AdminSecret  string // Admin API secret; empty disables the admin surface
	RateLimitRPS int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing
}

// Defaults
const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultMaxCoverage      = 1_000_000_000_000 // 1M units at 6 decimals
	DefaultPolicyTermBlocks = 52560             // roughly one year of 10-minute blocks
	DefaultBlockTime        = 10 * time.Minute
	DefaultRateLimit        = 100
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		MaxCoverage:      getEnvUint64("MAX_COVERAGE", DefaultMaxCoverage),
		PolicyTermBlocks: getEnvUint64("POLICY_TERM_BLOCKS", DefaultPolicyTermBlocks),
		BlockTime:        getEnvDuration("BLOCK_TIME", DefaultBlockTime),
		AdminSecret:      os.Getenv("ADMIN_SECRET"),
		RateLimitRPS:     int(getEnvUint64("RATE_LIMIT_RPS", DefaultRateLimit)),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent
func (c *Config) Validate() error {
	if c.MaxCoverage == 0 {
		return fmt.Errorf("MAX_COVERAGE must be positive")
	}
	if c.PolicyTermBlocks == 0 {
		return fmt.Errorf("POLICY_TERM_BLOCKS must be positive")
	}
	if c.BlockTime <= 0 {
		return fmt.Errorf("BLOCK_TIME must be positive")
	}
	if c.IsProduction() && c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required in production")
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

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
