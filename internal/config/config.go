// Package config loads service configuration from environment variables,
// following the same direct-env-read-with-defaults style used across the
// rest of this codebase rather than a reflection-based binding library.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
)

// Config holds every externally tunable knob for the ranking service.
type Config struct {
	DatabaseURL string
	SamplerCron string
	PoolSize    int
	ListenAddr  string
	LogLevel    string
}

// DefaultConfig returns the configuration used when no environment
// variable overrides a field.
func DefaultConfig() Config {
	return Config{
		SamplerCron: "* * * * *",
		PoolSize:    1500,
		ListenAddr:  ":8080",
		LogLevel:    "info",
	}
}

// Load reads Config from the process environment, applying defaults for
// anything unset.
func Load() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("SAMPLER_CRON"); v != "" {
		cfg.SamplerCron = v
	}
	if v := os.Getenv("POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parsing POOL_SIZE: %w", err)
		}
		cfg.PoolSize = n
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent enough
// to start the service.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("POOL_SIZE must be positive, got %d", c.PoolSize)
	}
	if _, err := cron.ParseStandard(c.SamplerCron); err != nil {
		return fmt.Errorf("invalid SAMPLER_CRON %q: %w", c.SamplerCron, err)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}
