// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server needs to start.
type Config struct {
	// HTTP server
	Port          string
	AllowedOrigin string

	// Database
	DBPath string

	// Cost splitting
	TaxRate string // fractional rate, e.g. "0.07"; parsed as a decimal at wiring time

	// Change notifier
	DebounceWindow time.Duration

	// Receipt scanning; empty disables the scan endpoint
	GeminiAPIKey string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "*"),
		DBPath:         getEnv("DB_PATH", "./data/tabsplit.db"),
		TaxRate:        getEnv("TAX_RATE", "0.07"),
		DebounceWindow: getEnvDuration("DEBOUNCE_WINDOW", 2*time.Second),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
	}
}

// Validate checks the configuration and returns an error describing every
// problem found.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if rate, err := strconv.ParseFloat(c.TaxRate, 64); err != nil {
		problems = append(problems, fmt.Sprintf("invalid tax rate %q: must be a number", c.TaxRate))
	} else if rate < 0 {
		problems = append(problems, fmt.Sprintf("invalid tax rate %v: must not be negative", rate))
	}

	if c.DebounceWindow <= 0 {
		problems = append(problems, fmt.Sprintf("invalid debounce window %v: must be positive", c.DebounceWindow))
	}

	// The store creates the database directory itself; validation only checks
	// that a path was given.
	if c.DBPath == "" {
		problems = append(problems, "database path cannot be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
