package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.TaxRate != "0.07" {
		t.Errorf("tax rate = %q, want 0.07", cfg.TaxRate)
	}
	if cfg.DebounceWindow != 2*time.Second {
		t.Errorf("debounce window = %v, want 2s", cfg.DebounceWindow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TAX_RATE", "0.0825")
	t.Setenv("DEBOUNCE_WINDOW", "500ms")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Port)
	}
	if cfg.TaxRate != "0.0825" {
		t.Errorf("tax rate = %q, want 0.0825", cfg.TaxRate)
	}
	if cfg.DebounceWindow != 500*time.Millisecond {
		t.Errorf("debounce window = %v, want 500ms", cfg.DebounceWindow)
	}
}

func TestValidateHasNoSideEffects(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	t.Setenv("DB_PATH", filepath.Join(dir, "app.db"))

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Validate created %q; directory creation belongs to the store", dir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"non-numeric port", func(c *Config) { c.Port = "http" }},
		{"port out of range", func(c *Config) { c.Port = "70000" }},
		{"non-numeric tax rate", func(c *Config) { c.TaxRate = "seven percent" }},
		{"negative tax rate", func(c *Config) { c.TaxRate = "-0.07" }},
		{"zero debounce window", func(c *Config) { c.DebounceWindow = 0 }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
