package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Economy.PoolSize != 100 {
		t.Errorf("PoolSize = %d, want 100", cfg.Economy.PoolSize)
	}
	if cfg.Economy.MinQualityThreshold != 0.85 {
		t.Errorf("MinQualityThreshold = %v, want 0.85", cfg.Economy.MinQualityThreshold)
	}
	if cfg.Enforcement.CycleDays != 3 {
		t.Errorf("Enforcement.CycleDays = %d, want 3", cfg.Enforcement.CycleDays)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rank.yaml")
	content := []byte("economy:\n  pool_size: 50\n  cycle_days: 1\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Economy.PoolSize != 50 {
		t.Errorf("PoolSize = %d, want 50", cfg.Economy.PoolSize)
	}
	if cfg.Economy.CycleDays != 1 {
		t.Errorf("CycleDays = %d, want 1", cfg.Economy.CycleDays)
	}
	// Untouched sections keep their defaults.
	if cfg.Feedback.ThresholdCeil != 0.95 {
		t.Errorf("ThresholdCeil = %v, want 0.95", cfg.Feedback.ThresholdCeil)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero pool", func(c *Config) { c.Economy.PoolSize = 0 }},
		{"cap over pool", func(c *Config) { c.Economy.MaxCookiesPerInsight = 1000 }},
		{"threshold out of range", func(c *Config) { c.Economy.MinQualityThreshold = 1.5 }},
		{"inverted clamp bounds", func(c *Config) { c.Feedback.ThresholdFloor = 0.99 }},
		{"zero cadence", func(c *Config) { c.Enforcement.CycleDays = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}
