package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestLoadFallsBackToDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Framework.LogLevel != "info" {
		t.Fatalf("expected default log level, got %q", cfg.Framework.LogLevel)
	}
}

func TestLoadExpandsEnvAndOverridesLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "framework:\n  log_level: warn\n  version: ${TEST_VERSION}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	t.Setenv("TEST_VERSION", "v9")
	t.Setenv("RESILIENCE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Framework.Version != "v9" {
		t.Fatalf("expected expanded env var, got %q", cfg.Framework.Version)
	}
	if cfg.Framework.LogLevel != "debug" {
		t.Fatalf("expected env override to win, got %q", cfg.Framework.LogLevel)
	}
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Criticality.StressWeight = 0.9
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for weights not summing to 1.0")
	}
}
