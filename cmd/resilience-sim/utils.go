package main

import (
	"fmt"
	"os"

	"github.com/jihwankim/resilience-core/pkg/config"
	"github.com/jihwankim/resilience-core/pkg/reporting"
)

// resolveLogLevel honors cfg.Framework.LogLevel, with --verbose forcing
// debug regardless of what the config file says.
func resolveLogLevel(cfg *config.Config) reporting.LogLevel {
	if verbose {
		return reporting.LogLevelDebug
	}
	switch cfg.Framework.LogLevel {
	case string(reporting.LogLevelDebug), string(reporting.LogLevelWarn), string(reporting.LogLevelError):
		return reporting.LogLevel(cfg.Framework.LogLevel)
	default:
		return reporting.LogLevelInfo
	}
}

// loadConfig loads the configuration from file, auto-generating if needed.
func loadConfig() (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = "config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("config file not found, creating default configuration at: %s\n", configPath)

		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
