// Package config loads and validates the resilience engine's configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the resilience engine's configuration.
type Config struct {
	Framework   FrameworkConfig   `yaml:"framework"`
	Graph       GraphConfig       `yaml:"graph"`
	Criticality CriticalityConfig `yaml:"criticality"`
	Cascade     CascadeConfig     `yaml:"cascade"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Fanout      FanoutConfig      `yaml:"fanout"`
	Reporting   ReportingConfig   `yaml:"reporting"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// FrameworkConfig contains general engine settings.
type FrameworkConfig struct {
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// GraphConfig contains dependency-graph-store settings.
type GraphConfig struct {
	// SnapshotPath, when set, is loaded at startup (cold-start snapshot
	// I/O, JSON-lines nodes then edges) and written on graceful shutdown.
	SnapshotPath string `yaml:"snapshot_path"`
}

// CriticalityConfig contains the criticality scorer's blend weights and
// staleness bound.
type CriticalityConfig struct {
	ReachabilityWeight float64       `yaml:"reachability_weight"`
	DegreeWeight       float64       `yaml:"degree_weight"`
	StressWeight       float64       `yaml:"stress_weight"`
	StaleAfter         time.Duration `yaml:"stale_after"`
}

// CascadeConfig contains Monte-Carlo simulation defaults and resource
// bounds.
type CascadeConfig struct {
	DefaultRunCount           int           `yaml:"default_run_count"`
	MaxRunCount               int           `yaml:"max_run_count"`
	MaxTicksPerRun            int           `yaml:"max_ticks_per_run"`
	MaxWallClock              time.Duration `yaml:"max_wall_clock"`
	LoadRedistributionFrac    float64       `yaml:"load_redistribution_fraction"`
	MaxConcurrentRuns         int           `yaml:"max_concurrent_runs"`
	ConfidenceLevel           float64       `yaml:"confidence_level"`
	BootstrapResamples        int           `yaml:"bootstrap_resamples"`
}

// IngestionConfig contains ingestion back-pressure settings.
type IngestionConfig struct {
	BufferSize         int           `yaml:"buffer_size"`
	QualityThreshold   float64       `yaml:"quality_threshold"`
	SustainedRatePerSec int          `yaml:"sustained_rate_per_sec"`
	BurstSize          int           `yaml:"burst_size"`
	FlushInterval      time.Duration `yaml:"flush_interval"`
}

// CoordinatorConfig contains job dispatch/worker-pool settings.
type CoordinatorConfig struct {
	WorkerCount     int           `yaml:"worker_count"`
	QueueCapacity   int           `yaml:"queue_capacity"`
	BreakerInterval time.Duration `yaml:"breaker_interval"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

// FanoutConfig contains per-subscriber queue bounds.
type FanoutConfig struct {
	SubscriberQueueSize int `yaml:"subscriber_queue_size"`
}

// ReportingConfig contains report persistence settings.
type ReportingConfig struct {
	OutputDir string `yaml:"output_dir"`
	KeepLastN int    `yaml:"keep_last_n"`
}

// TelemetryConfig contains the metrics-exposition settings.
type TelemetryConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Namespace  string `yaml:"namespace"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			Version:   "v1",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Graph: GraphConfig{
			SnapshotPath: "",
		},
		Criticality: CriticalityConfig{
			ReachabilityWeight: 0.5,
			DegreeWeight:       0.3,
			StressWeight:       0.2,
			StaleAfter:         30 * time.Second,
		},
		Cascade: CascadeConfig{
			DefaultRunCount:        1000,
			MaxRunCount:            100000,
			MaxTicksPerRun:         500,
			MaxWallClock:           2 * time.Minute,
			LoadRedistributionFrac: 0.5,
			MaxConcurrentRuns:      8,
			ConfidenceLevel:        0.95,
			BootstrapResamples:     1000,
		},
		Ingestion: IngestionConfig{
			BufferSize:          4096,
			QualityThreshold:    0.5,
			SustainedRatePerSec: 2000,
			BurstSize:           500,
			FlushInterval:       time.Second,
		},
		Coordinator: CoordinatorConfig{
			WorkerCount:     0, // 0 means runtime.NumCPU()
			QueueCapacity:   256,
			BreakerInterval: 10 * time.Second,
			BreakerTimeout:  5 * time.Second,
		},
		Fanout: FanoutConfig{
			SubscriberQueueSize: 128,
		},
		Reporting: ReportingConfig{
			OutputDir: "./reports",
			KeepLastN: 50,
		},
		Telemetry: TelemetryConfig{
			ListenAddr: ":9464",
			Namespace:  "resilience",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults if the
// file does not exist. Environment variables referenced with ${VAR}/$VAR in
// the file are expanded before parsing; RESILIENCE_LOG_LEVEL, if set, always
// overrides the file value.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if lvl := os.Getenv("RESILIENCE_LOG_LEVEL"); lvl != "" {
		cfg.Framework.LogLevel = lvl
	}

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Reporting.OutputDir == "" {
		return fmt.Errorf("reporting.output_dir is required")
	}
	if c.Cascade.DefaultRunCount < 1 {
		return fmt.Errorf("cascade.default_run_count must be at least 1")
	}
	if c.Cascade.MaxRunCount < c.Cascade.DefaultRunCount {
		return fmt.Errorf("cascade.max_run_count must be >= default_run_count")
	}
	sum := c.Criticality.ReachabilityWeight + c.Criticality.DegreeWeight + c.Criticality.StressWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("criticality weights must sum to 1.0, got %f", sum)
	}
	if c.Ingestion.BufferSize < 1 {
		return fmt.Errorf("ingestion.buffer_size must be at least 1")
	}
	if c.Coordinator.QueueCapacity < 1 {
		return fmt.Errorf("coordinator.queue_capacity must be at least 1")
	}
	if c.Fanout.SubscriberQueueSize < 1 {
		return fmt.Errorf("fanout.subscriber_queue_size must be at least 1")
	}
	return nil
}
