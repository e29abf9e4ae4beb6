package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihwankim/resilience-core/pkg/cascade"
	"github.com/jihwankim/resilience-core/pkg/coordinator"
	"github.com/jihwankim/resilience-core/pkg/criticality"
	"github.com/jihwankim/resilience-core/pkg/fanout"
	"github.com/jihwankim/resilience-core/pkg/graph"
	"github.com/jihwankim/resilience-core/pkg/reporting"
	"github.com/jihwankim/resilience-core/pkg/scenario/parser"
	"github.com/jihwankim/resilience-core/pkg/scenario/validator"
	"github.com/jihwankim/resilience-core/pkg/telemetry"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Args:  cobra.NoArgs,
	Short: "Run a Monte-Carlo cascade simulation from a scenario file",
	Long:  `Loads a scenario YAML file describing a topology seed and a triggering event, runs the cascade engine, and prints/saves an aggregate result report.`,
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().String("scenario", "", "path to scenario YAML file")
	simulateCmd.Flags().StringArray("set", []string{}, "override scenario values (e.g., --set monte_carlo_runs=5000)")
	simulateCmd.Flags().String("format", "text", "output format (text, json, tui)")
	simulateCmd.Flags().Bool("dry-run", false, "validate scenario without executing")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	scenarioPath, _ := cmd.Flags().GetString("scenario")
	if scenarioPath == "" {
		return fmt.Errorf("--scenario flag is required")
	}
	setFlags, _ := cmd.Flags().GetStringArray("set")
	outputFormat, _ := cmd.Flags().GetString("format")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := resolveLogLevel(cfg)
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: reporting.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stdout,
	})
	logger.Info("resilience-sim starting", "version", version, "command", "simulate")

	logger.Info("parsing scenario", "file", scenarioPath)
	p := parser.New(nil)
	sc, err := p.ParseFile(scenarioPath)
	if err != nil {
		return fmt.Errorf("failed to parse scenario: %w", err)
	}

	if len(setFlags) > 0 {
		overrides := parseSetFlags(setFlags)
		if err := parser.ApplyOverrides(sc, overrides); err != nil {
			return fmt.Errorf("failed to apply overrides: %w", err)
		}
		logger.Debug("applied overrides", "count", len(overrides))
	}

	logger.Info("validating scenario")
	v := validator.New()
	if err := v.Validate(sc); err != nil {
		return fmt.Errorf("scenario validation failed: %w", err)
	}
	if v.HasWarnings() {
		logger.Warn("scenario has warnings")
		for _, w := range v.Warnings {
			logger.Warn("  " + w)
		}
	}
	logger.Info("scenario validated successfully", "name", sc.Metadata.Name)

	if dryRun {
		fmt.Println("scenario is valid (dry-run mode)")
		return nil
	}

	reg := telemetry.New(cfg.Telemetry.Namespace)

	store := graph.New()
	for _, n := range sc.Spec.Topology.GraphNodes() {
		if err := store.AddNode(n); err != nil {
			return fmt.Errorf("failed to seed node %s: %w", n.ID, err)
		}
	}
	for _, e := range sc.Spec.Topology.GraphEdges() {
		if err := store.AddEdge(e); err != nil {
			return fmt.Errorf("failed to seed edge %s->%s: %w", e.Src, e.Dst, err)
		}
	}
	store.SetTelemetry(reg)

	weights := criticality.Weights{
		Reachability: cfg.Criticality.ReachabilityWeight,
		Degree:       cfg.Criticality.DegreeWeight,
		Stress:       cfg.Criticality.StressWeight,
		MaxDepth:     4,
	}
	cache := criticality.NewCache(func(sn *graph.Snapshot) criticality.Scores {
		return criticality.Blend(sn, weights)
	}, cfg.Criticality.StaleAfter)

	engine := cascade.NewEngine(float64(cfg.Cascade.MaxTicksPerRun)*float64(cfg.Cascade.MaxRunCount), cfg.Cascade.MaxConcurrentRuns)
	if cfg.Cascade.BootstrapResamples > 0 {
		engine.BootstrapResamples = cfg.Cascade.BootstrapResamples
	}

	fan := fanout.New(cfg.Fanout.SubscriberQueueSize)

	coord := coordinator.New(store, cache, engine, fan, logger, cfg.Coordinator)
	coord.SetTelemetry(reg)

	req := sc.Spec.ToRequest()
	req.ScenarioName = sc.Metadata.Name
	// ToRequest has already filled zero knobs with cascade's defaults, so
	// check the scenario's own values to decide whether config applies.
	if sc.Spec.Request.LoadRedistributionFraction == 0 {
		req.LoadRedistributionFraction = cfg.Cascade.LoadRedistributionFrac
	}
	if sc.Spec.Request.ConfidenceLevel == 0 {
		req.ConfidenceLevel = cfg.Cascade.ConfidenceLevel
	}

	logger.Info("starting simulation", "scenario", sc.Metadata.Name, "monte_carlo_runs", req.MonteCarloRuns)
	start := time.Now()
	handle, err := coord.Submit(sc.Metadata.Name, req)
	if err != nil {
		return fmt.Errorf("failed to submit simulation: %w", err)
	}

	awaitCtx := context.Background()
	if cfg.Cascade.MaxWallClock > 0 {
		var cancel context.CancelFunc
		awaitCtx, cancel = context.WithTimeout(awaitCtx, cfg.Cascade.MaxWallClock)
		defer cancel()
	}
	agg, runErr := coord.Await(awaitCtx, handle)
	end := time.Now()

	report := reporting.FromAggregate(string(handle), sc.Metadata.Name, start, end, agg, runErr)

	storage, err := reporting.NewStorage(cfg.Reporting.OutputDir, cfg.Reporting.KeepLastN, logger)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	if _, saveErr := storage.SaveReport(&report); saveErr != nil {
		logger.Warn("failed to save report", "error", saveErr.Error())
	}

	progress := reporting.NewProgressReporter(reporting.OutputFormat(outputFormat), logger)
	progress.ReportJobCompleted(&report)

	if runErr != nil {
		return fmt.Errorf("simulation failed: %w", runErr)
	}
	logger.Info("simulation completed successfully")
	return nil
}

// parseSetFlags parses --set flags into a map.
func parseSetFlags(setFlags []string) map[string]string {
	overrides := make(map[string]string)
	for _, flag := range setFlags {
		parts := strings.SplitN(flag, "=", 2)
		if len(parts) == 2 {
			overrides[parts[0]] = parts[1]
		}
	}
	return overrides
}
