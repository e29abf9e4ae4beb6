package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jihwankim/resilience-core/pkg/fanout"
	"github.com/jihwankim/resilience-core/pkg/graph"
	"github.com/jihwankim/resilience-core/pkg/ingestion"
	"github.com/jihwankim/resilience-core/pkg/loadgen"
	"github.com/jihwankim/resilience-core/pkg/reporting"
	"github.com/jihwankim/resilience-core/pkg/telemetry"
)

var loadgenCmd = &cobra.Command{
	Use:   "loadgen",
	Args:  cobra.NoArgs,
	Short: "Drive synthetic telemetry at a configurable rate",
	Long:  `Generates synthetic sensor.load records against a fresh in-memory graph seeded with --nodes, exercising ingestion back-pressure and per-source ordering without a real telemetry feed.`,
	RunE:  runLoadgen,
}

func init() {
	loadgenCmd.Flags().StringSlice("nodes", []string{"node-0"}, "comma-separated node IDs to generate sensor.load records for")
	loadgenCmd.Flags().Duration("rate", 100*time.Millisecond, "interval between generated records")
	loadgenCmd.Flags().Duration("duration", 0, "total run length (0 = run until interrupted)")
	loadgenCmd.Flags().String("quality", "good", "quality profile (good, near-threshold, bad)")
	loadgenCmd.Flags().Float64("out-of-order-fraction", 0, "probability [0,1] a record's timestamp is jittered backward")
	loadgenCmd.Flags().Int64("seed", 0, "random seed for reproducibility (0 = auto)")
}

func runLoadgen(cmd *cobra.Command, args []string) error {
	nodeIDs, _ := cmd.Flags().GetStringSlice("nodes")
	rate, _ := cmd.Flags().GetDuration("rate")
	duration, _ := cmd.Flags().GetDuration("duration")
	qualityName, _ := cmd.Flags().GetString("quality")
	outOfOrder, _ := cmd.Flags().GetFloat64("out-of-order-fraction")
	seed, _ := cmd.Flags().GetInt64("seed")

	profile, err := parseQualityProfile(qualityName)
	if err != nil {
		return err
	}

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
	logger.Info("resilience-sim starting", "version", version, "command", "loadgen")

	reg := telemetry.New(cfg.Telemetry.Namespace)
	store := graph.New()
	if cfg.Graph.SnapshotPath != "" {
		if _, err := os.Stat(cfg.Graph.SnapshotPath); err == nil {
			if err := store.LoadColdStart(cfg.Graph.SnapshotPath); err != nil {
				return fmt.Errorf("failed to load cold-start snapshot: %w", err)
			}
			logger.Info("loaded cold-start snapshot", "path", cfg.Graph.SnapshotPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat snapshot file: %w", err)
		}
	}
	for _, id := range nodeIDs {
		if _, err := store.GetNode(id); err == nil {
			continue
		}
		if err := store.AddNode(graph.Node{ID: id, Kind: graph.KindOther, Capacity: 100, Health: 1}); err != nil {
			return fmt.Errorf("failed to seed node %s: %w", id, err)
		}
	}
	store.SetTelemetry(reg)
	if cfg.Graph.SnapshotPath != "" {
		defer func() {
			if err := store.WriteColdStart(cfg.Graph.SnapshotPath); err != nil {
				logger.Warn("failed to write cold-start snapshot", "error", err.Error())
			}
		}()
	}

	fan := fanout.New(cfg.Fanout.SubscriberQueueSize)
	fan.SetTelemetry(reg)

	pipeline := ingestion.New(store, fan, ingestion.Config{
		BufferSize:          cfg.Ingestion.BufferSize,
		QualityThreshold:    cfg.Ingestion.QualityThreshold,
		FlushInterval:       cfg.Ingestion.FlushInterval,
		SustainedRatePerSec: cfg.Ingestion.SustainedRatePerSec,
		BurstSize:           cfg.Ingestion.BurstSize,
	}, logger)
	pipeline.SetTelemetry(reg)

	if cfg.Telemetry.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Telemetry.ListenAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", err.Error())
			}
		}()
		defer srv.Close()
		logger.Info("exposing metrics", "addr", cfg.Telemetry.ListenAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	pipeline.Start(ctx)
	defer pipeline.Stop()

	spec := loadgen.DefaultRecordSpec()
	spec.Quality = profile
	spec.OutOfOrderFraction = outOfOrder

	logger.Info("driving synthetic telemetry", "nodes", len(nodeIDs), "rate", rate, "spec", spec.Describe())

	runner := loadgen.NewRunner(pipeline, logger)
	result := runner.Run(ctx, loadgen.Config{
		Rate:     rate,
		Duration: duration,
		Spec:     spec,
		Sources:  nodeIDs,
		Seed:     seed,
	})

	fmt.Printf("generated %d records: %d accepted\n", result.Generated, result.Accepted)
	for reason, count := range result.Rejected {
		fmt.Printf("  rejected (%s): %d\n", reason, count)
	}
	return nil
}

func parseQualityProfile(name string) (loadgen.QualityProfile, error) {
	switch strings.ToLower(name) {
	case "good", "":
		return loadgen.QualityMostlyGood, nil
	case "near-threshold":
		return loadgen.QualityNearThreshold, nil
	case "bad":
		return loadgen.QualityMostlyBad, nil
	default:
		return 0, fmt.Errorf("unknown quality profile %q; valid: good, near-threshold, bad", name)
	}
}
