package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	rerrors "github.com/jihwankim/resilience-core/pkg/errors"
	"github.com/jihwankim/resilience-core/pkg/fanout"
	"github.com/jihwankim/resilience-core/pkg/graph"
	"github.com/jihwankim/resilience-core/pkg/ingestion"
	"github.com/jihwankim/resilience-core/pkg/reporting"
	"github.com/jihwankim/resilience-core/pkg/telemetry"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Args:  cobra.NoArgs,
	Short: "Replay a JSON-lines telemetry feed through the ingestion pipeline",
	Long:  `Reads newline-delimited ingestion records from a file (or stdin with --file -) and reports accepted/rejected counts.`,
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().String("file", "", "path to a JSON-lines telemetry file (- for stdin)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	filePath, _ := cmd.Flags().GetString("file")
	if filePath == "" {
		return fmt.Errorf("--file flag is required")
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
	logger.Info("resilience-sim starting", "version", version, "command", "ingest")

	var in *os.File
	if filePath == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", filePath, err)
		}
		defer f.Close()
		in = f
	}

	reg := telemetry.New(cfg.Telemetry.Namespace)
	store := graph.New()
	store.SetTelemetry(reg)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipeline.Start(ctx)
	defer pipeline.Stop()

	accepted := 0
	rejected := make(map[string]int)
	lineNo := 0

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec ingestion.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("skipping malformed line", "line", lineNo, "error", err.Error())
			rejected[string(rerrors.InvalidRequest)]++
			continue
		}
		if err := pipeline.Ingest(rec); err != nil {
			rejected[string(rerrors.KindOf(err))]++
			logger.Debug("record rejected", "line", lineNo, "source", rec.SourceID, "reason", rerrors.KindOf(err))
			continue
		}
		accepted++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	fmt.Printf("ingested %d lines: %d accepted\n", lineNo, accepted)
	for reason, count := range rejected {
		fmt.Printf("  rejected (%s): %d\n", reason, count)
	}
	return nil
}
