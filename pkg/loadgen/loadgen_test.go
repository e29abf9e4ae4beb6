package loadgen_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/resilience-core/pkg/fanout"
	"github.com/jihwankim/resilience-core/pkg/graph"
	"github.com/jihwankim/resilience-core/pkg/ingestion"
	"github.com/jihwankim/resilience-core/pkg/loadgen"
	"github.com/jihwankim/resilience-core/pkg/reporting"
)

func testLogger() *reporting.Logger {
	return reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelError,
		Format: reporting.LogFormatText,
		Output: os.Stderr,
	})
}

func TestSamplerBatchRotatesSources(t *testing.T) {
	s := loadgen.NewSampler(1, []string{"a", "b"})
	records := s.Batch(loadgen.DefaultRecordSpec(), 4, time.Now(), time.Second)
	require.Len(t, records, 4)
	assert.Equal(t, "a", records[0].SourceID)
	assert.Equal(t, "b", records[1].SourceID)
	assert.Equal(t, "a", records[2].SourceID)
}

func TestSamplerNearThresholdQualityStraddlesBoundary(t *testing.T) {
	s := loadgen.NewSampler(7, []string{"a"})
	spec := loadgen.RecordSpec{Quality: loadgen.QualityNearThreshold, LoadLo: 0, LoadHi: 10}
	seenAbove, seenBelow := false, false
	for i := 0; i < 200; i++ {
		rec := s.Next(spec, i, time.Now())
		if rec.QualityScore >= 0.5 {
			seenAbove = true
		} else {
			seenBelow = true
		}
	}
	assert.True(t, seenAbove)
	assert.True(t, seenBelow)
}

func TestRunnerTalliesAcceptedAndRejected(t *testing.T) {
	store := graph.New()
	require.NoError(t, store.AddNode(graph.Node{ID: "n1", Kind: graph.KindPower, Capacity: 100, Health: 1}))
	fan := fanout.New(16)
	pipeline := ingestion.New(store, fan, ingestion.Config{QualityThreshold: 0.5, BufferSize: 64}, testLogger())
	pipeline.Start(context.Background())
	defer pipeline.Stop()

	runner := loadgen.NewRunner(pipeline, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	result := runner.Run(ctx, loadgen.Config{
		Rate:    5 * time.Millisecond,
		Sources: []string{"n1"},
		Seed:    3,
		Spec:    loadgen.RecordSpec{Quality: loadgen.QualityNearThreshold, LoadLo: 0, LoadHi: 50},
	})

	assert.Greater(t, result.Generated, 0)
	assert.Equal(t, result.Generated, result.Accepted+sumValues(result.Rejected))
}

func sumValues(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}
