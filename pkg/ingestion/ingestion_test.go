package ingestion_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/jihwankim/resilience-core/pkg/errors"
	"github.com/jihwankim/resilience-core/pkg/fanout"
	"github.com/jihwankim/resilience-core/pkg/graph"
	"github.com/jihwankim/resilience-core/pkg/ingestion"
	"github.com/jihwankim/resilience-core/pkg/reporting"
)

func testLogger() *reporting.Logger {
	return reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelError,
		Format: reporting.LogFormatText,
		Output: os.Stderr,
	})
}

func newPipeline(t *testing.T, cfg ingestion.Config) (*graph.Store, *ingestion.Pipeline) {
	t.Helper()
	store := graph.New()
	require.NoError(t, store.AddNode(graph.Node{ID: "n1", Kind: graph.KindPower, Capacity: 100, Health: 1}))
	fan := fanout.New(16)
	p := ingestion.New(store, fan, cfg, testLogger())
	return store, p
}

func TestIngestRejectsLowQuality(t *testing.T) {
	_, p := newPipeline(t, ingestion.Config{QualityThreshold: 0.5})
	err := p.Ingest(ingestion.Record{
		SourceID: "n1", Timestamp: time.Now(), DataType: ingestion.DataSensorLoad,
		Payload: map[string]interface{}{"load": 50.0}, QualityScore: 0.1,
	})
	require.Error(t, err)
	assert.True(t, rerrors.Is(err, rerrors.LowQuality))
}

func TestIngestRejectsStaleRecord(t *testing.T) {
	store, p := newPipeline(t, ingestion.Config{QualityThreshold: 0, BufferSize: 8})
	p.Start(context.Background())
	defer p.Stop()

	now := time.Now()
	require.NoError(t, p.Ingest(ingestion.Record{
		SourceID: "n1", Timestamp: now.Add(11 * time.Second), DataType: ingestion.DataSensorLoad,
		Payload: map[string]interface{}{"load": 10.0}, QualityScore: 1,
	}))
	waitForLoad(t, store, "n1", 10.0)

	err := p.Ingest(ingestion.Record{
		SourceID: "n1", Timestamp: now.Add(5 * time.Second), DataType: ingestion.DataSensorLoad,
		Payload: map[string]interface{}{"load": 99.0}, QualityScore: 1,
	})
	require.Error(t, err)
	assert.True(t, rerrors.Is(err, rerrors.Stale))
}

func TestIngestAppliesInOrderSequence(t *testing.T) {
	store, p := newPipeline(t, ingestion.Config{QualityThreshold: 0, BufferSize: 8})
	p.Start(context.Background())
	defer p.Stop()

	base := time.Now()
	timestamps := []time.Duration{10 * time.Second, 5 * time.Second, 11 * time.Second}
	loads := []float64{10, 20, 30}
	for i, ts := range timestamps {
		_ = p.Ingest(ingestion.Record{
			SourceID: "n1", Timestamp: base.Add(ts), DataType: ingestion.DataSensorLoad,
			Payload: map[string]interface{}{"load": loads[i]}, QualityScore: 1,
		})
	}
	waitForLoad(t, store, "n1", 30)

	n, err := store.GetNode("n1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, n.Load)
}

func TestIngestBackpressureWhenBufferFull(t *testing.T) {
	_, p := newPipeline(t, ingestion.Config{QualityThreshold: 0, BufferSize: 1})
	// no Start: nothing drains the buffer, so it saturates deterministically.
	require.NoError(t, p.Ingest(ingestion.Record{
		SourceID: "n1", Timestamp: time.Now(), DataType: ingestion.DataSensorLoad,
		Payload: map[string]interface{}{"load": 1.0}, QualityScore: 1,
	}))

	rejected := 0
	for i := 0; i < 10; i++ {
		err := p.Ingest(ingestion.Record{
			SourceID: "n1", Timestamp: time.Now(), DataType: ingestion.DataSensorLoad,
			Payload: map[string]interface{}{"load": float64(i)}, QualityScore: 1,
		})
		if err != nil {
			assert.True(t, rerrors.Is(err, rerrors.Backpressure))
			rejected++
		}
	}
	assert.Greater(t, rejected, 0)
}

func TestIngestBatchTalliesAcceptedAndRejected(t *testing.T) {
	_, p := newPipeline(t, ingestion.Config{QualityThreshold: 0.5, BufferSize: 8})
	records := []ingestion.Record{
		{SourceID: "n1", Timestamp: time.Now(), DataType: ingestion.DataSensorLoad, Payload: map[string]interface{}{"load": 1.0}, QualityScore: 1},
		{SourceID: "n1", Timestamp: time.Now(), DataType: ingestion.DataSensorLoad, Payload: map[string]interface{}{"load": 2.0}, QualityScore: 0.1},
	}
	summary := p.IngestBatch(records)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, 1, summary.RejectedByReason[string(rerrors.LowQuality)])
}

func waitForLoad(t *testing.T, store *graph.Store, id string, want float64) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		n, err := store.GetNode(id)
		require.NoError(t, err)
		if n.Load == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("node %s never reached load %v", id, want)
}
