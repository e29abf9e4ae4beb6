package ingestion

import (
	"context"
	"sync"
	"time"

	rerrors "github.com/jihwankim/resilience-core/pkg/errors"
	"github.com/jihwankim/resilience-core/pkg/fanout"
	"github.com/jihwankim/resilience-core/pkg/graph"
	"github.com/jihwankim/resilience-core/pkg/reporting"
	"github.com/jihwankim/resilience-core/pkg/telemetry"
)

// Config parameterizes a Pipeline.
type Config struct {
	BufferSize       int
	QualityThreshold float64
	FlushInterval    time.Duration

	// SustainedRatePerSec and BurstSize describe a token bucket that
	// gates admission into the buffer, independent of BufferSize. Zero
	// SustainedRatePerSec disables rate limiting entirely.
	SustainedRatePerSec int
	BurstSize           int
}

// Pipeline validates, orders and applies ingestion records to a graph.Store
// with bounded buffering. When the buffer is saturated, Ingest returns
// backpressure immediately rather than growing unboundedly, mirroring a
// token-bucket's "bounded resource, explicit reject" idiom.
type Pipeline struct {
	store  *graph.Store
	fan    *fanout.Fanout
	cfg    Config
	logger *reporting.Logger

	buffer chan appliedRecord
	tokens chan struct{} // non-nil when rate limiting is enabled

	mu          sync.Mutex
	lastApplied map[string]time.Time // source_id -> last applied record timestamp

	telemetry *telemetry.Registry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// SetTelemetry attaches a metrics registry; accepted/rejected counters are
// recorded from this point forward. Safe to call with nil to detach.
func (p *Pipeline) SetTelemetry(reg *telemetry.Registry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.telemetry = reg
}

type appliedRecord struct {
	record Record
}

// New constructs a Pipeline over store, publishing applied mutations on fan.
func New(store *graph.Store, fan *fanout.Fanout, cfg Config, logger *reporting.Logger) *Pipeline {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	p := &Pipeline{
		store:       store,
		fan:         fan,
		cfg:         cfg,
		logger:      logger,
		buffer:      make(chan appliedRecord, cfg.BufferSize),
		lastApplied: make(map[string]time.Time),
		stopCh:      make(chan struct{}),
	}
	if cfg.SustainedRatePerSec > 0 {
		burst := cfg.BurstSize
		if burst <= 0 {
			burst = cfg.SustainedRatePerSec
		}
		p.tokens = make(chan struct{}, burst)
		for i := 0; i < burst; i++ {
			p.tokens <- struct{}{}
		}
	}
	return p
}

// Start begins the background worker that drains the buffer and applies
// mutations to the graph store, and, if rate limiting is configured, the
// ticker that refills the admission token bucket.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
	if p.tokens != nil {
		p.wg.Add(1)
		go p.refillTokens(ctx)
	}
}

// refillTokens adds one token per tick at SustainedRatePerSec, dropping the
// tick if the bucket is already at BurstSize capacity.
func (p *Pipeline) refillTokens(ctx context.Context) {
	defer p.wg.Done()
	interval := time.Second / time.Duration(p.cfg.SustainedRatePerSec)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			select {
			case p.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Stop signals the background worker to exit and waits for it.
func (p *Pipeline) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case item := <-p.buffer:
			p.apply(item.record)
		}
	}
}

// Ingest validates a single record and, if accepted, enqueues it for
// application. Returns a typed error (low_quality, stale, backpressure) on
// rejection, nil on acceptance.
func (p *Pipeline) Ingest(r Record) error {
	if p.tokens != nil {
		select {
		case <-p.tokens:
		default:
			err := rerrors.New(rerrors.Backpressure, "sustained ingestion rate exceeded")
			p.recordRejected(err)
			return err
		}
	}

	if err := p.validate(r); err != nil {
		p.recordRejected(err)
		return err
	}

	select {
	case p.buffer <- appliedRecord{record: r}:
		p.recordAccepted(r)
		return nil
	default:
		err := rerrors.New(rerrors.Backpressure, "ingestion buffer full")
		p.recordRejected(err)
		return err
	}
}

func (p *Pipeline) recordAccepted(r Record) {
	p.mu.Lock()
	reg := p.telemetry
	p.mu.Unlock()
	if reg != nil {
		reg.IngestionAccepted.WithLabelValues(string(r.DataType)).Inc()
	}
}

func (p *Pipeline) recordRejected(err error) {
	p.mu.Lock()
	reg := p.telemetry
	p.mu.Unlock()
	if reg != nil {
		reg.IngestionRejected.WithLabelValues(string(rerrors.KindOf(err))).Inc()
	}
}

// IngestBatch ingests every record in rs, tallying acceptances and rejection
// reasons rather than stopping at the first failure.
func (p *Pipeline) IngestBatch(rs []Record) BatchSummary {
	summary := newBatchSummary()
	for _, r := range rs {
		if err := p.Ingest(r); err != nil {
			summary.RejectedByReason[string(rerrors.KindOf(err))]++
			continue
		}
		summary.Accepted++
	}
	return summary
}

func (p *Pipeline) validate(r Record) error {
	switch r.DataType {
	case DataSensorLoad, DataSensorHealth, DataTopologyNodeUpsert, DataTopologyNodeRemove, DataTopologyEdgeUpsert, DataTopologyEdgeRemove:
	default:
		// unknown data types pass through to subscribers but are not applied
		p.fan.Publish(fanout.TopicGraphMutation, r)
		return nil
	}

	if r.QualityScore < p.cfg.QualityThreshold {
		return rerrors.New(rerrors.LowQuality, "quality_score below threshold")
	}

	p.mu.Lock()
	last, seen := p.lastApplied[r.SourceID]
	stale := seen && r.Timestamp.Before(last)
	p.mu.Unlock()
	if stale {
		return rerrors.New(rerrors.Stale, "record older than last applied for source")
	}

	return nil
}

// apply derives and performs the graph mutation for an accepted record, then
// publishes it. Per-source ordering is enforced here: an older record than
// the last applied one for its source_id is dropped even if it slipped past
// the buffer (e.g. two records for the same source raced through Ingest).
func (p *Pipeline) apply(r Record) {
	p.mu.Lock()
	last, seen := p.lastApplied[r.SourceID]
	if seen && r.Timestamp.Before(last) {
		p.mu.Unlock()
		return
	}
	p.lastApplied[r.SourceID] = r.Timestamp
	p.mu.Unlock()

	var err error
	switch r.DataType {
	case DataSensorLoad:
		err = p.applySensorLoad(r)
	case DataSensorHealth:
		err = p.applySensorHealth(r)
	case DataTopologyNodeUpsert:
		err = p.applyNodeUpsert(r)
	case DataTopologyNodeRemove:
		err = p.applyNodeRemove(r)
	case DataTopologyEdgeUpsert:
		err = p.applyEdgeUpsert(r)
	case DataTopologyEdgeRemove:
		err = p.applyEdgeRemove(r)
	}
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("failed to apply ingestion record", "source_id", r.SourceID, "data_type", string(r.DataType), "error", err.Error())
		}
		return
	}
	p.fan.Publish(fanout.TopicGraphMutation, r)
}

func floatField(payload map[string]interface{}, key string) (float64, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func stringField(payload map[string]interface{}, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (p *Pipeline) applySensorLoad(r Record) error {
	load, ok := floatField(r.Payload, "load")
	if !ok {
		return rerrors.New(rerrors.InvalidRequest, "sensor.load payload missing numeric 'load'")
	}
	return p.store.UpdateNode(r.SourceID, graph.NodeDelta{Load: &load})
}

func (p *Pipeline) applySensorHealth(r Record) error {
	health, ok := floatField(r.Payload, "health")
	if !ok {
		return rerrors.New(rerrors.InvalidRequest, "sensor.health payload missing numeric 'health'")
	}
	return p.store.UpdateNode(r.SourceID, graph.NodeDelta{Health: &health})
}

func (p *Pipeline) applyNodeUpsert(r Record) error {
	id, ok := stringField(r.Payload, "id")
	if !ok {
		id = r.SourceID
	}
	kind, _ := stringField(r.Payload, "kind")
	capacity, _ := floatField(r.Payload, "capacity")
	n := graph.Node{ID: id, Kind: graph.Kind(kind), Capacity: capacity, Health: 1}
	if err := p.store.AddNode(n); err != nil {
		if rerrors.Is(err, rerrors.Conflict) {
			load, hasLoad := floatField(r.Payload, "load")
			health, hasHealth := floatField(r.Payload, "health")
			delta := graph.NodeDelta{}
			if hasLoad {
				delta.Load = &load
			}
			if hasHealth {
				delta.Health = &health
			}
			return p.store.UpdateNode(id, delta)
		}
		return err
	}
	return nil
}

func (p *Pipeline) applyNodeRemove(r Record) error {
	id, ok := stringField(r.Payload, "id")
	if !ok {
		id = r.SourceID
	}
	return p.store.RemoveNode(id)
}

func (p *Pipeline) applyEdgeUpsert(r Record) error {
	src, _ := stringField(r.Payload, "src")
	dst, _ := stringField(r.Payload, "dst")
	strength, _ := floatField(r.Payload, "strength")
	prop, _ := floatField(r.Payload, "propagation_probability")
	latency, _ := floatField(r.Payload, "latency_ms")
	return p.store.AddEdge(graph.Edge{Src: src, Dst: dst, Strength: strength, PropagationProbability: prop, LatencyMS: latency})
}

func (p *Pipeline) applyEdgeRemove(r Record) error {
	src, _ := stringField(r.Payload, "src")
	dst, _ := stringField(r.Payload, "dst")
	return p.store.RemoveEdge(src, dst)
}
