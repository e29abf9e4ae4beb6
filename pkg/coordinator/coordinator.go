// Package coordinator schedules simulation requests across a bounded worker
// pool, deduplicating concurrent identical requests by fingerprint and
// publishing job lifecycle events on the fan-out bus.
package coordinator

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/jihwankim/resilience-core/pkg/cascade"
	"github.com/jihwankim/resilience-core/pkg/config"
	"github.com/jihwankim/resilience-core/pkg/criticality"
	rerrors "github.com/jihwankim/resilience-core/pkg/errors"
	"github.com/jihwankim/resilience-core/pkg/fanout"
	"github.com/jihwankim/resilience-core/pkg/graph"
	"github.com/jihwankim/resilience-core/pkg/reporting"
	"github.com/jihwankim/resilience-core/pkg/telemetry"
)

// Handle identifies one Submit call. Multiple handles may reference the
// same underlying job when their fingerprints collide.
type Handle string

// StartedEvent is published on fanout.TopicSimulationStarted.
type StartedEvent struct {
	ScenarioName string
	Fingerprint  string
}

// CompletedEvent is published on fanout.TopicSimulationCompleted.
type CompletedEvent struct {
	ScenarioName string
	Fingerprint  string
	Result       cascade.AggregateResult
}

// FailedEvent is published on fanout.TopicSimulationFailed.
type FailedEvent struct {
	ScenarioName string
	Fingerprint  string
	Err          string
}

type trackedJob struct {
	fingerprint string
	cancel      context.CancelFunc
	done        chan struct{}
	refCount    int
	startTime   time.Time

	result cascade.AggregateResult
	err    error
}

// Coordinator owns the worker pool and the fingerprint-keyed in-flight job
// table. Construct one per graph Store; its lifetime should match the
// Store's.
type Coordinator struct {
	store  *graph.Store
	cache  *criticality.Cache
	engine *cascade.Engine
	fan    *fanout.Fanout
	logger *reporting.Logger
	cfg    config.CoordinatorConfig

	breaker *gobreaker.CircuitBreaker

	mu       sync.Mutex
	jobs     map[string]*trackedJob // fingerprint -> job
	handles  map[string]*trackedJob // handle id -> job
	occupied int                    // workers + queue slots currently claimed

	telemetry *telemetry.Registry
}

// SetTelemetry attaches a metrics registry to the coordinator and cascades
// it to the engine, criticality cache, and fanout it owns, so a caller only
// needs to wire the Coordinator to instrument the whole simulation path.
// Safe to call with nil to detach.
func (c *Coordinator) SetTelemetry(reg *telemetry.Registry) {
	c.mu.Lock()
	c.telemetry = reg
	if reg != nil {
		reg.CascadeQueueDepth.Set(float64(c.occupied))
	}
	c.mu.Unlock()
	c.engine.SetTelemetry(reg)
	c.cache.SetTelemetry(reg)
	c.fan.SetTelemetry(reg)
}

// New constructs a Coordinator. cfg.WorkerCount of 0 defaults to
// runtime.NumCPU().
func New(store *graph.Store, cache *criticality.Cache, engine *cascade.Engine, fan *fanout.Fanout, logger *reporting.Logger, cfg config.CoordinatorConfig) *Coordinator {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = runtime.NumCPU()
	}
	c := &Coordinator{
		store:   store,
		cache:   cache,
		engine:  engine,
		fan:     fan,
		logger:  logger,
		cfg:     cfg,
		jobs:    make(map[string]*trackedJob),
		handles: make(map[string]*trackedJob),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "cascade-dispatch",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 8 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
	return c
}

func (c *Coordinator) recordQueueDepthLocked() {
	if c.telemetry != nil {
		c.telemetry.CascadeQueueDepth.Set(float64(c.occupied))
	}
}

// Submit computes the request fingerprint against the current graph
// snapshot. An identical in-flight fingerprint attaches to the existing job
// rather than starting new work. Otherwise a worker slot is claimed and the
// job runs in the background; exceeding worker+queue capacity returns
// overloaded immediately.
func (c *Coordinator) Submit(scenarioName string, req cascade.Request) (Handle, error) {
	sn := c.store.Snapshot()
	scores := c.cache.Get(sn)
	fp := cascade.Fingerprint(sn.Version, req)

	c.mu.Lock()
	if j, ok := c.jobs[fp]; ok {
		j.refCount++
		h := uuid.NewString()
		c.handles[h] = j
		c.mu.Unlock()
		c.logger.Debug("attached to in-flight simulation", "fingerprint", fp, "handle", h)
		return Handle(h), nil
	}

	if c.occupied >= c.cfg.WorkerCount+c.cfg.QueueCapacity {
		c.mu.Unlock()
		return "", rerrors.New(rerrors.Overloaded, "coordinator at worker+queue capacity")
	}
	c.occupied++
	c.recordQueueDepthLocked()

	ctx, cancel := context.WithCancel(context.Background())
	j := &trackedJob{fingerprint: fp, cancel: cancel, done: make(chan struct{}), refCount: 1, startTime: time.Now()}
	c.jobs[fp] = j
	h := uuid.NewString()
	c.handles[h] = j
	c.mu.Unlock()

	c.fan.Publish(fanout.TopicSimulationStarted, StartedEvent{ScenarioName: scenarioName, Fingerprint: fp})
	go c.run(ctx, scenarioName, sn, scores, req, j)

	return Handle(h), nil
}

func (c *Coordinator) run(ctx context.Context, scenarioName string, sn *graph.Snapshot, scores criticality.Scores, req cascade.Request, j *trackedJob) {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		agg, runErr := c.engine.Run(ctx, sn, scores, req)
		if runErr != nil {
			return nil, runErr
		}
		j.result = agg
		return nil, nil
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		err = rerrors.Wrap(rerrors.Overloaded, "circuit breaker rejected simulation job", err)
	}
	j.err = err
	close(j.done)

	c.mu.Lock()
	delete(c.jobs, j.fingerprint)
	c.occupied--
	c.recordQueueDepthLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("simulation job failed", "scenario", scenarioName, "fingerprint", j.fingerprint, "error", err.Error())
		c.fan.Publish(fanout.TopicSimulationFailed, FailedEvent{ScenarioName: scenarioName, Fingerprint: j.fingerprint, Err: err.Error()})
		return
	}
	c.fan.Publish(fanout.TopicSimulationCompleted, CompletedEvent{ScenarioName: scenarioName, Fingerprint: j.fingerprint, Result: j.result})
}

// Await blocks until h's job completes, ctx is cancelled, or the caller's
// deadline expires.
func (c *Coordinator) Await(ctx context.Context, h Handle) (cascade.AggregateResult, error) {
	c.mu.Lock()
	j, ok := c.handles[string(h)]
	c.mu.Unlock()
	if !ok {
		return cascade.AggregateResult{}, rerrors.New(rerrors.NotFound, "unknown handle")
	}

	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return cascade.AggregateResult{}, rerrors.Wrap(rerrors.Cancelled, "await cancelled", ctx.Err())
	}
}

// Cancel decrements h's attachment count on its job; when it reaches zero
// the underlying job context is cancelled and its worker slot released once
// the run loop observes cancellation.
func (c *Coordinator) Cancel(h Handle) error {
	c.mu.Lock()
	j, ok := c.handles[string(h)]
	if !ok {
		c.mu.Unlock()
		return rerrors.New(rerrors.NotFound, "unknown handle")
	}
	delete(c.handles, string(h))
	j.refCount--
	remaining := j.refCount
	c.mu.Unlock()

	if remaining <= 0 {
		j.cancel()
	}
	return nil
}
