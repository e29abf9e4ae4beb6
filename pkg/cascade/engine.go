package cascade

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	rerrors "github.com/jihwankim/resilience-core/pkg/errors"
	"github.com/jihwankim/resilience-core/pkg/criticality"
	"github.com/jihwankim/resilience-core/pkg/graph"
	"github.com/jihwankim/resilience-core/pkg/telemetry"
)

// JobState names the stages of a simulation job's lifecycle, adapted from a
// chaos-test orchestrator's state machine: validate the request, snapshot
// inputs, dispatch the Monte-Carlo runs, collect and aggregate, then
// publish. Engine.Run performs these steps in order but does not track or
// expose a JobState value.
type JobState string

const (
	StateValidate JobState = "validate"
	StateSnapshot JobState = "snapshot"
	StateDispatch JobState = "dispatch"
	StateCollect  JobState = "collect"
	StateAggregate JobState = "aggregate"
	StatePublish  JobState = "publish"
	StateCompleted JobState = "completed"
	StateFailed   JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Engine runs Monte-Carlo cascade simulations.
type Engine struct {
	WorkBudget         float64 // N * |affected subgraph| * (horizon/step) ceiling; 0 disables the check
	MaxConcurrency     int
	TopKPaths          int
	BootstrapResamples int // resample count for the percentile bootstrap CI

	telemetry *telemetry.Registry
}

// NewEngine constructs an Engine with spec defaults (top_k_critical_paths=5,
// bootstrap_resamples=1000).
func NewEngine(workBudget float64, maxConcurrency int) *Engine {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &Engine{WorkBudget: workBudget, MaxConcurrency: maxConcurrency, TopKPaths: 5, BootstrapResamples: 1000}
}

// SetTelemetry attaches a metrics registry; job outcome counters and the
// job-duration histogram are recorded from this point forward. Safe to call
// with nil to detach.
func (e *Engine) SetTelemetry(reg *telemetry.Registry) {
	e.telemetry = reg
}

// Run validates req, dispatches MonteCarloRuns runs in parallel across a
// bounded worker pool, retries a failed run once with a fresh seed, and
// aggregates the results.
func (e *Engine) Run(ctx context.Context, sn *graph.Snapshot, scores criticality.Scores, req Request) (AggregateResult, error) {
	req.ApplyDefaults()

	known := make(map[string]bool, len(sn.Nodes))
	for id := range sn.Nodes {
		known[id] = true
	}
	if err := req.Validate(known); err != nil {
		return AggregateResult{}, err
	}

	affectedSize := estimateAffectedSubgraphSize(sn, req.Event.InitialFailures)
	ticks := req.HorizonMinutes / req.TimeStepMinutes
	work := float64(req.MonteCarloRuns) * float64(affectedSize) * ticks
	if e.WorkBudget > 0 && work > e.WorkBudget {
		return AggregateResult{}, rerrors.New(rerrors.BudgetExceeded, "simulation work estimate exceeds configured budget")
	}

	start := time.Now()
	fp := Fingerprint(sn.Version, req)
	master := masterSeed(fp)

	results, succeeded, retried, err := e.dispatch(ctx, sn, scores, req, master)
	if err != nil {
		e.recordOutcome(string(rerrors.KindOf(err)), retried, time.Since(start))
		return AggregateResult{}, err
	}

	resamples := e.BootstrapResamples
	if resamples <= 0 {
		resamples = 1000
	}
	aggRNG := rand.New(rand.NewSource(int64(master)))
	agg := Aggregate(results, req, scores, e.TopKPaths, resamples, aggRNG)
	agg.BottleneckNodes = rankBottlenecks(results, scores, req.HorizonMinutes, 5)
	agg.ComputationTimeSeconds = time.Since(start).Seconds()

	if succeeded < req.MonteCarloRuns {
		agg.Quality = &QualityWarning{RequestedRuns: req.MonteCarloRuns, SucceededRuns: succeeded}
	}
	e.recordOutcome("succeeded", retried, time.Since(start))
	return agg, nil
}

func (e *Engine) recordOutcome(outcome string, retried int64, elapsed time.Duration) {
	if e.telemetry == nil {
		return
	}
	e.telemetry.CascadeRunsTotal.WithLabelValues(string(outcome)).Inc()
	if retried > 0 {
		e.telemetry.CascadeRunsTotal.WithLabelValues("retried").Add(float64(retried))
	}
	e.telemetry.CascadeRunDuration.Observe(elapsed.Seconds())
}

// dispatch runs MonteCarloRuns runs concurrently, bounded to MaxConcurrency
// in flight at once, retrying a panicking/erroring run once with a fresh
// seed before dropping it from the result set.
func (e *Engine) dispatch(ctx context.Context, sn *graph.Snapshot, scores criticality.Scores, req Request, master uint64) ([]RunResult, int, int64, error) {
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, e.MaxConcurrency)

	var mu sync.Mutex
	var retried int64
	results := make([]RunResult, 0, req.MonteCarloRuns)

	for i := 0; i < req.MonteCarloRuns; i++ {
		index := i
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			result, usedRetry, err := runOnceWithRetry(gctx, sn, scores, req, master, index)
			if usedRetry {
				atomic.AddInt64(&retried, 1)
			}
			if err != nil {
				if rerrors.Is(err, rerrors.Cancelled) {
					return err
				}
				// both the original attempt and the retry failed; drop
				// this run from the aggregate rather than fail the job.
				return nil
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if rerrors.Is(err, rerrors.Cancelled) {
			return nil, 0, retried, err
		}
		return nil, 0, retried, rerrors.Wrap(rerrors.Internal, "cascade dispatch failed", err)
	}
	return results, len(results), retried, nil
}

// runOnceWithRetry executes index's run and, on failure, retries exactly
// once with a fresh seed derived from a perturbed run index.
func runOnceWithRetry(ctx context.Context, sn *graph.Snapshot, scores criticality.Scores, req Request, master uint64, index int) (result RunResult, usedRetry bool, err error) {
	result, err = safeRunSingle(ctx, sn, scores, req, master, index)
	if err == nil {
		return result, false, nil
	}
	if rerrors.Is(err, rerrors.Cancelled) {
		return RunResult{}, false, err
	}
	result, err = safeRunSingle(ctx, sn, scores, req, master, index+req.MonteCarloRuns)
	return result, true, err
}

// safeRunSingle recovers from a worker panic so a single bad run cannot take
// down the whole dispatch loop, reporting it as an internal error for the
// retry path to catch.
func safeRunSingle(ctx context.Context, sn *graph.Snapshot, scores criticality.Scores, req Request, master uint64, index int) (result RunResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = rerrors.New(rerrors.Internal, "cascade worker panicked")
		}
	}()
	rng := rand.New(rand.NewSource(runSeed(master, index)))
	return runSingle(ctx, sn, scores, req, rng)
}

// estimateAffectedSubgraphSize bounds the work estimate to the subgraph
// reachable from the initiating failures, rather than the whole graph.
func estimateAffectedSubgraphSize(sn *graph.Snapshot, seeds []string) int {
	visited := map[string]bool{}
	queue := append([]string{}, seeds...)
	for _, s := range seeds {
		visited[s] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range append(sn.InNeighbors(cur), sn.OutNeighbors(cur)...) {
			if !visited[nb] {
				visited[nb] = true
				queue = append(queue, nb)
			}
		}
	}
	return len(visited)
}
