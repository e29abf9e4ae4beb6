package coordinator_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/resilience-core/pkg/cascade"
	"github.com/jihwankim/resilience-core/pkg/config"
	"github.com/jihwankim/resilience-core/pkg/coordinator"
	"github.com/jihwankim/resilience-core/pkg/criticality"
	rerrors "github.com/jihwankim/resilience-core/pkg/errors"
	"github.com/jihwankim/resilience-core/pkg/fanout"
	"github.com/jihwankim/resilience-core/pkg/graph"
	"github.com/jihwankim/resilience-core/pkg/reporting"
)

func testLogger() *reporting.Logger {
	return reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelError,
		Format: reporting.LogFormatText,
		Output: os.Stderr,
	})
}

func twoNodeStore(t *testing.T) *graph.Store {
	t.Helper()
	store := graph.New()
	require.NoError(t, store.AddNode(graph.Node{ID: "substation", Kind: graph.KindPower, Capacity: 100, Health: 1}))
	require.NoError(t, store.AddNode(graph.Node{ID: "pump-station", Kind: graph.KindWater, Capacity: 100, Health: 1}))
	require.NoError(t, store.AddEdge(graph.Edge{Src: "pump-station", Dst: "substation", Strength: 1, PropagationProbability: 0.9}))
	return store
}

func newCoordinator(t *testing.T, cfg config.CoordinatorConfig) (*coordinator.Coordinator, *graph.Store) {
	t.Helper()
	store := twoNodeStore(t)
	cache := criticality.NewCache(func(sn *graph.Snapshot) criticality.Scores {
		return criticality.Blend(sn, criticality.DefaultWeights())
	}, time.Minute)
	engine := cascade.NewEngine(0, 4)
	fan := fanout.New(16)
	c := coordinator.New(store, cache, engine, fan, testLogger(), cfg)
	return c, store
}

func baseRequest(runs int) cascade.Request {
	req := cascade.Request{
		ScenarioName:    "coordinator-test",
		HorizonMinutes:  60,
		TimeStepMinutes: 5,
		MonteCarloRuns:  runs,
		Event: cascade.Event{
			Kind:            cascade.EventPowerOutage,
			Severity:        0.8,
			InitialFailures: []string{"substation"},
		},
		BasePropagationProbability: 0.5,
	}
	req.ApplyDefaults()
	return req
}

func TestSubmitAwaitRoundTrip(t *testing.T) {
	c, _ := newCoordinator(t, config.CoordinatorConfig{WorkerCount: 2, QueueCapacity: 2, BreakerInterval: time.Second, BreakerTimeout: time.Second})

	h, err := c.Submit("coordinator-test", baseRequest(20))
	require.NoError(t, err)

	result, err := c.Await(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, 20, result.RequestedRuns)
	assert.NotEmpty(t, result.FailureProbability)
}

func TestSubmitDedupsIdenticalConcurrentRequests(t *testing.T) {
	c, _ := newCoordinator(t, config.CoordinatorConfig{WorkerCount: 2, QueueCapacity: 2, BreakerInterval: time.Second, BreakerTimeout: time.Second})

	req := baseRequest(2000)

	h1, err := c.Submit("coordinator-test", req)
	require.NoError(t, err)
	h2, err := c.Submit("coordinator-test", req)
	require.NoError(t, err)

	var r1, r2 cascade.AggregateResult
	var e1, e2 error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); r1, e1 = c.Await(context.Background(), h1) }()
	go func() { defer wg.Done(); r2, e2 = c.Await(context.Background(), h2) }()
	wg.Wait()

	require.NoError(t, e1)
	require.NoError(t, e2)
	assert.Equal(t, r1.ComputationTimeSeconds, r2.ComputationTimeSeconds)
	assert.Equal(t, r1.FailureProbability, r2.FailureProbability)
	assert.Equal(t, r1.SucceededRuns, r2.SucceededRuns)
}

func TestAwaitUnknownHandle(t *testing.T) {
	c, _ := newCoordinator(t, config.CoordinatorConfig{WorkerCount: 1, QueueCapacity: 1, BreakerInterval: time.Second, BreakerTimeout: time.Second})

	_, err := c.Await(context.Background(), coordinator.Handle("does-not-exist"))
	require.Error(t, err)
	assert.True(t, rerrors.Is(err, rerrors.NotFound))
}

func TestAwaitRespectsCallerContext(t *testing.T) {
	c, _ := newCoordinator(t, config.CoordinatorConfig{WorkerCount: 1, QueueCapacity: 1, BreakerInterval: time.Second, BreakerTimeout: time.Second})

	h, err := c.Submit("coordinator-test", baseRequest(5000))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, err = c.Await(ctx, h)
	require.Error(t, err)
	assert.True(t, rerrors.Is(err, rerrors.Cancelled))

	require.NoError(t, c.Cancel(h))
}

func TestOverloadedBeyondWorkerAndQueueCapacity(t *testing.T) {
	c, store := newCoordinator(t, config.CoordinatorConfig{WorkerCount: 1, QueueCapacity: 1, BreakerInterval: time.Second, BreakerTimeout: time.Second})

	handles := make([]coordinator.Handle, 0, 3)
	var overloaded int
	for i := 0; i < 3; i++ {
		req := baseRequest(3000)
		req.Event.Severity = 0.5 + float64(i)*0.01 // vary so each submission gets its own fingerprint
		h, err := c.Submit("coordinator-test", req)
		if err != nil {
			require.True(t, rerrors.Is(err, rerrors.Overloaded))
			overloaded++
			continue
		}
		handles = append(handles, h)
	}
	assert.Greater(t, overloaded, 0)

	for _, h := range handles {
		require.NoError(t, c.Cancel(h))
	}
	_ = store
}

func TestCancelReferenceCounting(t *testing.T) {
	c, _ := newCoordinator(t, config.CoordinatorConfig{WorkerCount: 2, QueueCapacity: 2, BreakerInterval: time.Second, BreakerTimeout: time.Second})

	req := baseRequest(3000)
	h1, err := c.Submit("coordinator-test", req)
	require.NoError(t, err)
	h2, err := c.Submit("coordinator-test", req)
	require.NoError(t, err)

	require.NoError(t, c.Cancel(h1))

	result, err := c.Await(context.Background(), h2)
	require.NoError(t, err)
	assert.NotEmpty(t, result.FailureProbability)
}
