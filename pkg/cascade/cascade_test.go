package cascade_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/resilience-core/pkg/cascade"
	"github.com/jihwankim/resilience-core/pkg/criticality"
	"github.com/jihwankim/resilience-core/pkg/graph"
)

func twoNodeGraph(t *testing.T) *graph.Snapshot {
	t.Helper()
	s := graph.New()
	require.NoError(t, s.AddNode(graph.Node{ID: "P", Kind: graph.KindPower, Capacity: 100, Health: 1}))
	require.NoError(t, s.AddNode(graph.Node{ID: "H", Kind: graph.KindHealthcare, Capacity: 100, Health: 1}))
	require.NoError(t, s.AddEdge(graph.Edge{Src: "H", Dst: "P", Strength: 1, PropagationProbability: 1, LatencyMS: 60000}))
	return s.Snapshot()
}

func baseRequest() cascade.Request {
	return cascade.Request{
		ScenarioName:                "test",
		Event:                       cascade.Event{Kind: cascade.EventPowerOutage, Severity: 1, InitialFailures: []string{"P"}},
		HorizonMinutes:              10,
		TimeStepMinutes:             1,
		MonteCarloRuns:              100,
		ConfidenceLevel:             0.95,
		BasePropagationProbability:  1.0,
		LoadThresholdMultiplier:     math.Inf(1),
		LoadRedistributionFraction:  0.5,
		StressSensitivityK:          1.0,
	}
}

// Scenario 1 — two-node deterministic cascade.
func TestScenarioTwoNodeDeterministicCascade(t *testing.T) {
	sn := twoNodeGraph(t)
	scores := criticality.Blend(sn, criticality.DefaultWeights())
	req := baseRequest()

	engine := cascade.NewEngine(0, 4)
	agg, err := engine.Run(context.Background(), sn, scores, req)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, agg.FailureProbability["P"], 1e-9)
	assert.InDelta(t, 1.0, agg.FailureProbability["H"], 1e-9)
	assert.InDelta(t, 1.0, agg.MeanTimeToFailure["H"], 0.01)
}

// Scenario 2 — isolated node.
func TestScenarioIsolatedNodeNeverFails(t *testing.T) {
	s := graph.New()
	require.NoError(t, s.AddNode(graph.Node{ID: "P", Capacity: 100, Health: 1}))
	require.NoError(t, s.AddNode(graph.Node{ID: "H", Capacity: 100, Health: 1}))
	require.NoError(t, s.AddNode(graph.Node{ID: "I", Capacity: 100, Health: 1}))
	require.NoError(t, s.AddEdge(graph.Edge{Src: "H", Dst: "P", Strength: 1, PropagationProbability: 1, LatencyMS: 60000}))
	sn := s.Snapshot()
	scores := criticality.Blend(sn, criticality.DefaultWeights())

	req := baseRequest()
	engine := cascade.NewEngine(0, 4)
	agg, err := engine.Run(context.Background(), sn, scores, req)
	require.NoError(t, err)

	assert.Equal(t, 0.0, agg.FailureProbability["I"])
}

// Property: determinism — identical snapshot+request produce identical
// aggregates (bit-exact on fingerprinted fields).
func TestDeterminismAcrossRepeatedRuns(t *testing.T) {
	sn := twoNodeGraph(t)
	scores := criticality.Blend(sn, criticality.DefaultWeights())
	req := baseRequest()

	engine := cascade.NewEngine(0, 4)
	first, err := engine.Run(context.Background(), sn, scores, req)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), sn, scores, req)
	require.NoError(t, err)

	assert.Equal(t, first.FailureProbability, second.FailureProbability)
	assert.Equal(t, first.MeanTimeToFailure, second.MeanTimeToFailure)
}

// Property: initial closure.
func TestInitialFailuresHaveCertainFailureAndZeroTTF(t *testing.T) {
	sn := twoNodeGraph(t)
	scores := criticality.Blend(sn, criticality.DefaultWeights())
	req := baseRequest()

	engine := cascade.NewEngine(0, 4)
	agg, err := engine.Run(context.Background(), sn, scores, req)
	require.NoError(t, err)

	assert.Equal(t, 1.0, agg.FailureProbability["P"])
	assert.Equal(t, 0.0, agg.MeanTimeToFailure["P"])
}

// Property: budget_exceeded.
func TestWorkBudgetExceeded(t *testing.T) {
	sn := twoNodeGraph(t)
	scores := criticality.Blend(sn, criticality.DefaultWeights())
	req := baseRequest()
	req.MonteCarloRuns = 1_000_000

	engine := cascade.NewEngine(10, 4) // tiny budget
	_, err := engine.Run(context.Background(), sn, scores, req)
	require.Error(t, err)
}

// Property: invalid_request on unknown initial failure node.
func TestInvalidRequestOnUnknownInitialFailure(t *testing.T) {
	sn := twoNodeGraph(t)
	scores := criticality.Blend(sn, criticality.DefaultWeights())
	req := baseRequest()
	req.Event.InitialFailures = []string{"does-not-exist"}

	engine := cascade.NewEngine(0, 4)
	_, err := engine.Run(context.Background(), sn, scores, req)
	require.Error(t, err)
}

// Property: cancellation timeliness — a cancelled context stops the engine
// and reports `cancelled`.
func TestCancellationReturnsCancelledError(t *testing.T) {
	sn := twoNodeGraph(t)
	scores := criticality.Blend(sn, criticality.DefaultWeights())
	req := baseRequest()
	req.MonteCarloRuns = 1000

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := cascade.NewEngine(0, 4)
	_, err := engine.Run(ctx, sn, scores, req)
	require.Error(t, err)
}
