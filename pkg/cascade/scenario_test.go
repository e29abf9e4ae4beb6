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

// Scenario 3 — branching determinism: P supplies H1 and H2, each with
// propagation=0.5. failure_probability[H1] and [H2] should be close within
// Monte-Carlo tolerance at N=1000, and repeated runs against a fixed seed
// must be identical.
func TestScenarioBranchingDeterminism(t *testing.T) {
	s := graph.New()
	require.NoError(t, s.AddNode(graph.Node{ID: "P", Kind: graph.KindPower, Capacity: 100, Health: 1}))
	require.NoError(t, s.AddNode(graph.Node{ID: "H1", Kind: graph.KindHealthcare, Capacity: 100, Health: 1}))
	require.NoError(t, s.AddNode(graph.Node{ID: "H2", Kind: graph.KindHealthcare, Capacity: 100, Health: 1}))
	require.NoError(t, s.AddEdge(graph.Edge{Src: "H1", Dst: "P", Strength: 1, PropagationProbability: 0.5, LatencyMS: 60000}))
	require.NoError(t, s.AddEdge(graph.Edge{Src: "H2", Dst: "P", Strength: 1, PropagationProbability: 0.5, LatencyMS: 60000}))
	sn := s.Snapshot()
	scores := criticality.Blend(sn, criticality.DefaultWeights())

	req := cascade.Request{
		Event:                       cascade.Event{Kind: cascade.EventOther, Severity: 0, InitialFailures: []string{"P"}},
		HorizonMinutes:              10,
		TimeStepMinutes:             1,
		MonteCarloRuns:              1000,
		ConfidenceLevel:             0.95,
		BasePropagationProbability:  1.0,
		LoadThresholdMultiplier:     math.Inf(1),
		LoadRedistributionFraction:  0.5,
		StressSensitivityK:          1.0,
	}

	engine := cascade.NewEngine(0, 8)
	first, err := engine.Run(context.Background(), sn, scores, req)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), sn, scores, req)
	require.NoError(t, err)

	assert.Equal(t, first.FailureProbability, second.FailureProbability, "identical request+snapshot must be bit-exact across runs")
	assert.InDelta(t, first.FailureProbability["H1"], first.FailureProbability["H2"], 0.1, "symmetric branches should converge within Monte-Carlo tolerance")
}
