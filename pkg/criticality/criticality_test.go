package criticality_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/resilience-core/pkg/criticality"
	"github.com/jihwankim/resilience-core/pkg/graph"
)

func buildHubGraph(t *testing.T) *graph.Snapshot {
	t.Helper()
	s := graph.New()
	require.NoError(t, s.AddNode(graph.Node{ID: "hub", Capacity: 100, Load: 90, Health: 0.5}))
	require.NoError(t, s.AddNode(graph.Node{ID: "leaf1", Capacity: 10, Health: 1}))
	require.NoError(t, s.AddNode(graph.Node{ID: "leaf2", Capacity: 10, Health: 1}))
	require.NoError(t, s.AddEdge(graph.Edge{Src: "leaf1", Dst: "hub", Strength: 1}))
	require.NoError(t, s.AddEdge(graph.Edge{Src: "leaf2", Dst: "hub", Strength: 0.5}))
	return s.Snapshot()
}

func TestBlendScoresWithinRange(t *testing.T) {
	sn := buildHubGraph(t)
	scores := criticality.Blend(sn, criticality.DefaultWeights())

	for id, score := range scores {
		assert.GreaterOrEqual(t, score, 0.0, "node %s score below 0", id)
		assert.LessOrEqual(t, score, 1.0, "node %s score above 1", id)
	}
}

func TestBlendHubScoresHigherThanLeaves(t *testing.T) {
	sn := buildHubGraph(t)
	scores := criticality.Blend(sn, criticality.DefaultWeights())

	assert.Greater(t, scores["hub"], scores["leaf1"])
	assert.Greater(t, scores["hub"], scores["leaf2"])
}

func TestBlendMonotonicInDegree(t *testing.T) {
	sn := buildHubGraph(t)
	w := criticality.DefaultWeights()
	before := criticality.Blend(sn, w)["hub"]

	s := graph.New()
	require.NoError(t, s.AddNode(graph.Node{ID: "hub", Capacity: 100, Load: 90, Health: 0.5}))
	require.NoError(t, s.AddNode(graph.Node{ID: "leaf1", Capacity: 10, Health: 1}))
	require.NoError(t, s.AddNode(graph.Node{ID: "leaf2", Capacity: 10, Health: 1}))
	require.NoError(t, s.AddNode(graph.Node{ID: "leaf3", Capacity: 10, Health: 1}))
	require.NoError(t, s.AddEdge(graph.Edge{Src: "leaf1", Dst: "hub", Strength: 1}))
	require.NoError(t, s.AddEdge(graph.Edge{Src: "leaf2", Dst: "hub", Strength: 0.5}))
	require.NoError(t, s.AddEdge(graph.Edge{Src: "leaf3", Dst: "hub", Strength: 1}))
	after := criticality.Blend(s.Snapshot(), w)["hub"]

	assert.GreaterOrEqual(t, after, before, "adding another dependent must not decrease degree-driven score")
}

func TestCacheRefreshAlwaysRecomputes(t *testing.T) {
	sn := buildHubGraph(t)
	calls := 0
	cache := criticality.NewCache(func(sn *graph.Snapshot) criticality.Scores {
		calls++
		return criticality.Blend(sn, criticality.DefaultWeights())
	}, 0) // staleAfter=0 means never cached long; use Refresh directly below

	cache.Refresh(sn)
	cache.Refresh(sn)
	assert.Equal(t, 2, calls)
}
