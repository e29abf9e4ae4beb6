// Package criticality computes per-node importance scores over a graph
// snapshot. The default algorithm is a weighted blend of reachability mass,
// in-degree centrality and capacity-health stress; callers may substitute
// any function with the same signature (e.g. a learned scorer).
package criticality

import (
	"sync"
	"time"

	"github.com/jihwankim/resilience-core/pkg/graph"
	"github.com/jihwankim/resilience-core/pkg/telemetry"
)

// Scores maps NodeID to a score in [0,1].
type Scores map[string]float64

// Scorer computes Scores for a snapshot. The default blend lives in Blend
// below; a learned scorer need only satisfy this signature.
type Scorer func(sn *graph.Snapshot) Scores

// Weights parameterizes Blend.
type Weights struct {
	Reachability float64
	Degree       float64
	Stress       float64
	MaxDepth     int
}

// DefaultWeights mirrors the spec's default blend: 0.5 reachability, 0.3
// degree, 0.2 stress, reachability bounded to depth 4.
func DefaultWeights() Weights {
	return Weights{Reachability: 0.5, Degree: 0.3, Stress: 0.2, MaxDepth: 4}
}

// Blend computes the default criticality score for every node in sn.
func Blend(sn *graph.Snapshot, w Weights) Scores {
	degree := weightedInDegree(sn)
	reach := reachabilityMass(sn, w.MaxDepth)
	stress := capacityHealthStress(sn)

	maxDegree := maxOf(degree)

	scores := make(Scores, len(sn.Nodes))
	for id := range sn.Nodes {
		d := 0.0
		if maxDegree > 0 {
			d = degree[id] / maxDegree
		}
		score := w.Reachability*reach[id] + w.Degree*d + w.Stress*stress[id]
		scores[id] = clamp01(score)
	}
	return scores
}

// weightedInDegree sums the strength of each node's incoming edges: "who
// depends on me" weighted by how strongly they depend on me.
func weightedInDegree(sn *graph.Snapshot) map[string]float64 {
	out := make(map[string]float64, len(sn.Nodes))
	for id := range sn.Nodes {
		total := 0.0
		for _, src := range sn.InNeighbors(id) {
			if e, ok := sn.Edge(src, id); ok {
				total += e.Strength
			}
		}
		out[id] = total
	}
	return out
}

// reachabilityMass computes, for each node, the fraction of nodes that
// transitively depend on it (follow reverse edges up to maxDepth hops).
func reachabilityMass(sn *graph.Snapshot, maxDepth int) map[string]float64 {
	total := float64(len(sn.Nodes))
	out := make(map[string]float64, len(sn.Nodes))
	if total == 0 {
		return out
	}
	for id := range sn.Nodes {
		visited := map[string]bool{id: true}
		queue := []string{id}
		depth := 0
		for len(queue) > 0 && depth < maxDepth {
			var next []string
			for _, cur := range queue {
				for _, src := range sn.InNeighbors(cur) {
					if !visited[src] {
						visited[src] = true
						next = append(next, src)
					}
				}
			}
			queue = next
			depth++
		}
		out[id] = float64(len(visited)-1) / total
	}
	return out
}

// capacityHealthStress is (1-health) * load_factor: stressed nodes score
// higher.
func capacityHealthStress(sn *graph.Snapshot) map[string]float64 {
	out := make(map[string]float64, len(sn.Nodes))
	for id, n := range sn.Nodes {
		out[id] = clamp01((1 - n.Health) * n.LoadFactor())
	}
	return out
}

func maxOf(m map[string]float64) float64 {
	max := 0.0
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Cache holds the most recently computed Scores for a graph version and
// refuses to serve scores older than StaleAfter without recomputation.
// Scores are immutable once computed for a given version; recomputation
// produces a new immutable map rather than mutating the cached one.
type Cache struct {
	scorer     Scorer
	staleAfter time.Duration

	mu       sync.Mutex
	version  uint64
	computed time.Time
	scores   Scores

	telemetry *telemetry.Registry
}

// NewCache wraps scorer with a staleness bound.
func NewCache(scorer Scorer, staleAfter time.Duration) *Cache {
	return &Cache{scorer: scorer, staleAfter: staleAfter}
}

// SetTelemetry attaches a metrics registry; the recompute counter is
// recorded from this point forward. Safe to call with nil to detach.
func (c *Cache) SetTelemetry(reg *telemetry.Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.telemetry = reg
}

// Get returns cached scores for sn.Version if they are still fresh and were
// computed from the same graph version; otherwise it recomputes.
func (c *Cache) Get(sn *graph.Snapshot) Scores {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scores != nil && c.version == sn.Version && time.Since(c.computed) < c.staleAfter {
		return c.scores
	}
	return c.refreshLocked(sn)
}

// Refresh forces recomputation regardless of staleness.
func (c *Cache) Refresh(sn *graph.Snapshot) Scores {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(sn)
}

func (c *Cache) refreshLocked(sn *graph.Snapshot) Scores {
	scores := c.scorer(sn)
	c.scores = scores
	c.version = sn.Version
	c.computed = time.Now()
	if c.telemetry != nil {
		c.telemetry.CriticalityRecomputed.Inc()
	}
	return scores
}
