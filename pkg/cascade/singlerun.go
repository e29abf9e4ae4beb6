package cascade

import (
	"context"
	"math"
	"math/rand"
	"sort"

	rerrors "github.com/jihwankim/resilience-core/pkg/errors"
	"github.com/jihwankim/resilience-core/pkg/criticality"
	"github.com/jihwankim/resilience-core/pkg/graph"
)

const stableTicksToStop = 3

type nodeState struct {
	failed            bool
	tFailed           float64
	cause             string
	redistributedLoad float64 // extra load absorbed from failed upstream
}

// runSingle executes one Monte-Carlo run against sn with the given request
// and scores, using rng for all sampling. It returns a pkg/errors error of
// kind Cancelled if ctx is cancelled at a tick boundary.
func runSingle(ctx context.Context, sn *graph.Snapshot, scores criticality.Scores, req Request, rng *rand.Rand) (RunResult, error) {
	states := make(map[string]*nodeState, len(sn.Nodes))
	for id := range sn.Nodes {
		states[id] = &nodeState{tFailed: math.Inf(1)}
	}
	for _, id := range req.Event.InitialFailures {
		states[id].failed = true
		states[id].tFailed = 0
		states[id].cause = ""
	}

	var timeline []FailureEvent
	for _, id := range sortedKeys(req.Event.InitialFailures) {
		timeline = append(timeline, FailureEvent{TMinutes: 0, NodeID: id})
	}

	unchangedTicks := 0
	step := req.TimeStepMinutes
	for t := step; t <= req.HorizonMinutes+1e-9; t += step {
		select {
		case <-ctx.Done():
			return RunResult{}, rerrors.New(rerrors.Cancelled, "cascade run cancelled")
		default:
		}

		changed := tick(sn, scores, req, states, t, rng, &timeline)
		if changed {
			unchangedTicks = 0
		} else {
			unchangedTicks++
		}

		if !anyFailedHasNonFailedDependency(sn, states) && !req.RecoveryEnabled {
			break
		}
		if unchangedTicks >= stableTicksToStop {
			break
		}
	}

	failed := make(map[string]bool, len(states))
	ttf := make(map[string]float64, len(states))
	for id, st := range states {
		failed[id] = st.failed
		ttf[id] = st.tFailed
	}

	result := RunResult{
		Timeline:      timeline,
		Failed:        failed,
		TimeToFailure: ttf,
	}
	result.ImpactScore = impactScore(scores, failed, ttf, req.HorizonMinutes)
	return result, nil
}

// tick advances every non-failed node by one step and applies
// redistribution/recovery; it returns whether any node's failed state
// changed this tick.
func tick(sn *graph.Snapshot, scores criticality.Scores, req Request, states map[string]*nodeState, t float64, rng *rand.Rand, timeline *[]FailureEvent) bool {
	changed := false

	type pendingFailure struct {
		nodeID string
		cause  string
	}
	var failures []pendingFailure

	ids := make([]string, 0, len(sn.Nodes))
	for id := range sn.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		st := states[id]
		if st.failed {
			continue
		}

		hazards := map[string]float64{}
		for _, dep := range sn.OutNeighbors(id) {
			depState := states[dep]
			if !depState.failed {
				continue
			}
			edge, ok := sn.Edge(id, dep)
			if !ok {
				continue
			}
			upstream, _ := sn.Node(dep)
			mult := eventMultiplier(req.Event, upstream)
			hazards[dep] = req.BasePropagationProbability * edge.PropagationProbability * edge.Strength * mult
		}

		p := noisyOR(valuesOf(hazards))

		effectiveLoadFactor := sn.Nodes[id].LoadFactor() + relativeRedistribution(sn, id, st)
		if !math.IsInf(req.LoadThresholdMultiplier, 1) && effectiveLoadFactor > req.LoadThresholdMultiplier {
			excess := effectiveLoadFactor - req.LoadThresholdMultiplier
			stressP := math.Min(1, excess*req.StressSensitivityK)
			p = noisyOR([]float64{p, stressP})
		}

		if rng.Float64() < p {
			cause := argmaxHazard(hazards)
			failures = append(failures, pendingFailure{nodeID: id, cause: cause})
		}
	}

	for _, f := range failures {
		edge, _ := sn.Edge(f.nodeID, f.cause)
		// latency is counted from the start of the tick interval (t-step)
		// over which this failure was sampled.
		tFail := (t - req.TimeStepMinutes) + edge.LatencyMS/60000.0
		states[f.nodeID].failed = true
		states[f.nodeID].tFailed = tFail
		states[f.nodeID].cause = f.cause
		*timeline = append(*timeline, FailureEvent{TMinutes: tFail, NodeID: f.nodeID, CauseID: f.cause})
		changed = true

		redistributeLoad(sn, f.nodeID, states, req.LoadRedistributionFraction)
	}

	if req.RecoveryEnabled {
		if recoverEligibleNodes(sn, states, req, rng, t) {
			changed = true
		}
	}

	return changed
}

// relativeRedistribution returns the redistributed load as a fraction of the
// node's own capacity, added on top of its own load factor.
func relativeRedistribution(sn *graph.Snapshot, id string, st *nodeState) float64 {
	n, ok := sn.Node(id)
	if !ok || n.Capacity <= 0 {
		return 0
	}
	return st.redistributedLoad / n.Capacity
}

// redistributeLoad moves a fraction alpha of the failed node's load equally
// across its still-alive in-neighbors (the nodes it supplies).
func redistributeLoad(sn *graph.Snapshot, failedID string, states map[string]*nodeState, alpha float64) {
	failedNode, ok := sn.Node(failedID)
	if !ok {
		return
	}
	var alive []string
	for _, dependent := range sn.InNeighbors(failedID) {
		if !states[dependent].failed {
			alive = append(alive, dependent)
		}
	}
	if len(alive) == 0 {
		return
	}
	share := (alpha * failedNode.Load) / float64(len(alive))
	for _, dependent := range alive {
		states[dependent].redistributedLoad += share
	}
}

// recoverEligibleNodes lets failed nodes whose dependencies have all
// recovered roll a per-tick recovery chance.
func recoverEligibleNodes(sn *graph.Snapshot, states map[string]*nodeState, req Request, rng *rand.Rand, t float64) bool {
	if req.MeanRecoveryTimeMinutes <= 0 {
		return false
	}
	changed := false
	ids := make([]string, 0, len(states))
	for id, st := range states {
		if st.failed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if !allDependenciesRecovered(sn, states, id) {
			continue
		}
		pRecover := req.TimeStepMinutes / req.MeanRecoveryTimeMinutes
		if rng.Float64() < pRecover {
			states[id].failed = false
			states[id].tFailed = math.Inf(1)
			states[id].cause = ""
			returnRedistributedLoad(sn, id, states)
			changed = true
		}
	}
	return changed
}

func allDependenciesRecovered(sn *graph.Snapshot, states map[string]*nodeState, id string) bool {
	for _, dep := range sn.OutNeighbors(id) {
		if states[dep].failed {
			return false
		}
	}
	return true
}

func returnRedistributedLoad(sn *graph.Snapshot, recoveredID string, states map[string]*nodeState) {
	for _, dependent := range sn.InNeighbors(recoveredID) {
		states[dependent].redistributedLoad = 0
	}
}

func anyFailedHasNonFailedDependency(sn *graph.Snapshot, states map[string]*nodeState) bool {
	for id, st := range states {
		if !st.failed {
			continue
		}
		for _, dep := range sn.OutNeighbors(id) {
			if !states[dep].failed {
				return true
			}
		}
	}
	return false
}

// noisyOR combines independent hazards via 1 - prod(1 - p_i).
func noisyOR(ps []float64) float64 {
	prod := 1.0
	for _, p := range ps {
		prod *= 1 - p
	}
	return 1 - prod
}

func valuesOf(m map[string]float64) []float64 {
	out := make([]float64, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// argmaxHazard returns the key of the largest value in m, tie-broken by
// lexicographically smallest key.
func argmaxHazard(m map[string]float64) string {
	var best string
	var bestVal float64 = -1
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if m[k] > bestVal {
			bestVal = m[k]
			best = k
		}
	}
	return best
}

func sortedKeys(ss []string) []string {
	out := append([]string{}, ss...)
	sort.Strings(out)
	return out
}

// impactScore is the weighted sum over failed nodes of
// criticality[n] * (1 + fail_time_penalty(t_failed[n])).
func impactScore(scores criticality.Scores, failed map[string]bool, ttf map[string]float64, horizon float64) float64 {
	tau := horizon / 4
	total := 0.0
	for id, isFailed := range failed {
		if !isFailed {
			continue
		}
		penalty := 0.0
		if tau > 0 {
			penalty = math.Exp(-ttf[id] / tau)
		}
		total += scores[id] * (1 + penalty)
	}
	return total
}
