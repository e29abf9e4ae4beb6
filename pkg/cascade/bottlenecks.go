package cascade

import "sort"

// rankBottlenecks estimates each node's marginal contribution to aggregate
// impact by removing it from the successor-of-failure relation recorded in
// each run's timeline and replaying the recorded trajectories without
// re-sampling (no second Monte Carlo), so cost stays linear in run count.
// This mirrors an N-1 contingency analysis: for every candidate node, ask
// "how much impact would have been avoided had this node been hardened
// (never failed, never propagated onward)?"
func rankBottlenecks(results []RunResult, scores map[string]float64, horizon float64, topK int) []Bottleneck {
	candidates := map[string]bool{}
	for _, r := range results {
		for id, failed := range r.Failed {
			if failed {
				candidates[id] = true
			}
		}
	}

	reduction := map[string]float64{}
	for candidate := range candidates {
		total := 0.0
		for _, r := range results {
			total += impactWithoutNode(r, scores, horizon, candidate)
		}
		baseline := 0.0
		for _, r := range results {
			baseline += r.ImpactScore
		}
		reduction[candidate] = (baseline - total) / float64(max(1, len(results)))
	}

	out := make([]Bottleneck, 0, len(reduction))
	for id, delta := range reduction {
		out = append(out, Bottleneck{NodeID: id, ImpactReduction: delta})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ImpactReduction != out[j].ImpactReduction {
			return out[i].ImpactReduction > out[j].ImpactReduction
		}
		return out[i].NodeID < out[j].NodeID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// impactWithoutNode recomputes a run's impact score pretending candidate
// never failed and never appears as a cause of any other failure: its own
// contribution drops out, and anything it alone caused is excluded too.
func impactWithoutNode(r RunResult, scores map[string]float64, horizon float64, candidate string) float64 {
	failed := make(map[string]bool, len(r.Failed))
	ttf := make(map[string]float64, len(r.TimeToFailure))
	for id, v := range r.Failed {
		failed[id] = v
		ttf[id] = r.TimeToFailure[id]
	}
	if !failed[candidate] {
		return r.ImpactScore
	}
	failed[candidate] = false

	causedSolelyByCandidate := map[string]bool{}
	for _, ev := range r.Timeline {
		if ev.CauseID == candidate {
			causedSolelyByCandidate[ev.NodeID] = true
		}
	}
	for id := range causedSolelyByCandidate {
		failed[id] = false
	}

	return impactScore(scores, failed, ttf, horizon)
}
