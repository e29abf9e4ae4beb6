package cascade

import (
	"sort"

	"github.com/jihwankim/resilience-core/pkg/criticality"
)

// extractCriticalPaths reconstructs the failure forest (parent = cause) of
// each run, extracts chains from initial failures to leaves, tallies chain
// frequency across runs, and returns the top-K by frequency, ties broken by
// total criticality along the path (see chainKey for cycle handling).
func extractCriticalPaths(results []RunResult, scores criticality.Scores, topK int) []CriticalPath {
	freq := map[string]int{}
	pathByKey := map[string][]string{}

	for _, r := range results {
		for _, chain := range leafChains(r) {
			key := chainKey(chain)
			freq[key]++
			if _, ok := pathByKey[key]; !ok {
				pathByKey[key] = chain
			}
		}
	}

	paths := make([]CriticalPath, 0, len(freq))
	for key, count := range freq {
		nodeIDs := pathByKey[key]
		paths = append(paths, CriticalPath{
			NodeIDs:     nodeIDs,
			Frequency:   count,
			Criticality: pathCriticality(nodeIDs, scores),
		})
	}

	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Frequency != paths[j].Frequency {
			return paths[i].Frequency > paths[j].Frequency
		}
		if paths[i].Criticality != paths[j].Criticality {
			return paths[i].Criticality > paths[j].Criticality
		}
		return chainKey(paths[i].NodeIDs) < chainKey(paths[j].NodeIDs)
	})

	if topK > 0 && len(paths) > topK {
		paths = paths[:topK]
	}
	return paths
}

// pathCriticality sums each node's blended criticality score along the path.
func pathCriticality(nodeIDs []string, scores criticality.Scores) float64 {
	total := 0.0
	for _, id := range nodeIDs {
		total += scores[id]
	}
	return total
}

// leafChains walks each run's cause pointers from every failed leaf node
// (one with no node caused by it) back to its root initial failure,
// breaking cycles deterministically by refusing to revisit a node already
// on the current chain (cyclic cause graphs are possible only in
// pathological inputs).
func leafChains(r RunResult) [][]string {
	causedBy := map[string][]string{} // cause -> children it caused
	for _, ev := range r.Timeline {
		if ev.CauseID != "" {
			causedBy[ev.CauseID] = append(causedBy[ev.CauseID], ev.NodeID)
		}
	}
	for cause := range causedBy {
		sort.Strings(causedBy[cause])
	}

	isLeaf := func(id string) bool {
		return len(causedBy[id]) == 0
	}

	causeOf := map[string]string{}
	for _, ev := range r.Timeline {
		causeOf[ev.NodeID] = ev.CauseID
	}

	var chains [][]string
	ids := make([]string, 0, len(r.Failed))
	for id, failed := range r.Failed {
		if failed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if !isLeaf(id) {
			continue
		}
		chain := []string{id}
		visited := map[string]bool{id: true}
		cur := id
		for {
			cause := causeOf[cur]
			if cause == "" || visited[cause] {
				break
			}
			chain = append(chain, cause)
			visited[cause] = true
			cur = cause
		}
		// reverse so chain reads root -> leaf
		for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
			chain[i], chain[j] = chain[j], chain[i]
		}
		chains = append(chains, chain)
	}
	return chains
}

func chainKey(chain []string) string {
	key := ""
	for i, id := range chain {
		if i > 0 {
			key += ">"
		}
		key += id
	}
	return key
}
