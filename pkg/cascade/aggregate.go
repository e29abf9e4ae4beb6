package cascade

import (
	"math"
	"math/rand"
	"sort"

	"github.com/jihwankim/resilience-core/pkg/criticality"
)

// Aggregate combines N independent RunResults into an AggregateResult.
func Aggregate(results []RunResult, req Request, scores criticality.Scores, topK, bootstrapResamples int, rng *rand.Rand) AggregateResult {
	n := len(results)
	failureCount := map[string]int{}
	ttfSum := map[string]float64{}
	ttfCount := map[string]int{}
	affectedCounts := make([]float64, n)
	impacts := make([]float64, n)

	for i, r := range results {
		affected := 0
		for id, failed := range r.Failed {
			if failed {
				affected++
				failureCount[id]++
				if !math.IsInf(r.TimeToFailure[id], 1) {
					ttfSum[id] += r.TimeToFailure[id]
					ttfCount[id]++
				}
			}
		}
		affectedCounts[i] = float64(affected)
		impacts[i] = r.ImpactScore
	}

	failureProbability := map[string]float64{}
	meanTTF := map[string]float64{}
	if n > 0 {
		for id, cnt := range failureCount {
			failureProbability[id] = float64(cnt) / float64(n)
		}
		for id, sum := range ttfSum {
			if ttfCount[id] > 0 {
				meanTTF[id] = sum / float64(ttfCount[id])
			}
		}
	}

	agg := AggregateResult{
		FailureProbability: failureProbability,
		MeanTimeToFailure:  meanTTF,
		AffectedNodesCI:    bootstrapCI(affectedCounts, req.ConfidenceLevel, bootstrapResamples, rng),
		ImpactCI:           bootstrapCI(impacts, req.ConfidenceLevel, bootstrapResamples, rng),
		CriticalPaths:      extractCriticalPaths(results, scores, topK),
		SucceededRuns:      n,
		RequestedRuns:      req.MonteCarloRuns,
	}
	return agg
}

// bootstrapCI computes a percentile bootstrap confidence interval at the
// given confidence level by resampling samples with replacement.
func bootstrapCI(samples []float64, confidence float64, resamples int, rng *rand.Rand) CI {
	if len(samples) == 0 {
		return CI{}
	}
	mean := 0.0
	for _, s := range samples {
		mean += s
	}
	mean /= float64(len(samples))

	if len(samples) == 1 {
		return CI{Low: samples[0], High: samples[0], Mean: mean}
	}

	if resamples <= 0 {
		resamples = 1000
	}
	means := make([]float64, resamples)
	for b := 0; b < resamples; b++ {
		sum := 0.0
		for i := 0; i < len(samples); i++ {
			sum += samples[rng.Intn(len(samples))]
		}
		means[b] = sum / float64(len(samples))
	}
	sort.Float64s(means)

	alpha := 1 - confidence
	lowIdx := int(alpha / 2 * float64(resamples))
	highIdx := int((1 - alpha/2) * float64(resamples))
	if highIdx >= resamples {
		highIdx = resamples - 1
	}
	return CI{Low: means[lowIdx], High: means[highIdx], Mean: mean}
}

// wilsonInterval computes the Wilson score interval for a binomial
// proportion phat observed over n trials, a closed-form alternative to the
// bootstrap above. Aggregate does not call it: both intervals it reports
// come from bootstrapCI, and no per-node interval is computed.
func wilsonInterval(successes, n int, confidence float64) CI {
	if n == 0 {
		return CI{}
	}
	phat := float64(successes) / float64(n)
	z := zScore(confidence)
	denom := 1 + z*z/float64(n)
	center := phat + z*z/(2*float64(n))
	margin := z * math.Sqrt(phat*(1-phat)/float64(n)+z*z/(4*float64(n)*float64(n)))
	return CI{
		Low:  (center - margin) / denom,
		High: (center + margin) / denom,
		Mean: phat,
	}
}

// zScore approximates the two-sided z critical value for common confidence
// levels; falls back to the 95% value otherwise.
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.576
	case confidence >= 0.95:
		return 1.96
	case confidence >= 0.90:
		return 1.645
	default:
		return 1.96
	}
}
