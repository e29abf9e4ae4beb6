package reporting

import (
	"time"

	"github.com/jihwankim/resilience-core/pkg/cascade"
)

// FromAggregate builds a SimulationReport from an engine AggregateResult.
func FromAggregate(jobID, scenarioName string, start, end time.Time, agg cascade.AggregateResult, runErr error) SimulationReport {
	report := SimulationReport{
		JobID:                  jobID,
		ScenarioName:           scenarioName,
		StartTime:              start,
		EndTime:                end,
		Duration:               end.Sub(start).String(),
		RequestedRuns:          agg.RequestedRuns,
		SucceededRuns:          agg.SucceededRuns,
		FailureProbability:     agg.FailureProbability,
		MeanTimeToFailure:      agg.MeanTimeToFailure,
		AffectedNodesCI:        CIReport(agg.AffectedNodesCI),
		ImpactCI:               CIReport(agg.ImpactCI),
		ComputationTimeSeconds: agg.ComputationTimeSeconds,
		Status:                 StatusCompleted,
	}

	for _, p := range agg.CriticalPaths {
		report.CriticalPaths = append(report.CriticalPaths, CriticalPathInfo{
			NodeIDs:     p.NodeIDs,
			Frequency:   p.Frequency,
			Criticality: p.Criticality,
		})
	}
	for _, b := range agg.BottleneckNodes {
		report.BottleneckNodes = append(report.BottleneckNodes, BottleneckInfo{
			NodeID:          b.NodeID,
			ImpactReduction: b.ImpactReduction,
		})
	}

	if agg.Quality != nil {
		report.Status = StatusPartial
		report.Message = "aggregate completed with fewer than the requested run count"
	}
	if runErr != nil {
		report.Status = StatusFailed
		report.Errors = append(report.Errors, runErr.Error())
	}
	return report
}
