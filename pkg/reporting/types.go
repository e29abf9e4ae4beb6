package reporting

import "time"

// SimulationReport is a complete cascade simulation execution report,
// suitable for persistence and for display to an operator.
type SimulationReport struct {
	JobID        string    `json:"job_id"`
	ScenarioName string    `json:"scenario_name"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Duration     string    `json:"duration"`

	Status  RunStatus `json:"status"`
	Message string    `json:"message,omitempty"`

	RequestedRuns int `json:"requested_runs"`
	SucceededRuns int `json:"succeeded_runs"`

	FailureProbability map[string]float64 `json:"failure_probability"`
	MeanTimeToFailure  map[string]float64 `json:"mean_time_to_failure"`
	AffectedNodesCI    CIReport           `json:"affected_nodes_ci"`
	ImpactCI           CIReport           `json:"impact_ci"`
	CriticalPaths      []CriticalPathInfo `json:"critical_paths,omitempty"`
	BottleneckNodes    []BottleneckInfo   `json:"bottleneck_nodes,omitempty"`

	ComputationTimeSeconds float64 `json:"computation_time_seconds"`

	Errors []string `json:"errors,omitempty"`
}

// RunStatus represents the status of a simulation job.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusPartial   RunStatus = "partial"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// CIReport is the JSON-friendly form of a confidence interval.
type CIReport struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
	Mean float64 `json:"mean"`
}

// CriticalPathInfo is the JSON-friendly form of a ranked failure chain.
type CriticalPathInfo struct {
	NodeIDs     []string `json:"node_ids"`
	Frequency   int      `json:"frequency"`
	Criticality float64  `json:"criticality,omitempty"`
}

// BottleneckInfo is the JSON-friendly form of a ranked bottleneck node.
type BottleneckInfo struct {
	NodeID          string  `json:"node_id"`
	ImpactReduction float64 `json:"impact_reduction"`
}

// LiveJobState represents the current state of a running simulation job.
type LiveJobState struct {
	JobID        string        `json:"job_id"`
	ScenarioName string        `json:"scenario_name"`
	State        string        `json:"state"`
	StartTime    time.Time     `json:"start_time"`
	Elapsed      time.Duration `json:"elapsed"`
}
