// Package scenario defines the on-disk YAML shape for a simulation
// scenario: a topology seed plus a triggering event plus the
// Monte-Carlo request knobs, loaded by cmd/resilience-sim's simulate
// subcommand.
package scenario

import (
	"github.com/jihwankim/resilience-core/pkg/cascade"
	"github.com/jihwankim/resilience-core/pkg/graph"
)

// Scenario is a complete simulation scenario document.
type Scenario struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Metadata   Metadata     `yaml:"metadata"`
	Spec       ScenarioSpec `yaml:"spec"`
}

// Metadata tags a scenario for operator reference.
type Metadata struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Author      string   `yaml:"author,omitempty"`
	Version     string   `yaml:"version,omitempty"`
}

// ScenarioSpec holds the topology to seed, the event to inject and the
// request knobs to run it with.
type ScenarioSpec struct {
	Topology Topology    `yaml:"topology"`
	Event    EventSeed   `yaml:"event"`
	Request  RequestSeed `yaml:"request"`
}

// Topology seeds a fresh graph.Store before the engine runs.
type Topology struct {
	Nodes []NodeSeed `yaml:"nodes"`
	Edges []EdgeSeed `yaml:"edges"`
}

// NodeSeed is one node of the topology.
type NodeSeed struct {
	ID         string                 `yaml:"id"`
	Kind       string                 `yaml:"kind"`
	Capacity   float64                `yaml:"capacity"`
	Load       float64                `yaml:"load,omitempty"`
	Health     float64                `yaml:"health"`
	Location   *LocationSeed          `yaml:"location,omitempty"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
}

// LocationSeed is an optional geographic position.
type LocationSeed struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// EdgeSeed is one directed dependency edge of the topology.
type EdgeSeed struct {
	Src                    string                 `yaml:"src"`
	Dst                    string                 `yaml:"dst"`
	Strength               float64                `yaml:"strength"`
	PropagationProbability float64                `yaml:"propagation_probability"`
	LatencyMS              float64                `yaml:"latency_ms,omitempty"`
	Properties             map[string]interface{} `yaml:"properties,omitempty"`
}

// EventSeed describes the initiating event.
type EventSeed struct {
	Kind            string           `yaml:"kind"`
	Severity        float64          `yaml:"severity"`
	Environment     *EnvironmentSeed `yaml:"environment,omitempty"`
	InitialFailures []string         `yaml:"initial_failures"`
}

// EnvironmentSeed optionally modulates propagation via ambient conditions.
type EnvironmentSeed struct {
	TemperatureC    *float64 `yaml:"temperature_c,omitempty"`
	WindSpeedKMH    *float64 `yaml:"wind_speed_kmh,omitempty"`
	PrecipitationMM *float64 `yaml:"precipitation_mm,omitempty"`
}

// RequestSeed is the Monte-Carlo request knobs, yaml-tagged the same way
// as pkg/config's knobs so scenario files and --set overrides read the
// same field names.
type RequestSeed struct {
	HorizonMinutes             float64 `yaml:"horizon_minutes"`
	TimeStepMinutes            float64 `yaml:"time_step_minutes"`
	MonteCarloRuns             int     `yaml:"monte_carlo_runs"`
	ConfidenceLevel            float64 `yaml:"confidence_level,omitempty"`
	BasePropagationProbability float64 `yaml:"base_propagation_probability"`
	LoadThresholdMultiplier    float64 `yaml:"load_threshold_multiplier,omitempty"`
	RecoveryEnabled            bool    `yaml:"recovery_enabled,omitempty"`
	MeanRecoveryTimeMinutes    float64 `yaml:"mean_recovery_time_minutes,omitempty"`
	LoadRedistributionFraction float64 `yaml:"load_redistribution_fraction,omitempty"`
	StressSensitivityK         float64 `yaml:"stress_sensitivity_k,omitempty"`
}

// GraphNodes converts the topology seed to graph.Node values.
func (t Topology) GraphNodes() []graph.Node {
	out := make([]graph.Node, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		gn := graph.Node{
			ID:         n.ID,
			Kind:       graph.Kind(n.Kind),
			Capacity:   n.Capacity,
			Load:       n.Load,
			Health:     n.Health,
			Properties: n.Properties,
		}
		if n.Location != nil {
			gn.Location = &graph.Location{Lat: n.Location.Lat, Lon: n.Location.Lon}
		}
		out = append(out, gn)
	}
	return out
}

// GraphEdges converts the topology seed to graph.Edge values.
func (t Topology) GraphEdges() []graph.Edge {
	out := make([]graph.Edge, 0, len(t.Edges))
	for _, e := range t.Edges {
		out = append(out, graph.Edge{
			Src:                    e.Src,
			Dst:                    e.Dst,
			Strength:               e.Strength,
			PropagationProbability: e.PropagationProbability,
			LatencyMS:              e.LatencyMS,
			Properties:             e.Properties,
		})
	}
	return out
}

// ToRequest converts the event and request sections to a cascade.Request,
// applying cascade's own zero-value defaults.
func (s *ScenarioSpec) ToRequest() cascade.Request {
	ev := cascade.Event{
		Kind:            cascade.EventKind(s.Event.Kind),
		Severity:        s.Event.Severity,
		InitialFailures: s.Event.InitialFailures,
	}
	if s.Event.Environment != nil {
		ev.Environment = &cascade.Environment{
			TemperatureC:    s.Event.Environment.TemperatureC,
			WindSpeedKMH:    s.Event.Environment.WindSpeedKMH,
			PrecipitationMM: s.Event.Environment.PrecipitationMM,
		}
	}

	req := cascade.Request{
		Event:                      ev,
		HorizonMinutes:             s.Request.HorizonMinutes,
		TimeStepMinutes:            s.Request.TimeStepMinutes,
		MonteCarloRuns:             s.Request.MonteCarloRuns,
		ConfidenceLevel:            s.Request.ConfidenceLevel,
		BasePropagationProbability: s.Request.BasePropagationProbability,
		LoadThresholdMultiplier:    s.Request.LoadThresholdMultiplier,
		RecoveryEnabled:            s.Request.RecoveryEnabled,
		MeanRecoveryTimeMinutes:    s.Request.MeanRecoveryTimeMinutes,
		LoadRedistributionFraction: s.Request.LoadRedistributionFraction,
		StressSensitivityK:         s.Request.StressSensitivityK,
	}
	req.ApplyDefaults()
	return req
}
