// Package validator runs semantic checks over a parsed scenario beyond
// the parser's structural presence checks: bad references, out-of-range
// knobs, and scenarios likely to produce meaningless or runaway
// simulations.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jihwankim/resilience-core/pkg/scenario"
)

// Validator accumulates warnings (non-fatal) and errors (fatal) for one
// scenario.
type Validator struct {
	Warnings []string
	Errors   []string
}

// New creates a validator.
func New() *Validator {
	return &Validator{Warnings: make([]string, 0), Errors: make([]string, 0)}
}

// Validate validates a scenario, resetting any prior run's findings.
func (v *Validator) Validate(s *scenario.Scenario) error {
	v.Warnings = v.Warnings[:0]
	v.Errors = v.Errors[:0]

	v.validateAPIVersion(s)
	v.validateKind(s)
	v.validateMetadata(s)
	v.validateTopology(s)
	v.validateEvent(s)
	v.validateRequest(s)
	v.checkRunawayScenarios(s)

	if len(v.Errors) > 0 {
		return fmt.Errorf("validation failed with %d errors", len(v.Errors))
	}
	return nil
}

// HasWarnings reports whether the last Validate call produced warnings.
func (v *Validator) HasWarnings() bool {
	return len(v.Warnings) > 0
}

// HasErrors reports whether the last Validate call produced errors.
func (v *Validator) HasErrors() bool {
	return len(v.Errors) > 0
}

// GetReport formats the accumulated warnings and errors for CLI output.
func (v *Validator) GetReport() string {
	var sb strings.Builder

	if len(v.Errors) > 0 {
		sb.WriteString("ERRORS:\n")
		for _, err := range v.Errors {
			sb.WriteString(fmt.Sprintf("  - %s\n", err))
		}
	}
	if len(v.Warnings) > 0 {
		sb.WriteString("\nWARNINGS:\n")
		for _, warn := range v.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}
	if len(v.Errors) == 0 && len(v.Warnings) == 0 {
		sb.WriteString("Validation passed with no issues.\n")
	}

	return sb.String()
}

func (v *Validator) validateAPIVersion(s *scenario.Scenario) {
	if s.APIVersion == "" {
		v.Errors = append(v.Errors, "apiVersion is required")
		return
	}
	if s.APIVersion != "resilience.io/v1" {
		v.Warnings = append(v.Warnings, fmt.Sprintf("apiVersion '%s' may not be supported (expected: resilience.io/v1)", s.APIVersion))
	}
}

func (v *Validator) validateKind(s *scenario.Scenario) {
	if s.Kind == "" {
		v.Errors = append(v.Errors, "kind is required")
		return
	}
	if s.Kind != "SimulationScenario" {
		v.Warnings = append(v.Warnings, fmt.Sprintf("kind '%s' may not be supported (expected: SimulationScenario)", s.Kind))
	}
}

var nameRegex = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

func (v *Validator) validateMetadata(s *scenario.Scenario) {
	if s.Metadata.Name == "" {
		v.Errors = append(v.Errors, "metadata.name is required")
		return
	}
	if !nameRegex.MatchString(s.Metadata.Name) {
		v.Errors = append(v.Errors, "metadata.name must be lowercase alphanumeric with hyphens")
	}
}

func (v *Validator) validateTopology(s *scenario.Scenario) {
	if len(s.Spec.Topology.Nodes) == 0 {
		v.Errors = append(v.Errors, "spec.topology.nodes must have at least one node")
		return
	}

	ids := make(map[string]bool, len(s.Spec.Topology.Nodes))
	for i, n := range s.Spec.Topology.Nodes {
		if n.ID == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("spec.topology.nodes[%d].id is required", i))
			continue
		}
		if ids[n.ID] {
			v.Errors = append(v.Errors, fmt.Sprintf("spec.topology.nodes[%d].id '%s' is duplicated", i, n.ID))
		}
		ids[n.ID] = true

		if n.Capacity < 0 {
			v.Errors = append(v.Errors, fmt.Sprintf("spec.topology.nodes[%d].capacity cannot be negative", i))
		}
		if n.Health < 0 || n.Health > 1 {
			v.Errors = append(v.Errors, fmt.Sprintf("spec.topology.nodes[%d].health must be in [0,1]", i))
		}
	}

	for i, e := range s.Spec.Topology.Edges {
		if e.Src == "" || e.Dst == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("spec.topology.edges[%d] requires src and dst", i))
			continue
		}
		if !ids[e.Src] {
			v.Errors = append(v.Errors, fmt.Sprintf("spec.topology.edges[%d].src '%s' references an unknown node", i, e.Src))
		}
		if !ids[e.Dst] {
			v.Errors = append(v.Errors, fmt.Sprintf("spec.topology.edges[%d].dst '%s' references an unknown node", i, e.Dst))
		}
		if e.PropagationProbability < 0 || e.PropagationProbability > 1 {
			v.Errors = append(v.Errors, fmt.Sprintf("spec.topology.edges[%d].propagation_probability must be in [0,1]", i))
		}
	}
}

func (v *Validator) validateEvent(s *scenario.Scenario) {
	ev := s.Spec.Event
	if ev.Kind == "" {
		v.Errors = append(v.Errors, "spec.event.kind is required")
	}
	if ev.Severity < 0 || ev.Severity > 1 {
		v.Errors = append(v.Errors, "spec.event.severity must be in [0,1]")
	}
	if len(ev.InitialFailures) == 0 {
		v.Errors = append(v.Errors, "spec.event.initial_failures must be non-empty")
		return
	}

	ids := make(map[string]bool, len(s.Spec.Topology.Nodes))
	for _, n := range s.Spec.Topology.Nodes {
		ids[n.ID] = true
	}
	for i, id := range ev.InitialFailures {
		if !ids[id] {
			v.Errors = append(v.Errors, fmt.Sprintf("spec.event.initial_failures[%d] '%s' references an unknown node", i, id))
		}
	}
}

func (v *Validator) validateRequest(s *scenario.Scenario) {
	r := s.Spec.Request
	if r.MonteCarloRuns <= 0 {
		v.Errors = append(v.Errors, "spec.request.monte_carlo_runs must be positive")
	}
	if r.TimeStepMinutes <= 0 {
		v.Errors = append(v.Errors, "spec.request.time_step_minutes must be positive")
	}
	if r.HorizonMinutes <= 0 || r.TimeStepMinutes > r.HorizonMinutes {
		v.Errors = append(v.Errors, "spec.request.horizon_minutes must be positive and >= time_step_minutes")
	}
	if r.ConfidenceLevel != 0 && (r.ConfidenceLevel <= 0 || r.ConfidenceLevel >= 1) {
		v.Errors = append(v.Errors, "spec.request.confidence_level must be in (0,1)")
	}
	if r.BasePropagationProbability < 0 || r.BasePropagationProbability > 1 {
		v.Errors = append(v.Errors, "spec.request.base_propagation_probability must be in [0,1]")
	}
}

func (v *Validator) checkRunawayScenarios(s *scenario.Scenario) {
	if len(s.Spec.Event.InitialFailures) == len(s.Spec.Topology.Nodes) && len(s.Spec.Topology.Nodes) > 0 {
		v.Warnings = append(v.Warnings, "every node is an initial failure; there is nothing left to cascade")
	}

	steps := 0.0
	if s.Spec.Request.TimeStepMinutes > 0 {
		steps = s.Spec.Request.HorizonMinutes / s.Spec.Request.TimeStepMinutes
	}
	work := float64(s.Spec.Request.MonteCarloRuns) * float64(len(s.Spec.Topology.Nodes)) * steps
	if work > 50_000_000 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("requested run is very large (runs=%d, nodes=%d, steps=%.0f); consider a lower monte_carlo_runs or a smaller horizon", s.Spec.Request.MonteCarloRuns, len(s.Spec.Topology.Nodes), steps))
	}
}
