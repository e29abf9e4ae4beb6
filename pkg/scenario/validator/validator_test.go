package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/resilience-core/pkg/scenario"
	"github.com/jihwankim/resilience-core/pkg/scenario/validator"
)

func validScenario() *scenario.Scenario {
	return &scenario.Scenario{
		APIVersion: "resilience.io/v1",
		Kind:       "SimulationScenario",
		Metadata:   scenario.Metadata{Name: "coastal-hurricane"},
		Spec: scenario.ScenarioSpec{
			Topology: scenario.Topology{
				Nodes: []scenario.NodeSeed{
					{ID: "substation", Kind: "power", Capacity: 100, Health: 1},
					{ID: "pump-station", Kind: "water", Capacity: 100, Health: 1},
				},
				Edges: []scenario.EdgeSeed{
					{Src: "pump-station", Dst: "substation", Strength: 1, PropagationProbability: 0.9},
				},
			},
			Event: scenario.EventSeed{Kind: "hurricane", Severity: 0.8, InitialFailures: []string{"substation"}},
			Request: scenario.RequestSeed{
				HorizonMinutes:             60,
				TimeStepMinutes:            5,
				MonteCarloRuns:             500,
				BasePropagationProbability: 0.5,
			},
		},
	}
}

func TestValidateAcceptsWellFormedScenario(t *testing.T) {
	v := validator.New()
	require.NoError(t, v.Validate(validScenario()))
	assert.False(t, v.HasErrors())
}

func TestValidateRejectsUnknownEdgeReference(t *testing.T) {
	s := validScenario()
	s.Spec.Topology.Edges = append(s.Spec.Topology.Edges, scenario.EdgeSeed{Src: "substation", Dst: "ghost", PropagationProbability: 0.5})

	v := validator.New()
	err := v.Validate(s)
	assert.Error(t, err)
	assert.True(t, v.HasErrors())
}

func TestValidateRejectsUnknownInitialFailure(t *testing.T) {
	s := validScenario()
	s.Spec.Event.InitialFailures = []string{"ghost"}

	v := validator.New()
	assert.Error(t, v.Validate(s))
}

func TestValidateWarnsWhenEveryNodeIsAnInitialFailure(t *testing.T) {
	s := validScenario()
	s.Spec.Event.InitialFailures = []string{"substation", "pump-station"}

	v := validator.New()
	require.NoError(t, v.Validate(s))
	assert.True(t, v.HasWarnings())
}

func TestValidateRejectsOutOfRangeSeverity(t *testing.T) {
	s := validScenario()
	s.Spec.Event.Severity = 1.5

	v := validator.New()
	assert.Error(t, v.Validate(s))
}

func TestValidateRejectsDuplicateNodeIDs(t *testing.T) {
	s := validScenario()
	s.Spec.Topology.Nodes = append(s.Spec.Topology.Nodes, scenario.NodeSeed{ID: "substation", Kind: "power", Capacity: 10, Health: 1})

	v := validator.New()
	assert.Error(t, v.Validate(s))
}
