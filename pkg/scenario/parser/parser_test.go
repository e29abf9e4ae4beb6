package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/resilience-core/pkg/scenario/parser"
)

const sampleYAML = `
apiVersion: resilience.io/v1
kind: SimulationScenario
metadata:
  name: coastal-hurricane
  tags: [hurricane, coastal]
spec:
  topology:
    nodes:
      - id: substation
        kind: power
        capacity: 100
        health: 1
      - id: pump-station
        kind: water
        capacity: 100
        health: 1
    edges:
      - src: pump-station
        dst: substation
        strength: 1
        propagation_probability: 0.9
  event:
    kind: hurricane
    severity: ${SEVERITY}
    initial_failures: [substation]
  request:
    horizon_minutes: 60
    time_step_minutes: 5
    monte_carlo_runs: 500
    base_propagation_probability: 0.5
`

func TestParseSubstitutesVariables(t *testing.T) {
	p := parser.New(map[string]string{"SEVERITY": "0.8"})
	s, err := p.Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 0.8, s.Spec.Event.Severity)
	assert.Equal(t, "coastal-hurricane", s.Metadata.Name)
	assert.Len(t, s.Spec.Topology.Nodes, 2)
}

func TestParseRejectsMissingRequiredFields(t *testing.T) {
	p := parser.New(nil)
	_, err := p.Parse([]byte("apiVersion: resilience.io/v1\nkind: SimulationScenario\n"))
	assert.Error(t, err)
}

func TestApplyOverridesSetsRequestKnobs(t *testing.T) {
	p := parser.New(map[string]string{"SEVERITY": "0.5"})
	s, err := p.Parse([]byte(sampleYAML))
	require.NoError(t, err)

	overrides, err := parser.ParseOverrides([]string{"monte_carlo_runs=1000", "severity=0.9"})
	require.NoError(t, err)
	require.NoError(t, parser.ApplyOverrides(s, overrides))

	assert.Equal(t, 1000, s.Spec.Request.MonteCarloRuns)
	assert.Equal(t, 0.9, s.Spec.Event.Severity)
}

func TestApplyOverridesRejectsUnknownKey(t *testing.T) {
	s, err := parser.New(map[string]string{"SEVERITY": "0.5"}).Parse([]byte(sampleYAML))
	require.NoError(t, err)

	err = parser.ApplyOverrides(s, map[string]string{"bogus": "1"})
	assert.Error(t, err)
}
