// Package parser loads scenario YAML files with ${VAR}/$VAR
// substitution and CLI --set overrides.
package parser

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jihwankim/resilience-core/pkg/scenario"
)

// Parser parses scenario YAML files.
type Parser struct {
	Variables map[string]string
}

// New creates a parser with optional seed variables.
func New(variables map[string]string) *Parser {
	if variables == nil {
		variables = make(map[string]string)
	}
	return &Parser{Variables: variables}
}

// ParseFile parses a scenario from a YAML file on disk.
func (p *Parser) ParseFile(path string) (*scenario.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return p.Parse(data)
}

// Parse parses a scenario from YAML bytes.
func (p *Parser) Parse(data []byte) (*scenario.Scenario, error) {
	substituted := p.substituteVariables(string(data))

	var s scenario.Scenario
	if err := yaml.Unmarshal([]byte(substituted), &s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := p.validateRequiredFields(&s); err != nil {
		return nil, err
	}

	return &s, nil
}

// substituteVariables replaces ${VAR} and $VAR with values from parser
// variables first, then the environment; unmatched variables are left
// untouched.
func (p *Parser) substituteVariables(content string) string {
	re := regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if val, ok := p.Variables[varName]; ok {
			return val
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// SetVariable sets a variable for substitution.
func (p *Parser) SetVariable(key, value string) {
	p.Variables[key] = value
}

// SetVariables sets multiple variables.
func (p *Parser) SetVariables(vars map[string]string) {
	for k, v := range vars {
		p.Variables[k] = v
	}
}

// ParseOverrides parses CLI override strings (--set key=value).
func ParseOverrides(overrides []string) (map[string]string, error) {
	result := make(map[string]string)

	for _, override := range overrides {
		parts := strings.SplitN(override, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid override format: %s (expected key=value)", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			return nil, fmt.Errorf("empty key in override: %s", override)
		}
		result[key] = value
	}

	return result, nil
}

// ApplyOverrides applies CLI overrides to a scenario's request knobs and
// event severity. This is a simple implementation covering the knobs an
// operator is most likely to sweep from the command line.
func ApplyOverrides(s *scenario.Scenario, overrides map[string]string) error {
	for key, value := range overrides {
		switch key {
		case "monte_carlo_runs", "request.monte_carlo_runs":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid monte_carlo_runs override: %w", err)
			}
			s.Spec.Request.MonteCarloRuns = n

		case "horizon_minutes", "request.horizon_minutes":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid horizon_minutes override: %w", err)
			}
			s.Spec.Request.HorizonMinutes = f

		case "time_step_minutes", "request.time_step_minutes":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid time_step_minutes override: %w", err)
			}
			s.Spec.Request.TimeStepMinutes = f

		case "confidence_level", "request.confidence_level":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid confidence_level override: %w", err)
			}
			s.Spec.Request.ConfidenceLevel = f

		case "severity", "event.severity":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid severity override: %w", err)
			}
			s.Spec.Event.Severity = f

		default:
			return fmt.Errorf("unsupported override key: %s", key)
		}
	}

	return nil
}

// validateRequiredFields checks structural presence before the validator
// package runs its semantic checks.
func (p *Parser) validateRequiredFields(s *scenario.Scenario) error {
	if s.APIVersion == "" {
		return fmt.Errorf("apiVersion is required")
	}
	if s.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if s.Metadata.Name == "" {
		return fmt.Errorf("metadata.name is required")
	}
	if len(s.Spec.Topology.Nodes) == 0 {
		return fmt.Errorf("spec.topology.nodes is required and must have at least one node")
	}
	if len(s.Spec.Event.InitialFailures) == 0 {
		return fmt.Errorf("spec.event.initial_failures is required and must be non-empty")
	}
	if s.Spec.Request.MonteCarloRuns == 0 {
		return fmt.Errorf("spec.request.monte_carlo_runs is required")
	}

	for i, n := range s.Spec.Topology.Nodes {
		if n.ID == "" {
			return fmt.Errorf("spec.topology.nodes[%d].id is required", i)
		}
	}
	for i, e := range s.Spec.Topology.Edges {
		if e.Src == "" || e.Dst == "" {
			return fmt.Errorf("spec.topology.edges[%d] requires src and dst", i)
		}
	}

	return nil
}
