package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OutputFormat represents the progress output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatTUI  OutputFormat = "tui"
)

// ProgressReporter reports simulation job progress
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{
		format: format,
		logger: logger,
	}
}

// ReportState reports the current job state
func (pr *ProgressReporter) ReportState(state LiveJobState) {
	switch pr.format {
	case FormatJSON:
		pr.reportJSON(state)
	case FormatTUI:
		pr.reportTUI(state)
	default:
		pr.reportText(state)
	}
}

// ReportStateTransition reports a job state transition
func (pr *ProgressReporter) ReportStateTransition(from, to string) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":      "state_transition",
			"from_state": from,
			"to_state":   to,
			"timestamp":  time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("🔄 State Transition: %s → %s\n", from, to)
	default:
		fmt.Printf("[STATE] %s → %s\n", from, to)
	}
}

// ReportJobCompleted reports final job completion
func (pr *ProgressReporter) ReportJobCompleted(report *SimulationReport) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "job_completed",
			"report":    report,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		pr.printJobSummary(report)
	default:
		pr.printTextSummary(report)
	}
}

// reportText outputs progress in plain text format
func (pr *ProgressReporter) reportText(state LiveJobState) {
	elapsed := state.Elapsed.Round(time.Second)
	fmt.Printf("[%s] %s %s | Elapsed: %s\n",
		time.Now().Format("15:04:05"),
		state.JobID,
		state.State,
		elapsed,
	)
}

// reportJSON outputs progress in JSON format
func (pr *ProgressReporter) reportJSON(state LiveJobState) {
	data, err := json.Marshal(state)
	if err != nil {
		pr.logger.Error("failed to marshal job state", "error", err.Error())
		return
	}
	fmt.Println(string(data))
}

// reportTUI outputs progress in terminal UI format
func (pr *ProgressReporter) reportTUI(state LiveJobState) {
	pr.clearScreen()

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("   Cascade Simulation: %s\n", state.ScenarioName)
	fmt.Printf("   Job ID: %s\n", state.JobID)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Printf("📊 State: %s\n", state.State)
	fmt.Printf("⏱️  Elapsed: %s\n", state.Elapsed.Round(time.Second))
	fmt.Println()

	fmt.Println(strings.Repeat("─", 80))
}

// printJobSummary prints a job summary in TUI format
func (pr *ProgressReporter) printJobSummary(report *SimulationReport) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("   SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	statusIcon := "✅"
	if report.Status != StatusCompleted {
		statusIcon = "❌"
		if report.Status == StatusPartial {
			statusIcon = "⚠️"
		}
	}

	fmt.Printf("%s Simulation %s\n", statusIcon, report.Status)
	fmt.Printf("   Scenario: %s\n", report.ScenarioName)
	fmt.Printf("   Job ID: %s\n", report.JobID)
	fmt.Printf("   Duration: %s\n", report.Duration)
	fmt.Printf("   Runs: %d/%d succeeded\n", report.SucceededRuns, report.RequestedRuns)
	fmt.Println()

	if len(report.FailureProbability) > 0 {
		fmt.Printf("📈 Failure Probability (%d nodes):\n", len(report.FailureProbability))
		for id, p := range report.FailureProbability {
			fmt.Printf("   • %s: %.4f\n", id, p)
		}
		fmt.Println()
	}

	if len(report.BottleneckNodes) > 0 {
		fmt.Printf("🔴 Bottleneck Nodes (%d):\n", len(report.BottleneckNodes))
		for _, b := range report.BottleneckNodes {
			fmt.Printf("   • %s: impact_reduction=%.3f\n", b.NodeID, b.ImpactReduction)
		}
		fmt.Println()
	}

	fmt.Println(strings.Repeat("=", 80))
}

// printTextSummary prints a job summary in plain text format
func (pr *ProgressReporter) printTextSummary(report *SimulationReport) {
	fmt.Printf("\n[SIMULATION SUMMARY] %s\n", report.Status)
	fmt.Printf("  Scenario: %s\n", report.ScenarioName)
	fmt.Printf("  Job ID: %s\n", report.JobID)
	fmt.Printf("  Duration: %s\n", report.Duration)
	fmt.Printf("  Runs: %d/%d succeeded\n", report.SucceededRuns, report.RequestedRuns)
	if len(report.FailureProbability) > 0 {
		fmt.Printf("  Nodes evaluated: %d\n", len(report.FailureProbability))
	}
	fmt.Println()
}

// clearScreen clears the terminal screen
func (pr *ProgressReporter) clearScreen() {
	fmt.Print("\033[2J\033[H")
}

// clearLine clears the current line
func (pr *ProgressReporter) clearLine() {
	fmt.Print("\033[K")
}
