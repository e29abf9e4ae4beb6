package reporting_test

import (
	"fmt"
	"os"
	"time"

	"github.com/jihwankim/resilience-core/pkg/reporting"
)

// Example demonstrates the reporting package usage
func Example() {
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelInfo,
		Format: reporting.LogFormatText,
		Output: os.Stdout,
	})

	logger.Info("simulation starting")
	logger.Info("event injected", "kind", "hurricane", "severity", "0.8")

	storage, err := reporting.NewStorage("./sim-reports", 10, logger)
	if err != nil {
		fmt.Printf("Failed to create storage: %v\n", err)
		return
	}
	defer os.RemoveAll("./sim-reports")

	report := &reporting.SimulationReport{
		JobID:              "job-12345",
		ScenarioName:       "coastal-hurricane",
		StartTime:          time.Now().Add(-5 * time.Minute),
		EndTime:            time.Now(),
		Duration:           "5m0s",
		Status:             reporting.StatusCompleted,
		RequestedRuns:      1000,
		SucceededRuns:      1000,
		FailureProbability: map[string]float64{"substation-7": 0.42},
		MeanTimeToFailure:  map[string]float64{"substation-7": 38.5},
		AffectedNodesCI:    reporting.CIReport{Low: 2.1, High: 4.8, Mean: 3.2},
		ImpactCI:           reporting.CIReport{Low: 5.0, High: 12.0, Mean: 8.1},
		BottleneckNodes: []reporting.BottleneckInfo{
			{NodeID: "substation-7", ImpactReduction: 1.9},
		},
	}

	path, err := storage.SaveReport(report)
	if err != nil {
		fmt.Printf("Failed to save report: %v\n", err)
		return
	}

	fmt.Printf("Report saved successfully\n")

	summaries, err := storage.ListReports()
	if err != nil {
		fmt.Printf("Failed to list reports: %v\n", err)
		return
	}

	fmt.Printf("Found %d report(s)\n", len(summaries))
	for _, summary := range summaries {
		fmt.Printf("  %s: %s (%s)\n", summary.JobID, summary.ScenarioName, summary.Status)
	}

	loadedReport, err := storage.LoadReport(path)
	if err != nil {
		fmt.Printf("Failed to load report: %v\n", err)
		return
	}

	fmt.Printf("Loaded report for job: %s\n", loadedReport.JobID)

	formatter := reporting.NewFormatter(logger)

	textPath := "./sim-reports/report.txt"
	if err := formatter.GenerateReport(report, reporting.ReportFormatText, textPath); err != nil {
		fmt.Printf("Failed to generate text report: %v\n", err)
		return
	}
	fmt.Printf("Text report generated\n")

	htmlPath := "./sim-reports/report.html"
	if err := formatter.GenerateReport(report, reporting.ReportFormatHTML, htmlPath); err != nil {
		fmt.Printf("Failed to generate HTML report: %v\n", err)
		return
	}
	fmt.Printf("HTML report generated\n")

	// Output will vary due to timestamps, so we don't include it
}
