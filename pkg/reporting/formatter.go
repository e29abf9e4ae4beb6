package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ReportFormat represents the report output format
type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// Formatter generates formatted reports from simulation data
type Formatter struct {
	logger *Logger
}

// NewFormatter creates a new report formatter
func NewFormatter(logger *Logger) *Formatter {
	return &Formatter{
		logger: logger,
	}
}

// GenerateReport generates a report in the specified format
func (f *Formatter) GenerateReport(report *SimulationReport, format ReportFormat, outputPath string) error {
	switch format {
	case ReportFormatHTML:
		return f.generateHTMLReport(report, outputPath)
	case ReportFormatText:
		return f.generateTextReport(report, outputPath)
	case ReportFormatJSON:
		// Already handled by Storage.SaveReport
		return fmt.Errorf("JSON format is automatically saved by storage")
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// generateHTMLReport generates an HTML report
func (f *Formatter) generateHTMLReport(report *SimulationReport, outputPath string) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
		"statusClass": func(status RunStatus) string {
			if status == StatusCompleted {
				return "pass"
			}
			return "fail"
		},
		"statusIcon": func(status RunStatus) string {
			if status == StatusCompleted {
				return "✅"
			}
			return "❌"
		},
	}).Parse(htmlTemplate)

	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, report); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}

	f.logger.Info("HTML report generated", "path", outputPath)
	return nil
}

// generateTextReport generates a plain text report
func (f *Formatter) generateTextReport(report *SimulationReport, outputPath string) error {
	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   CASCADE SIMULATION REPORT\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	buf.WriteString("SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Status:        %s\n", report.Status))
	buf.WriteString(fmt.Sprintf("Job ID:        %s\n", report.JobID))
	buf.WriteString(fmt.Sprintf("Scenario:      %s\n", report.ScenarioName))
	buf.WriteString(fmt.Sprintf("Start Time:    %s\n", report.StartTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("End Time:      %s\n", report.EndTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("Duration:      %s\n", report.Duration))
	buf.WriteString(fmt.Sprintf("Runs:          %d/%d succeeded\n", report.SucceededRuns, report.RequestedRuns))
	if report.Message != "" {
		buf.WriteString(fmt.Sprintf("Message:       %s\n", report.Message))
	}
	buf.WriteString("\n")

	if len(report.FailureProbability) > 0 {
		buf.WriteString("FAILURE PROBABILITY\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		ids := sortedKeys(report.FailureProbability)
		for _, id := range ids {
			ttf := report.MeanTimeToFailure[id]
			buf.WriteString(fmt.Sprintf("  %-24s p_fail=%.4f  mean_ttf=%.2fmin\n", id, report.FailureProbability[id], ttf))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("CONFIDENCE INTERVALS\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Affected nodes: mean=%.2f  [%.2f, %.2f]\n", report.AffectedNodesCI.Mean, report.AffectedNodesCI.Low, report.AffectedNodesCI.High))
	buf.WriteString(fmt.Sprintf("Impact score:   mean=%.2f  [%.2f, %.2f]\n", report.ImpactCI.Mean, report.ImpactCI.Low, report.ImpactCI.High))
	buf.WriteString("\n")

	if len(report.CriticalPaths) > 0 {
		buf.WriteString("CRITICAL PATHS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, p := range report.CriticalPaths {
			buf.WriteString(fmt.Sprintf("%d. %s (freq=%d, criticality=%.3f)\n", i+1, strings.Join(p.NodeIDs, " > "), p.Frequency, p.Criticality))
		}
		buf.WriteString("\n")
	}

	if len(report.BottleneckNodes) > 0 {
		buf.WriteString("BOTTLENECK NODES\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, b := range report.BottleneckNodes {
			buf.WriteString(fmt.Sprintf("%d. %-24s impact_reduction=%.3f\n", i+1, b.NodeID, b.ImpactReduction))
		}
		buf.WriteString("\n")
	}

	if len(report.Errors) > 0 {
		buf.WriteString("ERRORS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, err := range report.Errors {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, err))
		}
		buf.WriteString("\n")
	}

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Generated: %s\n", time.Now().Format("2006-01-02 15:04:05")))
	buf.WriteString(strings.Repeat("=", 80) + "\n")

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}

	f.logger.Info("text report generated", "path", outputPath)
	return nil
}

// CompareReports generates a comparison report across multiple simulation runs
func (f *Formatter) CompareReports(reports []*SimulationReport, outputPath string) error {
	if len(reports) < 2 {
		return fmt.Errorf("need at least 2 reports to compare")
	}

	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   CASCADE SIMULATION COMPARISON\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartTime.Before(reports[j].StartTime)
	})

	buf.WriteString("SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("%-20s %-15s %-12s %-10s %-10s\n",
		"Job ID", "Scenario", "Status", "Duration", "Runs"))
	buf.WriteString(strings.Repeat("-", 80) + "\n")

	for _, report := range reports {
		buf.WriteString(fmt.Sprintf("%-20s %-15s %-12s %-10s %d/%d\n",
			report.JobID[:min(20, len(report.JobID))],
			report.ScenarioName[:min(15, len(report.ScenarioName))],
			report.Status,
			report.Duration,
			report.SucceededRuns,
			report.RequestedRuns,
		))
	}
	buf.WriteString("\n")

	buf.WriteString("FAILURE PROBABILITY COMPARISON\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")

	nodeIDs := make(map[string]bool)
	for _, report := range reports {
		for id := range report.FailureProbability {
			nodeIDs[id] = true
		}
	}
	ids := make([]string, 0, len(nodeIDs))
	for id := range nodeIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		buf.WriteString(fmt.Sprintf("\n%s:\n", id))
		for _, report := range reports {
			p, ok := report.FailureProbability[id]
			if !ok {
				buf.WriteString(fmt.Sprintf("  - [%s] not evaluated\n", report.JobID[:min(12, len(report.JobID))]))
				continue
			}
			buf.WriteString(fmt.Sprintf("  [%s] p_fail=%.4f (%s)\n",
				report.JobID[:min(12, len(report.JobID))], p, report.StartTime.Format("15:04:05")))
		}
	}
	buf.WriteString("\n")

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write comparison report: %w", err)
	}

	f.logger.Info("comparison report generated", "path", outputPath)
	return nil
}

// GetReportPath generates a report file path based on a simulation report and format
func GetReportPath(report *SimulationReport, format ReportFormat, outputDir string) string {
	timestamp := report.StartTime.Format("20060102-150405")
	ext := string(format)
	filename := fmt.Sprintf("report-%s-%s.%s", timestamp, report.JobID, ext)
	return filepath.Join(outputDir, filename)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// HTML template for report generation
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Cascade Simulation Report - {{.JobID}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .container {
            background-color: white;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            padding: 30px;
        }
        h1, h2 {
            color: #2c3e50;
            border-bottom: 2px solid #3498db;
            padding-bottom: 10px;
        }
        .header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px;
            border-radius: 8px 8px 0 0;
            margin: -30px -30px 30px -30px;
        }
        .status {
            display: inline-block;
            padding: 5px 15px;
            border-radius: 4px;
            font-weight: bold;
            margin-left: 10px;
        }
        .status.pass { background-color: #27ae60; color: white; }
        .status.fail { background-color: #e74c3c; color: white; }
        .info-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin: 20px 0;
        }
        .info-box { background-color: #ecf0f1; padding: 15px; border-radius: 4px; }
        .info-label { font-weight: bold; color: #7f8c8d; font-size: 0.9em; margin-bottom: 5px; }
        .info-value { font-size: 1.1em; color: #2c3e50; }
        table { width: 100%; border-collapse: collapse; margin: 20px 0; }
        th, td { padding: 12px; text-align: left; border-bottom: 1px solid #ddd; }
        th { background-color: #3498db; color: white; }
        tr:hover { background-color: #f5f5f5; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Cascade Simulation Report</h1>
            <p>{{.ScenarioName}}</p>
            <p>Job ID: {{.JobID}}</p>
        </div>

        <h2>Summary<span class="status {{statusClass .Status}}">{{.Status}}</span></h2>
        <div class="info-grid">
            <div class="info-box"><div class="info-label">Start Time</div><div class="info-value">{{formatTime .StartTime}}</div></div>
            <div class="info-box"><div class="info-label">End Time</div><div class="info-value">{{formatTime .EndTime}}</div></div>
            <div class="info-box"><div class="info-label">Duration</div><div class="info-value">{{.Duration}}</div></div>
            <div class="info-box"><div class="info-label">Runs</div><div class="info-value">{{.SucceededRuns}}/{{.RequestedRuns}}</div></div>
        </div>

        {{if .FailureProbability}}
        <h2>Failure Probability</h2>
        <table>
            <thead><tr><th>Node</th><th>P(failure)</th><th>Mean TTF (min)</th></tr></thead>
            <tbody>
                {{range $id, $p := .FailureProbability}}
                <tr><td>{{$id}}</td><td>{{printf "%.4f" $p}}</td><td>{{printf "%.2f" (index $.MeanTimeToFailure $id)}}</td></tr>
                {{end}}
            </tbody>
        </table>
        {{end}}

        {{if .CriticalPaths}}
        <h2>Critical Paths</h2>
        <table>
            <thead><tr><th>Path</th><th>Frequency</th><th>Criticality</th></tr></thead>
            <tbody>
                {{range .CriticalPaths}}
                <tr><td>{{range .NodeIDs}}{{.}} {{end}}</td><td>{{.Frequency}}</td><td>{{printf "%.3f" .Criticality}}</td></tr>
                {{end}}
            </tbody>
        </table>
        {{end}}

        {{if .BottleneckNodes}}
        <h2>Bottleneck Nodes</h2>
        <table>
            <thead><tr><th>Node</th><th>Impact Reduction</th></tr></thead>
            <tbody>
                {{range .BottleneckNodes}}
                <tr><td>{{.NodeID}}</td><td>{{printf "%.3f" .ImpactReduction}}</td></tr>
                {{end}}
            </tbody>
        </table>
        {{end}}

        {{if .Errors}}
        <h2>Errors</h2>
        <ul>
            {{range .Errors}}
            <li>{{.}}</li>
            {{end}}
        </ul>
        {{end}}

        <p style="text-align: center; color: #7f8c8d; margin-top: 30px;">
            Generated {{formatTime .EndTime}}
        </p>
    </div>
</body>
</html>
`
