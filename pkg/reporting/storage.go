package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Storage handles persistence of simulation reports.
type Storage struct {
	outputDir string
	keepLastN int
	logger    *Logger
}

// NewStorage creates a new storage instance, creating outputDir if needed.
func NewStorage(outputDir string, keepLastN int, logger *Logger) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Storage{outputDir: outputDir, keepLastN: keepLastN, logger: logger}, nil
}

// SaveReport saves a simulation report to a JSON file.
func (s *Storage) SaveReport(report *SimulationReport) (string, error) {
	timestamp := report.StartTime.Format("20060102-150405")
	filename := fmt.Sprintf("sim-%s-%s.json", timestamp, report.JobID)
	path := filepath.Join(s.outputDir, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	s.logger.Info("simulation report saved", "path", path)

	if s.keepLastN > 0 {
		if err := s.cleanupOldReports(); err != nil {
			s.logger.Warn("failed to cleanup old reports", "error", err.Error())
		}
	}
	return path, nil
}

// LoadReport loads a simulation report from a JSON file.
func (s *Storage) LoadReport(path string) (*SimulationReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	var report SimulationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// ListReports lists all simulation reports in the output directory, newest
// first.
func (s *Storage) ListReports() ([]ReportSummary, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	summaries := make([]ReportSummary, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.outputDir, entry.Name())
		report, err := s.LoadReport(path)
		if err != nil {
			s.logger.Warn("failed to load report", "path", path, "error", err.Error())
			continue
		}
		summaries = append(summaries, ReportSummary{
			JobID:        report.JobID,
			ScenarioName: report.ScenarioName,
			StartTime:    report.StartTime,
			Duration:     report.Duration,
			Status:       report.Status,
			Filepath:     path,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	return summaries, nil
}

// FindReportByJobID finds a report by job ID.
func (s *Storage) FindReportByJobID(jobID string) (*SimulationReport, error) {
	summaries, err := s.ListReports()
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		if summary.JobID == jobID {
			return s.LoadReport(summary.Filepath)
		}
	}
	return nil, fmt.Errorf("report not found for job ID: %s", jobID)
}

// cleanupOldReports removes old report files, keeping only the last N.
func (s *Storage) cleanupOldReports() error {
	summaries, err := s.ListReports()
	if err != nil {
		return err
	}
	if len(summaries) <= s.keepLastN {
		return nil
	}
	for _, summary := range summaries[s.keepLastN:] {
		if err := os.Remove(summary.Filepath); err != nil {
			s.logger.Warn("failed to delete old report", "path", summary.Filepath, "error", err.Error())
		} else {
			s.logger.Debug("deleted old report", "path", summary.Filepath)
		}
	}
	return nil
}

// GetOutputDir returns the output directory path.
func (s *Storage) GetOutputDir() string {
	return s.outputDir
}

// ReportSummary contains a summary of a simulation report.
type ReportSummary struct {
	JobID        string    `json:"job_id"`
	ScenarioName string    `json:"scenario_name"`
	StartTime    time.Time `json:"start_time"`
	Duration     string    `json:"duration"`
	Status       RunStatus `json:"status"`
	Filepath     string    `json:"filepath"`
}
