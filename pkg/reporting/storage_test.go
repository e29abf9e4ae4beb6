package reporting_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/resilience-core/pkg/reporting"
)

func testLogger() *reporting.Logger {
	return reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelError,
		Format: reporting.LogFormatText,
		Output: os.Stderr,
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	storage, err := reporting.NewStorage(dir, 0, testLogger())
	require.NoError(t, err)

	report := &reporting.SimulationReport{
		JobID:              "job-a",
		ScenarioName:       "scenario-a",
		StartTime:          time.Now(),
		Status:             reporting.StatusCompleted,
		FailureProbability: map[string]float64{"n1": 0.5},
	}

	path, err := storage.SaveReport(report)
	require.NoError(t, err)

	loaded, err := storage.LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report.JobID, loaded.JobID)
	assert.Equal(t, report.FailureProbability["n1"], loaded.FailureProbability["n1"])
}

func TestFindReportByJobID(t *testing.T) {
	dir := t.TempDir()
	storage, err := reporting.NewStorage(dir, 0, testLogger())
	require.NoError(t, err)

	for i, id := range []string{"job-1", "job-2", "job-3"} {
		_, err := storage.SaveReport(&reporting.SimulationReport{
			JobID:     id,
			StartTime: time.Now().Add(time.Duration(i) * time.Second),
			Status:    reporting.StatusCompleted,
		})
		require.NoError(t, err)
	}

	found, err := storage.FindReportByJobID("job-2")
	require.NoError(t, err)
	assert.Equal(t, "job-2", found.JobID)

	_, err = storage.FindReportByJobID("job-missing")
	assert.Error(t, err)
}

func TestCleanupKeepsOnlyLastN(t *testing.T) {
	dir := t.TempDir()
	storage, err := reporting.NewStorage(dir, 2, testLogger())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := storage.SaveReport(&reporting.SimulationReport{
			JobID:     string(rune('a' + i)),
			StartTime: time.Now().Add(time.Duration(i) * time.Second),
			Status:    reporting.StatusCompleted,
		})
		require.NoError(t, err)
	}

	summaries, err := storage.ListReports()
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
	// newest two survive: StartTime offsets 4s and 3s
	assert.True(t, summaries[0].StartTime.After(summaries[1].StartTime))
}
