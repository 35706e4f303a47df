package core

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"report-backend/internal/core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordRuns(t *testing.T) {
	env := setupEnv(t, newFixtureEngine(), ProcessorOptions{Workers: 1})

	reportId := createQ4Report(t, env.db)
	addFile(t, env.db, reportId, types.Demographics)
	_, err := env.orchestrator.StartAnalysis(context.Background(), reportId)
	require.NoError(t, err)
	waitForStatus(t, env.db, reportId, types.ReportCompleted)

	scrape := func() string {
		rec := httptest.NewRecorder()
		env.processor.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		return string(body)
	}

	// The run counters are updated just after the report is marked completed.
	require.Eventually(t, func() bool {
		body := scrape()
		return strings.Contains(body, `report_analysis_runs_finished_total{status="completed"} 1`) &&
			strings.Contains(body, "report_analysis_active_runs 0")
	}, 5*time.Second, 10*time.Millisecond)

	body := scrape()
	assert.Contains(t, body, "report_analysis_runs_started_total 1")
	assert.Contains(t, body, `report_analysis_files_total{analysis_type="demographics",outcome="succeeded"} 1`)
}
