package utils_test

import (
	"context"
	"strings"
	"testing"

	"report-backend/internal/core/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRunHandles(t *testing.T) {
	handles := utils.NewRunHandles()
	reportId, runId := uuid.New(), uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.True(t, handles.Register(reportId, runId, cancel))
	assert.False(t, handles.Register(reportId, uuid.New(), func() {}))
	assert.Equal(t, 1, handles.Active())

	// Releasing with another run's id leaves the handle in place.
	handles.Release(reportId, uuid.New())
	assert.Equal(t, 1, handles.Active())

	assert.True(t, handles.Cancel(reportId))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	handles.Release(reportId, runId)
	assert.Zero(t, handles.Active())
	assert.False(t, handles.Cancel(reportId))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "data.csv", utils.SanitizeFileName("data.csv"))
	assert.Equal(t, "passwd", utils.SanitizeFileName("../../etc/passwd"))
	assert.Equal(t, "report.xlsx", utils.SanitizeFileName(`C:\Users\me\report.xlsx`))
	assert.Equal(t, "q4_visits.csv", utils.SanitizeFileName("q4 visits.csv"))
	assert.Equal(t, "file", utils.SanitizeFileName(".."))
	assert.Equal(t, "인구통계.csv", utils.SanitizeFileName("인구통계.csv"))

	long := utils.SanitizeFileName(strings.Repeat("a", 300) + ".csv")
	assert.Len(t, []rune(long), 200)
	assert.True(t, strings.HasSuffix(long, ".csv"))
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, "csv", utils.FileExtension("a.CSV"))
	assert.Equal(t, "xlsx", utils.FileExtension("dir/a.b.xlsx"))
	assert.Equal(t, "", utils.FileExtension("noext"))
}
