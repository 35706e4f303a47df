package database

import (
	"context"
	"time"

	"report-backend/internal/core/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SaveAnalysisResult appends a result for the run. The write is refused with
// a conflict once the run has lost the report's run token.
func SaveAnalysisResult(ctx context.Context, db *gorm.DB, result *AnalysisResult) error {
	if result.Id == uuid.Nil {
		result.Id = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var owners int64
		if err := txn.Model(&Report{}).
			Where("id = ? AND current_run_id = ? AND status = ?", result.ReportId, result.RunId, string(types.ReportProcessing)).
			Count(&owners).Error; err != nil {
			return types.StorageError("check run token", err)
		}
		if owners == 0 {
			return types.ConflictErrorf("run %s no longer owns report %s", result.RunId, result.ReportId)
		}

		if err := txn.Create(result).Error; err != nil {
			return types.StorageError("insert analysis result", err)
		}
		return nil
	})
}

func ListRunResults(ctx context.Context, db *gorm.DB, runId uuid.UUID) ([]AnalysisResult, error) {
	var results []AnalysisResult
	if err := db.WithContext(ctx).
		Where("run_id = ?", runId).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, types.StorageError("list run results", err)
	}
	return results, nil
}

func ListReportResults(ctx context.Context, db *gorm.DB, reportId uuid.UUID) ([]AnalysisResult, error) {
	var results []AnalysisResult
	if err := db.WithContext(ctx).
		Where("report_id = ?", reportId).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, types.StorageError("list report results", err)
	}
	return results, nil
}

// CompletedFiles returns the ids of files that already have a result in the
// run, so a redelivered run can skip them.
func CompletedFiles(ctx context.Context, db *gorm.DB, runId uuid.UUID) (map[uuid.UUID]bool, error) {
	var ids []uuid.NullUUID
	if err := db.WithContext(ctx).Model(&AnalysisResult{}).
		Where("run_id = ? AND file_id IS NOT NULL", runId).
		Pluck("file_id", &ids).Error; err != nil {
		return nil, types.StorageError("list completed files", err)
	}

	done := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id.Valid {
			done[id.UUID] = true
		}
	}
	return done, nil
}
