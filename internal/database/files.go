package database

import (
	"context"
	"log/slog"
	"time"

	"report-backend/internal/core/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateUploadedFile records an upload against an existing report. The caller
// owns the blob and must remove it if this fails.
func CreateUploadedFile(ctx context.Context, db *gorm.DB, file *UploadedFile) error {
	if _, err := types.ParseAnalysisType(file.AnalysisType); err != nil {
		return types.ValidationErrorf("invalid analysis type '%s', must be one of %v", file.AnalysisType, types.AnalysisTypes)
	}

	if file.Id == uuid.Nil {
		file.Id = uuid.New()
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}

	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var report Report
		if err := txn.Select("id").First(&report, "id = ?", file.ReportId).Error; err != nil {
			return notFoundOr(err, "get report", "report %s not found", file.ReportId)
		}

		if err := txn.Create(file).Error; err != nil {
			slog.Error("error saving uploaded file", "report_id", file.ReportId, "file", file.OriginalName, "error", err)
			return types.StorageError("insert uploaded file", err)
		}
		return nil
	})
}

func ListUploadedFiles(ctx context.Context, db *gorm.DB, reportId uuid.UUID) ([]UploadedFile, error) {
	var files []UploadedFile
	if err := db.WithContext(ctx).
		Where("report_id = ?", reportId).
		Order("uploaded_at ASC").
		Find(&files).Error; err != nil {
		return nil, types.StorageError("list uploaded files", err)
	}
	return files, nil
}

func GetUploadedFile(ctx context.Context, db *gorm.DB, reportId, fileId uuid.UUID) (UploadedFile, error) {
	var file UploadedFile
	if err := db.WithContext(ctx).First(&file, "id = ? AND report_id = ?", fileId, reportId).Error; err != nil {
		return UploadedFile{}, notFoundOr(err, "get uploaded file", "file %s not found for report %s", fileId, reportId)
	}
	return file, nil
}

// DeleteUploadedFile removes the row and returns it so the caller can clean up
// the blob it points at.
func DeleteUploadedFile(ctx context.Context, db *gorm.DB, reportId, fileId uuid.UUID) (UploadedFile, error) {
	var file UploadedFile
	err := db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.First(&file, "id = ? AND report_id = ?", fileId, reportId).Error; err != nil {
			return notFoundOr(err, "get uploaded file", "file %s not found for report %s", fileId, reportId)
		}
		if err := txn.Delete(&UploadedFile{}, "id = ?", fileId).Error; err != nil {
			return types.StorageError("delete uploaded file", err)
		}
		return nil
	})
	if err != nil {
		return UploadedFile{}, err
	}
	return file, nil
}

func UpdateFileAnalysisType(ctx context.Context, db *gorm.DB, reportId, fileId uuid.UUID, analysisType types.AnalysisType) error {
	result := db.WithContext(ctx).Model(&UploadedFile{}).
		Where("id = ? AND report_id = ?", fileId, reportId).
		Update("analysis_type", string(analysisType))
	if result.Error != nil {
		return types.StorageError("update file analysis type", result.Error)
	}
	if result.RowsAffected == 0 {
		return types.NotFoundErrorf("file %s not found for report %s", fileId, reportId)
	}
	return nil
}
