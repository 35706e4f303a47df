package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"report-backend/internal/core/types"
	"report-backend/internal/core/utils"
	"report-backend/internal/database"
	"report-backend/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultMaxUploadBytes = 10 << 20

var AllowedFileTypes = []string{"csv", "xlsx", "xls"}

type FileMeta struct {
	FileName     string
	OriginalName string
	StoragePath  string
	Size         int64
	FileType     string
	AnalysisType string
}

type UploadRequest struct {
	OriginalName string
	AnalysisType string
	Data         io.Reader
}

// FileRegistry tracks uploaded files. Rows live in the database and bytes in
// the blob store; the row is authoritative.
type FileRegistry struct {
	db             *gorm.DB
	storage        storage.Provider
	bucket         string
	maxUploadBytes int64
}

func NewFileRegistry(db *gorm.DB, storage storage.Provider, bucket string, maxUploadBytes int64) *FileRegistry {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &FileRegistry{db: db, storage: storage, bucket: bucket, maxUploadBytes: maxUploadBytes}
}

func parseUploadAnalysisType(s string) (types.AnalysisType, error) {
	if s == "" {
		return "", types.ValidationErrorf("analysis type is required")
	}
	analysisType, err := types.ParseAnalysisType(s)
	if err != nil {
		return "", types.ValidationErrorf("invalid analysis type '%s', must be one of %v", s, types.AnalysisTypes)
	}
	return analysisType, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Upload stores the bytes and registers the file. If registration fails the
// stored blob is removed again.
func (r *FileRegistry) Upload(ctx context.Context, reportId uuid.UUID, req UploadRequest) (database.UploadedFile, error) {
	fileType := utils.FileExtension(req.OriginalName)
	if !slices.Contains(AllowedFileTypes, fileType) {
		return database.UploadedFile{}, types.ValidationErrorf("file type '%s' not allowed, must be one of %v", fileType, AllowedFileTypes)
	}
	if _, err := parseUploadAnalysisType(req.AnalysisType); err != nil {
		return database.UploadedFile{}, err
	}

	fileName := fmt.Sprintf("%s_%s", uuid.New(), utils.SanitizeFileName(req.OriginalName))
	key := fmt.Sprintf("%s/%s", reportId, fileName)

	counter := &countingReader{r: io.LimitReader(req.Data, r.maxUploadBytes+1)}
	if err := r.storage.PutObject(ctx, r.bucket, key, counter); err != nil {
		slog.Error("error storing uploaded file", "report_id", reportId, "key", key, "error", err)
		return database.UploadedFile{}, types.StorageError("store uploaded file", err)
	}

	if counter.n > r.maxUploadBytes {
		r.discardBlob(ctx, key)
		return database.UploadedFile{}, types.ValidationErrorf("file exceeds the %d byte upload limit", r.maxUploadBytes)
	}

	fileId, err := r.RegisterUpload(ctx, reportId, FileMeta{
		FileName:     fileName,
		OriginalName: req.OriginalName,
		StoragePath:  key,
		Size:         counter.n,
		FileType:     fileType,
		AnalysisType: req.AnalysisType,
	})
	if err != nil {
		r.discardBlob(ctx, key)
		return database.UploadedFile{}, err
	}

	return database.GetUploadedFile(ctx, r.db, reportId, fileId)
}

func (r *FileRegistry) discardBlob(ctx context.Context, key string) {
	if err := r.storage.DeleteObject(context.WithoutCancel(ctx), r.bucket, key); err != nil {
		slog.Warn("error removing orphaned upload", "key", key, "error", err)
	}
}

func (r *FileRegistry) RegisterUpload(ctx context.Context, reportId uuid.UUID, meta FileMeta) (uuid.UUID, error) {
	if _, err := parseUploadAnalysisType(meta.AnalysisType); err != nil {
		return uuid.Nil, err
	}

	file := database.UploadedFile{
		ReportId:     reportId,
		FileName:     meta.FileName,
		OriginalName: meta.OriginalName,
		StoragePath:  meta.StoragePath,
		Size:         meta.Size,
		FileType:     meta.FileType,
		AnalysisType: meta.AnalysisType,
	}
	if err := database.CreateUploadedFile(ctx, r.db, &file); err != nil {
		return uuid.Nil, err
	}

	slog.Info("registered upload", "report_id", reportId, "file_id", file.Id, "analysis_type", file.AnalysisType)
	return file.Id, nil
}

func (r *FileRegistry) ListFiles(ctx context.Context, reportId uuid.UUID) ([]database.UploadedFile, error) {
	if _, err := database.GetReport(ctx, r.db, reportId); err != nil {
		return nil, err
	}
	return database.ListUploadedFiles(ctx, r.db, reportId)
}

func (r *FileRegistry) GetFile(ctx context.Context, reportId, fileId uuid.UUID) (database.UploadedFile, error) {
	return database.GetUploadedFile(ctx, r.db, reportId, fileId)
}

func (r *FileRegistry) Download(ctx context.Context, reportId, fileId uuid.UUID) (database.UploadedFile, []byte, error) {
	file, err := database.GetUploadedFile(ctx, r.db, reportId, fileId)
	if err != nil {
		return database.UploadedFile{}, nil, err
	}

	data, err := r.storage.GetObject(ctx, r.bucket, file.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return database.UploadedFile{}, nil, types.NotFoundErrorf("contents of file %s are missing", fileId)
		}
		return database.UploadedFile{}, nil, types.StorageError("read uploaded file", err)
	}

	return file, data, nil
}

// DeleteFile removes the row, then the blob. A failed blob delete is logged
// and otherwise ignored.
func (r *FileRegistry) DeleteFile(ctx context.Context, reportId, fileId uuid.UUID) error {
	file, err := database.DeleteUploadedFile(ctx, r.db, reportId, fileId)
	if err != nil {
		return err
	}

	if err := r.storage.DeleteObject(ctx, r.bucket, file.StoragePath); err != nil {
		slog.Warn("error deleting file contents", "report_id", reportId, "file_id", fileId, "key", file.StoragePath, "error", err)
	}
	return nil
}

func (r *FileRegistry) UpdateAnalysisType(ctx context.Context, reportId, fileId uuid.UUID, newType string) error {
	analysisType, err := parseUploadAnalysisType(newType)
	if err != nil {
		return err
	}
	return database.UpdateFileAnalysisType(ctx, r.db, reportId, fileId, analysisType)
}

// PurgeReportBlobs removes every stored file of a deleted report.
func (r *FileRegistry) PurgeReportBlobs(ctx context.Context, reportId uuid.UUID) {
	if err := r.storage.DeleteObjects(ctx, r.bucket, reportId.String()+"/"); err != nil {
		slog.Warn("error purging report files", "report_id", reportId, "error", err)
	}
}
