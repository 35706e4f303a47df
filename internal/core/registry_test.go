package core

import (
	"context"
	"strings"
	"testing"

	"report-backend/internal/core/types"
	"report-backend/internal/database"
	"report-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "uploads"

func newTestRegistry(t *testing.T, maxUploadBytes int64) (*FileRegistry, *storage.LocalProvider) {
	provider, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, provider.CreateBucket(context.Background(), testBucket))

	return NewFileRegistry(createDB(t), provider, testBucket, maxUploadBytes), provider
}

func listBlobs(t *testing.T, provider storage.Provider, prefix string) []storage.Object {
	objects, err := provider.ListObjects(context.Background(), testBucket, prefix)
	require.NoError(t, err)
	return objects
}

func TestUploadStoresBlobAndRow(t *testing.T) {
	registry, provider := newTestRegistry(t, 0)
	ctx := context.Background()
	reportId := createQ4Report(t, registry.db)

	file, err := registry.Upload(ctx, reportId, UploadRequest{
		OriginalName: "Visitors Q4.CSV",
		AnalysisType: "demographics",
		Data:         strings.NewReader("age,gender\n25,F\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, reportId, file.ReportId)
	assert.Equal(t, "Visitors Q4.CSV", file.OriginalName)
	assert.Equal(t, "csv", file.FileType)
	assert.Equal(t, int64(16), file.Size)
	assert.True(t, strings.HasPrefix(file.StoragePath, reportId.String()+"/"))
	assert.True(t, strings.HasSuffix(file.FileName, "_Visitors_Q4.CSV"))

	blobs := listBlobs(t, provider, reportId.String())
	require.Len(t, blobs, 1)
	assert.Equal(t, file.StoragePath, blobs[0].Name)

	meta, data, err := registry.Download(ctx, reportId, file.Id)
	require.NoError(t, err)
	assert.Equal(t, file.Id, meta.Id)
	assert.Equal(t, "age,gender\n25,F\n", string(data))

	files, err := registry.ListFiles(ctx, reportId)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestUploadValidation(t *testing.T) {
	registry, provider := newTestRegistry(t, 0)
	ctx := context.Background()
	reportId := createQ4Report(t, registry.db)

	_, err := registry.Upload(ctx, reportId, UploadRequest{OriginalName: "notes.txt", AnalysisType: "demographics", Data: strings.NewReader("x")})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = registry.Upload(ctx, reportId, UploadRequest{OriginalName: "data.xlsx", AnalysisType: "", Data: strings.NewReader("x")})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = registry.Upload(ctx, reportId, UploadRequest{OriginalName: "data.xls", AnalysisType: "sentiment", Data: strings.NewReader("x")})
	assert.ErrorIs(t, err, types.ErrValidation)

	assert.Empty(t, listBlobs(t, provider, ""))
}

func TestUploadSizeLimit(t *testing.T) {
	registry, provider := newTestRegistry(t, 8)
	ctx := context.Background()
	reportId := createQ4Report(t, registry.db)

	_, err := registry.Upload(ctx, reportId, UploadRequest{OriginalName: "big.csv", AnalysisType: "timeSeries", Data: strings.NewReader(strings.Repeat("a", 20))})
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Empty(t, listBlobs(t, provider, ""))

	file, err := registry.Upload(ctx, reportId, UploadRequest{OriginalName: "ok.csv", AnalysisType: "timeSeries", Data: strings.NewReader(strings.Repeat("a", 8))})
	require.NoError(t, err)
	assert.Equal(t, int64(8), file.Size)
}

func TestUploadForMissingReportRemovesBlob(t *testing.T) {
	registry, provider := newTestRegistry(t, 0)
	ctx := context.Background()

	_, err := registry.Upload(ctx, uuid.New(), UploadRequest{OriginalName: "data.csv", AnalysisType: "crossVisit", Data: strings.NewReader("a,b\n")})
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Empty(t, listBlobs(t, provider, ""))
}

func TestRegisterUpload(t *testing.T) {
	registry, _ := newTestRegistry(t, 0)
	ctx := context.Background()
	reportId := createQ4Report(t, registry.db)

	meta := FileMeta{FileName: "f.csv", OriginalName: "f.csv", StoragePath: "k", Size: 3, FileType: "csv", AnalysisType: "visitedSites"}
	fileId, err := registry.RegisterUpload(ctx, reportId, meta)
	require.NoError(t, err)

	file, err := registry.GetFile(ctx, reportId, fileId)
	require.NoError(t, err)
	assert.Equal(t, string(types.VisitedSites), file.AnalysisType)

	_, err = registry.RegisterUpload(ctx, uuid.New(), meta)
	assert.ErrorIs(t, err, types.ErrNotFound)

	meta.AnalysisType = ""
	_, err = registry.RegisterUpload(ctx, reportId, meta)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = registry.ListFiles(ctx, uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteAndRetypeFile(t *testing.T) {
	registry, provider := newTestRegistry(t, 0)
	ctx := context.Background()
	reportId := createQ4Report(t, registry.db)

	file, err := registry.Upload(ctx, reportId, UploadRequest{OriginalName: "data.csv", AnalysisType: "demographics", Data: strings.NewReader("a\n1\n")})
	require.NoError(t, err)

	require.NoError(t, registry.UpdateAnalysisType(ctx, reportId, file.Id, "crossVisit"))
	updated, err := registry.GetFile(ctx, reportId, file.Id)
	require.NoError(t, err)
	assert.Equal(t, string(types.CrossVisit), updated.AnalysisType)

	assert.ErrorIs(t, registry.UpdateAnalysisType(ctx, reportId, file.Id, "bogus"), types.ErrValidation)
	assert.ErrorIs(t, registry.UpdateAnalysisType(ctx, reportId, uuid.New(), "demographics"), types.ErrNotFound)

	require.NoError(t, registry.DeleteFile(ctx, reportId, file.Id))
	assert.Empty(t, listBlobs(t, provider, reportId.String()))

	assert.ErrorIs(t, registry.DeleteFile(ctx, reportId, file.Id), types.ErrNotFound)
	_, _, err = registry.Download(ctx, reportId, file.Id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDownloadMissingBlob(t *testing.T) {
	registry, provider := newTestRegistry(t, 0)
	ctx := context.Background()
	reportId := createQ4Report(t, registry.db)

	file, err := registry.Upload(ctx, reportId, UploadRequest{OriginalName: "data.csv", AnalysisType: "demographics", Data: strings.NewReader("a\n")})
	require.NoError(t, err)
	require.NoError(t, provider.DeleteObject(ctx, testBucket, file.StoragePath))

	_, _, err = registry.Download(ctx, reportId, file.Id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestPurgeReportBlobs(t *testing.T) {
	registry, provider := newTestRegistry(t, 0)
	ctx := context.Background()
	reportId := createQ4Report(t, registry.db)
	otherId := createQ4Report(t, registry.db)

	for _, id := range []uuid.UUID{reportId, reportId, otherId} {
		_, err := registry.Upload(ctx, id, UploadRequest{OriginalName: "data.csv", AnalysisType: "demographics", Data: strings.NewReader("a\n")})
		require.NoError(t, err)
	}

	require.NoError(t, database.DeleteReport(ctx, registry.db, reportId))
	registry.PurgeReportBlobs(ctx, reportId)

	assert.Empty(t, listBlobs(t, provider, reportId.String()))
	assert.Len(t, listBlobs(t, provider, otherId.String()), 1)
}
