package core

import (
	"context"
	"encoding/json"
	"time"

	"report-backend/internal/core/types"
	"report-backend/internal/database"

	"github.com/google/uuid"
)

type FileInput struct {
	Id           uuid.UUID
	Name         string
	StoragePath  string
	Size         int64
	FileType     string
	AnalysisType types.AnalysisType
}

type CompanyInput struct {
	Name string
	Url  string
	Role types.CompanyRole
}

// ReportContext is the read-only view of a report handed to the engine.
type ReportContext struct {
	ReportId  uuid.UUID
	RunId     uuid.UUID
	Name      string
	UsagePlan string
	StartDate string
	EndDate   string
	MinAge    int
	MaxAge    int
	Notes     string
	CreatedAt time.Time

	Companies []CompanyInput
	Files     []FileInput
}

type ResultInput struct {
	FileId       uuid.UUID
	AnalysisType types.AnalysisType
	Payload      json.RawMessage
	CreatedAt    time.Time
}

// AnalysisEngine computes the per-file results and the combined report.
// Analyze must return an error wrapping types.ErrUnknownAnalysisType for
// analysis types it cannot handle.
type AnalysisEngine interface {
	Analyze(ctx context.Context, analysisType types.AnalysisType, file FileInput, report ReportContext) (json.RawMessage, error)

	Aggregate(ctx context.Context, report ReportContext, results []ResultInput) (summary json.RawMessage, content json.RawMessage, err error)
}

func newFileInput(file database.UploadedFile) FileInput {
	return FileInput{
		Id:           file.Id,
		Name:         file.OriginalName,
		StoragePath:  file.StoragePath,
		Size:         file.Size,
		FileType:     file.FileType,
		AnalysisType: types.AnalysisType(file.AnalysisType),
	}
}

func newReportContext(report database.Report, runId uuid.UUID, files []database.UploadedFile) ReportContext {
	rc := ReportContext{
		ReportId:  report.Id,
		RunId:     runId,
		Name:      report.Name,
		UsagePlan: report.UsagePlan,
		StartDate: report.StartDate,
		EndDate:   report.EndDate,
		MinAge:    report.MinAge,
		MaxAge:    report.MaxAge,
		Notes:     report.Notes,
		CreatedAt: report.CreatedAt,
	}

	for _, c := range report.Companies {
		rc.Companies = append(rc.Companies, CompanyInput{Name: c.Name, Url: c.Url, Role: types.CompanyRole(c.Role)})
	}
	for _, f := range files {
		rc.Files = append(rc.Files, newFileInput(f))
	}

	return rc
}

func newResultInputs(results []database.AnalysisResult) []ResultInput {
	inputs := make([]ResultInput, 0, len(results))
	for _, r := range results {
		inputs = append(inputs, ResultInput{
			FileId:       r.FileId.UUID,
			AnalysisType: types.AnalysisType(r.AnalysisType),
			Payload:      json.RawMessage(r.Payload),
			CreatedAt:    r.CreatedAt,
		})
	}
	return inputs
}
