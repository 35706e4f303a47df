package core

import (
	"context"
	"encoding/json"
	"time"

	"report-backend/internal/core/types"
	"report-backend/internal/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RunSnapshot struct {
	Id         uuid.UUID
	Status     string
	FileCount  int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

type ResultStamp struct {
	FileId       *uuid.UUID
	AnalysisType types.AnalysisType
	CreatedAt    time.Time
}

type StatusSnapshot struct {
	ReportId    uuid.UUID
	Status      types.ReportStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	Run         *RunSnapshot
	Results     []ResultStamp
	Summary     json.RawMessage
}

type ResultItem struct {
	FileId       *uuid.UUID
	AnalysisType types.AnalysisType
	Data         json.RawMessage
	CreatedAt    time.Time
}

type ResultSet struct {
	ReportId    uuid.UUID
	Name        string
	Status      types.ReportStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	Content     json.RawMessage
	Summary     json.RawMessage
	Results     []ResultItem
}

type ReportDetail struct {
	Report           database.Report
	TargetCompanies  []database.Company
	CompareCompanies []database.Company
	Files            []database.UploadedFile
	Results          []ResultItem
}

// StatusService serves read-only projections of reports and their runs.
type StatusService struct {
	db *gorm.DB
}

func NewStatusService(db *gorm.DB) *StatusService {
	return &StatusService{db: db}
}

func optionalTime(valid bool, t time.Time) *time.Time {
	if !valid {
		return nil
	}
	return &t
}

func optionalJson(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}

// currentResults returns the results of the report's current run, which is
// also the run that produced its content once completed.
func (s *StatusService) currentResults(ctx context.Context, report database.Report) ([]ResultItem, error) {
	if !report.CurrentRunId.Valid {
		return []ResultItem{}, nil
	}

	results, err := database.ListRunResults(ctx, s.db, report.CurrentRunId.UUID)
	if err != nil {
		return nil, err
	}

	items := make([]ResultItem, 0, len(results))
	for _, r := range results {
		item := ResultItem{
			AnalysisType: types.AnalysisType(r.AnalysisType),
			Data:         optionalJson(r.Payload),
			CreatedAt:    r.CreatedAt,
		}
		if r.FileId.Valid {
			id := r.FileId.UUID
			item.FileId = &id
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *StatusService) GetStatus(ctx context.Context, reportId uuid.UUID) (StatusSnapshot, error) {
	report, err := database.GetReport(ctx, s.db, reportId)
	if err != nil {
		return StatusSnapshot{}, err
	}

	snapshot := StatusSnapshot{
		ReportId:    report.Id,
		Status:      types.ReportStatus(report.Status),
		CreatedAt:   report.CreatedAt,
		UpdatedAt:   report.UpdatedAt,
		CompletedAt: optionalTime(report.CompletedAt.Valid, report.CompletedAt.Time),
		Summary:     optionalJson(report.Summary),
		Results:     []ResultStamp{},
	}

	if report.CurrentRunId.Valid {
		run, err := database.GetRun(ctx, s.db, report.CurrentRunId.UUID)
		if err != nil {
			return StatusSnapshot{}, err
		}
		snapshot.Run = &RunSnapshot{
			Id:         run.Id,
			Status:     run.Status,
			FileCount:  run.FileCount,
			Error:      run.Error,
			StartedAt:  run.StartedAt,
			FinishedAt: optionalTime(run.FinishedAt.Valid, run.FinishedAt.Time),
		}
	}

	results, err := s.currentResults(ctx, report)
	if err != nil {
		return StatusSnapshot{}, err
	}
	for _, r := range results {
		snapshot.Results = append(snapshot.Results, ResultStamp{FileId: r.FileId, AnalysisType: r.AnalysisType, CreatedAt: r.CreatedAt})
	}

	return snapshot, nil
}

// GetResults returns the final artifact. It fails with a precondition error
// unless the report is completed.
func (s *StatusService) GetResults(ctx context.Context, reportId uuid.UUID) (ResultSet, error) {
	report, err := database.GetReport(ctx, s.db, reportId)
	if err != nil {
		return ResultSet{}, err
	}

	if report.Status != string(types.ReportCompleted) {
		return ResultSet{}, types.PreconditionErrorf("analysis not completed, report %s is %s", reportId, report.Status)
	}

	results, err := s.currentResults(ctx, report)
	if err != nil {
		return ResultSet{}, err
	}

	return ResultSet{
		ReportId:    report.Id,
		Name:        report.Name,
		Status:      types.ReportStatus(report.Status),
		CreatedAt:   report.CreatedAt,
		CompletedAt: optionalTime(report.CompletedAt.Valid, report.CompletedAt.Time),
		Content:     optionalJson(report.Content),
		Summary:     optionalJson(report.Summary),
		Results:     results,
	}, nil
}

func (s *StatusService) GetReportDetail(ctx context.Context, reportId uuid.UUID) (ReportDetail, error) {
	report, err := database.GetReportWithCompanies(ctx, s.db, reportId)
	if err != nil {
		return ReportDetail{}, err
	}

	files, err := database.ListUploadedFiles(ctx, s.db, reportId)
	if err != nil {
		return ReportDetail{}, err
	}

	results, err := s.currentResults(ctx, report)
	if err != nil {
		return ReportDetail{}, err
	}

	detail := ReportDetail{
		Report:           report,
		TargetCompanies:  []database.Company{},
		CompareCompanies: []database.Company{},
		Files:            files,
		Results:          results,
	}
	for _, c := range report.Companies {
		if c.Role == string(types.TargetCompany) {
			detail.TargetCompanies = append(detail.TargetCompanies, c)
		} else {
			detail.CompareCompanies = append(detail.CompareCompanies, c)
		}
	}

	return detail, nil
}
