package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"report-backend/internal/core/types"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultMinAge = 20
	DefaultMaxAge = 50

	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage bounds the page number so the row offset cannot overflow.
	MaxPage = 1_000_000

	dateLayout = "2006-01-02"
)

type CompanySpec struct {
	Name string
	Url  string
	Role types.CompanyRole
}

type ReportSpec struct {
	Name      string
	UsagePlan string
	StartDate string
	EndDate   string
	MinAge    int
	MaxAge    int
	Notes     string

	Companies []CompanySpec
}

func (spec *ReportSpec) validate() error {
	spec.Name = strings.TrimSpace(spec.Name)
	spec.StartDate = strings.TrimSpace(spec.StartDate)
	spec.EndDate = strings.TrimSpace(spec.EndDate)

	if spec.Name == "" || spec.StartDate == "" || spec.EndDate == "" {
		return types.ValidationErrorf("report name, start date and end date are required")
	}

	start, err := time.Parse(dateLayout, spec.StartDate)
	if err != nil {
		return types.ValidationErrorf("invalid start date '%s', expected YYYY-MM-DD", spec.StartDate)
	}
	end, err := time.Parse(dateLayout, spec.EndDate)
	if err != nil {
		return types.ValidationErrorf("invalid end date '%s', expected YYYY-MM-DD", spec.EndDate)
	}
	if start.After(end) {
		return types.ValidationErrorf("start date %s is after end date %s", spec.StartDate, spec.EndDate)
	}

	if spec.MinAge < 0 || spec.MaxAge < 0 {
		return types.ValidationErrorf("ages must not be negative")
	}
	if spec.MinAge == 0 {
		spec.MinAge = DefaultMinAge
	}
	if spec.MaxAge == 0 {
		spec.MaxAge = DefaultMaxAge
	}
	if spec.MinAge > spec.MaxAge {
		return types.ValidationErrorf("min age %d is greater than max age %d", spec.MinAge, spec.MaxAge)
	}

	for _, company := range spec.Companies {
		if strings.TrimSpace(company.Name) == "" {
			return types.ValidationErrorf("company name is required")
		}
		if _, err := types.ParseCompanyRole(string(company.Role)); err != nil {
			return err
		}
	}

	return nil
}

// CreateReport inserts the report and its companies in a single transaction,
// so either all rows become visible or none do.
func CreateReport(ctx context.Context, db *gorm.DB, spec ReportSpec) (uuid.UUID, error) {
	if err := spec.validate(); err != nil {
		return uuid.Nil, err
	}

	now := time.Now().UTC()
	report := Report{
		Id:        uuid.New(),
		Name:      spec.Name,
		UsagePlan: spec.UsagePlan,
		StartDate: spec.StartDate,
		EndDate:   spec.EndDate,
		MinAge:    spec.MinAge,
		MaxAge:    spec.MaxAge,
		Notes:     spec.Notes,
		Status:    string(types.ReportPending),
		CreatedAt: now,
		UpdatedAt: now,
	}

	companies := make([]Company, 0, len(spec.Companies))
	for _, c := range spec.Companies {
		companies = append(companies, Company{
			Id:        uuid.New(),
			ReportId:  report.Id,
			Name:      strings.TrimSpace(c.Name),
			Url:       c.Url,
			Role:      string(c.Role),
			CreatedAt: now,
		})
	}

	err := db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Create(&report).Error; err != nil {
			return types.StorageError("insert report", err)
		}
		if len(companies) > 0 {
			if err := txn.Create(&companies).Error; err != nil {
				return types.StorageError("insert companies", err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("error creating report", "name", spec.Name, "error", err)
		return uuid.Nil, err
	}

	return report.Id, nil
}

func notFoundOr(err error, op string, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NotFoundErrorf(format, args...)
	}
	return types.StorageError(op, err)
}

func GetReport(ctx context.Context, db *gorm.DB, reportId uuid.UUID) (Report, error) {
	var report Report
	if err := db.WithContext(ctx).First(&report, "id = ?", reportId).Error; err != nil {
		return Report{}, notFoundOr(err, "get report", "report %s not found", reportId)
	}
	return report, nil
}

func GetReportWithCompanies(ctx context.Context, db *gorm.DB, reportId uuid.UUID) (Report, error) {
	var report Report
	err := db.WithContext(ctx).
		Preload("Companies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&report, "id = ?", reportId).Error
	if err != nil {
		return Report{}, notFoundOr(err, "get report", "report %s not found", reportId)
	}
	return report, nil
}

type ListOptions struct {
	Page     int
	PageSize int
	Status   string
}

// Normalized applies the paging defaults and caps.
func (opts ListOptions) Normalized() ListOptions {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Page > MaxPage {
		opts.Page = MaxPage
	}
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}
	return opts
}

type ReportListing struct {
	Report
	TargetCompanyCount int64
	UploadedFileCount  int64
}

type reportCount struct {
	ReportId uuid.UUID
	Count    int64
}

func countByReport(ctx context.Context, db *gorm.DB, model any, reportIds []uuid.UUID, extra func(*gorm.DB) *gorm.DB) (map[uuid.UUID]int64, error) {
	var rows []reportCount
	query := db.WithContext(ctx).Model(model).
		Select("report_id, COUNT(*) AS count").
		Where("report_id IN ?", reportIds)
	if extra != nil {
		query = extra(query)
	}
	if err := query.Group("report_id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.ReportId] = row.Count
	}
	return counts, nil
}

// ListReports returns one page of reports, newest first, with the number of
// target companies and uploaded files for each.
func ListReports(ctx context.Context, db *gorm.DB, opts ListOptions) ([]ReportListing, int64, error) {
	opts = opts.Normalized()

	query := db.WithContext(ctx).Model(&Report{})
	if opts.Status != "" {
		status, err := types.ParseReportStatus(opts.Status)
		if err != nil {
			return nil, 0, err
		}
		query = query.Where("status = ?", string(status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, types.StorageError("count reports", err)
	}

	var reports []Report
	if err := query.Order("created_at DESC").
		Offset((opts.Page - 1) * opts.PageSize).
		Limit(opts.PageSize).
		Find(&reports).Error; err != nil {
		return nil, 0, types.StorageError("list reports", err)
	}

	if len(reports) == 0 {
		return []ReportListing{}, total, nil
	}

	ids := make([]uuid.UUID, len(reports))
	for i, r := range reports {
		ids[i] = r.Id
	}

	targets, err := countByReport(ctx, db, &Company{}, ids, func(q *gorm.DB) *gorm.DB {
		return q.Where("role = ?", string(types.TargetCompany))
	})
	if err != nil {
		return nil, 0, types.StorageError("count target companies", err)
	}

	files, err := countByReport(ctx, db, &UploadedFile{}, ids, nil)
	if err != nil {
		return nil, 0, types.StorageError("count uploaded files", err)
	}

	listings := make([]ReportListing, len(reports))
	for i, r := range reports {
		listings[i] = ReportListing{
			Report:             r,
			TargetCompanyCount: targets[r.Id],
			UploadedFileCount:  files[r.Id],
		}
	}

	return listings, total, nil
}

// UpdateReportStatus is the manual status override. Content and summary are
// only written when provided.
func UpdateReportStatus(ctx context.Context, db *gorm.DB, reportId uuid.UUID, status string, content, summary json.RawMessage) error {
	parsed, err := types.ParseReportStatus(status)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	updates := map[string]any{"status": string(parsed), "updated_at": now}
	if parsed == types.ReportCompleted {
		updates["completed_at"] = now
	}
	if content != nil {
		updates["content"] = datatypes.JSON(content)
	}
	if summary != nil {
		updates["summary"] = datatypes.JSON(summary)
	}

	result := db.WithContext(ctx).Model(&Report{}).Where("id = ?", reportId).Updates(updates)
	if result.Error != nil {
		slog.Error("error updating report status", "report_id", reportId, "status", status, "error", result.Error)
		return types.StorageError("update report status", result.Error)
	}
	if result.RowsAffected == 0 {
		return types.NotFoundErrorf("report %s not found", reportId)
	}
	return nil
}

// DeleteReport removes the report row; the foreign keys cascade the delete to
// companies, files, runs and results.
func DeleteReport(ctx context.Context, db *gorm.DB, reportId uuid.UUID) error {
	result := db.WithContext(ctx).Delete(&Report{}, "id = ?", reportId)
	if result.Error != nil {
		slog.Error("error deleting report", "report_id", reportId, "error", result.Error)
		return types.StorageError("delete report", result.Error)
	}
	if result.RowsAffected == 0 {
		return types.NotFoundErrorf("report %s not found", reportId)
	}
	return nil
}

// BeginAnalysisRun moves the report into processing and records a new run
// over the files uploaded at this moment. The status update is conditional,
// so of two concurrent callers exactly one gets the run and the other sees a
// conflict. Files uploaded later are not part of the run.
func BeginAnalysisRun(ctx context.Context, db *gorm.DB, reportId uuid.UUID) (AnalysisRun, error) {
	now := time.Now().UTC()
	run := AnalysisRun{
		Id:        uuid.New(),
		ReportId:  reportId,
		Status:    types.RunProcessing,
		StartedAt: now,
	}

	err := db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		result := txn.Model(&Report{}).
			Where("id = ? AND status IN ?", reportId, []string{string(types.ReportPending), string(types.ReportFailed)}).
			Updates(map[string]any{
				"status":         string(types.ReportProcessing),
				"current_run_id": uuid.NullUUID{UUID: run.Id, Valid: true},
				"updated_at":     now,
			})
		if result.Error != nil {
			return types.StorageError("begin analysis run", result.Error)
		}

		if result.RowsAffected == 0 {
			var report Report
			if err := txn.First(&report, "id = ?", reportId).Error; err != nil {
				return notFoundOr(err, "begin analysis run", "report %s not found", reportId)
			}
			switch types.ReportStatus(report.Status) {
			case types.ReportProcessing:
				return types.ConflictErrorf("analysis already running for report %s", reportId)
			case types.ReportCompleted:
				return types.PreconditionErrorf("report %s is already completed", reportId)
			default:
				return types.ConflictErrorf("report %s changed status concurrently", reportId)
			}
		}

		var fileIds []uuid.UUID
		if err := txn.Model(&UploadedFile{}).Where("report_id = ?", reportId).Pluck("id", &fileIds).Error; err != nil {
			return types.StorageError("list run files", err)
		}
		if len(fileIds) == 0 {
			return types.PreconditionErrorf("no files uploaded for report %s", reportId)
		}
		run.FileCount = len(fileIds)

		if err := txn.Create(&run).Error; err != nil {
			return types.StorageError("insert analysis run", err)
		}

		pinned := make([]AnalysisRunFile, 0, len(fileIds))
		for _, id := range fileIds {
			pinned = append(pinned, AnalysisRunFile{RunId: run.Id, FileId: id})
		}
		if err := txn.Create(&pinned).Error; err != nil {
			return types.StorageError("insert run files", err)
		}
		return nil
	})
	if err != nil {
		return AnalysisRun{}, err
	}

	return run, nil
}

// ListRunFiles returns the files pinned to the run that still exist, oldest
// upload first.
func ListRunFiles(ctx context.Context, db *gorm.DB, runId uuid.UUID) ([]UploadedFile, error) {
	var files []UploadedFile
	if err := db.WithContext(ctx).
		Joins("JOIN analysis_run_files ON analysis_run_files.file_id = uploaded_files.id").
		Where("analysis_run_files.run_id = ?", runId).
		Order("uploaded_files.uploaded_at ASC").
		Find(&files).Error; err != nil {
		return nil, types.StorageError("list run files", err)
	}
	return files, nil
}

func finishRun(ctx context.Context, db *gorm.DB, reportId, runId uuid.UUID, status string, reportUpdates map[string]any, runError string) error {
	now := time.Now().UTC()
	reportUpdates["status"] = status
	reportUpdates["updated_at"] = now

	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		result := txn.Model(&Report{}).
			Where("id = ? AND current_run_id = ? AND status = ?", reportId, runId, string(types.ReportProcessing)).
			Updates(reportUpdates)
		if result.Error != nil {
			return types.StorageError("update report for run", result.Error)
		}
		if result.RowsAffected == 0 {
			return types.ConflictErrorf("run %s no longer owns report %s", runId, reportId)
		}

		runUpdates := map[string]any{
			"status":      status,
			"error":       runError,
			"finished_at": sql.NullTime{Time: now, Valid: true},
		}
		if err := txn.Model(&AnalysisRun{}).Where("id = ?", runId).Updates(runUpdates).Error; err != nil {
			return types.StorageError("update analysis run", err)
		}
		return nil
	})
}

// CompleteAnalysisRun stores the aggregated artifact and moves the report to
// completed, provided runId still holds the run token.
func CompleteAnalysisRun(ctx context.Context, db *gorm.DB, reportId, runId uuid.UUID, content, summary json.RawMessage) error {
	updates := map[string]any{
		"content":      datatypes.JSON(content),
		"summary":      datatypes.JSON(summary),
		"completed_at": sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}
	if err := finishRun(ctx, db, reportId, runId, types.RunCompleted, updates, ""); err != nil {
		slog.Error("error completing analysis run", "report_id", reportId, "run_id", runId, "error", err)
		return err
	}
	return nil
}

// FailAnalysisRun moves the report to failed. Results already written by the
// run are kept.
func FailAnalysisRun(ctx context.Context, db *gorm.DB, reportId, runId uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := finishRun(ctx, db, reportId, runId, types.RunFailed, map[string]any{}, msg); err != nil {
		slog.Error("error failing analysis run", "report_id", reportId, "run_id", runId, "error", err)
		return err
	}
	return nil
}

// ListProcessingReports returns reports whose run was interrupted, for
// re-dispatch at startup.
func ListProcessingReports(ctx context.Context, db *gorm.DB) ([]Report, error) {
	var reports []Report
	if err := db.WithContext(ctx).
		Where("status = ? AND current_run_id IS NOT NULL", string(types.ReportProcessing)).
		Find(&reports).Error; err != nil {
		return nil, types.StorageError("list processing reports", err)
	}
	return reports, nil
}

func GetRun(ctx context.Context, db *gorm.DB, runId uuid.UUID) (AnalysisRun, error) {
	var run AnalysisRun
	if err := db.WithContext(ctx).First(&run, "id = ?", runId).Error; err != nil {
		return AnalysisRun{}, notFoundOr(err, "get analysis run", "analysis run %s not found", runId)
	}
	return run, nil
}

func ListRuns(ctx context.Context, db *gorm.DB, reportId uuid.UUID) ([]AnalysisRun, error) {
	var runs []AnalysisRun
	if err := db.WithContext(ctx).Where("report_id = ?", reportId).Order("started_at DESC").Find(&runs).Error; err != nil {
		return nil, types.StorageError(fmt.Sprintf("list runs for report %s", reportId), err)
	}
	return runs, nil
}
