package api

import (
	"log/slog"
	"math"
	"net/http"

	"report-backend/internal/core"
	"report-backend/internal/core/types"
	"report-backend/internal/database"
	"report-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxMultipartMemory = 32 << 20

// RunCanceler aborts the analysis run executing for a report in this process.
type RunCanceler interface {
	CancelRun(reportId uuid.UUID) bool
}

type BackendService struct {
	db           *gorm.DB
	registry     *core.FileRegistry
	orchestrator *core.Orchestrator
	status       *core.StatusService
	canceler     RunCanceler
}

// NewBackendService builds the REST adapter. canceler may be nil when no
// worker runs in this process.
func NewBackendService(db *gorm.DB, registry *core.FileRegistry, orchestrator *core.Orchestrator, status *core.StatusService, canceler RunCanceler) *BackendService {
	return &BackendService{
		db:           db,
		registry:     registry,
		orchestrator: orchestrator,
		status:       status,
		canceler:     canceler,
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Route("/reports", func(r chi.Router) {
		r.Post("/", RestHandler(s.CreateReport))
		r.Get("/", RestHandler(s.ListReports))

		r.Route("/{report_id}", func(r chi.Router) {
			r.Get("/", RestHandler(s.GetReport))
			r.Patch("/status", RestHandler(s.UpdateReportStatus))
			r.Delete("/", RestHandler(s.DeleteReport))

			r.Post("/files", RestHandler(s.UploadFile))
			r.Get("/files", RestHandler(s.ListFiles))
			r.Get("/files/{file_id}/download", FileHandler(s.DownloadFile))
			r.Patch("/files/{file_id}", RestHandler(s.UpdateFile))
			r.Delete("/files/{file_id}", RestHandler(s.DeleteFile))

			r.Post("/analyze", RestHandler(s.StartAnalysis))
			r.Get("/analysis/status", RestHandler(s.GetAnalysisStatus))
			r.Get("/analysis/results", RestHandler(s.GetAnalysisResults))
			r.Post("/analysis/cancel", RestHandler(s.CancelAnalysis))
		})
	})
}

func (s *BackendService) CreateReport(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateReportRequest](r)
	if err != nil {
		return nil, err
	}

	id, err := database.CreateReport(r.Context(), s.db, convertReportSpec(req))
	if err != nil {
		return nil, err
	}

	slog.Info("created report", "report_id", id, "name", req.Name)
	return api.CreateReportResponse{ReportId: id}, nil
}

func (s *BackendService) ListReports(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListReportsParams](r)
	if err != nil {
		return nil, err
	}

	opts := database.ListOptions{Page: params.Page, PageSize: params.PageSize, Status: params.Status}.Normalized()

	listings, total, err := database.ListReports(r.Context(), s.db, opts)
	if err != nil {
		return nil, err
	}

	return api.ListReportsResponse{
		Reports: convertListings(listings),
		Pagination: api.Pagination{
			Page:       opts.Page,
			PageSize:   opts.PageSize,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(opts.PageSize))),
		},
	}, nil
}

func (s *BackendService) GetReport(r *http.Request) (any, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}

	detail, err := s.status.GetReportDetail(r.Context(), reportId)
	if err != nil {
		return nil, err
	}

	return convertReportDetail(detail), nil
}

func (s *BackendService) UpdateReportStatus(r *http.Request) (any, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.UpdateReportStatusRequest](r)
	if err != nil {
		return nil, err
	}

	if err := database.UpdateReportStatus(r.Context(), s.db, reportId, req.Status, req.Content, req.Summary); err != nil {
		return nil, err
	}

	slog.Info("updated report status", "report_id", reportId, "status", req.Status)
	return nil, nil
}

func (s *BackendService) DeleteReport(r *http.Request) (any, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}

	if err := database.DeleteReport(r.Context(), s.db, reportId); err != nil {
		return nil, err
	}

	if s.canceler != nil {
		s.canceler.CancelRun(reportId)
	}
	s.registry.PurgeReportBlobs(r.Context(), reportId)

	slog.Info("deleted report", "report_id", reportId)
	return nil, nil
}

func (s *BackendService) UploadFile(r *http.Request) (any, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "error parsing multipart request: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "no file uploaded")
	}
	defer file.Close()

	uploaded, err := s.registry.Upload(r.Context(), reportId, core.UploadRequest{
		OriginalName: header.Filename,
		AnalysisType: r.FormValue("analysis_type"),
		Data:         file,
	})
	if err != nil {
		return nil, err
	}

	return api.UploadFileResponse{File: convertFile(uploaded)}, nil
}

func (s *BackendService) ListFiles(r *http.Request) (any, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}

	files, err := s.registry.ListFiles(r.Context(), reportId)
	if err != nil {
		return nil, err
	}

	return convertFiles(files), nil
}

func contentType(fileType string) string {
	switch fileType {
	case "csv":
		return "text/csv"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "xls":
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}

func (s *BackendService) DownloadFile(r *http.Request) (FileResponse, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return FileResponse{}, err
	}
	fileId, err := URLParamUUID(r, "file_id")
	if err != nil {
		return FileResponse{}, err
	}

	file, data, err := s.registry.Download(r.Context(), reportId, fileId)
	if err != nil {
		return FileResponse{}, err
	}

	return FileResponse{Name: file.OriginalName, ContentType: contentType(file.FileType), Data: data}, nil
}

func (s *BackendService) UpdateFile(r *http.Request) (any, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}
	fileId, err := URLParamUUID(r, "file_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.UpdateFileRequest](r)
	if err != nil {
		return nil, err
	}

	if err := s.registry.UpdateAnalysisType(r.Context(), reportId, fileId, req.AnalysisType); err != nil {
		return nil, err
	}

	file, err := s.registry.GetFile(r.Context(), reportId, fileId)
	if err != nil {
		return nil, err
	}
	return convertFile(file), nil
}

func (s *BackendService) DeleteFile(r *http.Request) (any, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}
	fileId, err := URLParamUUID(r, "file_id")
	if err != nil {
		return nil, err
	}

	if err := s.registry.DeleteFile(r.Context(), reportId, fileId); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *BackendService) StartAnalysis(r *http.Request) (any, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}

	ack, err := s.orchestrator.StartAnalysis(r.Context(), reportId)
	if err != nil {
		return nil, err
	}

	return api.StartAnalysisResponse{
		ReportId:   ack.ReportId,
		RunId:      ack.RunId,
		FilesCount: ack.FilesCount,
		Status:     string(types.ReportProcessing),
	}, nil
}

func (s *BackendService) GetAnalysisStatus(r *http.Request) (any, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}

	snapshot, err := s.status.GetStatus(r.Context(), reportId)
	if err != nil {
		return nil, err
	}
	return convertStatus(snapshot), nil
}

func (s *BackendService) GetAnalysisResults(r *http.Request) (any, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}

	results, err := s.status.GetResults(r.Context(), reportId)
	if err != nil {
		return nil, err
	}
	return convertResultSet(results), nil
}

func (s *BackendService) CancelAnalysis(r *http.Request) (any, error) {
	reportId, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}

	if _, err := database.GetReport(r.Context(), s.db, reportId); err != nil {
		return nil, err
	}

	if s.canceler == nil || !s.canceler.CancelRun(reportId) {
		return nil, CodedErrorf(http.StatusConflict, "no analysis run is executing for report %s", reportId)
	}

	slog.Info("cancelled analysis run", "report_id", reportId)
	return nil, nil
}
