package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Company struct {
	Name string
	Url  string
}

type CreateReportRequest struct {
	Name      string
	UsagePlan string
	StartDate string
	EndDate   string
	MinAge    int
	MaxAge    int
	Notes     string

	TargetCompanies  []Company
	CompareCompanies []Company
}

type CreateReportResponse struct {
	ReportId uuid.UUID
}

type ListReportsParams struct {
	Page     int    `schema:"page"`
	PageSize int    `schema:"page_size"`
	Status   string `schema:"status"`
}

type ReportListItem struct {
	Id                 uuid.UUID
	Name               string
	UsagePlan          string
	StartDate          string
	EndDate            string
	Status             string
	TargetCompanyCount int64
	UploadedFileCount  int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Pagination struct {
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

type ListReportsResponse struct {
	Reports    []ReportListItem
	Pagination Pagination
}

type UploadedFile struct {
	Id           uuid.UUID
	ReportId     uuid.UUID
	FileName     string
	OriginalName string
	Size         int64
	FileType     string
	AnalysisType string
	UploadedAt   time.Time
}

type AnalysisResult struct {
	FileId       *uuid.UUID `json:"FileId,omitempty"`
	AnalysisType string
	Data         json.RawMessage
	CreatedAt    time.Time
}

type AnalysisRun struct {
	Id         uuid.UUID
	Status     string
	FileCount  int
	Error      string     `json:"Error,omitempty"`
	StartedAt  time.Time
	FinishedAt *time.Time `json:"FinishedAt,omitempty"`
}

type Report struct {
	Id          uuid.UUID
	Name        string
	UsagePlan   string
	StartDate   string
	EndDate     string
	MinAge      int
	MaxAge      int
	Notes       string
	Status      string
	Content     json.RawMessage `json:"Content,omitempty"`
	Summary     json.RawMessage `json:"Summary,omitempty"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time `json:"CompletedAt,omitempty"`

	TargetCompanies  []Company
	CompareCompanies []Company
	Files            []UploadedFile
	Results          []AnalysisResult
}

type UpdateReportStatusRequest struct {
	Status  string
	Content json.RawMessage
	Summary json.RawMessage
}

type UploadFileResponse struct {
	File UploadedFile
}

type UpdateFileRequest struct {
	AnalysisType string
}

type StartAnalysisResponse struct {
	ReportId   uuid.UUID
	RunId      uuid.UUID
	FilesCount int
	Status     string
}

type ResultStamp struct {
	FileId       *uuid.UUID `json:"FileId,omitempty"`
	AnalysisType string
	CreatedAt    time.Time
}

type AnalysisStatusResponse struct {
	ReportId    uuid.UUID
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time   `json:"CompletedAt,omitempty"`
	Run         *AnalysisRun `json:"Run,omitempty"`
	Results     []ResultStamp
	Summary     json.RawMessage `json:"Summary,omitempty"`
}

type AnalysisResultsResponse struct {
	ReportId    uuid.UUID
	Name        string
	Status      string
	CreatedAt   time.Time
	CompletedAt *time.Time      `json:"CompletedAt,omitempty"`
	Content     json.RawMessage `json:"Content,omitempty"`
	Summary     json.RawMessage `json:"Summary,omitempty"`
	Results     []AnalysisResult
}
