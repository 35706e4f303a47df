package api

import (
	"encoding/json"

	"report-backend/internal/core"
	"report-backend/internal/core/types"
	"report-backend/internal/database"
	"report-backend/pkg/api"
)

func convertCompanies(cs []database.Company) []api.Company {
	companies := make([]api.Company, 0, len(cs))
	for _, c := range cs {
		companies = append(companies, api.Company{Name: c.Name, Url: c.Url})
	}
	return companies
}

func convertFile(f database.UploadedFile) api.UploadedFile {
	return api.UploadedFile{
		Id:           f.Id,
		ReportId:     f.ReportId,
		FileName:     f.FileName,
		OriginalName: f.OriginalName,
		Size:         f.Size,
		FileType:     f.FileType,
		AnalysisType: f.AnalysisType,
		UploadedAt:   f.UploadedAt,
	}
}

func convertFiles(fs []database.UploadedFile) []api.UploadedFile {
	files := make([]api.UploadedFile, 0, len(fs))
	for _, f := range fs {
		files = append(files, convertFile(f))
	}
	return files
}

func convertResults(rs []core.ResultItem) []api.AnalysisResult {
	results := make([]api.AnalysisResult, 0, len(rs))
	for _, r := range rs {
		results = append(results, api.AnalysisResult{
			FileId:       r.FileId,
			AnalysisType: string(r.AnalysisType),
			Data:         r.Data,
			CreatedAt:    r.CreatedAt,
		})
	}
	return results
}

func convertListing(l database.ReportListing) api.ReportListItem {
	return api.ReportListItem{
		Id:                 l.Id,
		Name:               l.Name,
		UsagePlan:          l.UsagePlan,
		StartDate:          l.StartDate,
		EndDate:            l.EndDate,
		Status:             l.Status,
		TargetCompanyCount: l.TargetCompanyCount,
		UploadedFileCount:  l.UploadedFileCount,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}

func convertListings(ls []database.ReportListing) []api.ReportListItem {
	items := make([]api.ReportListItem, 0, len(ls))
	for _, l := range ls {
		items = append(items, convertListing(l))
	}
	return items
}

func rawJson(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}

func convertReportDetail(d core.ReportDetail) api.Report {
	r := d.Report
	report := api.Report{
		Id:               r.Id,
		Name:             r.Name,
		UsagePlan:        r.UsagePlan,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		MinAge:           r.MinAge,
		MaxAge:           r.MaxAge,
		Notes:            r.Notes,
		Status:           r.Status,
		Content:          rawJson(r.Content),
		Summary:          rawJson(r.Summary),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		TargetCompanies:  convertCompanies(d.TargetCompanies),
		CompareCompanies: convertCompanies(d.CompareCompanies),
		Files:            convertFiles(d.Files),
		Results:          convertResults(d.Results),
	}
	if r.CompletedAt.Valid {
		completed := r.CompletedAt.Time
		report.CompletedAt = &completed
	}
	return report
}

func convertReportSpec(req api.CreateReportRequest) database.ReportSpec {
	spec := database.ReportSpec{
		Name:      req.Name,
		UsagePlan: req.UsagePlan,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		MinAge:    req.MinAge,
		MaxAge:    req.MaxAge,
		Notes:     req.Notes,
	}
	for _, c := range req.TargetCompanies {
		spec.Companies = append(spec.Companies, database.CompanySpec{Name: c.Name, Url: c.Url, Role: types.TargetCompany})
	}
	for _, c := range req.CompareCompanies {
		spec.Companies = append(spec.Companies, database.CompanySpec{Name: c.Name, Url: c.Url, Role: types.CompareCompany})
	}
	return spec
}

func convertStatus(s core.StatusSnapshot) api.AnalysisStatusResponse {
	res := api.AnalysisStatusResponse{
		ReportId:    s.ReportId,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		CompletedAt: s.CompletedAt,
		Summary:     s.Summary,
		Results:     make([]api.ResultStamp, 0, len(s.Results)),
	}
	if s.Run != nil {
		res.Run = &api.AnalysisRun{
			Id:         s.Run.Id,
			Status:     s.Run.Status,
			FileCount:  s.Run.FileCount,
			Error:      s.Run.Error,
			StartedAt:  s.Run.StartedAt,
			FinishedAt: s.Run.FinishedAt,
		}
	}
	for _, r := range s.Results {
		res.Results = append(res.Results, api.ResultStamp{FileId: r.FileId, AnalysisType: string(r.AnalysisType), CreatedAt: r.CreatedAt})
	}
	return res
}

func convertResultSet(rs core.ResultSet) api.AnalysisResultsResponse {
	return api.AnalysisResultsResponse{
		ReportId:    rs.ReportId,
		Name:        rs.Name,
		Status:      string(rs.Status),
		CreatedAt:   rs.CreatedAt,
		CompletedAt: rs.CompletedAt,
		Content:     rs.Content,
		Summary:     rs.Summary,
		Results:     convertResults(rs.Results),
	}
}
