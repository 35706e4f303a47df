package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"report-backend/internal/core/types"
	"report-backend/internal/storage"

	"github.com/xuri/excelize/v2"
)

const maxProfiledRows = 100_000

type ColumnStats struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

type FileProfile struct {
	Format    string        `json:"format"`
	SizeBytes int64         `json:"size_bytes"`
	Parsed    bool          `json:"parsed"`
	Rows      int           `json:"rows"`
	Columns   []string      `json:"columns"`
	Numeric   []ColumnStats `json:"numeric_columns,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
}

type AnalysisPayload struct {
	Type            types.AnalysisType `json:"type"`
	File            string             `json:"file"`
	Summary         string             `json:"summary"`
	Profile         FileProfile        `json:"profile"`
	MatchedColumns  []string           `json:"matched_columns"`
	KeyFindings     []string           `json:"key_findings"`
	Recommendations []string           `json:"recommendations"`
}

type analyzerFunc func(profile FileProfile, file FileInput, report ReportContext) AnalysisPayload

type columnRule struct {
	title           string
	hints           []string
	recommendations []string
}

var analysisRules = map[types.AnalysisType]columnRule{
	types.Demographics: {
		title: "demographic analysis",
		hints: []string{"age", "gender", "sex", "region", "location", "city"},
		recommendations: []string{
			"focus campaigns on the dominant age band",
			"compare the gender split against the target audience",
		},
	},
	types.TimeSeries: {
		title: "time series analysis",
		hints: []string{"date", "time", "day", "week", "month", "hour"},
		recommendations: []string{
			"schedule campaigns around peak periods",
			"review service capacity during high activity hours",
		},
	},
	types.VisitedSites: {
		title: "visited sites analysis",
		hints: []string{"site", "url", "domain", "visit", "category"},
		recommendations: []string{
			"prioritize advertising on the most visited sites",
			"track competitor site visits over the report period",
		},
	},
	types.CrossVisit: {
		title: "cross visit analysis",
		hints: []string{"company", "competitor", "cross", "overlap", "ratio"},
		recommendations: []string{
			"target customers shared with compare companies",
			"strengthen loyalty programs for exclusive customers",
		},
	},
}

// SummaryEngine profiles uploaded files and derives findings from their
// structure. It is deterministic for a given input.
type SummaryEngine struct {
	storage   storage.Provider
	bucket    string
	analyzers map[types.AnalysisType]analyzerFunc
}

var _ AnalysisEngine = (*SummaryEngine)(nil)

func NewSummaryEngine(storage storage.Provider, bucket string) *SummaryEngine {
	analyzers := make(map[types.AnalysisType]analyzerFunc, len(analysisRules))
	for analysisType, rule := range analysisRules {
		analyzers[analysisType] = ruleAnalyzer(analysisType, rule)
	}
	return &SummaryEngine{storage: storage, bucket: bucket, analyzers: analyzers}
}

func (e *SummaryEngine) Analyze(ctx context.Context, analysisType types.AnalysisType, file FileInput, report ReportContext) (json.RawMessage, error) {
	analyzer, ok := e.analyzers[analysisType]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", types.ErrUnknownAnalysisType, analysisType)
	}

	data, err := e.storage.GetObject(ctx, e.bucket, file.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", file.Name, err)
	}

	profile, err := profileFile(file.FileType, data)
	if err != nil {
		return nil, fmt.Errorf("error profiling file %s: %w", file.Name, err)
	}

	return json.Marshal(analyzer(profile, file, report))
}

// rowReader yields one record per call and io.EOF after the last one.
type rowReader interface {
	Read() ([]string, error)
	Close() error
}

type csvRows struct {
	reader *csv.Reader
}

func newCsvRows(data []byte) *csvRows {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return &csvRows{reader: reader}
}

func (r *csvRows) Read() ([]string, error) {
	return r.reader.Read()
}

func (r *csvRows) Close() error {
	return nil
}

// xlsxRows streams the first worksheet of a workbook.
type xlsxRows struct {
	file *excelize.File
	rows *excelize.Rows
}

func newXlsxRows(data []byte) (rowReader, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error opening workbook: %w", err)
	}

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return &xlsxRows{file: file}, nil
	}

	rows, err := file.Rows(sheets[0])
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("error reading sheet %s: %w", sheets[0], err)
	}
	return &xlsxRows{file: file, rows: rows}, nil
}

func (r *xlsxRows) Read() ([]string, error) {
	if r.rows == nil || !r.rows.Next() {
		if r.rows != nil {
			if err := r.rows.Error(); err != nil {
				return nil, err
			}
		}
		return nil, io.EOF
	}
	return r.rows.Columns()
}

func (r *xlsxRows) Close() error {
	if r.rows != nil {
		if err := r.rows.Close(); err != nil {
			r.file.Close()
			return err
		}
	}
	return r.file.Close()
}

func profileFile(fileType string, data []byte) (FileProfile, error) {
	profile := FileProfile{Format: fileType, SizeBytes: int64(len(data)), Columns: []string{}}

	var rows rowReader
	switch fileType {
	case "csv":
		rows = newCsvRows(data)
	case "xlsx":
		var err error
		if rows, err = newXlsxRows(data); err != nil {
			return profile, err
		}
	default:
		// Legacy binary workbooks are recorded by size only.
		return profile, nil
	}
	defer rows.Close()

	if err := profileRows(&profile, rows); err != nil {
		return profile, err
	}
	profile.Parsed = true
	return profile, nil
}

// profileRows treats the first record as the header and collects numeric
// statistics for every column whose cells all parse as numbers.
func profileRows(profile *FileProfile, rows rowReader) error {
	header, err := rows.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	profile.Columns = header

	sums := make([]float64, len(header))
	stats := make([]ColumnStats, len(header))
	nonNumeric := make([]bool, len(header))
	for i, name := range header {
		stats[i] = ColumnStats{Name: name, Min: math.Inf(1), Max: math.Inf(-1)}
	}

	for {
		record, err := rows.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if profile.Rows >= maxProfiledRows {
			profile.Truncated = true
			break
		}
		profile.Rows++

		for i := 0; i < len(record) && i < len(header); i++ {
			cell := strings.TrimSpace(record[i])
			if cell == "" || nonNumeric[i] {
				continue
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
			if err != nil {
				nonNumeric[i] = true
				continue
			}
			stats[i].Count++
			sums[i] += v
			stats[i].Min = min(stats[i].Min, v)
			stats[i].Max = max(stats[i].Max, v)
		}
	}

	for i := range stats {
		if nonNumeric[i] || stats[i].Count == 0 {
			continue
		}
		stats[i].Mean = math.Round(sums[i]/float64(stats[i].Count)*100) / 100
		profile.Numeric = append(profile.Numeric, stats[i])
	}
	return nil
}

func ruleAnalyzer(analysisType types.AnalysisType, rule columnRule) analyzerFunc {
	return func(profile FileProfile, file FileInput, report ReportContext) AnalysisPayload {
		matched := []string{}
		for _, column := range profile.Columns {
			lower := strings.ToLower(column)
			if slices.ContainsFunc(rule.hints, func(h string) bool { return strings.Contains(lower, h) }) {
				matched = append(matched, column)
			}
		}

		findings := []string{}
		if profile.Parsed {
			findings = append(findings, fmt.Sprintf("%d rows across %d columns", profile.Rows, len(profile.Columns)))
		} else {
			findings = append(findings, fmt.Sprintf("%s file of %d bytes recorded without parsing", profile.Format, profile.SizeBytes))
		}
		if len(matched) > 0 {
			findings = append(findings, fmt.Sprintf("relevant columns: %s", strings.Join(matched, ", ")))
		}
		for _, col := range profile.Numeric {
			if len(matched) == 0 || slices.Contains(matched, col.Name) {
				findings = append(findings, fmt.Sprintf("%s ranges %g to %g (mean %g)", col.Name, col.Min, col.Max, col.Mean))
			}
		}

		return AnalysisPayload{
			Type:            analysisType,
			File:            file.Name,
			Summary:         fmt.Sprintf("%s of %s for %s ~ %s", rule.title, file.Name, report.StartDate, report.EndDate),
			Profile:         profile,
			MatchedColumns:  matched,
			KeyFindings:     findings,
			Recommendations: rule.recommendations,
		}
	}
}

type reportSummary struct {
	ReportName      string               `json:"report_name"`
	AnalysisPeriod  string               `json:"analysis_period"`
	TotalFiles      int                  `json:"total_files"`
	AnalysisTypes   []types.AnalysisType `json:"analysis_types"`
	KeyInsights     []string             `json:"key_insights"`
	Recommendations []string             `json:"recommendations"`
}

type reportInfo struct {
	Name             string   `json:"name"`
	UsagePlan        string   `json:"usage_plan,omitempty"`
	Period           string   `json:"period"`
	AgeRange         string   `json:"age_range"`
	CreatedAt        string   `json:"created_at"`
	TargetCompanies  []string `json:"target_companies"`
	CompareCompanies []string `json:"compare_companies"`
}

type analysisFile struct {
	Name string             `json:"name"`
	Type types.AnalysisType `json:"type"`
	Size int64              `json:"size"`
}

type analysisEntry struct {
	Type types.AnalysisType `json:"type"`
	Data json.RawMessage    `json:"data"`
}

type reportContent struct {
	ReportInfo       reportInfo      `json:"report_info"`
	AnalysisFiles    []analysisFile  `json:"analysis_files"`
	AnalysisResults  []analysisEntry `json:"analysis_results"`
	ExecutiveSummary string          `json:"executive_summary"`
}

func (e *SummaryEngine) Aggregate(ctx context.Context, report ReportContext, results []ResultInput) (json.RawMessage, json.RawMessage, error) {
	period := fmt.Sprintf("%s ~ %s", report.StartDate, report.EndDate)

	summary := reportSummary{
		ReportName:      report.Name,
		AnalysisPeriod:  period,
		TotalFiles:      len(results),
		AnalysisTypes:   []types.AnalysisType{},
		KeyInsights:     []string{},
		Recommendations: []string{},
	}

	content := reportContent{
		ReportInfo: reportInfo{
			Name:             report.Name,
			UsagePlan:        report.UsagePlan,
			Period:           period,
			AgeRange:         fmt.Sprintf("%d~%d", report.MinAge, report.MaxAge),
			CreatedAt:        report.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			TargetCompanies:  []string{},
			CompareCompanies: []string{},
		},
		AnalysisFiles:   []analysisFile{},
		AnalysisResults: []analysisEntry{},
	}

	for _, c := range report.Companies {
		if c.Role == types.TargetCompany {
			content.ReportInfo.TargetCompanies = append(content.ReportInfo.TargetCompanies, c.Name)
		} else {
			content.ReportInfo.CompareCompanies = append(content.ReportInfo.CompareCompanies, c.Name)
		}
	}
	for _, f := range report.Files {
		content.AnalysisFiles = append(content.AnalysisFiles, analysisFile{Name: f.Name, Type: f.AnalysisType, Size: f.Size})
	}

	for _, result := range results {
		if !slices.Contains(summary.AnalysisTypes, result.AnalysisType) {
			summary.AnalysisTypes = append(summary.AnalysisTypes, result.AnalysisType)
		}

		var payload AnalysisPayload
		if err := json.Unmarshal(result.Payload, &payload); err != nil {
			return nil, nil, fmt.Errorf("error decoding %s result: %w", result.AnalysisType, err)
		}
		if len(payload.KeyFindings) > 0 {
			summary.KeyInsights = append(summary.KeyInsights, fmt.Sprintf("%s: %s", result.AnalysisType, payload.KeyFindings[0]))
		}
		for _, rec := range payload.Recommendations {
			if !slices.Contains(summary.Recommendations, rec) {
				summary.Recommendations = append(summary.Recommendations, rec)
			}
		}

		content.AnalysisResults = append(content.AnalysisResults, analysisEntry{Type: result.AnalysisType, Data: result.Payload})
	}

	content.ExecutiveSummary = fmt.Sprintf("%d files analyzed for %s over %s, ages %d to %d.",
		len(results), report.Name, period, report.MinAge, report.MaxAge)

	summaryJson, err := json.Marshal(summary)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding summary: %w", err)
	}
	contentJson, err := json.Marshal(content)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding content: %w", err)
	}

	return summaryJson, contentJson, nil
}
