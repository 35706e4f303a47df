package types

import "fmt"

type ReportStatus string

const (
	ReportPending    ReportStatus = "pending"
	ReportProcessing ReportStatus = "processing"
	ReportCompleted  ReportStatus = "completed"
	ReportFailed     ReportStatus = "failed"
)

var ReportStatuses = []ReportStatus{ReportPending, ReportProcessing, ReportCompleted, ReportFailed}

func ParseReportStatus(s string) (ReportStatus, error) {
	for _, status := range ReportStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", ValidationErrorf("invalid status '%s', must be one of %v", s, ReportStatuses)
}

// Runs share the terminal report statuses but never sit in pending.
const (
	RunProcessing = string(ReportProcessing)
	RunCompleted  = string(ReportCompleted)
	RunFailed     = string(ReportFailed)
)

type AnalysisType string

const (
	Demographics AnalysisType = "demographics"
	TimeSeries   AnalysisType = "timeSeries"
	VisitedSites AnalysisType = "visitedSites"
	CrossVisit   AnalysisType = "crossVisit"
)

var AnalysisTypes = []AnalysisType{Demographics, TimeSeries, VisitedSites, CrossVisit}

// ParseAnalysisType returns ErrUnknownAnalysisType for anything outside
// AnalysisTypes. Callers validating user input wrap it as a validation error.
func ParseAnalysisType(s string) (AnalysisType, error) {
	for _, t := range AnalysisTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: '%s'", ErrUnknownAnalysisType, s)
}

type CompanyRole string

const (
	TargetCompany  CompanyRole = "target"
	CompareCompany CompanyRole = "compare"
)

func ParseCompanyRole(s string) (CompanyRole, error) {
	switch CompanyRole(s) {
	case TargetCompany, CompareCompany:
		return CompanyRole(s), nil
	}
	return "", ValidationErrorf("invalid company role '%s', must be one of [%s %s]", s, TargetCompany, CompareCompany)
}
