// Package report turns run results into AI-written reports and bug analyses.
//
// Every call degrades gracefully: an unparseable model reply yields a report
// built from the raw text, and an unreachable model yields a static report.
// Nothing in this package returns an error to its caller.
package report

import "github.com/entrhq/qarunner/pkg/types"

// Kind records how a report or analysis was obtained.
type Kind string

const (
	// KindParsed means the model reply was valid JSON with the expected shape
	KindParsed Kind = "parsed"
	// KindDegraded means the model replied but the reply could not be parsed
	KindDegraded Kind = "degraded"
	// KindUnavailable means the model could not be reached
	KindUnavailable Kind = "unavailable"
)

// Outcome is the result of Generate.
type Outcome struct {
	Kind   Kind
	Report types.Report

	// Reason explains a degraded or unavailable outcome
	Reason string
}

// BugOutcome is the result of DetectBugs.
type BugOutcome struct {
	Kind     Kind
	Analysis types.BugAnalysis
	Reason   string
}

const (
	degradedSummaryRunes  = 500
	degradedAnalysisRunes = 1000
	unavailableSummary    = "Test execution completed. AI report generation failed."
)

var (
	degradedRecommendations    = []string{"Review automated test results", "Verify all critical paths"}
	unavailableRecommendations = []string{"Manual review recommended"}
)

func degradedReport(text string) types.Report {
	return types.Report{
		Summary:         map[string]string{"General": truncateRunes(text, degradedSummaryRunes)},
		Recommendations: append([]string(nil), degradedRecommendations...),
		CriticalIssues:  []string{},
	}
}

func unavailableReport() types.Report {
	return types.Report{
		Summary:         map[string]string{"General": unavailableSummary},
		Recommendations: append([]string(nil), unavailableRecommendations...),
		CriticalIssues:  []string{},
	}
}

func emptyAnalysis() types.BugAnalysis {
	return types.BugAnalysis{
		Bugs:                []string{},
		PerformanceIssues:   []string{},
		AccessibilityIssues: []string{},
		UXIssues:            []string{},
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
