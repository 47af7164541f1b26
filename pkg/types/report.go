package types

// Report is the AI-generated summary of a run.
type Report struct {
	Summary         map[string]string `json:"report_summary"`
	Recommendations []string          `json:"recommendations"`
	CriticalIssues  []string          `json:"critical_issues"`
}

// BugAnalysis is the optional AI bug-detection output attached to a run.
type BugAnalysis struct {
	Bugs                []string `json:"bugs"`
	PerformanceIssues   []string `json:"performance_issues"`
	AccessibilityIssues []string `json:"accessibility_issues"`
	UXIssues            []string `json:"ux_issues"`

	// Analysis holds raw model text when the reply could not be parsed
	Analysis string `json:"analysis,omitempty"`

	// Error holds the failure text when the model could not be reached
	Error string `json:"error,omitempty"`

	// Outcome records how the analysis was obtained (parsed, degraded, unavailable)
	Outcome string `json:"outcome,omitempty"`
}

// HistoryEntry is the persisted record of one run and its report.
type HistoryEntry struct {
	ID              string            `json:"id"`
	ProjectName     string            `json:"project_name"`
	TargetURL       string            `json:"target_url"`
	SelectedGoals   map[string]bool   `json:"selected_goals"`
	Status          RunStatus         `json:"qa_status"`
	Timestamp       Timestamp         `json:"timestamp"`
	ReportSummary   map[string]string `json:"report_summary"`
	Recommendations []string          `json:"recommendations"`
	CriticalIssues  []string          `json:"critical_issues"`
	ReportOutcome   string            `json:"report_outcome,omitempty"`
	Results         *RunResult        `json:"test_results"`
}
