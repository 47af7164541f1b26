package types

import "time"

// ProbeStatus is the outcome of a single probe.
type ProbeStatus string

const (
	ProbePassed ProbeStatus = "Passed"
	ProbeFailed ProbeStatus = "Failed"
)

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	RunPending               RunStatus = "Pending"
	RunCompleted             RunStatus = "Completed"
	RunCompletedWithFailures RunStatus = "Completed with Failures"
	RunFailed                RunStatus = "Failed"
)

// ProbeResult is the uniform record every probe returns.
//
// By convention exactly one of Details or Error is populated.
type ProbeResult struct {
	Goal      string                 `json:"goal"`
	Status    ProbeStatus            `json:"status"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp Timestamp              `json:"timestamp"`
}

// Passed reports whether the probe passed.
func (r ProbeResult) Passed() bool {
	return r.Status == ProbePassed
}

// NewPassedResult creates a passing probe result with the given details.
func NewPassedResult(goal string, details map[string]interface{}, at time.Time) ProbeResult {
	return ProbeResult{
		Goal:      goal,
		Status:    ProbePassed,
		Details:   details,
		Timestamp: NewTimestamp(at),
	}
}

// NewFailedResult creates a failing probe result carrying an error message.
func NewFailedResult(goal string, err string, at time.Time) ProbeResult {
	return ProbeResult{
		Goal:      goal,
		Status:    ProbeFailed,
		Error:     err,
		Timestamp: NewTimestamp(at),
	}
}

// RunResult is the merged outcome of all probes in one run.
type RunResult struct {
	ID          string        `json:"id"`
	Status      RunStatus     `json:"status"`
	Tests       []ProbeResult `json:"tests"`
	Screenshots []string      `json:"screenshots"`
	Errors      []string      `json:"errors"`
	AIAnalysis  *BugAnalysis  `json:"ai_analysis,omitempty"`
	StartedAt   Timestamp     `json:"started_at"`
	FinishedAt  Timestamp     `json:"finished_at"`
}

// NewRunResult creates an empty pending run result.
func NewRunResult(id string, startedAt time.Time) *RunResult {
	return &RunResult{
		ID:          id,
		Status:      RunPending,
		Tests:       []ProbeResult{},
		Screenshots: []string{},
		Errors:      []string{},
		StartedAt:   NewTimestamp(startedAt),
	}
}

// FailedCount returns the number of failed probe results.
func (r *RunResult) FailedCount() int {
	n := 0
	for _, t := range r.Tests {
		if t.Status == ProbeFailed {
			n++
		}
	}
	return n
}
