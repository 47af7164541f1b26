package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)

func TestParseBrowserOptions(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		headless *bool
		size     string
	}{
		{name: "empty", raw: ""},
		{name: "object", raw: `{"headless": false, "windowSize": "1280,720"}`, headless: boolPtr(false), size: "1280,720"},
		{name: "encoded string", raw: `"{\"windowSize\": \"800,600\"}"`, size: "800,600"},
		{name: "malformed string", raw: `"{not json"`},
		{name: "wrong type", raw: `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := ParseBrowserOptions(json.RawMessage(tt.raw))
			assert.Equal(t, tt.headless, opts.Headless)
			assert.Equal(t, tt.size, opts.WindowSize)
		})
	}
}

func TestBrowserOptions_Viewport(t *testing.T) {
	assert.Equal(t, Viewport{Width: 1280, Height: 720}, BrowserOptions{WindowSize: "1280, 720"}.Viewport())
	assert.Equal(t, Viewport{Width: 1920, Height: 1080}, BrowserOptions{}.Viewport())
	assert.Equal(t, Viewport{Width: 1920, Height: 1080}, BrowserOptions{WindowSize: "wide,tall"}.Viewport())
	assert.Equal(t, Viewport{Width: 1920, Height: 1080}, BrowserOptions{WindowSize: "-1,10"}.Viewport())
}

func TestRunRequest_GoalsFor(t *testing.T) {
	req := RunRequest{Goals: []Goal{GoalNavigation, GoalAccessibility, GoalForms}}

	assert.Equal(t, []Goal{GoalNavigation, GoalAccessibility}, req.GoalsFor(EnginePage))
	assert.Equal(t, []Goal{GoalForms}, req.GoalsFor(EngineDriver))
	assert.True(t, req.Has(GoalForms))
	assert.False(t, req.Has(GoalScreenshot))
	assert.Equal(t, []string{
		"Browser Navigation & URL Validation",
		"Accessibility Conformance (WCAG)",
		"Form Interaction & Data Submission",
	}, req.GoalNames())
}

func TestRunResult_FailedCount(t *testing.T) {
	r := NewRunResult("run-1", testTime)
	require.Equal(t, RunPending, r.Status)
	r.Tests = append(r.Tests,
		NewPassedResult("a", nil, testTime),
		NewFailedResult("b", "boom", testTime),
		NewFailedResult("c", "boom", testTime),
	)
	assert.Equal(t, 2, r.FailedCount())
	assert.True(t, r.Tests[0].Passed())
}

func TestRunResult_EmptyListsEncodeAsArrays(t *testing.T) {
	data, err := json.Marshal(NewRunResult("run-1", testTime))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tests":[]`)
	assert.Contains(t, string(data), `"screenshots":[]`)
	assert.Contains(t, string(data), `"errors":[]`)
	assert.NotContains(t, string(data), "ai_analysis")
}

func boolPtr(b bool) *bool { return &b }
