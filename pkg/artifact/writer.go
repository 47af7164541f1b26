// Package artifact writes per-run result files for offline review.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/entrhq/qarunner/pkg/types"
)

// Writer writes run artifacts under a base directory, one subdirectory per run.
type Writer struct {
	outputDir string
}

// NewWriter creates a new artifact writer
func NewWriter(outputDir string) *Writer {
	return &Writer{
		outputDir: outputDir,
	}
}

// WriteAll writes run.json and summary.md for entry and returns the run directory.
func (w *Writer) WriteAll(entry *types.HistoryEntry) (string, error) {
	if entry == nil || entry.Results == nil {
		return "", fmt.Errorf("artifact: entry has no results")
	}

	dir, err := w.runDir(entry.Results.ID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := w.WriteRunJSON(dir, entry); err != nil {
		return "", fmt.Errorf("failed to write run JSON: %w", err)
	}

	if err := w.WriteSummaryMarkdown(dir, entry); err != nil {
		return "", fmt.Errorf("failed to write summary markdown: %w", err)
	}

	return dir, nil
}

// runDir resolves the run directory, refusing ids that would escape outputDir.
func (w *Writer) runDir(runID string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("artifact: invalid run id %q", runID)
	}
	return filepath.Join(w.outputDir, runID), nil
}

// WriteRunJSON writes the full history entry as JSON
func (w *Writer) WriteRunJSON(dir string, entry *types.HistoryEntry) error {
	path := filepath.Join(dir, "run.json")

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write run JSON: %w", writeErr)
	}

	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *Writer) WriteSummaryMarkdown(dir string, entry *types.HistoryEntry) error {
	path := filepath.Join(dir, "summary.md")
	results := entry.Results

	var md strings.Builder

	// Header
	md.WriteString("# QA Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Project:** %s\n\n", entry.ProjectName))
	md.WriteString(fmt.Sprintf("**Target:** %s\n\n", entry.TargetURL))
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", results.Status))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", results.StartedAt.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", results.FinishedAt.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", results.FinishedAt.Sub(results.StartedAt.Time)))

	// Probes
	md.WriteString("## Probes\n\n")
	if len(results.Tests) == 0 {
		md.WriteString("No probes ran.\n\n")
	} else {
		md.WriteString("| Goal | Status | Notes |\n")
		md.WriteString("|---|---|---|\n")
		for _, t := range results.Tests {
			status := "✅"
			if !t.Passed() {
				status = "❌"
			}
			md.WriteString(fmt.Sprintf("| %s | %s %s | %s |\n", t.Goal, status, t.Status, escapeCell(notes(t))))
		}
		md.WriteString("\n")
	}

	// Session errors
	if len(results.Errors) > 0 {
		md.WriteString("## Errors\n\n")
		for _, e := range results.Errors {
			md.WriteString(fmt.Sprintf("- %s\n", e))
		}
		md.WriteString("\n")
	}

	// Screenshots
	if len(results.Screenshots) > 0 {
		md.WriteString("## Screenshots\n\n")
		for _, s := range results.Screenshots {
			md.WriteString(fmt.Sprintf("- `%s`\n", s))
		}
		md.WriteString("\n")
	}

	// Report
	md.WriteString("## Report\n\n")
	if entry.ReportOutcome != "" {
		md.WriteString(fmt.Sprintf("_Report outcome: %s_\n\n", entry.ReportOutcome))
	}
	keys := make([]string, 0, len(entry.ReportSummary))
	for k := range entry.ReportSummary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		md.WriteString(fmt.Sprintf("### %s\n\n%s\n\n", k, entry.ReportSummary[k]))
	}
	writeList(&md, "Critical Issues", entry.CriticalIssues)
	writeList(&md, "Recommendations", entry.Recommendations)

	// Write file
	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}

	return nil
}

func writeList(md *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	md.WriteString(fmt.Sprintf("### %s\n\n", title))
	for _, item := range items {
		md.WriteString(fmt.Sprintf("- %s\n", item))
	}
	md.WriteString("\n")
}

func notes(t types.ProbeResult) string {
	if t.Error != "" {
		return t.Error
	}
	switch issues := t.Details["issues"].(type) {
	case []string:
		return strings.Join(issues, "; ")
	case []interface{}:
		parts := make([]string, 0, len(issues))
		for _, i := range issues {
			parts = append(parts, fmt.Sprint(i))
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
