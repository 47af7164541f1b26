package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/entrhq/qarunner/pkg/llm"
	"github.com/entrhq/qarunner/pkg/logging"
	"github.com/entrhq/qarunner/pkg/telemetry"
	"github.com/entrhq/qarunner/pkg/types"
)

// DefaultMaxPromptBytes bounds the serialized results embedded in a prompt.
const DefaultMaxPromptBytes = 60000

const truncationMarker = "\n... (results truncated)"

// Generator produces reports and bug analyses with an LLM provider.
type Generator struct {
	provider       llm.Provider
	maxPromptBytes int
	timeout        time.Duration
	logger         *logging.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxPromptBytes sets the truncation limit for embedded results.
func WithMaxPromptBytes(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxPromptBytes = n
		}
	}
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		g.timeout = d
	}
}

// WithLogger sets the logger used for degraded and unavailable outcomes.
func WithLogger(logger *logging.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator creates a Generator. A nil provider makes every call
// unavailable.
func NewGenerator(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider:       provider,
		maxPromptBytes: DefaultMaxPromptBytes,
		logger:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the model for a per-goal summary, recommendations and
// critical issues for result.
func (g *Generator) Generate(ctx context.Context, result *types.RunResult, goals []string) Outcome {
	ctx, span := otel.Tracer("qarunner.report").Start(ctx, "report.generate",
		trace.WithAttributes(attribute.Int("goals", len(goals))),
	)
	defer span.End()

	reply, err := g.complete(ctx, reportPrompt(goals, g.resultsJSON(result)))
	if err != nil {
		g.logger.Errorf("Error generating AI report: %v", err)
		span.RecordError(err)
		return g.observeReport(Outcome{Kind: KindUnavailable, Report: unavailableReport(), Reason: err.Error()}, span)
	}

	report, err := parseReport(reply)
	if err != nil {
		g.logger.Warnf("AI report reply could not be parsed: %v", err)
		return g.observeReport(Outcome{Kind: KindDegraded, Report: degradedReport(reply), Reason: err.Error()}, span)
	}
	return g.observeReport(Outcome{Kind: KindParsed, Report: report}, span)
}

// DetectBugs asks the model to classify potential bugs, performance,
// accessibility and UX issues found in result.
func (g *Generator) DetectBugs(ctx context.Context, projectName, targetURL string, result *types.RunResult) BugOutcome {
	ctx, span := otel.Tracer("qarunner.report").Start(ctx, "report.detect_bugs")
	defer span.End()

	reply, err := g.complete(ctx, bugPrompt(projectName, targetURL, g.resultsJSON(result)))
	if err != nil {
		g.logger.Errorf("Error running AI bug detection: %v", err)
		span.RecordError(err)
		analysis := emptyAnalysis()
		analysis.Error = err.Error()
		return g.observeBugs(BugOutcome{Kind: KindUnavailable, Analysis: analysis, Reason: err.Error()}, span)
	}

	analysis, err := parseBugAnalysis(reply)
	if err != nil {
		g.logger.Warnf("AI bug detection reply could not be parsed: %v", err)
		degraded := emptyAnalysis()
		degraded.Analysis = truncateRunes(reply, degradedAnalysisRunes)
		return g.observeBugs(BugOutcome{Kind: KindDegraded, Analysis: degraded, Reason: err.Error()}, span)
	}
	return g.observeBugs(BugOutcome{Kind: KindParsed, Analysis: analysis}, span)
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	if g.provider == nil {
		return "", fmt.Errorf("no AI provider configured")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	msg, err := g.provider.Complete(ctx, []*types.Message{types.NewUserMessage(prompt)})
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", fmt.Errorf("empty reply from model")
	}
	return msg.Content, nil
}

// resultsJSON serializes result for a prompt, truncated to maxPromptBytes
// on a rune boundary.
func (g *Generator) resultsJSON(result *types.RunResult) string {
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("(results could not be serialized: %v)", err)
	}
	if len(b) <= g.maxPromptBytes {
		return string(b)
	}

	cut := g.maxPromptBytes
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + truncationMarker
}

func (g *Generator) observeReport(o Outcome, span trace.Span) Outcome {
	span.SetAttributes(attribute.String("outcome", string(o.Kind)))
	telemetry.AIOutcomesTotal.WithLabelValues("report", string(o.Kind)).Inc()
	return o
}

func (g *Generator) observeBugs(o BugOutcome, span trace.Span) BugOutcome {
	o.Analysis.Outcome = string(o.Kind)
	span.SetAttributes(attribute.String("outcome", string(o.Kind)))
	telemetry.AIOutcomesTotal.WithLabelValues("bugs", string(o.Kind)).Inc()
	return o
}

func reportPrompt(goals []string, results string) string {
	var b strings.Builder
	b.WriteString("As a QA testing expert, analyze the following automated test results and provide insights.\n\n")
	fmt.Fprintf(&b, "Test Goals Executed: %s\n\n", strings.Join(goals, ", "))
	b.WriteString("Test Results:\n")
	b.WriteString(results)
	b.WriteString("\n\nPlease provide:\n")
	b.WriteString("1. A summary of findings for each test goal\n")
	b.WriteString("2. Critical issues found\n")
	b.WriteString("3. Recommendations for improvement\n")
	b.WriteString("4. Overall quality assessment\n\n")
	b.WriteString(`Format your response as JSON with keys: "report_summary" (object with goal-specific summaries), `)
	b.WriteString(`"recommendations" (array), "critical_issues" (array)`)
	return b.String()
}

func bugPrompt(projectName, targetURL, results string) string {
	var b strings.Builder
	b.WriteString("As an expert QA tester, analyze these test results and identify potential bugs or issues.\n\n")
	fmt.Fprintf(&b, "Project: %s\n", projectName)
	fmt.Fprintf(&b, "URL: %s\n\n", targetURL)
	b.WriteString("Test Results:\n")
	b.WriteString(results)
	b.WriteString("\n\nPlease identify:\n")
	b.WriteString("1. Potential bugs or issues\n")
	b.WriteString("2. Performance concerns\n")
	b.WriteString("3. Accessibility violations\n")
	b.WriteString("4. Security risks\n")
	b.WriteString("5. User experience problems\n\n")
	b.WriteString(`Provide your analysis as a structured JSON with keys: "bugs" (array), "performance_issues" (array), `)
	b.WriteString(`"accessibility_issues" (array), "ux_issues" (array)`)
	return b.String()
}
