// Package qa implements the project workflow behind the API: validate a
// request, run the probes, generate the report and record the history entry.
package qa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/entrhq/qarunner/pkg/history"
	"github.com/entrhq/qarunner/pkg/logging"
	"github.com/entrhq/qarunner/pkg/report"
	"github.com/entrhq/qarunner/pkg/telemetry"
	"github.com/entrhq/qarunner/pkg/types"
)

// ValidationError reports a request the service refuses to run.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Runner executes the probes of a run.
type Runner interface {
	Run(ctx context.Context, req types.RunRequest) *types.RunResult
}

// Reporter generates the AI report for a finished run.
type Reporter interface {
	Generate(ctx context.Context, result *types.RunResult, goals []string) report.Outcome
}

// TargetChecker decides whether a target URL may be tested.
type TargetChecker interface {
	Check(rawURL string) error
}

// ArtifactWriter persists per-run files.
type ArtifactWriter interface {
	WriteAll(entry *types.HistoryEntry) (string, error)
}

// ProjectRequest is the body of POST /api/qa_project.
type ProjectRequest struct {
	ProjectName   string          `json:"project_name"`
	TargetURL     string          `json:"target_url"`
	SelectedGoals map[string]bool `json:"selected_goals"`

	// BrowserOptions may be an object or a JSON-encoded string
	BrowserOptions json.RawMessage `json:"selenium_options,omitempty"`
}

// ProjectResponse is the body returned for a completed run.
type ProjectResponse struct {
	Success       bool             `json:"success"`
	ProjectName   string           `json:"project_name"`
	Report        types.Report     `json:"report"`
	ReportOutcome string           `json:"report_outcome"`
	Results       *types.RunResult `json:"results"`
}

// Service runs QA projects and serves their history.
type Service struct {
	runner    Runner
	reporter  Reporter
	history   history.Store
	targets   TargetChecker
	artifacts ArtifactWriter
	logger    *logging.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithTargets restricts which URLs may be tested.
func WithTargets(t TargetChecker) Option {
	return func(s *Service) { s.targets = t }
}

// WithArtifacts enables per-run artifact files.
func WithArtifacts(w ArtifactWriter) Option {
	return func(s *Service) { s.artifacts = w }
}

// WithLogger sets the service logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the clock used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service.
func NewService(runner Runner, reporter Reporter, store history.Store, opts ...Option) *Service {
	s := &Service{
		runner:   runner,
		reporter: reporter,
		history:  store,
		logger:   logging.Nop(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks req and converts it into a RunRequest.
func (s *Service) Validate(req ProjectRequest) (types.RunRequest, error) {
	name := strings.TrimSpace(req.ProjectName)
	target := strings.TrimSpace(req.TargetURL)
	if name == "" || target == "" {
		return types.RunRequest{}, &ValidationError{Msg: "Missing required fields"}
	}

	goals, unknown := types.ParseSelection(req.SelectedGoals)
	if len(unknown) > 0 {
		s.logger.Warnf("Ignoring unknown goals for project %q: %s", name, strings.Join(unknown, ", "))
	}
	if len(goals) == 0 {
		return types.RunRequest{}, &ValidationError{Msg: "No automation goals selected"}
	}

	if s.targets != nil {
		if err := s.targets.Check(target); err != nil {
			return types.RunRequest{}, &ValidationError{Msg: err.Error()}
		}
	}

	return types.RunRequest{
		ProjectName: name,
		TargetURL:   target,
		Selection:   req.SelectedGoals,
		Goals:       goals,
		Browser:     types.ParseBrowserOptions(req.BrowserOptions),
	}, nil
}

// RunProject validates req, executes the run, generates the report and
// records the history entry. Persistence and artifact failures are logged
// and never fail the request. Once validated, the run is not tied to ctx's
// cancellation: a disconnected caller still gets its entry recorded.
func (s *Service) RunProject(ctx context.Context, req ProjectRequest) (*ProjectResponse, error) {
	runReq, err := s.Validate(req)
	if err != nil {
		telemetry.RunsRejectedTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	log := s.logger.With(zap.String("project", runReq.ProjectName))

	result := s.runner.Run(ctx, runReq)
	if result == nil {
		return nil, fmt.Errorf("run for %q produced no result", runReq.ProjectName)
	}

	outcome := s.reporter.Generate(ctx, result, runReq.GoalNames())

	entry := &types.HistoryEntry{
		ID:              s.newID(),
		ProjectName:     runReq.ProjectName,
		TargetURL:       runReq.TargetURL,
		SelectedGoals:   runReq.Selection,
		Status:          result.Status,
		Timestamp:       types.NewTimestamp(s.now()),
		ReportSummary:   outcome.Report.Summary,
		Recommendations: outcome.Report.Recommendations,
		CriticalIssues:  outcome.Report.CriticalIssues,
		ReportOutcome:   string(outcome.Kind),
		Results:         result,
	}

	if err := s.history.Add(ctx, entry); err != nil {
		telemetry.HistoryWriteFailuresTotal.Inc()
		log.Errorf("Failed to persist history entry %s: %v", entry.ID, err)
	}

	if s.artifacts != nil {
		if dir, err := s.artifacts.WriteAll(entry); err != nil {
			log.Warnf("Failed to write run artifacts: %v", err)
		} else {
			log.Debugf("Run artifacts written to %s", dir)
		}
	}

	return &ProjectResponse{
		Success:       true,
		ProjectName:   runReq.ProjectName,
		Report:        outcome.Report,
		ReportOutcome: string(outcome.Kind),
		Results:       result,
	}, nil
}

// History returns every stored entry, newest first.
func (s *Service) History(ctx context.Context) ([]*types.HistoryEntry, error) {
	return s.history.List(ctx)
}

// Latest returns the newest entry for projectName, or history.ErrNotFound.
func (s *Service) Latest(ctx context.Context, projectName string) (*types.HistoryEntry, error) {
	return s.history.GetByName(ctx, projectName)
}
