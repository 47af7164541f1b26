// Package runner coordinates the probes of one QA run across the two
// browser engines and merges their results.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/entrhq/qarunner/pkg/browser"
	"github.com/entrhq/qarunner/pkg/logging"
	"github.com/entrhq/qarunner/pkg/probe"
	"github.com/entrhq/qarunner/pkg/report"
	"github.com/entrhq/qarunner/pkg/telemetry"
	"github.com/entrhq/qarunner/pkg/types"
)

// PageLauncher starts page-engine sessions.
type PageLauncher interface {
	Launch(opts browser.LaunchOptions) (probe.PageSession, error)
}

// DriverLauncher starts driver-engine sessions.
type DriverLauncher interface {
	Launch(ctx context.Context, opts browser.LaunchOptions) (probe.DriverSession, error)
}

// BugDetector produces the optional AI analysis attached to a run.
type BugDetector interface {
	DetectBugs(ctx context.Context, projectName, targetURL string, result *types.RunResult) report.BugOutcome
}

// Config holds the run-wide browser settings.
type Config struct {
	WaitTimeout       time.Duration
	NavigationTimeout time.Duration
	ScreenshotDir     string

	// Headless is the default browser mode
	Headless bool

	// AllowHeaded lets a request override Headless
	AllowHeaded bool
}

// Runner executes QA runs. It holds no per-run state and is safe for
// concurrent use.
type Runner struct {
	pages   PageLauncher
	drivers DriverLauncher
	bugs    BugDetector
	cfg     Config
	logger  *logging.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithBugDetector enables AI bug detection after the probes.
func WithBugDetector(d BugDetector) Option {
	return func(r *Runner) {
		r.bugs = d
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock replaces the clock used for timestamps and timings.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator replaces the run id generator.
func WithIDGenerator(newID func() string) Option {
	return func(r *Runner) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// New creates a Runner.
func New(pages PageLauncher, drivers DriverLauncher, cfg Config, opts ...Option) *Runner {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 10 * time.Second
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = "screenshots"
	}

	r := &Runner{
		pages:   pages,
		drivers: drivers,
		cfg:     cfg,
		logger:  logging.Nop(),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every enabled goal of req and returns the merged result.
//
// Page-engine goals run first in one session, then driver-engine goals in a
// second session. A probe failure never stops the run. A session-level
// failure is recorded in Errors, marks the run Failed and does not prevent
// the other session from running. Cancellation of ctx is ignored; its values
// and trace span are kept.
func (r *Runner) Run(ctx context.Context, req types.RunRequest) *types.RunResult {
	// A run always completes once started; the caller going away does not
	// abort it.
	ctx = context.WithoutCancel(ctx)
	result := types.NewRunResult(r.newID(), r.now())

	ctx, span := otel.Tracer("qarunner.runner").Start(ctx, "runner.run",
		trace.WithAttributes(
			attribute.String("run.id", result.ID),
			attribute.String("run.project", req.ProjectName),
			attribute.String("run.target", req.TargetURL),
			attribute.Int("run.goals", len(req.Goals)),
		),
	)
	defer span.End()

	log := telemetry.WithTrace(ctx, r.logger.With(zap.String("run_id", result.ID), zap.String("project", req.ProjectName)))
	log.Infof("Starting run against %s with %d goals", req.TargetURL, len(req.Goals))

	env := probe.Env{
		TargetURL:         req.TargetURL,
		ProjectName:       req.ProjectName,
		ScreenshotDir:     r.cfg.ScreenshotDir,
		WaitTimeout:       r.cfg.WaitTimeout,
		NavigationTimeout: r.cfg.NavigationTimeout,
		Now:               r.now,
		AddScreenshot: func(path string) {
			result.Screenshots = append(result.Screenshots, path)
		},
	}
	launch := r.launchOptions(req.Browser)

	sessionFailed := false
	if goals := req.GoalsFor(types.EnginePage); len(goals) > 0 {
		if err := r.runPagePhase(ctx, goals, env, launch, result); err != nil {
			sessionFailed = true
			result.Errors = append(result.Errors, err.Error())
			telemetry.SessionErrorsTotal.WithLabelValues(string(types.EnginePage)).Inc()
			span.RecordError(err)
			log.Errorf("Page engine session failed: %v", err)
		}
	}
	if goals := req.GoalsFor(types.EngineDriver); len(goals) > 0 {
		if err := r.runDriverPhase(ctx, goals, env, launch, result); err != nil {
			sessionFailed = true
			result.Errors = append(result.Errors, err.Error())
			telemetry.SessionErrorsTotal.WithLabelValues(string(types.EngineDriver)).Inc()
			span.RecordError(err)
			log.Errorf("Driver engine session failed: %v", err)
		}
	}

	switch {
	case sessionFailed:
		result.Status = types.RunFailed
		span.SetStatus(codes.Error, "browser session failed")
	case result.FailedCount() > 0:
		result.Status = types.RunCompletedWithFailures
	default:
		result.Status = types.RunCompleted
	}

	elapsed := r.now().Sub(result.StartedAt.Time)
	telemetry.RunDuration.Observe(elapsed.Seconds())
	telemetry.RunsTotal.WithLabelValues(string(result.Status)).Inc()
	span.SetAttributes(
		attribute.String("run.status", string(result.Status)),
		attribute.Int("run.failed_probes", result.FailedCount()),
	)

	if r.bugs != nil {
		outcome := r.bugs.DetectBugs(ctx, req.ProjectName, req.TargetURL, result)
		analysis := outcome.Analysis
		result.AIAnalysis = &analysis
	}

	result.FinishedAt = types.NewTimestamp(r.now())
	log.Infof("Run finished with status %q (%d probes, %d failed)", result.Status, len(result.Tests), result.FailedCount())
	return result
}

func (r *Runner) launchOptions(opts types.BrowserOptions) browser.LaunchOptions {
	headless := r.cfg.Headless
	if r.cfg.AllowHeaded && opts.Headless != nil {
		headless = *opts.Headless
	}
	return browser.LaunchOptions{
		Headless: headless,
		Viewport: opts.Viewport(),
		Timeout:  r.cfg.NavigationTimeout,
	}
}

func (r *Runner) runPagePhase(ctx context.Context, goals []types.Goal, env probe.Env, opts browser.LaunchOptions, result *types.RunResult) (err error) {
	defer recoverSession("page engine", &err)

	if r.pages == nil {
		return fmt.Errorf("page engine: not configured")
	}
	session, err := r.pages.Launch(opts)
	if err != nil {
		return fmt.Errorf("page engine: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("page engine: close: %w", cerr)
		}
	}()

	for _, goal := range goals {
		result.Tests = append(result.Tests, r.observe(ctx, goal, env, func() types.ProbeResult {
			return probe.RunPage(goal, env, session)
		}))
	}
	return nil
}

func (r *Runner) runDriverPhase(ctx context.Context, goals []types.Goal, env probe.Env, opts browser.LaunchOptions, result *types.RunResult) (err error) {
	defer recoverSession("driver engine", &err)

	if r.drivers == nil {
		return fmt.Errorf("driver engine: not configured")
	}
	session, err := r.drivers.Launch(ctx, opts)
	if err != nil {
		return fmt.Errorf("driver engine: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("driver engine: close: %w", cerr)
		}
	}()

	for _, goal := range goals {
		result.Tests = append(result.Tests, r.observe(ctx, goal, env, func() types.ProbeResult {
			return probe.RunDriver(goal, env, session)
		}))
	}
	return nil
}

// observe wraps a single probe in a span and records its outcome.
func (r *Runner) observe(ctx context.Context, goal types.Goal, env probe.Env, run func() types.ProbeResult) types.ProbeResult {
	ctx, span := otel.Tracer("qarunner.runner").Start(ctx, "runner.probe",
		trace.WithAttributes(
			attribute.String("probe.goal", goal.String()),
			attribute.String("probe.engine", string(goal.Engine())),
		),
	)
	defer span.End()

	log := telemetry.WithTrace(ctx, r.logger)
	res := run()

	span.SetAttributes(attribute.String("probe.status", string(res.Status)))
	if !res.Passed() {
		span.SetStatus(codes.Error, res.Error)
		log.Warnf("Probe %q failed against %s: %s", res.Goal, env.TargetURL, res.Error)
	} else {
		log.Debugf("Probe %q passed", res.Goal)
	}
	telemetry.ProbeResultsTotal.WithLabelValues(goal.String(), string(res.Status)).Inc()
	return res
}

func recoverSession(engine string, err *error) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("%s: panic: %v", engine, rec)
	}
}
