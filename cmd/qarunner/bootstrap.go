package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/entrhq/qarunner/pkg/artifact"
	"github.com/entrhq/qarunner/pkg/browser"
	"github.com/entrhq/qarunner/pkg/catalog"
	"github.com/entrhq/qarunner/pkg/config"
	"github.com/entrhq/qarunner/pkg/history"
	"github.com/entrhq/qarunner/pkg/llm/openai"
	"github.com/entrhq/qarunner/pkg/logging"
	"github.com/entrhq/qarunner/pkg/qa"
	"github.com/entrhq/qarunner/pkg/report"
	"github.com/entrhq/qarunner/pkg/runner"
	"github.com/entrhq/qarunner/pkg/security/targets"
	"github.com/entrhq/qarunner/pkg/server"
)

// app holds the wired service and what must be released on exit.
type app struct {
	handler http.Handler
	closers []func() error
	logger  *zap.Logger
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
}

func buildApp(ctx context.Context, cfg *config.Config, base *zap.Logger) (_ *app, err error) {
	a := &app{logger: base}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	pages := browser.NewPageEngine(
		browser.WithInstall(cfg.Browser.InstallPlaywright),
		browser.WithPageExecutable(cfg.Browser.ChromePath),
	)
	if err := pages.Initialize(); err != nil {
		// Launch retries on every run; each failure becomes a session error
		base.Warn("page engine unavailable at startup", zap.Error(err))
	}
	a.closers = append(a.closers, pages.Shutdown)

	drivers := browser.NewDriverEngine(
		browser.WithDriverExecutable(cfg.Browser.ChromePath),
		browser.WithNavigationTimeout(cfg.Browser.NavigationTimeout),
	)

	store, err := openHistory(ctx, cfg.History, base)
	if err != nil {
		return nil, err
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	provider, err := openai.NewProvider(cfg.AI.APIKey,
		openai.WithBaseURL(cfg.AI.BaseURL),
		openai.WithModel(cfg.AI.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("ai provider: %w", err)
	}
	generator := report.NewGenerator(provider,
		report.WithMaxPromptBytes(cfg.AI.MaxPromptBytes),
		report.WithTimeout(cfg.AI.RequestTimeout),
		report.WithLogger(logging.NewLogger(base, "report")),
	)

	runOpts := []runner.Option{runner.WithLogger(logging.NewLogger(base, "runner"))}
	if cfg.AI.BugDetection {
		runOpts = append(runOpts, runner.WithBugDetector(generator))
	}
	run := runner.New(pages, drivers, runner.Config{
		WaitTimeout:       cfg.Browser.WaitTimeout,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		ScreenshotDir:     cfg.Browser.ScreenshotDir,
		Headless:          cfg.Browser.Headless,
		AllowHeaded:       cfg.Browser.AllowHeaded,
	}, runOpts...)

	guard, err := targets.NewGuard(cfg.Targets.Allow, cfg.Targets.Deny)
	if err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}

	svcOpts := []qa.Option{
		qa.WithTargets(guard),
		qa.WithLogger(logging.NewLogger(base, "qa")),
	}
	if cfg.Artifacts.Enabled {
		svcOpts = append(svcOpts, qa.WithArtifacts(artifact.NewWriter(cfg.Artifacts.OutputDir)))
	}
	svc := qa.NewService(run, generator, store, svcOpts...)

	suites, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	httpLog := logging.NewLogger(base, "http")
	handler := server.NewHandler(svc,
		server.WithCatalog(suites),
		server.WithRunLimit(cfg.Server.RunRateLimit, cfg.Server.RunBurst),
		server.WithHandlerLogger(httpLog),
	)
	a.handler = server.Routes(handler, cfg.Server.AllowedOrigins, httpLog)
	return a, nil
}

func openHistory(ctx context.Context, cfg config.HistoryConfig, base *zap.Logger) (history.Store, error) {
	logger := logging.NewLogger(base, "history")
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := history.NewSQLiteStore(ctx, cfg.SQLitePath, cfg.Limit, logger)
		if err != nil {
			return nil, fmt.Errorf("history sqlite: %w", err)
		}
		return store, nil
	default:
		store, err := history.NewFileStore(cfg.Path, cfg.Limit, history.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("history file: %w", err)
		}
		return store, nil
	}
}
