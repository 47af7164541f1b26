// Package main runs the QA runner HTTP service: it drives browser probes
// against a target site, asks an AI model for a report and keeps a history
// of recent runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/entrhq/qarunner/pkg/config"
	"github.com/entrhq/qarunner/pkg/logging"
	"github.com/entrhq/qarunner/pkg/server"
	"github.com/entrhq/qarunner/pkg/telemetry"
)

const (
	version = "0.1.0"

	// shutdownTimeout bounds how long in-flight runs may finish after a signal
	shutdownTimeout = 2 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("qarunner v%s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base, err := logging.NewBase(logging.Config{
		Level:    cfg.Log.Level,
		Pretty:   cfg.Log.Pretty,
		App:      cfg.App.Name,
		Env:      cfg.App.Env,
		Version:  cfg.App.Version,
		FilePath: cfg.Log.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = base.Sync() }()
	base.Info("starting qarunner", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	tracing, err := telemetry.SetupTracing(rootCtx, telemetry.TracingConfig{
		Enable:      cfg.Telemetry.Enable,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		base.Fatal("otel init", zap.Error(err))
	}

	app, err := buildApp(rootCtx, cfg, base)
	if err != nil {
		base.Fatal("bootstrap", zap.Error(err))
	}
	defer app.close()

	srv := server.New(cfg.Server, app.handler, logging.NewLogger(base, "server"))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-rootCtx.Done():
		base.Info("shutdown signal", zap.String("reason", "context canceled"))
	case err := <-errCh:
		if err != nil {
			base.Error("http serve", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		base.Warn("http shutdown", zap.Error(err))
	}
	if err := tracing.Shutdown(shCtx); err != nil {
		base.Warn("otel shutdown", zap.Error(err))
	}
	base.Info("bye")
}
