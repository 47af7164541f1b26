package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qarunner_runs_total",
		Help: "Completed QA runs by overall status.",
	}, []string{"status"})
	ProbeResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qarunner_probe_results_total",
		Help: "Probe results by goal and status.",
	}, []string{"goal", "status"})
	SessionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qarunner_session_errors_total",
		Help: "Browser session launch or teardown failures by engine.",
	}, []string{"engine"})
	AIOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qarunner_ai_outcomes_total",
		Help: "AI calls by purpose (report, bugs) and outcome kind (parsed, degraded, unavailable).",
	}, []string{"purpose", "kind"})
	HistoryWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qarunner_history_write_failures_total",
		Help: "History entries that could not be persisted.",
	})
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "qarunner_run_duration_seconds",
		Help:    "Wall time of the browser phase of a run.",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})
	RunsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qarunner_runs_rejected_total",
		Help: "Run requests rejected before execution by reason (invalid, rate_limited).",
	}, []string{"reason"})
)
