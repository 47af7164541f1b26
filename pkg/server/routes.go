package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entrhq/qarunner/pkg/logging"
)

// Routes registers the API on a new mux and wraps it in the middleware chain.
func Routes(h *Handler, origins []string, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/qa_project", h.CreateProject)
	mux.HandleFunc("GET /api/qa_history", h.ListHistory)
	mux.HandleFunc("GET /api/qa_history/{project_name}", h.GetHistory)
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/test_suites", h.ListSuites)
	mux.HandleFunc("GET /api/test_suites/{key}", h.GetSuite)

	mux.Handle("GET /metrics", promhttp.Handler())

	return Chain(mux,
		Recovery(logger),
		Logging(logger),
		CORS(origins),
	)
}
