package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/entrhq/qarunner/pkg/catalog"
	"github.com/entrhq/qarunner/pkg/history"
	"github.com/entrhq/qarunner/pkg/logging"
	"github.com/entrhq/qarunner/pkg/qa"
	"github.com/entrhq/qarunner/pkg/telemetry"
	"github.com/entrhq/qarunner/pkg/types"
)

const healthMessage = "QA Tester Backend is running"

// maxBodyBytes bounds the POST /api/qa_project body.
const maxBodyBytes = 1 << 20

// Projects is the workflow behind the QA endpoints.
type Projects interface {
	RunProject(ctx context.Context, req qa.ProjectRequest) (*qa.ProjectResponse, error)
	History(ctx context.Context) ([]*types.HistoryEntry, error)
	Latest(ctx context.Context, projectName string) (*types.HistoryEntry, error)
}

// Handler serves the HTTP API.
type Handler struct {
	projects Projects
	catalog  *catalog.Catalog
	limiter  *rate.Limiter
	logger   *logging.Logger
	now      func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCatalog exposes the reference suites under /api/test_suites.
func WithCatalog(c *catalog.Catalog) HandlerOption {
	return func(h *Handler) { h.catalog = c }
}

// WithRunLimit caps accepted runs at perSecond with the given burst.
// A non-positive rate disables the limit.
func WithRunLimit(perSecond float64, burst int) HandlerOption {
	return func(h *Handler) {
		if perSecond <= 0 {
			h.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(logger *logging.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHandlerClock replaces the clock used by the health endpoint.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler creates a Handler.
func NewHandler(projects Projects, opts ...HandlerOption) *Handler {
	h := &Handler{
		projects: projects,
		logger:   logging.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// POST /api/qa_project
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		telemetry.RunsRejectedTotal.WithLabelValues("rate_limited").Inc()
		writeError(w, http.StatusTooManyRequests, "Run rate limit exceeded, retry later")
		return
	}

	var req qa.ProjectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		telemetry.RunsRejectedTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	resp, err := h.projects.RunProject(r.Context(), req)
	if err != nil {
		if qa.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Errorf("Error in create_qa_project: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /api/qa_history
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.projects.History(r.Context())
	if err != nil {
		h.logger.Errorf("Error in get_qa_history: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/qa_history/{project_name}
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("project_name")
	entry, err := h.projects.Latest(r.Context(), name)
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, "No history for project "+name)
	case err != nil:
		h.logger.Errorf("Error reading history for %q: %v", name, err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, entry)
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Message:   healthMessage,
		Timestamp: h.now().Format(time.RFC3339Nano),
	})
}

type suiteResponse struct {
	Key string `json:"key"`
	catalog.Suite
}

// GET /api/test_suites
func (h *Handler) ListSuites(w http.ResponseWriter, _ *http.Request) {
	if h.catalog == nil {
		writeJSON(w, http.StatusOK, []suiteResponse{})
		return
	}
	out := make([]suiteResponse, 0, len(h.catalog.Keys()))
	for _, key := range h.catalog.Keys() {
		s, _ := h.catalog.Suite(key)
		out = append(out, suiteResponse{Key: key, Suite: s})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/test_suites/{key}
func (h *Handler) GetSuite(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if h.catalog != nil {
		if s, ok := h.catalog.Suite(key); ok {
			writeJSON(w, http.StatusOK, suiteResponse{Key: key, Suite: s})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Unknown test suite "+key)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
