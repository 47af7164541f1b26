// Package server exposes the QA workflow over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/entrhq/qarunner/pkg/config"
	"github.com/entrhq/qarunner/pkg/logging"
)

// Server owns the HTTP listener.
type Server struct {
	http   *http.Server
	logger *logging.Logger
}

// New creates a Server serving handler on cfg.Addr.
func New(cfg config.ServerConfig, handler http.Handler, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Infof("http listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight runs until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
