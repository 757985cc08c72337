// Package server implements the HTTP server for the application.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sevigo/precedent/internal/config"
)

// Server wraps an HTTP server with graceful shutdown capabilities.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// RequestTimeout is the longest a single review may take: one embedding
// call, a retried store query and two generation passes that each use every
// retry attempt.
func RequestTimeout(cfg *config.Config) time.Duration {
	attempts := time.Duration(max(cfg.Retry.MaxAttempts, 1))
	return cfg.Timeouts.Embedding*attempts +
		2*cfg.Timeouts.VectorStore +
		2*attempts*(cfg.Timeouts.Generation+cfg.Retry.MaxInterval)
}

// NewServer creates a new HTTP server serving svc.
func NewServer(cfg *config.Config, svc Services, logger *slog.Logger) *Server {
	timeout := RequestTimeout(cfg)
	router := NewRouter(svc, timeout, logger)

	return &Server{
		server: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      timeout + 10*time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server and blocks until shutdown or error.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server with a 30-second timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
