// Package app holds the assembled components of the review service and
// controls their lifecycle.
package app

import (
	"context"
	"log/slog"

	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/core"
	"github.com/sevigo/precedent/internal/feedback"
	"github.com/sevigo/precedent/internal/metrics"
	"github.com/sevigo/precedent/internal/rag"
	"github.com/sevigo/precedent/internal/server"
	"github.com/sevigo/precedent/internal/storage"
)

// App holds the main application components.
type App struct {
	Cfg        *config.Config
	Logger     *slog.Logger
	Service    rag.Service
	Feedback   *feedback.Collector
	Metrics    *metrics.Aggregator
	Dispatcher core.JobDispatcher
	Health     *storage.HealthChecker
	Server     *server.Server
}

// NewApp bundles already constructed components.
func NewApp(
	cfg *config.Config,
	logger *slog.Logger,
	svc rag.Service,
	fb *feedback.Collector,
	agg *metrics.Aggregator,
	dispatcher core.JobDispatcher,
	health *storage.HealthChecker,
	srv *server.Server,
) *App {
	return &App{
		Cfg:        cfg,
		Logger:     logger,
		Service:    svc,
		Feedback:   fb,
		Metrics:    agg,
		Dispatcher: dispatcher,
		Health:     health,
		Server:     srv,
	}
}

// Start runs the HTTP server and blocks until it stops.
func (a *App) Start() error {
	a.Logger.Info("starting precedent",
		"server_port", a.Cfg.Server.Port,
		"llm_provider", a.Cfg.LLM.Provider,
		"llm_model", a.Cfg.LLM.Model,
		"embedding_provider", a.Cfg.Embedding.Provider,
		"vector_store", a.Cfg.VectorStore.Backend,
		"max_concurrent_reviews", a.Cfg.Pipeline.MaxConcurrentReviews,
		"max_workers", a.Cfg.Pipeline.MaxWorkers,
	)

	if a.Health != nil {
		store := a.Health.Check(context.Background())
		a.Logger.Info("vector store status", "status", store.Status, "documents", store.Documents)
	}

	if err := a.Server.Start(); err != nil {
		a.Logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the HTTP server first so no new work arrives, then lets
// queued ingestion batches finish.
func (a *App) Stop(ctx context.Context) error {
	a.Logger.Info("shutting down precedent services")

	serverErr := a.Server.Stop(ctx)
	if serverErr != nil {
		a.Logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	a.Dispatcher.Stop()

	if serverErr != nil {
		return serverErr
	}
	a.Logger.Info("precedent stopped successfully")
	return nil
}
