package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sevigo/precedent/internal/core"
	"github.com/sevigo/precedent/internal/server/handler"
)

// Services are the collaborators the HTTP adapter forwards to.
type Services struct {
	Reviewer   handler.Reviewer
	Feedback   handler.FeedbackStore
	Stats      handler.StatsProvider
	Dispatcher core.JobDispatcher
	Health     handler.HealthChecker
	Metrics    http.Handler
}

// NewRouter creates and configures a new HTTP router with middleware and API routes.
func NewRouter(svc Services, requestTimeout time.Duration, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Configure middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	// Health check endpoint; liveness only when no checker is wired
	if svc.Health != nil {
		r.Get("/health", handler.NewHealthHandler(svc.Health, logger).Handle)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
	}
	if svc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", svc.Metrics)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		reviewHandler := handler.NewReviewHandler(svc.Reviewer, logger)
		feedbackHandler := handler.NewFeedbackHandler(svc.Feedback, svc.Stats, logger)
		ingestHandler := handler.NewIngestHandler(svc.Dispatcher, logger)

		r.Post("/review", reviewHandler.Handle)
		r.Post("/feedback", feedbackHandler.Record)
		r.Get("/feedback/stats", feedbackHandler.FeedbackStats)
		r.Get("/stats", feedbackHandler.SummaryStats)
		r.Post("/ingest", ingestHandler.Handle)
	})

	return r
}
