package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sevigo/precedent/internal/core"
)

// HealthChecker reports on the vector store.
type HealthChecker interface {
	Check(ctx context.Context) core.StoreHealth
}

type healthResponse struct {
	Status      string           `json:"status"`
	VectorStore core.StoreHealth `json:"vector_store"`
}

// HealthHandler serves the detailed health check.
type HealthHandler struct {
	checker HealthChecker
	logger  *slog.Logger
}

func NewHealthHandler(checker HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checker: checker, logger: logger}
}

// Handle answers 200 while the vector store responds and 503 otherwise.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	store := h.checker.Check(r.Context())
	if !store.Healthy() {
		writeJSON(w, h.logger, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", VectorStore: store})
		return
	}
	writeJSON(w, h.logger, http.StatusOK, healthResponse{Status: "ok", VectorStore: store})
}
