package storage

import (
	"context"
	"log/slog"

	"github.com/sevigo/precedent/internal/core"
)

// Counter reports the size of a collection.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// HealthChecker checks the vector store by counting its collection and
// hands every successful count to observe.
type HealthChecker struct {
	counter    Counter
	backend    string
	collection string
	observe    func(documents int)
	logger     *slog.Logger
}

// NewHealthChecker creates a checker. observe may be nil.
func NewHealthChecker(counter Counter, backend, collection string, observe func(int), logger *slog.Logger) *HealthChecker {
	return &HealthChecker{
		counter:    counter,
		backend:    backend,
		collection: collection,
		observe:    observe,
		logger:     logger,
	}
}

// Check counts the collection. A failed count marks the store down.
func (h *HealthChecker) Check(ctx context.Context) core.StoreHealth {
	health := core.StoreHealth{Backend: h.backend, Collection: h.collection}

	n, err := h.counter.Count(ctx)
	if err != nil {
		h.logger.Warn("vector store health check failed", "backend", h.backend, "error", err)
		health.Status = core.StoreDown
		health.Error = err.Error()
		return health
	}

	health.Status = core.StoreUp
	health.Documents = n
	if h.observe != nil {
		h.observe(n)
	}
	return health
}

// Refresh updates the observed collection size, discarding the result.
func (h *HealthChecker) Refresh(ctx context.Context) {
	h.Check(ctx)
}
