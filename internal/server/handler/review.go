package handler

import (
	"log/slog"
	"net/http"

	"github.com/sevigo/precedent/internal/core"
)

// ReviewHandler serves review requests synchronously.
type ReviewHandler struct {
	reviewer Reviewer
	logger   *slog.Logger
}

func NewReviewHandler(reviewer Reviewer, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{reviewer: reviewer, logger: logger}
}

// Handle accepts a ReviewRequest and responds with the ReviewResult.
func (h *ReviewHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req core.ReviewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.reviewer.Review(r.Context(), &req)
	if err != nil {
		status := StatusFor(err)
		h.logger.Warn("review request failed",
			"repo", req.Repository,
			"pr", req.PRNumber,
			"status", status,
			"error", err,
		)
		writeError(w, h.logger, status, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}
