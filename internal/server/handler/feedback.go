package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sevigo/precedent/internal/core"
)

// FeedbackHandler records feedback and serves the metrics summaries.
type FeedbackHandler struct {
	feedback FeedbackStore
	stats    StatsProvider
	logger   *slog.Logger
}

func NewFeedbackHandler(feedback FeedbackStore, stats StatsProvider, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback, stats: stats, logger: logger}
}

func (h *FeedbackHandler) Record(w http.ResponseWriter, r *http.Request) {
	var entry core.FeedbackEntry
	if err := decode(r, &entry); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := h.feedback.RecordFeedback(r.Context(), entry); err != nil {
		status := http.StatusInternalServerError
		if core.KindOf(err) == core.KindValidation {
			status = http.StatusBadRequest
		}
		writeError(w, h.logger, status, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (h *FeedbackHandler) FeedbackStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.feedback.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute feedback stats", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}

// SummaryStats serves the metrics summary for ?window=<duration>, 24h by
// default. A window of 0 is valid and yields the empty summary.
func (h *FeedbackHandler) SummaryStats(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, core.NewError(core.KindValidation, "parse window", err))
			return
		}
		window = d
	}

	stats, err := h.stats.SummaryStats(r.Context(), window)
	if err != nil {
		h.logger.Error("failed to compute summary stats", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}
