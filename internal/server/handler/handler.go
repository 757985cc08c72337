// Package handler provides the HTTP handlers of the review service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sevigo/precedent/internal/core"
)

// maxBodyBytes bounds request bodies; a review request carries whole patches.
const maxBodyBytes = 10 << 20

// Reviewer runs the review pipeline.
type Reviewer interface {
	Review(ctx context.Context, req *core.ReviewRequest) (*core.ReviewResult, error)
}

// FeedbackStore records developer feedback and reports on it.
type FeedbackStore interface {
	RecordFeedback(ctx context.Context, entry core.FeedbackEntry) error
	Stats(ctx context.Context) (*core.FeedbackStats, error)
}

// StatsProvider summarizes the metrics log.
type StatsProvider interface {
	SummaryStats(ctx context.Context, window time.Duration) (*core.SummaryStats, error)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StatusFor maps a pipeline error onto an HTTP status code.
func StatusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindFatalProvider:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	if kind := core.KindOf(err); kind != core.KindUnknown {
		resp.Kind = kind.String()
	}
	writeJSON(w, logger, status, resp)
}

// decode reads a JSON body into v. Unknown fields and trailing data are
// rejected as validation errors.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.NewError(core.KindValidation, "decode request", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return core.NewError(core.KindValidation, "decode request", fmt.Errorf("unexpected data after JSON body"))
	}
	return nil
}
