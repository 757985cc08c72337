package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sevigo/precedent/internal/core"
	"github.com/sevigo/precedent/internal/jobs"
)

// IngestHandler queues record batches for background ingestion.
type IngestHandler struct {
	dispatcher core.JobDispatcher
	logger     *slog.Logger
}

func NewIngestHandler(dispatcher core.JobDispatcher, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{dispatcher: dispatcher, logger: logger}
}

type ingestResponse struct {
	BatchID string `json:"batch_id"`
	Records int    `json:"records"`
}

func (h *IngestHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var batch core.IngestBatch
	if err := decode(r, &batch); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if len(batch.Records) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, core.NewError(core.KindValidation, "ingest", errors.New("batch has no records")))
		return
	}
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}

	if err := h.dispatcher.Dispatch(r.Context(), &batch); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		h.logger.Error("failed to dispatch ingest batch", "error", err, "batch", batch.ID)
		writeError(w, h.logger, status, err)
		return
	}

	writeJSON(w, h.logger, http.StatusAccepted, ingestResponse{BatchID: batch.ID, Records: len(batch.Records)})
}
