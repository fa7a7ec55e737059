package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/fgoc/internal/adapters/repository"
)

const defaultAnomalyLimit = 10

// AnomalyDependencies defines the ranking read operations.
type AnomalyDependencies interface {
	TopN(ctx context.Context, n int) ([]repository.Record, error)
}

// AnomalyHandler handles anomaly ranking requests.
type AnomalyHandler struct {
	deps     AnomalyDependencies
	maxLimit int
}

// NewAnomalyHandler creates a new anomaly handler.
func NewAnomalyHandler(deps AnomalyDependencies, maxLimit int) *AnomalyHandler {
	return &AnomalyHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetAnomalies handles GET /v1/anomalies?limit=N requests.
func (h *AnomalyHandler) HandleGetAnomalies(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_anomalies"
	n := defaultAnomalyLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	records, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	out := make([]recordResponse, len(records))
	for i := range records {
		out[i] = newRecordResponse(&records[i])
	}
	writeJSON(w, http.StatusOK, out)
}
