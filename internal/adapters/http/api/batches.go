package api

import (
	"context"
	"net/http"

	"github.com/okian/fgoc/internal/adapters/repository"
	service "github.com/okian/fgoc/internal/app"
	"github.com/okian/fgoc/internal/domain/model"
)

// BatchDependencies defines the asynchronous submission operations.
type BatchDependencies interface {
	Params() model.ScoreParams
	Submit(ctx context.Context, b model.Batch) (string, service.SubmitStatus, error)
	Result(ctx context.Context, id string) (repository.Record, error)
}

// BatchHandler handles batch submission and lookup.
type BatchHandler struct {
	deps BatchDependencies
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(deps BatchDependencies) *BatchHandler {
	return &BatchHandler{deps: deps}
}

// HandleSubmit handles POST /v1/batches requests.
func (h *BatchHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_batch"
	b, ok := decodeSeries(w, r, op, h.deps.Params())
	if !ok {
		return
	}

	id, status, err := h.deps.Submit(r.Context(), b)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	if status == service.SubmitDuplicate {
		writeJSON(w, http.StatusOK, ackResponse{ID: id, Status: string(status), Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{ID: id, Status: string(status)})
}

// HandleGet handles GET /v1/batches/{id} requests.
func (h *BatchHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_batch"
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	rec, err := h.deps.Result(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecordResponse(&rec))
}
