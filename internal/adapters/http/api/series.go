package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/fgoc/internal/domain/diagnostics"
	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/scoring"
)

// SeriesDependencies defines the synchronous series operations.
type SeriesDependencies interface {
	Params() model.ScoreParams
	Diagnose(ctx context.Context, b model.Batch) (diagnostics.Series, error)
	Score(ctx context.Context, b model.Batch) (scoring.Result, error)
}

// SeriesHandler handles synchronous diagnostics and scoring requests.
type SeriesHandler struct {
	deps SeriesDependencies
}

// NewSeriesHandler creates a new series handler.
func NewSeriesHandler(deps SeriesDependencies) *SeriesHandler {
	return &SeriesHandler{deps: deps}
}

// HandleDiagnostics handles POST /v1/diagnostics requests.
func (h *SeriesHandler) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_diagnostics"
	b, ok := h.decode(w, r, op)
	if !ok {
		return
	}
	series, err := h.deps.Diagnose(r.Context(), b)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newDiagnosticsResponse(&series))
}

// HandleScore handles POST /v1/score requests.
func (h *SeriesHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	b, ok := h.decode(w, r, op)
	if !ok {
		return
	}
	res, err := h.deps.Score(r.Context(), b)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newScoreResponse(&res))
}

func (h *SeriesHandler) decode(w http.ResponseWriter, r *http.Request, op string) (model.Batch, bool) {
	return decodeSeries(w, r, op, h.deps.Params())
}

// decodeSeries validates a series body. An explicit non-positive mu is
// rejected here since a zero mu otherwise selects the default.
func decodeSeries(w http.ResponseWriter, r *http.Request, op string, defaults model.ScoreParams) (model.Batch, bool) {
	var req seriesRequest
	if err := decodeJSON(w, r, seriesSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return model.Batch{}, false
	}
	if req.Mu != nil && !(*req.Mu > 0) {
		err := fmt.Errorf("mu %g: %w", *req.Mu, diagnostics.ErrInvalidMu)
		writeError(w, http.StatusBadRequest, diagnostics.Code(err), WrapKind(op, ErrBadRequest, err))
		return model.Batch{}, false
	}
	return req.batch(defaults), true
}
