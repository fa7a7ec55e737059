package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/fgoc/internal/adapters/ephemeris"
	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/scoring"
)

// TLEDependencies defines the TLE scoring operation.
type TLEDependencies interface {
	Params() model.ScoreParams
	ScoreTLE(ctx context.Context, req ephemeris.Request, params *model.ScoreParams) (scoring.Result, error)
}

// TLEHandler handles TLE scoring requests.
type TLEHandler struct {
	deps TLEDependencies
}

// NewTLEHandler creates a new TLE handler.
func NewTLEHandler(deps TLEDependencies) *TLEHandler {
	return &TLEHandler{deps: deps}
}

// HandleScoreTLE handles POST /v1/tle/score requests.
func (h *TLEHandler) HandleScoreTLE(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_tle_score"
	var req tleRequest
	if err := decodeJSON(w, r, tleSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.ScoreTLE(r.Context(), ephemeris.Request{
		ID:    req.ID,
		Line1: req.Line1,
		Line2: req.Line2,
		Start: start,
		Step:  time.Duration(req.StepSeconds * float64(time.Second)),
		Count: req.Count,
	}, req.apply(h.deps.Params()))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newScoreResponse(&res))
}
