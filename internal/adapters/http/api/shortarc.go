package api

import (
	"context"
	"net/http"

	"github.com/okian/fgoc/internal/domain/shortarc"
)

// ShortArcDependencies defines the short-arc classification operation.
type ShortArcDependencies interface {
	ClassifyShortArc(ctx context.Context, obs []shortarc.Observation) (shortarc.Result, error)
}

// ShortArcHandler handles short-arc classification requests.
type ShortArcHandler struct {
	deps ShortArcDependencies
}

// NewShortArcHandler creates a new short-arc handler.
func NewShortArcHandler(deps ShortArcDependencies) *ShortArcHandler {
	return &ShortArcHandler{deps: deps}
}

// HandleClassify handles POST /v1/shortarc requests.
func (h *ShortArcHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_shortarc"
	var req shortArcRequest
	if err := decodeJSON(w, r, shortArcSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	obs, err := shortarc.FromLists(req.RA, req.Dec, req.MJD)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	res, err := h.deps.ClassifyShortArc(r.Context(), obs)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newShortArcResponse(&res))
}
