package api

import (
	"math"
	"time"

	"github.com/okian/fgoc/internal/adapters/repository"
	"github.com/okian/fgoc/internal/domain/diagnostics"
	"github.com/okian/fgoc/internal/domain/focal"
	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/numeric"
	"github.com/okian/fgoc/internal/domain/scoring"
	"github.com/okian/fgoc/internal/domain/shortarc"
)

type vec3 [3]float64

func fromVec(v numeric.Vec) vec3 { return vec3{v.X, v.Y, v.Z} }

func fromVecs(vs []numeric.Vec) []vec3 {
	out := make([]vec3, len(vs))
	for i, v := range vs {
		out[i] = fromVec(v)
	}
	return out
}

// finiteOrNil maps non-finite values to JSON null.
func finiteOrNil(f float64) *float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

// paramOverrides are the optional scoring constants accepted on requests.
type paramOverrides struct {
	Alpha1        *float64 `json:"alpha1,omitempty"`
	Alpha2        *float64 `json:"alpha2,omitempty"`
	Tau           *float64 `json:"tau,omitempty"`
	FlagThreshold *float64 `json:"flag_threshold,omitempty"`
}

// apply returns nil when nothing is overridden, otherwise base with the
// given fields replaced.
func (o paramOverrides) apply(base model.ScoreParams) *model.ScoreParams {
	if o.Alpha1 == nil && o.Alpha2 == nil && o.Tau == nil && o.FlagThreshold == nil {
		return nil
	}
	p := base
	if o.Alpha1 != nil {
		p.Alpha1 = *o.Alpha1
	}
	if o.Alpha2 != nil {
		p.Alpha2 = *o.Alpha2
	}
	if o.Tau != nil {
		p.Tau = *o.Tau
	}
	if o.FlagThreshold != nil {
		p.FlagThreshold = *o.FlagThreshold
	}
	return &p
}

type stateRequest struct {
	R vec3 `json:"r"`
	V vec3 `json:"v"`
}

// seriesRequest mirrors series.schema.json.
type seriesRequest struct {
	ID     string         `json:"id"`
	Mu     *float64       `json:"mu,omitempty"`
	States []stateRequest `json:"states"`
	Epochs []float64      `json:"epochs,omitempty"`
	paramOverrides
}

func (req *seriesRequest) batch(defaults model.ScoreParams) model.Batch {
	b := model.Batch{
		ID:     req.ID,
		States: make([]model.State, len(req.States)),
		Epochs: req.Epochs,
		Params: req.apply(defaults),
		Source: "api",
	}
	if req.Mu != nil {
		b.Mu = *req.Mu
	}
	for i, s := range req.States {
		b.States[i] = model.NewState(s.R, s.V)
	}
	return b
}

// tleRequest mirrors tle.schema.json.
type tleRequest struct {
	ID          string  `json:"id"`
	Line1       string  `json:"line1"`
	Line2       string  `json:"line2"`
	Start       string  `json:"start"`
	StepSeconds float64 `json:"step_seconds"`
	Count       int     `json:"count"`
	paramOverrides
}

// shortArcRequest mirrors shortarc.schema.json.
type shortArcRequest struct {
	RA  []float64 `json:"ra"`
	Dec []float64 `json:"dec"`
	MJD []float64 `json:"mjd"`
}

type stateMetricsResponse struct {
	H             vec3     `json:"h"`
	A             vec3     `json:"a"`
	E             float64  `json:"e"`
	EHat          vec3     `json:"e_hat"`
	SemiMajorAxis *float64 `json:"semi_major_axis"`
	Center        vec3     `json:"center"`
	F1            vec3     `json:"f1"`
	F2            vec3     `json:"f2"`
	Degenerate    bool     `json:"degenerate"`
}

func newStateMetricsResponse(m *focal.Metrics) stateMetricsResponse {
	return stateMetricsResponse{
		H:             fromVec(m.H),
		A:             fromVec(m.A),
		E:             m.E,
		EHat:          fromVec(m.EHat),
		SemiMajorAxis: finiteOrNil(m.SemiMajorAxis),
		Center:        fromVec(m.Center),
		F1:            fromVec(m.F1),
		F2:            fromVec(m.F2),
		Degenerate:    m.Degenerate,
	}
}

type diagnosticsResponse struct {
	K               int                    `json:"k"`
	FDR             float64                `json:"fdr"`
	FSBI            float64                `json:"fsbi"`
	TermSep         float64                `json:"term_sep"`
	TermCM          float64                `json:"term_cm"`
	SeparationMean  float64                `json:"separation_mean"`
	CenterMean      vec3                   `json:"center_mean"`
	Separation      []float64              `json:"separation"`
	Dt              []float64              `json:"dt"`
	DriftF1         []float64              `json:"drift_f1"`
	DriftF2         []float64              `json:"drift_f2"`
	DeltaF1         []vec3                 `json:"delta_f1"`
	DeltaF2         []vec3                 `json:"delta_f2"`
	Epochs          []float64              `json:"epochs,omitempty"`
	DegenerateCount int                    `json:"degenerate_count"`
	States          []stateMetricsResponse `json:"states"`
}

func newDiagnosticsResponse(s *diagnostics.Series) diagnosticsResponse {
	states := make([]stateMetricsResponse, len(s.Metrics))
	for i := range s.Metrics {
		states[i] = newStateMetricsResponse(&s.Metrics[i])
	}
	return diagnosticsResponse{
		K:               len(s.Metrics),
		FDR:             s.FDR,
		FSBI:            s.FSBI,
		TermSep:         s.TermSep,
		TermCM:          s.TermCM,
		SeparationMean:  s.SeparationMean,
		CenterMean:      fromVec(s.CenterMean),
		Separation:      s.Separation,
		Dt:              s.Dt,
		DriftF1:         s.DriftF1,
		DriftF2:         s.DriftF2,
		DeltaF1:         fromVecs(s.DeltaF1),
		DeltaF2:         fromVecs(s.DeltaF2),
		Epochs:          s.Epochs,
		DegenerateCount: s.DegenerateCount,
		States:          states,
	}
}

type scoreResponse struct {
	ID          string              `json:"id"`
	S           float64             `json:"s"`
	P           float64             `json:"p"`
	Flag        bool                `json:"flag"`
	Mu          float64             `json:"mu"`
	Params      model.ScoreParams   `json:"params"`
	Diagnostics diagnosticsResponse `json:"diagnostics"`
}

func newScoreResponse(res *scoring.Result) scoreResponse {
	return scoreResponse{
		ID:          res.SeriesID,
		S:           res.S,
		P:           res.P,
		Flag:        res.Flag,
		Mu:          res.Mu,
		Params:      res.Params,
		Diagnostics: newDiagnosticsResponse(&res.Diagnostics),
	}
}

type recordResponse struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	Source          string            `json:"source,omitempty"`
	Rank            int               `json:"rank,omitempty"`
	K               int               `json:"k"`
	Mu              float64           `json:"mu,omitempty"`
	Params          model.ScoreParams `json:"params"`
	S               float64           `json:"s"`
	P               float64           `json:"p"`
	Flag            bool              `json:"flag"`
	FDR             float64           `json:"fdr"`
	FSBI            float64           `json:"fsbi"`
	TermSep         float64           `json:"term_sep"`
	TermCM          float64           `json:"term_cm"`
	DegenerateCount int               `json:"degenerate_count"`
	ErrorCode       string            `json:"error_code,omitempty"`
	Error           string            `json:"error,omitempty"`
	ScoredAt        time.Time         `json:"scored_at"`
}

func newRecordResponse(r *repository.Record) recordResponse {
	return recordResponse{
		ID:              r.ID,
		Status:          string(r.Status),
		Source:          r.Source,
		Rank:            r.Rank,
		K:               r.K,
		Mu:              r.Mu,
		Params:          r.Params,
		S:               r.S,
		P:               r.P,
		Flag:            r.Flag,
		FDR:             r.FDR,
		FSBI:            r.FSBI,
		TermSep:         r.TermSep,
		TermCM:          r.TermCM,
		DegenerateCount: r.DegenerateCount,
		ErrorCode:       r.ErrorCode,
		Error:           r.Error,
		ScoredAt:        r.ScoredAt,
	}
}

type shortArcResponse struct {
	Flag          bool    `json:"flag"`
	Score         float64 `json:"score"`
	Axis          vec3    `json:"axis"`
	CurvatureSign int     `json:"curvature_sign"`
	RMax          float64 `json:"r_max"`
	MeanCurvature float64 `json:"mean_curvature"`
}

func newShortArcResponse(r *shortarc.Result) shortArcResponse {
	return shortArcResponse{
		Flag:          r.Flag,
		Score:         r.Score,
		Axis:          fromVec(r.Axis),
		CurvatureSign: r.CurvatureSign,
		RMax:          r.RMax,
		MeanCurvature: r.MeanCurvature,
	}
}

type ackResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
