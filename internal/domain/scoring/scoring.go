// Package scoring combines focal diagnostics into an anomaly score, a
// logistic probability and a decision flag.
package scoring

import (
	"context"
	"fmt"

	"github.com/okian/fgoc/internal/domain/diagnostics"
	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/numeric"
)

// Params are the scoring constants α1, α2, τ and the flag threshold on P.
type Params = model.ScoreParams

// DefaultParams returns α1=1, α2=1, τ=0 and a 0.5 threshold.
func DefaultParams() Params { return model.DefaultScoreParams() }

// Outcome is the scalar part of a score.
type Outcome struct {
	S    float64
	P    float64
	Flag bool
}

// Combine computes S = α1·FDR + α2·FSBI, P = 1/(1+exp(−(S−τ))) and
// Flag = P ≥ threshold. P may round to exactly 0 or 1 for large |S−τ|.
func Combine(fdr, fsbi float64, p Params) Outcome {
	s := p.Alpha1*fdr + p.Alpha2*fsbi
	prob := numeric.Logistic(s - p.Tau)
	return Outcome{S: s, P: prob, Flag: prob >= p.FlagThreshold}
}

// Result is a complete, auditable scoring record.
type Result struct {
	SeriesID    string
	Mu          float64
	Outcome
	Diagnostics diagnostics.Series
	Params      Params
}

// Check returns diagnostics.ErrNonFinite when S, P, FDR or FSBI is Inf or
// NaN. Such a result must not be stored or ranked.
func (r *Result) Check() error {
	return diagnostics.CheckFinite([]string{"s", "p", "fdr", "fsbi"},
		r.S, r.P, r.Diagnostics.FDR, r.Diagnostics.FSBI)
}

// Evaluate runs the full pipeline on one series: focal reconstruction,
// temporal diagnostics and scoring.
func Evaluate(states []model.State, mu float64, epochs []float64, p Params) (Result, error) {
	d, err := diagnostics.Compute(states, mu, epochs)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Mu:          mu,
		Outcome:     Combine(d.FDR, d.FSBI, p),
		Diagnostics: d,
		Params:      p,
	}
	if err := res.Check(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Input is a series submitted for scoring. Zero Mu and nil Params fall back
// to the scorer's defaults.
type Input struct {
	SeriesID string
	States   []model.State
	Epochs   []float64
	Mu       float64
	Params   *Params
}

// InputFromBatch adapts a batch to scorer input.
func InputFromBatch(b *model.Batch) Input {
	return Input{
		SeriesID: b.ID,
		States:   b.States,
		Epochs:   b.Epochs,
		Mu:       b.Mu,
		Params:   b.Params,
	}
}

// Scorer computes a score from an input.
type Scorer interface {
	// Score computes a score, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// FocalScorer implements Scorer with the focal-geometry pipeline.
type FocalScorer struct {
	params Params
	mu     float64
}

// NewFocalScorer creates a scorer with configuration options.
func NewFocalScorer(opts ...Option) *FocalScorer {
	s := &FocalScorer{
		params: DefaultParams(),
		mu:     model.EarthMu,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Params returns the scorer's default parameters.
func (s *FocalScorer) Params() Params { return s.params }

// Mu returns the scorer's default gravitational parameter.
func (s *FocalScorer) Mu() float64 { return s.mu }

// Score evaluates in. The computation itself is bounded and never blocks, so
// ctx is only checked before starting.
func (s *FocalScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}

	mu := in.Mu
	if mu == 0 {
		mu = s.mu
	}
	p := s.params
	if in.Params != nil {
		p = *in.Params
	}

	res, err := Evaluate(in.States, mu, in.Epochs, p)
	if err != nil {
		return Result{}, fmt.Errorf("score series %q: %w", in.SeriesID, err)
	}
	res.SeriesID = in.SeriesID
	return res, nil
}
