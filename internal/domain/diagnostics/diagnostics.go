// Package diagnostics aggregates per-state focal metrics over an ordered
// series into the Focal Drift Rate (FDR) and the Focal Separation Bias Index
// (FSBI).
//
// All averages are simple arithmetic means. They must stay unweighted so the
// results reproduce the reference formulation exactly.
package diagnostics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/fgoc/internal/domain/focal"
	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/internal/domain/numeric"
)

// MinSeriesLength is the smallest series that has a finite difference.
const MinSeriesLength = 2

// minStep is the |Δt| below which a step is replaced by a unit step.
const minStep = 1e-15

// Series holds the aggregated diagnostics and every intermediate series used
// to compute them.
type Series struct {
	Metrics []focal.Metrics
	Epochs  []float64 // echo of the caller's epochs, nil when none were given

	F1     []model.Vec
	F2     []model.Vec
	Center []model.Vec

	DeltaF1 []model.Vec
	DeltaF2 []model.Vec
	Dt      []float64
	DriftF1 []float64 // |ΔF1|/Δt
	DriftF2 []float64 // |ΔF2|/Δt

	Separation     []float64 // |F1−F2| per state
	SeparationMean float64
	CenterMean     model.Vec
	TermSep        float64
	TermCM         float64

	FDR  float64
	FSBI float64

	// DegenerateCount is the number of states that hit the parabolic sentinel.
	DegenerateCount int
}

// Compute runs the temporal diagnostics over states. epochs may be nil, in
// which case successive states are one time unit apart.
func Compute(states []model.State, mu float64, epochs []float64) (Series, error) {
	k := len(states)
	if k < MinSeriesLength {
		return Series{}, fmt.Errorf("need at least %d states, got %d: %w", MinSeriesLength, k, ErrInsufficientSeries)
	}
	if epochs != nil && len(epochs) != k {
		return Series{}, fmt.Errorf("%d epochs for %d states: %w", len(epochs), k, ErrLengthMismatch)
	}
	if math.IsNaN(mu) || math.IsInf(mu, 0) || mu <= 0 {
		return Series{}, fmt.Errorf("mu=%v: %w", mu, ErrInvalidMu)
	}

	s := Series{
		Metrics: make([]focal.Metrics, k),
		F1:      make([]model.Vec, k),
		F2:      make([]model.Vec, k),
		Center:  make([]model.Vec, k),
	}
	if epochs != nil {
		s.Epochs = append([]float64(nil), epochs...)
	}

	for i, st := range states {
		m := focal.Reconstruct(st, mu)
		s.Metrics[i] = m
		s.F1[i], s.F2[i], s.Center[i] = m.F1, m.F2, m.Center
		if m.Degenerate {
			s.DegenerateCount++
		}
	}

	s.DeltaF1 = numeric.Diff(s.F1)
	s.DeltaF2 = numeric.Diff(s.F2)
	s.Dt = steps(epochs, k)

	s.DriftF1 = rates(s.DeltaF1, s.Dt)
	s.DriftF2 = rates(s.DeltaF2, s.Dt)
	s.FDR = 0.5 * (numeric.Mean(s.DriftF1) + numeric.Mean(s.DriftF2))

	s.Separation = make([]float64, k)
	mids := make([]model.Vec, k)
	for i := range s.F1 {
		s.Separation[i] = r3.Norm(r3.Sub(s.F1[i], s.F2[i]))
		mids[i] = r3.Scale(0.5, r3.Add(s.F1[i], s.F2[i]))
	}
	s.SeparationMean = numeric.Mean(s.Separation)

	dev := make([]float64, k)
	for i, sep := range s.Separation {
		dev[i] = math.Abs(sep - s.SeparationMean)
	}
	s.TermSep = numeric.Mean(dev)

	s.CenterMean = numeric.VecMean(s.Center)
	off := make([]float64, k)
	for i, mid := range mids {
		off[i] = r3.Norm(r3.Sub(mid, s.CenterMean))
	}
	s.TermCM = numeric.Mean(off)

	s.FSBI = s.TermSep + s.TermCM
	if err := CheckFinite([]string{"fdr", "fsbi"}, s.FDR, s.FSBI); err != nil {
		return Series{}, err
	}
	return s, nil
}

// steps returns the k-1 time steps, substituting 1 for near-zero gaps.
func steps(epochs []float64, k int) []float64 {
	dt := make([]float64, k-1)
	for i := range dt {
		if epochs == nil {
			dt[i] = 1
			continue
		}
		d := epochs[i+1] - epochs[i]
		if math.Abs(d) < minStep {
			d = 1
		}
		dt[i] = d
	}
	return dt
}

func rates(deltas []model.Vec, dt []float64) []float64 {
	out := numeric.Norms(deltas)
	for i := range out {
		out[i] /= dt[i]
	}
	return out
}
