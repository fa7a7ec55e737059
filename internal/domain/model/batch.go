// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/fgoc/internal/domain/numeric"
)

// EarthMu is the geocentric gravitational parameter in km^3/s^2.
const EarthMu = 398600.4418

// Vec is the 3-vector used for positions, velocities and foci.
type Vec = numeric.Vec

// State is one two-body state estimate. R and V must use consistent
// distance/time units with the gravitational parameter they are paired with.
type State struct {
	R Vec // position
	V Vec // velocity
}

// NewState builds a State from plain component arrays.
func NewState(r, v [3]float64) State {
	return State{
		R: Vec{X: r[0], Y: r[1], Z: r[2]},
		V: Vec{X: v[0], Y: v[1], Z: v[2]},
	}
}

// ScoreParams are the caller-supplied scoring constants. No range is enforced.
type ScoreParams struct {
	Alpha1        float64 `json:"alpha1"`
	Alpha2        float64 `json:"alpha2"`
	Tau           float64 `json:"tau"`
	FlagThreshold float64 `json:"flag_threshold"`
}

// DefaultScoreParams returns α1=1, α2=1, τ=0, threshold=0.5.
func DefaultScoreParams() ScoreParams {
	return ScoreParams{Alpha1: 1, Alpha2: 1, Tau: 0, FlagThreshold: 0.5}
}

// Batch is a chronologically ordered series of successive orbit-fit states
// submitted for diagnostics.
type Batch struct {
	ID     string
	Mu     float64
	States []State
	// Epochs is optional; nil means unit spacing between states.
	Epochs []float64
	// Params overrides the scorer defaults when non-nil.
	Params      *ScoreParams
	Source      string
	SubmittedAt time.Time
}

// Len returns the number of states in the batch.
func (b *Batch) Len() int { return len(b.States) }
