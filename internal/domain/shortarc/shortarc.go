// Package shortarc classifies short angle-only arcs by how far the
// detections depart from a great circle and how sharply they bend.
package shortarc

import (
	"fmt"
	"math"

	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/fgoc/internal/domain/numeric"
)

// Observation is one astrometric detection. RA and Dec are in degrees.
type Observation struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
	MJD float64 `json:"mjd"`
}

// Result is the classification of one arc.
type Result struct {
	Flag          bool
	Score         float64
	Axis          numeric.Vec // best-fit great-circle pole, zero if undefined
	CurvatureSign int
	RMax          float64
	MeanCurvature float64
}

// FromLists zips parallel RA, Dec and MJD lists into observations.
func FromLists(ra, dec, mjd []float64) ([]Observation, error) {
	if len(ra) != len(dec) || len(ra) != len(mjd) {
		return nil, fmt.Errorf("%d ra, %d dec, %d mjd: %w", len(ra), len(dec), len(mjd), ErrLengthMismatch)
	}
	obs := make([]Observation, len(ra))
	for i := range ra {
		obs[i] = Observation{RA: ra[i], Dec: dec[i], MJD: mjd[i]}
	}
	return obs, nil
}

// UnitVector converts equatorial angles to a direction on the unit sphere.
func UnitVector(ra, dec unit.Angle) numeric.Vec {
	sa, ca := math.Sincos(ra.Rad())
	sd, cd := math.Sincos(dec.Rad())
	return numeric.Vec{X: cd * ca, Y: cd * sa, Z: sd}
}

// Classify scores an arc. Detections are used in the given order; MJD is
// carried but does not enter the score.
func Classify(obs []Observation, opts ...Option) (Result, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	n := len(obs)
	if n < 2 {
		return Result{}, fmt.Errorf("got %d: %w", n, ErrTooFewDetections)
	}

	x := make([]numeric.Vec, n)
	for i, o := range obs {
		x[i] = UnitVector(unit.AngleFromDeg(o.RA), unit.AngleFromDeg(o.Dec))
	}
	d := numeric.Diff(x)

	var pole numeric.Vec
	for i := 0; i < n-1; i++ {
		pole = r3.Add(pole, r3.Cross(x[i], x[i+1]))
	}
	var axis numeric.Vec
	if nn := r3.Norm(pole); nn != 0 {
		axis = r3.Scale(1/nn, pole)
	}

	var rMax float64
	for _, xi := range x {
		rMax = math.Max(rMax, math.Abs(r3.Dot(xi, axis)))
	}

	signs := []int{1}
	curv := []float64{0}
	if n >= 3 {
		signs = signs[:0]
		curv = curv[:0]
		for i := 1; i < n-1; i++ {
			if r3.Dot(r3.Cross(d[i-1], d[i]), x[i]) > 0 {
				signs = append(signs, 1)
			} else {
				signs = append(signs, -1)
			}
			second := r3.Add(r3.Sub(x[i+1], r3.Scale(2, x[i])), x[i-1])
			curv = append(curv, r3.Norm(second))
		}
	}

	sum := 0
	for _, s := range signs {
		sum += s
	}
	sign := 1
	if sum < 0 {
		sign = -1
	}

	k := numeric.Mean(curv)
	score := 1 - math.Exp(-cfg.alpha*rMax-cfg.beta*k)

	return Result{
		Flag:          score > cfg.threshold,
		Score:         score,
		Axis:          axis,
		CurvatureSign: sign,
		RMax:          rMax,
		MeanCurvature: k,
	}, nil
}
