// Package numeric holds the small vector and statistics helpers shared by the
// focal-geometry pipeline. Every helper is epsilon-guarded so degenerate inputs
// resolve to well-defined values instead of NaN or Inf.
package numeric

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Eps is the tolerance used for norm guards and near-zero tests.
const Eps = 1e-15

// Vec is the 3-vector type used across the domain.
type Vec = r3.Vec

// SafeNorm returns ‖v‖ + Eps, so callers can divide by it unconditionally.
func SafeNorm(v Vec) float64 {
	return r3.Norm(v) + Eps
}

// Unit returns v/‖v‖, or the zero vector when ‖v‖ < Eps.
func Unit(v Vec) Vec {
	n := r3.Norm(v)
	if n < Eps {
		return Vec{}
	}
	return r3.Scale(1/n, v)
}

// Mean is the simple arithmetic mean. An empty slice yields 0.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// VecMean is the component-wise simple mean of vs. An empty slice yields the
// zero vector.
func VecMean(vs []Vec) Vec {
	if len(vs) == 0 {
		return Vec{}
	}
	xs := make([]float64, len(vs))
	ys := make([]float64, len(vs))
	zs := make([]float64, len(vs))
	for i, v := range vs {
		xs[i], ys[i], zs[i] = v.X, v.Y, v.Z
	}
	return Vec{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Z: stat.Mean(zs, nil)}
}

// Norms maps r3.Norm over vs.
func Norms(vs []Vec) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = r3.Norm(v)
	}
	return out
}

// Diff returns first differences vs[i+1]-vs[i].
func Diff(vs []Vec) []Vec {
	if len(vs) < 2 {
		return nil
	}
	out := make([]Vec, len(vs)-1)
	for i := range out {
		out[i] = r3.Sub(vs[i+1], vs[i])
	}
	return out
}

// Logistic is the standard sigmoid 1/(1+exp(-x)).
func Logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// IsFinite reports whether every component of v is finite.
func IsFinite(v Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
