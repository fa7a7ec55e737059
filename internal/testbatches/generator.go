package testbatches

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/fgoc/internal/domain/model"
	"github.com/okian/fgoc/pkg/logger"
)

// Orbit generation ranges, in kilometres and seconds.
const (
	minRadius     = 6800.0
	radiusRange   = 1200.0
	maxIncl       = math.Pi / 2
	epochStep     = 60.0
	velocityKick  = 0.04
	positionKick  = 15.0
	seedStreamMix = 0x9e3779b97f4a7c15
)

// generateSamples creates the configured number of series with unique IDs.
// Every i-th sample draws from its own seeded stream so the output does not
// depend on worker scheduling.
func generateSamples(ctx context.Context, config *Config, stats *Stats) ([]Sample, error) {
	logger.Get().Info(ctx, "generating series",
		logger.Int("numSeries", config.NumSeries),
		logger.Float64("perturbedRatio", config.PerturbedRatio))

	if config.NumSeries <= 0 {
		return nil, fmt.Errorf("invalid series count: %d", config.NumSeries)
	}
	if config.StatesPerSeries < 2 {
		return nil, fmt.Errorf("invalid states per series: %d", config.StatesPerSeries)
	}

	samples := make([]Sample, config.NumSeries)

	ids := make([]string, config.NumSeries)
	for i := range ids {
		ids[i] = uuid.New().String()
	}

	type sampleResult struct {
		index  int
		sample Sample
		err    error
	}

	resultChan := make(chan sampleResult, config.NumSeries)

	workerCount := max(1, min(config.Workers, config.NumSeries))
	perWorker := config.NumSeries / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = config.NumSeries
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- sampleResult{index: i, err: ctx.Err()}
					return
				default:
					rng := rand.New(rand.NewPCG(config.Seed, uint64(i)^seedStreamMix))
					perturbed := rng.Float64() < config.PerturbedRatio
					resultChan <- sampleResult{index: i, sample: generateSample(rng, ids[i], config.StatesPerSeries, perturbed)}
				}
			}
		}(start, end)
	}

	for i := 0; i < config.NumSeries; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during series generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate series %d: %w", result.index, result.err)
			}
			samples[result.index] = result.sample
		}
	}

	stats.SeriesGenerated = len(samples)
	for i := range samples {
		if samples[i].Perturbed {
			stats.SeriesPerturbed++
		}
	}
	logger.Get().Info(ctx, "generated series",
		logger.Int("count", len(samples)),
		logger.Int("perturbed", stats.SeriesPerturbed))

	return samples, nil
}

// generateSample samples a circular Keplerian orbit at a fixed cadence.
// Perturbed samples get an independent velocity and position kick on every
// state, which breaks the conservation of the focal geometry between states.
func generateSample(rng *rand.Rand, id string, k int, perturbed bool) Sample {
	radius := minRadius + rng.Float64()*radiusRange
	incl := rng.Float64() * maxIncl
	raan := rng.Float64() * 2 * math.Pi
	phase := rng.Float64() * 2 * math.Pi
	speed := math.Sqrt(model.EarthMu / radius)
	motion := speed / radius

	series := Series{
		ID:     id,
		Mu:     model.EarthMu,
		States: make([]State, k),
		Epochs: make([]float64, k),
	}
	for j := 0; j < k; j++ {
		t := float64(j) * epochStep
		theta := phase + motion*t
		r := rotate([3]float64{radius * math.Cos(theta), radius * math.Sin(theta), 0}, incl, raan)
		v := rotate([3]float64{-speed * math.Sin(theta), speed * math.Cos(theta), 0}, incl, raan)
		if perturbed {
			scale := 1 + velocityKick*rng.NormFloat64()
			for c := range v {
				v[c] *= scale
				r[c] += positionKick * rng.NormFloat64()
			}
		}
		series.States[j] = State{R: r, V: v}
		series.Epochs[j] = t
	}
	return Sample{Series: series, Perturbed: perturbed}
}

// rotate maps an in-plane vector to the inertial frame.
func rotate(p [3]float64, incl, raan float64) [3]float64 {
	ci, si := math.Cos(incl), math.Sin(incl)
	co, so := math.Cos(raan), math.Sin(raan)
	x, y := p[0], p[1]*ci
	z := p[1] * si
	return [3]float64{x*co - y*so, x*so + y*co, z}
}

// batch converts a sample into the domain batch the service scores.
func (s *Sample) batch() model.Batch {
	b := model.Batch{
		ID:     s.Series.ID,
		Mu:     s.Series.Mu,
		States: make([]model.State, len(s.Series.States)),
		Epochs: s.Series.Epochs,
	}
	for i, st := range s.Series.States {
		b.States[i] = model.NewState(st.R, st.V)
	}
	return b
}
