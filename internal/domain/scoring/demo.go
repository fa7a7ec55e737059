package scoring

import "github.com/okian/fgoc/internal/domain/model"

// DemoNominalSeries returns three slowly drifting near-circular LEO states
// one minute apart.
func DemoNominalSeries() model.Batch {
	return model.Batch{
		ID: "demo-nominal",
		Mu: model.EarthMu,
		States: []model.State{
			model.NewState([3]float64{7000, 0, 0}, [3]float64{0, 7.5, 0}),
			model.NewState([3]float64{7002, 1, 0}, [3]float64{0, 7.5, 0}),
			model.NewState([3]float64{7004, 2, 0}, [3]float64{0, 7.5, 0}),
		},
		Epochs: []float64{0, 60, 120},
		Source: "demo",
	}
}

// DemoAnomalousSeries returns four states with an injected inconsistency
// that makes the reconstructed foci unstable.
func DemoAnomalousSeries() model.Batch {
	b := model.Batch{ID: "demo-anomalous", Mu: model.EarthMu, Source: "demo"}
	for k := 0; k < 4; k++ {
		fk := float64(k)
		b.States = append(b.States, model.NewState(
			[3]float64{7000 + 25*fk, 80 * fk, 10 * fk},
			[3]float64{0.2 * fk, 7.5 - 0.25*fk, 0.08 * fk},
		))
		b.Epochs = append(b.Epochs, 60*fk)
	}
	return b
}
