package testbatches

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/okian/fgoc/internal/domain/scoring"
)

const (
	statusScored       = "scored"
	diagnosticRelTol   = 1e-9
	displayedAnomalies = 10
)

// verifyResults checks the scored records against the ground truth of the
// generated samples and the anomaly ranking.
func verifyResults(ctx context.Context, config *Config, samples []Sample, records, anomalies []Record, stats *Stats) error {
	log.Println("verifying results")

	var (
		scored                   int
		sumPerturbed, sumNominal float64
		nPerturbed, nNominal     int
		mismatches               int
	)
	for i := range records {
		rec := &records[i]
		if rec.ID == "" || rec.Status != statusScored {
			continue
		}
		scored++

		if samples[i].Perturbed {
			nPerturbed++
			sumPerturbed += rec.S
			if rec.Flag {
				stats.FlaggedPerturbed++
			}
		} else {
			nNominal++
			sumNominal += rec.S
			if rec.Flag {
				stats.FlaggedNominal++
			}
		}

		if err := verifyDiagnostics(&samples[i], rec); err != nil {
			mismatches++
			if config.Verbose {
				log.Printf("diagnostics mismatch: %v", err)
			}
		}
	}

	if scored == 0 {
		return fmt.Errorf("no scored records to verify")
	}
	if mismatches > 0 {
		return fmt.Errorf("%d of %d records disagree with local diagnostics", mismatches, scored)
	}

	if nPerturbed > 0 {
		stats.MeanScorePerturbed = sumPerturbed / float64(nPerturbed)
	}
	if nNominal > 0 {
		stats.MeanScoreNominal = sumNominal / float64(nNominal)
	}
	if nPerturbed > 0 && nNominal > 0 && stats.MeanScorePerturbed <= stats.MeanScoreNominal {
		return fmt.Errorf("perturbed series did not score higher: mean %.6g vs nominal %.6g",
			stats.MeanScorePerturbed, stats.MeanScoreNominal)
	}

	if err := verifyAnomalyOrder(anomalies); err != nil {
		log.Printf("anomaly ranking warning: %v", err)
	} else if len(anomalies) > 0 {
		log.Println("anomaly ranking verified")
	}

	displayTopAnomalies(samples, records, anomalies, config.Verbose)

	log.Println("result verification completed")
	return nil
}

// verifyDiagnostics recomputes FDR and FSBI for a sample and compares them
// with the values the service stored.
func verifyDiagnostics(sample *Sample, rec *Record) error {
	b := sample.batch()
	local, err := scoring.Evaluate(b.States, b.Mu, b.Epochs, scoring.DefaultParams())
	if err != nil {
		return fmt.Errorf("%s: local evaluation: %w", rec.ID, err)
	}
	if !closeEnough(local.Diagnostics.FDR, rec.FDR) {
		return fmt.Errorf("%s: fdr %.17g, service reported %.17g", rec.ID, local.Diagnostics.FDR, rec.FDR)
	}
	if !closeEnough(local.Diagnostics.FSBI, rec.FSBI) {
		return fmt.Errorf("%s: fsbi %.17g, service reported %.17g", rec.ID, local.Diagnostics.FSBI, rec.FSBI)
	}
	return nil
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= diagnosticRelTol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// verifyAnomalyOrder checks that anomalies are sorted by descending score
// with consecutive ranks.
func verifyAnomalyOrder(anomalies []Record) error {
	for i := range anomalies {
		if anomalies[i].Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d", i, anomalies[i].Rank)
		}
		if i > 0 && anomalies[i].S > anomalies[i-1].S {
			return fmt.Errorf("anomalies not properly sorted: entry %d has higher score than entry %d", i, i-1)
		}
	}
	return nil
}

// displayTopAnomalies logs the highest scoring series with their ground truth.
func displayTopAnomalies(samples []Sample, records, anomalies []Record, verbose bool) {
	truth := make(map[string]bool, len(samples))
	for i := range samples {
		truth[samples[i].Series.ID] = samples[i].Perturbed
	}

	n := min(displayedAnomalies, len(anomalies))
	log.Printf("top %d anomalies:", n)
	for i := 0; i < n; i++ {
		a := anomalies[i]
		label := "unknown"
		if perturbed, ok := truth[a.ID]; ok {
			label = "nominal"
			if perturbed {
				label = "perturbed"
			}
		}
		log.Printf("   %d. %s S=%.4g P=%.4f flag=%t (%s)", a.Rank, a.ID, a.S, a.P, a.Flag, label)
	}

	if verbose {
		scores := make([]float64, 0, len(records))
		for i := range records {
			if records[i].Status == statusScored {
				scores = append(scores, records[i].S)
			}
		}
		if len(scores) > 0 {
			sort.Float64s(scores)
			log.Printf("score statistics: min %.4g, median %.4g, max %.4g",
				scores[0], scores[len(scores)/2], scores[len(scores)-1])
		}
	}
}
