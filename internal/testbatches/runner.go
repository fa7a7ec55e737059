package testbatches

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/fgoc/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete batch test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}
	applyDefaults(config)

	logger.Get().Info(ctx, "starting fgoc batch test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("series", config.NumSeries),
		logger.Int("statesPerSeries", config.StatesPerSeries),
		logger.Float64("perturbedRatio", config.PerturbedRatio),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate series
	samples, err := generateSamples(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("series generation failed: %w", err)
	}

	// Step 3: Submit series concurrently
	if err := submitSamples(ctx, config, samples, stats); err != nil {
		return fmt.Errorf("series submission failed: %w", err)
	}

	// Step 4: Poll for the stored records
	records, err := retrieveRecords(ctx, config, samples, stats)
	if err != nil {
		return fmt.Errorf("record retrieval failed: %w", err)
	}

	// Step 5: Get the anomaly ranking
	anomalies, err := getAnomalies(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("anomaly retrieval failed: %w", err)
	}

	// Step 6: Verify results
	if err := verifyResults(ctx, config, samples, records, anomalies, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 7: Save series to file
	if config.OutputFile != "" {
		if err := saveSamplesToFile(ctx, config.OutputFile, samples); err != nil {
			logger.Get().Warn(ctx, "failed to save series to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

func applyDefaults(config *Config) {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}

	// The health endpoint serves Prometheus metrics; any 200 is healthy.
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveSamplesToFile writes the generated series and their ground truth as
// an indented JSON array.
func saveSamplesToFile(ctx context.Context, filename string, samples []Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no series to save")
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(ctx, "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(samples); err != nil {
		return fmt.Errorf("failed to write series: %w", err)
	}

	logger.Get().Info(ctx, "series saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, seriesPerSecond, recall float64

	if stats.SeriesSubmitted > 0 {
		acceptRate = float64(stats.SeriesAccepted) / float64(stats.SeriesSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		seriesPerSecond = float64(stats.SeriesSubmitted) / stats.Duration.Seconds()
	}
	if stats.SeriesPerturbed > 0 {
		recall = float64(stats.FlaggedPerturbed) / float64(stats.SeriesPerturbed) * PercentageMultiplier
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("seriesGenerated", stats.SeriesGenerated),
		logger.Int("seriesPerturbed", stats.SeriesPerturbed),
		logger.Int("seriesSubmitted", stats.SeriesSubmitted),
		logger.Int("seriesAccepted", stats.SeriesAccepted),
		logger.Int("seriesDuplicate", stats.SeriesDuplicate),
		logger.Int("seriesFailed", stats.SeriesFailed),
		logger.Int("recordsRetrieved", stats.RecordsRetrieved),
		logger.Int("recordsMissing", stats.RecordsMissing),
		logger.Int("anomalyEntries", stats.AnomalyEntries),
		logger.Int("flaggedPerturbed", stats.FlaggedPerturbed),
		logger.Int("flaggedNominal", stats.FlaggedNominal),
		logger.Float64("meanScorePerturbed", stats.MeanScorePerturbed),
		logger.Float64("meanScoreNominal", stats.MeanScoreNominal),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("flagRecall", recall),
		logger.Float64("seriesPerSecond", seriesPerSecond))
}
