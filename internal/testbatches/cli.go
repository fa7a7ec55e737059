package testbatches

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/fgoc/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "test_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	if err := logger.Init(logger.WithOutput(multiWriter)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the batch test tool.
func ShowHelp() {
	os.Stdout.WriteString(`fgoc Batch Test Tool
====================

Generates nominal and perturbed state series, submits them concurrently to a
running fgoc service and checks that the perturbed series score higher.

Usage:
  go run ./cmd/test-batches [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -series int
        Number of series to generate and submit (default 1000)
  -perturbed float
        Fraction of series with injected inconsistencies (default 0.2)
  -states int
        Number of states per series (default 5)
  -top int
        Number of anomalies to fetch (default 50)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -seed uint
        Generator seed (default 1)
  -timeout duration
        HTTP request timeout (default 30s)
  -poll-timeout duration
        How long to wait for each record to be scored (default 30s)
  -output string
        Output file for generated series (default: not written)
  -log string
        Log file for test output (default: test_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Test with default settings
  go run ./cmd/test-batches

  # Larger run against another port
  go run ./cmd/test-batches -series 20000 -workers 16 -url http://localhost:8080

  # Keep the generated series for replay with fgoc-eval
  go run ./cmd/test-batches -series 100 -output out/series.json
`)
}
