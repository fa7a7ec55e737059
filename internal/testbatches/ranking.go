package testbatches

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

var errRecordTimeout = errors.New("record not available before poll timeout")

// retrieveRecords polls GET /v1/batches/{id} for every sample concurrently.
// The returned slice is index-aligned with samples; missing entries have an
// empty ID.
func retrieveRecords(ctx context.Context, config *Config, samples []Sample, stats *Stats) ([]Record, error) {
	log.Printf("retrieving %d records with %d workers", len(samples), config.Workers)

	client := newHTTPClient(config.Timeout)
	records := make([]Record, len(samples))
	var (
		retrieved int64
		missing   int64
	)

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range indexChan {
				id := samples[index].Series.ID
				rec, err := pollRecord(ctx, client, config, id)
				if err != nil {
					atomic.AddInt64(&missing, 1)
					if config.Verbose {
						log.Printf("failed to get record %s: %v", id, err)
					}
					continue
				}
				records[index] = rec
				atomic.AddInt64(&retrieved, 1)
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range samples {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.RecordsRetrieved = int(atomic.LoadInt64(&retrieved))
	stats.RecordsMissing = int(atomic.LoadInt64(&missing))

	log.Printf("record retrieval completed: retrieved %d, missing %d",
		stats.RecordsRetrieved, stats.RecordsMissing)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled during record retrieval: %w", err)
	}
	return records, nil
}

// pollRecord waits for a series to be processed. Not-found responses are
// retried until the poll timeout since processing is asynchronous.
func pollRecord(ctx context.Context, client *HTTPClient, config *Config, id string) (Record, error) {
	url := fmt.Sprintf("%s/v1/batches/%s", config.BaseURL, id)
	deadline := time.Now().Add(config.PollTimeout)

	for {
		var rec Record
		code, err := client.getJSON(ctx, url, &rec)
		if err == nil {
			return rec, nil
		}
		if code != StatusNotFound {
			return Record{}, err
		}
		if time.Now().After(deadline) {
			return Record{}, fmt.Errorf("%s: %w", id, errRecordTimeout)
		}
		select {
		case <-ctx.Done():
			return Record{}, ctx.Err()
		case <-time.After(config.PollInterval):
		}
	}
}

// getAnomalies retrieves the top N scored series.
func getAnomalies(ctx context.Context, config *Config, stats *Stats) ([]Record, error) {
	log.Printf("getting top %d anomalies", config.TopN)

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/v1/anomalies?limit=%d", config.BaseURL, config.TopN)

	var anomalies []Record
	if _, err := client.getJSON(ctx, url, &anomalies); err != nil {
		return nil, err
	}

	stats.AnomalyEntries = len(anomalies)
	log.Printf("retrieved %d anomalies", len(anomalies))

	return anomalies, nil
}
