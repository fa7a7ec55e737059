package testbatches

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Submission outcomes.
const (
	resultAccepted  = "accepted"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON decodes a 200 response into v and returns the status code.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) (int, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.StatusCode, nil
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitSamples posts every series to /v1/batches using a worker pool.
func submitSamples(ctx context.Context, config *Config, samples []Sample, stats *Stats) error {
	log.Printf("submitting %d series with %d workers", len(samples), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/v1/batches"

	var (
		accepted  int64
		duplicate int64
		failed    int64
		submitted int64
	)

	var (
		reportMu   sync.Mutex
		lastReport time.Time
	)
	reportInterval := 1 * time.Second

	sampleChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range sampleChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				result := submitSingleSeries(ctx, client, url, &samples[index].Series)

				atomic.AddInt64(&submitted, 1)
				switch result {
				case resultAccepted:
					atomic.AddInt64(&accepted, 1)
				case resultDuplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}

				reportMu.Lock()
				if time.Since(lastReport) >= reportInterval {
					lastReport = time.Now()
					log.Printf("submitted %d/%d (accepted: %d, duplicate: %d, failed: %d)",
						atomic.LoadInt64(&submitted), len(samples),
						atomic.LoadInt64(&accepted), atomic.LoadInt64(&duplicate), atomic.LoadInt64(&failed))
				}
				reportMu.Unlock()
			}
		}()
	}

	go func() {
		defer close(sampleChan)
		for i := range samples {
			select {
			case <-ctx.Done():
				return
			case sampleChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.SeriesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.SeriesAccepted = int(atomic.LoadInt64(&accepted))
	stats.SeriesDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.SeriesFailed = int(atomic.LoadInt64(&failed))

	log.Printf("series submission completed: accepted %d, duplicate %d, failed %d",
		stats.SeriesAccepted, stats.SeriesDuplicate, stats.SeriesFailed)

	if stats.SeriesAccepted == 0 && stats.SeriesDuplicate == 0 {
		return fmt.Errorf("no series accepted out of %d", len(samples))
	}
	return nil
}

// submitSingleSeries submits one series and classifies the response.
func submitSingleSeries(ctx context.Context, client *HTTPClient, url string, series *Series) string {
	resp, err := client.Post(ctx, url, series)
	if err != nil {
		return resultFailed
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return resultFailed
	}

	var ack AckResponse
	switch resp.StatusCode {
	case StatusAccepted:
		return resultAccepted
	case StatusOK:
		if err := json.Unmarshal(body, &ack); err == nil && !ack.Duplicate {
			return resultAccepted
		}
		return resultDuplicate
	default:
		return resultFailed
	}
}
