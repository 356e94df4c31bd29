package tariff

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/wattwise/controller/pkg/common"
	"github.com/wattwise/controller/pkg/log"

	"github.com/levenlabs/go-lflag"
)

// Fetcher pulls the current tariff window from wherever it lives outside
// the core. The core only depends on this contract (spec.md §1: the HTTP
// fetch of tariff data from an external tariff API is an out-of-scope
// collaborator, specified only via its contract); provider-specific
// parsing (Octopus Agile publishing windows and the like) never lives
// here.
type Fetcher interface {
	Fetch(ctx context.Context) ([]RawPoint, error)
}

// wireRawPoint is the generic wire shape a tariff API is expected to
// return: an array of half-hour windows and their unit price. Anything
// more provider-specific belongs in an adapter the deployer supplies,
// not in this core.
type wireRawPoint struct {
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
	UnitPrice float64   `json:"unit_price"`
}

// HTTPFetcher fetches a JSON array of wireRawPoint from a configured URL,
// with bounded retry and exponential backoff under one hard deadline that
// covers every attempt. A final failure is returned to the caller; the
// fetcher keeps no cache of its own.
type HTTPFetcher struct {
	url        string
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// HTTPFetcherConfig configures an HTTPFetcher.
type HTTPFetcherConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// NewHTTPFetcher builds an HTTPFetcher from cfg.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	return &HTTPFetcher{
		url:        cfg.URL,
		client:     common.HTTPClient(cfg.Timeout),
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
	}
}

// ConfiguredFetcher builds an HTTPFetcher from flags, in the teacher's
// per-package Configured() convention. The returned pointer is allocated
// eagerly and its fields populated inside the lflag.Do callback, since
// that callback only runs later when lflag.Configure() is called in
// main() — a function-local variable reassigned inside the closure would
// still be nil to any caller holding the function's return value.
func ConfiguredFetcher() *HTTPFetcher {
	url := lflag.String("tariff-api-url", "", "URL returning the current tariff window as a JSON array")
	timeoutS := lflag.Int("tariff-fetch-timeout-s", 15, "hard deadline covering every retry of one fetch")
	maxRetries := lflag.Int("tariff-fetch-max-retries", 3, "maximum retry attempts on fetch failure")

	f := &HTTPFetcher{}
	lflag.Do(func() {
		*f = *NewHTTPFetcher(HTTPFetcherConfig{
			URL:        *url,
			Timeout:    time.Duration(*timeoutS) * time.Second,
			MaxRetries: *maxRetries,
		})
	})
	return f
}

// Fetch retrieves and parses the tariff window, retrying with exponential
// backoff until a fetch succeeds, the retries are used up, or the
// deadline passes. The client's timeout is that deadline: it bounds each
// attempt and also all attempts of one call together.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]RawPoint, error) {
	if f.url == "" {
		return nil, fmt.Errorf("tariff: no tariff-api-url configured")
	}
	if f.client.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.client.Timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := f.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		points, err := f.fetchOnce(ctx)
		if err == nil {
			return points, nil
		}
		lastErr = err
		log.Ctx(ctx).WarnContext(ctx, "tariff: fetch attempt failed", "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("tariff: fetch failed after %d attempts: %w", f.maxRetries+1, lastErr)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context) ([]RawPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tariff api returned status %d", resp.StatusCode)
	}

	var wire []wireRawPoint
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding tariff response: %w", err)
	}

	points := make([]RawPoint, len(wire))
	for i, w := range wire {
		points[i] = RawPoint{ValidFrom: w.ValidFrom, ValidTo: w.ValidTo, UnitPrice: w.UnitPrice}
	}
	return points, nil
}
