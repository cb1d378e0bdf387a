package scenario

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/scenario-risk/internal/models"
)

// maxDocumentBytes caps a fetched scenario document
const maxDocumentBytes = 4 << 20

// FetcherConfig holds configuration for remote scenario sources
type FetcherConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RateLimit         float64 // requests per second
	CircuitBreakerMax int     // consecutive failures before the breaker opens
	// CircuitBreakerCooldown is how long an open breaker rejects requests
	// before letting a single trial request through.
	CircuitBreakerCooldown time.Duration
}

// DefaultFetcherConfig returns recommended defaults
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:                30 * time.Second,
		MaxRetries:             3,
		RetryWaitMin:           100 * time.Millisecond,
		RetryWaitMax:           5 * time.Second,
		RateLimit:              5.0,
		CircuitBreakerMax:      5,
		CircuitBreakerCooldown: 30 * time.Second,
	}
}

// Fetcher downloads scenario documents over HTTP with retries, rate
// limiting and a circuit breaker
type Fetcher struct {
	client            *retryablehttp.Client
	limiter           *rate.Limiter
	circuitBreakerMax int
	cooldown          time.Duration
	logger            *logrus.Entry

	mu                sync.Mutex
	consecutiveErrors int
	isOpen            bool
	openedAt          time.Time
	trialInFlight     bool
	lastError         error
}

// NewFetcher creates a new scenario fetcher
func NewFetcher(cfg FetcherConfig, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	entry := logger.WithField("component", "scenario_fetcher")

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = customRetryPolicy()
	retryClient.Logger = entry

	return &Fetcher{
		client:            retryClient,
		limiter:           rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		circuitBreakerMax: cfg.CircuitBreakerMax,
		cooldown:          cfg.CircuitBreakerCooldown,
		logger:            entry,
	}
}

// Fetch downloads and parses a scenario. The format follows the response
// content type, falling back to the URL extension.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*models.ScenarioConfig, error) {
	data, contentType, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	format := FormatFromPath(url)
	if strings.Contains(contentType, "json") {
		format = FormatJSON
	} else if strings.Contains(contentType, "yaml") {
		format = FormatYAML
	}
	return Parse(data, format)
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, string, error) {
	if err := f.admit(); err != nil {
		return nil, "", err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		f.releaseTrial()
		return nil, "", fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.releaseTrial()
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/yaml, application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.recordFailure(err)
		return nil, "", fmt.Errorf("failed to fetch scenario: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		err := fmt.Errorf("scenario source returned %s", resp.Status)
		f.recordFailure(err)
		return nil, "", err
	}
	f.recordSuccess()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("scenario source returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read scenario body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// admit rejects requests while the breaker is open. Once the cooldown has
// elapsed one trial request is let through; its outcome closes or reopens
// the breaker.
func (f *Fetcher) admit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.isOpen {
		return nil
	}
	if f.trialInFlight || time.Since(f.openedAt) < f.cooldown {
		return fmt.Errorf("circuit breaker open: %v", f.lastError)
	}
	f.trialInFlight = true
	f.logger.Info("Circuit breaker half-open, sending trial request")
	return nil
}

// releaseTrial frees the trial slot when the request never reached the source
func (f *Fetcher) releaseTrial() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trialInFlight = false
}

func (f *Fetcher) recordFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consecutiveErrors++
	f.lastError = err
	f.trialInFlight = false
	if f.isOpen {
		f.openedAt = time.Now()
		f.logger.WithError(err).Warn("Circuit breaker trial failed, reopened")
		return
	}
	if f.consecutiveErrors >= f.circuitBreakerMax {
		f.isOpen = true
		f.openedAt = time.Now()
		f.logger.WithError(err).Warnf("Circuit breaker opened after %d consecutive errors", f.consecutiveErrors)
	}
}

func (f *Fetcher) recordSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isOpen {
		f.logger.Info("Circuit breaker closed")
	}
	f.consecutiveErrors = 0
	f.isOpen = false
	f.trialInFlight = false
}

// Close releases idle connections
func (f *Fetcher) Close() error {
	f.client.HTTPClient.CloseIdleConnections()
	return nil
}

// customRetryPolicy retries network errors, 429 and 5xx responses
func customRetryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, err
		}
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true, nil
		}
		return false, nil
	}
}
