// Package fetch implements the polite upstream HTTP client: conditional
// requests against cached validators, per-origin concurrency limits, and a
// circuit breaker per origin so a struggling upstream is left alone.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	"github.com/stormtrack/stormtrack/internal/observability"
	"github.com/stormtrack/stormtrack/pkg/version"
)

// maxBodyBytes caps a single response body. Upstream history files run to a
// few hundred KB; anything past this is malformed.
const maxBodyBytes = 16 << 20

// breakerConsecutiveFailures trips an origin's breaker.
const breakerConsecutiveFailures = 5

// breakerOpenTimeout is how long a tripped breaker stays open.
const breakerOpenTimeout = 2 * time.Minute

// ErrInvalidURL indicates a fetch URL that could not be parsed.
var ErrInvalidURL = errors.New("invalid fetch url")

// Client performs conditional GETs with per-origin politeness controls.
type Client struct {
	httpClient *http.Client
	cache      *validatorCache
	perOrigin  int64
	metrics    *observability.PipelineMetrics

	mu       sync.Mutex
	limiters map[string]*semaphore.Weighted
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient builds a Client. perOrigin bounds concurrent requests to one
// origin; timeout bounds a single request. metrics may be nil.
func NewClient(timeout time.Duration, perOrigin int, metrics *observability.PipelineMetrics) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout

	return &Client{
		httpClient: httpClient,
		cache:      newValidatorCache(),
		perOrigin:  int64(perOrigin),
		metrics:    metrics,
		limiters:   make(map[string]*semaphore.Weighted),
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Fetch performs a conditional GET of rawURL. When the validator cache holds
// an ETag or Last-Modified for the URL, they are sent and a 304 maps to
// OutcomeNotModified. Outcomes are classified; the returned error is non-nil
// only alongside a transient or permanent outcome, and always wraps an
// *Error carrying the outcome kind.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Result, error) {
	parsed, parseErr := url.Parse(rawURL)
	if parseErr != nil || parsed.Host == "" {
		return Result{Kind: OutcomePermanent},
			&Error{Kind: OutcomePermanent, Err: fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)}
	}

	origin := parsed.Host

	limiter := c.limiter(origin)

	acquireErr := limiter.Acquire(ctx, 1)
	if acquireErr != nil {
		return Result{Kind: OutcomeTransient},
			&Error{Kind: OutcomeTransient, Err: fmt.Errorf("acquire origin slot: %w", acquireErr)}
	}
	defer limiter.Release(1)

	start := time.Now()

	raw, execErr := c.breaker(origin).Execute(func() (any, error) {
		return c.do(ctx, rawURL)
	})

	result, err := classify(raw, execErr)

	if c.metrics != nil {
		c.metrics.RecordFetch(ctx, origin, string(result.Kind), time.Since(start))
	}

	if err != nil {
		err = &Error{Kind: result.Kind, Err: err}
	}

	return result, err
}

// Forget drops the cached validators for a URL, forcing the next fetch to
// retrieve a full body.
func (c *Client) Forget(rawURL string) {
	c.cache.drop(rawURL)
}

// CachedURLs reports how many URLs currently hold validators.
func (c *Client) CachedURLs() int {
	return c.cache.len()
}

// do runs the actual request and maps the status code onto a Result.
// Transient results return a non-nil error so the breaker counts them.
func (c *Client) do(ctx context.Context, rawURL string) (Result, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if reqErr != nil {
		return Result{Kind: OutcomePermanent}, fmt.Errorf("build request: %w", reqErr)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	if cached, ok := c.cache.get(rawURL); ok {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}

		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return Result{Kind: OutcomeTransient}, fmt.Errorf("request %s: %w", rawURL, doErr)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return Result{Kind: OutcomeNotModified, StatusCode: resp.StatusCode}, nil

	case resp.StatusCode == http.StatusOK:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return Result{Kind: OutcomeTransient}, fmt.Errorf("read body of %s: %w", rawURL, readErr)
		}

		c.cache.put(rawURL, validators{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
		})

		return Result{Kind: OutcomeFetched, Body: body, StatusCode: resp.StatusCode}, nil

	case resp.StatusCode == http.StatusNotFound:
		c.cache.drop(rawURL)

		return Result{Kind: OutcomeNotFound, StatusCode: resp.StatusCode}, nil

	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return Result{Kind: OutcomeTransient, StatusCode: resp.StatusCode},
			fmt.Errorf("upstream %s returned %d", rawURL, resp.StatusCode)

	default:
		return Result{Kind: OutcomePermanent, StatusCode: resp.StatusCode},
			fmt.Errorf("upstream %s returned %d", rawURL, resp.StatusCode)
	}
}

// classify unwraps the breaker's return. An open breaker is a transient
// condition from the caller's point of view.
func classify(raw any, execErr error) (Result, error) {
	if errors.Is(execErr, gobreaker.ErrOpenState) || errors.Is(execErr, gobreaker.ErrTooManyRequests) {
		return Result{Kind: OutcomeTransient}, fmt.Errorf("origin circuit open: %w", execErr)
	}

	result, ok := raw.(Result)
	if !ok {
		return Result{Kind: OutcomeTransient}, execErr
	}

	return result, execErr
}

func (c *Client) limiter(origin string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()

	limiter, ok := c.limiters[origin]
	if !ok {
		limiter = semaphore.NewWeighted(c.perOrigin)
		c.limiters[origin] = limiter
	}

	return limiter
}

func (c *Client) breaker(origin string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	breaker, ok := c.breakers[origin]
	if !ok {
		breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    origin,
			Timeout: breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerConsecutiveFailures
			},
		})
		c.breakers[origin] = breaker
	}

	return breaker
}
