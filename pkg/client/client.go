// Package client provides the core OpenAlex HTTP client: a retrying GET
// fetch primitive with shared rate limiting, error classification, and an
// optional Redis-backed response cache.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scholarly-go/openalex-client/pkg/cache"
	"github.com/scholarly-go/openalex-client/pkg/ratelimit"
	"github.com/scholarly-go/openalex-client/pkg/response"
)

// Prometheus metrics for OpenAlex client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openalex_requests_total",
		Help: "Total OpenAlex requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openalex_request_duration_seconds",
		Help:    "OpenAlex request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openalex_errors_total",
		Help: "Total OpenAlex errors by kind",
	}, []string{"kind"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openalex_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openalex_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error kind",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openalex_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error kind",
	}, []string{"kind"})
)

// DefaultRetryableStatusCodes are the HTTP statuses retried with backoff.
var DefaultRetryableStatusCodes = []int{429, 500, 502, 503, 504}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the OpenAlex API.
	BaseURL string

	// Email is sent in the From header for polite-pool access.
	Email string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// UserAgent header (required).
	UserAgent string

	// Rate limiting
	RequestsPerSecond float64
	RateLimitBuffer   float64 // fraction of the limit actually used, e.g. 0.9

	// Retry
	MaxRetries           int
	RetryBackoffFactor   float64
	RetryableStatusCodes []int

	// Timeouts
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration

	// Redis enables response caching when set.
	Redis    *redis.Client
	CacheTTL time.Duration
}

// DefaultConfig returns a configuration with the documented OpenAlex limits
// and safe retry settings.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:              "https://api.openalex.org",
		UserAgent:            userAgent,
		RequestsPerSecond:    10,
		RateLimitBuffer:      0.9,
		MaxRetries:           3,
		RetryBackoffFactor:   0.5,
		RetryableStatusCodes: DefaultRetryableStatusCodes,
		ConnectTimeout:       10 * time.Second,
		TotalTimeout:         30 * time.Second,
		CacheTTL:             5 * time.Minute,
	}
}

// Client is the OpenAlex fetch primitive shared by the pagination and batch
// layers.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	cache      *cache.Manager
	config     Config
	retryable  map[int]bool
	jitter     func() time.Duration
	logger     zerolog.Logger
}

// New creates a new OpenAlex client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests_per_second must be positive (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}
	if len(cfg.RetryableStatusCodes) == 0 {
		cfg.RetryableStatusCodes = DefaultRetryableStatusCodes
	}

	retryable := make(map[int]bool, len(cfg.RetryableStatusCodes))
	for _, code := range cfg.RetryableStatusCodes {
		retryable[code] = true
	}

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.TotalTimeout,
		},
		limiter:   ratelimit.New(cfg.RequestsPerSecond, cfg.RateLimitBuffer),
		cache:     cacheManager,
		config:    cfg,
		retryable: retryable,
		jitter:    clockJitter,
		logger:    log.With().Str("component", "openalex-client").Logger(),
	}, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Fetch performs one logical GET of an OpenAlex URL, absorbing transient
// failures up to the configured retry budget. Each attempt acquires the
// shared rate limiter before dispatch; the only loop-carried state is the
// attempt counter.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*response.Page, error) {
	endpoint := endpointLabel(rawURL)

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if c.cache != nil {
		if body, err := c.cache.Get(ctx, rawURL); err == nil {
			return response.ParsePage(body)
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	params := classifyParams{
		maxRetries:    c.config.MaxRetries,
		backoffFactor: c.config.RetryBackoffFactor,
		retryable:     c.retryable,
		jitter:        c.jitter,
	}

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		params.attempt = attempt

		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("rate limit acquire: %w", err)
		}

		status, header, body, reqErr := c.doGet(ctx, rawURL)

		var decision Decision
		if reqErr != nil {
			c.logger.Warn().Err(reqErr).Str("endpoint", endpoint).Int("attempt", attempt).
				Msg("HTTP request failed")
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			decision = classifyTransportError(params, reqErr, rawURL)
		} else {
			requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", status)).Inc()
			decision = classifyResponse(params, status, header, body, rawURL)
		}

		switch {
		case decision.Succeeded():
			if attempt > 0 {
				c.logger.Info().Str("endpoint", endpoint).Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			page, err := response.ParsePage(body)
			if err != nil {
				return nil, err
			}
			if c.cache != nil {
				if err := c.cache.Set(ctx, rawURL, body); err != nil {
					c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache set error")
				}
			}
			return page, nil

		case decision.ShouldRetry():
			kind := retryKind(reqErr, status)
			retriesTotal.WithLabelValues(string(kind)).Inc()
			retryBackoffSeconds.WithLabelValues(string(kind)).Observe(decision.Delay.Seconds())

			c.logger.Debug().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Dur("backoff", decision.Delay).
				Str("kind", string(kind)).
				Msg("Retrying request after backoff")

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			case <-time.After(decision.Delay):
			}

		default:
			errorsTotal.WithLabelValues(string(decision.Fail.Kind)).Inc()
			if decision.Fail.Kind.Retryable() {
				retryExhaustedTotal.WithLabelValues(string(decision.Fail.Kind)).Inc()
				c.logger.Warn().
					Str("endpoint", endpoint).
					Int("max_retries", c.config.MaxRetries).
					Str("kind", string(decision.Fail.Kind)).
					Msg("Retry attempts exhausted")
			}
			return nil, decision.Fail
		}
	}

	// Unreachable: the final attempt always succeeds or fails permanently.
	return nil, &APIError{Kind: KindNetworkError, Message: "retry loop exited", URL: rawURL, Err: ErrRetryExhausted}
}

// Get fetches an API path relative to the configured base URL.
func (c *Client) Get(ctx context.Context, path string) (*response.Page, error) {
	return c.Fetch(ctx, c.config.BaseURL+path)
}

// doGet issues a single GET attempt and drains the body.
func (c *Client) doGet(ctx context.Context, rawURL string) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, nil, err
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.Email != "" {
		req.Header.Set("From", c.config.Email)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}

	return resp.StatusCode, resp.Header, body, nil
}

// retryKind labels the retry metrics for an attempt that will be repeated.
func retryKind(reqErr error, status int) ErrorKind {
	switch {
	case reqErr != nil:
		return KindNetworkError
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	default:
		return KindAPIError
	}
}

// endpointLabel reduces a URL to its path for metric labels, keeping
// cardinality independent of query parameters.
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid"
	}
	return u.Path
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// SetLimiter substitutes the rate limiter (for testing).
func (c *Client) SetLimiter(l ratelimit.Limiter) {
	c.limiter = l
}

// SetJitter substitutes the backoff jitter source (for testing).
func (c *Client) SetJitter(j func() time.Duration) {
	c.jitter = j
}
