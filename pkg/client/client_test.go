package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scholarly-go/openalex-client/pkg/ratelimit"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := DefaultConfig("test-agent/1.0")
	cfg.BaseURL = baseURL
	cfg.RetryBackoffFactor = 0.001 // keep retry tests fast

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.SetLimiter(ratelimit.Nop{})
	c.SetJitter(func() time.Duration { return 0 })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing user agent", func(c *Config) { c.UserAgent = "" }},
		{"missing base URL", func(c *Config) { c.BaseURL = "" }},
		{"zero rps", func(c *Config) { c.RequestsPerSecond = 0 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("test-agent/1.0")
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"meta": {"count": 2, "page": 1, "per_page": 25},
			"results": [{"id": "https://openalex.org/W1"}, {"id": "https://openalex.org/W2"}]}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	page, err := c.Get(context.Background(), "/works")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if page.Len() != 2 {
		t.Errorf("Len() = %d, want 2", page.Len())
	}
	if page.Meta.Count != 2 {
		t.Errorf("Meta.Count = %d, want 2", page.Meta.Count)
	}
}

func TestFetch_SendsHeaders(t *testing.T) {
	var gotUA, gotFrom, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotFrom = r.Header.Get("From")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"meta": {"count": 0}, "results": []}`)
	}))
	defer server.Close()

	cfg := DefaultConfig("scholarly/2.1")
	cfg.BaseURL = server.URL
	cfg.Email = "dev@example.org"
	cfg.APIKey = "secret"

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.SetLimiter(ratelimit.Nop{})

	if _, err := c.Get(context.Background(), "/works"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if gotUA != "scholarly/2.1" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotFrom != "dev@example.org" {
		t.Errorf("From = %q", gotFrom)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestFetch_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"meta": {"count": 1}, "results": [{"id": "W1"}]}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	page, err := c.Get(context.Background(), "/works")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if page.Len() != 1 {
		t.Errorf("Len() = %d, want 1", page.Len())
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	_, err := c.Get(context.Background(), "/works")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type %T, want *APIError", err)
	}
	if apiErr.Kind != KindServerError {
		t.Errorf("Kind = %v, want %v", apiErr.Kind, KindServerError)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Error("error should wrap ErrRetryExhausted")
	}
	// max_retries=3 means 4 attempts total.
	if calls.Load() != 4 {
		t.Errorf("server saw %d calls, want 4", calls.Load())
	}
}

func TestFetch_MalformedQueryNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": "Invalid query parameters error.", "message": "bad filter"}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	_, err := c.Get(context.Background(), "/works")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindMalformedQuery {
		t.Fatalf("got %v, want malformed query error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}
}

func TestFetch_RateLimitRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"meta": {"count": 0}, "results": []}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	if _, err := c.Get(context.Background(), "/works"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
}

func TestFetch_ContextCancelDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := DefaultConfig("test-agent/1.0")
	cfg.BaseURL = server.URL
	cfg.RetryBackoffFactor = 10 // long backoff so cancellation lands first

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.SetLimiter(ratelimit.Nop{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = c.Get(ctx, "/works")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not interrupt backoff sleep")
	}
}

func TestFetch_NetworkError(t *testing.T) {
	// Closed server: every attempt is a transport failure.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := testClient(t, url)
	_, err := c.Fetch(context.Background(), url+"/works")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type %T, want *APIError", err)
	}
	if apiErr.Kind != KindNetworkError {
		t.Errorf("Kind = %v, want %v", apiErr.Kind, KindNetworkError)
	}
}

func TestFetch_SingleEntity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "https://openalex.org/W2741809807", "display_name": "Example"}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	page, err := c.Get(context.Background(), "/works/W2741809807")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if page.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", page.Len())
	}
	if page.Results[0].ID() != "https://openalex.org/W2741809807" {
		t.Errorf("ID() = %q", page.Results[0].ID())
	}
}
