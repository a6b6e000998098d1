package client

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func noJitter() time.Duration { return 0 }

func testParams(attempt, maxRetries int) classifyParams {
	return classifyParams{
		attempt:       attempt,
		maxRetries:    maxRetries,
		backoffFactor: 0.5,
		retryable:     map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true},
		jitter:        noJitter,
	}
}

func TestBackoff_Growth(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(0.5, tt.attempt); got != tt.want {
			t.Errorf("Backoff(0.5, %d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestClassifyResponse_Success(t *testing.T) {
	d := classifyResponse(testParams(0, 3), 200, http.Header{}, []byte(`{}`), "u")
	if !d.Succeeded() {
		t.Error("200 should succeed")
	}
}

func TestClassifyResponse_MalformedQueryNeverRetried(t *testing.T) {
	body := []byte(`{"error": "Invalid query parameters error.", "message": "filter x is not valid"}`)

	// Even on attempt 0 with retries remaining, the decision is a permanent
	// failure.
	d := classifyResponse(testParams(0, 3), 403, http.Header{}, body, "u")
	if !d.Failed() {
		t.Fatal("malformed query 403 should fail immediately")
	}
	if d.Fail.Kind != KindMalformedQuery {
		t.Errorf("Kind = %v, want %v", d.Fail.Kind, KindMalformedQuery)
	}
	if d.Fail.Message != "filter x is not valid" {
		t.Errorf("Message = %q", d.Fail.Message)
	}
}

func TestClassifyResponse_Plain403IsAPIError(t *testing.T) {
	d := classifyResponse(testParams(0, 3), 403, http.Header{}, []byte(`forbidden`), "u")
	if !d.Failed() {
		t.Fatal("non-query 403 should fail")
	}
	if d.Fail.Kind != KindAPIError {
		t.Errorf("Kind = %v, want %v", d.Fail.Kind, KindAPIError)
	}
}

func TestClassifyResponse_ServerErrorBackoff(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{"first attempt", 0, 500 * time.Millisecond},
		{"second attempt", 1, time.Second},
		{"third attempt", 2, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := classifyResponse(testParams(tt.attempt, 3), 500, http.Header{}, nil, "u")
			if !d.ShouldRetry() {
				t.Fatal("retryable 500 should retry")
			}
			if d.Delay != tt.want {
				t.Errorf("Delay = %v, want %v", d.Delay, tt.want)
			}
		})
	}
}

func TestClassifyResponse_ServerErrorExhausted(t *testing.T) {
	d := classifyResponse(testParams(3, 3), 503, http.Header{}, []byte(`oops`), "u")
	if !d.Failed() {
		t.Fatal("last attempt should fail")
	}
	if d.Fail.Kind != KindServerError {
		t.Errorf("Kind = %v, want %v", d.Fail.Kind, KindServerError)
	}
	if !errors.Is(d.Fail, ErrRetryExhausted) {
		t.Error("exhausted failure should wrap ErrRetryExhausted")
	}
}

func TestClassifyResponse_RateLimitedBackoffSkipsAhead(t *testing.T) {
	// 429 uses exponent attempt+1, so the first retry already waits a full
	// second at factor 0.5.
	d := classifyResponse(testParams(0, 3), 429, http.Header{}, nil, "u")
	if !d.ShouldRetry() {
		t.Fatal("429 with retries remaining should retry")
	}
	if d.Delay != time.Second {
		t.Errorf("Delay = %v, want 1s", d.Delay)
	}
}

func TestClassifyResponse_RateLimitedRetryAfterWins(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")

	d := classifyResponse(testParams(0, 3), 429, header, nil, "u")
	if !d.ShouldRetry() {
		t.Fatal("429 with retries remaining should retry")
	}
	if d.Delay != 7*time.Second {
		t.Errorf("Delay = %v, want 7s", d.Delay)
	}
}

func TestClassifyResponse_RateLimitedExhausted(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "30")

	d := classifyResponse(testParams(3, 3), 429, header, nil, "u")
	if !d.Failed() {
		t.Fatal("exhausted 429 should fail")
	}
	if d.Fail.Kind != KindRateLimited {
		t.Errorf("Kind = %v, want %v", d.Fail.Kind, KindRateLimited)
	}
	if d.Fail.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", d.Fail.RetryAfter)
	}
}

func TestClassifyResponse_NotFound(t *testing.T) {
	d := classifyResponse(testParams(0, 3), 404, http.Header{}, nil, "u")
	if !d.Failed() {
		t.Fatal("404 should fail without retry")
	}
	if d.Fail.Kind != KindAPIError || d.Fail.Message != "resource not found" {
		t.Errorf("got %v / %q", d.Fail.Kind, d.Fail.Message)
	}
}

func TestClassifyResponse_CustomRetryableSet(t *testing.T) {
	p := testParams(0, 3)
	p.retryable = map[int]bool{503: true}

	// 500 is outside the custom set, so it fails immediately.
	if d := classifyResponse(p, 500, http.Header{}, nil, "u"); !d.Failed() {
		t.Error("500 outside retryable set should fail")
	}
	if d := classifyResponse(p, 503, http.Header{}, nil, "u"); !d.ShouldRetry() {
		t.Error("503 inside retryable set should retry")
	}
}

func TestClassifyResponse_JitterAdded(t *testing.T) {
	p := testParams(0, 3)
	p.jitter = func() time.Duration { return 42 * time.Millisecond }

	d := classifyResponse(p, 500, http.Header{}, nil, "u")
	if d.Delay != 500*time.Millisecond+42*time.Millisecond {
		t.Errorf("Delay = %v, want 542ms", d.Delay)
	}
}

func TestClassifyTransportError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	d := classifyTransportError(testParams(1, 3), cause, "u")
	if !d.ShouldRetry() {
		t.Fatal("transport error with retries remaining should retry")
	}
	if d.Delay != time.Second {
		t.Errorf("Delay = %v, want 1s", d.Delay)
	}

	d = classifyTransportError(testParams(3, 3), cause, "u")
	if !d.Failed() {
		t.Fatal("exhausted transport error should fail")
	}
	if d.Fail.Kind != KindNetworkError {
		t.Errorf("Kind = %v, want %v", d.Fail.Kind, KindNetworkError)
	}
	if !errors.Is(d.Fail, cause) {
		t.Error("failure should wrap the transport error")
	}
}

func TestClassifyResponse_ZeroRetries(t *testing.T) {
	d := classifyResponse(testParams(0, 0), 500, http.Header{}, nil, "u")
	if !d.Failed() {
		t.Error("max_retries=0 should fail on the first retryable status")
	}
}

func TestClockJitter_Range(t *testing.T) {
	for i := 0; i < 100; i++ {
		j := clockJitter()
		if j < 0 || j >= 100*time.Millisecond {
			t.Fatalf("jitter %v outside [0, 100ms)", j)
		}
	}
}
