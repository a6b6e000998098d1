package client

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Decision is the outcome of classifying one fetch attempt. Exactly one of
// the three variants holds: the attempt succeeded, the attempt should be
// retried after Delay, or the fetch fails permanently with Fail.
type Decision struct {
	kind  decisionKind
	Delay time.Duration
	Fail  *APIError
}

type decisionKind int

const (
	decisionSucceed decisionKind = iota
	decisionRetry
	decisionFail
)

// Succeeded reports whether the attempt's response should be used as-is.
func (d Decision) Succeeded() bool { return d.kind == decisionSucceed }

// ShouldRetry reports whether the caller should sleep Delay and retry.
func (d Decision) ShouldRetry() bool { return d.kind == decisionRetry }

// Failed reports whether the fetch fails permanently with Fail.
func (d Decision) Failed() bool { return d.kind == decisionFail }

func succeed() Decision             { return Decision{kind: decisionSucceed} }
func retryIn(d time.Duration) Decision { return Decision{kind: decisionRetry, Delay: d} }
func fail(err *APIError) Decision   { return Decision{kind: decisionFail, Fail: err} }

// Backoff returns the exponential backoff delay for a 0-indexed attempt:
// factor * 2^attempt seconds, before jitter.
func Backoff(factor float64, attempt int) time.Duration {
	return time.Duration(factor * math.Pow(2, float64(attempt)) * float64(time.Second))
}

// clockJitter derives a pseudo-random jitter in [0, 0.1) seconds from the
// wall clock's sub-second fraction.
func clockJitter() time.Duration {
	frac := float64(time.Now().UnixNano()%int64(time.Second)) / float64(time.Second)
	return time.Duration(frac * 0.1 * float64(time.Second))
}

// classifyParams are the fixed inputs the classifier needs besides the
// response itself.
type classifyParams struct {
	attempt       int // 0-indexed
	maxRetries    int
	backoffFactor float64
	retryable     map[int]bool
	jitter        func() time.Duration
}

func (p classifyParams) lastAttempt() bool { return p.attempt >= p.maxRetries }

// classifyResponse maps one HTTP response onto a retry decision. It is a
// pure function of its inputs so the retry state machine can be tested
// without I/O; all sleeping happens in the caller.
func classifyResponse(p classifyParams, status int, header http.Header, body []byte, url string) Decision {
	// A 403 complaining about query parameters means the request itself is
	// invalid; retrying cannot help.
	if status == http.StatusForbidden {
		if msg, ok := malformedQueryMessage(body); ok {
			return fail(&APIError{
				Kind:    KindMalformedQuery,
				Message: msg,
				URL:     url,
				Body:    bodyExcerpt(body),
			})
		}
	}

	if p.retryable[status] {
		if status == http.StatusTooManyRequests {
			return classifyRateLimited(p, header, body, url)
		}

		if p.lastAttempt() {
			kind := KindAPIError
			msg := "HTTP " + strconv.Itoa(status) + " error"
			if status >= 500 {
				kind = KindServerError
				msg = "server error"
			}
			return fail(&APIError{
				Kind:       kind,
				StatusCode: status,
				Message:    msg,
				URL:        url,
				Body:       bodyExcerpt(body),
				Err:        ErrRetryExhausted,
			})
		}
		return retryIn(Backoff(p.backoffFactor, p.attempt) + p.jitter())
	}

	if status >= 400 {
		msg := "HTTP " + strconv.Itoa(status) + " error"
		switch {
		case status == http.StatusNotFound:
			msg = "resource not found"
		case status >= 500:
			msg = "server error"
		}
		return fail(&APIError{
			Kind:       KindAPIError,
			StatusCode: status,
			Message:    msg,
			URL:        url,
			Body:       bodyExcerpt(body),
		})
	}

	return succeed()
}

// classifyRateLimited handles 429 responses: the Retry-After header wins
// over computed backoff, and the delay skips ahead one exponent so repeated
// rate limiting backs off faster than ordinary server errors.
func classifyRateLimited(p classifyParams, header http.Header, body []byte, url string) Decision {
	var retryAfter time.Duration
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
	}

	if p.lastAttempt() {
		return fail(&APIError{
			Kind:       KindRateLimited,
			StatusCode: http.StatusTooManyRequests,
			Message:    "rate limit exceeded",
			URL:        url,
			Body:       bodyExcerpt(body),
			RetryAfter: retryAfter,
			Err:        ErrRetryExhausted,
		})
	}

	if retryAfter > 0 {
		return retryIn(retryAfter)
	}
	return retryIn(Backoff(p.backoffFactor, p.attempt+1))
}

// classifyTransportError maps a transport or timeout failure onto a retry
// decision. Both timeout flavors are treated identically to network errors.
func classifyTransportError(p classifyParams, err error, url string) Decision {
	if p.lastAttempt() {
		return fail(&APIError{
			Kind:    KindNetworkError,
			Message: "network error",
			URL:     url,
			Err:     err,
		})
	}
	return retryIn(Backoff(p.backoffFactor, p.attempt) + p.jitter())
}

// malformedQueryMessage extracts the API's message from a 403 body whose
// error field complains about query parameters.
func malformedQueryMessage(body []byte) (string, bool) {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	if !strings.Contains(payload.Error, "query parameters") {
		return "", false
	}
	return payload.Message, true
}
