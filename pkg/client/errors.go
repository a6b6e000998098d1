package client

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a permanent fetch failure.
type ErrorKind string

const (
	// KindMalformedQuery means the request itself is invalid (403 with a
	// query-parameter complaint). Never retried.
	KindMalformedQuery ErrorKind = "malformed_query"

	// KindRateLimited means 429 retries were exhausted.
	KindRateLimited ErrorKind = "rate_limited"

	// KindServerError means 5xx retries were exhausted.
	KindServerError ErrorKind = "server_error"

	// KindAPIError covers non-retryable 4xx responses and exhausted
	// retryable statuses outside the 5xx range.
	KindAPIError ErrorKind = "api_error"

	// KindNetworkError means transport or timeout failures persisted
	// through all retries.
	KindNetworkError ErrorKind = "network_error"
)

// ErrRetryExhausted is wrapped into errors surfaced after the retry budget
// is spent.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// APIError is a permanent fetch failure with its classification and the
// context needed for an actionable message.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	URL        string
	// Body holds the first 200 characters of the response body, when any.
	Body string
	// RetryAfter carries the server-requested delay for rate limit errors.
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("openalex %s", e.Kind)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether failures of this kind are absorbed by the
// retry loop before surfacing.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServerError, KindNetworkError:
		return true
	default:
		return false
	}
}

// bodyExcerpt trims a response body for error reporting.
func bodyExcerpt(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
