// Package testutil provides testing utilities for the OpenAlex client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock OpenAlex endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOpenAlex is a configurable mock OpenAlex API server for testing.
type MockOpenAlex struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockOpenAlex creates a new mock OpenAlex server.
func NewMockOpenAlex() *MockOpenAlex {
	mock := &MockOpenAlex{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockOpenAlex) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOpenAlex) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOpenAlex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOpenAlex) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOpenAlex) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if resp.Headers["Content-Type"] == "" {
			w.Header().Set("Content-Type", "application/json")
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetCursorCollection configures a path to serve a cursor-paginated
// collection: cursor "*" returns the first page, each page links to the
// next, and the final page carries no next_cursor. total is the reported
// meta.count.
func (m *MockOpenAlex) SetCursorCollection(path string, total int, pages [][]string) {
	bodies := make(map[string]string, len(pages))
	for i, ids := range pages {
		cursor := "*"
		if i > 0 {
			cursor = fmt.Sprintf("cursor-%d", i)
		}
		next := ""
		if i < len(pages)-1 {
			next = fmt.Sprintf("cursor-%d", i+1)
		}
		bodies[cursor] = CollectionBody(total, next, 0, len(ids), ids...)
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, ok := bodies[r.URL.Query().Get("cursor")]
		if !ok {
			http.Error(w, `{"error": "unknown cursor"}`, http.StatusBadRequest)
			return
		}
		w.Write([]byte(body))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockOpenAlex) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler serves an empty collection.
func (m *MockOpenAlex) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(CollectionBody(0, "", 1, 25)))
}

// CollectionBody builds a collection response body with one record per id.
// Zero-valued cursor/page fields are omitted like the live API does; the
// empty "group_by" array is included because the live API sends it on every
// entity list response.
func CollectionBody(count int, nextCursor string, page, perPage int, ids ...string) string {
	results := make([]map[string]any, len(ids))
	for i, id := range ids {
		results[i] = map[string]any{
			"id":           id,
			"display_name": "Record " + id,
		}
	}

	meta := map[string]any{"count": count, "per_page": perPage}
	if nextCursor != "" {
		meta["next_cursor"] = nextCursor
	}
	if page > 0 {
		meta["page"] = page
	}

	body, _ := json.Marshal(map[string]any{
		"meta":     meta,
		"results":  results,
		"group_by": []any{},
	})
	return string(body)
}

// GroupRow is one aggregate row for GroupedBody.
type GroupRow struct {
	Key   string
	Name  string
	Count int
}

// GroupedBody builds a group-by response body.
func GroupedBody(count int, rows ...GroupRow) string {
	groups := make([]map[string]any, len(rows))
	for i, row := range rows {
		groups[i] = map[string]any{
			"key":              row.Key,
			"key_display_name": row.Name,
			"count":            row.Count,
		}
	}

	body, _ := json.Marshal(map[string]any{
		"meta":     map[string]any{"count": count, "page": 1, "per_page": 200},
		"group_by": groups,
	})
	return string(body)
}

// EntityBody builds a single-entity response body.
func EntityBody(id string) string {
	body, _ := json.Marshal(map[string]any{
		"id":           id,
		"display_name": "Record " + id,
	})
	return string(body)
}

// NewRateLimitResponse creates a 429 Too Many Requests response. Pass an
// empty retryAfter to omit the header.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Too many requests"}`,
		Headers:    map[string]string{},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewMalformedQueryResponse creates the 403 response the API sends for
// invalid query parameters.
func NewMalformedQueryResponse(message string) MockResponse {
	body, _ := json.Marshal(map[string]any{
		"error":   "Invalid query parameters error.",
		"message": message,
	})
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       string(body),
	}
}

// NewFlakyHandler fails the first n requests with 503, then delegates to
// the given response.
func NewFlakyHandler(n int, resp MockResponse) func(w http.ResponseWriter, r *http.Request) {
	var mu sync.Mutex
	failures := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		shouldFail := failures < n
		if shouldFail {
			failures++
		}
		mu.Unlock()

		if shouldFail {
			http.Error(w, `{"error": "unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		w.Write([]byte(resp.Body))
	}
}
