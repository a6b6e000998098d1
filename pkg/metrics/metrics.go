// Package metrics provides the centralized Prometheus metrics registry for
// the OpenAlex client. All metrics are defined in their respective packages
// (client, cache, ratelimit, batch, pagination) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the OpenAlex client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - openalex_rate_limit_wait_seconds (Histogram): Time spent waiting for a dispatch slot
//
// Cache Metrics (pkg/cache):
//   - openalex_cache_hits_total (Counter): Cache hits
//   - openalex_cache_misses_total (Counter): Cache misses
//   - openalex_cache_size_bytes (Counter): Bytes written to the cache
//   - openalex_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - openalex_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - openalex_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - openalex_errors_total{kind} (Counter): Permanent failures by kind
//
// Retry Metrics (pkg/client):
//   - openalex_retries_total{kind} (Counter): Retry attempts by error kind
//   - openalex_retry_backoff_seconds{kind} (Histogram): Backoff duration by error kind
//   - openalex_retry_exhausted_total{kind} (Counter): Requests that exhausted max retries
//
// Batch Metrics (pkg/batch):
//   - openalex_executor_requests_total{outcome} (Counter): Executor requests by outcome
//   - openalex_executor_batch_size (Histogram): URLs per executor invocation
//   - openalex_batch_chunks_total{mode} (Counter): Sub-query chunks by execution mode
//
// Pagination Metrics (pkg/pagination):
//   - openalex_pages_total{endpoint} (Counter): Pages fetched by endpoint
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   rate(openalex_cache_hits_total[5m]) /
//   (rate(openalex_cache_hits_total[5m]) + rate(openalex_cache_misses_total[5m]))
//
//   # Request Error Rate
//   rate(openalex_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(openalex_request_duration_seconds_bucket[5m]))
//
//   # Retry Pressure
//   rate(openalex_retries_total[5m]) / rate(openalex_requests_total[5m])
