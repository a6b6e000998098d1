// Package cache provides optional Redis-backed caching of OpenAlex
// responses.
//
// OpenAlex sends no cache-control or ETag headers, so entries are stored
// under a fixed, configurable TTL keyed by the full request URL. The cache
// is a pure read-through layer: a miss is never an error for callers, and
// Redis failures degrade to uncached fetches.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, 5*time.Minute)
//
//	body, err := manager.Get(ctx, requestURL)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then manager.Set(ctx, requestURL, body)
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - openalex_cache_hits_total - Cache hits
//   - openalex_cache_misses_total - Cache misses
//   - openalex_cache_size_bytes - Bytes written to the cache
//   - openalex_cache_errors_total{operation} - Cache operation errors
package cache
