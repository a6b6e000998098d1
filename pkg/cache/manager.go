package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL applies when the manager is constructed without a TTL.
const DefaultTTL = 5 * time.Minute

var (
	// ErrCacheMiss indicates the requested URL was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewManager creates a new cache manager with Redis backend. A non-positive
// ttl falls back to DefaultTTL.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		redis: redisClient,
		ttl:   ttl,
	}
}

// TTL returns the fixed entry lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Get retrieves the cached response body for a request URL.
// Returns ErrCacheMiss if the URL is not cached or the entry has expired.
func (m *Manager) Get(ctx context.Context, rawURL string) ([]byte, error) {
	data, err := m.redis.Get(ctx, Key(rawURL)).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.Inc()
	return entry.Data, nil
}

// Set stores a response body under the request URL for the manager's TTL.
// Expiry is delegated to Redis.
func (m *Manager) Set(ctx context.Context, rawURL string, body []byte) error {
	entry := Entry{
		URL:      rawURL,
		Data:     body,
		CachedAt: time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, Key(rawURL), data, m.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.Add(float64(len(data)))
	return nil
}

// Delete removes the cached response for a request URL.
func (m *Manager) Delete(ctx context.Context, rawURL string) error {
	if err := m.redis.Del(ctx, Key(rawURL)).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
