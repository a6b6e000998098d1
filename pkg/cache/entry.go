package cache

import "time"

// Entry is a cached OpenAlex response body with the metadata needed to
// reason about staleness. Expiry is enforced by the Redis TTL; CachedAt is
// kept for diagnostics.
type Entry struct {
	// URL is the full request URL the body was fetched from.
	URL string `json:"url"`

	// Data is the raw JSON response body.
	Data []byte `json:"data"`

	// CachedAt is when the response was stored.
	CachedAt time.Time `json:"cached_at"`
}

// Age returns how long ago the entry was cached.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}
