package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

const keyPrefix = "openalex:resp:"

// Key derives the deterministic Redis key for a request URL. The URL is
// hashed because batched ID filters routinely push URLs past practical key
// lengths.
func Key(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return keyPrefix + hex.EncodeToString(sum[:])
}
