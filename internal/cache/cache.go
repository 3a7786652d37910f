package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache holds conversion responses for the lifetime of one run
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a cache key for a request identity under a strategy namespace.
// The identity (a reference URL or document content) is hashed.
func Key(strategy string, identity []byte) string {
	hash := sha256.Sum256(identity)
	return "finstate:v1:" + strategy + ":" + hex.EncodeToString(hash[:])
}
