// Package cache provides pluggable caching for module metadata lookups.
//
// Backends:
//   - FileCache: file-based cache for CLI usage
//   - MemoryCache: in-process cache for tests and short-lived runs
//   - RedisCache: shared cache for CI and server deployments
//   - NullCache: disables caching
//
// Keys are generated through a [Keyer] so that different deployments can
// namespace entries (see [ScopedKeyer]).
package cache

import (
	"context"
	"time"
)

// Cache is the storage interface shared by all backends.
type Cache interface {
	// Get retrieves a value. The boolean reports whether the key was
	// present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A non-positive TTL stores
	// the entry without expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer generates cache keys for module variant descriptors.
type Keyer interface {
	// VariantKey generates a key for a module variant descriptor.
	VariantKey(owner, variant string) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// VariantKey generates a key for a module variant descriptor.
func (k *DefaultKeyer) VariantKey(owner, variant string) string {
	return hashKey("variant", owner, variant)
}
