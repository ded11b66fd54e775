package cache

import (
	"context"
	"time"
)

// Cache is the read-through cache used in front of external directory
// APIs and the hot HTTP endpoints.
type Cache interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value in the cache with a TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache
	Clear(ctx context.Context) error

	// Has checks if a key exists in the cache
	Has(ctx context.Context, key string) bool
}

// Stats provides counters about cache usage
type Stats struct {
	Hits       int64
	Misses     int64
	Sets       int64
	Deletes    int64
	Evictions  int64
	Entries    int64
	MaxEntries int64
}

// StatsProvider interface for caches that expose statistics
type StatsProvider interface {
	Stats() Stats
}
