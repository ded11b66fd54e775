package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Options tunes the in-memory cache. Zero values fall back to the
// documented defaults.
type Options struct {
	DefaultTTL      time.Duration // applied when Set receives ttl <= 0
	CleanupInterval time.Duration // janitor sweep period
	MaxEntries      int           // 0 means unbounded
}

// DefaultOptions mirrors the cache.memory config defaults.
func DefaultOptions() Options {
	return Options{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxEntries:      1000,
	}
}

// MemoryCache is an entry-count-bounded TTL cache. When full, the entry
// closest to expiry is evicted first.
type MemoryCache struct {
	mu     sync.RWMutex
	items  map[string]*cacheItem
	opts   Options
	stats  Stats
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type cacheItem struct {
	value  []byte
	expiry time.Time
}

// NewMemoryCache creates a cache and starts its janitor goroutine. Call
// Stop to release it.
func NewMemoryCache(opts Options) *MemoryCache {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultOptions().DefaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultOptions().CleanupInterval
	}

	mc := &MemoryCache{
		items:  make(map[string]*cacheItem),
		opts:   opts,
		stopCh: make(chan struct{}),
	}

	mc.wg.Add(1)
	go mc.cleanupExpired()

	return mc
}

// Get retrieves a value from the cache
func (mc *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	mc.mu.RLock()
	item, exists := mc.items[key]
	mc.mu.RUnlock()

	if !exists {
		atomic.AddInt64(&mc.stats.Misses, 1)
		return nil, false
	}

	if time.Now().After(item.expiry) {
		_ = mc.Delete(ctx, key)
		atomic.AddInt64(&mc.stats.Misses, 1)
		return nil, false
	}

	atomic.AddInt64(&mc.stats.Hits, 1)
	return item.value, true
}

// Set stores a value in the cache with a TTL
func (mc *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = mc.opts.DefaultTTL
	}

	item := &cacheItem{
		value:  value,
		expiry: time.Now().Add(ttl),
	}

	mc.mu.Lock()
	if _, exists := mc.items[key]; !exists {
		mc.makeRoomLocked()
	}
	mc.items[key] = item
	mc.mu.Unlock()

	atomic.AddInt64(&mc.stats.Sets, 1)
	return nil
}

// Delete removes a value from the cache
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.mu.Lock()
	if _, exists := mc.items[key]; exists {
		delete(mc.items, key)
		atomic.AddInt64(&mc.stats.Deletes, 1)
	}
	mc.mu.Unlock()
	return nil
}

// Clear removes all values from the cache
func (mc *MemoryCache) Clear(ctx context.Context) error {
	mc.mu.Lock()
	mc.items = make(map[string]*cacheItem)
	mc.mu.Unlock()
	return nil
}

// Has checks if a key exists in the cache without counting a hit or miss
func (mc *MemoryCache) Has(ctx context.Context, key string) bool {
	mc.mu.RLock()
	item, exists := mc.items[key]
	mc.mu.RUnlock()

	return exists && time.Now().Before(item.expiry)
}

// Stats returns cache statistics
func (mc *MemoryCache) Stats() Stats {
	stats := Stats{
		Hits:      atomic.LoadInt64(&mc.stats.Hits),
		Misses:    atomic.LoadInt64(&mc.stats.Misses),
		Sets:      atomic.LoadInt64(&mc.stats.Sets),
		Deletes:   atomic.LoadInt64(&mc.stats.Deletes),
		Evictions: atomic.LoadInt64(&mc.stats.Evictions),
	}
	mc.mu.RLock()
	stats.Entries = int64(len(mc.items))
	mc.mu.RUnlock()
	stats.MaxEntries = int64(mc.opts.MaxEntries)
	return stats
}

// Stop shuts down the janitor goroutine.
func (mc *MemoryCache) Stop() {
	close(mc.stopCh)
	mc.wg.Wait()
}

func (mc *MemoryCache) cleanupExpired() {
	defer mc.wg.Done()
	ticker := time.NewTicker(mc.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.removeExpired()
		case <-mc.stopCh:
			return
		}
	}
}

func (mc *MemoryCache) removeExpired() {
	now := time.Now()
	mc.mu.Lock()
	for key, item := range mc.items {
		if now.After(item.expiry) {
			delete(mc.items, key)
			atomic.AddInt64(&mc.stats.Evictions, 1)
		}
	}
	mc.mu.Unlock()
}

// makeRoomLocked evicts until one slot is free. Expired entries go first,
// then whichever live entry expires soonest. Caller holds mc.mu.
func (mc *MemoryCache) makeRoomLocked() {
	if mc.opts.MaxEntries <= 0 || len(mc.items) < mc.opts.MaxEntries {
		return
	}

	now := time.Now()
	for key, item := range mc.items {
		if now.After(item.expiry) {
			delete(mc.items, key)
			atomic.AddInt64(&mc.stats.Evictions, 1)
		}
	}

	for len(mc.items) >= mc.opts.MaxEntries {
		var oldestKey string
		var oldestExpiry time.Time
		for key, item := range mc.items {
			if oldestKey == "" || item.expiry.Before(oldestExpiry) {
				oldestKey = key
				oldestExpiry = item.expiry
			}
		}
		delete(mc.items, oldestKey)
		atomic.AddInt64(&mc.stats.Evictions, 1)
	}
}
