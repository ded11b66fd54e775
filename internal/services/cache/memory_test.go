package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts Options) *MemoryCache {
	t.Helper()
	mc := NewMemoryCache(opts)
	t.Cleanup(mc.Stop)
	return mc
}

func TestMemoryCache_SetGet(t *testing.T) {
	mc := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), time.Minute))

	got, ok := mc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	_, ok = mc.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	mc := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 20*time.Millisecond))

	_, ok := mc.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok = mc.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, mc.Has(ctx, "k"))
}

func TestMemoryCache_DefaultTTL(t *testing.T) {
	mc := newTestCache(t, Options{DefaultTTL: 25 * time.Millisecond, CleanupInterval: time.Hour})
	ctx := context.Background()

	// ttl <= 0 falls back to the configured default.
	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 0))
	require.True(t, mc.Has(ctx, "k"))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, mc.Has(ctx, "k"))
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	mc := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, mc.Set(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, mc.Delete(ctx, "a"))
	assert.False(t, mc.Has(ctx, "a"))
	assert.True(t, mc.Has(ctx, "b"))

	require.NoError(t, mc.Clear(ctx))
	assert.False(t, mc.Has(ctx, "b"))
}

func TestMemoryCache_MaxEntriesEviction(t *testing.T) {
	mc := newTestCache(t, Options{
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Hour,
		MaxEntries:      3,
	})
	ctx := context.Background()

	// "short" expires soonest, so it is the eviction victim.
	require.NoError(t, mc.Set(ctx, "short", []byte("1"), 10*time.Second))
	require.NoError(t, mc.Set(ctx, "mid", []byte("2"), time.Minute))
	require.NoError(t, mc.Set(ctx, "long", []byte("3"), time.Hour))

	require.NoError(t, mc.Set(ctx, "new", []byte("4"), time.Hour))

	assert.False(t, mc.Has(ctx, "short"))
	assert.True(t, mc.Has(ctx, "mid"))
	assert.True(t, mc.Has(ctx, "long"))
	assert.True(t, mc.Has(ctx, "new"))

	stats := mc.Stats()
	assert.Equal(t, int64(3), stats.Entries)
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestMemoryCache_OverwriteDoesNotEvict(t *testing.T) {
	mc := newTestCache(t, Options{
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Hour,
		MaxEntries:      2,
	})
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, mc.Set(ctx, "b", []byte("2"), time.Minute))

	// Replacing an existing key must not push anything out.
	require.NoError(t, mc.Set(ctx, "a", []byte("updated"), time.Minute))

	assert.True(t, mc.Has(ctx, "a"))
	assert.True(t, mc.Has(ctx, "b"))

	got, ok := mc.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, []byte("updated"), got)
}

func TestMemoryCache_Stats(t *testing.T) {
	mc := newTestCache(t, DefaultOptions())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, mc.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
	}
	mc.Get(ctx, "k0")
	mc.Get(ctx, "k1")
	mc.Get(ctx, "nope")

	stats := mc.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(3), stats.Sets)
	assert.Equal(t, int64(3), stats.Entries)
}
