package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestMemoryCacheRoundTripsTypedValues(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "quote:BTCUSDT", quote{Symbol: "BTCUSDT", Price: 64000.5}, time.Minute))

	var got quote
	require.NoError(t, mc.Get(ctx, "quote:BTCUSDT", &got))
	require.Equal(t, quote{Symbol: "BTCUSDT", Price: 64000.5}, got)

	var s string
	require.NoError(t, mc.Set(ctx, "raw", "hello", 0))
	require.NoError(t, mc.Get(ctx, "raw", &s))
	require.Equal(t, "hello", s)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", 1, time.Second))
	now = now.Add(2 * time.Second)

	var v int
	require.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	for _, k := range []string{"forecast:30", "forecast:7", "price:BTCUSDT"} {
		require.NoError(t, mc.Set(ctx, k, k, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, "forecast:*"))

	ok, err := mc.Exists(ctx, "forecast:30", "forecast:7")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = mc.Exists(ctx, "price:BTCUSDT")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Millisecond); return now }

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	require.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.Equal(t, 1, v)
}

func TestMemoryCacheTryLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "retrain:data", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = mc.TryLock(ctx, "retrain:data", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "retrain:data"))
	ok, err = mc.TryLock(ctx, "retrain:data", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLayeredCacheFillsL1FromShared(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryCache()
	lc := NewLayeredCache(shared)
	defer lc.Close()

	require.NoError(t, shared.Set(ctx, "forecast:30", quote{Symbol: "BTCUSDT", Price: 1}, time.Minute))

	var got quote
	require.NoError(t, lc.Get(ctx, "forecast:30", &got))
	require.Equal(t, "BTCUSDT", got.Symbol)

	require.NoError(t, shared.Delete(ctx, "forecast:30"))
	got = quote{}
	require.NoError(t, lc.Get(ctx, "forecast:30", &got), "served from L1")
	require.Equal(t, 1.0, got.Price)

	require.NoError(t, lc.DeleteByPattern(ctx, "forecast:*"))
	require.ErrorIs(t, lc.Get(ctx, "forecast:30", &got), ErrCacheMiss)
}
