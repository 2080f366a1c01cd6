package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllowDrainsAndRefills(t *testing.T) {
	l := New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("binance", 2, 1))
	require.True(t, l.Allow("binance", 2, 1))
	require.False(t, l.Allow("binance", 2, 1))

	now = now.Add(time.Second)
	require.True(t, l.Allow("binance", 2, 1))
	require.True(t, l.Allow("other", 2, 1), "buckets are per key")
}

func TestWaitHonoursContext(t *testing.T) {
	l := New()
	require.NoError(t, l.Wait(context.Background(), "k", 1, 0.001))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l.Wait(ctx, "k", 1, 0.001), context.DeadlineExceeded)
}

func TestWaitReturnsOnceRefilled(t *testing.T) {
	l := New()
	require.NoError(t, l.Wait(context.Background(), "k", 1, 100))
	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "k", 1, 100))
	require.Less(t, time.Since(start), time.Second)
}
