package counters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_IncrementAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(2), got)

	got, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	require.Equal(t, int64(0), got)
}

func TestMemoryStore_ExpiryWithoutSweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.nowFn = func() time.Time { return now }

	_, err := s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)

	// Past the TTL the entry reads as absent even before any sweep runs,
	// and a fresh increment restarts the count at 1.
	now = now.Add(2 * time.Minute)
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(0), got)

	n, err := s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.nowFn = func() time.Time { return now }

	_, _ = s.Increment(ctx, "short", time.Minute)
	_, _ = s.Increment(ctx, "long", time.Hour)
	require.Equal(t, 2, s.Len())

	now = now.Add(5 * time.Minute)
	require.Equal(t, 1, s.Sweep())
	require.Equal(t, 1, s.Len())

	got, err := s.Get(ctx, "long")
	require.NoError(t, err)
	require.Equal(t, int64(1), got)
}

func TestMemoryStore_Expire(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, _ = s.Increment(ctx, "k", time.Hour)
	require.NoError(t, s.Expire(ctx, "k"))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(0), got)
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const workers = 64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = s.Increment(ctx, "k", time.Hour)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(workers), got)
}
