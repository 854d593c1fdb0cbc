package crm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*StatsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStatsCache(client, time.Minute), mr
}

func TestStatsCacheComputesOnceWhileWarm(t *testing.T) {
	cache, _ := newTestCache(t)

	var computes int32
	compute := func(ctx context.Context) (Stats, error) {
		atomic.AddInt32(&computes, 1)
		return Stats{TotalLeads: 12, ConversionRate: 0.25}, nil
	}

	first, err := cache.Get(context.Background(), compute)
	require.NoError(t, err)
	require.Equal(t, 12, first.TotalLeads)

	second, err := cache.Get(context.Background(), compute)
	require.NoError(t, err)
	require.Equal(t, first.TotalLeads, second.TotalLeads)
	require.EqualValues(t, 1, atomic.LoadInt32(&computes))
}

func TestStatsCacheInvalidateForcesRecompute(t *testing.T) {
	cache, _ := newTestCache(t)

	var computes int32
	compute := func(ctx context.Context) (Stats, error) {
		atomic.AddInt32(&computes, 1)
		return Stats{TotalLeads: int(atomic.LoadInt32(&computes))}, nil
	}

	_, err := cache.Get(context.Background(), compute)
	require.NoError(t, err)

	cache.Invalidate(context.Background())

	refreshed, err := cache.Get(context.Background(), compute)
	require.NoError(t, err)
	require.Equal(t, 2, refreshed.TotalLeads)
	require.EqualValues(t, 2, atomic.LoadInt32(&computes))
}

func TestStatsCacheDeduplicatesConcurrentMisses(t *testing.T) {
	cache, _ := newTestCache(t)

	var computes int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (Stats, error) {
		atomic.AddInt32(&computes, 1)
		<-release
		return Stats{TotalLeads: 5}, nil
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			stats, err := cache.Get(context.Background(), compute)
			require.NoError(t, err)
			require.Equal(t, 5, stats.TotalLeads)
		}()
	}
	close(start)
	// Give every goroutine a moment to reach the singleflight gate.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&computes))
}

func TestStatsCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)

	var computes int32
	compute := func(ctx context.Context) (Stats, error) {
		atomic.AddInt32(&computes, 1)
		return Stats{TotalLeads: 3}, nil
	}

	_, err := cache.Get(context.Background(), compute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.Get(context.Background(), compute)
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&computes))
}
