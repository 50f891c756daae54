package cachemanager

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type datasetKey string

type arena struct {
	name string
}

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

func TestInMemoryCacheManager_GetExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[datasetKey, *arena]("arenas", NoExpiration, DefaultCleanupInterval)
	a := &arena{name: "abc"}
	cache.GetOrSet(context.Background(), "ds:1", func() *arena { return a }, NoExpiration)

	got, ok := cache.Get(context.Background(), "ds:1")
	require.True(t, ok)
	require.Same(t, a, got)
}

func TestInMemoryCacheManager_GetMissing(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "missing")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetWrongType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)
	cache.cache.Set("food", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "food")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_Expiry(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)
	cache.GetOrSet(context.Background(), "k", func() string { return "v" }, time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := cache.Get(context.Background(), "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryCacheManager_GetOrSet(t *testing.T) {
	cache := NewInMemoryCacheManager[datasetKey, *arena]("arenas", NoExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	var created atomic.Int32
	create := func() *arena {
		created.Add(1)
		return &arena{name: "abc"}
	}

	const n = 32
	results := make([]*arena, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.GetOrSet(ctx, "ds:1", create, NoExpiration)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.Same(t, results[0], r, "all callers observe the stored value")
	}
	require.GreaterOrEqual(t, created.Load(), int32(1))

	again := cache.GetOrSet(ctx, "ds:1", create, NoExpiration)
	require.Same(t, results[0], again)
}

func TestInMemoryCacheManager_DeleteAndFlush(t *testing.T) {
	cache := NewInMemoryCacheManager[string, int]("test", NoExpiration, DefaultCleanupInterval)
	ctx := context.Background()
	for i, key := range []string{"a", "b", "c"} {
		cache.GetOrSet(ctx, key, func() int { return i + 1 }, NoExpiration)
	}
	require.Equal(t, 3, cache.Len())

	require.NoError(t, cache.Delete(ctx, "a", "b"))
	_, ok := cache.Get(ctx, "a")
	require.False(t, ok)
	require.Equal(t, 1, cache.Len())

	require.NoError(t, cache.Flush(ctx))
	require.Zero(t, cache.Len())
}
