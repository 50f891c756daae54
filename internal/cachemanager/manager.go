// Package cachemanager provides a typed in-process cache.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a typed key/value cache with per-entry expiry.
type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	GetOrSet(ctx context.Context, key K, create func() V, ttl time.Duration) V
	Delete(ctx context.Context, keys ...K) error
	Len() int
	Flush(ctx context.Context) error
}
