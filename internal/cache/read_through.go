package cache

import (
	"context"
	"time"
)

// ReadThrough wraps a loader function with a cache. On a miss it invokes the
// loader and stores the result; loader errors are never cached.
type ReadThrough[K comparable, V any, I any] struct {
	cache     Manager[K, V]
	fn        func(ctx context.Context, input I) (V, error)
	skipCache bool
}

// NewReadThrough builds a read-through cache over fn. skipCache bypasses the
// cache entirely, for callers that want a hot path toggle.
func NewReadThrough[K comparable, V any, I any](
	cache Manager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	skipCache bool,
) *ReadThrough[K, V, I] {
	return &ReadThrough[K, V, I]{
		cache:     cache,
		fn:        fn,
		skipCache: skipCache,
	}
}

// Get returns the cached value for key or loads it with input.
func (r *ReadThrough[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.skipCache {
		return r.fn(ctx, input)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	value, err := r.fn(ctx, input)
	if err != nil {
		return value, err
	}

	r.cache.Set(ctx, key, value, ttl)
	return value, nil
}

// GetWithRefresh is Get with a TTL re-arm on cache hits.
func (r *ReadThrough[K, V, I]) GetWithRefresh(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.skipCache {
		return r.fn(ctx, input)
	}

	if value, ok := r.cache.GetWithRefresh(ctx, key, ttl); ok {
		return value, nil
	}

	value, err := r.fn(ctx, input)
	if err != nil {
		return value, err
	}

	r.cache.Set(ctx, key, value, ttl)
	return value, nil
}
