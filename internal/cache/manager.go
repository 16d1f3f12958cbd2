// Package cache provides a small TTL cache and a read-through wrapper.
// Health probes use it so a tick hits each remote endpoint at most once.
package cache

import (
	"context"
	"time"
)

// Manager is the cache surface consumers depend on.
type Manager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}
