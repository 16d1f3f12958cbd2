package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string, []string]("test", DefaultExpiration, DefaultCleanupInterval)

	_, found := c.Get(ctx, "models")
	require.False(t, found)

	c.Set(ctx, "models", []string{"a", "b"}, time.Minute)

	got, found := c.Get(ctx, "models")
	require.True(t, found)
	require.Equal(t, []string{"a", "b"}, got)
}

func TestInMemory_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string, int]("test", DefaultExpiration, DefaultCleanupInterval)

	c.Set(ctx, "k", 42, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, found := c.Get(ctx, "k")
	require.False(t, found)
}

func TestInMemory_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string, int]("test", DefaultExpiration, DefaultCleanupInterval)

	c.Set(ctx, "a", 1, time.Minute)
	c.Set(ctx, "b", 2, time.Minute)
	require.NoError(t, c.Delete(ctx, "a"))

	_, found := c.Get(ctx, "a")
	require.False(t, found)
	_, found = c.Get(ctx, "b")
	require.True(t, found)
}

func TestInMemory_Flush(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory[string, int]("test", DefaultExpiration, DefaultCleanupInterval)

	c.Set(ctx, "a", 1, time.Minute)
	require.NoError(t, c.Flush(ctx))

	_, found := c.Get(ctx, "a")
	require.False(t, found)
}

func TestReadThrough_LoadsOnceThenCaches(t *testing.T) {
	ctx := context.Background()
	calls := 0
	rt := NewReadThrough[string, []string, string](
		NewInMemory[string, []string]("test", DefaultExpiration, DefaultCleanupInterval),
		func(ctx context.Context, base string) ([]string, error) {
			calls++
			return []string{base + "/m1"}, nil
		},
		false,
	)

	first, err := rt.Get(ctx, "key", "http://llm", time.Minute)
	require.NoError(t, err)
	require.Equal(t, []string{"http://llm/m1"}, first)

	second, err := rt.Get(ctx, "key", "http://llm", time.Minute)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, calls, "second read should be served from cache")
}

func TestReadThrough_SkipCache(t *testing.T) {
	ctx := context.Background()
	calls := 0
	rt := NewReadThrough[string, int, struct{}](
		NewInMemory[string, int]("test", DefaultExpiration, DefaultCleanupInterval),
		func(ctx context.Context, _ struct{}) (int, error) {
			calls++
			return calls, nil
		},
		true,
	)

	v, err := rt.Get(ctx, "key", struct{}{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	v, err = rt.Get(ctx, "key", struct{}{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, v, "skip-cache mode must call the loader every time")
}

func TestReadThrough_LoaderErrorNotCached(t *testing.T) {
	ctx := context.Background()
	calls := 0
	rt := NewReadThrough[string, int, struct{}](
		NewInMemory[string, int]("test", DefaultExpiration, DefaultCleanupInterval),
		func(ctx context.Context, _ struct{}) (int, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("endpoint unreachable")
			}
			return 7, nil
		},
		false,
	)

	_, err := rt.Get(ctx, "key", struct{}{}, time.Minute)
	require.Error(t, err)

	v, err := rt.Get(ctx, "key", struct{}{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.Equal(t, 2, calls)
}

func TestReadThrough_GetWithRefresh(t *testing.T) {
	ctx := context.Background()
	calls := 0
	rt := NewReadThrough[string, string, struct{}](
		NewInMemory[string, string]("test", DefaultExpiration, DefaultCleanupInterval),
		func(ctx context.Context, _ struct{}) (string, error) {
			calls++
			return "fresh", nil
		},
		false,
	)

	v, err := rt.GetWithRefresh(ctx, "key", struct{}{}, 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "fresh", v)

	// Each refreshing read re-arms the TTL, so the entry outlives it.
	for i := 0; i < 3; i++ {
		time.Sleep(30 * time.Millisecond)
		v, err = rt.GetWithRefresh(ctx, "key", struct{}{}, 50*time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, "fresh", v)
	}
	require.Equal(t, 1, calls)
}
