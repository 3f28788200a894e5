package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client), mr
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "notif:unread:u1", []byte("3"), time.Minute))
	got, err := c.Get(ctx, "notif:unread:u1")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "notif:unread:u1")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Delete(ctx, "a"))
	assert.False(t, mr.Exists("a"))
	assert.NoError(t, c.Delete(ctx))
}

func TestRedisCache_DeletePrefix(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "activity:task:t1", []byte("x"), time.Minute))
	require.NoError(t, c.Set(ctx, "activity:deal:d1", []byte("x"), time.Minute))
	require.NoError(t, c.Set(ctx, "stats:dashboard", []byte("x"), time.Minute))

	require.NoError(t, c.DeletePrefix(ctx, "activity:"))
	assert.False(t, mr.Exists("activity:task:t1"))
	assert.False(t, mr.Exists("activity:deal:d1"))
	assert.True(t, mr.Exists("stats:dashboard"))
}

func TestRedisRateLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	l := NewRedisRateLimiter(client, "ratelimit:")
	fixed := time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, _, err := l.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, retry, err := l.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 50*time.Second, retry)

	// Other keys have their own budget.
	ok, _, err = l.Allow(ctx, "user:u1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// The next window starts fresh.
	l.now = func() time.Time { return fixed.Add(time.Minute) }
	ok, _, err = l.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "activity:task:t1", []byte("feed"), time.Minute))
	require.NoError(t, c.Set(ctx, "stats:dashboard", []byte("s"), 0))

	got, err := c.Get(ctx, "activity:task:t1")
	require.NoError(t, err)
	assert.Equal(t, []byte("feed"), got)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "activity:task:t1")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)

	_, err = c.Get(ctx, "stats:dashboard")
	assert.NoError(t, err)

	require.NoError(t, c.DeletePrefix(ctx, "stats:"))
	_, err = c.Get(ctx, "stats:dashboard")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
}

func TestMemoryRateLimiter(t *testing.T) {
	l := NewMemoryRateLimiter()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, _, err := l.Allow(ctx, "k", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, retry, err := l.Allow(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
}

func TestMemoryRateLimiter_DropsIdleKeys(t *testing.T) {
	l := NewMemoryRateLimiter()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		ok, _, err := l.Allow(ctx, fmt.Sprintf("ip:10.0.%d.%d", i/256, i%256), 5, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 1000, l.Len())

	now = now.Add(time.Minute)
	ok, _, err := l.Allow(ctx, "ip:10.9.9.9", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, l.Len())
}

func TestMemoryRateLimiter_BoundedKeys(t *testing.T) {
	l := NewMemoryRateLimiterSize(3)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		_, _, err := l.Allow(ctx, key, 5, time.Minute)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, l.Len())
}

func TestMemoryRateLimiter_ActiveKeyKeepsItsBudget(t *testing.T) {
	l := NewMemoryRateLimiter()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, "user:u1", 2, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	now = now.Add(10 * time.Second)
	ok, retry, err := l.Allow(ctx, "user:u1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
}
