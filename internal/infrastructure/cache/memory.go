package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"golang.org/x/time/rate"
)

var (
	_ ports.Cache       = (*MemoryCache)(nil)
	_ ports.RateLimiter = (*MemoryRateLimiter)(nil)
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a process-local cache used when REDIS_URL is unset and in tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || (!e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)) {
		return nil, ports.ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
	return nil
}

// DefaultLimiterKeys bounds how many client buckets a MemoryRateLimiter keeps.
const DefaultLimiterKeys = 10000

type limiterEntry struct {
	lim      *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

// MemoryRateLimiter keeps a token bucket per key. The bucket holds limit
// tokens and refills at limit per window, which approximates the Redis fixed
// window for a single instance. Buckets live in an LRU and are dropped once
// idle for a full window, when a dropped bucket would have refilled anyway.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	limiters  *lru.Cache[string, *limiterEntry]
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return NewMemoryRateLimiterSize(DefaultLimiterKeys)
}

// NewMemoryRateLimiterSize keeps at most size buckets, evicting the least
// recently used key when full.
func NewMemoryRateLimiterSize(size int) *MemoryRateLimiter {
	if size <= 0 {
		size = DefaultLimiterKeys
	}
	limiters, err := lru.New[string, *limiterEntry](size)
	if err != nil {
		panic(err)
	}
	return &MemoryRateLimiter{limiters: limiters, now: time.Now}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if limit <= 0 || window <= 0 {
		return true, 0, nil
	}
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= window {
		l.sweep(now)
		l.lastSweep = now
	}
	e, ok := l.limiters.Get(key)
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit), window: window}
		l.limiters.Add(key, e)
	}
	e.lastSeen = now
	l.mu.Unlock()

	res := e.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, window, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

// sweep drops buckets idle for at least their window. Callers hold l.mu.
func (l *MemoryRateLimiter) sweep(now time.Time) {
	for _, key := range l.limiters.Keys() {
		if e, ok := l.limiters.Peek(key); ok && now.Sub(e.lastSeen) >= e.window {
			l.limiters.Remove(key)
		}
	}
}

// Len reports how many client buckets are currently held.
func (l *MemoryRateLimiter) Len() int {
	return l.limiters.Len()
}
