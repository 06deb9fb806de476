package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Counter counts requests in a fixed window. Incr returns the count after
// incrementing, with the key expiring at the end of its window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter counts windows in Redis so limits hold across instances.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, c.prefix+key)
	// Expiry a window past the bucket end keeps the key from living forever
	// without risking early reset.
	pipe.Expire(ctx, c.prefix+key, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	return incr.Val(), nil
}

// MemoryCounter is the in-process fallback used when Redis is not configured,
// and in tests.
type MemoryCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Keys embed the window bucket, so past buckets are never touched again.
	// Sweeping on every increment keeps the maps bounded by live windows.
	now := c.now()
	for k, expiry := range c.expires {
		if now.After(expiry) {
			delete(c.counts, k)
			delete(c.expires, k)
		}
	}

	if _, ok := c.counts[key]; !ok {
		c.expires[key] = now.Add(2 * window)
	}
	c.counts[key]++
	return c.counts[key], nil
}

// Limiter admits or rejects requests against resolved effective limits using
// a fixed-window counter keyed by (user, policy, window bucket).
type Limiter struct {
	counter Counter
	now     func() time.Time
}

func NewLimiter(counter Counter) *Limiter {
	return &Limiter{counter: counter, now: time.Now}
}

// Allow reports whether the request fits within limits. Bypass always admits.
func (l *Limiter) Allow(ctx context.Context, userID, policy string, limits domain.EffectiveLimits) (bool, error) {
	if limits.Bypass {
		return true, nil
	}

	windowSeconds := int64(limits.Window / time.Second)
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	bucket := l.now().Unix() / windowSeconds

	key := fmt.Sprintf("ratelimit:%s:%s:%d", userID, policy, bucket)
	count, err := l.counter.Incr(ctx, key, limits.Window)
	if err != nil {
		return false, err
	}

	return count <= int64(limits.PermitLimit), nil
}
