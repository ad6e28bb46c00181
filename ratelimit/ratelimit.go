package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed   bool
	Count     int64
	Limit     int64
	ResetAt   time.Time
	Remaining int64
}

func decide(n, limit int64, reset time.Time) Decision {
	return Decision{
		Allowed:   n <= limit,
		Count:     n,
		Limit:     limit,
		ResetAt:   reset,
		Remaining: max(0, limit-n),
	}
}

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RedisLimiter shares counters between replicas. The first request of a
// window sets the expiry; later requests only increment.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := "rl:" + key
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, l.window)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	reset := l.now().Add(l.window)
	if d := ttl.Val(); d > 0 {
		reset = l.now().Add(d)
	}
	return decide(incr.Val(), l.limit, reset), nil
}

// LocalLimiter keeps counters in process memory. It is used when no Redis is
// configured, so limits apply per replica.
type LocalLimiter struct {
	mu      sync.Mutex
	limit   int64
	window  time.Duration
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	count int64
	reset time.Time
}

func NewLocalLimiter(limit int64, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.reset) {
		l.prune(now)
		b = &bucket{reset: now.Add(l.window)}
		l.buckets[key] = b
	}
	b.count++
	return decide(b.count, l.limit, b.reset), nil
}

func (l *LocalLimiter) prune(now time.Time) {
	for k, b := range l.buckets {
		if !now.Before(b.reset) {
			delete(l.buckets, k)
		}
	}
}
