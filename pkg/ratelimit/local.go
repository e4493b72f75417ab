package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is an in-process token bucket per key, used when no Redis is
// configured. Quotas are not shared between processes. A bucket idle for a
// whole window is full again, so it is dropped and recreated on next use.
type LocalLimiter struct {
	mu        sync.Mutex
	limit     Limit
	limiters  map[string]*localBucket
	lastSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter creates a limiter that refills limit.Requests tokens per
// limit.Window with a burst of limit.Requests.
func NewLocalLimiter(limit Limit) *LocalLimiter {
	return &LocalLimiter{
		limit:    limit,
		limiters: make(map[string]*localBucket),
		now:      time.Now,
	}
}

// Allow takes one token for key.
func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	limiter := l.limiter(key, now)

	if !limiter.AllowN(now, 1) {
		return Decision{
			Allowed: false,
			ResetIn: l.refillInterval(),
		}, nil
	}

	return Decision{
		Allowed:   true,
		Remaining: int(limiter.TokensAt(now)),
		ResetIn:   l.refillInterval(),
	}, nil
}

func (l *LocalLimiter) limiter(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	bucket, ok := l.limiters[key]
	if !ok {
		bucket = &localBucket{limiter: rate.NewLimiter(rate.Every(l.refillInterval()), l.limit.Requests)}
		l.limiters[key] = bucket
	}

	bucket.lastSeen = now

	return bucket.limiter
}

// sweep drops idle buckets at most once per window. Callers hold l.mu.
func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.limit.Window {
		return
	}

	for key, bucket := range l.limiters {
		if now.Sub(bucket.lastSeen) >= l.limit.Window {
			delete(l.limiters, key)
		}
	}

	l.lastSweep = now
}

// Len reports how many keys are currently tracked.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.limiters)
}

func (l *LocalLimiter) refillInterval() time.Duration {
	return l.limit.Window / time.Duration(max(l.limit.Requests, 1))
}
