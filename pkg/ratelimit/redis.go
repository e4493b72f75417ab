package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "hesab:ratelimit:"

// RedisLimiter is a fixed-window counter shared by every process pointed at
// the same Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	limit  Limit
	logger *slog.Logger
}

// NewRedisLimiter creates a limiter on client.
func NewRedisLimiter(client redis.UniversalClient, limit Limit, logger *slog.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		logger: logger,
	}
}

// Allow increments the counter for key in one MULTI/EXEC round trip. The
// window starts on first use, and a counter found without expiry gets one.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := keyPrefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, l.limit.Window)
		ttl = pipe.TTL(ctx, redisKey)

		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count rate limit request: %w", err)
	}

	count := incr.Val()

	decision := Decision{
		Allowed:   count <= int64(l.limit.Requests),
		Remaining: max(l.limit.Requests-int(count), 0),
		ResetIn:   ttl.Val(),
	}

	if !decision.Allowed {
		l.logger.WarnContext(ctx, "Rate limit exceeded", "key", key, "count", count, "reset_in", ttl.Val())
	}

	return decision, nil
}

// Close closes the Redis client.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
