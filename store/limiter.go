package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/partyserver/logger"
)

// Limiter decides whether one more command from ident is allowed.
type Limiter interface {
	Allow(ctx context.Context, ident string) bool
}

// RedisLimiter is a fixed-window counter using INCR/EXPIRE. Redis errors fail
// open so the game stays playable when redis is down.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "party"
	}
	if window <= 0 {
		window = time.Second
	}
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, ident string) bool {
	if l.limit <= 0 {
		return true
	}
	key := rateKey(l.prefix, ident, l.window)

	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		logger.Log.Warnw("rate limiter unavailable", "conn", ident, "error", err)
		return true
	}
	if n == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			logger.Log.Warnw("rate limiter expire", "conn", ident, "error", err)
		}
	}
	return n <= int64(l.limit)
}

// NopLimiter allows everything.
type NopLimiter struct{}

func (NopLimiter) Allow(context.Context, string) bool { return true }
