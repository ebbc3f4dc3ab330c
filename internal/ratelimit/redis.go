package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoStore is returned when a RedisLimiter has no client to talk to.
var ErrNoStore = errors.New("rate limit store unavailable")

// RedisLimiter is a fixed-window limiter shared by every process pointed at
// the same Redis. Keys are "rl:<name>:<key>".
type RedisLimiter struct {
	rdb    *redis.Client
	name   string
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a limiter admitting limit events per window per key.
func NewRedisLimiter(rdb *redis.Client, name string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, name: name, limit: limit, window: window}
}

// Allow increments the key's counter, arming its expiry on the first hit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l.rdb == nil {
		return Decision{}, ErrNoStore
	}

	rk := fmt.Sprintf("rl:%s:%s", l.name, key)

	cnt, err := l.rdb.Incr(ctx, rk).Result()
	if err != nil {
		return Decision{}, err
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, rk, l.window).Err(); err != nil {
			return Decision{}, err
		}
	}

	if cnt > int64(l.limit) {
		ttl, err := l.rdb.TTL(ctx, rk).Result()
		if err != nil || ttl < 0 {
			// A key that lost its expiry would block forever; re-arm it.
			_ = l.rdb.Expire(ctx, rk, l.window).Err()
			ttl = l.window
		}
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}

	return Decision{Allowed: true, Remaining: l.limit - int(cnt)}, nil
}
