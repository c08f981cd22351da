package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window counter limiter shared by every process pointing at
// the same Redis. Counters live under prefix:name:key:windowIndex and expire
// with their window.
type Redis struct {
	rdb    redis.Cmdable
	rules  Rules
	prefix string
	now    func() time.Time
}

type RedisOption func(*Redis)

func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = strings.Trim(prefix, ":") }
}

func NewRedis(rdb redis.Cmdable, rules Rules, opts ...RedisOption) *Redis {
	r := &Redis{
		rdb:    rdb,
		rules:  rules,
		prefix: "ratelimit",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) TryAcquire(ctx context.Context, name, key string) (Result, error) {
	rule, err := r.rules.lookup(name)
	if err != nil {
		return Result{}, err
	}

	now := r.now()
	window := now.UnixMilli() / rule.Window.Milliseconds()
	counterKey := fmt.Sprintf("%s:%s:%s:%d", r.prefix, name, key, window)

	pipe := r.rdb.Pipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.PExpire(ctx, counterKey, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", name, err)
	}

	if incr.Val() > int64(rule.Limit) {
		windowEnd := time.UnixMilli((window + 1) * rule.Window.Milliseconds())
		return Result{OK: false, RetryAfter: windowEnd.Sub(now)}, nil
	}
	return Result{OK: true}, nil
}
