package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// fixedWindowScript 原子自增并在窗口首个请求时设置过期，返回窗口内计数
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RateLimiter 固定窗口计数限流，键随窗口过期
type RateLimiter struct {
	rdb redis.Scripter
}

func NewRateLimiter(rdb redis.Scripter) *RateLimiter {
	return &RateLimiter{rdb: rdb}
}

// Allow 窗口内第 limit+1 个请求起返回 false
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Allow")
	defer span.End()

	count, err := fixedWindowScript.Run(ctx, l.rdb, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	allowed := count <= int64(limit)
	span.SetAttributes(
		attribute.Int("ratelimit.limit", limit),
		attribute.Int64("ratelimit.count", count),
		attribute.Bool("ratelimit.allowed", allowed),
	)
	return allowed, nil
}
