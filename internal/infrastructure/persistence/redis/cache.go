package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resource-search-api/pkg/logger"
	"resource-search-api/pkg/metrics"
)

const (
	cacheProvider   = "redis"
	defaultCacheTTL = 10 * time.Minute
)

// ResponseCache Redis 响应缓存，多实例共享。
// 读写失败只记录日志，按 miss 处理。
type ResponseCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewResponseCache 创建响应缓存
func NewResponseCache(rdb redis.Cmdable, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &ResponseCache{rdb: rdb, ttl: ttl}
}

// Get 获取缓存值
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, span := tracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if IsNil(err) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			metrics.CacheOperationsTotal.WithLabelValues(cacheProvider, "get", "miss").Inc()
			return nil, false
		}
		span.RecordError(err)
		metrics.CacheOperationsTotal.WithLabelValues(cacheProvider, "get", "error").Inc()
		logger.Warn(ctx, "response cache read failed", "error", err.Error())
		return nil, false
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	metrics.CacheOperationsTotal.WithLabelValues(cacheProvider, "get", "hit").Inc()
	return val, true
}

// Set 设置缓存值
func (c *ResponseCache) Set(ctx context.Context, key string, value []byte) {
	ctx, span := tracer.Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", c.ttl.Milliseconds()),
		))
	defer span.End()

	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		span.RecordError(err)
		metrics.CacheOperationsTotal.WithLabelValues(cacheProvider, "set", "error").Inc()
		logger.Warn(ctx, "response cache write failed", "error", err.Error())
		return
	}
	metrics.CacheOperationsTotal.WithLabelValues(cacheProvider, "set", "ok").Inc()
}
