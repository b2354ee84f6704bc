// Package redis 提供基于 Redis 的响应缓存、去重窗口与限流器
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"resource-search-api/internal/config"
)

var tracer = otel.Tracer("redis")

const pingTimeout = 5 * time.Second

// Client 共享 Redis 连接，缓存、去重与限流复用同一连接池
type Client struct {
	rdb *redis.Client
}

// NewClient 建立连接池并在 ctx 内完成一次 PING
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis %s: %w", addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Redis 底层客户端
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Close 关闭连接池
func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 就绪探测
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// IsNil 键不存在
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
