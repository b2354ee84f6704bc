// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"resource-search-api/internal/interfaces/http/dto"
	"resource-search-api/pkg/logger"
	"resource-search-api/pkg/metrics"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Enabled 是否启用限流
	Enabled bool
	// RequestsPerSecond 每个客户端每秒请求数
	RequestsPerSecond int
	// Burst 突发容量，计入窗口上限
	Burst int
	// KeyPrefix Redis Key 前缀
	KeyPrefix string
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP + 路由的滑动窗口限流
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.Burst < 0 {
		cfg.Burst = 0
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}
	limit := cfg.RequestsPerSecond + cfg.Burst

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := cfg.KeyPrefix + ":" + c.ClientIP() + ":" + route

		allowed, err := limiter.Allow(c.Request.Context(), key, limit, time.Second)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		if !allowed {
			metrics.RateLimitRejected.WithLabelValues(route).Inc()
			dto.TooManyRequests(c)
			return
		}

		c.Next()
	}
}
