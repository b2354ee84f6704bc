// Package memory 提供进程内的缓存与去重窗口实现，用于单实例部署或 Redis 不可用时。
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"resource-search-api/pkg/metrics"
)

const (
	defaultMaxEntries = 10000
	defaultTTL        = 10 * time.Minute
	provider          = "memory"
)

// ResponseCache 基于 expirable LRU 的响应缓存，过期条目由后台定期清理。
type ResponseCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewResponseCache 创建响应缓存
func NewResponseCache(maxEntries int, ttl time.Duration) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ResponseCache{lru: expirable.NewLRU[string, []byte](maxEntries, nil, ttl)}
}

// Get 返回缓存值的副本
func (c *ResponseCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		metrics.CacheOperationsTotal.WithLabelValues(provider, "get", "miss").Inc()
		return nil, false
	}
	metrics.CacheOperationsTotal.WithLabelValues(provider, "get", "hit").Inc()
	return append([]byte(nil), v...), true
}

// Set 写入缓存，值会被复制
func (c *ResponseCache) Set(_ context.Context, key string, value []byte) {
	c.lru.Add(key, append([]byte(nil), value...))
	metrics.CacheOperationsTotal.WithLabelValues(provider, "set", "ok").Inc()
}

// Len 当前条目数（含尚未清理的过期条目）
func (c *ResponseCache) Len() int {
	return c.lru.Len()
}
