// Package middleware 提供 HTTP 中间件
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"resource-search-api/pkg/metrics"
)

// Metrics Prometheus 指标采集中间件；skipPaths 中的路由（探活、/metrics）不计入
func Metrics(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}
		if path == "" {
			path = "unmatched"
		}
		start := time.Now()
		method := c.Request.Method

		if reqSize := float64(c.Request.ContentLength); reqSize > 0 {
			metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(reqSize)
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if respSize := float64(c.Writer.Size()); respSize > 0 {
			metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(respSize)
		}
	}
}
