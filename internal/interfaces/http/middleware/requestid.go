// Package middleware 提供 HTTP 中间件
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"resource-search-api/internal/interfaces/http/dto"
	"resource-search-api/pkg/logger"
)

const (
	// RequestIDHeader 请求 ID 头
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLen = 128
)

// RequestID 注入请求 ID 与会话 ID 到日志上下文
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)

		ctx := logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID)
		if sessionID := dto.BindSessionID(c); sessionID != "" {
			ctx = logger.WithContext(ctx, logger.SessionIDKey, sessionID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}
