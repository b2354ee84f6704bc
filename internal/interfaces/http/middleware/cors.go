// Package middleware 提供 HTTP 中间件
package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	defaultCORSMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Origin", "Content-Type", RequestIDHeader, "X-Session-ID"}
	exposedHeaders     = []string{RequestIDHeader, "X-Trace-ID", "X-Cache"}
)

// CORSConfig 跨域配置，空字段取默认值
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// CORS 来源支持 https://*.example.org 形式；允许任意来源时不发送凭证头
func CORS(cfg CORSConfig) gin.HandlerFunc {
	origins := orDefault(cfg.AllowedOrigins, []string{"*"})
	anyOrigin := slices.Contains(origins, "*")

	return cors.New(cors.Config{
		AllowAllOrigins:  anyOrigin,
		AllowOrigins:     originsFor(origins, anyOrigin),
		AllowWildcard:    !anyOrigin,
		AllowMethods:     orDefault(cfg.AllowedMethods, defaultCORSMethods),
		AllowHeaders:     orDefault(cfg.AllowedHeaders, defaultCORSHeaders),
		ExposeHeaders:    exposedHeaders,
		AllowCredentials: !anyOrigin,
		MaxAge:           12 * time.Hour,
	})
}

func originsFor(origins []string, anyOrigin bool) []string {
	if anyOrigin {
		return nil
	}
	return origins
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
