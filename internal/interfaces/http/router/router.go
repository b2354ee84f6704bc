// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resource-search-api/internal/config"
	"resource-search-api/internal/interfaces/http/handler"
	"resource-search-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Health *handler.HealthHandler
	Search *handler.SearchHandler
	Index  *handler.IndexHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  middleware.RateLimiter
}

// New 创建新的路由器；limiter 为 nil 时不限流
func New(cfg *config.Config, handlers Handlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) metricsPath() string {
	if p := r.cfg.Observability.Metrics.Path; p != "" {
		return p
	}
	return "/metrics"
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	probes := []string{"/health", "/ready", "/live", r.metricsPath()}

	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name, probes...))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(probes...))
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	if h := r.handlers.Health; h != nil {
		r.engine.GET("/health", h.Health)
		r.engine.GET("/ready", h.Ready)
		r.engine.GET("/live", h.Live)
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")
	v1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:           r.cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
		Burst:             r.cfg.Security.RateLimit.Burst,
		KeyPrefix:         "ratelimit:search",
	}, r.limiter))

	RegisterV1Routes(v1, r.handlers.Search, r.handlers.Index)
}
