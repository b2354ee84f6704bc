package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker 可探活的依赖
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	version    string
	redis      HealthChecker
	vector     HealthChecker
	vectorName string
}

// NewHealthHandler 创建健康检查处理器。redis 为 nil 表示未启用；向量库为必需依赖。
func NewHealthHandler(version string, redis HealthChecker, vector HealthChecker, vectorName string) *HealthHandler {
	if vectorName == "" {
		vectorName = "vector"
	}
	return &HealthHandler{
		version:    version,
		redis:      redis,
		vector:     vector,
		vectorName: vectorName,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// Ready 就绪检查接口
// @Summary 就绪检查
// @Description 检查 Redis 与向量库是否可用
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]*readinessCheck{
		"redis": {Status: "disabled"},
	}
	ready := true

	if h.redis != nil {
		checks["redis"] = probe(ctx, h.redis)
		ready = ready && checks["redis"].Status == "ok"
	}

	if h.vector == nil {
		checks[h.vectorName] = &readinessCheck{Status: "missing", Error: "vector store not configured"}
		ready = false
	} else {
		checks[h.vectorName] = probe(ctx, h.vector)
		ready = ready && checks[h.vectorName].Status == "ok"
	}

	resp := readinessResponse{
		Status: "ok",
		Checks: checks,
	}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

func probe(ctx context.Context, checker HealthChecker) *readinessCheck {
	start := time.Now()
	err := checker.HealthCheck(ctx)
	check := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = "error"
		check.Error = err.Error()
	}
	return check
}
