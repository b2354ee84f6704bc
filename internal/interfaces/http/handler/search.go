// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"resource-search-api/internal/application/search"
	"resource-search-api/internal/application/usage"
	"resource-search-api/internal/interfaces/http/dto"
	"resource-search-api/pkg/logger"
)

// SearchService 检索编排能力
type SearchService interface {
	Search(ctx context.Context, q search.Query) (*search.Outcome, error)
	PreviewIntent(ctx context.Context, text string) (*search.Intent, error)
	Recommend(ctx context.Context, req search.RecommendRequest) (*search.RecommendResult, error)
}

// UsageRecorder 异步记录检索使用事件
type UsageRecorder interface {
	RecordAsync(ctx context.Context, ev usage.Event)
}

// SearchHandler 检索处理器
type SearchHandler struct {
	svc   SearchService
	usage UsageRecorder
}

// NewSearchHandler 创建检索处理器；usage 可为 nil
func NewSearchHandler(svc SearchService, recorder UsageRecorder) *SearchHandler {
	return &SearchHandler{svc: svc, usage: recorder}
}

// Search 检索资源
// @Summary 检索资源
// @Description 语义检索 + 按增强级别附加分析结果
// @Tags Search
// @Produce json
// @Param q query string true "查询文本"
// @Param topic query string false "主题"
// @Param country query string false "国家"
// @Param year query int false "年份"
// @Param yearFrom query int false "起始年份"
// @Param yearTo query int false "截止年份"
// @Param sortBy query string false "relevance | newest | oldest"
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页条数" default(10)
// @Param enhance query string false "minimal | fast | hybrid | full"
// @Param X-Session-ID header string false "会话标识"
// @Success 200 {object} dto.Response[search.Response]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		dto.BadRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	sessionID := dto.BindSessionID(c)
	if sessionID != "" {
		ctx = logger.WithContext(ctx, logger.SessionIDKey, sessionID)
	}

	outcome, err := h.svc.Search(ctx, req.ToQuery())
	if err != nil {
		renderError(c, "search failed", err)
		return
	}

	if h.usage != nil && sessionID != "" {
		h.usage.RecordAsync(ctx, usage.Event{
			SessionID:   sessionID,
			Query:       req.Q,
			Filters:     req.Filters(),
			Level:       req.Enhance,
			ResultCount: len(outcome.Response.Items),
			CacheHit:    outcome.CacheHit,
		})
	}

	if outcome.CacheHit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	dto.SuccessRaw(c, outcome.Payload)
}

// PreviewIntent 意图预览
// @Summary 意图预览
// @Description 输入过程中的轻量意图识别
// @Tags Search
// @Produce json
// @Param q query string true "查询文本"
// @Success 200 {object} dto.Response[search.Intent]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/search/intent [get]
func (h *SearchHandler) PreviewIntent(c *gin.Context) {
	var req dto.IntentRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		dto.BadRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	intent, err := h.svc.PreviewIntent(c.Request.Context(), req.Q)
	if err != nil {
		renderError(c, "intent preview failed", err)
		return
	}
	dto.Success(c, intent)
}

// Recommend 资源推荐
// @Summary 资源推荐
// @Description 基于查询、已选资源与回答文本的多策略推荐
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.RecommendRequest true "推荐请求"
// @Success 200 {object} dto.Response[search.RecommendResult]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/recommendations [post]
func (h *SearchHandler) Recommend(c *gin.Context) {
	var req dto.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.Recommend(c.Request.Context(), req.ToRecommendRequest())
	if err != nil {
		renderError(c, "recommend failed", err)
		return
	}
	dto.Success(c, result)
}
