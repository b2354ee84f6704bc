package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"resource-search-api/internal/application/retrieval"
	"resource-search-api/internal/interfaces/http/dto"
	"resource-search-api/pkg/logger"
)

// ResourceIndexer 资源索引能力
type ResourceIndexer interface {
	IndexResources(ctx context.Context, resources []retrieval.Resource) (*retrieval.IndexResult, error)
	DeleteResources(ctx context.Context, ids []string) error
}

// IndexHandler 资源索引处理器
type IndexHandler struct {
	indexer ResourceIndexer
}

// NewIndexHandler 创建资源索引处理器
func NewIndexHandler(indexer ResourceIndexer) *IndexHandler {
	return &IndexHandler{indexer: indexer}
}

// IndexResources 批量索引资源
// @Summary 批量索引资源
// @Tags Resources
// @Accept json
// @Produce json
// @Param body body dto.IndexResourcesRequest true "资源列表"
// @Success 200 {object} dto.Response[dto.IndexResourcesResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/resources/index [post]
func (h *IndexHandler) IndexResources(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IndexResourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.indexer.IndexResources(ctx, req.ToResources())
	if err != nil {
		renderError(c, "index resources failed", err)
		return
	}
	resp := dto.ToIndexResourcesResponse(res)
	logger.Info(ctx, "resources indexed", "indexed", resp.Indexed, "skipped", len(resp.Skipped))
	dto.Success(c, resp)
}

// DeleteResources 批量删除资源向量
// @Summary 批量删除资源
// @Tags Resources
// @Accept json
// @Produce json
// @Param body body dto.DeleteResourcesRequest true "资源 ID"
// @Success 200 {object} dto.Response[any]
// @Router /v1/resources [delete]
func (h *IndexHandler) DeleteResources(c *gin.Context) {
	var req dto.DeleteResourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.indexer.DeleteResources(c.Request.Context(), req.IDs); err != nil {
		renderError(c, "delete resources failed", err)
		return
	}
	dto.Success(c, gin.H{"deleted": len(req.IDs)})
}
