package handler

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"resource-search-api/internal/application/retrieval"
	"resource-search-api/internal/application/search"
	"resource-search-api/internal/interfaces/http/dto"
	"resource-search-api/pkg/errors"
	"resource-search-api/pkg/logger"
)

// toAppError 应用层哨兵错误 → AppError
func toAppError(err error) *errors.AppError {
	switch {
	case errors.IsAppError(err):
		return errors.AsAppError(err)
	case stderrors.Is(err, search.ErrInvalidQuery):
		return errors.ErrInvalidQuery.WithDetail(err.Error()).WithError(err)
	case stderrors.Is(err, retrieval.ErrInvalidResource):
		return errors.ErrInvalidParam.WithDetail(err.Error()).WithError(err)
	case stderrors.Is(err, search.ErrEmbedding):
		return errors.ErrEmbeddingFailed.WithError(err)
	case stderrors.Is(err, search.ErrRetrieval):
		return errors.ErrRetrievalFailed.WithError(err)
	case stderrors.Is(err, search.ErrNotConfigured), stderrors.Is(err, retrieval.ErrVectorDisabled):
		return errors.ErrServiceUnavailable.WithError(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.ErrServiceUnavailable.WithDetail("request timed out").WithError(err)
	default:
		return errors.ErrInternalError.WithError(err)
	}
}

// renderError 输出错误响应；5xx 记录错误日志
func renderError(c *gin.Context, msg string, err error) {
	appErr := toAppError(err)
	if appErr.HTTPStatus >= 500 {
		logger.Error(c.Request.Context(), msg, err, "code", string(appErr.Code))
	} else {
		logger.Debug(c.Request.Context(), msg, "error", err.Error())
	}
	dto.AppError(c, appErr)
}
