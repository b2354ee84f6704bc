// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"resource-search-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	searchHandler *handler.SearchHandler,
	indexHandler *handler.IndexHandler,
) {
	// 检索
	if searchHandler != nil {
		v1.GET("/search", searchHandler.Search)
		v1.GET("/search/intent", searchHandler.PreviewIntent)
		v1.POST("/recommendations", searchHandler.Recommend)
	}

	// 资源索引
	if indexHandler != nil {
		resources := v1.Group("/resources")
		{
			resources.POST("/index", indexHandler.IndexResources)
			resources.DELETE("", indexHandler.DeleteResources)
		}
	}
}
