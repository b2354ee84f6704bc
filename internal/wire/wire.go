//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"resource-search-api/internal/application/retrieval"
	"resource-search-api/internal/application/search"
	"resource-search-api/internal/application/usage"
	"resource-search-api/internal/config"
	"resource-search-api/internal/infrastructure/llm"
	"resource-search-api/internal/interfaces/http/handler"
	"resource-search-api/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RedisSet,
		VectorSet,
		EmbeddingSet,
		LLMSet,
		SearchSet,
		RouterSet,
	)
	return nil, nil, nil
}

// RedisSet Redis 提供者集合（共享缓存、去重、事件流、限流）
var RedisSet = wire.NewSet(
	ProvideRedisClientOptional,
	ProvideRateLimiter,
	ProvideUsageTracker,
)

// VectorSet 向量库提供者集合
var VectorSet = wire.NewSet(
	ProvideVectorBackend,
)

// EmbeddingSet Embedder 与查询向量化
var EmbeddingSet = wire.NewSet(
	ProvideEmbedderOptional,
	ProvideQueryEmbedder,
	ProvideRetrievalIndexer,
)

// LLMSet 增强分析
var LLMSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideAnalyzerOptional,
)

// SearchSet 检索编排
var SearchSet = wire.NewSet(
	ProvideResponseCache,
	ProvideOrchestrator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewSearchHandler,
	handler.NewIndexHandler,
	wire.Bind(new(handler.SearchService), new(*search.Orchestrator)),
	wire.Bind(new(handler.UsageRecorder), new(*usage.Tracker)),
	wire.Bind(new(handler.ResourceIndexer), new(*retrieval.Indexer)),
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
