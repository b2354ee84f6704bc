package wire

import (
	"context"
	"fmt"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"resource-search-api/internal/application/retrieval"
	"resource-search-api/internal/application/search"
	"resource-search-api/internal/application/usage"
	"resource-search-api/internal/config"
	infraembedding "resource-search-api/internal/infrastructure/embedding"
	"resource-search-api/internal/infrastructure/llm"
	"resource-search-api/internal/infrastructure/messaging"
	"resource-search-api/internal/infrastructure/persistence/memory"
	"resource-search-api/internal/infrastructure/persistence/milvus"
	"resource-search-api/internal/infrastructure/persistence/qdrant"
	"resource-search-api/internal/infrastructure/persistence/redis"
	"resource-search-api/internal/interfaces/http/handler"
	"resource-search-api/internal/interfaces/http/middleware"
	"resource-search-api/pkg/logger"
)

// VectorBackend 选定的向量库实现，检索与索引共用同一仓储
type VectorBackend struct {
	Name   string
	Store  search.VectorStore
	Repo   retrieval.VectorRepository
	Health handler.HealthChecker
}

// ProvideRedisClientOptional 按需连接 Redis。共享缓存或去重依赖 Redis 时连接失败直接报错；
// 仅用于事件流与限流时降级为禁用。
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	required := cfg.Search.CacheProvider == "redis" ||
		(cfg.Usage.Enabled && cfg.Usage.DedupProvider == "redis")
	wanted := required || cfg.Usage.Enabled || cfg.Security.RateLimit.Enabled
	if !wanted {
		return nil, func() {}, nil
	}

	client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
	if err != nil {
		if required {
			return nil, nil, err
		}
		logger.Warn(ctx, "redis not available, usage tracking and rate limiting disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideVectorBackend 按 vector.provider 创建向量库仓储
func ProvideVectorBackend(ctx context.Context, cfg *config.Config) (*VectorBackend, func(), error) {
	dim := cfg.Embedding.Dimension
	switch cfg.Vector.Provider {
	case "qdrant":
		client, err := qdrant.NewClient(&cfg.Vector.Qdrant)
		if err != nil {
			return nil, nil, err
		}
		repo := qdrant.NewRepository(client, dim)
		cleanup := func() {
			_ = client.Close()
		}
		return &VectorBackend{Name: "qdrant", Store: repo, Repo: repo, Health: client}, cleanup, nil
	case "", "milvus":
		client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
		if err != nil {
			return nil, nil, err
		}
		repo := milvus.NewRepository(client, dim)
		cleanup := func() {
			_ = client.Close()
		}
		return &VectorBackend{Name: "milvus", Store: repo, Repo: repo, Health: client}, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unsupported vector provider: %s", cfg.Vector.Provider)
	}
}

// ProvideEmbedderOptional Embedder 不可用时检索请求失败，进程仍可启动提供探活
func ProvideEmbedderOptional(ctx context.Context, cfg *config.Config) einoembedding.Embedder {
	embedder, err := infraembedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, search disabled", "error", err.Error())
		return nil
	}
	return embedder
}

// ProvideQueryEmbedder 查询向量化
func ProvideQueryEmbedder(cfg *config.Config, embedder einoembedding.Embedder) *retrieval.Engine {
	return retrieval.NewEngine(embedder, cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimension)
}

// ProvideRetrievalIndexer 资源索引
func ProvideRetrievalIndexer(cfg *config.Config, embedder einoembedding.Embedder, backend *VectorBackend) *retrieval.Indexer {
	return retrieval.NewIndexer(embedder, backend.Repo, cfg.Embedding.BatchSize)
}

// ProvideAnalyzerOptional 未配置任何 LLM Provider 时返回 nil，增强分析全部降级
func ProvideAnalyzerOptional(ctx context.Context, cfg *config.Config, factory *llm.EinoFactory) *llm.Analyzer {
	if len(cfg.LLM.Providers) == 0 {
		logger.Warn(ctx, "no llm provider configured, enrichment disabled")
		return nil
	}
	return llm.NewAnalyzer(factory, cfg.LLM.DefaultProvider)
}

// ProvideResponseCache 按 search.cache_provider 选择缓存实现
func ProvideResponseCache(cfg *config.Config, redisClient *redis.Client) (search.ResponseCache, error) {
	switch cfg.Search.CacheProvider {
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("search.cache_provider=redis requires redis")
		}
		return redis.NewResponseCache(redisClient.Redis(), cfg.Search.CacheTTL), nil
	default:
		return memory.NewResponseCache(cfg.Search.CacheMaxEntries, cfg.Search.CacheTTL), nil
	}
}

// ProvideOrchestrator 组装检索编排器
func ProvideOrchestrator(cfg *config.Config, embedder *retrieval.Engine, backend *VectorBackend, cache search.ResponseCache, analyzer *llm.Analyzer) *search.Orchestrator {
	sc := cfg.Search
	ranker := search.NewDiversityRanker(sc.DiversityCap)

	deps := search.Dependencies{
		Embedder: embedder,
		Store:    backend.Store,
		Cache:    cache,
		Ranker:   ranker,
		Recommender: search.NewRecommender(embedder, backend.Store, ranker,
			search.WithCuratedTypes(sc.CuratedTypes),
			search.WithDefaultLimit(sc.RecommendationLimit),
		),
	}
	if analyzer != nil {
		deps.Answer = analyzer
		deps.Intent = analyzer
		deps.Discovery = analyzer
		deps.Context = analyzer
	}

	return search.NewOrchestrator(search.Config{
		RetrievalWindow:     sc.RetrievalWindow,
		DefaultPageSize:     sc.DefaultPageSize,
		MaxPageSize:         sc.MaxPageSize,
		DefaultLevel:        search.EnrichmentLevel(sc.DefaultEnrichment),
		MaxQueryLength:      sc.MaxQueryLength,
		MinPreviewLength:    sc.MinPreviewLength,
		RelatedLimit:        sc.RecommendationLimit,
		IntentMinConfidence: sc.IntentMinConfidence,
	}, deps)
}

// ProvideUsageTracker 事件流依赖 Redis；未启用时返回的 Tracker 为空操作
func ProvideUsageTracker(cfg *config.Config, redisClient *redis.Client) *usage.Tracker {
	if !cfg.Usage.Enabled || redisClient == nil {
		return usage.NewTracker(nil, nil)
	}

	var window usage.DedupWindow
	if cfg.Usage.DedupProvider == "redis" {
		window = redis.NewDedupWindow(redisClient.Redis(), cfg.Usage.DedupWindow)
	} else {
		window = memory.NewDedupWindow(cfg.Usage.DedupMaxEntries, cfg.Usage.DedupWindow)
	}
	producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen), cfg.Usage.Stream)
	return usage.NewTracker(window, producer)
}

// ProvideRateLimiter Redis 不可用时返回 nil，不限流
func ProvideRateLimiter(redisClient *redis.Client) middleware.RateLimiter {
	if redisClient == nil {
		return nil
	}
	return redis.NewRateLimiter(redisClient.Redis())
}

// ProvideHealthHandler 就绪检查覆盖 Redis 与向量库
func ProvideHealthHandler(cfg *config.Config, redisClient *redis.Client, backend *VectorBackend) *handler.HealthHandler {
	var redisCheck handler.HealthChecker
	if redisClient != nil {
		redisCheck = redisClient
	}
	return handler.NewHealthHandler(cfg.App.Version, redisCheck, backend.Health, backend.Name)
}
