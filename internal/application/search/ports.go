package search

import "context"

// Embedder 文本向量化（外部服务）。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorFilter 向量检索的稀疏过滤条件；Types 为空表示不过滤类型。
type VectorFilter struct {
	Topic    string
	Country  string
	Year     int
	YearFrom int
	YearTo   int
	Types    []string
}

// VectorSearchResult 一页向量检索结果
type VectorSearchResult struct {
	Results []DocChunk
	HasMore bool
}

// VectorStore 定义编排层对向量库的最小依赖（port）。
type VectorStore interface {
	Search(ctx context.Context, vector []float32, limit, offset int, filter VectorFilter) (*VectorSearchResult, error)
	// FetchEmbeddings 返回已存储的向量，缺失的 id 不出现在结果中。
	FetchEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error)
	// Sample 按过滤条件随机抽样，用于兜底推荐。
	Sample(ctx context.Context, filter VectorFilter, limit int) ([]DocChunk, error)
}

// AnswerSynthesizer 基于片段合成要点式答案
type AnswerSynthesizer interface {
	SynthesizeAnswer(ctx context.Context, query string, snippets []Snippet) ([]string, error)
}

// IntentAnalyzer 查询意图分析
type IntentAnalyzer interface {
	AnalyzeIntent(ctx context.Context, query string) (*Intent, error)
}

// DiscoveryAnalyzer 基于候选摘要的发现类分析
type DiscoveryAnalyzer interface {
	DiscoverConnections(ctx context.Context, query string, window []CandidateSummary) ([]Connection, error)
	GenerateFollowUps(ctx context.Context, query string, window []CandidateSummary) ([]string, error)
	AnalyzeGaps(ctx context.Context, query string, window []CandidateSummary) ([]KnowledgeGap, error)
	ClusterInsights(ctx context.Context, query string, window []CandidateSummary) ([]InsightCluster, error)
	FindHiddenGems(ctx context.Context, query string, window []CandidateSummary) ([]HiddenGem, error)
}

// ContextAnalyzer hybrid 级别的外部上下文与时间推演分析
type ContextAnalyzer interface {
	LivingContext(ctx context.Context, query string, window []CandidateSummary) (*LivingContext, error)
	TemporalInsights(ctx context.Context, query string, window []CandidateSummary) (*TemporalInsights, error)
	CostAlignment(ctx context.Context, query string, window []CandidateSummary) (*CostAlignment, error)
}

// ResponseCache 组合响应缓存。实现必须并发安全；过期条目视为不存在。
// 缓存故障不影响请求，Get 在出错时返回 miss。
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}
