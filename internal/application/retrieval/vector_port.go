package retrieval

import "context"

// VectorRepository 定义索引侧对“向量存储”的最小依赖（port）。
// 由基础设施层提供具体实现（Milvus / Qdrant）。
type VectorRepository interface {
	EnsureResourceCollection(ctx context.Context) error
	// UpsertResources 以资源 id 为主键写入，重复写入覆盖旧向量。
	UpsertResources(ctx context.Context, resources []*VectorResource) error
	DeleteResources(ctx context.Context, ids []string) error
}

// VectorResource 一个资源对应一条向量
type VectorResource struct {
	ID      string
	Title   string
	URL     string
	Type    string
	Topic   string
	Country string
	Year    int
	Excerpt string
	Vector  []float32
}
