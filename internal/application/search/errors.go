package search

import "errors"

var (
	// ErrInvalidQuery 查询参数不合法，在任何外部调用前拒绝。
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbedding 向量化失败（请求致命）。
	ErrEmbedding = errors.New("embedding failed")
	// ErrRetrieval 主向量检索失败（请求致命）。
	ErrRetrieval = errors.New("retrieval failed")
	// ErrNotConfigured 编排器缺少必需依赖。
	ErrNotConfigured = errors.New("search orchestrator not configured")
)
