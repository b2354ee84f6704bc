package retrieval

import "errors"

var (
	// ErrVectorDisabled 表示向量检索/索引能力未配置（向量库或 Embedder 不可用）。
	ErrVectorDisabled = errors.New("vector retrieval is disabled")
	// ErrInvalidResource 资源缺少必填字段
	ErrInvalidResource = errors.New("invalid resource")
)
