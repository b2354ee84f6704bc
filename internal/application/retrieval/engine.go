package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"resource-search-api/pkg/metrics"
)

// Engine 查询侧的向量化入口，将 eino Embedder 适配为编排层需要的单文本接口。
type Engine struct {
	embedder  embedding.Embedder
	provider  string
	model     string
	dimension int
}

// NewEngine dimension > 0 时校验返回向量维度
func NewEngine(embedder embedding.Embedder, provider, model string, dimension int) *Engine {
	return &Engine{
		embedder:  embedder,
		provider:  provider,
		model:     model,
		dimension: dimension,
	}
}

func (e *Engine) Enabled() bool {
	return e != nil && e.embedder != nil
}

// Embed 向量化单条查询文本
func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	if !e.Enabled() {
		return nil, ErrVectorDisabled
	}
	q := strings.TrimSpace(text)
	if q == "" {
		return nil, fmt.Errorf("query is empty")
	}

	start := time.Now()
	v64, err := e.embedder.EmbedStrings(ctx, []string{q})
	metrics.LLMCallDuration.WithLabelValues(e.provider, e.model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		return nil, err
	}
	metrics.LLMCallTotal.WithLabelValues(e.provider, e.model, "success").Inc()

	if len(v64) == 0 || len(v64[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	if e.dimension > 0 && len(v64[0]) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(v64[0]), e.dimension)
	}
	return toFloat32(v64[0]), nil
}
