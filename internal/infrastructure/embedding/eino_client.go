package embedding

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"resource-search-api/internal/config"
)

// NewEinoEmbedder 创建基于 Eino 的 OpenAI 兼容 Embedder
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}

	ecfg := &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	if cfg.Dimension > 0 {
		dim := cfg.Dimension
		ecfg.Dimensions = &dim
	}

	embedder, err := openai.NewEmbedder(ctx, ecfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return embedder, nil
}
