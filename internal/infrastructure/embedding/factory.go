package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"

	"resource-search-api/internal/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderHTTP   = "http"
	ProviderOllama = "ollama"
)

// NewEmbedder 按配置选择 Embedding 实现
func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI, "":
		return NewEinoEmbedder(ctx, cfg)
	case ProviderHTTP:
		return NewClient(cfg), nil
	case ProviderOllama:
		return NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
