package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/ollama/ollama/api"

	"resource-search-api/internal/config"
)

const defaultOllamaHost = "http://localhost:11434"

// OllamaClient 本地 Ollama 向量化客户端
type OllamaClient struct {
	client    *api.Client
	model     string
	batchSize int
}

var _ embedding.Embedder = (*OllamaClient)(nil)

// NewOllamaClient 创建 Ollama 客户端；Endpoint 为空时连接本机默认端口
func NewOllamaClient(cfg *config.EmbeddingConfig) (*OllamaClient, error) {
	raw := cfg.Endpoint
	if raw == "" {
		raw = defaultOllamaHost
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama endpoint: %w", err)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	return &OllamaClient{
		client:    api.NewClient(base, &http.Client{Timeout: timeout}),
		model:     cfg.Model,
		batchSize: batchSize,
	}, nil
}

// EmbedStrings 实现 eino Embedder
func (c *OllamaClient) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := c.client.Embed(ctx, &api.EmbedRequest{
			Model: c.model,
			Input: texts[i:end],
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embed failed: %w", err)
		}
		if len(resp.Embeddings) != end-i {
			return nil, fmt.Errorf("ollama embed size mismatch: got %d, want %d", len(resp.Embeddings), end-i)
		}
		for _, v := range resp.Embeddings {
			row := make([]float64, len(v))
			for j, x := range v {
				row[j] = float64(x)
			}
			out = append(out, row)
		}
	}
	return out, nil
}
