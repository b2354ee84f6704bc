// Package embedding 提供 Embedding 服务客户端，统一实现 eino embedding.Embedder。
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"golang.org/x/sync/errgroup"

	"resource-search-api/internal/config"
)

const (
	defaultHTTPModel     = "BAAI/bge-m3"
	defaultHTTPBatchSize = 32
	// maxInflightBatches 单次 Embed 内并发请求的批次数上限
	maxInflightBatches = 4
)

// Client 自建 Embedding 服务客户端：POST {endpoint}/embed，body {texts, model}
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	batchSize  int
	httpClient *http.Client
}

var _ embedding.Embedder = (*Client)(nil)

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	TokensUsed int         `json:"tokens_used"`
}

func NewClient(cfg *config.EmbeddingConfig) *Client {
	c := &Client{
		endpoint:   resolveEmbedURL(cfg.Endpoint),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if c.model == "" {
		c.model = defaultHTTPModel
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultHTTPBatchSize
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = 30 * time.Second
	}
	return c
}

// resolveEmbedURL 未带路径的地址补全为 /embed；非法地址原样保留，请求时报错
func resolveEmbedURL(endpoint string) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	u, err := url.Parse(endpoint)
	if err != nil || endpoint == "" {
		return endpoint
	}
	if u.Path == "" {
		u.Path = "/embed"
	}
	return u.String()
}

// EmbedStrings 实现 eino Embedder
func (c *Client) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	vecs, err := c.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(vecs))
	for i, v := range vecs {
		out[i] = make([]float64, len(v))
		for j, x := range v {
			out[i][j] = float64(x)
		}
	}
	return out, nil
}

// Embed 分批并发请求，结果保持输入顺序
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	if c.endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is empty")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInflightBatches)
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.post(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding response size mismatch: got %d, want %d", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("embedding request failed: status=%d body=%q", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	return decoded.Embeddings, nil
}
