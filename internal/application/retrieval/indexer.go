package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/embedding"

	"resource-search-api/pkg/logger"
)

const (
	defaultEmbeddingBatch = 32
	defaultEmbedTextRunes = 2000
	defaultExcerptRunes   = 480
	maxIndexBatch         = 500
)

// Indexer 将资源写入向量库：每个资源一条向量（标题 + 摘要）。
type Indexer struct {
	embedder embedding.Embedder
	vector   VectorRepository

	embeddingBatchSize int
	embedTextRunes     int
	excerptRunes       int
}

func NewIndexer(embedder embedding.Embedder, vectorRepo VectorRepository, embeddingBatchSize int) *Indexer {
	bs := embeddingBatchSize
	if bs <= 0 {
		bs = defaultEmbeddingBatch
	}
	return &Indexer{
		embedder:           embedder,
		vector:             vectorRepo,
		embeddingBatchSize: bs,
		embedTextRunes:     defaultEmbedTextRunes,
		excerptRunes:       defaultExcerptRunes,
	}
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.embedder != nil && i.vector != nil
}

// IndexResources 校验、向量化并写入。缺少 id/title 的资源被跳过并记录原因；
// 批次内 id 重复时以最后一次出现为准。
func (i *Indexer) IndexResources(ctx context.Context, resources []Resource) (*IndexResult, error) {
	if len(resources) == 0 {
		return nil, fmt.Errorf("%w: no resources supplied", ErrInvalidResource)
	}
	if len(resources) > maxIndexBatch {
		return nil, fmt.Errorf("%w: at most %d resources per request", ErrInvalidResource, maxIndexBatch)
	}
	if !i.Enabled() {
		return nil, ErrVectorDisabled
	}
	if err := i.vector.EnsureResourceCollection(ctx); err != nil {
		return nil, err
	}

	result := &IndexResult{Skipped: []SkippedResource{}}
	position := make(map[string]int, len(resources))
	accepted := make([]Resource, 0, len(resources))
	for _, r := range resources {
		r.ID = strings.TrimSpace(r.ID)
		r.Title = strings.TrimSpace(r.Title)
		switch {
		case r.ID == "":
			result.Skipped = append(result.Skipped, SkippedResource{ID: r.ID, Reason: "id is required"})
			continue
		case r.Title == "":
			result.Skipped = append(result.Skipped, SkippedResource{ID: r.ID, Reason: "title is required"})
			continue
		case r.Year < 0:
			result.Skipped = append(result.Skipped, SkippedResource{ID: r.ID, Reason: "year must not be negative"})
			continue
		}
		if idx, dup := position[r.ID]; dup {
			accepted[idx] = r
			continue
		}
		position[r.ID] = len(accepted)
		accepted = append(accepted, r)
	}
	if len(accepted) == 0 {
		return result, nil
	}

	embedInputs := make([]string, 0, len(accepted))
	records := make([]*VectorResource, 0, len(accepted))
	for _, r := range accepted {
		embedInputs = append(embedInputs, i.embedText(r))
		records = append(records, &VectorResource{
			ID:      r.ID,
			Title:   r.Title,
			URL:     strings.TrimSpace(r.URL),
			Type:    strings.TrimSpace(r.Type),
			Topic:   strings.TrimSpace(r.Topic),
			Country: strings.TrimSpace(r.Country),
			Year:    r.Year,
			Excerpt: excerpt(r.Summary, i.excerptRunes),
		})
	}

	vectors, err := i.embedBatch(ctx, embedInputs)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(records))
	}
	for idx := range records {
		records[idx].Vector = vectors[idx]
	}
	if err := i.vector.UpsertResources(ctx, records); err != nil {
		return nil, err
	}

	result.Indexed = len(records)
	logger.Info(ctx, "resources indexed", "indexed", result.Indexed, "skipped", len(result.Skipped))
	return result, nil
}

// DeleteResources 从向量库移除资源
func (i *Indexer) DeleteResources(ctx context.Context, ids []string) error {
	if i == nil || i.vector == nil {
		return ErrVectorDisabled
	}
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return i.vector.DeleteResources(ctx, clean)
}

// embedText 标题、元数据与摘要拼成单行，按字符数截断
func (i *Indexer) embedText(r Resource) string {
	parts := []string{"Title: " + r.Title}
	for _, kv := range [][2]string{
		{"Type", r.Type},
		{"Topic", r.Topic},
		{"Country", r.Country},
	} {
		if v := strings.TrimSpace(kv[1]); v != "" {
			parts = append(parts, kv[0]+": "+v)
		}
	}
	if r.Year > 0 {
		parts = append(parts, "Year: "+strconv.Itoa(r.Year))
	}
	if strings.TrimSpace(r.Summary) != "" {
		parts = append(parts, "Summary: "+r.Summary)
	}
	return excerpt(strings.Join(parts, " | "), i.embedTextRunes)
}

func (i *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if i == nil || i.embedder == nil {
		return nil, ErrVectorDisabled
	}
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += i.embeddingBatchSize {
		end := min(start+i.embeddingBatchSize, len(texts))
		v64, err := i.embedder.EmbedStrings(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		for _, vec := range v64 {
			out = append(out, toFloat32(vec))
		}
	}
	return out, nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, 0, len(vec))
	for _, x := range vec {
		out = append(out, float32(x))
	}
	return out
}
