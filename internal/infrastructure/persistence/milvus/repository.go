package milvus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resource-search-api/internal/application/retrieval"
	"resource-search-api/internal/application/search"
	"resource-search-api/pkg/metrics"
)

const (
	provider      = "milvus"
	defaultHNSWEf = 128
)

// Repository 资源向量仓储，同时服务检索编排与离线索引。
type Repository struct {
	client    *Client
	dimension int
}

var (
	_ search.VectorStore         = (*Repository)(nil)
	_ retrieval.VectorRepository = (*Repository)(nil)
)

// NewRepository 创建资源向量仓储
func NewRepository(client *Client, dimension int) *Repository {
	if dimension <= 0 {
		dimension = DefaultVectorDimension
	}
	return &Repository{client: client, dimension: dimension}
}

func (r *Repository) ready() error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return retrieval.ErrVectorDisabled
	}
	return nil
}

func (r *Repository) collection() string {
	return r.client.Collection()
}

// EnsureResourceCollection 确保 resources 集合与索引可用（不存在则创建）。
// 不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureResourceCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.EnsureResourceCollection")
	defer span.End()

	exists, err := r.client.milvus.HasCollection(ctx, r.collection())
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !exists {
		schema := ResourcesSchema(r.dimension)
		schema.CollectionName = r.collection()
		if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create collection: %w", err)
		}
		if err := r.createIndex(ctx); err != nil {
			return err
		}
	}
	return r.client.milvus.LoadCollection(ctx, r.collection(), false)
}

// createIndex 创建 HNSW 索引
func (r *Repository) createIndex(ctx context.Context) error {
	cfg := r.client.config
	idx, err := entity.NewIndexHNSW(entity.COSINE, cfg.HNSWM, cfg.HNSWEfConstruction)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := r.client.milvus.CreateIndex(ctx, r.collection(), fieldVector, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// UpsertResources 按 id 覆盖写入
func (r *Repository) UpsertResources(ctx context.Context, resources []*retrieval.VectorResource) error {
	if err := r.ready(); err != nil {
		return err
	}
	if len(resources) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "milvus.UpsertResources",
		trace.WithAttributes(attribute.Int("count", len(resources))))
	defer span.End()

	n := len(resources)
	ids := make([]string, 0, n)
	vectors := make([][]float32, 0, n)
	titles := make([]string, 0, n)
	urls := make([]string, 0, n)
	types := make([]string, 0, n)
	topics := make([]string, 0, n)
	countries := make([]string, 0, n)
	years := make([]int64, 0, n)
	excerpts := make([]string, 0, n)

	for _, res := range resources {
		if res == nil {
			continue
		}
		if len(res.Vector) != r.dimension {
			return fmt.Errorf("resource %s: vector dimension %d, collection expects %d", res.ID, len(res.Vector), r.dimension)
		}
		ids = append(ids, res.ID)
		vectors = append(vectors, res.Vector)
		titles = append(titles, res.Title)
		urls = append(urls, res.URL)
		types = append(types, res.Type)
		topics = append(topics, res.Topic)
		countries = append(countries, res.Country)
		years = append(years, int64(res.Year))
		excerpts = append(excerpts, res.Excerpt)
	}

	_, err := r.client.milvus.Upsert(ctx, r.collection(), "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, r.dimension, vectors),
		entity.NewColumnVarChar(fieldTitle, titles),
		entity.NewColumnVarChar(fieldURL, urls),
		entity.NewColumnVarChar(fieldType, types),
		entity.NewColumnVarChar(fieldTopic, topics),
		entity.NewColumnVarChar(fieldCountry, countries),
		entity.NewColumnInt64(fieldYear, years),
		entity.NewColumnVarChar(fieldExcerpt, excerpts),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert resources: %w", err)
	}
	return nil
}

// DeleteResources 按 id 删除
func (r *Repository) DeleteResources(ctx context.Context, ids []string) error {
	if err := r.ready(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteResources",
		trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	if err := r.client.milvus.Delete(ctx, r.collection(), "", idsExpr(ids)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete resources: %w", err)
	}
	return nil
}

// Search 向量检索一页；多取一条判断是否还有更多。
func (r *Repository) Search(ctx context.Context, vector []float32, limit, offset int, filter search.VectorFilter) (*search.VectorSearchResult, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return &search.VectorSearchResult{Results: []search.DocChunk{}}, nil
	}
	if offset < 0 {
		offset = 0
	}
	coll := r.collection()
	expr := filterExpr(filter)
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(
			attribute.Int("limit", limit),
			attribute.Int("offset", offset),
			attribute.String("expr", expr),
		))
	defer span.End()

	ef := r.client.config.HNSWEf
	if ef <= 0 {
		ef = defaultHNSWEf
	}
	if ef < limit+offset+1 {
		ef = limit + offset + 1
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	start := time.Now()
	results, err := r.client.milvus.Search(ctx,
		coll,
		nil,
		expr,
		metadataFields,
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector,
		entity.COSINE,
		limit+1,
		sp,
		client.WithOffset(int64(offset)),
	)
	metrics.VectorSearchDuration.WithLabelValues(provider, coll).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		metrics.VectorSearchTotal.WithLabelValues(provider, coll, "error").Inc()
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	metrics.VectorSearchTotal.WithLabelValues(provider, coll, "success").Inc()

	var docs []search.DocChunk
	for _, res := range results {
		if res.Err != nil {
			span.RecordError(res.Err)
			return nil, fmt.Errorf("failed to search: %w", res.Err)
		}
		docs = append(docs, docsFromColumns(res.Fields, res.Scores, res.ResultCount)...)
	}

	out := &search.VectorSearchResult{Results: docs}
	if len(docs) > limit {
		out.Results = docs[:limit]
		out.HasMore = true
	}
	if out.Results == nil {
		out.Results = []search.DocChunk{}
	}
	span.SetAttributes(attribute.Int("result_count", len(out.Results)))
	return out, nil
}

// FetchEmbeddings 读取已存储向量，缺失 id 不返回
func (r *Repository) FetchEmbeddings(ctx context.Context, ids []string) (map[string][]float32, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, span := tracer.Start(ctx, "milvus.FetchEmbeddings",
		trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	rs, err := r.client.milvus.Query(ctx, r.collection(), nil, idsExpr(ids), []string{fieldID, fieldVector})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	idCol, ok1 := rs.GetColumn(fieldID).(*entity.ColumnVarChar)
	vecCol, ok2 := rs.GetColumn(fieldVector).(*entity.ColumnFloatVector)
	if !ok1 || !ok2 {
		return out, nil
	}
	vecs := vecCol.Data()
	for i, id := range idCol.Data() {
		if i < len(vecs) {
			out[id] = vecs[i]
		}
	}
	return out, nil
}

// Sample 按过滤条件取一批资源；Milvus 不保证顺序，随机性由调用方打乱。
func (r *Repository) Sample(ctx context.Context, filter search.VectorFilter, limit int) ([]search.DocChunk, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []search.DocChunk{}, nil
	}
	ctx, span := tracer.Start(ctx, "milvus.Sample",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	expr := filterExpr(filter)
	if strings.TrimSpace(expr) == "" {
		expr = fieldID + ` != ""`
	}
	rs, err := r.client.milvus.Query(ctx, r.collection(), nil, expr, metadataFields, client.WithLimit(int64(limit)))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to sample resources: %w", err)
	}
	rows := 0
	if col := rs.GetColumn(fieldID); col != nil {
		rows = col.Len()
	}
	docs := docsFromColumns(rs, nil, rows)
	if docs == nil {
		docs = []search.DocChunk{}
	}
	return docs, nil
}

// docsFromColumns 按列还原文档；scores 为空时得分为 0。
func docsFromColumns(rs client.ResultSet, scores []float32, count int) []search.DocChunk {
	strCol := func(name string) []string {
		if c, ok := rs.GetColumn(name).(*entity.ColumnVarChar); ok {
			return c.Data()
		}
		return nil
	}
	at := func(data []string, i int) string {
		if i < len(data) {
			return data[i]
		}
		return ""
	}

	ids := strCol(fieldID)
	titles := strCol(fieldTitle)
	urls := strCol(fieldURL)
	types := strCol(fieldType)
	topics := strCol(fieldTopic)
	countries := strCol(fieldCountry)
	excerpts := strCol(fieldExcerpt)
	var years []int64
	if c, ok := rs.GetColumn(fieldYear).(*entity.ColumnInt64); ok {
		years = c.Data()
	}

	docs := make([]search.DocChunk, 0, count)
	for i := 0; i < count && i < len(ids); i++ {
		d := search.DocChunk{
			ID:      ids[i],
			Title:   at(titles, i),
			URL:     at(urls, i),
			Type:    at(types, i),
			Topic:   at(topics, i),
			Country: at(countries, i),
			Excerpt: at(excerpts, i),
		}
		if i < len(years) {
			d.Year = int(years[i])
		}
		if i < len(scores) {
			d.Score = float64(scores[i])
		}
		docs = append(docs, d)
	}
	return docs
}
