package qdrant

import (
	"context"
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resource-search-api/internal/application/retrieval"
	"resource-search-api/internal/application/search"
	"resource-search-api/pkg/metrics"
)

const (
	provider          = "qdrant"
	defaultCollection = "resources"
	defaultDimension  = 1024
)

// Repository Qdrant 资源向量仓储，实现检索与索引两个端口。
type Repository struct {
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
}

var (
	_ search.VectorStore         = (*Repository)(nil)
	_ retrieval.VectorRepository = (*Repository)(nil)
)

// NewRepository 创建仓储
func NewRepository(client *Client, dimension int) *Repository {
	if client == nil {
		return nil
	}
	return newRepository(client.points, client.collections, client.config.Collection, dimension)
}

func newRepository(points pb.PointsClient, collections pb.CollectionsClient, collection string, dimension int) *Repository {
	if collection == "" {
		collection = defaultCollection
	}
	if dimension <= 0 {
		dimension = defaultDimension
	}
	return &Repository{points: points, collections: collections, collection: collection, dimension: dimension}
}

func (r *Repository) ready() error {
	if r == nil || r.points == nil {
		return retrieval.ErrVectorDisabled
	}
	return nil
}

// EnsureResourceCollection 集合不存在时创建（余弦距离）
func (r *Repository) EnsureResourceCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "qdrant.EnsureResourceCollection",
		trace.WithAttributes(attribute.String("collection", r.collection)))
	defer span.End()

	list, err := r.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == r.collection {
			return nil
		}
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// UpsertResources 按 id 覆盖写入
func (r *Repository) UpsertResources(ctx context.Context, resources []*retrieval.VectorResource) error {
	if err := r.ready(); err != nil {
		return err
	}
	points := make([]*pb.PointStruct, 0, len(resources))
	for _, res := range resources {
		if res == nil {
			continue
		}
		if len(res.Vector) != r.dimension {
			return fmt.Errorf("resource %s: vector dimension %d, collection expects %d", res.ID, len(res.Vector), r.dimension)
		}
		points = append(points, toPoint(res))
	}
	if len(points) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "qdrant.UpsertResources",
		trace.WithAttributes(attribute.Int("count", len(points))))
	defer span.End()

	wait := true
	if _, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
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
	ctx, span := tracer.Start(ctx, "qdrant.DeleteResources",
		trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	wait := true
	if _, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs(ids)},
			},
		},
	}); err != nil {
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
	ctx, span := tracer.Start(ctx, "qdrant.Search",
		trace.WithAttributes(
			attribute.Int("limit", limit),
			attribute.Int("offset", offset),
		))
	defer span.End()

	off := uint64(offset)
	start := time.Now()
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Filter:         toFilter(filter),
		Limit:          uint64(limit + 1),
		Offset:         &off,
		WithPayload:    withPayload(),
	})
	metrics.VectorSearchDuration.WithLabelValues(provider, r.collection).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		metrics.VectorSearchTotal.WithLabelValues(provider, r.collection, "error").Inc()
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	metrics.VectorSearchTotal.WithLabelValues(provider, r.collection, "success").Inc()

	docs := make([]search.DocChunk, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		docs = append(docs, fromPayload(p.GetPayload(), p.GetScore()))
	}
	out := &search.VectorSearchResult{Results: docs}
	if len(docs) > limit {
		out.Results = docs[:limit]
		out.HasMore = true
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
	ctx, span := tracer.Start(ctx, "qdrant.FetchEmbeddings",
		trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	resp, err := r.points.Get(ctx, &pb.GetPoints{
		CollectionName: r.collection,
		Ids:            pointIDs(ids),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Include{
				Include: &pb.PayloadIncludeSelector{Fields: []string{keyResourceID}},
			},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch embeddings: %w", err)
	}
	for _, p := range resp.GetResult() {
		id := p.GetPayload()[keyResourceID].GetStringValue()
		vec := p.GetVectors().GetVector().GetData()
		if id != "" && len(vec) > 0 {
			out[id] = vec
		}
	}
	return out, nil
}

// Sample 按过滤条件滚动取一批；随机性由调用方打乱。
func (r *Repository) Sample(ctx context.Context, filter search.VectorFilter, limit int) ([]search.DocChunk, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []search.DocChunk{}, nil
	}
	ctx, span := tracer.Start(ctx, "qdrant.Sample",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	n := uint32(limit)
	resp, err := r.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: r.collection,
		Filter:         toFilter(filter),
		Limit:          &n,
		WithPayload:    withPayload(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to sample resources: %w", err)
	}
	docs := make([]search.DocChunk, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		docs = append(docs, fromPayload(p.GetPayload(), 0))
	}
	return docs, nil
}

func pointIDs(ids []string) []*pb.PointId {
	out := make([]*pb.PointId, 0, len(ids))
	for _, id := range ids {
		out = append(out, PointID(id))
	}
	return out
}
