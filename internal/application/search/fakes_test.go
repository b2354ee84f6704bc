package search

import (
	"context"
	"errors"
	"sync"
)

var errBoom = errors.New("boom")

type fakeEmbedder struct {
	mu    sync.Mutex
	calls []string
	vecs  map[string][]float32
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vecs[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type searchCall struct {
	Vector []float32
	Limit  int
	Offset int
	Filter VectorFilter
}

type fakeStore struct {
	mu         sync.Mutex
	docs       []DocChunk
	embeddings map[string][]float32
	sample     []DocChunk
	searchErr  error
	fetchErr   error
	sampleErr  error
	searches   []searchCall
	sampled    []VectorFilter
	// exactTopic 为真时按 Topic 精确过滤，模拟向量库的区分大小写匹配
	exactTopic bool
}

func (f *fakeStore) Search(_ context.Context, vector []float32, limit, offset int, filter VectorFilter) (*VectorSearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, searchCall{Vector: vector, Limit: limit, Offset: offset, Filter: filter})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	docs := f.docs
	if f.exactTopic && filter.Topic != "" {
		docs = nil
		for _, d := range f.docs {
			if d.Topic == filter.Topic {
				docs = append(docs, d)
			}
		}
	}
	if offset >= len(docs) {
		return &VectorSearchResult{Results: []DocChunk{}}, nil
	}
	end := min(offset+limit, len(docs))
	out := append([]DocChunk(nil), docs[offset:end]...)
	return &VectorSearchResult{Results: out, HasMore: end < len(docs)}, nil
}

func (f *fakeStore) FetchEmbeddings(_ context.Context, ids []string) (map[string][]float32, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make(map[string][]float32)
	for _, id := range ids {
		if v, ok := f.embeddings[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (f *fakeStore) Sample(_ context.Context, filter VectorFilter, limit int) ([]DocChunk, error) {
	f.mu.Lock()
	f.sampled = append(f.sampled, filter)
	f.mu.Unlock()
	if f.sampleErr != nil {
		return nil, f.sampleErr
	}
	if len(f.sample) > limit {
		return append([]DocChunk(nil), f.sample[:limit]...), nil
	}
	return append([]DocChunk(nil), f.sample...), nil
}

func (f *fakeStore) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
}

type fakeAnswer struct {
	bullets []string
	err     error
}

func (f *fakeAnswer) SynthesizeAnswer(context.Context, string, []Snippet) ([]string, error) {
	return f.bullets, f.err
}

type fakeIntent struct {
	mu     sync.Mutex
	intent *Intent
	err    error
	calls  int
	block  chan struct{}
	// ctxErr/deadline 记录调用返回时 ctx 的状态
	ctxErr   error
	deadline bool
}

func (f *fakeIntent) AnalyzeIntent(ctx context.Context, _ string) (*Intent, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.ctxErr = ctx.Err()
	_, f.deadline = ctx.Deadline()
	f.mu.Unlock()
	return f.intent, f.err
}

// fakeDiscovery 每个方法返回固定条数，err 非空时全部失败，panic 为真时全部 panic。
type fakeDiscovery struct {
	n     int
	err   error
	panic bool
}

func (f *fakeDiscovery) check() error {
	if f.panic {
		panic("discovery exploded")
	}
	return f.err
}

func (f *fakeDiscovery) DiscoverConnections(context.Context, string, []CandidateSummary) ([]Connection, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	out := make([]Connection, f.n)
	for i := range out {
		out[i] = Connection{From: "a", To: "b", Description: "link"}
	}
	return out, nil
}

func (f *fakeDiscovery) GenerateFollowUps(context.Context, string, []CandidateSummary) ([]string, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	out := make([]string, f.n)
	for i := range out {
		out[i] = "what next?"
	}
	return out, nil
}

func (f *fakeDiscovery) AnalyzeGaps(context.Context, string, []CandidateSummary) ([]KnowledgeGap, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	out := make([]KnowledgeGap, f.n)
	for i := range out {
		out[i] = KnowledgeGap{Topic: "gap", Rationale: "missing"}
	}
	return out, nil
}

func (f *fakeDiscovery) ClusterInsights(context.Context, string, []CandidateSummary) ([]InsightCluster, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	out := make([]InsightCluster, f.n)
	for i := range out {
		out[i] = InsightCluster{Theme: "theme", Summary: "summary"}
	}
	return out, nil
}

func (f *fakeDiscovery) FindHiddenGems(context.Context, string, []CandidateSummary) ([]HiddenGem, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	out := make([]HiddenGem, f.n)
	for i := range out {
		out[i] = HiddenGem{ID: "gem", Title: "Gem", Reason: "overlooked"}
	}
	return out, nil
}

type fakeContext struct {
	err error
}

func (f *fakeContext) LivingContext(context.Context, string, []CandidateSummary) (*LivingContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &LivingContext{Summary: "live"}, nil
}

func (f *fakeContext) TemporalInsights(context.Context, string, []CandidateSummary) (*TemporalInsights, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &TemporalInsights{Trend: "rising"}, nil
}

func (f *fakeContext) CostAlignment(context.Context, string, []CandidateSummary) (*CostAlignment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &CostAlignment{Summary: "affordable"}, nil
}

func doc(id, typ string, score float64) DocChunk {
	return DocChunk{ID: id, Title: "Title " + id, Type: typ, Score: score}
}
