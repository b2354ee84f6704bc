package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/sync/errgroup"

	"resource-search-api/pkg/logger"
	"resource-search-api/pkg/metrics"
)

// 召回策略名称
const (
	strategyQuery     = "query"
	strategySelection = "selection"
	strategyAnswer    = "answer"
	strategyCurated   = "curated"
)

// DefaultCuratedTypes 兜底抽样使用的资源类型
var DefaultCuratedTypes = []string{"Guide", "Toolkit", "Report"}

// RecommendRequest 推荐请求
type RecommendRequest struct {
	Query       string
	SelectedIDs []string
	AnswerText  string
	ExcludeIDs  []string
	Filters     Filters
	Limit       int
}

// RecommendResult 推荐结果
type RecommendResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	Strategies      []string         `json:"strategies"`
	Fallback        bool             `json:"fallback"`
}

// Recommender 组合多路召回策略 + 多样性排序。无状态，可并发使用。
type Recommender struct {
	embedder     Embedder
	store        VectorStore
	ranker       *DiversityRanker
	curatedTypes []string
	defaultLimit int
	shuffle      func(n int, swap func(i, j int))
}

// RecommenderOption 推荐器选项
type RecommenderOption func(*Recommender)

// WithCuratedTypes 设置兜底抽样的类型集合
func WithCuratedTypes(types []string) RecommenderOption {
	return func(r *Recommender) {
		if len(types) > 0 {
			r.curatedTypes = append([]string(nil), types...)
		}
	}
}

// WithDefaultLimit 设置未指定 limit 时的条数
func WithDefaultLimit(limit int) RecommenderOption {
	return func(r *Recommender) {
		if limit > 0 {
			r.defaultLimit = limit
		}
	}
}

// WithShuffle 替换兜底结果的打乱函数（测试中用于固定顺序）
func WithShuffle(fn func(n int, swap func(i, j int))) RecommenderOption {
	return func(r *Recommender) {
		if fn != nil {
			r.shuffle = fn
		}
	}
}

// NewRecommender 创建推荐器
func NewRecommender(embedder Embedder, store VectorStore, ranker *DiversityRanker, opts ...RecommenderOption) *Recommender {
	if ranker == nil {
		ranker = NewDiversityRanker(DefaultDiversityCap)
	}
	r := &Recommender{
		embedder:     embedder,
		store:        store,
		ranker:       ranker,
		curatedTypes: DefaultCuratedTypes,
		defaultLimit: 5,
		shuffle:      rand.Shuffle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recommend 执行 query/selection 策略（并发），必要时补充 answer 策略；
// 全部策略均无候选时走兜底抽样。排除集 = 已选 ∪ 调用方排除。
func (r *Recommender) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResult, error) {
	if r == nil || r.store == nil {
		return nil, ErrNotConfigured
	}
	limit := req.Limit
	if limit <= 0 {
		limit = r.defaultLimit
	}

	exclude := buildExclusion(req.SelectedIDs, req.ExcludeIDs)
	filter := vectorFilterFrom(req.Filters)
	query := strings.TrimSpace(req.Query)

	var (
		fromQuery     []Candidate
		fromSelection []Candidate
		ran           []string
	)

	var g errgroup.Group
	if query != "" {
		ran = append(ran, strategyQuery)
		g.Go(func() error {
			fromQuery = r.runStrategy(ctx, strategyQuery, func(ctx context.Context) ([]Candidate, error) {
				return r.textStrategy(ctx, query, FromQuery, filter, limit, exclude)
			})
			return nil
		})
	}
	if len(req.SelectedIDs) > 0 {
		ran = append(ran, strategySelection)
		g.Go(func() error {
			fromSelection = r.runStrategy(ctx, strategySelection, func(ctx context.Context) ([]Candidate, error) {
				return r.selectionStrategy(ctx, req.SelectedIDs, filter, limit, exclude)
			})
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]Candidate, 0, len(fromQuery)+len(fromSelection))
	merged = append(merged, fromQuery...)
	merged = append(merged, fromSelection...)

	answer := strings.TrimSpace(req.AnswerText)
	if answer != "" && uniqueIDs(merged) < limit {
		ran = append(ran, strategyAnswer)
		merged = append(merged, r.runStrategy(ctx, strategyAnswer, func(ctx context.Context) ([]Candidate, error) {
			return r.textStrategy(ctx, answer, FromAnswer, filter, limit, exclude)
		})...)
	}

	result := &RecommendResult{Strategies: ran}
	if len(merged) == 0 {
		result.Fallback = true
		result.Strategies = append(result.Strategies, strategyCurated)
		metrics.RecommendFallbackTotal.Inc()
		merged = r.runStrategy(ctx, strategyCurated, func(ctx context.Context) ([]Candidate, error) {
			return r.curatedStrategy(ctx, limit, exclude)
		})
	}
	if result.Strategies == nil {
		result.Strategies = []string{}
	}

	result.Recommendations = toRecommendations(r.ranker.Rank(merged, limit), query)
	return result, nil
}

// runStrategy 策略失败只记录日志并返回空候选，绝不中断请求。
func (r *Recommender) runStrategy(ctx context.Context, name string, fn func(context.Context) ([]Candidate, error)) (out []Candidate) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecommendStrategyTotal.WithLabelValues(name, "error").Inc()
			logger.Error(ctx, "recommendation strategy panicked", fmt.Errorf("%v", rec), "strategy", name)
			out = nil
		}
	}()

	candidates, err := fn(ctx)
	if err != nil {
		metrics.RecommendStrategyTotal.WithLabelValues(name, "error").Inc()
		logger.Warn(ctx, "recommendation strategy failed", "strategy", name, "error", err.Error())
		return nil
	}
	if len(candidates) == 0 {
		metrics.RecommendStrategyTotal.WithLabelValues(name, "empty").Inc()
		return nil
	}
	metrics.RecommendStrategyTotal.WithLabelValues(name, "success").Inc()
	return candidates
}

// textStrategy embed(text) → vectorSearch，超取 limit*2 供后续过滤。
func (r *Recommender) textStrategy(ctx context.Context, text string, source Provenance, filter VectorFilter, limit int, exclude map[string]struct{}) ([]Candidate, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("%w: embedder is nil", ErrNotConfigured)
	}
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	return r.searchCandidates(ctx, vec, source, filter, limit, exclude)
}

// selectionStrategy 对已选资源的存储向量逐分量求算术平均（等权）作为检索向量。
func (r *Recommender) selectionStrategy(ctx context.Context, ids []string, filter VectorFilter, limit int, exclude map[string]struct{}) ([]Candidate, error) {
	ids = compactIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	stored, err := r.store.FetchEmbeddings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch embeddings: %v", ErrRetrieval, err)
	}
	centroid := meanVector(ids, stored)
	if len(centroid) == 0 {
		return nil, nil
	}
	return r.searchCandidates(ctx, centroid, FromSelection, filter, limit, exclude)
}

// curatedStrategy 在精选类型中抽样并随机打乱。
func (r *Recommender) curatedStrategy(ctx context.Context, limit int, exclude map[string]struct{}) ([]Candidate, error) {
	docs, err := r.store.Sample(ctx, VectorFilter{Types: r.curatedTypes}, limit*2)
	if err != nil {
		return nil, fmt.Errorf("%w: sample curated: %v", ErrRetrieval, err)
	}
	out := make([]Candidate, 0, len(docs))
	for _, d := range docs {
		if _, skip := exclude[d.ID]; skip || d.ID == "" {
			continue
		}
		out = append(out, Candidate{Doc: d, Source: FromCurated, Score: 0})
	}
	r.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

func (r *Recommender) searchCandidates(ctx context.Context, vec []float32, source Provenance, filter VectorFilter, limit int, exclude map[string]struct{}) ([]Candidate, error) {
	res, err := r.store.Search(ctx, vec, limit*2, 0, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	if res == nil {
		return nil, nil
	}
	out := make([]Candidate, 0, len(res.Results))
	for _, d := range res.Results {
		if _, skip := exclude[d.ID]; skip {
			continue
		}
		out = append(out, Candidate{Doc: d, Source: source, Score: d.Score})
	}
	return out, nil
}

// meanVector 按 ids 顺序累加，跳过缺失 id 与维度不一致的向量。
func meanVector(ids []string, stored map[string][]float32) []float32 {
	var (
		sum   []float64
		count int
	)
	for _, id := range ids {
		v, ok := stored[id]
		if !ok || len(v) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		if len(v) != len(sum) {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		count++
	}
	if count == 0 {
		return nil
	}
	out := make([]float32, len(sum))
	for i, s := range sum {
		out[i] = float32(s / float64(count))
	}
	return out
}

func toRecommendations(ranked []Candidate, query string) []Recommendation {
	out := make([]Recommendation, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, Recommendation{
			ID:             c.Doc.ID,
			Title:          c.Doc.Title,
			Type:           c.Doc.Type,
			URL:            c.Doc.URL,
			RelevanceScore: c.Score,
			Reason:         reasonFor(c, query),
		})
	}
	return out
}

func reasonFor(c Candidate, query string) string {
	switch c.Source {
	case FromQuery:
		if query != "" {
			return fmt.Sprintf("Closely matches your search for %q", query)
		}
		return "Closely matches your search"
	case FromSelection:
		return "Similar to the resources you selected"
	case FromAnswer:
		return "Supports the points in the synthesized answer"
	case FromCurated:
		if c.Doc.Type != "" {
			return fmt.Sprintf("Curated %s to get you started", strings.ToLower(c.Doc.Type))
		}
		return "Curated resource to get you started"
	default:
		return "Related resource"
	}
}

func buildExclusion(lists ...[]string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, list := range lists {
		for _, id := range list {
			if id = strings.TrimSpace(id); id != "" {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func uniqueIDs(cs []Candidate) int {
	seen := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		seen[c.Doc.ID] = struct{}{}
	}
	return len(seen)
}

func vectorFilterFrom(f Filters) VectorFilter {
	return VectorFilter{
		Topic:    NormalizeFilterValue(f.Topic),
		Country:  NormalizeFilterValue(f.Country),
		Year:     f.Year,
		YearFrom: f.YearFrom,
		YearTo:   f.YearTo,
	}
}
