package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"resource-search-api/pkg/logger"
	"resource-search-api/pkg/metrics"
	"resource-search-api/pkg/tracer"
)

const (
	defaultRetrievalWindow  = 30
	defaultPageSize         = 10
	defaultMaxPageSize      = 50
	defaultMaxQueryLength   = 500
	defaultMinPreviewLength = 3
	defaultRelatedLimit     = 5
	answerSnippetLimit      = 8
	previewTimeout          = 15 * time.Second
)

// Config 编排器参数
type Config struct {
	RetrievalWindow     int
	DefaultPageSize     int
	MaxPageSize         int
	DefaultLevel        EnrichmentLevel
	MaxQueryLength      int
	MinPreviewLength    int
	RelatedLimit        int
	IntentMinConfidence float64
}

func (c Config) withDefaults() Config {
	if c.RetrievalWindow <= 0 {
		c.RetrievalWindow = defaultRetrievalWindow
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = defaultPageSize
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = defaultMaxPageSize
	}
	if c.DefaultPageSize > c.MaxPageSize {
		c.DefaultPageSize = c.MaxPageSize
	}
	if c.DefaultLevel == "" {
		c.DefaultLevel = LevelFast
	}
	if c.MaxQueryLength <= 0 {
		c.MaxQueryLength = defaultMaxQueryLength
	}
	if c.MinPreviewLength <= 0 {
		c.MinPreviewLength = defaultMinPreviewLength
	}
	if c.RelatedLimit <= 0 {
		c.RelatedLimit = defaultRelatedLimit
	}
	return c
}

// Dependencies 编排器依赖；Embedder、Store、Cache 必需，分析器可为 nil。
type Dependencies struct {
	Embedder    Embedder
	Store       VectorStore
	Cache       ResponseCache
	Answer      AnswerSynthesizer
	Intent      IntentAnalyzer
	Discovery   DiscoveryAnalyzer
	Context     ContextAnalyzer
	Ranker      *DiversityRanker
	Recommender *Recommender
}

// Outcome 一次检索的结果。Payload 为写入缓存的序列化字节，命中时与写入时逐字节一致。
type Outcome struct {
	Response *Response
	Payload  json.RawMessage
	CacheHit bool
}

// Orchestrator 检索编排：缓存检查 → 向量化 → 检索 → 并发增强 → 组合 → 写缓存。
// 进程内构造一次并注入，除缓存外不持有跨请求的可变状态。
type Orchestrator struct {
	cfg         Config
	embedder    Embedder
	store       VectorStore
	cache       ResponseCache
	answer      AnswerSynthesizer
	intent      IntentAnalyzer
	pipeline    *EnrichmentPipeline
	ranker      *DiversityRanker
	facets      *FacetAggregator
	recommender *Recommender

	previews singleflight.Group
}

// NewOrchestrator 创建编排器
func NewOrchestrator(cfg Config, deps Dependencies) *Orchestrator {
	cfg = cfg.withDefaults()
	ranker := deps.Ranker
	if ranker == nil {
		ranker = NewDiversityRanker(DefaultDiversityCap)
	}
	rec := deps.Recommender
	if rec == nil {
		rec = NewRecommender(deps.Embedder, deps.Store, ranker)
	}
	return &Orchestrator{
		cfg:         cfg,
		embedder:    deps.Embedder,
		store:       deps.Store,
		cache:       deps.Cache,
		answer:      deps.Answer,
		intent:      deps.Intent,
		pipeline:    NewEnrichmentPipeline(deps.Intent, deps.Discovery, deps.Context),
		ranker:      ranker,
		facets:      NewFacetAggregator(cfg.IntentMinConfidence),
		recommender: rec,
	}
}

// Search 执行一次完整检索。向量化或主检索失败时返回错误且不写缓存；
// 增强分析失败只降级对应字段。
func (o *Orchestrator) Search(ctx context.Context, q Query) (*Outcome, error) {
	if o == nil || o.embedder == nil || o.store == nil || o.cache == nil {
		return nil, ErrNotConfigured
	}

	q, err := o.normalize(q)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid", "error").Inc()
		return nil, err
	}
	level := string(q.Level)

	ctx, span := tracer.Start(ctx, "search.Search", trace.WithAttributes(
		attribute.String("search.level", level),
		attribute.Int("search.page", q.Page),
		attribute.Int("search.page_size", q.PageSize),
	))
	defer span.End()

	key := CacheKey(q)
	if payload, ok := o.cache.Get(ctx, key); ok {
		var resp Response
		if err := json.Unmarshal(payload, &resp); err == nil {
			metrics.SearchRequestsTotal.WithLabelValues(level, "hit").Inc()
			span.SetAttributes(attribute.Bool("search.cache_hit", true))
			return &Outcome{Response: &resp, Payload: payload, CacheHit: true}, nil
		}
		logger.Warn(ctx, "discarding undecodable cache entry", "key", key)
	}
	span.SetAttributes(attribute.Bool("search.cache_hit", false))

	resp, err := o.compute(ctx, q)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(level, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(level, "error").Inc()
		return nil, fmt.Errorf("encode search response: %w", err)
	}
	o.cache.Set(ctx, key, payload)
	metrics.SearchRequestsTotal.WithLabelValues(level, "miss").Inc()

	return &Outcome{Response: resp, Payload: payload}, nil
}

func (o *Orchestrator) compute(ctx context.Context, q Query) (*Response, error) {
	// Embedding
	stageStart := time.Now()
	embedCtx, embedSpan := tracer.Start(ctx, "search.embed")
	vec, err := o.embedder.Embed(embedCtx, q.Text)
	endStage(embedSpan, "embedding", stageStart, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	// Retrieval
	stageStart = time.Now()
	retrieveCtx, retrieveSpan := tracer.Start(ctx, "search.retrieve")
	window, page, hasMore, err := o.retrieve(retrieveCtx, vec, q)
	endStage(retrieveSpan, "retrieval", stageStart, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	// Enrichment：答案合成、相关推荐与所有启用的分析在同一扇出中执行，只在 Wait 处汇合。
	stageStart = time.Now()
	enrichCtx, enrichSpan := tracer.Start(ctx, "search.enrich", trace.WithAttributes(
		attribute.Int("search.window", len(window)),
	))
	var (
		answer   []string
		related  []Recommendation
		enriched = &Enrichment{}
		g        errgroup.Group
	)
	g.Go(func() error {
		answer = o.synthesize(enrichCtx, q.Text, window)
		return nil
	})
	g.Go(func() error {
		related = o.related(window, page, q.Text)
		return nil
	})
	o.pipeline.spawn(enrichCtx, &g, q.Level, q.Text, summarize(window), enriched)
	_ = g.Wait()
	enriched.normalize()
	endStage(enrichSpan, "enrichment", stageStart, nil)

	// Compose
	stageStart = time.Now()
	items := make([]Item, 0, len(page))
	for _, d := range page {
		items = append(items, itemFromDoc(d))
	}
	resp := &Response{
		Answer:            answer,
		Items:             items,
		Page:              q.Page,
		PageSize:          q.PageSize,
		HasMore:           hasMore,
		Intent:            enriched.Intent,
		FollowUpQuestions: enriched.FollowUps,
		Connections:       enriched.Connections,
		InsightClusters:   enriched.InsightClusters,
		KnowledgeGaps:     enriched.KnowledgeGaps,
		HiddenGems:        enriched.HiddenGems,
		LivingContext:     enriched.LivingContext,
		CostAlignment:     enriched.CostAlignment,
		TemporalInsights:  enriched.TemporalInsights,
		Related:           related,
		Facets:            o.facets.Aggregate(window, q.Filters, enriched.Intent),
	}
	metrics.SearchStageDuration.WithLabelValues("compose").Observe(time.Since(stageStart).Seconds())
	return resp, nil
}

// retrieve 一次取回检索窗口；当前页落在窗口之外时再单独取一页。
// 排序（newest/oldest）作用于窗口，先稳定排序再分页，不报告窗口之外还有结果。
func (o *Orchestrator) retrieve(ctx context.Context, vec []float32, q Query) (window, page []DocChunk, hasMore bool, err error) {
	filter := vectorFilterFrom(q.Filters)
	size := o.cfg.RetrievalWindow

	res, err := o.store.Search(ctx, vec, size, 0, filter)
	if err != nil {
		return nil, nil, false, err
	}
	if res == nil {
		res = &VectorSearchResult{}
	}
	window = sortWindow(res.Results, q.SortBy)

	offset := (q.Page - 1) * q.PageSize
	end := offset + q.PageSize
	if end <= size {
		if offset < len(window) {
			page = window[offset:min(end, len(window))]
		}
		switch {
		case len(window) > end:
			hasMore = true
		case len(window) == size && end == size && q.SortBy == SortRelevance:
			hasMore = res.HasMore
		}
		return window, page, hasMore, nil
	}

	pageRes, err := o.store.Search(ctx, vec, q.PageSize, offset, filter)
	if err != nil {
		return nil, nil, false, err
	}
	if pageRes == nil {
		return window, []DocChunk{}, false, nil
	}
	return window, sortWindow(pageRes.Results, q.SortBy), pageRes.HasMore && q.SortBy == SortRelevance, nil
}

func sortWindow(docs []DocChunk, by SortBy) []DocChunk {
	out := make([]DocChunk, len(docs))
	copy(out, docs)
	switch by {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool {
			// 无年份的资源排在最后
			if out[i].Year == 0 || out[j].Year == 0 {
				return out[j].Year == 0 && out[i].Year != 0
			}
			return out[i].Year < out[j].Year
		})
	}
	return out
}

// synthesize 答案合成失败视为降级，返回空数组。
func (o *Orchestrator) synthesize(ctx context.Context, query string, window []DocChunk) (answer []string) {
	answer = []string{}
	if o.answer == nil || len(window) == 0 {
		return answer
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "answer synthesis panicked", fmt.Errorf("%v", r))
			answer = []string{}
		}
	}()

	snippets := make([]Snippet, 0, answerSnippetLimit)
	for _, d := range window {
		if len(snippets) >= answerSnippetLimit {
			break
		}
		text := strings.TrimSpace(d.Excerpt)
		if text == "" {
			text = d.Title
		}
		snippets = append(snippets, Snippet{ID: d.ID, Title: d.Title, Text: text})
	}

	bullets, err := o.answer.SynthesizeAnswer(ctx, query, snippets)
	if err != nil {
		logger.Warn(ctx, "answer synthesis failed, returning empty answer", "error", err.Error())
		return []string{}
	}
	for _, b := range bullets {
		if b = strings.TrimSpace(b); b != "" {
			answer = append(answer, b)
		}
	}
	return answer
}

// related 从检索窗口中去掉当前页后做多样性排序，不额外发起向量检索。
func (o *Orchestrator) related(window, page []DocChunk, query string) []Recommendation {
	shown := make(map[string]struct{}, len(page))
	for _, d := range page {
		shown[d.ID] = struct{}{}
	}
	candidates := make([]Candidate, 0, len(window))
	for _, d := range window {
		if _, ok := shown[d.ID]; ok {
			continue
		}
		candidates = append(candidates, Candidate{Doc: d, Source: FromQuery, Score: d.Score})
	}
	return toRecommendations(o.ranker.Rank(candidates, o.cfg.RelatedLimit), query)
}

// PreviewIntent 轻量意图预览；相同查询的并发请求合并为一次调用。
func (o *Orchestrator) PreviewIntent(ctx context.Context, text string) (*Intent, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < o.cfg.MinPreviewLength {
		return nil, fmt.Errorf("%w: query must be at least %d characters", ErrInvalidQuery, o.cfg.MinPreviewLength)
	}
	if utf8.RuneCountInString(text) > o.cfg.MaxQueryLength {
		return nil, fmt.Errorf("%w: query exceeds %d characters", ErrInvalidQuery, o.cfg.MaxQueryLength)
	}
	if o.intent == nil {
		return nil, ErrNotConfigured
	}

	key := NormalizeQueryText(text)
	v, err, _ := o.previews.Do(key, func() (any, error) {
		// 结果由所有等待者共享，不随首个调用方取消
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), previewTimeout)
		defer cancel()
		return o.intent.AnalyzeIntent(callCtx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("analyze intent: %w", err)
	}
	intent, _ := v.(*Intent)
	if intent == nil {
		return &Intent{}, nil
	}
	return intent, nil
}

// Recommend 多策略推荐
func (o *Orchestrator) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResult, error) {
	if o == nil || o.recommender == nil {
		return nil, ErrNotConfigured
	}
	ctx, span := tracer.Start(ctx, "search.Recommend", trace.WithAttributes(
		attribute.Int("recommend.selected", len(req.SelectedIDs)),
		attribute.Int("recommend.limit", req.Limit),
	))
	defer span.End()
	return o.recommender.Recommend(ctx, req)
}

// normalize 校验并补全默认值，在任何外部调用之前完成。
// 返回值既用于缓存键也用于检索与生成，两者看到的是同一份字段。
func (o *Orchestrator) normalize(q Query) (Query, error) {
	q.Text = NormalizeQueryText(q.Text)
	if q.Text == "" {
		return q, fmt.Errorf("%w: query text is required", ErrInvalidQuery)
	}
	if utf8.RuneCountInString(q.Text) > o.cfg.MaxQueryLength {
		return q, fmt.Errorf("%w: query exceeds %d characters", ErrInvalidQuery, o.cfg.MaxQueryLength)
	}

	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = o.cfg.DefaultPageSize
	}
	if q.PageSize > o.cfg.MaxPageSize {
		q.PageSize = o.cfg.MaxPageSize
	}

	switch SortBy(strings.ToLower(strings.TrimSpace(string(q.SortBy)))) {
	case "", SortRelevance:
		q.SortBy = SortRelevance
	case SortNewest:
		q.SortBy = SortNewest
	case SortOldest:
		q.SortBy = SortOldest
	default:
		return q, fmt.Errorf("%w: unknown sortBy %q", ErrInvalidQuery, q.SortBy)
	}

	// 按年份排序只在窗口内稳定；首页整体排序，后续页不能越过窗口
	if q.SortBy != SortRelevance && q.Page > 1 && q.Page*q.PageSize > o.cfg.RetrievalWindow {
		return q, fmt.Errorf("%w: sortBy %s only covers the first %d results", ErrInvalidQuery, q.SortBy, o.cfg.RetrievalWindow)
	}

	level, err := ParseEnrichmentLevel(string(q.Level), o.cfg.DefaultLevel)
	if err != nil {
		return q, err
	}
	q.Level = level

	f := q.Filters
	if f.Year < 0 || f.YearFrom < 0 || f.YearTo < 0 {
		return q, fmt.Errorf("%w: year must be positive", ErrInvalidQuery)
	}
	if f.Year > 0 && f.HasYearRange() {
		return q, fmt.Errorf("%w: year and yearFrom/yearTo are mutually exclusive", ErrInvalidQuery)
	}
	if f.YearFrom > 0 && f.YearTo > 0 && f.YearFrom > f.YearTo {
		return q, fmt.Errorf("%w: yearFrom must not be after yearTo", ErrInvalidQuery)
	}
	// 过滤条件在向量库中按原值精确匹配，只压缩空白，保留大小写
	q.Filters.Topic = NormalizeFilterValue(f.Topic)
	q.Filters.Country = NormalizeFilterValue(f.Country)
	return q, nil
}

func endStage(span trace.Span, stage string, start time.Time, err error) {
	metrics.SearchStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
