// Package search 实现检索智能编排：缓存、召回策略、多样性排序、增强分析与分面汇总。
package search

import (
	"fmt"
	"strings"
)

// EnrichmentLevel 增强级别，决定哪些二级分析会执行。
type EnrichmentLevel string

const (
	LevelMinimal EnrichmentLevel = "minimal"
	LevelFast    EnrichmentLevel = "fast"
	LevelHybrid  EnrichmentLevel = "hybrid"
	LevelFull    EnrichmentLevel = "full"
)

// ParseEnrichmentLevel 解析增强级别；空字符串返回 fallback。
func ParseEnrichmentLevel(s string, fallback EnrichmentLevel) (EnrichmentLevel, error) {
	v := EnrichmentLevel(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case LevelMinimal, LevelFast, LevelHybrid, LevelFull:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown enhance level %q", ErrInvalidQuery, s)
	}
}

// SortBy 检索窗口排序方式
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortNewest    SortBy = "newest"
	SortOldest    SortBy = "oldest"
)

// Filters 用户显式选择的过滤条件。Year 与 YearFrom/YearTo 互斥。
type Filters struct {
	Topic    string `json:"topic,omitempty"`
	Country  string `json:"country,omitempty"`
	Year     int    `json:"year,omitempty"`
	YearFrom int    `json:"yearFrom,omitempty"`
	YearTo   int    `json:"yearTo,omitempty"`
}

// HasYearRange 是否设置了年份区间
func (f Filters) HasYearRange() bool {
	return f.YearFrom > 0 || f.YearTo > 0
}

// Query 单次检索请求（请求内不可变）。
type Query struct {
	Text     string
	Filters  Filters
	SortBy   SortBy
	Page     int
	PageSize int
	Level    EnrichmentLevel
}

// DocChunk 向量库返回的文档片段，核心逻辑只读。
type DocChunk struct {
	ID        string
	Title     string
	URL       string
	Type      string
	Topic     string
	Country   string
	Year      int
	Excerpt   string
	Embedding []float32
	Score     float64
}

// Provenance 候选来源
type Provenance string

const (
	FromQuery     Provenance = "query"
	FromSelection Provenance = "selection"
	FromAnswer    Provenance = "answer"
	FromCurated   Provenance = "curated"
)

// Candidate 召回策略产出的候选，排序前。
type Candidate struct {
	Doc    DocChunk
	Source Provenance
	Score  float64
}

// Item 响应中的结果条目
type Item struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	URL     string  `json:"url,omitempty"`
	Type    string  `json:"type,omitempty"`
	Topic   string  `json:"topic,omitempty"`
	Country string  `json:"country,omitempty"`
	Year    int     `json:"year,omitempty"`
	Excerpt string  `json:"excerpt,omitempty"`
	Score   float64 `json:"score"`
}

// Recommendation 推荐条目，Reason 为按来源合成的解释文本。
type Recommendation struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Type           string  `json:"type,omitempty"`
	URL            string  `json:"url,omitempty"`
	RelevanceScore float64 `json:"relevanceScore"`
	Reason         string  `json:"reason"`
}

// Snippet 提供给答案合成的上下文片段
type Snippet struct {
	ID    string
	Title string
	Text  string
}

// CandidateSummary 提供给各项分析的候选摘要
type CandidateSummary struct {
	ID      string
	Title   string
	Type    string
	Topic   string
	Country string
	Year    int
	Excerpt string
}

// Intent 意图分析结果
type Intent struct {
	Category         string            `json:"category"`
	Confidence       float64           `json:"confidence"`
	ExpandedQuery    string            `json:"expandedQuery,omitempty"`
	SuggestedFilters map[string]string `json:"suggestedFilters,omitempty"`
	ImplicitNeeds    []string          `json:"implicitNeeds,omitempty"`
}

type Connection struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Description string `json:"description"`
}

type InsightCluster struct {
	Theme       string   `json:"theme"`
	Summary     string   `json:"summary"`
	ResourceIDs []string `json:"resourceIds,omitempty"`
}

type KnowledgeGap struct {
	Topic      string `json:"topic"`
	Rationale  string `json:"rationale"`
	Suggestion string `json:"suggestion,omitempty"`
}

type HiddenGem struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// LivingContext 外部上下文（hybrid 级别的扩展分析）
type LivingContext struct {
	Summary string   `json:"summary"`
	Signals []string `json:"signals,omitempty"`
}

// TemporalInsights 时间推演
type TemporalInsights struct {
	Trend      string   `json:"trend"`
	Projection string   `json:"projection,omitempty"`
	Milestones []string `json:"milestones,omitempty"`
}

// CostAlignment 成本/投入匹配建议
type CostAlignment struct {
	Summary string   `json:"summary"`
	Options []string `json:"options,omitempty"`
}

// FacetCount 分面计数
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Timeline 年份分布
type Timeline struct {
	NewestYear       int    `json:"newestYear,omitempty"`
	OldestYear       int    `json:"oldestYear,omitempty"`
	NarrativeSummary string `json:"narrativeSummary"`
}

// Suggestion 基于分面的过滤建议
type Suggestion struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// FacetSummary 每次请求基于检索窗口重新计算，不持久化。
type FacetSummary struct {
	TopTopics    []FacetCount `json:"topTopics"`
	TopCountries []FacetCount `json:"topCountries"`
	Timeline     Timeline     `json:"timeline"`
	Spotlight    *Suggestion  `json:"spotlight,omitempty"`
	Supporting   []Suggestion `json:"supporting"`
}

// Response 组合后的检索响应，序列化后进入缓存。
type Response struct {
	Answer            []string          `json:"answer"`
	Items             []Item            `json:"items"`
	Page              int               `json:"page"`
	PageSize          int               `json:"pageSize"`
	HasMore           bool              `json:"hasMore"`
	Intent            *Intent           `json:"intent"`
	FollowUpQuestions []string          `json:"followUpQuestions"`
	Connections       []Connection      `json:"connections"`
	InsightClusters   []InsightCluster  `json:"insightClusters"`
	KnowledgeGaps     []KnowledgeGap    `json:"knowledgeGaps"`
	HiddenGems        []HiddenGem       `json:"hiddenGems"`
	LivingContext     *LivingContext    `json:"livingContext,omitempty"`
	CostAlignment     *CostAlignment    `json:"costAlignment,omitempty"`
	TemporalInsights  *TemporalInsights `json:"temporalInsights,omitempty"`
	Related           []Recommendation  `json:"related"`
	Facets            *FacetSummary     `json:"facets,omitempty"`
}

func itemFromDoc(d DocChunk) Item {
	return Item{
		ID:      d.ID,
		Title:   d.Title,
		URL:     d.URL,
		Type:    d.Type,
		Topic:   d.Topic,
		Country: d.Country,
		Year:    d.Year,
		Excerpt: d.Excerpt,
		Score:   d.Score,
	}
}

func summarize(docs []DocChunk) []CandidateSummary {
	out := make([]CandidateSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, CandidateSummary{
			ID:      d.ID,
			Title:   d.Title,
			Type:    d.Type,
			Topic:   d.Topic,
			Country: d.Country,
			Year:    d.Year,
			Excerpt: d.Excerpt,
		})
	}
	return out
}
