package search

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultIntentMinConfidence 意图类别可用于 spotlight 的最低置信度
	DefaultIntentMinConfidence = 0.5
	topFacetValues             = 3
	spotlightLeadingResults    = 5
)

// FacetAggregator 基于检索窗口（而非当前页）计算分面分布与过滤建议。无状态。
type FacetAggregator struct {
	minConfidence float64
}

// NewFacetAggregator minConfidence 会被限制在 [0,1]；<=0 时使用默认值。
func NewFacetAggregator(minConfidence float64) *FacetAggregator {
	if minConfidence <= 0 {
		minConfidence = DefaultIntentMinConfidence
	}
	return &FacetAggregator{minConfidence: clamp01(minConfidence)}
}

// Aggregate 计算 top 主题/国家、年份时间线、spotlight 与 supporting 建议。
func (a *FacetAggregator) Aggregate(window []DocChunk, active Filters, intent *Intent) *FacetSummary {
	topics := topCounts(window, func(d DocChunk) string { return d.Topic }, topFacetValues)
	countries := topCounts(window, func(d DocChunk) string { return d.Country }, topFacetValues)
	timeline := buildTimeline(window)

	summary := &FacetSummary{
		TopTopics:    topics,
		TopCountries: countries,
		Timeline:     timeline,
		Spotlight:    a.spotlight(window, intent),
		Supporting:   supportingSuggestions(topics, countries, timeline, active),
	}
	return summary
}

// topCounts 忽略大小写计数，展示首次出现的写法；同频按首次出现顺序。
func topCounts(window []DocChunk, field func(DocChunk) string, n int) []FacetCount {
	type bucket struct {
		label string
		count int
		first int
	}
	buckets := make(map[string]*bucket)
	for i, d := range window {
		v := strings.TrimSpace(field(d))
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if b, ok := buckets[k]; ok {
			b.count++
			continue
		}
		buckets[k] = &bucket{label: v, count: 1, first: i}
	}

	list := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].first < list[j].first
	})

	out := make([]FacetCount, 0, n)
	for _, b := range list {
		if len(out) >= n {
			break
		}
		out = append(out, FacetCount{Value: b.label, Count: b.count})
	}
	return out
}

func buildTimeline(window []DocChunk) Timeline {
	counts := make(map[int]int)
	for _, d := range window {
		if d.Year > 0 {
			counts[d.Year]++
		}
	}
	if len(counts) == 0 {
		return Timeline{NarrativeSummary: "Publication years are scarce in these results, so no timeline can be drawn yet."}
	}

	newest, oldest := 0, 0
	for y := range counts {
		if newest == 0 || y > newest {
			newest = y
		}
		if oldest == 0 || y < oldest {
			oldest = y
		}
	}

	t := Timeline{NewestYear: newest, OldestYear: oldest}
	if newest == oldest {
		t.NarrativeSummary = fmt.Sprintf("Coverage is concentrated in %d, with %d %s from that year.",
			newest, counts[newest], plural(counts[newest], "resource", "resources"))
		return t
	}

	nc, oc := counts[newest], counts[oldest]
	switch {
	case nc > oc:
		t.NarrativeSummary = fmt.Sprintf("Momentum is building: %d has %d %s compared with %d in %d.",
			newest, nc, plural(nc, "resource", "resources"), oc, oldest)
	case nc < oc:
		t.NarrativeSummary = fmt.Sprintf("The richest material sits in the early range, with %d %s from %d versus %d from %d.",
			oc, plural(oc, "resource", "resources"), oldest, nc, newest)
	default:
		t.NarrativeSummary = fmt.Sprintf("Coverage is evenly balanced between %d and %d.", oldest, newest)
	}
	return t
}

// spotlight 置信度达标时优先使用意图类别，否则取前几条结果中的多数类型（同票取先出现者）。
func (a *FacetAggregator) spotlight(window []DocChunk, intent *Intent) *Suggestion {
	value := ""
	if intent != nil && strings.TrimSpace(intent.Category) != "" && clamp01(intent.Confidence) >= a.minConfidence {
		value = strings.TrimSpace(intent.Category)
	}
	if value == "" {
		value = majorityType(window, spotlightLeadingResults)
	}
	if value == "" {
		return nil
	}

	label := fmt.Sprintf("Spotlight on %s resources for this search", value)
	if intent != nil {
		for _, need := range intent.ImplicitNeeds {
			if need = strings.TrimSpace(need); need != "" {
				label = fmt.Sprintf("Spotlight on %s resources that address %s", value, need)
				break
			}
		}
	}
	return &Suggestion{Kind: "spotlight", Label: label, Field: "type", Value: value}
}

func majorityType(window []DocChunk, leading int) string {
	if len(window) > leading {
		window = window[:leading]
	}
	counts := topCounts(window, func(d DocChunk) string { return d.Type }, 1)
	if len(counts) == 0 {
		return ""
	}
	return counts[0].Value
}

// supportingSuggestions 每条建议仅在会改变当前过滤条件时输出。
func supportingSuggestions(topics, countries []FacetCount, timeline Timeline, active Filters) []Suggestion {
	out := make([]Suggestion, 0, 4)

	if len(countries) > 0 && !strings.EqualFold(countries[0].Value, strings.TrimSpace(active.Country)) {
		c := countries[0].Value
		out = append(out, Suggestion{
			Kind:  "country",
			Label: fmt.Sprintf("Focus on resources from %s", c),
			Field: "country",
			Value: c,
		})
	}

	if timeline.NewestYear > 0 && !yearActive(active, timeline.NewestYear) {
		out = append(out, Suggestion{
			Kind:  "freshest",
			Label: fmt.Sprintf("See the freshest material from %d", timeline.NewestYear),
			Field: "year",
			Value: strconv.Itoa(timeline.NewestYear),
		})
	}

	if timeline.OldestYear > 0 && timeline.OldestYear < timeline.NewestYear && !yearActive(active, timeline.OldestYear) {
		out = append(out, Suggestion{
			Kind:  "historical",
			Label: fmt.Sprintf("Contrast with earlier material from %d", timeline.OldestYear),
			Field: "year",
			Value: strconv.Itoa(timeline.OldestYear),
		})
	}

	activeTopic := strings.TrimSpace(active.Topic)
	for i := 1; i < len(topics); i++ {
		if strings.EqualFold(topics[i].Value, activeTopic) {
			continue
		}
		out = append(out, Suggestion{
			Kind:  "topic",
			Label: fmt.Sprintf("Broaden into %s", topics[i].Value),
			Field: "topic",
			Value: topics[i].Value,
		})
		break
	}
	return out
}

// yearActive 当前过滤条件是否已经精确选中该年份
func yearActive(f Filters, year int) bool {
	if f.Year == year {
		return true
	}
	return f.YearFrom == year && f.YearTo == year
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
