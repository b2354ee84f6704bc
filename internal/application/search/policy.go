package search

import "sort"

// AnalysisKind 增强分析类型
type AnalysisKind string

const (
	AnalysisIntent           AnalysisKind = "intent"
	AnalysisConnections      AnalysisKind = "connections"
	AnalysisFollowUps        AnalysisKind = "follow_ups"
	AnalysisInsightClusters  AnalysisKind = "insight_clusters"
	AnalysisKnowledgeGaps    AnalysisKind = "knowledge_gaps"
	AnalysisHiddenGems       AnalysisKind = "hidden_gems"
	AnalysisLivingContext    AnalysisKind = "living_context"
	AnalysisTemporalInsights AnalysisKind = "temporal_insights"
	AnalysisCostAlignment    AnalysisKind = "cost_alignment"
)

// 分析结果条数上限
const (
	maxConnections     = 5
	maxFollowUps       = 5
	maxKnowledgeGaps   = 4
	maxInsightClusters = 3
	maxHiddenGems      = 3
)

// enrichmentPolicy 增强级别 -> 启用的分析集合。
// hybrid 额外启用外部上下文/时间推演/成本匹配；full 以自身的深度分析取代它们。
var enrichmentPolicy = map[EnrichmentLevel][]AnalysisKind{
	LevelMinimal: {AnalysisIntent},
	LevelFast:    {AnalysisIntent, AnalysisConnections, AnalysisFollowUps},
	LevelHybrid: {
		AnalysisIntent, AnalysisConnections, AnalysisFollowUps,
		AnalysisLivingContext, AnalysisTemporalInsights, AnalysisCostAlignment,
	},
	LevelFull: {
		AnalysisIntent, AnalysisConnections, AnalysisFollowUps,
		AnalysisInsightClusters, AnalysisKnowledgeGaps, AnalysisHiddenGems,
	},
}

// EnabledAnalyses 返回级别对应的分析集合；未知级别返回空集合。
func EnabledAnalyses(level EnrichmentLevel) map[AnalysisKind]bool {
	kinds := enrichmentPolicy[level]
	out := make(map[AnalysisKind]bool, len(kinds))
	for _, k := range kinds {
		out[k] = true
	}
	return out
}

// EnabledAnalysisList 以稳定顺序返回启用的分析，便于日志与测试。
func EnabledAnalysisList(level EnrichmentLevel) []AnalysisKind {
	out := append([]AnalysisKind(nil), enrichmentPolicy[level]...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
