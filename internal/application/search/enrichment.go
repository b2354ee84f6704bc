package search

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"resource-search-api/pkg/logger"
	"resource-search-api/pkg/metrics"
)

// Enrichment 各项分析的汇总结果；每个字段只由一个任务写入。
type Enrichment struct {
	Intent           *Intent
	Connections      []Connection
	FollowUps        []string
	InsightClusters  []InsightCluster
	KnowledgeGaps    []KnowledgeGap
	HiddenGems       []HiddenGem
	LivingContext    *LivingContext
	TemporalInsights *TemporalInsights
	CostAlignment    *CostAlignment
}

// EnrichmentPipeline 按增强级别并发执行分析，单个分析失败只降级对应字段。
type EnrichmentPipeline struct {
	intent    IntentAnalyzer
	discovery DiscoveryAnalyzer
	context   ContextAnalyzer
}

// NewEnrichmentPipeline 任一分析器为 nil 时对应分析视为关闭。
func NewEnrichmentPipeline(intent IntentAnalyzer, discovery DiscoveryAnalyzer, contextAnalyzer ContextAnalyzer) *EnrichmentPipeline {
	return &EnrichmentPipeline{
		intent:    intent,
		discovery: discovery,
		context:   contextAnalyzer,
	}
}

// Run 独立执行并等待全部分析完成。
func (p *EnrichmentPipeline) Run(ctx context.Context, level EnrichmentLevel, query string, window []CandidateSummary) *Enrichment {
	out := &Enrichment{}
	var g errgroup.Group
	p.spawn(ctx, &g, level, query, window, out)
	_ = g.Wait()
	out.normalize()
	return out
}

// spawn 将启用的分析加入调用方的 errgroup，由调用方统一 Wait。
// 任务永远返回 nil，兄弟任务不会被取消。
func (p *EnrichmentPipeline) spawn(ctx context.Context, g *errgroup.Group, level EnrichmentLevel, query string, window []CandidateSummary, out *Enrichment) {
	if p == nil {
		return
	}
	enabled := EnabledAnalyses(level)

	launch := func(kind AnalysisKind, ready bool, fn func(context.Context) error) {
		if !enabled[kind] || !ready {
			return
		}
		g.Go(func() error {
			runAnalysis(ctx, kind, fn)
			return nil
		})
	}

	launch(AnalysisIntent, p.intent != nil, func(ctx context.Context) error {
		intent, err := p.intent.AnalyzeIntent(ctx, query)
		if err != nil {
			return err
		}
		out.Intent = intent
		return nil
	})

	launch(AnalysisConnections, p.discovery != nil, func(ctx context.Context) error {
		v, err := p.discovery.DiscoverConnections(ctx, query, window)
		if err != nil {
			return err
		}
		out.Connections = capSlice(v, maxConnections)
		return nil
	})

	launch(AnalysisFollowUps, p.discovery != nil, func(ctx context.Context) error {
		v, err := p.discovery.GenerateFollowUps(ctx, query, window)
		if err != nil {
			return err
		}
		out.FollowUps = capSlice(v, maxFollowUps)
		return nil
	})

	launch(AnalysisInsightClusters, p.discovery != nil, func(ctx context.Context) error {
		v, err := p.discovery.ClusterInsights(ctx, query, window)
		if err != nil {
			return err
		}
		out.InsightClusters = capSlice(v, maxInsightClusters)
		return nil
	})

	launch(AnalysisKnowledgeGaps, p.discovery != nil, func(ctx context.Context) error {
		v, err := p.discovery.AnalyzeGaps(ctx, query, window)
		if err != nil {
			return err
		}
		out.KnowledgeGaps = capSlice(v, maxKnowledgeGaps)
		return nil
	})

	launch(AnalysisHiddenGems, p.discovery != nil, func(ctx context.Context) error {
		v, err := p.discovery.FindHiddenGems(ctx, query, window)
		if err != nil {
			return err
		}
		out.HiddenGems = capSlice(v, maxHiddenGems)
		return nil
	})

	launch(AnalysisLivingContext, p.context != nil, func(ctx context.Context) error {
		v, err := p.context.LivingContext(ctx, query, window)
		if err != nil {
			return err
		}
		out.LivingContext = v
		return nil
	})

	launch(AnalysisTemporalInsights, p.context != nil, func(ctx context.Context) error {
		v, err := p.context.TemporalInsights(ctx, query, window)
		if err != nil {
			return err
		}
		out.TemporalInsights = v
		return nil
	})

	launch(AnalysisCostAlignment, p.context != nil, func(ctx context.Context) error {
		v, err := p.context.CostAlignment(ctx, query, window)
		if err != nil {
			return err
		}
		out.CostAlignment = v
		return nil
	})
}

func runAnalysis(ctx context.Context, kind AnalysisKind, fn func(context.Context) error) {
	start := time.Now()
	defer func() {
		metrics.EnrichmentAnalysisDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()
	defer func() {
		if r := recover(); r != nil {
			metrics.EnrichmentAnalysisTotal.WithLabelValues(string(kind), "panic").Inc()
			logger.Error(ctx, "enrichment analysis panicked", fmt.Errorf("%v", r), "analysis", string(kind))
		}
	}()

	if err := fn(ctx); err != nil {
		metrics.EnrichmentAnalysisTotal.WithLabelValues(string(kind), "error").Inc()
		logger.Warn(ctx, "enrichment analysis failed, degrading to empty", "analysis", string(kind), "error", err.Error())
		return
	}
	metrics.EnrichmentAnalysisTotal.WithLabelValues(string(kind), "success").Inc()
}

// normalize 将 nil 切片替换为空切片，保证响应中始终是数组。
func (e *Enrichment) normalize() {
	if e.Connections == nil {
		e.Connections = []Connection{}
	}
	if e.FollowUps == nil {
		e.FollowUps = []string{}
	}
	if e.InsightClusters == nil {
		e.InsightClusters = []InsightCluster{}
	}
	if e.KnowledgeGaps == nil {
		e.KnowledgeGaps = []KnowledgeGap{}
	}
	if e.HiddenGems == nil {
		e.HiddenGems = []HiddenGem{}
	}
}

func capSlice[T any](in []T, max int) []T {
	if len(in) > max {
		return in[:max]
	}
	return in
}
