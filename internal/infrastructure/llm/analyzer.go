package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"resource-search-api/internal/application/search"
	"resource-search-api/internal/infrastructure/llm/prompt"
	einoobs "resource-search-api/internal/observability/eino"
	"resource-search-api/pkg/logger"
)

const (
	defaultMaxResources = 20
	excerptRunes        = 300
)

// Analyzer 基于 LLM 的答案合成与增强分析
type Analyzer struct {
	factory      ChatModelFactory
	provider     string
	registry     *prompt.Registry
	maxResources int

	chainOnce sync.Once
	chain     compose.Runnable[*analysisCall, *schema.Message]
	chainErr  error
}

var (
	_ search.AnswerSynthesizer = (*Analyzer)(nil)
	_ search.IntentAnalyzer    = (*Analyzer)(nil)
	_ search.DiscoveryAnalyzer = (*Analyzer)(nil)
	_ search.ContextAnalyzer   = (*Analyzer)(nil)
)

// NewAnalyzer provider 为空时使用 LLM 默认提供商
func NewAnalyzer(factory ChatModelFactory, provider string) *Analyzer {
	return &Analyzer{
		factory:      factory,
		provider:     strings.TrimSpace(provider),
		registry:     prompt.NewRegistry(),
		maxResources: defaultMaxResources,
	}
}

// analysisCall 一次分析调用的链路输入
type analysisCall struct {
	Analysis string
	Prompt   prompt.PromptID
	Vars     map[string]any
}

type analysisState struct {
	Call     *analysisCall
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (a *Analyzer) getChain() (compose.Runnable[*analysisCall, *schema.Message], error) {
	a.chainOnce.Do(func() {
		a.chain, a.chainErr = a.buildChain(context.Background())
	})
	return a.chain, a.chainErr
}

func (a *Analyzer) buildChain(ctx context.Context) (compose.Runnable[*analysisCall, *schema.Message], error) {
	chain := compose.NewChain[*analysisCall, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *analysisCall) (*analysisState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			tpl, err := a.registry.ChatTemplate(in.Prompt)
			if err != nil {
				return nil, err
			}
			msgs, err := tpl.Format(ctx, in.Vars)
			if err != nil {
				return nil, fmt.Errorf("format prompt %s: %w", in.Prompt, err)
			}
			return &analysisState{Call: in, Messages: msgs}, nil
		}),
		compose.WithNodeName("analysis.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *analysisState) (*analysisState, error) {
			ctx = einoobs.WithProvider(einoobs.WithAnalysis(ctx, st.Call.Analysis), a.provider)
			chatModel, err := a.factory.Get(ctx, a.provider)
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, jsonModeOptions(true)...)
			if err != nil && IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json mode not supported, fallback to prompt-only",
					"analysis", st.Call.Analysis,
					"provider", a.provider,
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, jsonModeOptions(false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("analysis.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *analysisState) (*schema.Message, error) {
			return st.OutMsg, nil
		}),
		compose.WithNodeName("analysis.finalize"),
	)

	return chain.Compile(ctx)
}

func jsonModeOptions(enable bool) []model.Option {
	if !enable {
		return nil
	}
	return []model.Option{
		openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}),
	}
}

// generate 渲染模板、调用模型并解析 JSON 输出
func generate[T any](ctx context.Context, a *Analyzer, analysis string, id prompt.PromptID, vars map[string]any) (*T, error) {
	if a == nil || a.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	chain, err := a.getChain()
	if err != nil {
		return nil, err
	}
	outMsg, err := chain.Invoke(ctx, &analysisCall{Analysis: analysis, Prompt: id, Vars: vars})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", analysis, err)
	}

	raw := ExtractJSONObject(outMsg.Content)
	if raw == "" {
		return nil, fmt.Errorf("%s: empty output", analysis)
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logger.Error(ctx, "failed to unmarshal analysis output", err, "analysis", analysis, "raw", raw)
		return nil, fmt.Errorf("%s: invalid output: %w", analysis, err)
	}
	return &out, nil
}

// SynthesizeAnswer 要点式答案
func (a *Analyzer) SynthesizeAnswer(ctx context.Context, query string, snippets []search.Snippet) ([]string, error) {
	if len(snippets) == 0 {
		return []string{}, nil
	}
	out, err := generate[struct {
		Bullets []string `json:"bullets"`
	}](ctx, a, "answer", prompt.PromptAnswerV1, map[string]any{
		"query":    query,
		"snippets": renderSnippets(snippets),
	})
	if err != nil {
		return nil, err
	}
	return cleanStrings(out.Bullets), nil
}

// AnalyzeIntent 查询意图
func (a *Analyzer) AnalyzeIntent(ctx context.Context, query string) (*search.Intent, error) {
	out, err := generate[search.Intent](ctx, a, "intent", prompt.PromptIntentV1, map[string]any{"query": query})
	if err != nil {
		return nil, err
	}
	out.Category = strings.TrimSpace(out.Category)
	out.ExpandedQuery = strings.TrimSpace(out.ExpandedQuery)
	out.ImplicitNeeds = cleanStrings(out.ImplicitNeeds)
	switch {
	case out.Confidence < 0:
		out.Confidence = 0
	case out.Confidence > 1:
		out.Confidence = 1
	}
	for k, v := range out.SuggestedFilters {
		if strings.TrimSpace(v) == "" {
			delete(out.SuggestedFilters, k)
		}
	}
	return out, nil
}

// DiscoverConnections 资源两两关联；只保留窗口内的 id
func (a *Analyzer) DiscoverConnections(ctx context.Context, query string, window []search.CandidateSummary) ([]search.Connection, error) {
	if len(window) < 2 {
		return []search.Connection{}, nil
	}
	out, err := generate[struct {
		Connections []search.Connection `json:"connections"`
	}](ctx, a, "connections", prompt.PromptConnectionsV1, a.windowVars(query, window))
	if err != nil {
		return nil, err
	}
	known := idSet(window)
	conns := make([]search.Connection, 0, len(out.Connections))
	for _, c := range out.Connections {
		c.From, c.To = strings.TrimSpace(c.From), strings.TrimSpace(c.To)
		if !known[c.From] || !known[c.To] || c.From == c.To {
			continue
		}
		c.Description = strings.TrimSpace(c.Description)
		conns = append(conns, c)
	}
	return conns, nil
}

// GenerateFollowUps 后续检索问题
func (a *Analyzer) GenerateFollowUps(ctx context.Context, query string, window []search.CandidateSummary) ([]string, error) {
	out, err := generate[struct {
		Questions []string `json:"questions"`
	}](ctx, a, "follow_ups", prompt.PromptFollowUpsV1, a.windowVars(query, window))
	if err != nil {
		return nil, err
	}
	return cleanStrings(out.Questions), nil
}

// AnalyzeGaps 知识缺口
func (a *Analyzer) AnalyzeGaps(ctx context.Context, query string, window []search.CandidateSummary) ([]search.KnowledgeGap, error) {
	out, err := generate[struct {
		Gaps []search.KnowledgeGap `json:"gaps"`
	}](ctx, a, "knowledge_gaps", prompt.PromptGapsV1, a.windowVars(query, window))
	if err != nil {
		return nil, err
	}
	gaps := make([]search.KnowledgeGap, 0, len(out.Gaps))
	for _, g := range out.Gaps {
		if g.Topic = strings.TrimSpace(g.Topic); g.Topic == "" {
			continue
		}
		gaps = append(gaps, g)
	}
	return gaps, nil
}

// ClusterInsights 主题聚类；未知 id 被剔除
func (a *Analyzer) ClusterInsights(ctx context.Context, query string, window []search.CandidateSummary) ([]search.InsightCluster, error) {
	if len(window) == 0 {
		return []search.InsightCluster{}, nil
	}
	out, err := generate[struct {
		Clusters []search.InsightCluster `json:"clusters"`
	}](ctx, a, "insight_clusters", prompt.PromptClustersV1, a.windowVars(query, window))
	if err != nil {
		return nil, err
	}
	known := idSet(window)
	clusters := make([]search.InsightCluster, 0, len(out.Clusters))
	for _, c := range out.Clusters {
		if c.Theme = strings.TrimSpace(c.Theme); c.Theme == "" {
			continue
		}
		ids := make([]string, 0, len(c.ResourceIDs))
		for _, id := range c.ResourceIDs {
			if id = strings.TrimSpace(id); known[id] {
				ids = append(ids, id)
			}
		}
		c.ResourceIDs = ids
		clusters = append(clusters, c)
	}
	return clusters, nil
}

// FindHiddenGems 值得关注但排名靠后的资源；标题以窗口为准
func (a *Analyzer) FindHiddenGems(ctx context.Context, query string, window []search.CandidateSummary) ([]search.HiddenGem, error) {
	if len(window) == 0 {
		return []search.HiddenGem{}, nil
	}
	out, err := generate[struct {
		Gems []search.HiddenGem `json:"gems"`
	}](ctx, a, "hidden_gems", prompt.PromptGemsV1, a.windowVars(query, window))
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(window))
	for _, w := range window {
		titles[w.ID] = w.Title
	}
	gems := make([]search.HiddenGem, 0, len(out.Gems))
	seen := map[string]bool{}
	for _, g := range out.Gems {
		g.ID = strings.TrimSpace(g.ID)
		title, ok := titles[g.ID]
		if !ok || seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		g.Title = title
		g.Reason = strings.TrimSpace(g.Reason)
		gems = append(gems, g)
	}
	return gems, nil
}

// LivingContext 当下的外部上下文
func (a *Analyzer) LivingContext(ctx context.Context, query string, window []search.CandidateSummary) (*search.LivingContext, error) {
	out, err := generate[search.LivingContext](ctx, a, "living_context", prompt.PromptLivingV1, a.windowVars(query, window))
	if err != nil {
		return nil, err
	}
	out.Summary = strings.TrimSpace(out.Summary)
	out.Signals = cleanStrings(out.Signals)
	return out, nil
}

// TemporalInsights 时间推演
func (a *Analyzer) TemporalInsights(ctx context.Context, query string, window []search.CandidateSummary) (*search.TemporalInsights, error) {
	out, err := generate[search.TemporalInsights](ctx, a, "temporal_insights", prompt.PromptTemporalV1, a.windowVars(query, window))
	if err != nil {
		return nil, err
	}
	out.Trend = strings.TrimSpace(out.Trend)
	out.Milestones = cleanStrings(out.Milestones)
	return out, nil
}

// CostAlignment 投入分级建议
func (a *Analyzer) CostAlignment(ctx context.Context, query string, window []search.CandidateSummary) (*search.CostAlignment, error) {
	out, err := generate[search.CostAlignment](ctx, a, "cost_alignment", prompt.PromptCostV1, a.windowVars(query, window))
	if err != nil {
		return nil, err
	}
	out.Summary = strings.TrimSpace(out.Summary)
	out.Options = cleanStrings(out.Options)
	return out, nil
}

func (a *Analyzer) windowVars(query string, window []search.CandidateSummary) map[string]any {
	if len(window) > a.maxResources {
		window = window[:a.maxResources]
	}
	return map[string]any{
		"query":     query,
		"resources": renderResources(window),
	}
}
