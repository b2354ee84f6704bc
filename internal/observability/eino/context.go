package eino

import "context"

type analysisKey struct{}
type providerKey struct{}

// WithAnalysis 标记当前 LLM 调用所属的分析
func WithAnalysis(ctx context.Context, analysis string) context.Context {
	if analysis == "" {
		return ctx
	}
	return context.WithValue(ctx, analysisKey{}, analysis)
}

// WithProvider 标记 LLM 提供商
func WithProvider(ctx context.Context, provider string) context.Context {
	if provider == "" {
		return ctx
	}
	return context.WithValue(ctx, providerKey{}, provider)
}

// AnalysisFromContext 未设置时返回 "unknown"
func AnalysisFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(analysisKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// ProviderFromContext 未设置时返回 "default"
func ProviderFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(providerKey{}).(string); ok && v != "" {
		return v
	}
	return "default"
}
