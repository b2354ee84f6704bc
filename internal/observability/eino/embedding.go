package eino

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/embedding"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"resource-search-api/pkg/metrics"
)

// embedInputKey OnStart 时的批大小与模型
type embedInputKey struct{}

type embedInput struct {
	model string
	texts int
}

// newEmbeddingCallbackHandler 统计向量化文本数与 Token。调用次数与耗时由检索引擎自行记录。
func newEmbeddingCallbackHandler() *cbtemplate.EmbeddingCallbackHandler {
	return &cbtemplate.EmbeddingCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *embedding.CallbackInput) context.Context {
			in := embedInput{}
			if input != nil {
				in.texts = len(input.Texts)
				if input.Config != nil {
					in.model = input.Config.Model
				}
			}
			ctx = context.WithValue(ctx, embedInputKey{}, in)

			attrs := []attribute.KeyValue{
				attribute.String("embedding.model", in.model),
				attribute.Int("embedding.texts", in.texts),
			}
			if info != nil {
				attrs = append(attrs, attribute.String("eino.node_name", info.Name))
			}
			ctx, _ = otel.Tracer("eino").Start(ctx, "embedding.embed", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *embedding.CallbackOutput) context.Context {
			in, _ := ctx.Value(embedInputKey{}).(embedInput)
			modelName := in.model
			if output != nil && output.Config != nil && output.Config.Model != "" {
				modelName = output.Config.Model
			}

			metrics.EmbeddingTextsTotal.WithLabelValues(modelName, "success").Add(float64(in.texts))
			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				metrics.EmbeddingTokensUsed.WithLabelValues(modelName).Add(float64(output.TokenUsage.PromptTokens))
				span.SetAttributes(attribute.Int("embedding.prompt_tokens", output.TokenUsage.PromptTokens))
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			in, _ := ctx.Value(embedInputKey{}).(embedInput)
			metrics.EmbeddingTextsTotal.WithLabelValues(in.model, "error").Add(float64(in.texts))

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}
