package eino

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"resource-search-api/pkg/metrics"
)

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", AnalysisFromContext(ctx))
	assert.Equal(t, "default", ProviderFromContext(ctx))

	ctx = WithProvider(WithAnalysis(ctx, "intent"), "openai")
	assert.Equal(t, "intent", AnalysisFromContext(ctx))
	assert.Equal(t, "openai", ProviderFromContext(ctx))
	assert.Equal(t, ctx, WithAnalysis(ctx, ""))
}

func TestChatModelHandler_Success(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := WithProvider(context.Background(), "test-success")

	before := testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("test-success", "m1", "success"))
	ctx = h.OnStart(ctx, nil, &model.CallbackInput{Config: &model.Config{Model: "m1"}})
	h.OnEnd(ctx, nil, &model.CallbackOutput{
		Message:    schema.AssistantMessage("ok", nil),
		TokenUsage: &model.TokenUsage{PromptTokens: 10, CompletionTokens: 5},
	})

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("test-success", "m1", "success")))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("test-success", "m1", "completion")))
}

func TestChatModelHandler_Error(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := WithProvider(context.Background(), "test-error")

	ctx = h.OnStart(ctx, nil, &model.CallbackInput{Config: &model.Config{Model: "m2"}})
	h.OnError(ctx, nil, errors.New("rate limited"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("test-error", "m2", "error")))
}

func TestEmbeddingHandler_CountsTexts(t *testing.T) {
	h := newEmbeddingCallbackHandler()
	ctx := h.OnStart(context.Background(), nil, &embedding.CallbackInput{
		Texts:  []string{"clean water", "solar lamp"},
		Config: &embedding.Config{Model: "embed-test"},
	})
	h.OnEnd(ctx, nil, &embedding.CallbackOutput{
		TokenUsage: &embedding.TokenUsage{PromptTokens: 12},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.EmbeddingTextsTotal.WithLabelValues("embed-test", "success")))
	assert.Equal(t, 12.0, testutil.ToFloat64(metrics.EmbeddingTokensUsed.WithLabelValues("embed-test")))
}

func TestEmbeddingHandler_Error(t *testing.T) {
	h := newEmbeddingCallbackHandler()
	ctx := h.OnStart(context.Background(), nil, &embedding.CallbackInput{
		Texts:  []string{"q"},
		Config: &embedding.Config{Model: "embed-err"},
	})
	h.OnError(ctx, nil, errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EmbeddingTextsTotal.WithLabelValues("embed-err", "error")))
}

func TestGlobalHandlerBuilds(t *testing.T) {
	assert.NotNil(t, newGlobalHandler())
	Init()
	Init()
}
