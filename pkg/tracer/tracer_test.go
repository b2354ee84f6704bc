package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "svc"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSampler_RespectsParent(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)

	res := sampler(0).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: ctx,
		TraceID:       parent.TraceID(),
		Name:          "child",
	})
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)

	res = sampler(0).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{2},
		Name:          "root",
	})
	assert.Equal(t, sdktrace.Drop, res.Decision)
}

func TestServiceResource(t *testing.T) {
	res := serviceResource(Config{ServiceName: "svc", ServiceVersion: "1.2.0", Environment: "prod"})
	set := res.Set()

	v, ok := set.Value(attribute.Key("service.version"))
	require.True(t, ok)
	assert.Equal(t, "1.2.0", v.AsString())
	v, ok = set.Value(attribute.Key("deployment.environment"))
	require.True(t, ok)
	assert.Equal(t, "prod", v.AsString())
}

func TestStart_UsesGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample())))

	ctx, span := Start(context.Background(), "search.Search")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.Equal(t, span.SpanContext(), trace.SpanContextFromContext(ctx))
}
