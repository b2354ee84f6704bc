// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resource-search-api/internal/application/usage"
	"resource-search-api/pkg/metrics"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client      redis.Cmdable
	maxLen      int64
	usageStream Stream
}

// NewProducer 创建消息生产者；usageStream 为空时使用默认流
func NewProducer(client redis.Cmdable, maxLen int64, usageStream string) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	stream := Stream(usageStream)
	if stream == "" {
		stream = StreamSearchEvents
	}
	return &Producer{
		client:      client,
		maxLen:      maxLen,
		usageStream: stream,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		metrics.RedisStreamPublished.WithLabelValues(string(stream), "error").Inc()
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	metrics.RedisStreamPublished.WithLabelValues(string(stream), "success").Inc()
	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishUsage 发布检索使用事件，实现 usage.Publisher
func (p *Producer) PublishUsage(ctx context.Context, ev *usage.Event) error {
	msg, err := NewMessage(ev.ID, TypeSearchUsage, ev)
	if err != nil {
		return err
	}
	msg.SetMetadata("session_id", ev.SessionID)
	msg.SetMetadata("cache_hit", strconv.FormatBool(ev.CacheHit))
	msg.SetMetadata("level", ev.Level)

	_, err = p.Publish(ctx, p.usageStream, msg)
	return err
}
