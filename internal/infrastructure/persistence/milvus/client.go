// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resource-search-api/internal/config"
)

var tracer = otel.Tracer("milvus")

const connectTimeout = 10 * time.Second

// Client Milvus 客户端，绑定资源集合
type Client struct {
	milvus     client.Client
	config     *config.MilvusConfig
	collection string
}

// NewClient 创建 Milvus 客户端。集合名为 <collection_prefix>_resources。
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	conf := client.Config{Address: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	if cfg.User != "" && cfg.Password != "" {
		conf.Username = cfg.User
		conf.Password = cfg.Password
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	milvusClient, err := client.NewClient(dialCtx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus %s: %w", conf.Address, err)
	}

	return &Client{
		milvus:     milvusClient,
		config:     cfg,
		collection: collectionName(cfg.CollectionPrefix),
	}, nil
}

func collectionName(prefix string) string {
	if prefix == "" {
		return CollectionResources
	}
	return prefix + "_" + CollectionResources
}

// Close 关闭 Milvus 连接
func (c *Client) Close() error {
	return c.milvus.Close()
}

// Collection 资源集合的完整名称
func (c *Client) Collection() string {
	return c.collection
}

// HealthCheck 资源集合可查询即视为健康
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.HealthCheck",
		trace.WithAttributes(attribute.String("collection", c.collection)))
	defer span.End()

	if _, err := c.milvus.HasCollection(ctx, c.collection); err != nil {
		span.RecordError(err)
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}
