// Package qdrant 提供 Qdrant 向量数据库访问层实现（gRPC）
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"resource-search-api/internal/config"
)

var tracer = otel.Tracer("qdrant")

// Client Qdrant gRPC 客户端
type Client struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	config      *config.QdrantConfig
}

// NewClient 创建 Qdrant 客户端，连接为惰性建立
func NewClient(cfg *config.QdrantConfig) (*Client, error) {
	port := cfg.Port
	if port <= 0 {
		port = 6334
	}
	conn, err := grpc.NewClient(fmt.Sprintf("%s:%d", cfg.Host, port),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	return &Client{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		config:      cfg,
	}, nil
}

// Close 关闭连接
func (c *Client) Close() error {
	return c.conn.Close()
}

// HealthCheck 列出集合验证连通性
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "qdrant.HealthCheck")
	defer span.End()

	if _, err := c.collections.List(ctx, &pb.ListCollectionsRequest{}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
