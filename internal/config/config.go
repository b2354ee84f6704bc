// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Search        SearchConfig        `yaml:"search" mapstructure:"search"`
	Usage         UsageConfig         `yaml:"usage" mapstructure:"usage"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// VectorConfig 向量数据库配置
type VectorConfig struct {
	// Provider milvus | qdrant
	Provider string       `yaml:"provider" mapstructure:"provider"`
	Milvus   MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
	Qdrant   QdrantConfig `yaml:"qdrant" mapstructure:"qdrant"`
}

// MilvusConfig Milvus 配置
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	IndexType          string `yaml:"index_type" mapstructure:"index_type"`
	MetricType         string `yaml:"metric_type" mapstructure:"metric_type"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
	HNSWEf             int    `yaml:"hnsw_ef" mapstructure:"hnsw_ef"`
}

// QdrantConfig Qdrant 配置
type QdrantConfig struct {
	Host       string `yaml:"host" mapstructure:"host"`
	Port       int    `yaml:"port" mapstructure:"port"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	// Provider openai | http | ollama
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension"`
	BatchSize int           `yaml:"batch_size" mapstructure:"batch_size"`
	Endpoint  string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SearchConfig 检索编排配置
type SearchConfig struct {
	// CacheProvider memory | redis
	CacheProvider       string        `yaml:"cache_provider" mapstructure:"cache_provider"`
	CacheTTL            time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheMaxEntries     int           `yaml:"cache_max_entries" mapstructure:"cache_max_entries"`
	RetrievalWindow     int           `yaml:"retrieval_window" mapstructure:"retrieval_window"`
	DefaultPageSize     int           `yaml:"default_page_size" mapstructure:"default_page_size"`
	MaxPageSize         int           `yaml:"max_page_size" mapstructure:"max_page_size"`
	DefaultEnrichment   string        `yaml:"default_enrichment" mapstructure:"default_enrichment"`
	DiversityCap        int           `yaml:"diversity_cap" mapstructure:"diversity_cap"`
	RecommendationLimit int           `yaml:"recommendation_limit" mapstructure:"recommendation_limit"`
	CuratedTypes        []string      `yaml:"curated_types" mapstructure:"curated_types"`
	IntentMinConfidence float64       `yaml:"intent_min_confidence" mapstructure:"intent_min_confidence"`
	MaxQueryLength      int           `yaml:"max_query_length" mapstructure:"max_query_length"`
	MinPreviewLength    int           `yaml:"min_preview_length" mapstructure:"min_preview_length"`
}

// UsageConfig 检索使用统计配置
type UsageConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	DedupWindow time.Duration `yaml:"dedup_window" mapstructure:"dedup_window"`
	// DedupProvider memory | redis
	DedupProvider   string `yaml:"dedup_provider" mapstructure:"dedup_provider"`
	DedupMaxEntries int    `yaml:"dedup_max_entries" mapstructure:"dedup_max_entries"`
	Stream          string `yaml:"stream" mapstructure:"stream"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen int `yaml:"max_len" mapstructure:"max_len"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
