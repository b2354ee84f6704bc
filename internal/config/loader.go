// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// envPlaceholder 匹配 ${VAR} 或 ${VAR:default}
// g1: 变量名, g2: 默认值部分（含冒号）, g3: 默认值内容
var envPlaceholder = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 从 configs/ 目录加载配置
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func Load() (*Config, error) {
	return LoadFrom("configs")
}

// LoadFrom 从指定目录加载 config.yaml 与 config.<APP_ENV>.yaml
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 加载默认配置
	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), false); err != nil {
		return nil, err
	}

	// 2. 加载环境特定配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	// 3. 绑定环境变量 (直接覆盖)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值 (兜底)
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnv(string(content))

	reader := strings.NewReader(expanded)
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		// 手动标记已加载文件，防止后续 ReadInConfig 报错
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("failed to merge processed config %s: %w", path, err)
		}
	}

	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符；未定义且无默认值的变量保留原样
func expandEnv(s string) string {
	return envPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPlaceholder.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		return match
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 校验枚举类配置项
func (c *Config) Validate() error {
	switch c.Vector.Provider {
	case "milvus", "qdrant":
	default:
		return fmt.Errorf("unsupported vector.provider %q", c.Vector.Provider)
	}
	switch c.Embedding.Provider {
	case "openai", "http", "ollama":
	default:
		return fmt.Errorf("unsupported embedding.provider %q", c.Embedding.Provider)
	}
	switch c.Search.CacheProvider {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported search.cache_provider %q", c.Search.CacheProvider)
	}
	switch c.Search.DefaultEnrichment {
	case "minimal", "fast", "hybrid", "full":
	default:
		return fmt.Errorf("unsupported search.default_enrichment %q", c.Search.DefaultEnrichment)
	}
	switch c.Usage.DedupProvider {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported usage.dedup_provider %q", c.Usage.DedupProvider)
	}
	if c.Search.CacheTTL <= 0 {
		return fmt.Errorf("search.cache_ttl must be positive")
	}
	return nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 应用默认值
	v.SetDefault("app.name", "resource-search-api")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	// HTTP 服务器默认值
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "60s")
	v.SetDefault("server.http.idle_timeout", "120s")
	v.SetDefault("server.http.request_timeout", "45s")
	v.SetDefault("server.http.shutdown_timeout", "10s")

	// Redis 默认值
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 100)
	v.SetDefault("cache.redis.min_idle_conns", 10)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	// 向量库默认值
	v.SetDefault("vector.provider", "milvus")
	v.SetDefault("vector.milvus.host", "localhost")
	v.SetDefault("vector.milvus.port", 19530)
	v.SetDefault("vector.milvus.collection_prefix", "resource_search")
	v.SetDefault("vector.milvus.index_type", "HNSW")
	v.SetDefault("vector.milvus.metric_type", "COSINE")
	v.SetDefault("vector.milvus.hnsw_m", 16)
	v.SetDefault("vector.milvus.hnsw_ef_construction", 200)
	v.SetDefault("vector.milvus.hnsw_ef", 64)
	v.SetDefault("vector.qdrant.host", "localhost")
	v.SetDefault("vector.qdrant.port", 6334)
	v.SetDefault("vector.qdrant.collection", "resources")

	// Embedding 默认值
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.timeout", "30s")

	// 检索编排默认值
	v.SetDefault("search.cache_provider", "memory")
	v.SetDefault("search.cache_ttl", "60s")
	v.SetDefault("search.cache_max_entries", 10000)
	v.SetDefault("search.retrieval_window", 30)
	v.SetDefault("search.default_page_size", 10)
	v.SetDefault("search.max_page_size", 50)
	v.SetDefault("search.default_enrichment", "fast")
	v.SetDefault("search.diversity_cap", 2)
	v.SetDefault("search.recommendation_limit", 5)
	v.SetDefault("search.curated_types", []string{"Guide", "Toolkit", "Report"})
	v.SetDefault("search.intent_min_confidence", 0.5)
	v.SetDefault("search.max_query_length", 500)
	v.SetDefault("search.min_preview_length", 3)

	// 使用统计默认值
	v.SetDefault("usage.enabled", true)
	v.SetDefault("usage.dedup_window", "30m")
	v.SetDefault("usage.dedup_provider", "memory")
	v.SetDefault("usage.dedup_max_entries", 50000)
	v.SetDefault("usage.stream", "stream:search:events")
	v.SetDefault("messaging.redis_stream.max_len", 100000)

	// 可观测性默认值
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	// 安全默认值
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests_per_second", 100)
	v.SetDefault("security.rate_limit.burst", 200)
}
