// Package llm 提供基于 Eino ChatModel 的检索增强分析实现
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"resource-search-api/internal/config"
)

// ChatModelFactory 分析器对 ChatModel 的最小依赖
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

type chatModelBuilder func(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error)

// EinoFactory 按提供商名惰性创建并缓存 ChatModel
type EinoFactory struct {
	defaultName string
	providers   map[string]config.ProviderConfig
	build       chatModelBuilder

	mu     sync.Mutex
	models map[string]model.BaseChatModel
}

var _ ChatModelFactory = (*EinoFactory)(nil)

func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		defaultName: cfg.LLM.DefaultProvider,
		providers:   cfg.LLM.Providers,
		build:       newOpenAIChatModel,
		models:      make(map[string]model.BaseChatModel),
	}
}

// Get name 为空时使用默认提供商；创建失败不缓存，下次调用重试
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.defaultName
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.models[name]; ok {
		return m, nil
	}
	pc, ok := f.providers[name]
	if !ok {
		return nil, fmt.Errorf("llm provider %q not configured", name)
	}
	m, err := f.build(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create chat model %q: %w", name, err)
	}
	f.models[name] = m
	return m, nil
}

// newOpenAIChatModel OpenAI 兼容接口
func newOpenAIChatModel(ctx context.Context, pc config.ProviderConfig) (model.BaseChatModel, error) {
	temperature := float32(pc.Temperature)
	mcfg := &openai.ChatModelConfig{
		APIKey:      pc.APIKey,
		BaseURL:     pc.BaseURL,
		Model:       pc.Model,
		Temperature: &temperature,
		Timeout:     pc.Timeout,
	}
	if pc.MaxTokens > 0 {
		maxTokens := pc.MaxTokens
		mcfg.MaxTokens = &maxTokens
	}
	return openai.NewChatModel(ctx, mcfg)
}
