package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-search-api/internal/config"
)

func TestEinoFactory_CachesAndDefaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.DefaultProvider = "primary"
	cfg.LLM.Providers = map[string]config.ProviderConfig{
		"primary": {Model: "m-1"},
		"broken":  {Model: "m-2"},
	}
	f := NewEinoFactory(cfg)

	var built []string
	f.build = func(_ context.Context, pc config.ProviderConfig) (model.BaseChatModel, error) {
		built = append(built, pc.Model)
		if pc.Model == "m-2" {
			return nil, errors.New("bad key")
		}
		return &scriptedModel{}, nil
	}

	m1, err := f.Get(context.Background(), "")
	require.NoError(t, err)
	m2, err := f.Get(context.Background(), "primary")
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	_, err = f.Get(context.Background(), "broken")
	assert.ErrorContains(t, err, "bad key")
	_, err = f.Get(context.Background(), "broken")
	assert.Error(t, err)
	assert.Equal(t, []string{"m-1", "m-2", "m-2"}, built)

	_, err = f.Get(context.Background(), "missing")
	assert.ErrorContains(t, err, "not configured")
}
