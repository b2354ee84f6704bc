package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-search-api/internal/config"
)

func TestClient_EmbedStringsBatches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{}
		for _, text := range req.Texts {
			resp.Embeddings = append(resp.Embeddings, []float32{0.5, float32(len(text))})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL, APIKey: "secret", BatchSize: 2})
	out, err := c.EmbedStrings(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	require.Len(t, out, 5)
	for i, vec := range out {
		assert.Equal(t, []float64{0.5, float64(i + 1)}, vec)
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream busy"))
	}))
	defer srv.Close()

	_, err := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL}).EmbedStrings(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "status=502")
	assert.ErrorContains(t, err, "upstream busy")
}

func TestResolveEmbedURL(t *testing.T) {
	assert.Equal(t, "http://emb:8080/embed", resolveEmbedURL("http://emb:8080/"))
	assert.Equal(t, "http://emb/v2/vectors", resolveEmbedURL("http://emb/v2/vectors"))
	assert.Equal(t, "", resolveEmbedURL(" "))
}

func TestClient_SizeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1]]}`))
	}))
	defer srv.Close()

	_, err := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL}).Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "size mismatch")
}

func TestOllamaClient_EmbedStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req["model"])
		inputs := req["input"].([]any)
		emb := make([][]float32, len(inputs))
		for i := range inputs {
			emb[i] = []float32{float32(i), 1}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": "nomic-embed-text", "embeddings": emb})
	}))
	defer srv.Close()

	c, err := NewOllamaClient(&config.EmbeddingConfig{Endpoint: srv.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)
	out, err := c.EmbedStrings(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1}, {1, 1}}, out)
}

func TestNewEmbedder_Providers(t *testing.T) {
	ctx := context.Background()

	e, err := NewEmbedder(ctx, &config.EmbeddingConfig{Provider: "http", Endpoint: "http://x"})
	require.NoError(t, err)
	assert.IsType(t, &Client{}, e)

	_, err = NewEmbedder(ctx, &config.EmbeddingConfig{Provider: "ollama"})
	assert.ErrorContains(t, err, "model is required")

	_, err = NewEmbedder(ctx, &config.EmbeddingConfig{Provider: "openai"})
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = NewEmbedder(ctx, &config.EmbeddingConfig{Provider: "bogus"})
	assert.ErrorContains(t, err, "unsupported")
}
