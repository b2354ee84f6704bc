package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingLimiter struct {
	keys  []string
	limit int
	max   int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	l.limit = limit
	if l.err != nil {
		return false, l.err
	}
	return len(l.keys) <= l.max, nil
}

func serve(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	limiter := &countingLimiter{max: 1}
	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{Enabled: true, RequestsPerSecond: 5, Burst: 2, KeyPrefix: "rl"}, limiter))
	r.GET("/v1/search", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, "/v1/search?q=a", nil).Code)
	w := serve(r, "/v1/search?q=b", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "1006")

	assert.Equal(t, 7, limiter.limit)
	assert.Equal(t, "rl:10.0.0.1:/v1/search", limiter.keys[0])
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("redis down")}
	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{Enabled: true}, limiter))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(r, "/x", nil).Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	limiter := &countingLimiter{}
	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{Enabled: false}, limiter))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, "/x", nil).Code)
	assert.Empty(t, limiter.keys)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = c.GetString("request_id")
		c.Status(http.StatusOK)
	})

	w := serve(r, "/x", map[string]string{RequestIDHeader: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", seen)

	w = serve(r, "/x", nil)
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := serve(r, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestMetrics_SkipsProbes(t *testing.T) {
	r := gin.New()
	r.Use(Metrics("/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/v1/search", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	assert.Equal(t, http.StatusOK, serve(r, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, "/v1/search", nil).Code)
}

func TestCORS_WildcardOriginWithoutCredentials(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{}))
	r.GET("/v1/search", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, "/v1/search", map[string]string{"Origin": "https://app.example.org"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Cache")
}

func TestCORS_SubdomainPattern(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://*.example.org"}}))
	r.GET("/v1/search", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, "/v1/search", map[string]string{"Origin": "https://app.example.org"})
	assert.Equal(t, "https://app.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = serve(r, "/v1/search", map[string]string{"Origin": "https://evil.test"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
