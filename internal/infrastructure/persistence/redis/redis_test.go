package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kvStub 只实现 Get/Set/SetArgs 的内存 Redis 替身
type kvStub struct {
	redis.Cmdable
	data map[string][]byte
	ttls map[string]time.Duration
	sets int
	err  error
}

func newKVStub() *kvStub {
	return &kvStub{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *kvStub) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	v, ok := s.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(string(v))
	return cmd
}

func (s *kvStub) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	s.data[key] = value.([]byte)
	s.ttls[key] = ttl
	cmd.SetVal("OK")
	return cmd
}

func (s *kvStub) SetArgs(ctx context.Context, key string, value any, a redis.SetArgs) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, "get")
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	old, existed := s.data[key]
	s.data[key] = []byte(value.(string))
	s.ttls[key] = a.TTL
	s.sets++
	if !existed {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(string(old))
	return cmd
}

func TestResponseCache_RoundTrip(t *testing.T) {
	stub := newKVStub()
	c := NewResponseCache(stub, time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "search:v1")
	assert.False(t, ok)

	c.Set(ctx, "search:v1", []byte(`{"total":1}`))
	assert.Equal(t, time.Minute, stub.ttls["search:v1"])

	got, ok := c.Get(ctx, "search:v1")
	require.True(t, ok)
	assert.Equal(t, `{"total":1}`, string(got))
}

func TestResponseCache_FailuresAreMisses(t *testing.T) {
	stub := newKVStub()
	stub.err = errors.New("connection refused")
	c := NewResponseCache(stub, 0)

	c.Set(context.Background(), "k", []byte("v"))
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Equal(t, defaultCacheTTL, c.ttl)
}

func TestDedupWindow_RefreshesLastSeen(t *testing.T) {
	stub := newKVStub()
	w := NewDedupWindow(stub, 30*time.Second)
	ctx := context.Background()

	first, err := w.MarkFirst(ctx, "usage:dedup:a")
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, 30*time.Second, stub.ttls["usage:dedup:a"])

	stub.ttls["usage:dedup:a"] = 0
	first, err = w.MarkFirst(ctx, "usage:dedup:a")
	require.NoError(t, err)
	assert.False(t, first)
	assert.Equal(t, 30*time.Second, stub.ttls["usage:dedup:a"])
	assert.Equal(t, 2, stub.sets)

	stub.err = errors.New("timeout")
	_, err = w.MarkFirst(ctx, "usage:dedup:b")
	assert.Error(t, err)
}

// scriptStub 以内存计数模拟限流脚本
type scriptStub struct {
	redis.Cmdable
	counts map[string]int64
	ttls   map[string]any
	err    error
}

func (s *scriptStub) EvalSha(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	s.counts[keys[0]]++
	if s.counts[keys[0]] == 1 {
		s.ttls[keys[0]] = args[0]
	}
	cmd.SetVal(s.counts[keys[0]])
	return cmd
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	stub := &scriptStub{counts: map[string]int64{}, ttls: map[string]any{}}
	l := NewRateLimiter(stub)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "rl:ip:/v1/search", 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "rl:ip:/v1/search", 3, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 1000, stub.ttls["rl:ip:/v1/search"])

	ok, err = l.Allow(ctx, "rl:other:/v1/search", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiter_Error(t *testing.T) {
	l := NewRateLimiter(&scriptStub{err: errors.New("LOADING")})
	ok, err := l.Allow(context.Background(), "k", 1, time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
}
