package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-search-api/internal/application/usage"
)

// streamRecorder 只实现 XAdd，其余方法调用会 panic。
type streamRecorder struct {
	redis.Cmdable
	adds []*redis.XAddArgs
	err  error
}

func (s *streamRecorder) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	s.adds = append(s.adds, a)
	cmd := redis.NewStringCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	cmd.SetVal("1700000000000-0")
	return cmd
}

func TestProducer_PublishUsage(t *testing.T) {
	rec := &streamRecorder{}
	p := NewProducer(rec, 0, "")

	err := p.PublishUsage(context.Background(), &usage.Event{ID: "ev-1", SessionID: "s1", Query: "water", Level: "fast"})
	require.NoError(t, err)
	require.Len(t, rec.adds, 1)

	args := rec.adds[0]
	assert.Equal(t, string(StreamSearchEvents), args.Stream)
	assert.Equal(t, int64(100000), args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]any)
	require.True(t, ok)
	msg, err := DecodeMessage(values)
	require.NoError(t, err)
	assert.Equal(t, "ev-1", msg.ID)
	assert.Equal(t, SchemaVersion, msg.Version)
	assert.Equal(t, "resource-search-api", msg.Source)
	assert.Equal(t, time.UTC, msg.CreatedAt.Location())
	assert.Equal(t, TypeSearchUsage, msg.Type)
	assert.Equal(t, "s1", msg.GetMetadata("session_id"))
	assert.Equal(t, "fast", msg.GetMetadata("level"))

	var ev usage.Event
	require.NoError(t, msg.UnmarshalPayload(&ev))
	assert.Equal(t, "water", ev.Query)
}

func TestProducer_CustomStreamAndError(t *testing.T) {
	rec := &streamRecorder{err: errors.New("READONLY")}
	p := NewProducer(rec, 10, "stream:custom")

	_, err := p.Publish(context.Background(), "stream:custom", &Message{ID: "x", Type: "t"})
	assert.ErrorContains(t, err, "READONLY")

	err = p.PublishUsage(context.Background(), &usage.Event{ID: "e"})
	assert.Error(t, err)
	require.Len(t, rec.adds, 2)
	assert.Equal(t, "stream:custom", rec.adds[1].Stream)
}

func TestMessage_Envelope(t *testing.T) {
	_, err := NewMessage("", TypeSearchUsage, nil)
	assert.Error(t, err)

	msg, err := NewMessage("m1", TypeSearchUsage, map[string]int{"n": 1})
	require.NoError(t, err)
	msg.SetMetadata("empty", "")
	assert.Nil(t, msg.Metadata)
	assert.Equal(t, "", msg.GetMetadata("missing"))

	var payload map[string]int
	require.NoError(t, msg.UnmarshalPayload(&payload))
	assert.Equal(t, 1, payload["n"])

	assert.Error(t, (&Message{ID: "x"}).UnmarshalPayload(&payload))

	_, err = DecodeMessage(map[string]any{"other": "v"})
	assert.Error(t, err)
	_, err = DecodeMessage(map[string]any{"data": "{bad"})
	assert.Error(t, err)
}
