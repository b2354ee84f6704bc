package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	var buf bytes.Buffer
	SetDefault(New(&buf, level, "json"))
	return &buf
}

func TestFromContext_AttachesFields(t *testing.T) {
	buf := capture(t, "debug")

	ctx := WithContext(context.Background(), RequestIDKey, "req-1")
	ctx = WithContext(ctx, SessionIDKey, "sess-9")
	ctx = WithContext(ctx, TraceIDKey, "")
	Info(ctx, "search served", "results", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "search served", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "sess-9", line["session_id"])
	assert.NotContains(t, line, "trace_id")
	assert.EqualValues(t, 3, line["results"])
}

func TestError_AppendsErr(t *testing.T) {
	buf := capture(t, "info")

	Error(context.Background(), "retrieve failed", errors.New("milvus down"))
	Error(context.Background(), "no cause", nil)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), `"error":"milvus down"`)
	assert.NotContains(t, string(lines[1]), `"error"`)
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, "warn")

	Debug(context.Background(), "hidden")
	Info(context.Background(), "hidden")
	Warn(context.Background(), "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "TEXT").Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
