// Package logger 基于 log/slog 的结构化日志，自动附带请求上下文字段
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// ContextKey 日志上下文键
type ContextKey string

const (
	TraceIDKey   ContextKey = "trace_id"
	SpanIDKey    ContextKey = "span_id"
	RequestIDKey ContextKey = "request_id"
	SessionIDKey ContextKey = "session_id"
)

// contextKeys 决定字段输出顺序
var contextKeys = []ContextKey{TraceIDKey, SpanIDKey, RequestIDKey, SessionIDKey}

var defaultLogger atomic.Pointer[slog.Logger]

// New 构造日志器，format 为 json 或 text
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Init 设置进程默认日志器，输出到 stdout
func Init(level, format string) {
	SetDefault(New(os.Stdout, level, format))
}

// SetDefault 替换默认日志器，同时作用于 slog 包级函数
func SetDefault(l *slog.Logger) {
	defaultLogger.Store(l)
	slog.SetDefault(l)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default 未初始化时为 info 级 JSON
func Default() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := New(os.Stdout, "info", "json")
	defaultLogger.CompareAndSwap(nil, l)
	return defaultLogger.Load()
}

// FromContext 附带 context 中已注入的追踪与会话字段
func FromContext(ctx context.Context) *slog.Logger {
	l := Default()
	if ctx == nil {
		return l
	}
	var attrs []any
	for _, key := range contextKeys {
		if v := ctx.Value(key); v != nil {
			attrs = append(attrs, string(key), v)
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

// WithContext 注入日志字段，空字符串忽略
func WithContext(ctx context.Context, key ContextKey, value any) context.Context {
	if s, ok := value.(string); ok && s == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func Debug(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}

// Error err 为 nil 时不输出 error 字段
func Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	FromContext(ctx).Error(msg, args...)
}

// Fatal 记录后以状态码 1 退出
func Fatal(ctx context.Context, msg string, err error, args ...any) {
	Error(ctx, msg, err, args...)
	os.Exit(1)
}
