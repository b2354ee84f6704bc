// Package usage 记录检索使用事件：同一会话在去重窗口内的重复检索只记录一次。
package usage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"resource-search-api/internal/application/search"
	"resource-search-api/pkg/logger"
	"resource-search-api/pkg/metrics"
)

// usageNamespace 去重键的 UUIDv5 命名空间
var usageNamespace = uuid.MustParse("6f0b3c1e-9a53-4c52-8f0e-3d7a2b6c9e41")

const asyncTimeout = 3 * time.Second

// Event 一次检索使用事件
type Event struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	Query       string         `json:"query"`
	Filters     search.Filters `json:"filters"`
	Level       string         `json:"level,omitempty"`
	ResultCount int            `json:"result_count"`
	CacheHit    bool           `json:"cache_hit"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// DedupWindow 去重窗口。MarkFirst 在 key 于窗口内首次出现时返回 true 并登记；
// 过期条目视为不存在。
type DedupWindow interface {
	MarkFirst(ctx context.Context, key string) (bool, error)
}

// Publisher 事件下游（Redis Stream）
type Publisher interface {
	PublishUsage(ctx context.Context, event *Event) error
}

// Tracker 使用统计记录器
type Tracker struct {
	window    DedupWindow
	publisher Publisher
	now       func() time.Time
}

// NewTracker window 或 publisher 为 nil 时 Record 为空操作
func NewTracker(window DedupWindow, publisher Publisher) *Tracker {
	return &Tracker{window: window, publisher: publisher, now: time.Now}
}

// Enabled 是否完整配置
func (t *Tracker) Enabled() bool {
	return t != nil && t.window != nil && t.publisher != nil
}

// Record 去重后发布事件，返回是否实际发布。
// 去重窗口故障时按首次出现处理，宁可重复也不丢事件。
func (t *Tracker) Record(ctx context.Context, ev Event) (bool, error) {
	if !t.Enabled() {
		return false, nil
	}
	ev.SessionID = strings.TrimSpace(ev.SessionID)
	ev.Query = search.NormalizeQueryText(ev.Query)
	if ev.SessionID == "" || ev.Query == "" {
		return false, nil
	}

	key := DedupKey(ev)
	first, err := t.window.MarkFirst(ctx, key)
	if err != nil {
		logger.Warn(ctx, "usage dedup window unavailable, recording anyway", "error", err.Error())
		first = true
	}
	if !first {
		metrics.UsageEventsTotal.WithLabelValues("deduplicated").Inc()
		return false, nil
	}

	ev.ID = uuid.NewString()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = t.now().UTC()
	}
	if err := t.publisher.PublishUsage(ctx, &ev); err != nil {
		metrics.UsageEventsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("publish usage event: %w", err)
	}
	metrics.UsageEventsTotal.WithLabelValues("published").Inc()
	return true, nil
}

// RecordAsync 在请求结束后异步记录，不受请求取消影响。
func (t *Tracker) RecordAsync(ctx context.Context, ev Event) {
	if !t.Enabled() {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		bg, cancel := context.WithTimeout(bg, asyncTimeout)
		defer cancel()
		if _, err := t.Record(bg, ev); err != nil {
			logger.Warn(bg, "failed to record search usage", "error", err.Error())
		}
	}()
}

// DedupKey 会话 + 规范化查询 + 过滤条件 → 定长键
func DedupKey(ev Event) string {
	f := ev.Filters
	raw := strings.Join([]string{
		strings.TrimSpace(ev.SessionID),
		search.NormalizeQueryText(ev.Query),
		strings.ToLower(strings.TrimSpace(f.Topic)),
		strings.ToLower(strings.TrimSpace(f.Country)),
		strconv.Itoa(f.Year),
		strconv.Itoa(f.YearFrom),
		strconv.Itoa(f.YearTo),
	}, "\x1f")
	return "usage:dedup:" + uuid.NewSHA1(usageNamespace, []byte(raw)).String()
}
