package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DedupWindow 进程内去重窗口
type DedupWindow struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

// NewDedupWindow 创建去重窗口；容量满时最久未出现的键被淘汰。
func NewDedupWindow(maxEntries int, window time.Duration) *DedupWindow {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if window <= 0 {
		window = defaultTTL
	}
	return &DedupWindow{seen: expirable.NewLRU[string, struct{}](maxEntries, nil, window)}
}

// MarkFirst 距上次出现超过窗口时返回 true。每次出现都会刷新过期时间，窗口按最后一次出现计算。
func (w *DedupWindow) MarkFirst(_ context.Context, key string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, seen := w.seen.Get(key)
	w.seen.Add(key, struct{}{})
	return !seen, nil
}
