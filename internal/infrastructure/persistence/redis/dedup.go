package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// DedupWindow 键的 TTL 即窗口长度，每次出现都重置 TTL
type DedupWindow struct {
	rdb    redis.Cmdable
	window time.Duration
}

// NewDedupWindow 创建去重窗口
func NewDedupWindow(rdb redis.Cmdable, window time.Duration) *DedupWindow {
	if window <= 0 {
		window = defaultCacheTTL
	}
	return &DedupWindow{rdb: rdb, window: window}
}

// MarkFirst SET ... GET 原子地写入最后出现时间并取回旧值；旧值不存在即为窗口内首次出现
func (w *DedupWindow) MarkFirst(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "dedup.MarkFirst")
	defer span.End()

	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	_, err := w.rdb.SetArgs(ctx, key, now, redis.SetArgs{TTL: w.window, Get: true}).Result()
	ok := IsNil(err)
	if err != nil && !ok {
		span.RecordError(err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("dedup.first", ok))
	return ok, nil
}
