package search

import (
	"strconv"
	"strings"
)

const (
	cacheKeyPrefix = "search:v1"
	// keySep ASCII Unit Separator，不会出现在任何规范化后的字段中。
	keySep = "\x1f"
)

// NormalizeQueryText 小写、去首尾空白并压缩连续空白。
func NormalizeQueryText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeFilterValue 去首尾空白并压缩连续空白，不改变大小写。
func NormalizeFilterValue(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func keyField(s string) string {
	return strings.ReplaceAll(s, keySep, "")
}

// CacheKey 按固定字段顺序生成缓存键：
// q, topic, country, year, yearFrom, yearTo, sortBy, page, pageSize, level。
// 未设置的字段以空值占位，保证字段位置稳定。
// 字段规范化方式与 Orchestrator.normalize 一致，键相同的请求检索结果也相同。
func CacheKey(q Query) string {
	fields := []string{
		cacheKeyPrefix,
		keyField(NormalizeQueryText(q.Text)),
		keyField(NormalizeFilterValue(q.Filters.Topic)),
		keyField(NormalizeFilterValue(q.Filters.Country)),
		intField(q.Filters.Year),
		intField(q.Filters.YearFrom),
		intField(q.Filters.YearTo),
		keyField(strings.ToLower(strings.TrimSpace(string(q.SortBy)))),
		strconv.Itoa(q.Page),
		strconv.Itoa(q.PageSize),
		string(q.Level),
	}
	return strings.Join(fields, keySep)
}

func intField(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}
