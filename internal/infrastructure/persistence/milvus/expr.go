package milvus

import (
	"fmt"
	"strconv"
	"strings"

	"resource-search-api/internal/application/search"
)

// filterExpr 把过滤条件转为 Milvus 布尔表达式；无条件时返回空串。
func filterExpr(f search.VectorFilter) string {
	var parts []string
	if v := strings.TrimSpace(f.Topic); v != "" {
		parts = append(parts, fmt.Sprintf(`%s == %s`, fieldTopic, quote(v)))
	}
	if v := strings.TrimSpace(f.Country); v != "" {
		parts = append(parts, fmt.Sprintf(`%s == %s`, fieldCountry, quote(v)))
	}
	switch {
	case f.Year > 0:
		parts = append(parts, fmt.Sprintf(`%s == %d`, fieldYear, f.Year))
	default:
		if f.YearFrom > 0 {
			parts = append(parts, fmt.Sprintf(`%s >= %d`, fieldYear, f.YearFrom))
		}
		if f.YearTo > 0 {
			parts = append(parts, fmt.Sprintf(`%s <= %d`, fieldYear, f.YearTo))
		}
	}
	var types []string
	for _, t := range f.Types {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, quote(t))
		}
	}
	if len(types) > 0 {
		parts = append(parts, fmt.Sprintf(`%s in [%s]`, fieldType, strings.Join(types, ", ")))
	}
	return strings.Join(parts, " && ")
}

// idsExpr id in [...] 表达式
func idsExpr(ids []string) string {
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, quote(id))
	}
	return fmt.Sprintf(`%s in [%s]`, fieldID, strings.Join(quoted, ", "))
}

func quote(s string) string {
	return strconv.Quote(s)
}
