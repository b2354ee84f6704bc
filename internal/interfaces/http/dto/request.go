// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strings"

	"github.com/gin-gonic/gin"

	"resource-search-api/internal/application/search"
)

const (
	// SessionIDHeader 匿名会话标识头，用于使用统计去重
	SessionIDHeader = "X-Session-ID"
)

// SearchRequest 检索请求（查询参数）
type SearchRequest struct {
	Q        string `form:"q"`
	Topic    string `form:"topic"`
	Country  string `form:"country"`
	Year     int    `form:"year"`
	YearFrom int    `form:"yearFrom"`
	YearTo   int    `form:"yearTo"`
	SortBy   string `form:"sortBy"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
	Enhance  string `form:"enhance"`
}

// Filters 提取过滤条件
func (r *SearchRequest) Filters() search.Filters {
	return search.Filters{
		Topic:    r.Topic,
		Country:  r.Country,
		Year:     r.Year,
		YearFrom: r.YearFrom,
		YearTo:   r.YearTo,
	}
}

// ToQuery 转换为编排器查询，校验与默认值由编排器负责
func (r *SearchRequest) ToQuery() search.Query {
	return search.Query{
		Text:     r.Q,
		Filters:  r.Filters(),
		SortBy:   search.SortBy(r.SortBy),
		Page:     r.Page,
		PageSize: r.PageSize,
		Level:    search.EnrichmentLevel(r.Enhance),
	}
}

// IntentRequest 意图预览请求
type IntentRequest struct {
	Q string `form:"q"`
}

// FiltersPayload JSON 形式的过滤条件
type FiltersPayload struct {
	Topic    string `json:"topic,omitempty"`
	Country  string `json:"country,omitempty"`
	Year     int    `json:"year,omitempty"`
	YearFrom int    `json:"yearFrom,omitempty"`
	YearTo   int    `json:"yearTo,omitempty"`
}

func (f *FiltersPayload) toFilters() search.Filters {
	if f == nil {
		return search.Filters{}
	}
	return search.Filters{
		Topic:    strings.TrimSpace(f.Topic),
		Country:  strings.TrimSpace(f.Country),
		Year:     f.Year,
		YearFrom: f.YearFrom,
		YearTo:   f.YearTo,
	}
}

// RecommendRequest 推荐请求
type RecommendRequest struct {
	Query       string          `json:"query" binding:"max=500"`
	SelectedIDs []string        `json:"selectedIds" binding:"max=50"`
	AnswerText  string          `json:"answerText" binding:"max=8000"`
	ExcludeIDs  []string        `json:"excludeIds" binding:"max=200"`
	Filters     *FiltersPayload `json:"filters,omitempty"`
	Limit       int             `json:"limit" binding:"min=0,max=20"`
}

// ToRecommendRequest 转换为应用层请求
func (r *RecommendRequest) ToRecommendRequest() search.RecommendRequest {
	return search.RecommendRequest{
		Query:       strings.TrimSpace(r.Query),
		SelectedIDs: compactIDs(r.SelectedIDs),
		AnswerText:  r.AnswerText,
		ExcludeIDs:  compactIDs(r.ExcludeIDs),
		Filters:     r.Filters.toFilters(),
		Limit:       r.Limit,
	}
}

// BindSessionID 读取会话标识头
func BindSessionID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(SessionIDHeader))
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
