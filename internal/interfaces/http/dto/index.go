package dto

import (
	"resource-search-api/internal/application/retrieval"
)

// IndexResourcesRequest 批量索引请求
type IndexResourcesRequest struct {
	Resources []ResourcePayload `json:"resources" binding:"required,min=1,max=500,dive"`
}

// ResourcePayload 单条资源
type ResourcePayload struct {
	ID      string `json:"id" binding:"required,max=128"`
	Title   string `json:"title" binding:"required"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	Country string `json:"country"`
	Year    int    `json:"year" binding:"min=0"`
}

// ToResources 转换为索引输入
func (r *IndexResourcesRequest) ToResources() []retrieval.Resource {
	out := make([]retrieval.Resource, 0, len(r.Resources))
	for _, p := range r.Resources {
		out = append(out, retrieval.Resource{
			ID:      p.ID,
			Title:   p.Title,
			Summary: p.Summary,
			URL:     p.URL,
			Type:    p.Type,
			Topic:   p.Topic,
			Country: p.Country,
			Year:    p.Year,
		})
	}
	return out
}

// DeleteResourcesRequest 批量删除请求
type DeleteResourcesRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=500"`
}

// IndexResourcesResponse 索引结果
type IndexResourcesResponse struct {
	Indexed int                         `json:"indexed"`
	Skipped []retrieval.SkippedResource `json:"skipped"`
}

// ToIndexResourcesResponse 转换索引结果
func ToIndexResourcesResponse(res *retrieval.IndexResult) *IndexResourcesResponse {
	if res == nil {
		return &IndexResourcesResponse{Skipped: []retrieval.SkippedResource{}}
	}
	skipped := res.Skipped
	if skipped == nil {
		skipped = []retrieval.SkippedResource{}
	}
	return &IndexResourcesResponse{Indexed: res.Indexed, Skipped: skipped}
}
