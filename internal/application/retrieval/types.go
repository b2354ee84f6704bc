package retrieval

// Resource 待索引的资源记录（来自内容后台）。
type Resource struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	Country string `json:"country"`
	Year    int    `json:"year"`
}

// IndexResult 一次批量索引的结果
type IndexResult struct {
	Indexed int               `json:"indexed"`
	Skipped []SkippedResource `json:"skipped"`
}

// SkippedResource 未能索引的资源及原因
type SkippedResource struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}
