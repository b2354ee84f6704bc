package search

import (
	"sort"
	"strings"
)

// DefaultDiversityCap 同一类型在结果中的最大出现次数
const DefaultDiversityCap = 2

// DiversityRanker 贪心、分数优先、按类型限额的候选选择器。
// 对相同输入输出确定（同分按输入顺序）。
type DiversityRanker struct {
	cap int
}

// NewDiversityRanker 创建排序器；perCategoryCap <= 0 时使用默认值。
func NewDiversityRanker(perCategoryCap int) *DiversityRanker {
	if perCategoryCap <= 0 {
		perCategoryCap = DefaultDiversityCap
	}
	return &DiversityRanker{cap: perCategoryCap}
}

// Rank 合并候选后按分数降序遍历：同 id 去重、类型超限跳过，直到 limit。
// 类型不足以凑满 limit 时返回更少的结果，不放宽限额。
func (r *DiversityRanker) Rank(candidates []Candidate, limit int) []Candidate {
	if limit <= 0 || len(candidates) == 0 {
		return []Candidate{}
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	seen := make(map[string]struct{}, len(sorted))
	perType := make(map[string]int)
	out := make([]Candidate, 0, limit)

	for _, c := range sorted {
		if len(out) >= limit {
			break
		}
		id := strings.TrimSpace(c.Doc.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		category := strings.ToLower(strings.TrimSpace(c.Doc.Type))
		if perType[category] >= r.cap {
			continue
		}
		seen[id] = struct{}{}
		perType[category]++
		out = append(out, c)
	}
	return out
}
