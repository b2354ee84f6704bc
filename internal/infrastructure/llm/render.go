package llm

import (
	"fmt"
	"strconv"
	"strings"

	"resource-search-api/internal/application/search"
)

// renderResources 每个资源一行：id、标题、元数据与摘录
func renderResources(window []search.CandidateSummary) string {
	if len(window) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, w := range window {
		var meta []string
		for _, v := range []string{w.Type, w.Topic, w.Country} {
			if v = strings.TrimSpace(v); v != "" {
				meta = append(meta, v)
			}
		}
		if w.Year > 0 {
			meta = append(meta, strconv.Itoa(w.Year))
		}
		fmt.Fprintf(&b, "- [%s] %s", w.ID, oneLine(w.Title))
		if len(meta) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(meta, ", "))
		}
		if ex := truncateRunes(oneLine(w.Excerpt), excerptRunes); ex != "" {
			b.WriteString(": ")
			b.WriteString(ex)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSnippets(snippets []search.Snippet) string {
	var b strings.Builder
	for i, s := range snippets {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, oneLine(s.Title), truncateRunes(oneLine(s.Text), excerptRunes*2))
	}
	return strings.TrimSpace(b.String())
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// cleanStrings 去空白、去空项、去重（保序）
func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func idSet(window []search.CandidateSummary) map[string]bool {
	out := make(map[string]bool, len(window))
	for _, w := range window {
		out[w.ID] = true
	}
	return out
}
