package retrieval

import (
	"strings"
	"unicode/utf8"
)

// excerpt 折叠空白后按字符数截断，超长时以省略号结尾
func excerpt(s string, maxRunes int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	cut := 0
	for i := range s {
		if cut == maxRunes {
			return strings.TrimRight(s[:i], " ") + "…"
		}
		cut++
	}
	return s
}
