package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject 返回模型输出中第一个可解析的 JSON 对象或数组，
// 容忍前后的说明文字与 ``` 代码块。找不到时返回去空白后的原文。
func ExtractJSONObject(s string) string {
	text := strings.TrimSpace(s)
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		if end := matchClose(text, i); end > i {
			candidate := text[i : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate
			}
		}
	}
	return text
}

// matchClose 找到与 text[start] 配对的闭合括号下标，忽略字符串内的括号
func matchClose(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// IsResponseFormatUnsupportedError 提供商拒绝 response_format 参数时，分析链去掉 JSON 模式重试一次
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"response_format", "json_object", "unknown parameter: 'response"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
