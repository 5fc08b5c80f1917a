package workflow

import (
	"regexp"
	"strings"
)

var (
	fencedJSONBlock  = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	fencedPlainBlock = regexp.MustCompile("(?s)```\\s*(.*?)```")
)

// extractJSON pulls the most likely JSON payload out of a model response.
// Models wrap output inconsistently, so candidates are tried from most to
// least structured: a ```json fence, any plain fence, the first
// brace-balanced object, finally the raw text. The caller still has to
// parse; this only narrows the haystack.
func extractJSON(text string) string {
	if m := fencedJSONBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fencedPlainBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if span := balancedBraceSpan(text); span != "" {
		return span
	}
	return strings.TrimSpace(text)
}

// balancedBraceSpan returns the first {...} span with balanced braces,
// ignoring braces inside JSON string literals.
func balancedBraceSpan(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
