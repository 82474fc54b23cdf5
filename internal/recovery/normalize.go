package recovery

import (
	"regexp"
	"strings"
)

var layoutWhitespace = regexp.MustCompile(`[\t\r\n]+`)

// NormalizeControl collapses runs of tab, carriage return and line feed into a single space,
// then drops the remaining C0 controls and the C1 range U+007F..U+009F.
// It works on runes, so multi-byte characters whose encoding contains bytes in 0x80..0x9F are kept.
func NormalizeControl(text string) string {
	text = layoutWhitespace.ReplaceAllString(text, " ")
	return strings.Map(func(r rune) rune {
		if isStrippedControl(r) {
			return -1
		}
		return r
	}, text)
}

func isStrippedControl(r rune) bool {
	return r < 0x20 || (r >= 0x7f && r <= 0x9f)
}

// TrimToBoundary discards everything before the first '{' or '[' and everything after the last
// '}' or ']'. The closing search runs on the already start-trimmed text.
// found is false when the text holds no delimiter of either kind, in which case text is returned as is.
func TrimToBoundary(text string) (trimmed string, found bool) {
	if start := strings.IndexAny(text, "{["); start >= 0 {
		text = text[start:]
		found = true
	}
	if end := strings.LastIndexAny(text, "}]"); end >= 0 {
		text = text[:end+1]
		found = true
	}
	return text, found
}

// RescueCandidate narrows text to the span from its first '{' through its last '}'.
// ok is false when no such span exists.
func RescueCandidate(text string) (candidate string, ok bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}
	span := text[start:]
	end := strings.LastIndex(span, "}")
	if end < 0 {
		return "", false
	}
	return span[:end+1], true
}
