package services

import (
	"strings"
)

// extractJSONBlock pulls the first JSON object or array out of free-form
// backend output. Models wrap JSON in prose or code fences often enough that
// the boundary parser has to tolerate both.
func extractJSONBlock(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = strings.TrimSpace(rest[:end])
		} else {
			s = strings.TrimSpace(rest)
		}
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}
	end := strings.LastIndexByte(s, close)
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// firstSentence returns text up to the first sentence terminator, capped.
func firstSentence(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			return text[:i+1]
		}
		if maxLen > 0 && i >= maxLen {
			return strings.TrimSpace(text[:i]) + "..."
		}
	}
	return text
}
