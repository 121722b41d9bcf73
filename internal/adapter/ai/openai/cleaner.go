package openai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// cleanJSON normalizes a model reply into something json.Unmarshal has a
// chance with: markdown fences are stripped, the first complete JSON object
// or array is extracted from surrounding prose, and trailing commas are
// removed as a last resort.
func cleanJSON(content string) string {
	content = stripFences(content)
	content = extractPayload(content)
	if json.Valid([]byte(content)) {
		return content
	}
	return trailingCommaRe.ReplaceAllString(content, "$1")
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractPayload returns the first balanced {...} or [...] block, whichever
// opens first. Models like to wrap their JSON in explanations.
func extractPayload(s string) string {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start := objStart
	open, closeCh := byte('{'), byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		open, closeCh = '[', ']'
	}
	if start == -1 {
		return s
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		switch {
		case inString:
			if s[i] == '\\' {
				i++
			} else if s[i] == '"' {
				inString = false
			}
		case s[i] == '"':
			inString = true
		case s[i] == open:
			depth++
		case s[i] == closeCh:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}
