package generativeAI

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	objectPattern   = regexp.MustCompile(`(?s)\{.*\}`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	lineCommentRe   = regexp.MustCompile(`(?m)^\s*//.*$`)
)

// CleanJSONResponse strips markdown fences and any prose around the outermost JSON object.
func CleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	firstBrace := strings.Index(response, "{")
	if firstBrace == -1 {
		return response
	}
	lastBrace := strings.LastIndex(response, "}")
	if lastBrace == -1 || lastBrace <= firstBrace {
		return strings.TrimSpace(response[firstBrace:])
	}
	return strings.TrimSpace(response[firstBrace : lastBrace+1])
}

// ParseJSONObject decodes a model reply into dst using progressively more forgiving passes:
// direct decode, first {...} block, structural repair. When all of them fail dst is decoded
// from an empty object and false is returned. It never returns an error.
func ParseJSONObject(text string, dst any) bool {
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), dst); err == nil {
		return true
	}

	candidate := CleanJSONResponse(text)
	if m := objectPattern.FindString(candidate); m != "" {
		if err := json.Unmarshal([]byte(m), dst); err == nil {
			return true
		}
	}

	if repaired := RepairJSON(candidate); repaired != "" {
		if err := json.Unmarshal([]byte(repaired), dst); err == nil {
			return true
		}
	}

	_ = json.Unmarshal([]byte("{}"), dst)
	return false
}

// RepairJSON fixes the structural mistakes models commonly make: line comments, trailing
// commas, single-quoted strings and unclosed braces or brackets.
func RepairJSON(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	s = s[start:]
	s = lineCommentRe.ReplaceAllString(s, "")
	if !strings.Contains(s, `"`) && strings.Contains(s, "'") {
		s = strings.ReplaceAll(s, "'", `"`)
	}

	var closers []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
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
			closers = append(closers, '}')
		case '[':
			closers = append(closers, ']')
		case '}', ']':
			if len(closers) > 0 {
				closers = closers[:len(closers)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(s, " \t\r\n,"))
	if inString {
		b.WriteByte('"')
	}
	for i := len(closers) - 1; i >= 0; i-- {
		b.WriteByte(closers[i])
	}
	return trailingCommaRe.ReplaceAllString(b.String(), "$1")
}
