// Package toolparse implements the two tool-call extractors described in
// spec §4.1: a JSON extractor for native provider responses, and an XML
// extractor for prompt-embedded tool calls. Both are grounded on
// tycode-core/src/chat/{json,xml}_tool_parser.rs from the original
// implementation and ported line-for-line in algorithm, not in syntax.
package toolparse

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// ToolCall is a single extracted tool invocation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// JSONResult is the outcome of running the JSON extractor over assistant text.
type JSONResult struct {
	ToolCalls    []ToolCall
	StrippedText string
	ParseError   error
}

const toolUseMarker = `"type":"tool_use"`

// ParseJSONToolCalls scans text for `"type":"tool_use"` markers, finds the
// outermost brace-balanced JSON object containing each marker (skipping
// markers that fall inside another JSON string literal), parses it, and
// recursively walks any `content` array to collect every tool_use object.
// Text outside the consumed spans is preserved and returned as StrippedText.
func ParseJSONToolCalls(text string) JSONResult {
	var calls []ToolCall
	var remaining strings.Builder
	lastEnd := 0
	searchPos := 0

	for {
		idx := strings.Index(text[searchPos:], toolUseMarker)
		if idx < 0 {
			break
		}
		markerPos := searchPos + idx

		if isInsideJSONString(text, markerPos) {
			searchPos = markerPos + len(toolUseMarker)
			continue
		}

		start, end, parsed, ok := findOutermostJSONContaining(text, lastEnd, markerPos)
		if !ok {
			searchPos = markerPos + len(toolUseMarker)
			continue
		}

		extracted := extractToolUses(parsed)

		remaining.WriteString(text[lastEnd:start])
		calls = append(calls, extracted...)
		lastEnd = end
		searchPos = end
	}

	remaining.WriteString(text[lastEnd:])

	return JSONResult{
		ToolCalls:    calls,
		StrippedText: strings.TrimSpace(remaining.String()),
	}
}

// findJSONEnd walks forward from a '{' or '[' at start, honoring string and
// escape state, and returns the index just past the matching closer.
func findJSONEnd(text string, start int) (int, bool) {
	if start >= len(text) {
		return 0, false
	}
	opener := text[start]
	var closer byte
	switch opener {
	case '{':
		closer = '}'
	case '[':
		closer = ']'
	default:
		return 0, false
	}

	depth := 0
	inString := false
	escapeNext := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if ch == '\\' && inString {
			escapeNext = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// extractToolUses recursively descends a parsed JSON value, collecting any
// object with `"type":"tool_use"` (including into nested `content` arrays),
// mirroring extract_tool_uses in the Rust original.
func extractToolUses(value any) []ToolCall {
	var results []ToolCall

	switch v := value.(type) {
	case map[string]any:
		if t, _ := v["type"].(string); t == "tool_use" {
			name, hasName := v["name"].(string)
			input, hasInput := v["input"]
			if hasName && hasInput {
				id, _ := v["id"].(string)
				if id == "" {
					id = uuid.NewString()
				}
				raw, err := json.Marshal(input)
				if err == nil {
					results = append(results, ToolCall{ID: id, Name: name, Arguments: raw})
				}
			}
		}
		if content, ok := v["content"]; ok {
			results = append(results, extractToolUses(content)...)
		}
	case []any:
		for _, item := range v {
			results = append(results, extractToolUses(item)...)
		}
	}
	return results
}

// isInsideJSONString reports whether pos falls inside a JSON string literal,
// determined by a left-to-right scan from the start of text honoring `\"`
// escapes. This is O(n) per call by design, matching the original: string
// state genuinely depends on all preceding characters.
func isInsideJSONString(text string, pos int) bool {
	inString := false
	escapeNext := false
	for i := 0; i < pos && i < len(text); i++ {
		ch := text[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		if ch == '\\' && inString {
			escapeNext = true
			continue
		}
		if ch == '"' {
			inString = !inString
		}
	}
	return inString
}

// findOutermostJSONContaining searches text[searchStart:markerPos] for a
// '{' whose brace-balanced extent reaches past markerPos and parses to a
// value containing at least one tool_use, returning the first (outermost)
// such span.
func findOutermostJSONContaining(text string, searchStart, markerPos int) (start, end int, parsed any, ok bool) {
	region := text[searchStart:markerPos]
	offset := 0
	for {
		rel := strings.IndexByte(region[offset:], '{')
		if rel < 0 {
			return 0, 0, nil, false
		}
		jsonStart := searchStart + offset + rel
		jsonEnd, found := findJSONEnd(text, jsonStart)
		if !found {
			offset += rel + 1
			continue
		}
		if jsonEnd <= markerPos {
			offset += rel + 1
			continue
		}
		jsonStr := text[jsonStart:jsonEnd]
		var value any
		if err := json.Unmarshal([]byte(jsonStr), &value); err == nil {
			extracted := extractToolUses(value)
			if len(extracted) > 0 {
				return jsonStart, jsonEnd, value, true
			}
		}
		offset += rel + 1
	}
}
