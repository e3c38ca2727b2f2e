package toolparse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// XMLResult is the outcome of running the XML extractor over assistant text.
type XMLResult struct {
	ToolCalls    []ToolCall
	StrippedText string
	ParseError   error
}

// ParseXMLToolCalls finds each `<*:function_calls>...</*:function_calls>`
// block (any namespace prefix accepted), and within it each `<*:invoke
// name="X">` containing `<*:parameter name="Y">VALUE</*:parameter>`
// elements. Values are parsed as JSON when possible, else kept as strings.
// Depth-aware matching means a nested example tag embedded inside a
// parameter's own text does not confuse block boundaries.
func ParseXMLToolCalls(text string) XMLResult {
	var calls []ToolCall
	var remaining strings.Builder
	lastEnd := 0
	searchStart := 0

	for {
		openStart, openEnd, found := findOpeningTag(text[searchStart:], "function_calls")
		if !found {
			break
		}
		absOpenStart := searchStart + openStart
		absOpenEnd := searchStart + openEnd

		closeStart, closeEnd, found := findClosingTag(text[absOpenEnd:], "function_calls")
		if !found {
			return XMLResult{
				ToolCalls:    calls,
				StrippedText: strings.TrimSpace(remaining.String() + text[lastEnd:]),
				ParseError:   fmt.Errorf("unclosed function_calls tag at position %d", absOpenStart),
			}
		}
		absCloseStart := absOpenEnd + closeStart
		absCloseEnd := absOpenEnd + closeEnd

		remaining.WriteString(text[lastEnd:absOpenStart])

		blockContent := text[absOpenEnd:absCloseStart]
		parsed, err := parseInvokeBlocks(blockContent)
		if err != nil {
			return XMLResult{
				ToolCalls:    append(calls, parsed...),
				StrippedText: strings.TrimSpace(remaining.String() + text[absCloseEnd:]),
				ParseError:   err,
			}
		}
		calls = append(calls, parsed...)

		lastEnd = absCloseEnd
		searchStart = absCloseEnd
	}

	remaining.WriteString(text[lastEnd:])
	return XMLResult{
		ToolCalls:    calls,
		StrippedText: strings.TrimSpace(remaining.String()),
	}
}

func parseInvokeBlocks(content string) ([]ToolCall, error) {
	var calls []ToolCall
	searchStart := 0

	for {
		_, openEnd, name, found := findNamedOpeningTag(content[searchStart:], "invoke")
		if !found {
			break
		}
		absOpenEnd := searchStart + openEnd

		closeStart, closeEnd, found := findClosingTag(content[absOpenEnd:], "invoke")
		if !found {
			return calls, fmt.Errorf("unclosed invoke tag for tool %q", name)
		}
		absCloseStart := absOpenEnd + closeStart
		absCloseEnd := absOpenEnd + closeEnd

		invokeContent := content[absOpenEnd:absCloseStart]
		params, err := parseParameters(invokeContent)
		if err != nil {
			return calls, err
		}

		raw, _ := json.Marshal(params)
		calls = append(calls, ToolCall{ID: uuid.NewString(), Name: name, Arguments: raw})

		searchStart = absCloseEnd
	}

	return calls, nil
}

func parseParameters(content string) (map[string]any, error) {
	params := make(map[string]any)
	searchStart := 0

	for {
		_, openEnd, name, found := findNamedOpeningTag(content[searchStart:], "parameter")
		if !found {
			break
		}
		absOpenEnd := searchStart + openEnd

		closeStart, closeEnd, found := findClosingTag(content[absOpenEnd:], "parameter")
		if !found {
			return params, fmt.Errorf("unclosed parameter tag for %q", name)
		}
		absCloseStart := absOpenEnd + closeStart
		absCloseEnd := absOpenEnd + closeEnd

		valueStr := content[absOpenEnd:absCloseStart]

		var value any
		if err := json.Unmarshal([]byte(valueStr), &value); err != nil {
			value = valueStr
		}
		params[name] = value

		searchStart = absCloseEnd
	}

	return params, nil
}

// findOpeningTag finds the first `<name>` or `<prefix:name ...>` tag,
// returning byte offsets [start, end) of the whole opening tag.
func findOpeningTag(text, baseName string) (start, end int, found bool) {
	pos := 0
	for pos < len(text) {
		lt := strings.IndexByte(text[pos:], '<')
		if lt < 0 {
			return 0, 0, false
		}
		absLT := pos + lt
		gt := strings.IndexByte(text[absLT:], '>')
		if gt < 0 {
			return 0, 0, false
		}
		tagContent := text[absLT+1 : absLT+gt]
		tagName := firstWord(tagContent)
		if tagName == baseName || strings.HasSuffix(tagName, ":"+baseName) {
			return absLT, absLT + gt + 1, true
		}
		pos = absLT + 1
	}
	return 0, 0, false
}

func findFirstClosingTag(text, baseName string) (start, end int, found bool) {
	pos := 0
	for pos < len(text) {
		lt := strings.Index(text[pos:], "</")
		if lt < 0 {
			return 0, 0, false
		}
		absLT := pos + lt
		gt := strings.IndexByte(text[absLT:], '>')
		if gt < 0 {
			return 0, 0, false
		}
		tagName := strings.TrimSpace(text[absLT+2 : absLT+gt])
		if tagName == baseName || strings.HasSuffix(tagName, ":"+baseName) {
			return absLT, absLT + gt + 1, true
		}
		pos = absLT + 2
	}
	return 0, 0, false
}

// findClosingTag finds the matching `</name>` for an already-consumed
// opening tag, tracking nested opens of the same tag name so an example
// tag embedded in a parameter value does not terminate the block early.
func findClosingTag(text, baseName string) (start, end int, found bool) {
	return findClosingTagWithNesting(text, baseName, 1)
}

func findClosingTagWithNesting(text, baseName string, initialDepth int) (start, end int, found bool) {
	depth := initialDepth
	pos := 0

	for pos < len(text) {
		openStart, _, openFound := findOpeningTag(text[pos:], baseName)
		closeStart, closeEnd, closeFound := findFirstClosingTag(text[pos:], baseName)

		if openFound && closeFound && openStart < closeStart {
			depth++
			pos += openStart + 1
			continue
		}

		if closeFound {
			depth--
			if depth == 0 {
				return pos + closeStart, pos + closeEnd, true
			}
			pos += closeEnd
			continue
		}

		if openFound {
			depth++
			pos += openStart + 1
			continue
		}

		return 0, 0, false
	}
	return 0, 0, false
}

// findNamedOpeningTag finds the first `<name ...>` or `<prefix:name ...>`
// tag carrying a `name="..."` attribute, returning that attribute's value.
func findNamedOpeningTag(text, baseName string) (start, end int, name string, found bool) {
	pos := 0
	for pos < len(text) {
		lt := strings.IndexByte(text[pos:], '<')
		if lt < 0 {
			return 0, 0, "", false
		}
		absLT := pos + lt
		gt := strings.IndexByte(text[absLT:], '>')
		if gt < 0 {
			return 0, 0, "", false
		}
		tagContent := text[absLT+1 : absLT+gt]
		tagName := firstWord(tagContent)
		if tagName == baseName || strings.HasSuffix(tagName, ":"+baseName) {
			if idx := strings.Index(tagContent, `name="`); idx >= 0 {
				valueStart := idx + len(`name="`)
				if end2 := strings.IndexByte(tagContent[valueStart:], '"'); end2 >= 0 {
					return absLT, absLT + gt + 1, tagContent[valueStart : valueStart+end2], true
				}
			}
		}
		pos = absLT + 1
	}
	return 0, 0, "", false
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
