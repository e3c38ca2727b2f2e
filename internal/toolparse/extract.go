package toolparse

// Extraction is the combined output of running both parsers over a single
// assistant message, per spec §4.1 "Output". Parse errors never suppress
// tool calls already found before the error.
type Extraction struct {
	ToolCalls      []ToolCall
	StrippedText   string
	XMLParseError  error
	JSONParseError error
}

// Extract runs the JSON extractor first, then the XML extractor over
// whatever text remains, combining tool calls from both. Either style may
// be absent; both may coexist in pathological model output.
func Extract(text string) Extraction {
	jsonRes := ParseJSONToolCalls(text)
	xmlRes := ParseXMLToolCalls(jsonRes.StrippedText)

	return Extraction{
		ToolCalls:      append(append([]ToolCall{}, jsonRes.ToolCalls...), xmlRes.ToolCalls...),
		StrippedText:   xmlRes.StrippedText,
		XMLParseError:  xmlRes.ParseError,
		JSONParseError: jsonRes.ParseError,
	}
}
