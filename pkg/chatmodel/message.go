// Package chatmodel defines the wire-stable conversation data model shared
// by the chat actor, agent stack, tool pipeline, and session persistence.
package chatmodel

import "encoding/json"

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType tags the variant carried by a ContentBlock.
type BlockType string

const (
	BlockText      BlockType = "text"
	BlockReasoning BlockType = "reasoning"
	BlockToolUse   BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockImage     BlockType = "image"
)

// ContentBlock is a tagged union over the five block variants the core
// understands. Only the fields relevant to Type are populated.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text: BlockText
	Text string `json:"text,omitempty"`

	// Reasoning: BlockReasoning
	ReasoningText      string `json:"reasoning_text,omitempty"`
	ReasoningSignature string `json:"reasoning_signature,omitempty"`
	ReasoningBlob      string `json:"reasoning_blob,omitempty"`

	// ToolUse: BlockToolUse
	ToolUseID   string          `json:"tool_use_id,omitempty"`
	ToolName    string          `json:"tool_name,omitempty"`
	ToolInput   json.RawMessage `json:"tool_input,omitempty"`

	// ToolResult: BlockToolResult
	ToolResultForID string `json:"tool_result_for_id,omitempty"`
	ToolResultText  string `json:"tool_result_text,omitempty"`
	IsError         bool   `json:"is_error,omitempty"`

	// Image: BlockImage
	ImageMediaType string `json:"image_media_type,omitempty"`
	ImageData      string `json:"image_data,omitempty"`
}

// Text builds a BlockText content block.
func Text(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// Reasoning builds a BlockReasoning content block.
func Reasoning(text, signature, blob string) ContentBlock {
	return ContentBlock{Type: BlockReasoning, ReasoningText: text, ReasoningSignature: signature, ReasoningBlob: blob}
}

// ToolUse builds a BlockToolUse content block.
func ToolUse(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// ToolResultBlock builds a BlockToolResult content block.
func ToolResultBlock(toolUseID, text string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolResultForID: toolUseID, ToolResultText: text, IsError: isError}
}

// Image builds a BlockImage content block.
func Image(mediaType, data string) ContentBlock {
	return ContentBlock{Type: BlockImage, ImageMediaType: mediaType, ImageData: data}
}

// Message is a single turn in a conversation: a role plus an ordered
// sequence of content blocks.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserMessage builds a single-text User message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{Text(text)}}
}

// AssistantMessage builds a single-text Assistant message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentBlock{Text(text)}}
}

// ToolUseIDs returns every ToolUse id present in the message, in order.
func (m Message) ToolUseIDs() []string {
	var ids []string
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			ids = append(ids, b.ToolUseID)
		}
	}
	return ids
}

// ToolResultIDs returns every ToolResult's target id present in the message, in order.
func (m Message) ToolResultIDs() []string {
	var ids []string
	for _, b := range m.Content {
		if b.Type == BlockToolResult {
			ids = append(ids, b.ToolResultForID)
		}
	}
	return ids
}

// ReasoningCount returns the number of BlockReasoning blocks in the message.
func (m Message) ReasoningCount() int {
	n := 0
	for _, b := range m.Content {
		if b.Type == BlockReasoning {
			n++
		}
	}
	return n
}

// TextOnly concatenates all BlockText content, in order, separated by newlines.
func (m Message) TextOnly() string {
	var out string
	for _, b := range m.Content {
		if b.Type == BlockText {
			if out != "" {
				out += "\n"
			}
			out += b.Text
		}
	}
	return out
}

// UnresolvedToolUses returns the ToolUse ids in messages that have no
// matching ToolResult anywhere in the conversation. This is the invariant
// guard described in spec §3/§8 (property 1): it must be empty before a
// new inference request is sent.
func UnresolvedToolUses(messages []Message) []string {
	resolved := make(map[string]bool)
	for _, m := range messages {
		for _, id := range m.ToolResultIDs() {
			resolved[id] = true
		}
	}
	var unresolved []string
	for _, m := range messages {
		for _, id := range m.ToolUseIDs() {
			if !resolved[id] {
				unresolved = append(unresolved, id)
			}
		}
	}
	return unresolved
}

// StartsWithOrphanToolResult reports whether the first message in a slice
// begins with a ToolResult block that has no preceding ToolUse within the
// same slice. Used by safe-slice logic (§4.8) and resume/compaction
// boundary checks (§8 property 2).
func StartsWithOrphanToolResult(messages []Message) bool {
	if len(messages) == 0 {
		return false
	}
	first := messages[0]
	if len(first.Content) == 0 {
		return false
	}
	return first.Content[0].Type == BlockToolResult
}
