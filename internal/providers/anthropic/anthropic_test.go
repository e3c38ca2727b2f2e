package anthropic

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/tycode-ai/tycode/internal/providers"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNew_AppliesDefaultModel(t *testing.T) {
	p, err := New(Config{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.defaultModel != "claude-sonnet-4-20250514" {
		t.Fatalf("unexpected default model: %s", p.defaultModel)
	}
}

func TestConvertMessages_TextAndToolUse(t *testing.T) {
	messages := []providers.Message{
		{Role: "user", Content: []providers.ContentBlock{{Kind: providers.BlockText, Text: "hi"}}},
		{Role: "assistant", Content: []providers.ContentBlock{
			{Kind: providers.BlockToolUse, ToolUseID: "t1", ToolName: "search", ToolInput: json.RawMessage(`{"q":"go"}`)},
		}},
	}

	out, err := convertMessages(messages)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out))
	}
}

func TestConvertMessages_InvalidToolInputErrors(t *testing.T) {
	messages := []providers.Message{
		{Role: "assistant", Content: []providers.ContentBlock{
			{Kind: providers.BlockToolUse, ToolUseID: "t1", ToolName: "search", ToolInput: json.RawMessage(`not json`)},
		}},
	}
	if _, err := convertMessages(messages); err == nil {
		t.Fatal("expected error for malformed tool_use input")
	}
}

func TestConvertMessages_DropsUnsignedReasoningBlock(t *testing.T) {
	messages := []providers.Message{
		{Role: "assistant", Content: []providers.ContentBlock{
			{Kind: providers.BlockReasoning, ReasoningText: "thinking..."},
		}},
	}
	out, err := convertMessages(messages)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
}

func TestConvertTools_InvalidSchemaErrors(t *testing.T) {
	tools := []providers.ToolSchema{{Name: "bad", InputSchema: json.RawMessage(`not json`)}}
	if _, err := convertTools(tools); err == nil {
		t.Fatal("expected error for malformed schema")
	}
}

func TestWrapError_PassesThroughNonAPIError(t *testing.T) {
	boom := errors.New("network blip")
	if got := wrapError(boom); got != boom {
		t.Fatalf("expected passthrough, got %v", got)
	}
}

func TestImageMediaType(t *testing.T) {
	if _, ok := imageMediaType("image/bmp"); ok {
		t.Fatal("expected unsupported media type to be rejected")
	}
	if mt, ok := imageMediaType("IMAGE/PNG"); !ok || mt != "image/png" {
		t.Fatalf("expected normalized png media type, got %q ok=%v", mt, ok)
	}
}
