package openai

import (
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tycode-ai/tycode/internal/providers"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNew_AppliesDefaultModel(t *testing.T) {
	p, err := New(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.defaultModel != "gpt-4o" {
		t.Fatalf("unexpected default model: %s", p.defaultModel)
	}
}

func TestConvertMessages_SystemPromptPrepended(t *testing.T) {
	out, err := convertMessages(nil, "be helpful")
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 1 || out[0].Role != openai.ChatMessageRoleSystem || out[0].Content != "be helpful" {
		t.Fatalf("unexpected system message: %+v", out)
	}
}

func TestConvertMessages_ToolResultBecomesOwnMessage(t *testing.T) {
	messages := []providers.Message{
		{Role: "user", Content: []providers.ContentBlock{
			{Kind: providers.BlockToolResult, ToolResultForID: "call-1", ToolResultText: "42"},
		}},
	}
	out, err := convertMessages(messages, "")
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 1 || out[0].Role != openai.ChatMessageRoleTool || out[0].ToolCallID != "call-1" {
		t.Fatalf("unexpected tool message: %+v", out)
	}
}

func TestConvertMessages_AssistantToolCall(t *testing.T) {
	messages := []providers.Message{
		{Role: "assistant", Content: []providers.ContentBlock{
			{Kind: providers.BlockToolUse, ToolUseID: "call-1", ToolName: "search", ToolInput: json.RawMessage(`{"q":"go"}`)},
		}},
	}
	out, err := convertMessages(messages, "")
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 1 || len(out[0].ToolCalls) != 1 || out[0].ToolCalls[0].Function.Name != "search" {
		t.Fatalf("unexpected assistant message: %+v", out)
	}
}

func TestConvertTools_FallsBackOnInvalidSchema(t *testing.T) {
	tools := convertTools([]providers.ToolSchema{{Name: "bad", InputSchema: json.RawMessage(`not json`)}})
	if len(tools) != 1 || tools[0].Function.Parameters == nil {
		t.Fatalf("expected fallback schema, got %+v", tools)
	}
}

func TestWrapError_PassesThroughNonAPIError(t *testing.T) {
	boom := errors.New("network blip")
	if got := wrapError(boom); got != boom {
		t.Fatalf("expected passthrough, got %v", got)
	}
}

func TestWrapError_ContextLengthExceeded(t *testing.T) {
	apiErr := &openai.APIError{Message: "This model's maximum context length is 8192 tokens"}
	if got := wrapError(apiErr); got != providers.ErrInputTooLong {
		t.Fatalf("expected ErrInputTooLong, got %v", got)
	}
}

func TestWrapError_RateLimitIsTransient(t *testing.T) {
	apiErr := &openai.APIError{HTTPStatusCode: 429, Message: "rate limited"}
	var transient *providers.TransientError
	if err := wrapError(apiErr); !errors.As(err, &transient) {
		t.Fatalf("expected TransientError, got %v", err)
	}
}
