package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/tycode-ai/tycode/internal/providers"
)

func TestNew_AppliesDefaults(t *testing.T) {
	p, err := New(context.Background(), Config{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.defaultModel != "anthropic.claude-3-5-sonnet-20241022-v2:0" {
		t.Fatalf("unexpected default model: %s", p.defaultModel)
	}
}

func TestConvertMessages_TextAndToolResult(t *testing.T) {
	messages := []providers.Message{
		{Role: "user", Content: []providers.ContentBlock{{Kind: providers.BlockText, Text: "hi"}}},
		{Role: "user", Content: []providers.ContentBlock{
			{Kind: providers.BlockToolResult, ToolResultForID: "t1", ToolResultText: "42"},
		}},
	}
	out, err := convertMessages(messages)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out))
	}
	if out[0].Role != types.ConversationRoleUser {
		t.Fatalf("unexpected role: %v", out[0].Role)
	}
}

func TestConvertMessages_EmptyContentSkipped(t *testing.T) {
	messages := []providers.Message{{Role: "user", Content: nil}}
	out, err := convertMessages(messages)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty-content message to be skipped, got %d", len(out))
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

func TestConvertTools_FallsBackOnInvalidSchema(t *testing.T) {
	cfg := convertTools([]providers.ToolSchema{{Name: "bad", InputSchema: json.RawMessage(`not json`)}})
	if len(cfg.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(cfg.Tools))
	}
}

func TestWrapError_ThrottlingIsTransient(t *testing.T) {
	var transient *providers.TransientError
	if err := wrapError(&types.ThrottlingException{Message: stringPtr("slow down")}); !errors.As(err, &transient) {
		t.Fatalf("expected TransientError, got %v", err)
	}
}

func TestWrapError_InputTooLong(t *testing.T) {
	if got := wrapError(errors.New("Input is too long for requested model")); got != providers.ErrInputTooLong {
		t.Fatalf("expected ErrInputTooLong, got %v", got)
	}
}

func stringPtr(s string) *string { return &s }
