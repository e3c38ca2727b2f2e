// Package openai adapts the Chat Completions API to the providers.Provider
// contract.
//
// Grounded on the teacher's internal/agent/providers/openai.go: the same
// role-based message conversion and function-tool shape, simplified from
// the teacher's CreateChatCompletionStream to a single
// CreateChatCompletion call since providers.Provider's Converse is
// request/response rather than a channel of chunks.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tycode-ai/tycode/internal/providers"
)

// Config holds the parameters needed to construct a Provider.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// Provider implements providers.Provider against OpenAI's Chat Completions API.
type Provider struct {
	client       *openai.Client
	defaultModel string
}

// New constructs a Provider from Config.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: defaultModel,
	}, nil
}

func (p *Provider) Converse(ctx context.Context, req providers.Request) (providers.Response, error) {
	messages, err := convertMessages(req.Messages, req.SystemPrompt)
	if err != nil {
		return providers.Response{}, fmt.Errorf("openai: convert messages: %w", err)
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.MaxOutputTokens > 0 {
		chatReq.MaxTokens = req.MaxOutputTokens
	}
	if len(req.StopSequences) > 0 {
		chatReq.Stop = req.StopSequences
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertTools(req.Tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return providers.Response{}, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return providers.Response{}, errors.New("openai: empty choices in response")
	}

	return convertResponse(resp), nil
}

func convertMessages(messages []providers.Message, system string) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, m := range messages {
		var text strings.Builder
		var toolCalls []openai.ToolCall
		var toolResults []providers.ContentBlock

		for _, b := range m.Content {
			switch b.Kind {
			case providers.BlockText:
				text.WriteString(b.Text)
			case providers.BlockToolUse:
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   b.ToolUseID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      b.ToolName,
						Arguments: string(b.ToolInput),
					},
				})
			case providers.BlockToolResult:
				toolResults = append(toolResults, b)
			}
		}

		if len(toolResults) > 0 {
			for _, tr := range toolResults {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.ToolResultText,
					ToolCallID: tr.ToolResultForID,
				})
			}
			continue
		}

		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		msg := openai.ChatCompletionMessage{Role: role, Content: text.String()}
		if len(toolCalls) > 0 {
			msg.ToolCalls = toolCalls
		}
		result = append(result, msg)
	}

	return result, nil
}

func convertTools(tools []providers.ToolSchema) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}

func convertResponse(resp openai.ChatCompletionResponse) providers.Response {
	choice := resp.Choices[0]
	out := providers.Response{
		Message: providers.Envelope{Role: "assistant"},
		Usage: providers.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}

	if choice.Message.Content != "" {
		out.Message.Content = append(out.Message.Content, providers.ContentBlock{
			Kind: providers.BlockText, Text: choice.Message.Content,
		})
	}
	for _, tc := range choice.Message.ToolCalls {
		out.Message.Content = append(out.Message.Content, providers.ContentBlock{
			Kind:      providers.BlockToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Function.Name,
			ToolInput: json.RawMessage(tc.Function.Arguments),
		})
	}

	switch choice.FinishReason {
	case openai.FinishReasonToolCalls:
		out.StopReason = providers.StopToolUse
	case openai.FinishReasonLength:
		out.StopReason = providers.StopMaxTokens
	default:
		out.StopReason = providers.StopEndTurn
	}

	return out
}

// wrapError classifies an OpenAI SDK error into the vendor-agnostic shapes
// RetryingProvider and the chat actor know how to handle.
func wrapError(err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	lower := strings.ToLower(apiErr.Message)
	if strings.Contains(lower, "maximum context length") || strings.Contains(lower, "context_length_exceeded") {
		return providers.ErrInputTooLong
	}

	switch {
	case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
		return &providers.TransientError{Err: err}
	case apiErr.HTTPStatusCode >= 500:
		return &providers.TransientError{Err: err}
	default:
		return err
	}
}
