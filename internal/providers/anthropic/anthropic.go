// Package anthropic adapts Anthropic's Messages API to the providers.Provider
// contract.
//
// Grounded on the teacher's internal/agent/providers/anthropic.go: the same
// message/tool/error conversion shape, simplified from the teacher's
// streaming Complete() to a single non-streaming Messages.New call since
// providers.Provider's Converse is request/response, not a channel of
// chunks. Streaming belongs at a layer above this package, if ever added.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tycode-ai/tycode/internal/providers"
)

// Config holds the parameters needed to construct a Provider.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// Provider implements providers.Provider against Anthropic's Messages API.
type Provider struct {
	client       anthropic.Client
	defaultModel string
}

// New constructs a Provider from Config.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
	}, nil
}

func (p *Provider) Converse(ctx context.Context, req providers.Request) (providers.Response, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return providers.Response{}, fmt.Errorf("anthropic: convert messages: %w", err)
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.SystemPrompt}}
	}
	for _, s := range req.StopSequences {
		params.StopSequences = append(params.StopSequences, s)
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return providers.Response{}, fmt.Errorf("anthropic: convert tools: %w", err)
		}
		params.Tools = tools
	}
	if req.ReasoningBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(req.ReasoningBudget))
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return providers.Response{}, wrapError(err)
	}

	return convertResponse(msg), nil
}

func convertMessages(messages []providers.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, m := range messages {
		var content []anthropic.ContentBlockParamUnion
		for _, b := range m.Content {
			switch b.Kind {
			case providers.BlockText:
				content = append(content, anthropic.NewTextBlock(b.Text))
			case providers.BlockReasoning:
				// Anthropic requires the exact thinking block it emitted to be
				// replayed back; a freshly-built text substitute is not
				// accepted in a follow-up turn, so reasoning blocks that
				// lack a signature are dropped rather than mis-sent.
				if b.ReasoningSignature != "" {
					content = append(content, anthropic.NewThinkingBlock(b.ReasoningSignature, b.ReasoningText))
				}
			case providers.BlockToolUse:
				var input map[string]any
				if len(b.ToolInput) > 0 {
					if err := json.Unmarshal(b.ToolInput, &input); err != nil {
						return nil, fmt.Errorf("invalid tool_use input for %s: %w", b.ToolName, err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
			case providers.BlockToolResult:
				content = append(content, anthropic.NewToolResultBlock(b.ToolResultForID, b.ToolResultText, b.IsError))
			case providers.BlockImage:
				mt, ok := imageMediaType(b.ImageMediaType)
				if !ok {
					continue
				}
				content = append(content, anthropic.NewImageBlockBase64(mt, b.ImageData))
			}
		}

		var msg anthropic.MessageParam
		if m.Role == "assistant" {
			msg = anthropic.NewAssistantMessage(content...)
		} else {
			msg = anthropic.NewUserMessage(content...)
		}
		result = append(result, msg)
	}
	return result, nil
}

func imageMediaType(mediaType string) (string, bool) {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return strings.ToLower(mediaType), true
	default:
		return "", false
	}
}

func convertTools(tools []providers.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", t.Name, err)
		}
		tp := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if tp.OfTool == nil {
			return nil, fmt.Errorf("invalid schema for %s: missing tool definition", t.Name)
		}
		tp.OfTool.Description = anthropic.String(t.Description)
		result = append(result, tp)
	}
	return result, nil
}

func convertResponse(msg *anthropic.Message) providers.Response {
	resp := providers.Response{
		Message: providers.Envelope{Role: string(msg.Role)},
		Usage: providers.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}

	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Message.Content = append(resp.Message.Content, providers.ContentBlock{
				Kind: providers.BlockText, Text: variant.Text,
			})
		case anthropic.ThinkingBlock:
			resp.Message.Content = append(resp.Message.Content, providers.ContentBlock{
				Kind:               providers.BlockReasoning,
				ReasoningText:      variant.Thinking,
				ReasoningSignature: variant.Signature,
			})
		case anthropic.ToolUseBlock:
			input, _ := json.Marshal(variant.Input)
			resp.Message.Content = append(resp.Message.Content, providers.ContentBlock{
				Kind:      providers.BlockToolUse,
				ToolUseID: variant.ID,
				ToolName:  variant.Name,
				ToolInput: input,
			})
		}
	}

	switch msg.StopReason {
	case anthropic.StopReasonToolUse:
		resp.StopReason = providers.StopToolUse
	case anthropic.StopReasonMaxTokens:
		resp.StopReason = providers.StopMaxTokens
	default:
		resp.StopReason = providers.StopEndTurn
	}

	return resp
}

// wrapError classifies an Anthropic SDK error into the vendor-agnostic
// shapes RetryingProvider and the chat actor know how to handle.
func wrapError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	msg := strings.ToLower(apiErr.Error())
	if apiErr.StatusCode == 413 || strings.Contains(msg, "prompt is too long") || strings.Contains(msg, "context_length") {
		return providers.ErrInputTooLong
	}

	switch {
	case apiErr.StatusCode == 429:
		return &providers.TransientError{Err: err}
	case apiErr.StatusCode >= 500:
		return &providers.TransientError{Err: err}
	default:
		return err
	}
}
