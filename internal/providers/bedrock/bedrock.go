// Package bedrock adapts AWS Bedrock's Converse API to the
// providers.Provider contract.
//
// Grounded on the teacher's internal/agent/providers/bedrock.go: the same
// types.Message/ContentBlock conversion shape, simplified from the
// teacher's ConverseStream to a single Converse call since
// providers.Provider's Converse is request/response rather than a channel
// of chunks.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/tycode-ai/tycode/internal/providers"
)

// Config holds the parameters needed to construct a Provider.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
}

// Provider implements providers.Provider against AWS Bedrock's Converse API.
type Provider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// New constructs a Provider from Config, resolving AWS credentials from the
// default chain (environment, shared config, IAM role) unless explicit
// static credentials are supplied.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	return &Provider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: defaultModel,
	}, nil
}

func (p *Provider) Converse(ctx context.Context, req providers.Request) (providers.Response, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return providers.Response{}, fmt.Errorf("bedrock: convert messages: %w", err)
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if req.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.SystemPrompt},
		}
	}
	if req.MaxOutputTokens > 0 {
		maxTokens := req.MaxOutputTokens
		if maxTokens > math.MaxInt32 {
			maxTokens = math.MaxInt32
		}
		input.InferenceConfig = &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(maxTokens)),
		}
	}
	if len(req.StopSequences) > 0 {
		if input.InferenceConfig == nil {
			input.InferenceConfig = &types.InferenceConfiguration{}
		}
		input.InferenceConfig.StopSequences = req.StopSequences
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = convertTools(req.Tools)
	}

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return providers.Response{}, wrapError(err)
	}

	return convertResponse(out)
}

func convertMessages(messages []providers.Message) ([]types.Message, error) {
	result := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		var content []types.ContentBlock
		for _, b := range m.Content {
			switch b.Kind {
			case providers.BlockText:
				content = append(content, &types.ContentBlockMemberText{Value: b.Text})
			case providers.BlockToolUse:
				var inputDoc any
				if len(b.ToolInput) > 0 {
					if err := json.Unmarshal(b.ToolInput, &inputDoc); err != nil {
						return nil, fmt.Errorf("invalid tool_use input for %s: %w", b.ToolName, err)
					}
				}
				content = append(content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(b.ToolUseID),
						Name:      aws.String(b.ToolName),
						Input:     document.NewLazyDocument(inputDoc),
					},
				})
			case providers.BlockToolResult:
				content = append(content, &types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(b.ToolResultForID),
						Content: []types.ToolResultContentBlock{
							&types.ToolResultContentBlockMemberText{Value: b.ToolResultText},
						},
					},
				})
			}
		}
		if len(content) == 0 {
			continue
		}

		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: content})
	}
	return result, nil
}

func convertTools(tools []providers.ToolSchema) *types.ToolConfiguration {
	cfg := &types.ToolConfiguration{}
	for _, t := range tools {
		var schemaDoc any
		if err := json.Unmarshal(t.InputSchema, &schemaDoc); err != nil {
			schemaDoc = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		cfg.Tools = append(cfg.Tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schemaDoc)},
			},
		})
	}
	return cfg
}

func convertResponse(out *bedrockruntime.ConverseOutput) (providers.Response, error) {
	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return providers.Response{}, errors.New("bedrock: unexpected converse output shape")
	}

	resp := providers.Response{Message: providers.Envelope{Role: "assistant"}}
	for _, block := range msgOutput.Value.Content {
		switch variant := block.(type) {
		case *types.ContentBlockMemberText:
			resp.Message.Content = append(resp.Message.Content, providers.ContentBlock{
				Kind: providers.BlockText, Text: variant.Value,
			})
		case *types.ContentBlockMemberToolUse:
			var input map[string]any
			_ = variant.Value.Input.UnmarshalSmithyDocument(&input)
			raw, _ := json.Marshal(input)
			resp.Message.Content = append(resp.Message.Content, providers.ContentBlock{
				Kind:      providers.BlockToolUse,
				ToolUseID: aws.ToString(variant.Value.ToolUseId),
				ToolName:  aws.ToString(variant.Value.Name),
				ToolInput: raw,
			})
		}
	}

	if out.Usage != nil {
		resp.Usage = providers.TokenUsage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}

	switch out.StopReason {
	case types.StopReasonToolUse:
		resp.StopReason = providers.StopToolUse
	case types.StopReasonMaxTokens:
		resp.StopReason = providers.StopMaxTokens
	default:
		resp.StopReason = providers.StopEndTurn
	}

	return resp, nil
}

// wrapError classifies a Bedrock SDK error into the vendor-agnostic shapes
// RetryingProvider and the chat actor know how to handle.
func wrapError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "input is too long") || strings.Contains(msg, "too many input tokens") {
		return providers.ErrInputTooLong
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		if status == 429 || status >= 500 {
			return &providers.TransientError{Err: err}
		}
		return err
	}

	var throttling *types.ThrottlingException
	if errors.As(err, &throttling) {
		return &providers.TransientError{Err: err}
	}
	var serviceUnavail *types.ServiceUnavailableException
	if errors.As(err, &serviceUnavail) {
		return &providers.TransientError{Err: err}
	}
	var modelTimeout *types.ModelTimeoutException
	if errors.As(err, &modelTimeout) {
		return &providers.TransientError{Err: err}
	}

	return err
}
