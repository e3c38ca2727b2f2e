package chatactor

import (
	"strings"

	"github.com/tycode-ai/tycode/internal/providers"
	"github.com/tycode-ai/tycode/internal/toolparse"
	"github.com/tycode-ai/tycode/internal/toolpipeline"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// toProviderMessages translates the conversation model into the vendor-
// agnostic wire shape providers.Converse expects. The chat actor owns this
// boundary so neither pkg/chatmodel nor internal/providers needs to import
// the other.
func toProviderMessages(msgs []chatmodel.Message) []providers.Message {
	out := make([]providers.Message, len(msgs))
	for i, m := range msgs {
		out[i] = providers.Envelope{Role: string(m.Role), Content: toProviderBlocks(m.Content)}
	}
	return out
}

func toProviderBlocks(blocks []chatmodel.ContentBlock) []providers.ContentBlock {
	out := make([]providers.ContentBlock, len(blocks))
	for i, b := range blocks {
		out[i] = providers.ContentBlock{
			Kind:               providers.BlockKind(b.Type),
			Text:               b.Text,
			ReasoningText:      b.ReasoningText,
			ReasoningSignature: b.ReasoningSignature,
			ReasoningBlob:      b.ReasoningBlob,
			ToolUseID:          b.ToolUseID,
			ToolName:           b.ToolName,
			ToolInput:          b.ToolInput,
			ToolResultForID:    b.ToolResultForID,
			ToolResultText:     b.ToolResultText,
			IsError:            b.IsError,
			ImageMediaType:     b.ImageMediaType,
			ImageData:          b.ImageData,
		}
	}
	return out
}

func fromProviderBlock(b providers.ContentBlock) chatmodel.ContentBlock {
	return chatmodel.ContentBlock{
		Type:               chatmodel.BlockType(b.Kind),
		Text:               b.Text,
		ReasoningText:       b.ReasoningText,
		ReasoningSignature:  b.ReasoningSignature,
		ReasoningBlob:       b.ReasoningBlob,
		ToolUseID:           b.ToolUseID,
		ToolName:            b.ToolName,
		ToolInput:           b.ToolInput,
		ToolResultForID:     b.ToolResultForID,
		ToolResultText:      b.ToolResultText,
		IsError:             b.IsError,
		ImageMediaType:      b.ImageMediaType,
		ImageData:           b.ImageData,
	}
}

// assembledTurn is what one provider Response becomes after translation:
// the Message ready to append to the conversation, the tool calls ready
// for toolpipeline.Run (native tool_use blocks first, in original order,
// followed by anything toolparse.Extract found in the concatenated text),
// and any extraction parse errors to surface as a follow-up user message.
type assembledTurn struct {
	Message     chatmodel.Message
	ToolCalls   []toolpipeline.Call
	ParseErrors []string
}

// assembleAssistantTurn walks a Response's content blocks, concatenates the
// text blocks and runs toolparse.Extract over the result, and merges any
// natively-structured tool_use blocks the vendor adapter already produced
// with whatever the extractor found embedded in prose (spec §4.7 step 4,
// §4.1).
func assembleAssistantTurn(resp providers.Response) assembledTurn {
	var textParts []string
	var nonText []chatmodel.ContentBlock
	var nativeCalls []toolpipeline.Call

	for _, b := range resp.Message.Content {
		switch b.Kind {
		case providers.BlockText:
			textParts = append(textParts, b.Text)
		case providers.BlockToolUse:
			nonText = append(nonText, fromProviderBlock(b))
			nativeCalls = append(nativeCalls, toolpipeline.Call{
				ToolUseID: b.ToolUseID,
				ToolName:  b.ToolName,
				Arguments: b.ToolInput,
			})
		default:
			nonText = append(nonText, fromProviderBlock(b))
		}
	}

	extraction := toolparse.Extract(strings.Join(textParts, "\n"))

	var parseErrors []string
	if extraction.JSONParseError != nil {
		parseErrors = append(parseErrors, "JSON tool-call parse error: "+extraction.JSONParseError.Error())
	}
	if extraction.XMLParseError != nil {
		parseErrors = append(parseErrors, "XML tool-call parse error: "+extraction.XMLParseError.Error())
	}

	calls := append([]toolpipeline.Call{}, nativeCalls...)
	for _, c := range extraction.ToolCalls {
		calls = append(calls, toolpipeline.Call{ToolUseID: c.ID, ToolName: c.Name, Arguments: c.Arguments})
	}

	blocks := make([]chatmodel.ContentBlock, 0, len(nonText)+1)
	if extraction.StrippedText != "" {
		blocks = append(blocks, chatmodel.Text(extraction.StrippedText))
	}
	blocks = append(blocks, nonText...)

	return assembledTurn{
		Message:     chatmodel.Message{Role: chatmodel.RoleAssistant, Content: blocks},
		ToolCalls:   calls,
		ParseErrors: parseErrors,
	}
}
