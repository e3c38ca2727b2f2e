package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tycode-ai/tycode/internal/memory"
	"github.com/tycode-ai/tycode/internal/obs"
	"github.com/tycode-ai/tycode/internal/tool"
)

// AppendMemoryTool implements append_memory(content): appends a durable
// fact the model has chosen to remember to the workspace's memory log
// (spec §4.8, scenario S5).
type AppendMemoryTool struct {
	Log     *memory.Log
	Metrics *obs.Metrics
}

func (t *AppendMemoryTool) Name() string            { return "append_memory" }
func (t *AppendMemoryTool) Category() tool.Category { return tool.CategoryExecution }
func (t *AppendMemoryTool) Description() string {
	return "Append a durable fact about the user or project to memory."
}
func (t *AppendMemoryTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"content":{"type":"string"}},"required":["content"]}`)
}

type appendMemoryArgs struct {
	Content string `json:"content"`
}

func (t *AppendMemoryTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args appendMemoryArgs
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid append_memory arguments: %w", err)
	}
	if args.Content == "" {
		return nil, fmt.Errorf("content is required")
	}
	return appendMemoryHandle{log: t.Log, metrics: t.Metrics, content: args.Content, toolUseID: req.ToolUseID}, nil
}

type appendMemoryHandle struct {
	log       *memory.Log
	metrics   *obs.Metrics
	content   string
	toolUseID string
}

func (h appendMemoryHandle) PreviewEvent() tool.PreviewEvent {
	return tool.PreviewEvent{ToolUseID: h.toolUseID, ToolName: "append_memory", Summary: fmt.Sprintf("remember: %s", h.content)}
}

func (h appendMemoryHandle) Execute(ctx context.Context) (tool.Output, error) {
	entry, err := h.log.Append(h.content, "append_memory")
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("appending memory: %v", err)), nil
	}
	h.metrics.RecordMemoryAppend()
	return tool.Result(fmt.Sprintf("remembered (seq %d)", entry.Seq), false, tool.ContinuationContinue), nil
}
