package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/internal/vfs"
)

// DeleteFileTool implements delete_file(file_path).
type DeleteFileTool struct {
	Resolver *vfs.Resolver
}

func (t *DeleteFileTool) Name() string            { return "delete_file" }
func (t *DeleteFileTool) Category() tool.Category { return tool.CategoryExecution }
func (t *DeleteFileTool) Description() string     { return "Delete a file." }
func (t *DeleteFileTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"file_path":{"type":"string"}},"required":["file_path"]}`)
}

type deleteFileArgs struct {
	FilePath string `json:"file_path"`
}

func (t *DeleteFileTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args deleteFileArgs
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid delete_file arguments: %w", err)
	}
	resolved, err := t.Resolver.Resolve(args.FilePath)
	if err != nil {
		return nil, err
	}

	before := ""
	if data, err := os.ReadFile(resolved.RealPath); err == nil {
		before = string(data)
	}

	return deleteFileHandle{resolved: resolved, before: before, toolUseID: req.ToolUseID}, nil
}

type deleteFileHandle struct {
	resolved  vfs.ResolvedPath
	before    string
	toolUseID string
}

func (h deleteFileHandle) PreviewEvent() tool.PreviewEvent {
	return tool.PreviewEvent{
		ToolUseID: h.toolUseID,
		ToolName:  "delete_file",
		Summary:   fmt.Sprintf("delete %s", h.resolved.VirtualPath),
		Before:    h.before,
	}
}

func (h deleteFileHandle) Execute(ctx context.Context) (tool.Output, error) {
	if err := os.Remove(h.resolved.RealPath); err != nil {
		return tool.ErrorResult(fmt.Sprintf("deleting file: %v", err)), nil
	}
	return tool.Result(fmt.Sprintf("deleted %s", h.resolved.VirtualPath), false, tool.ContinuationContinue), nil
}
