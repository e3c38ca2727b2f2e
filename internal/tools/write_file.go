package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/internal/vfs"
)

// WriteFileTool implements write_file(file_path, content): creates parent
// directories as needed and overwrites any existing content.
type WriteFileTool struct {
	Resolver *vfs.Resolver
}

func (t *WriteFileTool) Name() string            { return "write_file" }
func (t *WriteFileTool) Category() tool.Category { return tool.CategoryExecution }
func (t *WriteFileTool) Description() string {
	return "Write content to a file, creating parent directories as needed. Overwrites existing content."
}
func (t *WriteFileTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"file_path":{"type":"string"},"content":{"type":"string"}},"required":["file_path","content"]}`)
}

type writeFileArgs struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

func (t *WriteFileTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args writeFileArgs
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid write_file arguments: %w", err)
	}
	resolved, err := t.Resolver.Resolve(args.FilePath)
	if err != nil {
		return nil, err
	}

	before := ""
	if data, err := os.ReadFile(resolved.RealPath); err == nil {
		before = string(data)
	}

	return writeFileHandle{resolved: resolved, content: args.Content, before: before, toolUseID: req.ToolUseID}, nil
}

type writeFileHandle struct {
	resolved  vfs.ResolvedPath
	content   string
	before    string
	toolUseID string
}

func (h writeFileHandle) PreviewEvent() tool.PreviewEvent {
	return tool.PreviewEvent{
		ToolUseID: h.toolUseID,
		ToolName:  "write_file",
		Summary:   fmt.Sprintf("write %s", h.resolved.VirtualPath),
		Before:    h.before,
		After:     h.content,
	}
}

func (h writeFileHandle) Execute(ctx context.Context) (tool.Output, error) {
	if err := os.MkdirAll(filepath.Dir(h.resolved.RealPath), 0o755); err != nil {
		return tool.ErrorResult(fmt.Sprintf("creating parent directories: %v", err)), nil
	}
	if err := os.WriteFile(h.resolved.RealPath, []byte(h.content), 0o644); err != nil {
		return tool.ErrorResult(fmt.Sprintf("writing file: %v", err)), nil
	}
	return tool.Result(fmt.Sprintf("wrote %s", h.resolved.VirtualPath), false, tool.ContinuationContinue), nil
}
