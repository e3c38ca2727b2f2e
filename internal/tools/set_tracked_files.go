// Package tools implements the concrete Tool Implementations the core
// must ship per spec §4.12: tracked-files management, file mutation
// (write/modify/delete), a build/test runner, the spawn/
// complete/ask-user Meta tools, and append_memory.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/internal/vfs"
)

// SetTrackedFilesTool implements set_tracked_files(file_paths: string[]),
// replacing the tracked set after validating every path exists.
type SetTrackedFilesTool struct {
	Tracked *vfs.TrackedFiles
}

func (t *SetTrackedFilesTool) Name() string            { return "set_tracked_files" }
func (t *SetTrackedFilesTool) Category() tool.Category { return tool.CategoryExecution }
func (t *SetTrackedFilesTool) Description() string {
	return "Replace the set of files tracked in context. Every path must exist."
}
func (t *SetTrackedFilesTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"file_paths":{"type":"array","items":{"type":"string"}}},"required":["file_paths"]}`)
}

type setTrackedFilesArgs struct {
	FilePaths []string `json:"file_paths"`
}

func (t *SetTrackedFilesTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args setTrackedFilesArgs
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid set_tracked_files arguments: %w", err)
	}
	return setTrackedFilesHandle{tracked: t.Tracked, args: args, toolUseID: req.ToolUseID}, nil
}

type setTrackedFilesHandle struct {
	tracked   *vfs.TrackedFiles
	args      setTrackedFilesArgs
	toolUseID string
}

func (h setTrackedFilesHandle) PreviewEvent() tool.PreviewEvent {
	return tool.PreviewEvent{
		ToolUseID: h.toolUseID,
		ToolName:  "set_tracked_files",
		Summary:   fmt.Sprintf("track %d file(s): %s", len(h.args.FilePaths), strings.Join(h.args.FilePaths, ", ")),
	}
}

func (h setTrackedFilesHandle) Execute(ctx context.Context) (tool.Output, error) {
	if err := h.tracked.Set(h.args.FilePaths); err != nil {
		return tool.ErrorResult(err.Error()), nil
	}
	return tool.Result(fmt.Sprintf("tracking %d file(s)", len(h.args.FilePaths)), false, tool.ContinuationContinue), nil
}
