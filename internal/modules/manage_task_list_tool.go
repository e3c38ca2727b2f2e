package modules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tycode-ai/tycode/internal/tool"
)

// ManageTaskListTool is the one writer of a TaskListModule's state (spec
// §4.12/§5): it atomically replaces the task list and is exempt from the
// single-Meta-tool rule via the toolpipeline's by-name companion
// exception, since its own category is Execution.
type ManageTaskListTool struct {
	module *TaskListModule
}

func (t *ManageTaskListTool) Name() string        { return "manage_task_list" }
func (t *ManageTaskListTool) Category() tool.Category { return tool.CategoryExecution }

func (t *ManageTaskListTool) Description() string {
	return "Atomically replace the task list shown to the user, with a title and an ordered list of {description, status} tasks."
}

func (t *ManageTaskListTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"tasks": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"description": {"type": "string"},
						"status": {"type": "string", "enum": ["pending", "in_progress", "completed", "failed"]}
					},
					"required": ["description", "status"]
				}
			}
		},
		"required": ["title", "tasks"]
	}`)
}

type manageTaskListArgs struct {
	Title string           `json:"title"`
	Tasks []TaskWithStatus `json:"tasks"`
}

func (t *ManageTaskListTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args manageTaskListArgs
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid manage_task_list arguments: %w", err)
	}
	return manageTaskListHandle{module: t.module, args: args, toolUseID: req.ToolUseID}, nil
}

type manageTaskListHandle struct {
	module    *TaskListModule
	args      manageTaskListArgs
	toolUseID string
}

func (h manageTaskListHandle) PreviewEvent() tool.PreviewEvent {
	return tool.PreviewEvent{
		ToolUseID: h.toolUseID,
		ToolName:  "manage_task_list",
		Summary:   fmt.Sprintf("update task list %q (%d tasks)", h.args.Title, len(h.args.Tasks)),
	}
}

func (h manageTaskListHandle) Execute(ctx context.Context) (tool.Output, error) {
	if err := h.module.Replace(h.args.Title, h.args.Tasks); err != nil {
		return tool.ErrorResult(err.Error()), nil
	}
	return tool.Result(fmt.Sprintf("task list updated: %q (%d tasks)", h.args.Title, len(h.args.Tasks)), false, tool.ContinuationContinue), nil
}
