package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tycode-ai/tycode/internal/agentstack"
	"github.com/tycode-ai/tycode/internal/tool"
)

// SpawnAgentTool implements spawn_agent(agent_type, task): a Meta-category
// tool that pushes a new sub-agent onto the stack. Execute performs the
// self-spawn check, the catalog lookup and Stack.Push itself, so an invalid
// request comes back as an error result and never reaches the actor as an
// OutputPushAgent it would have to unwind (spec §4.5, scenario S2).
type SpawnAgentTool struct {
	Catalog *agentstack.Catalog
	Stack   *agentstack.Stack
}

func (t *SpawnAgentTool) Name() string            { return "spawn_agent" }
func (t *SpawnAgentTool) Category() tool.Category { return tool.CategoryMeta }
func (t *SpawnAgentTool) Description() string {
	return "Spawn a sub-agent to handle a delegated task, suspending the current agent until it completes."
}
func (t *SpawnAgentTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"agent_type":{"type":"string"},"task":{"type":"string"}},"required":["agent_type","task"]}`)
}

type spawnAgentArgs struct {
	AgentType string `json:"agent_type"`
	Task      string `json:"task"`
}

func (t *SpawnAgentTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args spawnAgentArgs
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid spawn_agent arguments: %w", err)
	}
	if args.AgentType == "" || args.Task == "" {
		return nil, fmt.Errorf("agent_type and task are required")
	}
	return spawnAgentHandle{tool: t, args: args, toolUseID: req.ToolUseID}, nil
}

type spawnAgentHandle struct {
	tool      *SpawnAgentTool
	args      spawnAgentArgs
	toolUseID string
}

func (h spawnAgentHandle) PreviewEvent() tool.PreviewEvent {
	return tool.PreviewEvent{
		ToolUseID: h.toolUseID,
		ToolName:  "spawn_agent",
		Summary:   fmt.Sprintf("spawn %s: %s", h.args.AgentType, h.args.Task),
	}
}

func (h spawnAgentHandle) Execute(ctx context.Context) (tool.Output, error) {
	current := h.tool.Stack.Current().Agent.AgentType
	if current == h.args.AgentType {
		return tool.Result(fmt.Sprintf("Cannot spawn self (%s)", current), true, tool.ContinuationContinue), nil
	}

	child, err := h.tool.Catalog.Lookup(h.args.AgentType)
	if err != nil {
		return tool.ErrorResult(err.Error()), nil
	}

	if _, err := h.tool.Stack.Push(child, h.args.Task, agentstack.SpawnFresh); err != nil {
		return tool.ErrorResult(err.Error()), nil
	}

	return tool.Output{
		Kind:           tool.OutputPushAgent,
		SpawnAgentType: h.args.AgentType,
		SpawnTask:      h.args.Task,
	}, nil
}

// CompleteTaskTool implements complete_task(success, result): it returns an
// OutputPopAgent carrying success and result, and the actor then pops the
// current agent and hands the result to the parent (spec §4.5 "Pop").
type CompleteTaskTool struct {
	Stack *agentstack.Stack
}

func (t *CompleteTaskTool) Name() string            { return "complete_task" }
func (t *CompleteTaskTool) Category() tool.Category { return tool.CategoryMeta }
func (t *CompleteTaskTool) Description() string {
	return "Report completion of the current delegated task and return control to the parent agent."
}
func (t *CompleteTaskTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"success":{"type":"boolean"},"result":{"type":"string"}},"required":["success","result"]}`)
}

type completeTaskArgs struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
}

func (t *CompleteTaskTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args completeTaskArgs
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid complete_task arguments: %w", err)
	}
	return completeTaskHandle{args: args, toolUseID: req.ToolUseID}, nil
}

type completeTaskHandle struct {
	args      completeTaskArgs
	toolUseID string
}

func (h completeTaskHandle) PreviewEvent() tool.PreviewEvent {
	return tool.PreviewEvent{
		ToolUseID: h.toolUseID,
		ToolName:  "complete_task",
		Summary:   fmt.Sprintf("complete_task success=%t", h.args.Success),
	}
}

func (h completeTaskHandle) Execute(ctx context.Context) (tool.Output, error) {
	return tool.Output{
		Kind:       tool.OutputPopAgent,
		PopSuccess: h.args.Success,
		PopResult:  h.args.Result,
	}, nil
}

// AskUserQuestionTool implements ask_user_question(question): yields
// control back to the user, pausing the actor loop until a new message
// arrives (spec §4.2 PromptUser).
type AskUserQuestionTool struct{}

func (t *AskUserQuestionTool) Name() string            { return "ask_user_question" }
func (t *AskUserQuestionTool) Category() tool.Category { return tool.CategoryMeta }
func (t *AskUserQuestionTool) Description() string {
	return "Ask the user a clarifying question and wait for their reply."
}
func (t *AskUserQuestionTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"question":{"type":"string"}},"required":["question"]}`)
}

type askUserQuestionArgs struct {
	Question string `json:"question"`
}

func (t *AskUserQuestionTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args askUserQuestionArgs
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid ask_user_question arguments: %w", err)
	}
	if args.Question == "" {
		return nil, fmt.Errorf("question is required")
	}
	return askUserQuestionHandle{question: args.Question, toolUseID: req.ToolUseID}, nil
}

type askUserQuestionHandle struct {
	question  string
	toolUseID string
}

func (h askUserQuestionHandle) PreviewEvent() tool.PreviewEvent {
	return tool.PreviewEvent{ToolUseID: h.toolUseID, ToolName: "ask_user_question", Summary: h.question}
}

func (h askUserQuestionHandle) Execute(ctx context.Context) (tool.Output, error) {
	return tool.Output{Kind: tool.OutputPromptUser, Question: h.question}, nil
}
