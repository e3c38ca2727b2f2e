package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/tycode-ai/tycode/internal/agentstack"
	"github.com/tycode-ai/tycode/internal/tool"
)

func TestSpawnAgentTool_SelfSpawnRejectedAsErrorResult(t *testing.T) {
	catalog := agentstack.DefaultCatalog()
	root, err := catalog.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	coder, err := catalog.Lookup("coder")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	stack := agentstack.NewStack(root)
	if _, err := stack.Push(coder, "setup", agentstack.SpawnFresh); err != nil {
		t.Fatalf("Push: %v", err)
	}

	tl := &SpawnAgentTool{Catalog: catalog, Stack: stack}
	args, _ := json.Marshal(spawnAgentArgs{AgentType: "coder", Task: "x"})
	handle, err := tl.Process(context.Background(), tool.Request{ToolUseID: "t1", ToolName: "spawn_agent", Arguments: args})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	out, err := handle.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.IsError || out.Content != "Cannot spawn self (coder)" {
		t.Fatalf("expected self-spawn error result, got %+v", out)
	}
	if stack.Depth() != 2 {
		t.Fatalf("expected stack depth unchanged at 2, got %d", stack.Depth())
	}
}

func TestSpawnAgentTool_ValidSpawnReturnsPushAgentOutput(t *testing.T) {
	catalog := agentstack.DefaultCatalog()
	root, err := catalog.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	stack := agentstack.NewStack(root)

	tl := &SpawnAgentTool{Catalog: catalog, Stack: stack}
	args, _ := json.Marshal(spawnAgentArgs{AgentType: "coder", Task: "Write a test file"})
	handle, err := tl.Process(context.Background(), tool.Request{ToolUseID: "t1", ToolName: "spawn_agent", Arguments: args})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	out, err := handle.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Kind != tool.OutputPushAgent || out.SpawnAgentType != "coder" {
		t.Fatalf("expected OutputPushAgent for coder, got %+v", out)
	}
	if stack.Depth() != 2 {
		t.Fatalf("expected stack depth 2 after push, got %d", stack.Depth())
	}

	text := stack.Current().Conversation[0].TextOnly()
	if !containsBothInOrder(text, "AGENT TRANSITION", "Write a test file") {
		t.Fatalf("expected orientation message before task text, got: %s", text)
	}
}

func TestCompleteTaskTool_ReturnsPopAgentOutput(t *testing.T) {
	tl := &CompleteTaskTool{}
	args, _ := json.Marshal(completeTaskArgs{Success: true, Result: "done"})
	handle, err := tl.Process(context.Background(), tool.Request{ToolUseID: "t1", ToolName: "complete_task", Arguments: args})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	out, err := handle.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Kind != tool.OutputPopAgent || !out.PopSuccess || out.PopResult != "done" {
		t.Fatalf("expected OutputPopAgent{success,done}, got %+v", out)
	}
}

func TestAskUserQuestionTool_ReturnsPromptUserOutput(t *testing.T) {
	tl := &AskUserQuestionTool{}
	args, _ := json.Marshal(askUserQuestionArgs{Question: "Which branch?"})
	handle, err := tl.Process(context.Background(), tool.Request{ToolUseID: "t1", ToolName: "ask_user_question", Arguments: args})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	out, err := handle.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Kind != tool.OutputPromptUser || out.Question != "Which branch?" {
		t.Fatalf("expected OutputPromptUser, got %+v", out)
	}
}

func containsBothInOrder(s, first, second string) bool {
	i := indexOfSubstr(s, first)
	if i < 0 {
		return false
	}
	j := indexOfSubstr(s[i+len(first):], second)
	return j >= 0
}

func indexOfSubstr(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
