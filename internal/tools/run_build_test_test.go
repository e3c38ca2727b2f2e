package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tycode-ai/tycode/internal/config"
	"github.com/tycode-ai/tycode/internal/tool"
)

func TestRunBuildTestTool_SuccessReturnsOutputInToolResponseMode(t *testing.T) {
	dir := t.TempDir()
	pm, err := config.NewProfileManager(dir)
	if err != nil {
		t.Fatalf("NewProfileManager: %v", err)
	}
	tl := &RunBuildTestTool{Settings: pm, LastCmd: &LastCommandStore{}}

	args, _ := json.Marshal(runBuildTestArgs{Command: "echo hello"})
	handle, err := tl.Process(context.Background(), tool.Request{ToolUseID: "t1", ToolName: "run_build_test", Arguments: args})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	out, err := handle.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.IsError {
		t.Fatalf("unexpected error result: %s", out.Content)
	}
	if !strings.Contains(out.Content, "hello") {
		t.Fatalf("expected stdout in tool response, got: %s", out.Content)
	}

	if got := tl.LastCmd.Get(); got == nil || got.ExitCode != 0 {
		t.Fatalf("expected last command recorded with exit 0, got %+v", got)
	}
}

func TestRunBuildTestTool_NonZeroExitIsErrorResult(t *testing.T) {
	dir := t.TempDir()
	pm, err := config.NewProfileManager(dir)
	if err != nil {
		t.Fatalf("NewProfileManager: %v", err)
	}
	tl := &RunBuildTestTool{Settings: pm, LastCmd: &LastCommandStore{}}

	args, _ := json.Marshal(runBuildTestArgs{Command: "exit 3"})
	handle, err := tl.Process(context.Background(), tool.Request{ToolUseID: "t1", ToolName: "run_build_test", Arguments: args})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	out, err := handle.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.IsError {
		t.Fatalf("expected error result for non-zero exit")
	}
}

func TestRunBuildTestTool_ContextModeElidesOutputFromToolResult(t *testing.T) {
	dir := t.TempDir()
	if err := config.Save(configPathFor(dir), contextModeSettings()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	pm, err := config.NewProfileManager(dir)
	if err != nil {
		t.Fatalf("NewProfileManager: %v", err)
	}
	tl := &RunBuildTestTool{Settings: pm, LastCmd: &LastCommandStore{}}

	args, _ := json.Marshal(runBuildTestArgs{Command: "echo from-context-mode"})
	handle, err := tl.Process(context.Background(), tool.Request{ToolUseID: "t1", ToolName: "run_build_test", Arguments: args})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	out, err := handle.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Contains(out.Content, "from-context-mode") {
		t.Fatalf("did not expect raw output in tool result for Context mode, got: %s", out.Content)
	}

	got := tl.LastCmd.Get()
	if got == nil || !strings.Contains(got.Stdout, "from-context-mode") {
		t.Fatalf("expected output recorded in LastCommandStore, got %+v", got)
	}
}

func TestRunBuildTestTool_TimeoutReportsTimedOutAsNormalCompletion(t *testing.T) {
	dir := t.TempDir()
	pm, err := config.NewProfileManager(dir)
	if err != nil {
		t.Fatalf("NewProfileManager: %v", err)
	}
	tl := &RunBuildTestTool{Settings: pm, LastCmd: &LastCommandStore{}}

	args, _ := json.Marshal(runBuildTestArgs{Command: "sleep 5", TimeoutSeconds: 1})
	handle, err := tl.Process(context.Background(), tool.Request{ToolUseID: "t1", ToolName: "run_build_test", Arguments: args})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	out, err := handle.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.Content, `"timed_out":true`) {
		t.Fatalf("expected timed_out=true in tool result, got: %s", out.Content)
	}

	got := tl.LastCmd.Get()
	if got == nil || !got.TimedOut {
		t.Fatalf("expected last command recorded with TimedOut=true, got %+v", got)
	}
}

func configPathFor(dir string) string {
	return dir + "/settings.toml"
}

func contextModeSettings() config.Settings {
	s := config.Default()
	s.RunBuildTestOutputMode = config.OutputModeContext
	return s
}
