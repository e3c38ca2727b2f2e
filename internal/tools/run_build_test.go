package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/tycode-ai/tycode/internal/config"
	"github.com/tycode-ai/tycode/internal/contextbuilder"
	"github.com/tycode-ai/tycode/internal/tool"
)

const (
	defaultRunBuildTestTimeoutSeconds = 120
	maxCapturedOutputBytes            = 100_000
)

// LastCommandStore holds the most recent run_build_test invocation, read by
// the context builder (spec §4.4) when RunBuildTestOutputMode is Context.
type LastCommandStore struct {
	mu   sync.RWMutex
	last *contextbuilder.LastCommandOutput
}

// Set records the latest command output, replacing any prior one.
func (s *LastCommandStore) Set(out contextbuilder.LastCommandOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &out
}

// Get returns the most recently recorded command output, or nil if none.
func (s *LastCommandStore) Get() *contextbuilder.LastCommandOutput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Clear drops any recorded command output, so a turn that didn't invoke
// run_build_test doesn't keep injecting a stale result into context.
func (s *LastCommandStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = nil
}

// RunBuildTestTool implements run_build_test(command, working_directory,
// timeout_seconds). Output either returns in full as the ToolResult
// (ToolResponse mode) or is recorded for §4.4 context injection and elided
// from the ToolResult (Context mode), per the active settings.
//
// Grounded on the teacher's shell-run tool in cmd/nexus-edge/node_tools.go
// (context.WithTimeout + exec.CommandContext, stdout/stderr capture with a
// truncation cap, exit-code-to-IsError mapping).
type RunBuildTestTool struct {
	Settings *config.ProfileManager
	LastCmd  *LastCommandStore
}

func (t *RunBuildTestTool) Name() string            { return "run_build_test" }
func (t *RunBuildTestTool) Category() tool.Category { return tool.CategoryExecution }
func (t *RunBuildTestTool) Description() string {
	return "Run a build or test command and report its exit code and output."
}
func (t *RunBuildTestTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string"},
			"working_directory": {"type": "string"},
			"timeout_seconds": {"type": "integer"}
		},
		"required": ["command"]
	}`)
}

type runBuildTestArgs struct {
	Command          string `json:"command"`
	WorkingDirectory string `json:"working_directory"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
}

func (t *RunBuildTestTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args runBuildTestArgs
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid run_build_test arguments: %w", err)
	}
	if args.Command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if args.TimeoutSeconds <= 0 {
		args.TimeoutSeconds = defaultRunBuildTestTimeoutSeconds
	}

	mode := config.OutputModeToolResponse
	if t.Settings != nil {
		mode = t.Settings.Active().RunBuildTestOutputMode
	}

	return runBuildTestHandle{tool: t, args: args, mode: mode, toolUseID: req.ToolUseID}, nil
}

type runBuildTestHandle struct {
	tool      *RunBuildTestTool
	args      runBuildTestArgs
	mode      config.RunBuildTestOutputMode
	toolUseID string
}

func (h runBuildTestHandle) PreviewEvent() tool.PreviewEvent {
	summary := fmt.Sprintf("run %q", h.args.Command)
	if h.args.WorkingDirectory != "" {
		summary = fmt.Sprintf("%s (in %s)", summary, h.args.WorkingDirectory)
	}
	return tool.PreviewEvent{ToolUseID: h.toolUseID, ToolName: "run_build_test", Summary: summary}
}

func (h runBuildTestHandle) Execute(ctx context.Context) (tool.Output, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, time.Duration(h.args.TimeoutSeconds)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", h.args.Command)
	if h.args.WorkingDirectory != "" {
		cmd.Dir = h.args.WorkingDirectory
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	timedOut := cmdCtx.Err() == context.DeadlineExceeded
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if !timedOut {
			return tool.ErrorResult(fmt.Sprintf("command execution failed: %v", runErr)), nil
		}
	}

	stdoutStr := truncateOutput(stdout.String())
	stderrStr := truncateOutput(stderr.String())

	if h.tool.LastCmd != nil {
		h.tool.LastCmd.Set(contextbuilder.LastCommandOutput{
			Command:  h.args.Command,
			ExitCode: exitCode,
			Stdout:   stdoutStr,
			Stderr:   stderrStr,
			TimedOut: timedOut,
		})
	}

	// A timeout is reported as a normal completion (spec §5), not an error
	// result: the actor still gets exit code, stdout/stderr, and timed_out
	// so it can decide what to do next.
	isError := exitCode != 0 && !timedOut

	if h.mode == config.OutputModeContext {
		summary := fmt.Sprintf("exit code %d; timed_out=%t; output recorded in context", exitCode, timedOut)
		return tool.Result(summary, isError, tool.ContinuationContinue), nil
	}

	content, _ := json.Marshal(map[string]any{
		"exit_code": exitCode,
		"stdout":    stdoutStr,
		"stderr":    stderrStr,
		"timed_out": timedOut,
	})
	return tool.Result(string(content), isError, tool.ContinuationContinue), nil
}

func truncateOutput(s string) string {
	if len(s) <= maxCapturedOutputBytes {
		return s
	}
	return s[:maxCapturedOutputBytes] + "\n... (truncated)"
}
