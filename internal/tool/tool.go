// Package tool defines the uniform Tool contract from spec §4.2: validate
// via Process, preview via the returned handle's request event, then
// Execute to perform the mutating work and yield a ToolOutput variant.
//
// Grounded on the teacher's agent.Tool interface
// (internal/agent/provider_types.go) and ToolCallHandle two-phase split
// pattern, generalized from a flat Execute into prepare/execute so the
// pipeline (internal/toolpipeline) can emit a UI preview event between the
// two phases.
package tool

import (
	"context"
	"encoding/json"
)

// Category gates how a batch of tool calls in one assistant turn may be
// combined (spec §4.6).
type Category string

const (
	CategoryExecution Category = "execution"
	CategoryMeta      Category = "meta"
)

// Continuation tells the tool pipeline whether to keep looping after a
// batch completes or yield control back to the user.
type Continuation string

const (
	ContinuationContinue     Continuation = "continue"
	ContinuationRequireUser  Continuation = "require_user"
)

// Request is the input to a tool invocation: the raw arguments the model
// supplied plus identifying metadata threaded through for logging/events.
type Request struct {
	ToolUseID string
	ToolName  string
	Arguments json.RawMessage
	SessionID string
	AgentName string
}

// Tool is the stable per-tool contract. Implementations must be safe for
// concurrent Process/Execute calls across different Requests (the pipeline
// runs an Execution-category batch concurrently).
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Category() Category
	Process(ctx context.Context, req Request) (Handle, error)
}

// Handle is the two-phase execution handle returned by Process. Creating a
// Handle must not have side effects beyond validation and pre-state reads;
// mutating work happens in Execute.
type Handle interface {
	// PreviewEvent returns a UI-facing preview (e.g. file diff before/after)
	// emitted before Execute runs.
	PreviewEvent() PreviewEvent
	Execute(ctx context.Context) (Output, error)
}

// PreviewEvent is the ToolRequest event payload (spec §4.10).
type PreviewEvent struct {
	ToolUseID string
	ToolName  string
	Summary   string
	Before    string
	After     string
}

// OutputKind tags the ToolOutput variant (spec §4.2).
type OutputKind string

const (
	OutputResult     OutputKind = "result"
	OutputPushAgent  OutputKind = "push_agent"
	OutputPopAgent   OutputKind = "pop_agent"
	OutputPromptUser OutputKind = "prompt_user"
	OutputClearCtx   OutputKind = "clear_context"
	OutputSwitchAgent OutputKind = "switch_agent"
)

// Output is a tagged union over the six ToolOutput variants from spec §4.2.
type Output struct {
	Kind OutputKind

	// OutputResult
	Content      string
	IsError      bool
	Continuation Continuation
	UIResult     string

	// OutputPushAgent
	SpawnAgentType string
	SpawnTask      string

	// OutputPopAgent
	PopSuccess bool
	PopResult  string

	// OutputPromptUser
	Question string

	// OutputSwitchAgent
	SwitchTo string
}

// Result builds a normal-completion OutputResult.
func Result(content string, isError bool, cont Continuation) Output {
	return Output{Kind: OutputResult, Content: content, IsError: isError, Continuation: cont}
}

// ErrorResult is shorthand for a Result with IsError=true and Continue.
func ErrorResult(content string) Output {
	return Result(content, true, ContinuationContinue)
}
