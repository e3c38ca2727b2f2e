// Package toolpipeline implements the category-gated, two-phase tool
// execution pipeline from spec §4.6: partition a batch of extracted tool
// calls into Execution/Meta, run Execution tools concurrently, run at most
// one Meta tool (plus its companion manage_task_list), truncate oversized
// results to disk, aggregate continuation flags, and synthesize error
// ToolResults for any call that did not get a real one (including the
// cancellation path, which must never leave the conversation malformed).
//
// Grounded on tycode-core/src/chat/actor.rs's per-turn tool-dispatch step
// (§4.6 prose) for the gating rules, and on the bounded-concurrency
// errgroup fan-out pattern used for parallel tool execution in the pack's
// orchestrator/toolloop.go (clawinfra-evoclaw), adapted to the category
// gating this spec requires.
package toolpipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tycode-ai/tycode/internal/events"
	"github.com/tycode-ai/tycode/internal/obs"
	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// Call is one extracted tool invocation awaiting dispatch.
type Call struct {
	ToolUseID string
	ToolName  string
	Arguments json.RawMessage
}

// Registry resolves a tool by name.
type Registry interface {
	Lookup(name string) (tool.Tool, bool)
}

// MapRegistry is the simplest Registry: a name-to-Tool map.
type MapRegistry map[string]tool.Tool

func (r MapRegistry) Lookup(name string) (tool.Tool, bool) {
	t, ok := r[name]
	return t, ok
}

const manageTaskListToolName = "manage_task_list"

// maxOutputBytes is the module-configured truncation threshold (spec
// §4.6). Exposed as a var so callers (and tests) can override it.
var maxOutputBytes = 16 * 1024

// Options configures a single Run invocation.
type Options struct {
	Registry      Registry
	Sink          *events.Sink
	SessionID     string
	AgentName     string
	WorkspaceRoot string // for the tool-calls disk-spill directory
	MaxOutputBytes int   // 0 uses the package default
	Metrics       *obs.Metrics
}

// Result is the outcome of running one batch of tool calls: the ToolResult
// content blocks to append as a single User message, the aggregated
// continuation decision, and any Meta-tool output the actor must act on
// (push/pop agent, switch agent, clear context, prompt user).
type Result struct {
	ToolResults  []chatmodel.ContentBlock
	Continuation tool.Continuation
	MetaOutput   *tool.Output // nil if the batch had no accepted Meta tool
	MetaCallID   string
}

// Run executes one assistant turn's batch of tool calls per the category
// gating rules in spec §4.6. Per the ordering rule in spec §5, results may
// be computed concurrently but are always returned in the original
// ToolUse order so replay stays deterministic.
func Run(ctx context.Context, calls []Call, opts Options) Result {
	maxBytes := opts.MaxOutputBytes
	if maxBytes <= 0 {
		maxBytes = maxOutputBytes
	}

	accepted, rejected := gate(calls, opts.Registry)
	blocks := make(map[string]chatmodel.ContentBlock, len(calls))

	result := Result{Continuation: tool.ContinuationContinue}
	for _, r := range rejected {
		blocks[r.ToolUseID] = chatmodel.ToolResultBlock(r.ToolUseID, r.reason, true)
	}

	// The companion manage_task_list call (if any) runs first and
	// synchronously, before the meta tool it accompanies.
	var metaCall *acceptedCall
	var execCalls []acceptedCall
	for i := range accepted {
		if accepted[i].tool.Category() == tool.CategoryMeta {
			c := accepted[i]
			metaCall = &c
			continue
		}
		execCalls = append(execCalls, accepted[i])
	}

	execResults := runExecutionBatch(ctx, execCalls, opts, maxBytes)
	for i, er := range execResults {
		blocks[execCalls[i].call.ToolUseID] = er.block
		if er.continuation == tool.ContinuationRequireUser {
			result.Continuation = tool.ContinuationRequireUser
		}
	}

	if metaCall != nil {
		block, output := runOne(ctx, *metaCall, opts, maxBytes)
		blocks[metaCall.call.ToolUseID] = block
		result.MetaOutput = output
		result.MetaCallID = metaCall.call.ToolUseID
	}

	for _, c := range calls {
		if b, ok := blocks[c.ToolUseID]; ok {
			result.ToolResults = append(result.ToolResults, b)
		}
	}

	return result
}

type rejectedCall struct {
	ToolUseID string
	reason    string
}

type acceptedCall struct {
	call Call
	tool tool.Tool
}

// gate applies spec §4.6's category-partitioning rules, splitting calls
// into ones the pipeline will actually run versus ones that get an
// immediate error ToolResult.
func gate(calls []Call, registry Registry) (accepted []acceptedCall, rejected []rejectedCall) {
	type resolved struct {
		call Call
		t    tool.Tool
		ok   bool
	}

	var metas []resolved
	var execs []resolved
	var unknown []rejectedCall

	for _, c := range calls {
		t, ok := registry.Lookup(c.ToolName)
		if !ok {
			unknown = append(unknown, rejectedCall{ToolUseID: c.ToolUseID, reason: fmt.Sprintf("unknown tool: %s", c.ToolName)})
			continue
		}
		switch t.Category() {
		case tool.CategoryMeta:
			metas = append(metas, resolved{call: c, t: t, ok: true})
		default:
			execs = append(execs, resolved{call: c, t: t, ok: true})
		}
	}

	rejected = append(rejected, unknown...)

	switch {
	case len(metas) == 0:
		for _, e := range execs {
			accepted = append(accepted, acceptedCall{call: e.call, tool: e.t})
		}
	case len(metas) == 1:
		// Single meta tool, optionally accompanied by manage_task_list
		// execution calls (the companion exception); any other
		// execution tool mixed in alongside a meta tool is rejected.
		accepted = append(accepted, acceptedCall{call: metas[0].call, tool: metas[0].t})
		for _, e := range execs {
			if e.t.Name() == manageTaskListToolName {
				accepted = append(accepted, acceptedCall{call: e.call, tool: e.t})
				continue
			}
			rejected = append(rejected, rejectedCall{
				ToolUseID: e.call.ToolUseID,
				reason:    fmt.Sprintf("cannot mix tool %q with meta tool %q in the same turn", e.t.Name(), metas[0].t.Name()),
			})
		}
	default:
		// More than one meta tool: all metas rejected, executions
		// (including manage_task_list, now without a meta tool to
		// accompany) still run.
		for _, m := range metas {
			rejected = append(rejected, rejectedCall{
				ToolUseID: m.call.ToolUseID,
				reason:    "only one meta tool (spawn/pop/prompt_user/clear_context) is allowed per turn",
			})
		}
		for _, e := range execs {
			accepted = append(accepted, acceptedCall{call: e.call, tool: e.t})
		}
	}

	return accepted, rejected
}

type execOutcome struct {
	block        chatmodel.ContentBlock
	continuation tool.Continuation
}

// runExecutionBatch runs every Execution-category call concurrently with
// bounded parallelism, per spec §4.6 "run all tools concurrently".
func runExecutionBatch(ctx context.Context, calls []acceptedCall, opts Options, maxBytes int) []execOutcome {
	results := make([]execOutcome, len(calls))
	if len(calls) == 0 {
		return results
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, c := range calls {
		i, c := i, c
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				results[i] = execOutcome{
					block:        chatmodel.ToolResultBlock(c.call.ToolUseID, "cancelled before execution", true),
					continuation: tool.ContinuationContinue,
				}
				return nil
			default:
			}
			block, output := runOne(gCtx, c, opts, maxBytes)
			cont := tool.ContinuationContinue
			if output != nil && output.Kind == tool.OutputResult {
				cont = output.Continuation
			}
			results[i] = execOutcome{block: block, continuation: cont}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// runOne executes the two-phase Process/Execute contract for a single call,
// emitting the ToolRequest preview event, truncating an oversized result to
// disk, and guaranteeing exactly one ToolResult content block is returned
// even on failure.
func runOne(ctx context.Context, c acceptedCall, opts Options, maxBytes int) (chatmodel.ContentBlock, *tool.Output) {
	req := tool.Request{
		ToolUseID: c.call.ToolUseID,
		ToolName:  c.call.ToolName,
		Arguments: c.call.Arguments,
		SessionID: opts.SessionID,
		AgentName: opts.AgentName,
	}

	execStart := time.Now()
	outcome := "error"
	defer func() {
		opts.Metrics.RecordToolExecution(c.call.ToolName, outcome, time.Since(execStart))
	}()

	handle, err := c.tool.Process(ctx, req)
	if err != nil {
		errOutput := tool.ErrorResult(err.Error())
		return chatmodel.ToolResultBlock(c.call.ToolUseID, err.Error(), true), &errOutput
	}

	if opts.Sink != nil {
		preview := handle.PreviewEvent()
		opts.Sink.Send(events.Event{
			Kind:      events.KindToolRequest,
			SessionID: opts.SessionID,
			Payload: events.ToolRequestPayload{
				ToolUseID: preview.ToolUseID,
				ToolName:  preview.ToolName,
				Summary:   preview.Summary,
				Before:    preview.Before,
				After:     preview.After,
			},
		})
	}

	output, err := handle.Execute(ctx)
	if err != nil {
		errOutput := tool.ErrorResult(err.Error())
		sendCompleted(opts, c.call.ToolUseID, false, err.Error())
		return chatmodel.ToolResultBlock(c.call.ToolUseID, err.Error(), true), &errOutput
	}

	if output.IsError {
		outcome = "error"
	} else {
		outcome = "success"
	}
	sendCompleted(opts, c.call.ToolUseID, !output.IsError, errText(output))

	text := output.Content
	if len(text) > maxBytes {
		text = spillToDisk(opts.WorkspaceRoot, c.call.ToolUseID, text, maxBytes)
	}

	return chatmodel.ToolResultBlock(c.call.ToolUseID, text, output.IsError), &output
}

func errText(output tool.Output) string {
	if output.IsError {
		return output.Content
	}
	return ""
}

func sendCompleted(opts Options, toolUseID string, success bool, errMsg string) {
	if opts.Sink == nil {
		return
	}
	opts.Sink.Send(events.Event{
		Kind:      events.KindToolExecutionCompleted,
		SessionID: opts.SessionID,
		Payload: events.ToolExecutionCompletedPayload{
			ToolUseID: toolUseID,
			Success:   success,
			Error:     errMsg,
		},
	})
}

// spillToDisk persists the full tool output to
// <workspace>/.tycode/tool-calls/<uuid>.txt and returns a truncated body
// with a trailer pointing at the saved file, per spec §4.6.
func spillToDisk(workspaceRoot, toolUseID, full string, maxBytes int) string {
	dir := filepath.Join(workspaceRoot, ".tycode", "tool-calls")
	path := filepath.Join(dir, uuid.NewString()+".txt")

	if err := os.MkdirAll(dir, 0o755); err == nil {
		_ = os.WriteFile(path, []byte(full), 0o644)
	}

	truncated := full
	if len(truncated) > maxBytes {
		truncated = truncated[:maxBytes]
	}
	return fmt.Sprintf("%s\n\n[output truncated]\nFull output saved to: %s", truncated, path)
}

// SynthesizeCancellation builds error ToolResults for every pending
// (unresolved) ToolUse id, per spec §4.6's cancellation invariant: the
// conversation must remain well-formed for the next turn.
func SynthesizeCancellation(pendingToolUseIDs []string) []chatmodel.ContentBlock {
	blocks := make([]chatmodel.ContentBlock, 0, len(pendingToolUseIDs))
	for _, id := range pendingToolUseIDs {
		blocks = append(blocks, chatmodel.ToolResultBlock(id, "operation cancelled by user", true))
	}
	return blocks
}
