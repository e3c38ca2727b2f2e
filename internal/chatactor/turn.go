package chatactor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tycode-ai/tycode/internal/contextbuilder"
	"github.com/tycode-ai/tycode/internal/events"
	"github.com/tycode-ai/tycode/internal/memory"
	"github.com/tycode-ai/tycode/internal/providers"
	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/internal/toolpipeline"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// runTurn drives one SendMessage turn to completion: the seven steps of
// spec §4.7 (typing indicator, append the user's message, assemble the
// request, converse with at most one compaction-and-retry on
// ErrInputTooLong, assemble and append the assistant's reply, run any tool
// calls and dispatch the Meta-tool result, persist the session) repeated
// until the batch yields no further tool calls or a Meta output ends the
// turn outright.
func (a *Actor) runTurn(ctx context.Context, userText string) {
	a.setTyping(true)
	defer a.setTyping(false)
	defer a.persistSession()

	rootAgentType := a.Stack.Current().Agent.AgentType
	turnStart := time.Now()
	outcome := "ok"
	defer func() {
		a.deps.Metrics.RecordTurn(rootAgentType, outcome, time.Since(turnStart))
		a.deps.Metrics.ObserveAgentStackDepth(a.Stack.Depth())
	}()

	a.appendMessage(chatmodel.UserMessage(userText))

	compactedOnce := false

	for {
		active := a.Stack.Current()
		active.Conversation = prunedConversation(active.Conversation, reasoningPruneTrigger, reasoningPruneRetain)

		settings := a.deps.Profiles.Active()
		registry := a.toolRegistry(active.Agent)
		schemas := toolSchemasFor(registry)

		messages := toProviderMessages(active.Conversation)
		if ctxText := contextbuilder.Build(a.contextBuilderInputs(ctx)).Text; ctxText != "" {
			messages = append(messages, providers.Envelope{
				Role:    string(chatmodel.RoleUser),
				Content: []providers.ContentBlock{{Kind: providers.BlockText, Text: ctxText}},
			})
		}

		model, maxTokens, reasoningBudget := a.modelSettingsFor(active.Agent)

		req := providers.Request{
			SystemPrompt:    a.buildSystemPrompt(active.Agent.AgentType, active.Agent.CorePrompt, schemas, settings.XMLToolMode),
			Messages:        messages,
			Model:           model,
			MaxOutputTokens: maxTokens,
			ReasoningBudget: reasoningBudget,
		}
		if !settings.XMLToolMode {
			req.Tools = schemas
		}

		callStart := time.Now()
		resp, err := a.deps.Provider.Converse(ctx, req)
		callDuration := time.Since(callStart)

		if errors.Is(err, providers.ErrInputTooLong) {
			a.deps.Metrics.RecordProviderRequest(model, "input_too_long", callDuration, 0, 0)
			if compactedOnce {
				outcome = "error"
				a.emitError("input too long even after compaction: %v", err)
				return
			}
			compactedOnce = true
			compactStart := time.Now()
			_, cErr := memory.RunCompaction(ctx, a.deps.MemoryLog, a.deps.Compaction, a.summarizer)
			if cErr != nil {
				a.deps.Metrics.RecordCompactionRun("error", time.Since(compactStart))
				outcome = "error"
				a.emitError("compaction failed: %v", cErr)
				return
			}
			a.deps.Metrics.RecordCompactionRun("ok", time.Since(compactStart))
			continue
		}
		if errors.Is(err, context.Canceled) {
			a.deps.Metrics.RecordProviderRequest(model, "cancelled", callDuration, 0, 0)
			outcome = "cancelled"
			a.deps.Sink.Send(events.Event{Kind: events.KindOperationCancelled, SessionID: a.SessionID})
			return
		}
		if err != nil {
			a.deps.Metrics.RecordProviderRequest(model, "error", callDuration, 0, 0)
			outcome = "error"
			a.emitError("inference failed: %v", err)
			return
		}
		a.deps.Metrics.RecordProviderRequest(model, "success", callDuration, resp.Usage.InputTokens, resp.Usage.OutputTokens)

		assembled := assembleAssistantTurn(resp)
		a.appendMessage(assembled.Message)

		for _, perr := range assembled.ParseErrors {
			a.appendMessage(chatmodel.UserMessage("Your last reply could not be parsed: " + perr + ". Please retry using valid tool-call syntax."))
		}

		if len(assembled.ToolCalls) == 0 {
			if a.deps.LastCmd != nil {
				a.deps.LastCmd.Clear()
			}
			break
		}

		caller := a.Stack.Current()
		result := toolpipeline.Run(ctx, assembled.ToolCalls, toolpipeline.Options{
			Registry:      registry,
			Sink:          a.deps.Sink,
			SessionID:     a.SessionID,
			AgentName:     active.Agent.AgentType,
			WorkspaceRoot: a.deps.WorkspaceRoot,
			Metrics:       a.deps.Metrics,
		})
		// caller, not a.Stack.Current(): a spawn_agent call already pushed
		// the child inside toolpipeline.Run, so its ToolResult must land on
		// the frame that issued the call, not the one now on top.
		if len(result.ToolResults) > 0 {
			a.appendMessageTo(caller, chatmodel.Message{Role: chatmodel.RoleUser, Content: result.ToolResults})
		}

		if !usedRunBuildTest(assembled.ToolCalls) && a.deps.LastCmd != nil {
			a.deps.LastCmd.Clear()
		}

		if end := a.dispatchMetaOutput(result.MetaOutput); end {
			break
		}

		if result.Continuation == tool.ContinuationRequireUser {
			break
		}
	}

	a.spawnBackgroundMemory(ctx)
}

func usedRunBuildTest(calls []toolpipeline.Call) bool {
	for _, c := range calls {
		if c.ToolName == "run_build_test" {
			return true
		}
	}
	return false
}

// dispatchMetaOutput handles the push/pop/prompt_user/switch_agent/
// clear_context variants a Meta tool's Output may carry. Returns true when
// the turn should end here (root agent completed, or the user must be
// prompted) rather than loop for another inference round.
//
// SpawnAgentTool.Execute has already called Stack.Push by the time its
// OutputPushAgent reaches here; this just keeps the loop going against the
// new top of stack. CompleteTaskTool.Execute deliberately does not call
// Stack.Pop itself (spec §4.5) — that is the actor's job, since only the
// actor knows whether popping underflowed the root agent.
func (a *Actor) dispatchMetaOutput(output *tool.Output) (endTurn bool) {
	if output == nil {
		return false
	}

	switch output.Kind {
	case tool.OutputPushAgent:
		return false

	case tool.OutputPopAgent:
		underflow := a.Stack.Pop(output.PopSuccess, output.PopResult)
		return underflow

	case tool.OutputPromptUser:
		return true

	case tool.OutputSwitchAgent, tool.OutputClearCtx:
		if a.deps.Logger != nil {
			a.deps.Logger.Warn("unhandled meta tool output kind", "kind", output.Kind)
		}
		return false

	default:
		return false
	}
}

// spawnBackgroundMemory fires the fire-and-forget memory extraction (and,
// if the pending count crosses the configured threshold, auto-compaction)
// over the just-concluded conversation (spec §4.8/§4.9). It deliberately
// runs against context.Background() rather than the turn's own ctx: the
// turn's context is done the moment SendMessage returns, but this
// background run must keep going well past that point.
func (a *Actor) spawnBackgroundMemory(_ context.Context) {
	settings := a.deps.Profiles.Active()
	if !settings.Memory.Enabled {
		return
	}

	logger := a.deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxMessages := settings.Memory.ContextMessageCount
	if maxMessages <= 0 {
		maxMessages = 20
	}
	slice := memory.SafeConversationSlice(a.Stack.Current().Conversation, maxMessages)

	memory.SpawnMemoryManager(
		context.Background(),
		logger,
		a.extractor,
		a.deps.MemoryLog,
		a.deps.Compaction,
		a.summarizer,
		slice,
		memory.AutoCompactionThreshold(settings.Memory.AutoCompactionThreshold),
		a.deps.Metrics,
	)
}
