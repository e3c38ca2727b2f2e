// Package chatactor implements the Chat Actor from spec §4.7: a
// single-writer command-channel actor that owns one session's agent
// stack, drives the per-message inference/tool loop, and serializes every
// other public command (settings, session management, agent switching)
// behind the same channel so state mutations never race each other.
//
// Grounded on tycode-core/src/chat/actor.rs's ChatActor (the command-enum-
// over-a-channel shape, the seven-step SendMessage turn, and the
// Meta-output dispatch after each tool batch), adapted into Go as a
// goroutine draining a buffered channel of closures rather than a
// match over an enum — the same pattern the teacher's own
// internal/agent/session_actor.go uses for its single-writer event loop.
package chatactor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tycode-ai/tycode/internal/agentstack"
	"github.com/tycode-ai/tycode/internal/config"
	"github.com/tycode-ai/tycode/internal/contextbuilder"
	"github.com/tycode-ai/tycode/internal/events"
	"github.com/tycode-ai/tycode/internal/memory"
	"github.com/tycode-ai/tycode/internal/modules"
	"github.com/tycode-ai/tycode/internal/obs"
	"github.com/tycode-ai/tycode/internal/providers"
	"github.com/tycode-ai/tycode/internal/review"
	"github.com/tycode-ai/tycode/internal/sessions"
	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/internal/toolpipeline"
	"github.com/tycode-ai/tycode/internal/tools"
	"github.com/tycode-ai/tycode/internal/vfs"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// Deps bundles every collaborator the actor needs, built once at process
// startup and handed to New.
type Deps struct {
	Catalog       *agentstack.Catalog
	Provider      providers.Provider
	Dispatcher    *modules.Dispatcher
	Modules       []modules.Module
	Sessions      *sessions.Store
	Sink          *events.Sink
	Profiles      *config.ProfileManager
	MemoryLog     *memory.Log
	Compaction    *memory.CompactionStore
	Resolver      *vfs.Resolver
	Ignore        *vfs.IgnoreRules
	Tracked       *vfs.TrackedFiles
	LastCmd       *tools.LastCommandStore
	WorkspaceRoot string
	Logger        *slog.Logger
	Metrics       *obs.Metrics
	MCPTools      map[string]tool.Tool
}

// Actor drives exactly one session's conversation. Every public command
// method except Cancel and Review enqueues a closure on cmds and blocks
// (the caller's goroutine, not the actor's) until it completes, which is
// what makes those commands serialize against one another without any
// other locking.
type Actor struct {
	deps Deps

	Stack     *agentstack.Stack
	SessionID string

	summarizer memory.Summarizer
	extractor  memory.ExtractorAgent
	reviewer   *review.Runner

	cmds chan func()

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

// New constructs an Actor for a brand-new session, rooted at the catalog's
// default root agent.
func New(deps Deps) (*Actor, error) {
	root, err := deps.Catalog.Root()
	if err != nil {
		return nil, fmt.Errorf("resolving root agent: %w", err)
	}

	a := &Actor{
		deps:      deps,
		Stack:     agentstack.NewStack(root),
		SessionID: sessions.NewData(nil).ID,
		cmds:      make(chan func(), 16),
		done:      make(chan struct{}),
	}
	a.summarizer = &subAgentSummarizer{actor: a}
	a.extractor = &subAgentExtractor{actor: a}
	a.reviewer = &review.Runner{
		WorkspaceRoot: deps.WorkspaceRoot,
		Agent:         &subAgentReviewRunner{actor: a},
		OnProgress:    a.reviewProgress,
	}

	a.deps.Metrics.SessionStarted()

	go a.loop()
	return a, nil
}

// loop is the actor's single goroutine: every public method's work runs
// here, one closure at a time, which is the entire serialization guarantee.
func (a *Actor) loop() {
	for fn := range a.cmds {
		fn()
	}
	close(a.done)
}

// Close stops the actor's loop. Pending commands already enqueued still run.
func (a *Actor) Close() {
	a.closeOnce.Do(func() {
		close(a.cmds)
		a.deps.Metrics.SessionEnded()
	})
	<-a.done
}

// Summarizer exposes the actor's sub-agent-backed memory.Summarizer so a
// process-level scheduler can drive time-triggered compaction against the
// same summarization path turn-triggered compaction already uses.
func (a *Actor) Summarizer() memory.Summarizer {
	return a.summarizer
}

// submit enqueues fn and blocks until it has run, returning whatever fn
// assigned into the result pointer via its own closure capture.
func (a *Actor) submit(fn func()) {
	wait := make(chan struct{})
	a.cmds <- func() {
		fn()
		close(wait)
	}
	<-wait
}

func (a *Actor) reviewProgress(message string) {
	if a.deps.Sink == nil {
		return
	}
	a.deps.Sink.Send(events.Event{
		Kind:      events.KindTypingStatusChanged,
		SessionID: a.SessionID,
		Payload:   events.TypingStatusPayload{Typing: true},
	})
	_ = message // surfaced via logger only; no dedicated ContextInfo-style event exists for free-text progress
	if a.deps.Logger != nil {
		a.deps.Logger.Info("review progress", "message", message)
	}
}

// emitError sends a KindError event, the uniform way every command surfaces
// a failure to the UI (spec §4.10) without returning it as a Go error —
// commands that can fail partway (e.g. SendMessage) still need to leave the
// conversation in a consistent, persisted state.
func (a *Actor) emitError(format string, args ...any) {
	if a.deps.Sink == nil {
		return
	}
	a.deps.Sink.Send(events.Event{
		Kind:      events.KindError,
		SessionID: a.SessionID,
		Payload:   events.ErrorPayload{Message: fmt.Sprintf(format, args...)},
	})
}

func (a *Actor) setTyping(typing bool) {
	if a.deps.Sink == nil {
		return
	}
	a.deps.Sink.Send(events.Event{
		Kind:      events.KindTypingStatusChanged,
		SessionID: a.SessionID,
		Payload:   events.TypingStatusPayload{Typing: typing},
	})
}

func (a *Actor) appendMessage(m chatmodel.Message) {
	a.appendMessageTo(a.Stack.Current(), m)
}

// appendMessageTo appends m to a specific stack frame rather than whatever
// a.Stack.Current() happens to be right now. Needed when a tool call
// already mutated the stack by the time its result is ready to append —
// spawn_agent's Execute pushes the child before toolpipeline.Run returns,
// so the spawn_agent ToolResult must be appended to the captured parent
// frame, not the post-push Current().
func (a *Actor) appendMessageTo(active *agentstack.ActiveAgent, m chatmodel.Message) {
	active.Conversation = append(active.Conversation, m)
	if a.deps.Sink != nil {
		a.deps.Sink.Send(events.Event{Kind: events.KindMessageAdded, SessionID: a.SessionID, Payload: m})
	}
}

// coreTools builds the nine fixed Tool Implementations spec §4.12 requires
// (file mutation, the build/test runner, the three Meta tools, and
// append_memory), bound to this actor's live session stack. These aren't
// module-contributed: unlike manage_task_list or invoke_skill, they have
// no owning modules.Module and exist directly off the actor's Deps.
func (a *Actor) coreTools() map[string]tool.Tool {
	return map[string]tool.Tool{
		"set_tracked_files": &tools.SetTrackedFilesTool{Tracked: a.deps.Tracked},
		"write_file":        &tools.WriteFileTool{Resolver: a.deps.Resolver},
		"modify_file":       &tools.ModifyFileTool{Resolver: a.deps.Resolver},
		"delete_file":       &tools.DeleteFileTool{Resolver: a.deps.Resolver},
		"run_build_test":    &tools.RunBuildTestTool{Settings: a.deps.Profiles, LastCmd: a.deps.LastCmd},
		"append_memory":     &tools.AppendMemoryTool{Log: a.deps.MemoryLog, Metrics: a.deps.Metrics},
		"spawn_agent":       &tools.SpawnAgentTool{Catalog: a.deps.Catalog, Stack: a.Stack},
		"complete_task":     &tools.CompleteTaskTool{Stack: a.Stack},
		"ask_user_question": &tools.AskUserQuestionTool{},
	}
}

// toolRegistry builds the per-turn toolpipeline.MapRegistry: the fixed core
// tools plus every tool contributed by every registered module, intersected
// against the current agent's AvailableTools list (spec §4.7 step 2, §4.12).
//
// MCP-server tools are the one exception to that intersection: they're
// discovered at connect time from whatever servers the workspace names in
// its settings, so no agentstack.Agent's static AvailableTools list can
// name them in advance. Every agent gets every connected server's tools
// unconditionally, namespaced "mcp__<server>__<tool>" so they can never
// collide with a core or module tool name.
func (a *Actor) toolRegistry(agent agentstack.Agent) toolpipeline.MapRegistry {
	all := a.coreTools()
	for _, m := range a.deps.Modules {
		for _, t := range m.Tools() {
			all[t.Name()] = t
		}
	}

	allowed := make(map[string]bool, len(agent.AvailableTools))
	for _, name := range agent.AvailableTools {
		allowed[name] = true
	}

	reg := toolpipeline.MapRegistry{}
	for name, t := range all {
		if allowed[name] {
			reg[name] = t
		}
	}
	for name, t := range a.deps.MCPTools {
		reg[name] = t
	}
	return reg
}

func (a *Actor) modelSettingsFor(agent agentstack.Agent) (model string, maxTokens int, reasoningBudget int) {
	reasoningBudget = agent.ReasoningBudget
	settings := a.deps.Profiles.Active()
	ms, ok := settings.AgentModels[agent.AgentType]
	if !ok {
		return "", 0, reasoningBudget
	}
	if ms.ReasoningBudget != 0 {
		reasoningBudget = ms.ReasoningBudget
	}
	return ms.Model, ms.MaxOutputTokens, reasoningBudget
}

// persistSession builds and saves the current sessions.Data, preserving
// CreatedAt from any previously saved copy of this session (spec §4.9).
func (a *Actor) persistSession() {
	createdAt := time.Now().UTC()
	if existing, err := a.deps.Sessions.Load(a.SessionID); err == nil {
		createdAt = existing.CreatedAt
	}

	data := &sessions.Data{
		ID:          a.SessionID,
		Messages:    a.Stack.Current().Conversation,
		Events:      a.deps.Sink.History(),
		ModuleState: a.gatherModuleState(),
		CreatedAt:   createdAt,
	}

	if err := a.deps.Sessions.Save(data); err != nil {
		a.emitError("failed to persist session: %v", err)
	}
}

func (a *Actor) gatherModuleState() map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	for _, m := range a.deps.Modules {
		comp, ok := m.SessionState()
		if !ok {
			continue
		}
		raw, err := comp.Save()
		if err != nil {
			if a.deps.Logger != nil {
				a.deps.Logger.Warn("module session state save failed", "module", m.Name(), "error", err)
			}
			continue
		}
		out[comp.Key()] = raw
	}
	return out
}

// contextBuilderInputs assembles the contextbuilder.Inputs for this turn
// from every live data source (spec §4.4).
func (a *Actor) contextBuilderInputs(ctx context.Context) contextbuilder.Inputs {
	settings := a.deps.Profiles.Active()

	in := contextbuilder.Inputs{
		MemoryEnabled:      settings.Memory.Enabled,
		AutoContextEnabled: settings.AutoContextBytes > 0,
		AutoContextBytes:   settings.AutoContextBytes,
	}

	if settings.Memory.Enabled {
		if latest, err := a.deps.Compaction.FindLatest(); err == nil && latest != nil {
			in.CompactionSummary = latest.Summary
		}
		if entries, err := a.deps.MemoryLog.ReadAll(); err == nil {
			n := settings.Memory.RecentMemoriesCount
			if n <= 0 || n > len(entries) {
				n = len(entries)
			}
			for _, e := range entries[len(entries)-n:] {
				in.RecentMemories = append(in.RecentMemories, contextbuilder.Memory{Content: e.Content})
			}
		}
	}

	if title, rows, ok := a.taskListSnapshot(); ok {
		in.TaskListTitle = title
		in.TaskRows = rows
	}

	if in.AutoContextEnabled && a.deps.Resolver != nil {
		if files, err := vfs.ListProjectFiles(a.deps.Resolver, a.deps.Ignore); err == nil {
			in.ProjectFiles = files
		}
	}

	if a.deps.Tracked != nil {
		contents, _ := a.deps.Tracked.ReadAll()
		in.TrackedFiles = contents
	}

	if a.deps.LastCmd != nil {
		in.LastCommand = a.deps.LastCmd.Get()
	}

	return in
}

// taskListSnapshot looks up the registered modules.TaskListModule (if any)
// and returns its current title/rows for context assembly.
func (a *Actor) taskListSnapshot() (string, []contextbuilder.TaskRow, bool) {
	for _, m := range a.deps.Modules {
		tlm, ok := m.(*modules.TaskListModule)
		if !ok {
			continue
		}
		list := tlm.Get()
		rows := make([]contextbuilder.TaskRow, len(list.Tasks))
		for i, t := range list.Tasks {
			rows[i] = contextbuilder.TaskRow{ID: t.ID, Description: t.Description, Status: string(t.Status)}
		}
		return list.Title, rows, true
	}
	return "", nil, false
}
