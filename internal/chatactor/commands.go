package chatactor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tycode-ai/tycode/internal/agentstack"
	"github.com/tycode-ai/tycode/internal/config"
	"github.com/tycode-ai/tycode/internal/events"
	"github.com/tycode-ai/tycode/internal/sessions"
)

// SendMessage runs one full turn (spec §4.7) against the session's current
// agent stack. It returns once the turn ends (no further tool calls, a
// Meta output that ends the turn, or cancellation) — callers that want a
// snappy UI should read progress off the Sink's subscription rather than
// wait on this call.
func (a *Actor) SendMessage(ctx context.Context, text string) {
	a.submit(func() {
		turnCtx, cancel := context.WithCancel(ctx)
		a.cancelMu.Lock()
		a.cancel = cancel
		a.cancelMu.Unlock()

		a.runTurn(turnCtx, text)

		a.cancelMu.Lock()
		a.cancel = nil
		a.cancelMu.Unlock()
		cancel()
	})
}

// Cancel requests cancellation of whatever turn is currently in flight.
// Deliberately bypasses the command channel: the actor's single goroutine
// may be blocked for a long time inside SendMessage's closure running
// inference or a tool, and Cancel must still be able to reach it right
// away rather than queue behind it.
func (a *Actor) Cancel() {
	a.cancelMu.Lock()
	cancel := a.cancel
	a.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// GetSettings returns a copy of the active profile's settings document.
func (a *Actor) GetSettings() config.Settings {
	var out config.Settings
	a.submit(func() {
		out = a.deps.Profiles.Active()
	})
	return out
}

// SaveSettings replaces the entire active settings document from a JSON
// payload (the UI's settings editor round-trips the full document rather
// than individual fields) and persists it to the active profile's file.
func (a *Actor) SaveSettings(raw json.RawMessage) error {
	var outErr error
	a.submit(func() {
		var cfg config.Settings
		if err := json.Unmarshal(raw, &cfg); err != nil {
			outErr = fmt.Errorf("invalid settings payload: %w", err)
			a.emitError("failed to save settings: %v", outErr)
			return
		}
		if err := a.deps.Profiles.ReplaceActive(cfg); err != nil {
			outErr = err
			a.emitError("failed to save settings: %v", err)
			return
		}
		a.deps.Sink.Send(events.Event{Kind: events.KindSettings, SessionID: a.SessionID, Payload: cfg})
	})
	return outErr
}

// SwitchAgent rebuilds the stack rooted at the named agent type, carrying
// the current top-of-stack conversation across (spec §4.5's agent-switch
// path, distinct from spawn_agent's push/pop).
func (a *Actor) SwitchAgent(agentType string) error {
	var outErr error
	a.submit(func() {
		agent, err := a.deps.Catalog.Lookup(agentType)
		if err != nil {
			outErr = err
			a.emitError("failed to switch agent: %v", err)
			return
		}
		conv := a.Stack.Current().Conversation
		a.Stack = agentstack.NewStack(agent)
		a.Stack.Current().Conversation = conv
	})
	return outErr
}

// ListSessions returns every saved session's listing summary.
func (a *Actor) ListSessions() ([]sessions.Summary, error) {
	var out []sessions.Summary
	var outErr error
	a.submit(func() {
		out, outErr = a.deps.Sessions.List()
		if outErr != nil {
			a.emitError("failed to list sessions: %v", outErr)
			return
		}
		a.deps.Sink.Send(events.Event{Kind: events.KindSessionsList, SessionID: a.SessionID, Payload: out})
	})
	return out, outErr
}

// ResumeSession loads a saved session, replacing this actor's live state
// with it: conversation, session ID, restored module state, and a replay
// of its historical events so a freshly attached UI can reconstruct it
// (spec §4.9/§4.10).
func (a *Actor) ResumeSession(id string) error {
	var outErr error
	a.submit(func() {
		data, err := a.deps.Sessions.Load(id)
		if err != nil {
			outErr = err
			a.emitError("failed to resume session %q: %v", id, err)
			return
		}

		root, err := a.deps.Catalog.Root()
		if err != nil {
			outErr = err
			a.emitError("failed to resume session %q: %v", id, err)
			return
		}

		a.Stack = agentstack.NewStack(root)
		a.Stack.Current().Conversation = data.Messages
		a.SessionID = data.ID

		for _, m := range a.deps.Modules {
			comp, ok := m.SessionState()
			if !ok {
				continue
			}
			raw, present := data.ModuleState[comp.Key()]
			if !present {
				continue
			}
			if err := comp.Load(raw); err != nil && a.deps.Logger != nil {
				a.deps.Logger.Warn("module session state restore failed", "module", m.Name(), "error", err)
			}
		}

		sessions.Replay(data, a.deps.Sink)
	})
	return outErr
}

// DeleteSession removes a saved session's file. Deleting the session
// currently live in this actor does not affect the live conversation.
func (a *Actor) DeleteSession(id string) error {
	var outErr error
	a.submit(func() {
		if err := a.deps.Sessions.Delete(id); err != nil {
			outErr = err
			a.emitError("failed to delete session %q: %v", id, err)
		}
	})
	return outErr
}

// ClearConversation resets the stack to a single root agent with an empty
// conversation, keeping the same SessionID (spec §4.7's ClearConversation
// command — a fresh start within the same session, not a new one).
func (a *Actor) ClearConversation() {
	a.submit(func() {
		root, err := a.deps.Catalog.Root()
		if err != nil {
			a.emitError("failed to clear conversation: %v", err)
			return
		}
		a.Stack = agentstack.NewStack(root)
		a.deps.Sink.Send(events.Event{Kind: events.KindConversationCleared, SessionID: a.SessionID})
		a.persistSession()
	})
}

// ListProfiles returns every known settings profile name.
func (a *Actor) ListProfiles() ([]string, error) {
	var out []string
	var outErr error
	a.submit(func() {
		out, outErr = a.deps.Profiles.List()
		if outErr != nil {
			a.emitError("failed to list profiles: %v", outErr)
			return
		}
		a.deps.Sink.Send(events.Event{Kind: events.KindProfilesList, SessionID: a.SessionID, Payload: out})
	})
	return out, outErr
}

// Review runs a standard or deep review sub-agent pass over the current
// workspace changes (spec §4.11's `/review [deep]`), returning the report
// text ready to surface as a system message. Unlike the other commands
// here, this bypasses the command channel: a review can itself take
// several provider calls and must not block SendMessage/Cancel for that
// whole duration.
func (a *Actor) Review(ctx context.Context, deep bool) (string, error) {
	return a.reviewer.Review(ctx, deep)
}

// SwitchProfile loads the named profile's settings file and makes it
// active.
func (a *Actor) SwitchProfile(name string) error {
	var outErr error
	a.submit(func() {
		if err := a.deps.Profiles.Switch(name); err != nil {
			outErr = err
			a.emitError("failed to switch profile %q: %v", name, err)
			return
		}
		a.deps.Sink.Send(events.Event{Kind: events.KindSettings, SessionID: a.SessionID, Payload: a.deps.Profiles.Active()})
	})
	return outErr
}
