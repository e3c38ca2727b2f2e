package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/tycode-ai/tycode/internal/sessions"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// HelpCommand implements `/help`, listing every registered command's name,
// usage, and description.
type HelpCommand struct {
	Dispatcher *Dispatcher
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "List available commands" }
func (c *HelpCommand) Usage() string        { return "/help" }

func (c *HelpCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, cmd := range c.Dispatcher.Commands() {
		fmt.Fprintf(&b, "  %s — %s\n", cmd.Usage(), cmd.Description())
	}
	return []chatmodel.Message{systemMessage("%s", b.String())}, nil
}

// ClearHandler performs the actual conversation-clearing side effect; the
// concrete implementation lives with whatever owns the active
// conversation (the chat actor).
type ClearHandler func()

// ClearCommand implements `/clear`.
type ClearCommand struct {
	OnClear ClearHandler
}

func (c *ClearCommand) Name() string        { return "clear" }
func (c *ClearCommand) Description() string { return "Clear the current conversation" }
func (c *ClearCommand) Usage() string        { return "/clear" }

func (c *ClearCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	if c.OnClear != nil {
		c.OnClear()
	}
	return []chatmodel.Message{systemMessage("Conversation cleared.")}, nil
}

// QuitHandler performs the process-level shutdown side effect.
type QuitHandler func()

// QuitCommand implements `/quit`.
type QuitCommand struct {
	OnQuit QuitHandler
}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Description() string { return "Exit the session" }
func (c *QuitCommand) Usage() string        { return "/quit" }

func (c *QuitCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	if c.OnQuit != nil {
		c.OnQuit()
	}
	return []chatmodel.Message{systemMessage("Goodbye.")}, nil
}

// SessionsCommand implements `/sessions {list|resume|delete}`, backed
// directly by an internal/sessions.Store.
type SessionsCommand struct {
	Store  *sessions.Store
	Resume func(id string) error
}

func (c *SessionsCommand) Name() string        { return "sessions" }
func (c *SessionsCommand) Description() string { return "List, resume, or delete saved sessions" }
func (c *SessionsCommand) Usage() string        { return "/sessions <list|resume|delete> [id]" }

func (c *SessionsCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	if len(args) == 0 {
		return []chatmodel.Message{systemMessage("Usage: %s", c.Usage())}, nil
	}

	switch strings.ToLower(args[0]) {
	case "list":
		list, err := c.Store.List()
		if err != nil {
			return []chatmodel.Message{systemMessage("Failed to list sessions: %v", err)}, nil
		}
		if len(list) == 0 {
			return []chatmodel.Message{systemMessage("No saved sessions.")}, nil
		}
		var b strings.Builder
		b.WriteString("Sessions (most recently active first):\n")
		for _, s := range list {
			fmt.Fprintf(&b, "  %s  %q  %q  %s\n", s.ID, s.FirstMessagePrefix, s.TaskListTitle, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return []chatmodel.Message{systemMessage("%s", b.String())}, nil

	case "resume":
		if len(args) < 2 {
			return []chatmodel.Message{systemMessage("Usage: /sessions resume <id>")}, nil
		}
		if c.Resume == nil {
			return []chatmodel.Message{systemMessage("Resume is not wired up.")}, nil
		}
		if err := c.Resume(args[1]); err != nil {
			return []chatmodel.Message{systemMessage("Failed to resume session %s: %v", args[1], err)}, nil
		}
		return []chatmodel.Message{systemMessage("Resumed session %s.", args[1])}, nil

	case "delete":
		if len(args) < 2 {
			return []chatmodel.Message{systemMessage("Usage: /sessions delete <id>")}, nil
		}
		if err := c.Store.Delete(args[1]); err != nil {
			return []chatmodel.Message{systemMessage("Failed to delete session %s: %v", args[1], err)}, nil
		}
		return []chatmodel.Message{systemMessage("Deleted session %s.", args[1])}, nil

	default:
		return []chatmodel.Message{systemMessage("Unknown sessions subcommand: %s", args[0])}, nil
	}
}

// AgentSwitchHandler switches the active agent stack's root agent type.
type AgentSwitchHandler func(agentType string) error

// AgentCommand implements `/agent <name>`.
type AgentCommand struct {
	OnSwitch AgentSwitchHandler
}

func (c *AgentCommand) Name() string        { return "agent" }
func (c *AgentCommand) Description() string { return "Switch the active agent" }
func (c *AgentCommand) Usage() string        { return "/agent <name>" }

func (c *AgentCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	if len(args) == 0 {
		return []chatmodel.Message{systemMessage("Usage: %s", c.Usage())}, nil
	}
	if c.OnSwitch == nil {
		return []chatmodel.Message{systemMessage("Agent switching is not wired up.")}, nil
	}
	if err := c.OnSwitch(args[0]); err != nil {
		return []chatmodel.Message{systemMessage("Failed to switch agent: %v", err)}, nil
	}
	return []chatmodel.Message{systemMessage("Switched to agent %q.", args[0])}, nil
}
