package modules

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// Dispatcher holds the merged set of slash commands contributed by every
// registered module plus the core set, and implements the dispatch rule
// from spec §4.11: input starting with `/` is intercepted before any LLM
// call; the first whitespace-delimited token (case-insensitively, minus
// the leading slash) selects the command; no match falls through to the
// LLM as an ordinary message.
type Dispatcher struct {
	commands map[string]SlashCommand
}

// NewDispatcher builds an empty dispatcher. Register modules' commands
// with RegisterModule or a single command with Register.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{commands: map[string]SlashCommand{}}
}

// Register adds a single slash command, overwriting any earlier command of
// the same name (last registration wins, matching "modules may add
// arbitrary commands").
func (d *Dispatcher) Register(cmd SlashCommand) {
	d.commands[strings.ToLower(cmd.Name())] = cmd
}

// RegisterModule registers every slash command a Module contributes.
func (d *Dispatcher) RegisterModule(m Module) {
	for _, cmd := range m.SlashCommands() {
		d.Register(cmd)
	}
}

// Commands returns every registered command, sorted by name, for `/help`.
func (d *Dispatcher) Commands() []SlashCommand {
	out := make([]SlashCommand, 0, len(d.commands))
	for _, cmd := range d.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Dispatch attempts to handle input as a slash command. handled is false
// (with nil messages and error) when input does not start with `/` or
// names no registered command — the caller should then send input to the
// LLM as an ordinary user message.
func (d *Dispatcher) Dispatch(ctx context.Context, input string) (handled bool, messages []chatmodel.Message, err error) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return false, nil, nil
	}

	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return false, nil, nil
	}

	cmd, ok := d.commands[strings.ToLower(fields[0])]
	if !ok {
		return false, nil, nil
	}

	messages, err = cmd.Execute(ctx, fields[1:])
	return true, messages, err
}

// systemMessage builds a plain informational reply, matching the
// original's ChatMessage{sender: System|Error} convention, rendered here as
// a synthesized assistant message since the Go model has no message-sender
// tag beyond Role.
func systemMessage(format string, args ...any) chatmodel.Message {
	return chatmodel.AssistantMessage(fmt.Sprintf(format, args...))
}
