// Package modules implements the pluggable Module contract and the
// in-process slash-command dispatcher from spec §4.11: a Module bundles
// optional prompt fragments, context sections, tools, slash commands, and
// keyed session state; the actor consults the registered set of modules
// during prompt assembly, context rendering, tool-set construction, and
// session save/load.
//
// Grounded on tycode-core/src/module.rs's Module/PromptComponent/
// ContextComponent/SlashCommand/SessionStateComponent traits, translated
// from Rust trait objects into Go interfaces.
package modules

import (
	"context"
	"encoding/json"

	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// PromptComponent contributes an ordered fragment to the system prompt.
type PromptComponent interface {
	ID() string
	BuildPromptSection() (string, bool)
}

// ContextComponent contributes an ordered, independently-omittable section
// to the per-turn context assembly (internal/contextbuilder consumes these
// alongside its own built-in sections).
type ContextComponent interface {
	ID() string
	BuildContextSection(ctx context.Context) (string, bool)
}

// SessionStateComponent saves and restores a module's custom state under a
// single key inside sessions.Data.ModuleState.
type SessionStateComponent interface {
	Key() string
	Save() (json.RawMessage, error)
	Load(state json.RawMessage) error
}

// SlashCommand is an in-process `/name ...` handler. Grounded on
// tycode-core/src/modules/memory/command.rs's SlashCommand trait
// (name/description/usage/execute).
type SlashCommand interface {
	Name() string
	Description() string
	Usage() string
	Execute(ctx context.Context, args []string) ([]chatmodel.Message, error)
}

// Module is a bundle of optional contributions a unit of functionality
// registers with the actor (spec §4.11).
type Module interface {
	Name() string
	PromptComponents() []PromptComponent
	ContextComponents() []ContextComponent
	Tools() []tool.Tool
	SlashCommands() []SlashCommand
	SessionState() (SessionStateComponent, bool)
	SettingsNamespace() string
}

// Base is embeddable by modules that only implement a subset of Module's
// contributions, so each concrete module need only override what it uses.
type Base struct {
	NameValue string
}

func (b Base) Name() string                            { return b.NameValue }
func (b Base) PromptComponents() []PromptComponent      { return nil }
func (b Base) ContextComponents() []ContextComponent    { return nil }
func (b Base) Tools() []tool.Tool                       { return nil }
func (b Base) SlashCommands() []SlashCommand            { return nil }
func (b Base) SessionState() (SessionStateComponent, bool) { return nil, false }
func (b Base) SettingsNamespace() string                { return "" }
