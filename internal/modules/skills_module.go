package modules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tycode-ai/tycode/internal/config"
	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// InvokedSkill records that a skill's instructions were loaded into the
// conversation, so they survive session save/load and don't need to be
// reloaded every turn.
type InvokedSkill struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

// InvokedSkillsState tracks which skills have been invoked this session.
//
// Grounded on tycode-core/src/skills/context.rs (referenced by mod.rs's
// InvokedSkillsState but not present in this pack); reconstructed from the
// methods mod.rs/tool.rs call against it (new, add_invoked, is_invoked,
// get_invoked, clear).
type InvokedSkillsState struct {
	mu      sync.RWMutex
	invoked []InvokedSkill
}

func NewInvokedSkillsState() *InvokedSkillsState {
	return &InvokedSkillsState{}
}

func (s *InvokedSkillsState) AddInvoked(name, instructions string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, inv := range s.invoked {
		if inv.Name == name {
			s.invoked[i].Instructions = instructions
			return
		}
	}
	s.invoked = append(s.invoked, InvokedSkill{Name: name, Instructions: instructions})
}

func (s *InvokedSkillsState) IsInvoked(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoked {
		if inv.Name == name {
			return true
		}
	}
	return false
}

func (s *InvokedSkillsState) GetInvoked() []InvokedSkill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InvokedSkill, len(s.invoked))
	copy(out, s.invoked)
	return out
}

func (s *InvokedSkillsState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoked = nil
}

// SkillsModule bundles skill discovery, the invoke_skill tool, the
// /skills and /skill slash commands, a prompt section listing available
// skills, a context section showing which have been invoked this session,
// and session state persisting the invoked set across resume.
//
// Grounded on tycode-core/src/skills/mod.rs's SkillsModule.
type SkillsModule struct {
	Base
	manager *SkillsManager
	state   *InvokedSkillsState
}

// NewSkillsModule discovers skills from the configured directories.
func NewSkillsModule(workspaceRoots []string, homeDir string, cfg config.SkillsConfig) *SkillsModule {
	return NewSkillsModuleWithManager(DiscoverSkills(workspaceRoots, homeDir, cfg))
}

// NewSkillsModuleWithManager wires a module around an existing manager
// (for tests, or to share one manager's cache across modules).
func NewSkillsModuleWithManager(manager *SkillsManager) *SkillsModule {
	return &SkillsModule{
		Base:    Base{NameValue: "skills"},
		manager: manager,
		state:   NewInvokedSkillsState(),
	}
}

func (m *SkillsModule) Manager() *SkillsManager        { return m.manager }
func (m *SkillsModule) State() *InvokedSkillsState      { return m.state }
func (m *SkillsModule) Reload()                         { m.manager.Reload() }
func (m *SkillsModule) GetAllSkills() []SkillMetadata   { return m.manager.GetAllMetadata() }
func (m *SkillsModule) GetEnabledSkills() []SkillMetadata { return m.manager.GetEnabledMetadata() }

func (m *SkillsModule) PromptComponents() []PromptComponent {
	return []PromptComponent{skillsPromptComponent{m.manager}}
}

func (m *SkillsModule) ContextComponents() []ContextComponent {
	return []ContextComponent{skillsContextComponent{m.state}}
}

func (m *SkillsModule) Tools() []tool.Tool {
	return []tool.Tool{&InvokeSkillTool{Manager: m.manager, State: m.state}}
}

func (m *SkillsModule) SlashCommands() []SlashCommand {
	return []SlashCommand{
		&SkillsListCommand{Manager: m.manager},
		&SkillInvokeCommand{Manager: m.manager},
	}
}

func (m *SkillsModule) SessionState() (SessionStateComponent, bool) {
	return skillsSessionState{m.state}, true
}

// skillsPromptComponent lists available (enabled) skills by name and
// description, so the model knows when to reach for invoke_skill.
type skillsPromptComponent struct{ manager *SkillsManager }

func (c skillsPromptComponent) ID() string { return "skills" }

func (c skillsPromptComponent) BuildPromptSection() (string, bool) {
	skills := c.manager.GetEnabledMetadata()
	if len(skills) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString("## Available Skills\nInvoke with invoke_skill(skill_name) when a request matches one of these:\n")
	for _, s := range skills {
		fmt.Fprintf(&b, "- %s (%s): %s\n", s.Name, s.Source, s.Description)
	}
	return b.String(), true
}

// skillsContextComponent shows which skills have already been invoked
// this session, so the model doesn't re-invoke one it already loaded.
type skillsContextComponent struct{ state *InvokedSkillsState }

func (c skillsContextComponent) ID() string { return "skills" }

func (c skillsContextComponent) BuildContextSection(ctx context.Context) (string, bool) {
	invoked := c.state.GetInvoked()
	if len(invoked) == 0 {
		return "", false
	}
	var names []string
	for _, inv := range invoked {
		names = append(names, inv.Name)
	}
	return "Invoked skills this session: " + strings.Join(names, ", "), true
}

// skillsSessionState persists invoked skills across session save/load, so
// a resumed session doesn't lose instructions it already loaded into
// context.
type skillsSessionState struct{ state *InvokedSkillsState }

type skillsStateDoc struct {
	Invoked []InvokedSkill `json:"invoked"`
}

func (s skillsSessionState) Key() string { return "skills" }

func (s skillsSessionState) Save() (json.RawMessage, error) {
	return json.Marshal(skillsStateDoc{Invoked: s.state.GetInvoked()})
}

func (s skillsSessionState) Load(raw json.RawMessage) error {
	s.state.Clear()
	var doc skillsStateDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for _, inv := range doc.Invoked {
		s.state.AddInvoked(inv.Name, inv.Instructions)
	}
	return nil
}

// InvokeSkillTool implements invoke_skill(skill_name): a Meta-category
// tool that loads a discovered skill's instructions into the
// conversation and records it as invoked.
//
// Grounded on tycode-core/src/skills/tool.rs's InvokeSkillTool.
type InvokeSkillTool struct {
	Manager *SkillsManager
	State   *InvokedSkillsState
}

func (t *InvokeSkillTool) Name() string            { return "invoke_skill" }
func (t *InvokeSkillTool) Category() tool.Category { return tool.CategoryMeta }
func (t *InvokeSkillTool) Description() string {
	return "Load and activate a skill's instructions. Use this when a user's request matches a skill's description from the Available Skills list."
}
func (t *InvokeSkillTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"skill_name":{"type":"string","description":"The name of the skill to invoke (from the Available Skills list)"}},"required":["skill_name"]}`)
}

type invokeSkillArgs struct {
	SkillName string `json:"skill_name"`
}

func (t *InvokeSkillTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args invokeSkillArgs
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid invoke_skill arguments: %w", err)
	}
	if args.SkillName == "" {
		return nil, fmt.Errorf(`missing required argument "skill_name"`)
	}

	inst, found := t.Manager.GetSkill(args.SkillName)
	switch {
	case !found:
		return nil, fmt.Errorf("skill %q not found. Use /skills to list available skills.", args.SkillName)
	case !inst.Metadata.Enabled:
		return nil, fmt.Errorf("skill %q is disabled", args.SkillName)
	}

	return invokeSkillHandle{tool: t, skillName: args.SkillName, toolUseID: req.ToolUseID}, nil
}

type invokeSkillHandle struct {
	tool      *InvokeSkillTool
	skillName string
	toolUseID string
}

func (h invokeSkillHandle) PreviewEvent() tool.PreviewEvent {
	return tool.PreviewEvent{ToolUseID: h.toolUseID, ToolName: "invoke_skill", Summary: "invoke " + h.skillName}
}

func (h invokeSkillHandle) Execute(ctx context.Context) (tool.Output, error) {
	inst, err := h.tool.Manager.LoadInstructions(h.skillName)
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("Failed to load skill %q: %v", h.skillName, err)), nil
	}

	h.tool.State.AddInvoked(inst.Metadata.Name, inst.Instructions)

	var b strings.Builder
	fmt.Fprintf(&b, "Skill '%s' loaded successfully.\n\n## Instructions\n\n%s", inst.Metadata.Name, inst.Instructions)
	if len(inst.ReferenceFiles) > 0 {
		b.WriteString("\n\n## Reference Files\n\nThe following reference files are available. Use the read_file tool to access them:\n")
		for _, f := range inst.ReferenceFiles {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if len(inst.Scripts) > 0 {
		b.WriteString("\n\n## Scripts\n\nThe following scripts are available for use with this skill:\n")
		for _, s := range inst.Scripts {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	return tool.Result(b.String(), false, tool.ContinuationContinue), nil
}

// SkillsListCommand implements `/skills [info <name>|reload]`.
//
// Grounded on tycode-core/src/skills/command.rs's SkillsListCommand.
type SkillsListCommand struct{ Manager *SkillsManager }

func (c *SkillsListCommand) Name() string        { return "skills" }
func (c *SkillsListCommand) Description() string { return "List and manage available skills" }
func (c *SkillsListCommand) Usage() string        { return "/skills [info <name>|reload]" }

func (c *SkillsListCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	if len(args) == 0 {
		return c.list(), nil
	}
	switch args[0] {
	case "info":
		return c.info(args), nil
	case "reload":
		c.Manager.Reload()
		return []chatmodel.Message{systemMessage("Skills reloaded. Found %d skill(s).", len(c.Manager.GetAllMetadata()))}, nil
	default:
		return []chatmodel.Message{systemMessage("Usage: /skills [info <name>|reload]\nUse `/skills` to list all available skills.")}, nil
	}
}

func (c *SkillsListCommand) list() []chatmodel.Message {
	skills := c.Manager.GetAllMetadata()
	if len(skills) == 0 {
		return []chatmodel.Message{systemMessage(
			"No skills found. Skills are discovered from (in priority order):\n" +
				"- ~/.claude/skills/ (user-level Claude Code compatibility)\n" +
				"- ~/.tycode/skills/ (user-level)\n" +
				"- .claude/skills/ (project-level Claude Code compatibility)\n" +
				"- .tycode/skills/ (project-level, highest priority)\n\n" +
				"Each skill should be a directory containing a SKILL.md file.",
		)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available Skills (%d found):\n\n", len(skills))
	for _, s := range skills {
		status := ""
		if !s.Enabled {
			status = " [disabled]"
		}
		fmt.Fprintf(&b, "  %s (%s)%s\n    %s\n\n", s.Name, s.Source, status, s.Description)
	}
	b.WriteString("Use `/skill <name>` to invoke a skill manually.\n")
	b.WriteString("Use `/skills info <name>` to see skill details.\n")
	b.WriteString("Use `/skills reload` to re-scan skill directories.")
	return []chatmodel.Message{systemMessage("%s", b.String())}
}

func (c *SkillsListCommand) info(args []string) []chatmodel.Message {
	if len(args) < 2 {
		return []chatmodel.Message{systemMessage("Usage: /skills info <name>")}
	}
	name := args[1]
	inst, ok := c.Manager.GetSkill(name)
	if !ok {
		return []chatmodel.Message{systemMessage("Skill '%s' not found. Use `/skills` to list available skills.", name)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Skill: %s\n\n", inst.Metadata.Name)
	fmt.Fprintf(&b, "**Source:** %s\n", inst.Metadata.Source)
	fmt.Fprintf(&b, "**Path:** %s\n", inst.Metadata.Path)
	status := "Enabled"
	if !inst.Metadata.Enabled {
		status = "Disabled"
	}
	fmt.Fprintf(&b, "**Status:** %s\n\n", status)
	fmt.Fprintf(&b, "**Description:**\n%s\n\n", inst.Metadata.Description)
	b.WriteString("**Instructions:**\n\n")
	b.WriteString(inst.Instructions)

	if len(inst.ReferenceFiles) > 0 {
		b.WriteString("\n\n**Reference Files:**\n")
		for _, f := range inst.ReferenceFiles {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if len(inst.Scripts) > 0 {
		b.WriteString("\n**Scripts:**\n")
		for _, s := range inst.Scripts {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return []chatmodel.Message{systemMessage("%s", b.String())}
}

// SkillInvokeCommand implements `/skill <name>`, a manual alternative to
// the model calling invoke_skill itself.
//
// Grounded on tycode-core/src/skills/command.rs's SkillInvokeCommand.
type SkillInvokeCommand struct{ Manager *SkillsManager }

func (c *SkillInvokeCommand) Name() string        { return "skill" }
func (c *SkillInvokeCommand) Description() string { return "Manually invoke a skill" }
func (c *SkillInvokeCommand) Usage() string        { return "/skill <name>" }

func (c *SkillInvokeCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	if len(args) == 0 {
		return []chatmodel.Message{systemMessage("Usage: /skill <name>\nUse `/skills` to list available skills.")}, nil
	}
	name := args[0]
	inst, ok := c.Manager.GetSkill(name)
	if !ok {
		return []chatmodel.Message{systemMessage("Skill '%s' not found. Use `/skills` to list available skills.", name)}, nil
	}
	if !inst.Metadata.Enabled {
		return []chatmodel.Message{systemMessage("Skill '%s' is disabled.", name)}, nil
	}

	message := fmt.Sprintf("## Skill Invoked: %s\n\n%s\n\n---\n\n**Instructions:**\n\n%s",
		inst.Metadata.Name, inst.Metadata.Description, inst.Instructions)
	return []chatmodel.Message{systemMessage("%s", message)}, nil
}
