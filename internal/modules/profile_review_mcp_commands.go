package modules

import (
	"context"
	"strings"

	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// ProfileOps is the minimal surface a settings/profile layer must expose
// for `/profile {show|list|save|switch}` (spec §4.11/§6). Implemented by
// internal/config's profile manager; kept as a narrow interface here so
// this package has no dependency on config's TOML decoding.
type ProfileOps interface {
	ShowActive() (name string, contents string, err error)
	List() ([]string, error)
	SaveAs(name string) error
	Switch(name string) error
}

// ProfileCommand implements `/profile {show|list|save|switch}`.
type ProfileCommand struct {
	Ops ProfileOps
}

func (c *ProfileCommand) Name() string        { return "profile" }
func (c *ProfileCommand) Description() string { return "Show, list, save, or switch settings profiles" }
func (c *ProfileCommand) Usage() string        { return "/profile <show|list|save|switch> [name]" }

func (c *ProfileCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	if len(args) == 0 || c.Ops == nil {
		return []chatmodel.Message{systemMessage("Usage: %s", c.Usage())}, nil
	}
	switch strings.ToLower(args[0]) {
	case "show":
		name, contents, err := c.Ops.ShowActive()
		if err != nil {
			return []chatmodel.Message{systemMessage("Failed to read active profile: %v", err)}, nil
		}
		return []chatmodel.Message{systemMessage("Active profile: %s\n%s", name, contents)}, nil
	case "list":
		names, err := c.Ops.List()
		if err != nil {
			return []chatmodel.Message{systemMessage("Failed to list profiles: %v", err)}, nil
		}
		return []chatmodel.Message{systemMessage("Profiles: %s", strings.Join(names, ", "))}, nil
	case "save":
		if len(args) < 2 {
			return []chatmodel.Message{systemMessage("Usage: /profile save <name>")}, nil
		}
		if err := c.Ops.SaveAs(args[1]); err != nil {
			return []chatmodel.Message{systemMessage("Failed to save profile %q: %v", args[1], err)}, nil
		}
		return []chatmodel.Message{systemMessage("Saved profile %q.", args[1])}, nil
	case "switch":
		if len(args) < 2 {
			return []chatmodel.Message{systemMessage("Usage: /profile switch <name>")}, nil
		}
		if err := c.Ops.Switch(args[1]); err != nil {
			return []chatmodel.Message{systemMessage("Failed to switch to profile %q: %v", args[1], err)}, nil
		}
		return []chatmodel.Message{systemMessage("Switched to profile %q.", args[1])}, nil
	default:
		return []chatmodel.Message{systemMessage("Unknown profile subcommand: %s", args[0])}, nil
	}
}

// ReviewRunner spawns the review sub-agent (spec §4.11's `/review [deep]`,
// supplemented from the original's review module); Deep selects a more
// thorough, higher-cost review pass.
type ReviewRunner func(ctx context.Context, deep bool) (string, error)

// ReviewCommand implements `/review [deep]`.
type ReviewCommand struct {
	Run ReviewRunner
}

func (c *ReviewCommand) Name() string        { return "review" }
func (c *ReviewCommand) Description() string { return "Spawn a review sub-agent over the current changes" }
func (c *ReviewCommand) Usage() string        { return "/review [deep]" }

func (c *ReviewCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	if c.Run == nil {
		return []chatmodel.Message{systemMessage("Review is not wired up.")}, nil
	}
	deep := len(args) > 0 && strings.EqualFold(args[0], "deep")
	result, err := c.Run(ctx, deep)
	if err != nil {
		return []chatmodel.Message{systemMessage("Review failed: %v", err)}, nil
	}
	return []chatmodel.Message{systemMessage("%s", result)}, nil
}

// MCPOps is the minimal surface for `/mcp {add|remove}` server-config
// management (spec §4.11/§6 mcp_servers map).
type MCPOps interface {
	Add(name, command string, args []string) error
	Remove(name string) error
}

// MCPCommand implements `/mcp {add|remove}`.
type MCPCommand struct {
	Ops MCPOps
}

func (c *MCPCommand) Name() string        { return "mcp" }
func (c *MCPCommand) Description() string { return "Add or remove an MCP server" }
func (c *MCPCommand) Usage() string        { return "/mcp <add|remove> <name> [command] [args...]" }

func (c *MCPCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	if len(args) < 2 || c.Ops == nil {
		return []chatmodel.Message{systemMessage("Usage: %s", c.Usage())}, nil
	}
	name := args[1]
	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 3 {
			return []chatmodel.Message{systemMessage("Usage: /mcp add <name> <command> [args...]")}, nil
		}
		if err := c.Ops.Add(name, args[2], args[3:]); err != nil {
			return []chatmodel.Message{systemMessage("Failed to add MCP server %q: %v", name, err)}, nil
		}
		return []chatmodel.Message{systemMessage("Added MCP server %q.", name)}, nil
	case "remove":
		if err := c.Ops.Remove(name); err != nil {
			return []chatmodel.Message{systemMessage("Failed to remove MCP server %q: %v", name, err)}, nil
		}
		return []chatmodel.Message{systemMessage("Removed MCP server %q.", name)}, nil
	default:
		return []chatmodel.Message{systemMessage("Unknown mcp subcommand: %s", args[0])}, nil
	}
}

// SettingsOps exposes read/write of the raw active settings document for
// `/settings`.
type SettingsOps interface {
	Show() (string, error)
}

// SettingsCommand implements `/settings`.
type SettingsCommand struct {
	Ops SettingsOps
}

func (c *SettingsCommand) Name() string        { return "settings" }
func (c *SettingsCommand) Description() string { return "Show the active settings" }
func (c *SettingsCommand) Usage() string        { return "/settings" }

func (c *SettingsCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	if c.Ops == nil {
		return []chatmodel.Message{systemMessage("Settings are not wired up.")}, nil
	}
	contents, err := c.Ops.Show()
	if err != nil {
		return []chatmodel.Message{systemMessage("Failed to read settings: %v", err)}, nil
	}
	return []chatmodel.Message{systemMessage("%s", contents)}, nil
}
