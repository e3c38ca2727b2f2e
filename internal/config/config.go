// Package config implements the TOML settings file and profile switching
// from spec §6: a default "settings.toml" plus named "settings_<profile>.
// toml" files, switched by selecting a different file, with save-as
// copying the current in-memory snapshot to a new profile file.
//
// Grounded on haasonsaas-nexus/internal/config (the teacher's own config
// package shape: a flat Load(path)-returns-populated-struct function) and,
// since spec §6 explicitly mandates TOML rather than the teacher's YAML,
// on nevindra-oasis/internal/config.go's BurntSushi/toml
// defaults-then-file-then-env loading pattern, which this package follows
// for the encoding library and the defaults-first discipline (env
// overrides are not part of this spec's settings surface, so that step is
// dropped).
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// AutonomyLevel gates whether a plan must be approved before an agent
// begins Execution-category tool calls.
type AutonomyLevel string

const (
	AutonomyFullyAutonomous      AutonomyLevel = "FullyAutonomous"
	AutonomyPlanApprovalRequired AutonomyLevel = "PlanApprovalRequired"
)

// CommunicationTone selects the register of the assistant's prose.
type CommunicationTone string

const (
	ToneConciseAndLogical CommunicationTone = "ConciseAndLogical"
	ToneWarmAndFlowy      CommunicationTone = "WarmAndFlowy"
	ToneCat               CommunicationTone = "Cat"
	ToneMeme              CommunicationTone = "Meme"
)

// RunBuildTestOutputMode selects where run_build_test's captured output
// goes (spec §4.12/§4.4).
type RunBuildTestOutputMode string

const (
	OutputModeToolResponse RunBuildTestOutputMode = "ToolResponse"
	OutputModeContext      RunBuildTestOutputMode = "Context"
)

// ProviderConfig is one entry of the `providers` map.
type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url,omitempty"`
	Region  string `toml:"region,omitempty"` // bedrock
}

// ModelSettings is one entry of the `agent_models` map.
type ModelSettings struct {
	Model           string `toml:"model"`
	MaxOutputTokens int    `toml:"max_output_tokens,omitempty"`
	ReasoningBudget int     `toml:"reasoning_budget,omitempty"`
}

// MCPServerConfig is one entry of the `mcp_servers` map.
type MCPServerConfig struct {
	Command string            `toml:"command"`
	Args    []string          `toml:"args,omitempty"`
	Env     map[string]string `toml:"env,omitempty"`
}

// MemorySettings configures the background memory pipeline (spec §4.8).
type MemorySettings struct {
	Enabled                 bool `toml:"enabled"`
	ContextMessageCount     int  `toml:"context_message_count"`
	RecentMemoriesCount     int  `toml:"recent_memories_count"`
	AutoCompactionThreshold int  `toml:"auto_compaction_threshold,omitempty"`
}

// SkillsConfig toggles and scopes skill discovery (spec §C.5: Claude Code
// compatible `.claude/skills/` plus `.tycode/skills/`, at both user and
// workspace level).
type SkillsConfig struct {
	Enabled         bool     `toml:"enabled"`
	DisabledSkills  []string `toml:"disabled_skills,omitempty"`
}

// DefaultSkillsConfig returns the baseline skills configuration applied
// when a settings document omits the [skills] table.
func DefaultSkillsConfig() SkillsConfig {
	return SkillsConfig{Enabled: true}
}

// Settings is the full decoded settings document (spec §6).
type Settings struct {
	ActiveProvider          string                     `toml:"active_provider"`
	Providers               map[string]ProviderConfig  `toml:"providers"`
	AgentModels             map[string]ModelSettings   `toml:"agent_models"`
	DefaultAgent            string                     `toml:"default_agent"`
	ModelQuality            string                     `toml:"model_quality"`
	AutonomyLevel           AutonomyLevel              `toml:"autonomy_level"`
	CommunicationTone       CommunicationTone          `toml:"communication_tone"`
	MCPServers              map[string]MCPServerConfig `toml:"mcp_servers"`
	FileModificationAPI     string                     `toml:"file_modification_api"`
	AutoContextBytes        int                        `toml:"auto_context_bytes"`
	RunBuildTestOutputMode  RunBuildTestOutputMode     `toml:"run_build_test_output_mode"`
	XMLToolMode             bool                       `toml:"xml_tool_mode"`
	Memory                  MemorySettings             `toml:"memory"`
	Skills                  SkillsConfig               `toml:"skills"`
}

// Default returns the baseline settings applied before any file is read.
func Default() Settings {
	return Settings{
		ActiveProvider:         "anthropic",
		Providers:              map[string]ProviderConfig{},
		AgentModels:            map[string]ModelSettings{},
		DefaultAgent:           "coder",
		ModelQuality:           "balanced",
		AutonomyLevel:          AutonomyPlanApprovalRequired,
		CommunicationTone:      ToneConciseAndLogical,
		MCPServers:             map[string]MCPServerConfig{},
		FileModificationAPI:    "search_replace",
		AutoContextBytes:       32 * 1024,
		RunBuildTestOutputMode: OutputModeToolResponse,
		XMLToolMode:            false,
		Memory: MemorySettings{
			Enabled:             true,
			ContextMessageCount: 20,
			RecentMemoriesCount: 10,
		},
		Skills: DefaultSkillsConfig(),
	}
}

// Load reads defaults, then overlays the TOML file at path if it exists.
// A missing file is not an error: the defaults are returned as-is, the
// same tolerant-of-first-run behavior as the teacher's own Load.
func Load(path string) (Settings, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	return cfg, nil
}

// Save encodes settings as TOML and writes it to path, creating parent
// directories as needed.
func Save(path string, cfg Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}
