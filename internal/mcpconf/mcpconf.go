// Package mcpconf loads an optional MCP server manifest from
// .tycode/mcp.yaml, a nested-service-list YAML document that sits
// alongside the TOML settings file's flat mcp_servers table. A workspace
// can define its MCP servers either way; LoadManifest's entries are
// merged into config.Settings.MCPServers with the TOML entries taking
// precedence on a name collision, since TOML is the user-editable
// settings surface (spec §6) and the manifest is meant for
// checked-in, shared server definitions.
package mcpconf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tycode-ai/tycode/internal/config"
)

// Manifest is the decoded shape of .tycode/mcp.yaml.
type Manifest struct {
	Servers []ServerEntry `yaml:"servers"`
}

// ServerEntry is one named server definition in the manifest.
type ServerEntry struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// LoadManifest reads and parses path. A missing file returns an empty
// Manifest and no error, matching config.Load's tolerant-of-first-run
// behavior for the TOML settings file.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Manifest{}, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("reading MCP manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing MCP manifest %s: %w", path, err)
	}
	return m, nil
}

// MergeInto layers the manifest's servers into settings' MCPServers map,
// without overwriting any name already present there.
func (m Manifest) MergeInto(servers map[string]config.MCPServerConfig) map[string]config.MCPServerConfig {
	if servers == nil {
		servers = map[string]config.MCPServerConfig{}
	}
	for _, e := range m.Servers {
		if _, exists := servers[e.Name]; exists {
			continue
		}
		servers[e.Name] = config.MCPServerConfig{Command: e.Command, Args: e.Args, Env: e.Env}
	}
	return servers
}
