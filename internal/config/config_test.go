package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.ActiveProvider)
	assert.Equal(t, AutonomyPlanApprovalRequired, cfg.AutonomyLevel)
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	cfg := Default()
	cfg.ActiveProvider = "openai"
	cfg.DefaultAgent = "reviewer"
	cfg.Providers["openai"] = ProviderConfig{APIKey: "sk-test"}
	cfg.MCPServers["fs"] = MCPServerConfig{Command: "mcp-fs", Args: []string{"--root", "."}}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", loaded.ActiveProvider)
	assert.Equal(t, "reviewer", loaded.DefaultAgent)
	assert.Equal(t, "sk-test", loaded.Providers["openai"].APIKey)
	assert.Equal(t, []string{"--root", "."}, loaded.MCPServers["fs"].Args)
}

func TestLoad_PartialFileStillAppliesDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, Save(path, Settings{ActiveProvider: "bedrock", Memory: MemorySettings{Enabled: true}}))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bedrock", loaded.ActiveProvider)
}
