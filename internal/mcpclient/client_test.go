package mcpclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tycode-ai/tycode/internal/config"
)

func TestNewClient_StartsUnconnected(t *testing.T) {
	c := NewClient("filesystem", config.MCPServerConfig{Command: "true"})
	_, err := c.Tools(context.Background())
	require.Error(t, err, "Tools must fail before Connect establishes a session")
	assert.Contains(t, err.Error(), "not connected")
}

func TestManager_ConnectReportsFailureWithoutRegistering(t *testing.T) {
	m := NewManager()
	assert.Empty(t, m.Tools(context.Background()))

	// An unreachable command fails Connect and is reported, not panicked on.
	errs := m.Connect(context.Background(), map[string]config.MCPServerConfig{
		"broken": {Command: "/nonexistent/binary/tycode-mcp-test"},
	})
	assert.Len(t, errs, 1)
	assert.Empty(t, m.Tools(context.Background()), "a failed connect must not register a client")
}

func TestManager_CloseIsIdempotentWithNoServers(t *testing.T) {
	m := NewManager()
	assert.NotPanics(t, func() {
		m.Close()
		m.Close()
	})
}
