// Package mcpclient connects to the Model Context Protocol servers named in
// a session's Settings.MCPServers map and exposes every tool they report
// as an ordinary tool.Tool, so an MCP server's tools sit in the registry
// next to the fixed core tools with no special-casing anywhere else in
// the chat actor or tool pipeline.
//
// Grounded on Jint8888-Pocket-Omega/internal/mcp/client.go's stdio-client
// Connect/ListTools/CallTool shape (handshake via mark3labs/mcp-go's
// client.NewStdioMCPClient, Initialize, ListTools, CallTool), narrowed to
// the stdio transport since config.MCPServerConfig (spec §6) only carries
// command/args/env, not a server URL.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sdkclient "github.com/mark3labs/mcp-go/client"
	sdkmcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/tycode-ai/tycode/internal/config"
	"github.com/tycode-ai/tycode/internal/tool"
)

// Client wraps one MCP server's stdio connection.
type Client struct {
	name string
	cfg  config.MCPServerConfig

	mu    sync.RWMutex
	inner sdkclient.MCPClient
}

// NewClient builds an unconnected Client for the named server. Call
// Connect before ListTools/CallTool.
func NewClient(name string, cfg config.MCPServerConfig) *Client {
	return &Client{name: name, cfg: cfg}
}

// Connect starts the server subprocess and performs the MCP initialize
// handshake.
func (c *Client) Connect(ctx context.Context) error {
	env := make([]string, 0, len(c.cfg.Env))
	for k, v := range c.cfg.Env {
		env = append(env, k+"="+v)
	}

	inner, err := sdkclient.NewStdioMCPClient(c.cfg.Command, env, c.cfg.Args...)
	if err != nil {
		return fmt.Errorf("mcpclient: start server %q: %w", c.name, err)
	}

	_, err = inner.Initialize(ctx, sdkmcp.InitializeRequest{
		Params: sdkmcp.InitializeParams{
			ProtocolVersion: sdkmcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      sdkmcp.Implementation{Name: "tycode", Version: "0.1.0"},
		},
	})
	if err != nil {
		_ = inner.Close()
		return fmt.Errorf("mcpclient: initialize server %q: %w", c.name, err)
	}

	c.mu.Lock()
	c.inner = inner
	c.mu.Unlock()
	return nil
}

// Close terminates the server subprocess.
func (c *Client) Close() error {
	c.mu.Lock()
	inner := c.inner
	c.inner = nil
	c.mu.Unlock()
	if inner == nil {
		return nil
	}
	return inner.Close()
}

// Tools lists every tool the connected server reports, adapted to
// tool.Tool. Each returned tool is namespaced "mcp__<server>__<tool>" so
// identically-named tools from two servers never collide in a registry.
func (c *Client) Tools(ctx context.Context) ([]tool.Tool, error) {
	c.mu.RLock()
	inner := c.inner
	c.mu.RUnlock()
	if inner == nil {
		return nil, fmt.Errorf("mcpclient: server %q not connected", c.name)
	}

	result, err := inner.ListTools(ctx, sdkmcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcpclient: list tools on %q: %w", c.name, err)
	}

	out := make([]tool.Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage(`{}`)
		}
		out = append(out, &remoteTool{
			client:      c,
			name:        fmt.Sprintf("mcp__%s__%s", c.name, t.Name),
			remoteName:  t.Name,
			description: t.Description,
			schema:      schema,
		})
	}
	return out, nil
}

// call invokes name on the connected server with args and returns its
// concatenated text content.
func (c *Client) call(ctx context.Context, name string, args map[string]any) (string, error) {
	c.mu.RLock()
	inner := c.inner
	c.mu.RUnlock()
	if inner == nil {
		return "", fmt.Errorf("mcpclient: server %q not connected", c.name)
	}

	req := sdkmcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := inner.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("mcpclient: call %q on %q: %w", name, c.name, err)
	}

	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if result.IsError {
		return "", fmt.Errorf("mcp tool %q returned error: %s", name, text)
	}
	return text, nil
}

// remoteTool adapts one MCP-server-reported tool to the tool.Tool
// contract. It is always CategoryExecution: MCP has no notion of the
// Meta push/pop/prompt_user protocol, so every remote tool just returns a
// plain OutputResult.
type remoteTool struct {
	client      *Client
	name        string
	remoteName  string
	description string
	schema      json.RawMessage
}

func (t *remoteTool) Name() string                { return t.name }
func (t *remoteTool) Description() string         { return t.description }
func (t *remoteTool) InputSchema() json.RawMessage { return t.schema }
func (t *remoteTool) Category() tool.Category      { return tool.CategoryExecution }

func (t *remoteTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args map[string]any
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", t.name, err)
		}
	}
	return &remoteHandle{tool: t, args: args, toolUseID: req.ToolUseID}, nil
}

type remoteHandle struct {
	tool      *remoteTool
	args      map[string]any
	toolUseID string
}

func (h *remoteHandle) PreviewEvent() tool.PreviewEvent {
	return tool.PreviewEvent{
		ToolUseID: h.toolUseID,
		ToolName:  h.tool.name,
		Summary:   fmt.Sprintf("call MCP tool %s", h.tool.remoteName),
	}
}

func (h *remoteHandle) Execute(ctx context.Context) (tool.Output, error) {
	text, err := h.tool.client.call(ctx, h.tool.remoteName, h.args)
	if err != nil {
		return tool.ErrorResult(err.Error()), nil
	}
	return tool.Result(text, false, tool.ContinuationContinue), nil
}

// Manager owns every configured server's Client and aggregates their
// tools into one flat set.
type Manager struct {
	mu      sync.Mutex
	clients map[string]*Client
}

// NewManager builds a Manager with no servers connected yet.
func NewManager() *Manager {
	return &Manager{clients: map[string]*Client{}}
}

// Connect dials every server in servers that isn't already connected,
// collecting (rather than stopping on) individual failures, since one
// misconfigured MCP server should not prevent the rest from loading.
func (m *Manager) Connect(ctx context.Context, servers map[string]config.MCPServerConfig) []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, cfg := range servers {
		if _, ok := m.clients[name]; ok {
			continue
		}
		c := NewClient(name, cfg)
		if err := c.Connect(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		m.clients[name] = c
	}
	return errs
}

// Tools aggregates every connected server's tools into a single slice.
func (m *Manager) Tools(ctx context.Context) []tool.Tool {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	var out []tool.Tool
	for _, c := range clients {
		tools, err := c.Tools(ctx)
		if err != nil {
			continue
		}
		out = append(out, tools...)
	}
	return out
}

// Close disconnects every server.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		_ = c.Close()
	}
	m.clients = map[string]*Client{}
}
