package chatactor

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tycode-ai/tycode/internal/agentstack"
	"github.com/tycode-ai/tycode/internal/config"
	"github.com/tycode-ai/tycode/internal/events"
	"github.com/tycode-ai/tycode/internal/memory"
	"github.com/tycode-ai/tycode/internal/modules"
	"github.com/tycode-ai/tycode/internal/providers"
	"github.com/tycode-ai/tycode/internal/sessions"
	"github.com/tycode-ai/tycode/internal/tools"
	"github.com/tycode-ai/tycode/internal/vfs"
)

// scriptedProvider returns one canned Response per call, in order, from
// responses, erroring if it is asked for more calls than it was given.
type scriptedProvider struct {
	responses []providers.Response
	errs      []error
	calls     []providers.Request
}

func (p *scriptedProvider) Converse(_ context.Context, req providers.Request) (providers.Response, error) {
	p.calls = append(p.calls, req)
	i := len(p.calls) - 1
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], err
	}
	return providers.Response{}, err
}

// textResponse builds a plain-text assistant Response with no tool calls.
func textResponse(text string) providers.Response {
	return providers.Response{
		Message:    providers.Envelope{Role: "assistant", Content: []providers.ContentBlock{{Kind: providers.BlockText, Text: text}}},
		StopReason: providers.StopEndTurn,
	}
}

// toolUseResponse builds an assistant Response carrying a single native
// tool_use block.
func toolUseResponse(toolUseID, toolName string, input []byte) providers.Response {
	return providers.Response{
		Message: providers.Envelope{Role: "assistant", Content: []providers.ContentBlock{
			{Kind: providers.BlockToolUse, ToolUseID: toolUseID, ToolName: toolName, ToolInput: input},
		}},
		StopReason: providers.StopToolUse,
	}
}

// blockingProvider signals started once Converse begins, then blocks until
// ctx is done, returning ctx.Err(). Used to exercise Cancel.
type blockingProvider struct {
	started chan struct{}
}

func (p *blockingProvider) Converse(ctx context.Context, _ providers.Request) (providers.Response, error) {
	close(p.started)
	<-ctx.Done()
	return providers.Response{}, ctx.Err()
}

// newTestDeps builds a fully wired Deps rooted in t.TempDir(), with every
// store backed by real (but scratch) files rather than mocks, matching how
// this package's sibling packages set up their own tests.
func newTestDeps(t *testing.T, provider providers.Provider, catalog *agentstack.Catalog) Deps {
	t.Helper()
	dir := t.TempDir()

	resolver, err := vfs.NewResolver([]string{dir})
	require.NoError(t, err)
	ignore, err := vfs.NewIgnoreRules(dir)
	require.NoError(t, err)

	profiles, err := config.NewProfileManager(dir)
	require.NoError(t, err)

	return Deps{
		Catalog:       catalog,
		Provider:      provider,
		Dispatcher:    modules.NewDispatcher(),
		Modules:       nil,
		Sessions:      sessions.NewStore(filepath.Join(dir, "sessions")),
		Sink:          events.NewSink(100),
		Profiles:      profiles,
		MemoryLog:     memory.NewLog(filepath.Join(dir, "memory.jsonl")),
		Compaction:    memory.NewCompactionStore(filepath.Join(dir, "compactions")),
		Resolver:      resolver,
		Ignore:        ignore,
		Tracked:       vfs.NewTrackedFiles(resolver),
		LastCmd:       &tools.LastCommandStore{},
		WorkspaceRoot: dir,
		Logger:        slog.Default(),
	}
}

// singleAgentCatalog builds a one-agent Catalog, useful when a test wants
// precise control over AvailableTools without DefaultCatalog's
// coordinator/coder/reviewer shape getting in the way.
func singleAgentCatalog(agentType string, availableTools []string) *agentstack.Catalog {
	return agentstack.NewCatalog(agentType, []agentstack.Agent{{
		AgentType:      agentType,
		Name:           agentType,
		CorePrompt:     "test agent",
		AvailableTools: availableTools,
	}})
}

func newTestActor(t *testing.T, deps Deps) *Actor {
	t.Helper()
	a, err := New(deps)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}
