package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/tycode-ai/tycode/internal/memory"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// MemorySlashCommand implements `/memory {summarize|compact|show}` (spec
// §4.11). Grounded on tycode-core/src/modules/memory/command.rs's
// MemorySlashCommand, with "summarize" calling the configured Summarizer
// directly rather than spawning a dedicated sub-agent runner — this
// package has no agent-runner dependency of its own, so it reuses the same
// Summarizer interface compaction already depends on.
type MemorySlashCommand struct {
	Log        *memory.Log
	Store      *memory.CompactionStore
	Summarizer memory.Summarizer
}

func (c *MemorySlashCommand) Name() string        { return "memory" }
func (c *MemorySlashCommand) Description() string { return "Manage memories (summarize, compact, show)" }
func (c *MemorySlashCommand) Usage() string        { return "/memory <summarize|compact|show>" }

func (c *MemorySlashCommand) Execute(ctx context.Context, args []string) ([]chatmodel.Message, error) {
	if len(args) == 0 {
		return []chatmodel.Message{systemMessage("Usage: %s", c.Usage())}, nil
	}

	switch strings.ToLower(args[0]) {
	case "summarize":
		return c.summarize(ctx)
	case "compact":
		return c.compact(ctx)
	case "show":
		return c.show()
	default:
		return []chatmodel.Message{systemMessage("Unknown memory subcommand: %s. Use: summarize, compact, show", args[0])}, nil
	}
}

func (c *MemorySlashCommand) summarize(ctx context.Context) ([]chatmodel.Message, error) {
	entries, err := c.Log.ReadAll()
	if err != nil {
		return []chatmodel.Message{systemMessage("Failed to read memories: %v", err)}, nil
	}
	if len(entries) == 0 {
		return []chatmodel.Message{systemMessage("No memories to summarize.")}, nil
	}

	summary, err := c.Summarizer.Summarize(ctx, "", entries)
	if err != nil {
		return []chatmodel.Message{systemMessage("Memory summarization failed: %v", err)}, nil
	}
	return []chatmodel.Message{systemMessage("=== Memory Summary ===\n\n%s", summary)}, nil
}

func (c *MemorySlashCommand) compact(ctx context.Context) ([]chatmodel.Message, error) {
	count, err := memory.MemoriesSinceLastCompaction(c.Log, c.Store)
	if err != nil {
		return []chatmodel.Message{systemMessage("Failed to check pending memories: %v", err)}, nil
	}
	if count == 0 {
		return []chatmodel.Message{systemMessage("No new memories since the last compaction.")}, nil
	}

	result, err := memory.RunCompaction(ctx, c.Log, c.Store, c.Summarizer)
	if err != nil {
		return []chatmodel.Message{systemMessage("Compaction failed: %v", err)}, nil
	}
	return []chatmodel.Message{systemMessage("Compacted %d memories through seq %d.", result.MemoriesCount, result.ThroughSeq)}, nil
}

func (c *MemorySlashCommand) show() ([]chatmodel.Message, error) {
	entries, err := c.Log.ReadAll()
	if err != nil {
		return []chatmodel.Message{systemMessage("Failed to read memories: %v", err)}, nil
	}
	latest, err := c.Store.FindLatest()
	if err != nil {
		return []chatmodel.Message{systemMessage("Failed to read compaction state: %v", err)}, nil
	}

	var b strings.Builder
	if latest != nil {
		fmt.Fprintf(&b, "Last compaction through seq %d (%d memories):\n%s\n\n", latest.ThroughSeq, latest.MemoriesCount, latest.Summary)
	}
	fmt.Fprintf(&b, "%d raw memories on disk.\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "  #%d [%s] %s\n", e.Seq, e.Source, e.Content)
	}
	return []chatmodel.Message{systemMessage("%s", b.String())}, nil
}
