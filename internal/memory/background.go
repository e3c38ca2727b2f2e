package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/tycode-ai/tycode/internal/obs"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// ExtractorAgent runs the sub-agent conversation that inspects a just-
// concluded conversation slice for learnings worth remembering, appending
// each via Append before returning. Implemented by a sub-agent-stack run in
// production (the "memory manager" agent of spec §4.9).
type ExtractorAgent interface {
	Extract(ctx context.Context, conversation []chatmodel.Message, log *Log) error
}

// AutoCompactionThreshold configures when SpawnMemoryManager should trigger
// an automatic compaction after extraction completes. Zero disables it.
type AutoCompactionThreshold int

// SpawnMemoryManager runs the memory-extraction agent over conversation as
// a fire-and-forget background goroutine, then runs auto-compaction if the
// pending-memory count has crossed threshold. Errors are logged, never
// propagated: a failed background extraction must never surface to the
// foreground chat turn.
//
// Grounded on tycode-core/src/modules/memory/background.rs's
// spawn_memory_manager/maybe_auto_compact, translated from a spawned tokio
// task into a plain goroutine in the teacher's fire-and-forget idiom (see
// internal/gateway/vector_memory_index.go's indexing goroutine).
func SpawnMemoryManager(
	ctx context.Context,
	logger *slog.Logger,
	extractor ExtractorAgent,
	log *Log,
	store *CompactionStore,
	summarizer Summarizer,
	conversation []chatmodel.Message,
	threshold AutoCompactionThreshold,
	metrics *obs.Metrics,
) {
	go func() {
		logger.Info("memory manager starting", "messages", len(conversation))

		if err := extractor.Extract(ctx, conversation, log); err != nil {
			logger.Warn("memory manager failed", "error", err)
		} else {
			logger.Info("memory manager completed")
		}

		maybeAutoCompact(ctx, logger, log, store, summarizer, threshold, metrics)
	}()
}

// SpawnBackgroundCompaction runs RunCompaction as a fire-and-forget
// goroutine, e.g. in response to the /memory compact slash command.
func SpawnBackgroundCompaction(ctx context.Context, logger *slog.Logger, log *Log, store *CompactionStore, summarizer Summarizer, metrics *obs.Metrics) {
	go func() {
		logger.Info("background compaction starting")
		start := time.Now()
		c, err := RunCompaction(ctx, log, store, summarizer)
		recordCompactionOutcome(metrics, start, err)
		switch {
		case err != nil:
			logger.Warn("background compaction failed", "error", err)
		case c == nil:
			logger.Info("background compaction: no new memories")
		default:
			logger.Info("background compaction completed", "through_seq", c.ThroughSeq, "memories", c.MemoriesCount)
		}
	}()
}

func maybeAutoCompact(ctx context.Context, logger *slog.Logger, log *Log, store *CompactionStore, summarizer Summarizer, threshold AutoCompactionThreshold, metrics *obs.Metrics) {
	if threshold <= 0 {
		return
	}

	pending, err := MemoriesSinceLastCompaction(log, store)
	if err != nil {
		logger.Warn("failed to check memories for auto-compaction", "error", err)
		return
	}
	if pending < int(threshold) {
		return
	}

	logger.Info("auto-compaction threshold reached", "pending", pending, "threshold", int(threshold))
	start := time.Now()
	c, err := RunCompaction(ctx, log, store, summarizer)
	recordCompactionOutcome(metrics, start, err)
	switch {
	case err != nil:
		logger.Warn("auto-compaction failed", "error", err)
	case c == nil:
		logger.Info("auto-compaction: no new memories")
	default:
		logger.Info("auto-compaction completed", "through_seq", c.ThroughSeq, "memories", c.MemoriesCount)
	}
}

func recordCompactionOutcome(metrics *obs.Metrics, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordCompactionRun(outcome, time.Since(start))
}

// SafeConversationSlice returns the last maxMessages messages from
// conversation without tearing a ToolUse/ToolResult pair: it walks forward
// from the truncation point until it finds a User message that does not
// begin with an orphaned ToolResult block. Grounded on
// tycode-core/src/modules/memory/background.rs's safe_conversation_slice.
func SafeConversationSlice(conversation []chatmodel.Message, maxMessages int) []chatmodel.Message {
	if len(conversation) <= maxMessages {
		return append([]chatmodel.Message{}, conversation...)
	}

	start := len(conversation) - maxMessages
	slice := conversation[start:]

	for len(slice) > 0 {
		first := slice[0]
		if first.Role == chatmodel.RoleUser && !startsWithToolResult(first) {
			break
		}
		slice = slice[1:]
	}

	return append([]chatmodel.Message{}, slice...)
}

func startsWithToolResult(m chatmodel.Message) bool {
	for _, b := range m.Content {
		if b.Type == chatmodel.BlockToolResult {
			return true
		}
	}
	return false
}
