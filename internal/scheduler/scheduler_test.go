package scheduler

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tycode-ai/tycode/internal/memory"
)

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, previousSummary string, pending []memory.Entry) (string, error) {
	return "summary", nil
}

func TestNewCompactionScheduler_RejectsInvalidExpression(t *testing.T) {
	dir := t.TempDir()
	log := memory.NewLog(filepath.Join(dir, "memory.jsonl"))
	store := memory.NewCompactionStore(dir)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewCompactionScheduler("not a cron expr !!", logger, log, store, fakeSummarizer{}, nil)
	require.Error(t, err)
}

func TestCompactionScheduler_RunsCompactionOnEveryTick(t *testing.T) {
	dir := t.TempDir()
	log := memory.NewLog(filepath.Join(dir, "memory.jsonl"))
	store := memory.NewCompactionStore(dir)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := log.Append("the user prefers dark mode", "test")
	require.NoError(t, err)

	sched, err := NewCompactionScheduler("@every 10ms", logger, log, store, fakeSummarizer{}, nil)
	require.NoError(t, err)

	sched.Start()
	defer sched.Stop()

	require.Eventually(t, func() bool {
		latest, err := store.FindLatest()
		return err == nil && latest != nil
	}, 2*time.Second, 10*time.Millisecond, "expected a compaction to run within two seconds of ticks")

	assert.Greater(t, func() int { l, _ := store.FindLatest(); return l.MemoriesCount }(), 0)
}
