package modules

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tycode-ai/tycode/internal/memory"
)

type stubSummarizer struct {
	summary string
	err     error
}

func (s stubSummarizer) Summarize(ctx context.Context, previousSummary string, pending []memory.Entry) (string, error) {
	return s.summary, s.err
}

func TestMemorySlashCommand_SummarizeNoMemories(t *testing.T) {
	dir := t.TempDir()
	cmd := &MemorySlashCommand{
		Log:        memory.NewLog(filepath.Join(dir, "log.jsonl")),
		Store:      memory.NewCompactionStore(dir),
		Summarizer: stubSummarizer{summary: "irrelevant"},
	}

	msgs, err := cmd.Execute(context.Background(), []string{"summarize"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].TextOnly(), "No memories to summarize")
}

func TestMemorySlashCommand_SummarizeWithMemories(t *testing.T) {
	dir := t.TempDir()
	log := memory.NewLog(filepath.Join(dir, "log.jsonl"))
	_, err := log.Append("user likes dark mode", "global")
	require.NoError(t, err)

	cmd := &MemorySlashCommand{
		Log:        log,
		Store:      memory.NewCompactionStore(dir),
		Summarizer: stubSummarizer{summary: "User prefers dark mode."},
	}

	msgs, err := cmd.Execute(context.Background(), []string{"summarize"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].TextOnly(), "User prefers dark mode.")
}

func TestMemorySlashCommand_CompactPersistsCompaction(t *testing.T) {
	dir := t.TempDir()
	log := memory.NewLog(filepath.Join(dir, "log.jsonl"))
	_, err := log.Append("entry one", "global")
	require.NoError(t, err)
	store := memory.NewCompactionStore(dir)

	cmd := &MemorySlashCommand{Log: log, Store: store, Summarizer: stubSummarizer{summary: "summary text"}}

	msgs, err := cmd.Execute(context.Background(), []string{"compact"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].TextOnly(), "Compacted 1 memories")

	latest, err := store.FindLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "summary text", latest.Summary)
}

func TestMemorySlashCommand_ShowListsRawEntries(t *testing.T) {
	dir := t.TempDir()
	log := memory.NewLog(filepath.Join(dir, "log.jsonl"))
	_, err := log.Append("remember this", "global")
	require.NoError(t, err)

	cmd := &MemorySlashCommand{Log: log, Store: memory.NewCompactionStore(dir)}

	msgs, err := cmd.Execute(context.Background(), []string{"show"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].TextOnly(), "remember this")
}

func TestMemorySlashCommand_UnknownSubcommand(t *testing.T) {
	dir := t.TempDir()
	cmd := &MemorySlashCommand{Log: memory.NewLog(filepath.Join(dir, "log.jsonl")), Store: memory.NewCompactionStore(dir)}

	msgs, err := cmd.Execute(context.Background(), []string{"bogus"})
	require.NoError(t, err)
	assert.Contains(t, msgs[0].TextOnly(), "Unknown memory subcommand")
}
