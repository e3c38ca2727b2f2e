package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSummarizer struct {
	summary string
	err     error
	calls   int
}

func (s *stubSummarizer) Summarize(ctx context.Context, previousSummary string, pending []Entry) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

func TestCompactionStore_FindLatestEmptyDir(t *testing.T) {
	store := NewCompactionStore(t.TempDir())
	c, err := store.FindLatest()
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCompactionStore_SaveAndFindLatestPicksHighestSeq(t *testing.T) {
	dir := t.TempDir()
	store := NewCompactionStore(dir)

	require.NoError(t, store.Save(Compaction{ThroughSeq: 5, Summary: "early"}))
	require.NoError(t, store.Save(Compaction{ThroughSeq: 42, Summary: "latest"}))
	require.NoError(t, store.Save(Compaction{ThroughSeq: 17, Summary: "middle"}))

	latest, err := store.FindLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, uint64(42), latest.ThroughSeq)
	assert.Equal(t, "latest", latest.Summary)
}

func TestRunCompaction_NoPendingMemoriesReturnsNil(t *testing.T) {
	dir := t.TempDir()
	log := NewLog(filepath.Join(dir, "memory.jsonl"))
	store := NewCompactionStore(dir)
	summarizer := &stubSummarizer{summary: "unused"}

	c, err := RunCompaction(context.Background(), log, store, summarizer)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, 0, summarizer.calls)
}

func TestRunCompaction_SummarizesPendingAndPersists(t *testing.T) {
	dir := t.TempDir()
	log := NewLog(filepath.Join(dir, "memory.jsonl"))
	store := NewCompactionStore(dir)

	_, err := log.Append("learned X", "")
	require.NoError(t, err)
	_, err = log.Append("learned Y", "")
	require.NoError(t, err)

	summarizer := &stubSummarizer{summary: "X and Y"}
	c, err := RunCompaction(context.Background(), log, store, summarizer)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, uint64(2), c.ThroughSeq)
	assert.Equal(t, 2, c.MemoriesCount)
	assert.Equal(t, "X and Y", c.Summary)
	assert.Nil(t, c.PreviousCompactionSeq)

	persisted, err := store.FindLatest()
	require.NoError(t, err)
	assert.Equal(t, c.ThroughSeq, persisted.ThroughSeq)
}

func TestRunCompaction_SecondRoundOnlyCoversNewMemories(t *testing.T) {
	dir := t.TempDir()
	log := NewLog(filepath.Join(dir, "memory.jsonl"))
	store := NewCompactionStore(dir)
	summarizer := &stubSummarizer{summary: "first round"}

	_, _ = log.Append("a", "")
	_, err := RunCompaction(context.Background(), log, store, summarizer)
	require.NoError(t, err)

	_, _ = log.Append("b", "")
	_, _ = log.Append("c", "")
	summarizer.summary = "second round"
	c, err := RunCompaction(context.Background(), log, store, summarizer)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, uint64(3), c.ThroughSeq)
	assert.Equal(t, 2, c.MemoriesCount)
	require.NotNil(t, c.PreviousCompactionSeq)
	assert.Equal(t, uint64(1), *c.PreviousCompactionSeq)
}

func TestMemoriesSinceLastCompaction(t *testing.T) {
	dir := t.TempDir()
	log := NewLog(filepath.Join(dir, "memory.jsonl"))
	store := NewCompactionStore(dir)

	_, _ = log.Append("a", "")
	_, _ = log.Append("b", "")

	n, err := MemoriesSinceLastCompaction(log, store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	summarizer := &stubSummarizer{summary: "s"}
	_, err = RunCompaction(context.Background(), log, store, summarizer)
	require.NoError(t, err)

	n, err = MemoriesSinceLastCompaction(log, store)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
