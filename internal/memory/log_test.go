package memory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendAssignsMonotonicSeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")
	log := NewLog(path)

	e1, err := log.Append("user prefers tabs", "global")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e1.Seq)

	e2, err := log.Append("project uses Go 1.24", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e2.Seq)

	all, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "user prefers tabs", all[0].Content)
	assert.Equal(t, "project uses Go 1.24", all[1].Content)
}

func TestLog_ReadAllOnMissingFileReturnsEmpty(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "nope.jsonl"))
	all, err := log.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLog_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")
	log := NewLog(path)
	_, err := log.Append("first", "")
	require.NoError(t, err)

	reopened := NewLog(path)
	all, err := reopened.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "first", all[0].Content)
}
