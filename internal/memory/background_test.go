package memory

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

func TestSafeConversationSlice_ShortConversationUnchanged(t *testing.T) {
	conv := []chatmodel.Message{chatmodel.UserMessage("hi"), chatmodel.AssistantMessage("hello")}
	out := SafeConversationSlice(conv, 10)
	assert.Equal(t, conv, out)
}

func TestSafeConversationSlice_SkipsPastOrphanedToolResult(t *testing.T) {
	conv := []chatmodel.Message{
		chatmodel.UserMessage("turn 1"),
		{Role: chatmodel.RoleAssistant, Content: []chatmodel.ContentBlock{chatmodel.ToolUse("id1", "read_file", nil)}},
		{Role: chatmodel.RoleUser, Content: []chatmodel.ContentBlock{chatmodel.ToolResultBlock("id1", "contents", false)}},
		chatmodel.AssistantMessage("done"),
		chatmodel.UserMessage("turn 2"),
	}
	out := SafeConversationSlice(conv, 3)
	require.NotEmpty(t, out)
	assert.Equal(t, chatmodel.RoleUser, out[0].Role)
	assert.Equal(t, "turn 2", out[0].TextOnly())
}

type fakeExtractor struct {
	mu      sync.Mutex
	called  bool
	appends []string
}

func (f *fakeExtractor) Extract(ctx context.Context, conversation []chatmodel.Message, log *Log) error {
	f.mu.Lock()
	f.called = true
	f.mu.Unlock()
	for _, c := range f.appends {
		if _, err := log.Append(c, "memory-manager"); err != nil {
			return err
		}
	}
	return nil
}

func TestSpawnMemoryManager_ExtractsAndAppends(t *testing.T) {
	dir := t.TempDir()
	log := NewLog(filepath.Join(dir, "memory.jsonl"))
	store := NewCompactionStore(dir)
	extractor := &fakeExtractor{appends: []string{"user prefers concise replies"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	done := make(chan struct{})
	go func() {
		SpawnMemoryManager(context.Background(), logger, extractor, log, store, &stubSummarizer{}, nil, 0, nil)
		close(done)
	}()

	require.Eventually(t, func() bool {
		all, _ := log.ReadAll()
		return len(all) == 1
	}, time.Second, 5*time.Millisecond)

	all, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "user prefers concise replies", all[0].Content)
}
