package chatactor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tycode-ai/tycode/internal/memory"
	"github.com/tycode-ai/tycode/internal/providers"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

func TestRunSubAgentToCompletion_ReturnsOnCompleteTask(t *testing.T) {
	provider := &scriptedProvider{responses: []providers.Response{
		toolUseResponse("tu-1", "complete_task", []byte(`{"success":true,"result":"all done"}`)),
	}}
	catalog := singleAgentCatalog("tester", []string{"complete_task"})
	deps := newTestDeps(t, provider, catalog)
	a := newTestActor(t, deps)

	agent, err := catalog.Lookup("tester")
	require.NoError(t, err)
	registry := a.toolRegistry(agent)

	result, err := a.runSubAgentToCompletion(context.Background(), agent, registry, chatmodel.UserMessage("do the sub task"))
	require.NoError(t, err)
	assert.Equal(t, "all done", result)
	assert.Len(t, provider.calls, 1)
}

func TestRunSubAgentToCompletion_NudgesOnEmptyToolCallRound(t *testing.T) {
	provider := &scriptedProvider{responses: []providers.Response{
		textResponse("thinking out loud, no tool call yet"),
		toolUseResponse("tu-2", "complete_task", []byte(`{"success":true,"result":"finished after nudge"}`)),
	}}
	catalog := singleAgentCatalog("tester", []string{"complete_task"})
	deps := newTestDeps(t, provider, catalog)
	a := newTestActor(t, deps)

	agent, err := catalog.Lookup("tester")
	require.NoError(t, err)
	registry := a.toolRegistry(agent)

	result, err := a.runSubAgentToCompletion(context.Background(), agent, registry, chatmodel.UserMessage("do the sub task"))
	require.NoError(t, err)
	assert.Equal(t, "finished after nudge", result)
	assert.Len(t, provider.calls, 2, "a zero-tool-call round should nudge and retry, not end the run")
}

func TestRunSubAgentToCompletion_ErrorsAfterExhaustingIterations(t *testing.T) {
	responses := make([]providers.Response, 0, maxSubAgentIterations)
	for i := 0; i < maxSubAgentIterations; i++ {
		responses = append(responses, textResponse("still thinking"))
	}
	provider := &scriptedProvider{responses: responses}
	catalog := singleAgentCatalog("tester", []string{"complete_task"})
	deps := newTestDeps(t, provider, catalog)
	a := newTestActor(t, deps)

	agent, err := catalog.Lookup("tester")
	require.NoError(t, err)
	registry := a.toolRegistry(agent)

	_, err = a.runSubAgentToCompletion(context.Background(), agent, registry, chatmodel.UserMessage("do the sub task"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not call complete_task")
}

func TestSubAgentSummarizer_PromptNamesItselfAConversationSummarizer(t *testing.T) {
	assert.Contains(t, summarizerCorePrompt, "conversation summarizer")
}

func TestSubAgentExtractor_CallsAppendMemoryAgainstThePassedLog(t *testing.T) {
	provider := &scriptedProvider{responses: []providers.Response{
		toolUseResponse("tu-3", "append_memory", []byte(`{"content":"the user prefers terse replies"}`)),
		toolUseResponse("tu-4", "complete_task", []byte(`{"success":true,"result":"extracted one fact"}`)),
	}}
	catalog := singleAgentCatalog("coordinator", nil)
	deps := newTestDeps(t, provider, catalog)
	a := newTestActor(t, deps)

	dir := t.TempDir()
	log := memory.NewLog(filepath.Join(dir, "memory.jsonl"))
	extractor := &subAgentExtractor{actor: a}

	err := extractor.Extract(context.Background(), []chatmodel.Message{chatmodel.UserMessage("hi"), chatmodel.AssistantMessage("hello")}, log)
	require.NoError(t, err)

	entries, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "the user prefers terse replies", entries[0].Content)
}
