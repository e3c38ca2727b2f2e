package chatactor

import (
	"context"
	"fmt"

	"github.com/tycode-ai/tycode/internal/agentstack"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// RunOnce drives a single unattended task through the one-shot agent on top
// of the same Chat Actor the interactive session uses: one SendMessage
// call, no further commands, then the actor is torn down and the task's
// final reply is returned as plain text. This is the CI/batch entry point —
// no interactive command channel, one task in, one result out.
//
// Grounded on tycode-core/src/agents/one_shot.rs's OneShotAgent (the
// workflow/style-mandate system prompt and AvailableTools list, with
// spawn_agent/search_files/read_file/list_files deliberately absent — see
// agentstack.OneShotAgent) and tycode-core/src/agents/runner.rs's
// AgentRunner (run-until-complete_task shape). Unlike AgentRunner, which
// drives a second, separate loop, RunOnce reuses the Chat Actor's own turn
// loop directly: it already runs until a batch yields no further tool
// calls or a Meta output ends the turn, which is the same stopping
// condition.
func RunOnce(ctx context.Context, deps Deps, task string) (string, error) {
	deps.Catalog = agentstack.OneShotCatalog()

	actor, err := New(deps)
	if err != nil {
		return "", fmt.Errorf("starting one-shot actor: %w", err)
	}
	defer actor.Close()

	actor.SendMessage(ctx, task)

	return lastAssistantText(actor.Stack.Current().Conversation), nil
}

// lastAssistantText returns the text content of the last assistant message
// in conversation, or "" if there isn't one.
func lastAssistantText(conversation []chatmodel.Message) string {
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == chatmodel.RoleAssistant {
			return conversation[i].TextOnly()
		}
	}
	return ""
}
