package chatactor

import (
	"context"
	"fmt"

	"github.com/tycode-ai/tycode/internal/agentstack"
	"github.com/tycode-ai/tycode/internal/memory"
	"github.com/tycode-ai/tycode/internal/providers"
	"github.com/tycode-ai/tycode/internal/review"
	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/internal/toolpipeline"
	"github.com/tycode-ai/tycode/internal/tools"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// maxSubAgentIterations bounds a standalone sub-agent run (summarizer,
// extractor, or reviewer): one inference-plus-tool round per iteration,
// ending the moment complete_task fires. Implementation-defined, chosen
// generously since these runs are unattended and a stall should surface
// as an error rather than loop forever.
const maxSubAgentIterations = 20

// runSubAgentToCompletion drives a throwaway agentstack.Stack rooted at
// agent through the same inference/tool loop the live session uses, but
// against its own private conversation and a caller-supplied tool
// registry, until complete_task (OutputPopAgent) ends it. This is the
// shared primitive behind the memory summarizer, the memory extractor, and
// the review sub-agent runner — all three spawn a one-off agent rather
// than joining the session's own stack.
func (a *Actor) runSubAgentToCompletion(ctx context.Context, agent agentstack.Agent, registry toolpipeline.MapRegistry, seed chatmodel.Message) (string, error) {
	stack := agentstack.NewStack(agent)
	stack.Current().Conversation = []chatmodel.Message{seed}

	model, maxTokens, reasoningBudget := a.modelSettingsFor(agent)
	schemas := toolSchemasFor(registry)

	for i := 0; i < maxSubAgentIterations; i++ {
		req := providers.Request{
			SystemPrompt:    a.buildSystemPrompt(agent.AgentType, agent.CorePrompt, schemas, false),
			Messages:        toProviderMessages(stack.Current().Conversation),
			Tools:           schemas,
			Model:           model,
			MaxOutputTokens: maxTokens,
			ReasoningBudget: reasoningBudget,
		}

		resp, err := a.deps.Provider.Converse(ctx, req)
		if err != nil {
			return "", fmt.Errorf("sub-agent %s inference failed: %w", agent.AgentType, err)
		}

		turn := assembleAssistantTurn(resp)
		stack.Current().Conversation = append(stack.Current().Conversation, turn.Message)

		if len(turn.ToolCalls) == 0 {
			stack.Current().Conversation = append(stack.Current().Conversation,
				chatmodel.UserMessage("Call complete_task with your result when finished."))
			continue
		}

		result := toolpipeline.Run(ctx, turn.ToolCalls, toolpipeline.Options{
			Registry:      registry,
			Sink:          a.deps.Sink,
			SessionID:     a.SessionID,
			AgentName:     agent.AgentType,
			WorkspaceRoot: a.deps.WorkspaceRoot,
		})
		if len(result.ToolResults) > 0 {
			stack.Current().Conversation = append(stack.Current().Conversation,
				chatmodel.Message{Role: chatmodel.RoleUser, Content: result.ToolResults})
		}

		if result.MetaOutput != nil && result.MetaOutput.Kind == tool.OutputPopAgent {
			return result.MetaOutput.PopResult, nil
		}
	}

	return "", fmt.Errorf("sub-agent %s did not call complete_task within %d iterations", agent.AgentType, maxSubAgentIterations)
}

const summarizerCorePrompt = "You are a conversation summarizer. You fold newly recorded memories into " +
	"a single running summary of durable facts about the user and the project. Preserve everything from " +
	"the previous summary that is still true, then weave in the new memories. Be concise but lose no " +
	"durable fact. Call complete_task with the updated summary as your result."

// subAgentSummarizer implements memory.Summarizer by spawning a one-off
// summarization agent. Its CorePrompt deliberately contains the literal
// phrase "conversation summarizer" (scenario S4).
type subAgentSummarizer struct {
	actor *Actor
}

func (s *subAgentSummarizer) Summarize(ctx context.Context, previousSummary string, pending []memory.Entry) (string, error) {
	agent := agentstack.Agent{
		AgentType:      "memory_summarizer",
		Name:           "Memory Summarizer",
		CorePrompt:     summarizerCorePrompt,
		AvailableTools: []string{"complete_task"},
		PreferredCost:  "low",
	}
	registry := toolpipeline.MapRegistry{
		"complete_task": &tools.CompleteTaskTool{},
	}
	seed := chatmodel.UserMessage(memory.FormatForSummary(previousSummary, pending))
	return s.actor.runSubAgentToCompletion(ctx, agent, registry, seed)
}

const extractorCorePrompt = "You are the memory manager. Review the conversation slice below and decide " +
	"what durable facts about the user or the project are worth remembering for future sessions. Call " +
	"append_memory once per fact worth keeping — skip anything ephemeral or already obvious from the " +
	"code. When you are done extracting (even if you found nothing), call complete_task."

// subAgentExtractor implements memory.ExtractorAgent by spawning a one-off
// extraction agent that calls append_memory for each fact it finds.
type subAgentExtractor struct {
	actor *Actor
}

func (e *subAgentExtractor) Extract(ctx context.Context, conversation []chatmodel.Message, log *memory.Log) error {
	agent := agentstack.Agent{
		AgentType:      "memory_extractor",
		Name:           "Memory Extractor",
		CorePrompt:     extractorCorePrompt,
		AvailableTools: []string{"append_memory", "complete_task"},
		PreferredCost:  "low",
	}
	registry := toolpipeline.MapRegistry{
		"append_memory": &tools.AppendMemoryTool{Log: log},
		"complete_task": &tools.CompleteTaskTool{},
	}

	seed := chatmodel.UserMessage(renderConversationForExtraction(conversation))
	_, err := e.actor.runSubAgentToCompletion(ctx, agent, registry, seed)
	return err
}

// renderConversationForExtraction flattens a conversation slice into plain
// text for a sub-agent's seed message; only text content matters for
// fact-finding, so tool-call/result blocks are skipped.
func renderConversationForExtraction(conversation []chatmodel.Message) string {
	out := "Conversation to review for durable facts:\n\n"
	for _, m := range conversation {
		for _, b := range m.Content {
			if b.Type == chatmodel.BlockText && b.Text != "" {
				out += string(m.Role) + ": " + b.Text + "\n\n"
			}
		}
	}
	return out
}

// subAgentReviewRunner implements review.SubAgentRunner by spawning the
// catalog's "reviewer" agent against a deep- or diff-review task.
type subAgentReviewRunner struct {
	actor *Actor
}

func (r *subAgentReviewRunner) Run(ctx context.Context, task string) (string, error) {
	agent, err := r.actor.deps.Catalog.Lookup("reviewer")
	if err != nil {
		return "", fmt.Errorf("resolving reviewer agent: %w", err)
	}

	registry := r.actor.toolRegistry(agentstack.Agent{
		AgentType:      agent.AgentType,
		AvailableTools: agent.AvailableTools,
	})
	// The session's own core tools are bound to the live session stack;
	// a standalone review run needs its own spawn/complete bindings, but
	// the reviewer agent never has spawn_agent in its AvailableTools, so
	// only complete_task needs rebinding here.
	registry["complete_task"] = &tools.CompleteTaskTool{}

	return r.actor.runSubAgentToCompletion(ctx, agent, registry, chatmodel.UserMessage(task))
}

var _ review.SubAgentRunner = (*subAgentReviewRunner)(nil)
var _ memory.Summarizer = (*subAgentSummarizer)(nil)
var _ memory.ExtractorAgent = (*subAgentExtractor)(nil)
