package agentstack

import "fmt"

// Catalog resolves an agent_type string to its static Agent definition, the
// lookup spawn_agent needs before it can call Stack.Push.
type Catalog struct {
	agents map[string]Agent
	root   string
}

// DefaultCatalog returns the built-in three-agent hierarchy used across the
// spec's worked examples (S2/S3): a root "coordinator" that can delegate to
// "coder" and "reviewer", a "coder" that can hand off to "reviewer", and a
// "reviewer" with no further spawn rights.
func DefaultCatalog() *Catalog {
	return NewCatalog("coordinator", []Agent{
		{
			AgentType:       "coordinator",
			Name:            "Coordinator",
			CorePrompt:      "You are the coordinator. Break down the user's request and delegate implementation work to sub-agents.",
			AvailableTools:  []string{"spawn_agent", "manage_task_list", "set_tracked_files"},
			SpawnableAgents: map[string]bool{"coder": true, "reviewer": true},
			PreferredCost:   "high",
		},
		{
			AgentType:       "coder",
			Name:            "Coder",
			CorePrompt:      "You are the coder. Implement the assigned task directly in the workspace.",
			AvailableTools:  []string{"write_file", "modify_file", "delete_file", "run_build_test", "set_tracked_files", "spawn_agent", "complete_task"},
			SpawnableAgents: map[string]bool{"reviewer": true},
			PreferredCost:   "balanced",
		},
		{
			AgentType:      "reviewer",
			Name:           "Reviewer",
			CorePrompt:     "You are the reviewer. Check the sub-agent's work for correctness and completeness, then complete_task.",
			AvailableTools: []string{"run_build_test", "complete_task"},
			PreferredCost:  "balanced",
		},
	})
}

// OneShotAgent is the single all-in-one agent batch/CI entry points drive
// instead of the coordinator/coder/reviewer hierarchy: it understands,
// plans, implements, and reviews its own change inside one agent rather
// than delegating, and carries no spawn_agent right (nothing to delegate
// to when no human is present to approve a hand-off).
func OneShotAgent() Agent {
	return Agent{
		AgentType:      "one_shot",
		Name:           "One-Shot Engineer",
		CorePrompt:     oneShotCorePrompt,
		AvailableTools: []string{"set_tracked_files", "write_file", "modify_file", "delete_file", "run_build_test", "ask_user_question", "complete_task"},
		PreferredCost:  "unlimited",
	}
}

// OneShotCatalog is a single-agent Catalog rooted at OneShotAgent, for
// RunOnce-style batch entry points that have no use for the interactive
// coordinator/coder/reviewer hierarchy.
func OneShotCatalog() *Catalog {
	return NewCatalog("one_shot", []Agent{OneShotAgent()})
}

const oneShotCorePrompt = `You are a one-shot software engineering agent that handles a complete coding task in a single, unattended workflow. Follow this workflow in order and do not skip steps:

1. UNDERSTAND REQUIREMENTS
   - Analyze the request, identify scope and constraints.
   - Use set_tracked_files to track every file you need in context. Tracked file contents are refreshed into context automatically on every turn; you have no separate read_file or list_files tool, so track everything you need up front rather than trickling in one file at a time.

2. WRITE A PLAN
   - Break the task into steps, identify which files need to change, and state your reasoning.
   - There is no user available to approve this plan mid-run: proceed directly into implementation once the plan is sound, but if you discover a flaw in it while implementing, stop and revise the plan before continuing rather than patching around the flaw.

3. IMPLEMENT THE CHANGE
   - Follow the plan step by step. Re-track modified files so their latest contents stay in context.
   - Write clean, maintainable code following the Style Mandates below. Review each new line against them before moving on — corrections are far cheaper now than after the review pass.

4. REVIEW THE CHANGES
   - Re-track every file you touched and confirm each modification is as intended.
   - Check the diff line by line against the Style Mandates. Find and correct real violations rather than rubber-stamping the change.
   - Run run_build_test and address any failure before finishing.
   - Call complete_task with a summary of what was implemented.

## Style Mandates
- YAGNI: write only what the request requires. No speculative code, no throwaway scripts or helper mains.
- Avoid deep nesting: prefer early returns; four indentation levels is the ceiling.
- Separate policy from implementation: push decisions to callers, push execution down; don't have a function invent a fallback for a missing input the caller should have supplied.
- Comment only the "why" — a non-obvious constraint or the reason for an unusual structure — never the "what" a well-named identifier already says.
- Avoid over-generalizing or adding abstraction layers beyond what the task needs.
- Avoid new global/package-level mutable state.
- Surface errors immediately. Never swallow an error, never fabricate a fallback result, never leave a TODO in place of the real implementation. If you're stuck, stop and use ask_user_question rather than guessing.

## Communication
- Terse. "Acknowledged" is often a complete reply.
- Never claim code is production-ready, never say "perfect." Stay measured.
- No emojis. Flat, logical tone — state findings and next steps, not enthusiasm.
- Prefer asking over guessing: one ask_user_question call costs far less than a wrong implementation.`

// NewCatalog builds a Catalog from an explicit agent list, e.g. one loaded
// from `agent_models` in settings.
func NewCatalog(rootType string, agents []Agent) *Catalog {
	c := &Catalog{agents: make(map[string]Agent, len(agents)), root: rootType}
	for _, a := range agents {
		c.agents[a.AgentType] = a
	}
	return c
}

// Root returns the catalog's root agent, used to seed a new Stack.
func (c *Catalog) Root() (Agent, error) {
	return c.Lookup(c.root)
}

// Lookup resolves an agent_type to its static definition.
func (c *Catalog) Lookup(agentType string) (Agent, error) {
	a, ok := c.agents[agentType]
	if !ok {
		return Agent{}, fmt.Errorf("unknown agent type %q", agentType)
	}
	return a, nil
}
