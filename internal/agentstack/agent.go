// Package agentstack implements the push/pop agent hierarchy from spec
// §4.5: Agent as a static capability value, ActiveAgent pairing an Agent
// with its mutable conversation, and Stack as the ordered non-empty
// sequence whose last element is the current agent.
//
// Grounded on tycode-core/src/spawn/spawn_agent.rs (self-spawn / allowed-
// agent rejection, orientation message shape) and the teacher's
// internal/multiagent orchestrator (push/pop over a conversation-bearing
// value rather than a recursive task tree).
package agentstack

import (
	"fmt"

	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// Agent is a static capability value: system prompt, available tools, and
// cost tier for an LLM interaction. It carries no mutable state itself.
type Agent struct {
	AgentType        string
	Name             string
	CorePrompt       string
	AvailableTools   []string
	SpawnableAgents  map[string]bool
	PreferredCost    string
	ReasoningBudget  int // 0 means no extended thinking
}

// CanSpawn reports whether this agent is permitted to spawn the named
// child agent type.
func (a Agent) CanSpawn(agentType string) bool {
	return a.SpawnableAgents[agentType]
}

// ActiveAgent pairs a static Agent with its mutable conversation.
type ActiveAgent struct {
	Agent        Agent
	Conversation []chatmodel.Message
}

// SpawnMode selects how a spawned agent's initial conversation is built
// (spec §4.5 / §9 open question, defaulted to Fresh).
type SpawnMode string

const (
	SpawnFresh  SpawnMode = "fresh"
	SpawnForked SpawnMode = "fork"
)

const orientationMarker = "AGENT TRANSITION"

// OrientationMessage builds the canonical User message prepended to a
// spawned agent's conversation: it must carry the literal marker
// "AGENT TRANSITION", the agent's role, the completion rules, and end with
// the verbatim task text.
func OrientationMessage(agent Agent, task string) chatmodel.Message {
	text := fmt.Sprintf(
		"=== %s ===\n\nYou are now the %s agent.\n\n"+
			"When you have finished, call complete_task(success, result) to return "+
			"control to the agent that spawned you. Do not attempt to spawn_agent "+
			"of the same type as yourself.\n\nYour task:\n%s",
		orientationMarker, agent.Name, task,
	)
	return chatmodel.UserMessage(text)
}

// Stack is the ordered, non-empty sequence of ActiveAgent from spec §3/§4.5.
// The last element is the current agent.
type Stack struct {
	agents []*ActiveAgent
}

// NewStack creates a stack rooted at the given agent.
func NewStack(root Agent) *Stack {
	return &Stack{agents: []*ActiveAgent{{Agent: root}}}
}

// Current returns the top of the stack. The stack is never empty (spec §8
// invariant 3), so this never returns nil.
func (s *Stack) Current() *ActiveAgent {
	return s.agents[len(s.agents)-1]
}

// Depth returns the current stack depth (>=1).
func (s *Stack) Depth() int {
	return len(s.agents)
}

// ErrSelfSpawn is returned when an agent attempts to spawn its own type.
type ErrSelfSpawn struct{ AgentType string }

func (e ErrSelfSpawn) Error() string {
	return fmt.Sprintf("cannot spawn agent of type %q from the same agent type; use complete_task with failure instead", e.AgentType)
}

// ErrDisallowedSpawn is returned when the current agent is not permitted
// to spawn the requested child type.
type ErrDisallowedSpawn struct {
	Current, Requested string
}

func (e ErrDisallowedSpawn) Error() string {
	return fmt.Sprintf("agent %q is not permitted to spawn agent type %q", e.Current, e.Requested)
}

// ErrMaxDepth is returned when spawning would exceed the configured depth
// limit (spec §4.5 "Depth limits").
type ErrMaxDepth struct{ Limit int }

func (e ErrMaxDepth) Error() string {
	return fmt.Sprintf("agent stack depth limit reached (%d)", e.Limit)
}

// MaxStackDepth bounds recursive sub-agent spawning. Implementation-defined
// per spec §4.5; chosen conservatively to bound background fan-out.
const MaxStackDepth = 12

// Push validates and spawns a new ActiveAgent on top of the stack. Callers
// must have already resolved `child` from the agent catalog.
func (s *Stack) Push(child Agent, task string, mode SpawnMode) (*ActiveAgent, error) {
	current := s.Current()
	if current.Agent.AgentType == child.AgentType {
		return nil, ErrSelfSpawn{AgentType: child.AgentType}
	}
	if !current.Agent.CanSpawn(child.AgentType) {
		return nil, ErrDisallowedSpawn{Current: current.Agent.AgentType, Requested: child.AgentType}
	}
	if len(s.agents) >= MaxStackDepth {
		return nil, ErrMaxDepth{Limit: MaxStackDepth}
	}

	active := &ActiveAgent{Agent: child}
	switch mode {
	case SpawnForked:
		active.Conversation = append(append([]chatmodel.Message{}, current.Conversation...), OrientationMessage(child, task))
	default:
		active.Conversation = []chatmodel.Message{OrientationMessage(child, task)}
	}

	s.agents = append(s.agents, active)
	return active, nil
}

// Pop removes the current agent and appends a completion message to the
// new top of stack's conversation. Returns true, leaving the stack
// unchanged, if the stack would underflow (the root agent completed); the
// caller must then await user input rather than call Pop.
func (s *Stack) Pop(success bool, result string) (underflow bool) {
	if len(s.agents) <= 1 {
		return true
	}
	s.agents = s.agents[:len(s.agents)-1]
	parent := s.Current()
	msg := chatmodel.UserMessage(fmt.Sprintf("Sub-agent completed [success=%t]: %s", success, result))
	parent.Conversation = append(parent.Conversation, msg)
	return false
}
