package chatactor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tycode-ai/tycode/internal/providers"
	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// reasoningPruneTrigger/reasoningPruneRetain implement the hysteresis rule
// from spec §4.7: once a conversation accumulates reasoning blocks past the
// trigger, the oldest are dropped until only retain remain, rather than
// pruning down to the trigger itself every time (which would re-trigger on
// the very next turn). Implementation-defined values, chosen conservatively
// since no scenario pins an exact count.
const (
	reasoningPruneTrigger = 40
	reasoningPruneRetain  = 20
)

// prunedConversation drops the oldest BlockReasoning blocks across conv
// until the total count is at or below retain, but only once the total has
// reached trigger. Returns conv unchanged (same slice) when no pruning is
// needed, so callers can always assign the result back without an extra
// branch.
func prunedConversation(conv []chatmodel.Message, trigger, retain int) []chatmodel.Message {
	if trigger <= 0 {
		return conv
	}
	total := 0
	for _, m := range conv {
		total += m.ReasoningCount()
	}
	if total < trigger {
		return conv
	}

	out := append([]chatmodel.Message{}, conv...)
	toDrop := total - retain
	for i := range out {
		if toDrop <= 0 {
			break
		}
		var kept []chatmodel.ContentBlock
		for _, b := range out[i].Content {
			if b.Type == chatmodel.BlockReasoning && toDrop > 0 {
				toDrop--
				continue
			}
			kept = append(kept, b)
		}
		out[i].Content = kept
	}
	return out
}

// buildSystemPrompt concatenates the agent's own core prompt with every
// registered module's prompt section (spec §4.7 step 2, §4.11), and
// appends the XML tool-invocation instructions when the active settings
// enable XML tool mode (since in that mode providers.Request.Tools is left
// empty and the model must be told the invocation format through prose
// instead).
func (a *Actor) buildSystemPrompt(agent string, corePrompt string, tools []providers.ToolSchema, xmlMode bool) string {
	var sections []string
	sections = append(sections, corePrompt)

	for _, m := range a.deps.Modules {
		for _, pc := range m.PromptComponents() {
			if section, ok := pc.BuildPromptSection(); ok && section != "" {
				sections = append(sections, section)
			}
		}
	}

	if xmlMode {
		sections = append(sections, xmlToolModePrompt(tools))
	}

	return strings.Join(sections, "\n\n")
}

// xmlToolModePrompt renders the tool catalog as prose plus the exact
// invocation format the XML extractor (internal/toolparse) expects, for use
// when config.Settings.XMLToolMode is enabled (spec §4.1/§4.7).
func xmlToolModePrompt(tools []providers.ToolSchema) string {
	var b strings.Builder
	b.WriteString("## Available Tools (XML invocation)\n")
	b.WriteString("Invoke tools using this exact format:\n")
	b.WriteString("<function_calls>\n<invoke name=\"tool_name\">\n<parameter name=\"param_name\">value</parameter>\n</invoke>\n</function_calls>\n\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "### %s\n%s\nInput schema: %s\n\n", t.Name, t.Description, string(t.InputSchema))
	}
	return strings.TrimRight(b.String(), "\n")
}

// toolSchemasFor builds the provider-facing tool list for the given
// registry, sorted by name for deterministic request bodies.
func toolSchemasFor(registry map[string]tool.Tool) []providers.ToolSchema {
	out := make([]providers.ToolSchema, 0, len(registry))
	for _, t := range registry {
		out = append(out, providers.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
