// Package contextbuilder assembles the per-turn context text injected as a
// synthesized user message ahead of each LLM request (spec §4.4).
// Grounded on tycode-core/src/chat/context/mod.rs: the file-tree trie
// render is ported directly (the §9 open question between trie and flat
// list is resolved in favor of the trie, as the original's primary path).
package contextbuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tycode-ai/tycode/internal/vfs"
)

// Memory is the minimal view of a memory record needed for rendering.
type Memory struct {
	Content string
}

// TaskRow is one task-list row for rendering.
type TaskRow struct {
	ID          int
	Description string
	Status      string
}

// LastCommandOutput mirrors the run_build_test context-injection payload.
type LastCommandOutput struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Inputs bundles everything the builder needs, decoupled from the actor so
// it can be invoked from both the main loop and background sub-runners
// (mirroring ContextInputs in the original).
type Inputs struct {
	RecentMemories      []Memory
	CompactionSummary   string // if non-empty, takes the place of/precedes RecentMemories
	MemoryEnabled       bool
	TaskListTitle       string
	TaskRows            []TaskRow
	ProjectFiles        []string // workspace-relative slash paths, for the tree render
	AutoContextEnabled  bool
	AutoContextBytes    int
	TrackedFiles        []vfs.TrackedFileContent
	LastCommand         *LastCommandOutput
}

// SectionByteCounts reports per-section byte counts for ContextInfo events
// (spec §4.4 "byte counts per section are reported").
type SectionByteCounts struct {
	Memories     int
	TaskList     int
	ProjectTree  int
	TrackedFiles int
	LastCommand  int
}

// Result is the rendered context text plus its section accounting.
type Result struct {
	Text  string
	Bytes SectionByteCounts
}

// Build deterministically renders the ordered context sections described in
// spec §4.4, omitting any that are empty. The text is never cached: it is
// regenerated every turn so tracked-file/task-list mutations take effect
// immediately.
func Build(in Inputs) Result {
	var sections []string
	var bytes SectionByteCounts

	if mem := renderMemories(in); mem != "" {
		bytes.Memories = len(mem)
		sections = append(sections, mem)
	}

	if tl := renderTaskList(in); tl != "" {
		bytes.TaskList = len(tl)
		sections = append(sections, tl)
	}

	if in.AutoContextEnabled {
		if tree := renderProjectTree(in.ProjectFiles); tree != "" && len(tree) <= in.AutoContextBytes {
			bytes.ProjectTree = len(tree)
			sections = append(sections, tree)
		}
	}

	if tf := renderTrackedFiles(in.TrackedFiles); tf != "" {
		bytes.TrackedFiles = len(tf)
		sections = append(sections, tf)
	}

	if lc := renderLastCommand(in.LastCommand); lc != "" {
		bytes.LastCommand = len(lc)
		sections = append(sections, lc)
	}

	return Result{Text: strings.Join(sections, "\n\n"), Bytes: bytes}
}

func renderMemories(in Inputs) string {
	if !in.MemoryEnabled {
		return ""
	}
	var b strings.Builder
	if in.CompactionSummary != "" {
		b.WriteString("Memory Summary:\n")
		b.WriteString(in.CompactionSummary)
	}
	if len(in.RecentMemories) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Recent Memories:\n")
		for _, m := range in.RecentMemories {
			b.WriteString("- ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTaskList(in Inputs) string {
	if len(in.TaskRows) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Task List: %s\n", in.TaskListTitle)
	for _, t := range in.TaskRows {
		fmt.Fprintf(&b, "- [%s] Task %d: %s\n", t.Status, t.ID, t.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTrackedFiles(files []vfs.TrackedFileContent) string {
	if len(files) == 0 {
		return ""
	}
	sorted := append([]vfs.TrackedFileContent{}, files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].VirtualPath < sorted[j].VirtualPath })

	var b strings.Builder
	for _, f := range sorted {
		fmt.Fprintf(&b, "=== %s ===\n%s\n", f.VirtualPath, f.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderLastCommand(lc *LastCommandOutput) string {
	if lc == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", lc.Command)
	fmt.Fprintf(&b, "Exit Code: %d\n", lc.ExitCode)
	if lc.TimedOut {
		b.WriteString("Timed Out: true\n")
	}
	b.WriteString("Stdout:\n")
	b.WriteString(lc.Stdout)
	b.WriteString("\nStderr:\n")
	b.WriteString(lc.Stderr)
	return b.String()
}

// trieNode is an alphabetized prefix tree of workspace-relative paths used
// to render the project file tree deterministically.
type trieNode struct {
	children map[string]*trieNode
	isFile   bool
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[string]*trieNode)}
}

func (n *trieNode) insert(components []string) {
	if len(components) == 0 {
		return
	}
	isFile := len(components) == 1
	child, ok := n.children[components[0]]
	if !ok {
		child = newTrieNode()
		n.children[components[0]] = child
	}
	if isFile {
		child.isFile = true
	} else {
		child.insert(components[1:])
	}
}

func (n *trieNode) render(out *strings.Builder, depth int) {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	indent := strings.Repeat("  ", depth)
	for _, name := range names {
		child := n.children[name]
		out.WriteString(indent)
		out.WriteString(name)
		if !child.isFile {
			out.WriteByte('/')
		}
		out.WriteByte('\n')
		child.render(out, depth+1)
	}
}

func renderProjectTree(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	root := newTrieNode()
	for _, p := range paths {
		root.insert(strings.Split(strings.Trim(p, "/"), "/"))
	}
	var b strings.Builder
	root.render(&b, 0)
	return strings.TrimRight(b.String(), "\n")
}
