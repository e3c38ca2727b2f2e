package modules

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tycode-ai/tycode/internal/config"
)

// Builtin names one of the four always-present steering sections.
type Builtin int

const (
	BuiltinUnderstandingTools Builtin = iota
	BuiltinStyleMandates
	BuiltinCommunicationGuidelines
	BuiltinTaskListManagement
)

func (b Builtin) fileStem() string {
	switch b {
	case BuiltinUnderstandingTools:
		return "understanding_tools"
	case BuiltinStyleMandates:
		return "style_mandates"
	case BuiltinCommunicationGuidelines:
		return "communication_guidelines"
	case BuiltinTaskListManagement:
		return "task_list_management"
	default:
		return ""
	}
}

func allBuiltins() []Builtin {
	return []Builtin{BuiltinUnderstandingTools, BuiltinStyleMandates, BuiltinCommunicationGuidelines, BuiltinTaskListManagement}
}

const defaultUnderstandingTools = `## Understanding your tools
Every inference request includes fresh context on the most recent message: the project file tree and the full contents of every tracked file. Change the tracked set with set_tracked_files; files left out of the array are untracked and their contents forgotten.

### Virtual File System
Workspaces are presented through a virtual file system. Each workspace is a root directory (e.g. /ProjectName/src/...) rather than a raw OS path. All tools expect these virtual paths exactly as shown in the file listing.

### Tool Categories
Execution tools (set_tracked_files, write_file, modify_file, delete_file, run_build_test) and Meta tools (ask_user_question, complete_task, spawn_agent) cannot be mixed in a single response. manage_task_list is the one exception: it must accompany whichever category represents the next workflow action, never sent alone.`

const defaultStyleMandates = `## Style Mandates
- YAGNI: write only what the request minimally requires.
- Avoid deep nesting; prefer early returns.
- Separate policy from implementation: push decisions to the caller.
- Comment the why, never the what.
- Surface errors immediately; never silently drop them or fabricate fallbacks.`

const defaultCommunicationGuidelinesConcise = `## Communication guidelines
- Short, terse communication. "Acknowledged" is often enough.
- Never claim code is production ready.
- No emojis.`

const defaultCommunicationGuidelinesWarm = `## Communication guidelines
- Be warm and approachable; celebrate progress with the user.
- Explain reasoning conversationally.
- Frame setbacks as something to work through together.`

const defaultCommunicationGuidelinesCat = `## Communication guidelines
- Curious, independent, occasionally playful.
- Cat mannerisms welcome ("purr", "hiss" for errors) without losing helpfulness.`

const defaultCommunicationGuidelinesMeme = `## Communication guidelines
- Maximum enthusiasm, liberal exclamation points and emoji.
- Treat every completed task as a triumph.`

const defaultTaskListManagement = `## Task list management
Maintain a task list via manage_task_list as work progresses. At most one task is InProgress at a time. Mark a task Completed before starting the next one, and Failed if it cannot be finished as planned.`

// SteeringDocuments loads the always-present builtin sections (with
// workspace/home overrides), custom `.tycode/*.md` documents, and
// external-tool rule files (Cursor/Cline/Roo/Kiro), concatenating them
// into a single system-prompt fragment.
//
// Grounded directly on tycode-core/src/steering/mod.rs's
// SteeringDocuments: the same override precedence (workspace > home >
// built-in default) and the same four external-tool directories.
type SteeringDocuments struct {
	Base
	WorkspaceRoots []string
	HomeDir        string
	Tone           config.CommunicationTone
}

// NewSteeringDocuments constructs the steering module bound to the given
// workspace roots, home directory, and active communication tone.
func NewSteeringDocuments(workspaceRoots []string, homeDir string, tone config.CommunicationTone) SteeringDocuments {
	return SteeringDocuments{
		Base:           Base{NameValue: "steering"},
		WorkspaceRoots: workspaceRoots,
		HomeDir:        homeDir,
		Tone:           tone,
	}
}

func (s SteeringDocuments) PromptComponents() []PromptComponent {
	return []PromptComponent{steeringPromptComponent{s}}
}

type steeringPromptComponent struct {
	docs SteeringDocuments
}

func (c steeringPromptComponent) ID() string { return "steering" }

func (c steeringPromptComponent) BuildPromptSection() (string, bool) {
	content := c.docs.buildContent()
	return content, content != ""
}

func (s SteeringDocuments) buildContent() string {
	var sections []string
	for _, b := range allBuiltins() {
		sections = append(sections, s.getBuiltin(b))
	}
	sections = append(sections, s.customDocuments()...)
	sections = append(sections, s.externalDocuments()...)
	return strings.Join(sections, "\n\n")
}

func (s SteeringDocuments) getBuiltin(b Builtin) string {
	name := b.fileStem() + ".md"

	for _, root := range s.WorkspaceRoots {
		if content, ok := readFile(filepath.Join(root, ".tycode", name)); ok {
			return content
		}
	}
	if content, ok := readFile(filepath.Join(s.HomeDir, ".tycode", name)); ok {
		return content
	}
	return s.getDefault(b)
}

func (s SteeringDocuments) getDefault(b Builtin) string {
	switch b {
	case BuiltinUnderstandingTools:
		return defaultUnderstandingTools
	case BuiltinStyleMandates:
		return defaultStyleMandates
	case BuiltinCommunicationGuidelines:
		return s.communicationGuidelinesForTone()
	case BuiltinTaskListManagement:
		return defaultTaskListManagement
	default:
		return ""
	}
}

func (s SteeringDocuments) communicationGuidelinesForTone() string {
	switch s.Tone {
	case config.ToneWarmAndFlowy:
		return defaultCommunicationGuidelinesWarm
	case config.ToneCat:
		return defaultCommunicationGuidelinesCat
	case config.ToneMeme:
		return defaultCommunicationGuidelinesMeme
	default:
		return defaultCommunicationGuidelinesConcise
	}
}

// customDocuments collects every non-builtin `.md` file directly under each
// workspace's `.tycode/` dir, then the home `.tycode/` dir, de-duplicated by
// path.
func (s SteeringDocuments) customDocuments() []string {
	var docs []string
	seen := map[string]bool{}

	collect := func(dir string) {
		for _, path := range mdFilesIn(dir) {
			if seen[path] {
				continue
			}
			stem := strings.TrimSuffix(filepath.Base(path), ".md")
			if isBuiltinStem(stem) {
				continue
			}
			if content, ok := readFile(path); ok {
				seen[path] = true
				docs = append(docs, content)
			}
		}
	}

	for _, root := range s.WorkspaceRoots {
		collect(filepath.Join(root, ".tycode"))
	}
	collect(filepath.Join(s.HomeDir, ".tycode"))
	return docs
}

// externalDocuments collects rule files from other coding assistants'
// conventions so a workspace that already has Cursor/Cline/Roo/Kiro rules
// gets them folded into the prompt automatically.
func (s SteeringDocuments) externalDocuments() []string {
	var docs []string
	for _, root := range s.WorkspaceRoots {
		docs = append(docs, mdContents(filepath.Join(root, ".cursor", "rules"))...)
		if content, ok := readFile(filepath.Join(root, ".cursorrules")); ok {
			docs = append(docs, content)
		}
		docs = append(docs, mdContents(filepath.Join(root, ".cline"))...)
		if content, ok := readFile(filepath.Join(root, ".clinerules")); ok {
			docs = append(docs, content)
		}
		docs = append(docs, mdContents(filepath.Join(root, ".roo", "rules"))...)
		if content, ok := readFile(filepath.Join(root, ".roorules")); ok {
			docs = append(docs, content)
		}
		docs = append(docs, mdContents(filepath.Join(root, ".kiro", "steering-docs"))...)
	}
	return docs
}

func isBuiltinStem(stem string) bool {
	for _, b := range allBuiltins() {
		if b.fileStem() == stem {
			return true
		}
	}
	return false
}

func mdFilesIn(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths
}

func mdContents(dir string) []string {
	var docs []string
	for _, path := range mdFilesIn(dir) {
		if content, ok := readFile(path); ok {
			docs = append(docs, content)
		}
	}
	return docs
}

func readFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}
