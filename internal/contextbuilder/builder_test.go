package contextbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tycode-ai/tycode/internal/vfs"
)

func TestBuild_OmitsEmptySections(t *testing.T) {
	r := Build(Inputs{})
	assert.Equal(t, "", r.Text)
	assert.Equal(t, SectionByteCounts{}, r.Bytes)
}

func TestBuild_MemoriesAndCompactionSummary(t *testing.T) {
	r := Build(Inputs{
		MemoryEnabled:     true,
		CompactionSummary: "earlier we refactored the parser",
		RecentMemories:    []Memory{{Content: "fixed bug in resolver"}},
	})
	assert.Contains(t, r.Text, "Memory Summary:\nearlier we refactored the parser")
	assert.Contains(t, r.Text, "Recent Memories:\n- fixed bug in resolver")
	assert.Greater(t, r.Bytes.Memories, 0)
}

func TestBuild_TaskList(t *testing.T) {
	r := Build(Inputs{
		TaskListTitle: "Ship feature",
		TaskRows: []TaskRow{
			{ID: 1, Description: "write parser", Status: "done"},
			{ID: 2, Description: "write tests", Status: "pending"},
		},
	})
	assert.Contains(t, r.Text, "Task List: Ship feature")
	assert.Contains(t, r.Text, "- [done] Task 1: write parser")
	assert.Contains(t, r.Text, "- [pending] Task 2: write tests")
}

func TestBuild_ProjectTreeRendersTrieSortedAndNested(t *testing.T) {
	r := Build(Inputs{
		AutoContextEnabled: true,
		AutoContextBytes:   10_000,
		ProjectFiles:       []string{"src/main.go", "src/util.go", "README.md"},
	})
	idxReadme := indexOf(r.Text, "README.md")
	idxSrc := indexOf(r.Text, "src/")
	idxMain := indexOf(r.Text, "main.go")
	idxUtil := indexOf(r.Text, "util.go")
	if idxReadme < 0 || idxSrc < 0 || idxMain < 0 || idxUtil < 0 {
		t.Fatalf("missing expected tree entries in %q", r.Text)
	}
	assert.Less(t, idxReadme, idxSrc, "README.md sorts before src/ alphabetically")
	assert.Less(t, idxMain, idxUtil, "main.go sorts before util.go")
}

func TestBuild_ProjectTreeOmittedWhenOverBudget(t *testing.T) {
	r := Build(Inputs{
		AutoContextEnabled: true,
		AutoContextBytes:   1,
		ProjectFiles:       []string{"src/main.go"},
	})
	assert.Equal(t, 0, r.Bytes.ProjectTree)
}

func TestBuild_TrackedFilesSortedByVirtualPath(t *testing.T) {
	r := Build(Inputs{
		TrackedFiles: []vfs.TrackedFileContent{
			{VirtualPath: "/proj/z.go", Content: "package z"},
			{VirtualPath: "/proj/a.go", Content: "package a"},
		},
	})
	idxA := indexOf(r.Text, "/proj/a.go")
	idxZ := indexOf(r.Text, "/proj/z.go")
	assert.Less(t, idxA, idxZ)
	assert.Contains(t, r.Text, "=== /proj/a.go ===\npackage a")
}

func TestBuild_LastCommandOutput(t *testing.T) {
	r := Build(Inputs{
		LastCommand: &LastCommandOutput{
			Command:  "go test ./...",
			ExitCode: 1,
			Stdout:   "FAIL",
			Stderr:   "panic",
		},
	})
	assert.Contains(t, r.Text, "Command: go test ./...")
	assert.Contains(t, r.Text, "Exit Code: 1")
	assert.Contains(t, r.Text, "FAIL")
	assert.Contains(t, r.Text, "panic")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
