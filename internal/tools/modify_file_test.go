package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/internal/vfs"
)

func newModifyFileTool(t *testing.T, initial string) (*ModifyFileTool, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	resolver, err := vfs.NewResolver([]string{dir})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return &ModifyFileTool{Resolver: resolver}, path
}

func runModifyFile(t *testing.T, tl *ModifyFileTool, filePath string, blocks []SearchReplaceBlock) (tool.Output, error) {
	t.Helper()
	args, err := json.Marshal(modifyFileArgs{FilePath: filePath, Diff: blocks})
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	handle, err := tl.Process(context.Background(), tool.Request{ToolUseID: "t1", ToolName: "modify_file", Arguments: args})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return handle.Execute(context.Background())
}

func TestModifyFile_ExactSingleMatch(t *testing.T) {
	tl, path := newModifyFileTool(t, "func main() {\n\tfmt.Println(\"hi\")\n}\n")

	out, err := runModifyFile(t, tl, path, []SearchReplaceBlock{
		{Search: "fmt.Println(\"hi\")", Replace: "fmt.Println(\"bye\")"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.IsError {
		t.Fatalf("expected success, got error result: %s", out.Content)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if !strings.Contains(string(data), "fmt.Println(\"bye\")") {
		t.Fatalf("replacement not applied, got: %s", data)
	}
}

func TestModifyFile_MultipleMatchesRejected(t *testing.T) {
	tl, path := newModifyFileTool(t, "x := 1\nx := 1\n")

	out, err := runModifyFile(t, tl, path, []SearchReplaceBlock{
		{Search: "x := 1", Replace: "x := 2"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.IsError {
		t.Fatalf("expected error result for ambiguous match")
	}
	if !strings.Contains(out.Content, "more than once") {
		t.Fatalf("expected ambiguity message, got: %s", out.Content)
	}
}

func TestModifyFile_ZeroMatchesReturnsFuzzySuggestion(t *testing.T) {
	tl, path := newModifyFileTool(t, "func main() {\n\tfmt.Println(\"hi\")\n}\n")

	out, err := runModifyFile(t, tl, path, []SearchReplaceBlock{
		{Search: "fmt.Println(\"hai\")", Replace: "fmt.Println(\"bye\")"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.IsError {
		t.Fatalf("expected error result for missing match")
	}
	if !strings.Contains(out.Content, "similarity") {
		t.Fatalf("expected fuzzy similarity feedback, got: %s", out.Content)
	}
}

func TestModifyFile_IdenticalSearchReplaceRejected(t *testing.T) {
	tl, path := newModifyFileTool(t, "a := 1\n")

	out, err := runModifyFile(t, tl, path, []SearchReplaceBlock{
		{Search: "a := 1", Replace: "a := 1"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.IsError {
		t.Fatalf("expected error result for identical search/replace")
	}
	if !strings.Contains(out.Content, "Search and replace contents are identical") {
		t.Fatalf("expected identical-content message, got: %s", out.Content)
	}
}

func TestModifyFile_MultiBlockSequentialApplication(t *testing.T) {
	tl, path := newModifyFileTool(t, "one\ntwo\nthree\n")

	out, err := runModifyFile(t, tl, path, []SearchReplaceBlock{
		{Search: "one", Replace: "uno"},
		{Search: "two", Replace: "dos"},
		{Search: "three", Replace: "tres"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.IsError {
		t.Fatalf("expected success, got error result: %s", out.Content)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if string(data) != "uno\ndos\ntres\n" {
		t.Fatalf("unexpected result: %q", data)
	}
}
