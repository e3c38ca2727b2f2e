package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tycode-ai/tycode/internal/fuzzy"
	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/internal/vfs"
)

// SearchReplaceBlock is one {search, replace} pair from a modify_file call.
type SearchReplaceBlock struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
}

// ModifyFileTool implements modify_file(file_path, diff: [{search,
// replace}]): each block must match exactly one occurrence in the file as
// it stands after every earlier block in the same call has been applied;
// on a miss it returns a fuzzy "did you mean" correction instead of
// silently guessing.
//
// Grounded directly on tycode-core/src/file/modify/replace_in_file.rs's
// apply_replacements/search/MatchResult three-way split (Multiple/Exact/
// Guess), generalized from a Result<String, anyhow::Error> early-return
// into Go's (content, error) return convention.
type ModifyFileTool struct {
	Resolver *vfs.Resolver
}

func (t *ModifyFileTool) Name() string            { return "modify_file" }
func (t *ModifyFileTool) Category() tool.Category { return tool.CategoryExecution }
func (t *ModifyFileTool) Description() string {
	return "Apply one or more search/replace blocks to a file. Each search block must match exactly one location."
}
func (t *ModifyFileTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string"},
			"diff": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"search": {"type": "string"},
						"replace": {"type": "string"}
					},
					"required": ["search", "replace"]
				}
			}
		},
		"required": ["file_path", "diff"]
	}`)
}

type modifyFileArgs struct {
	FilePath string                `json:"file_path"`
	Diff     []SearchReplaceBlock  `json:"diff"`
}

func (t *ModifyFileTool) Process(ctx context.Context, req tool.Request) (tool.Handle, error) {
	var args modifyFileArgs
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid modify_file arguments: %w", err)
	}
	resolved, err := t.Resolver.Resolve(args.FilePath)
	if err != nil {
		return nil, err
	}
	original, err := os.ReadFile(resolved.RealPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", resolved.VirtualPath, err)
	}

	return modifyFileHandle{resolved: resolved, original: string(original), diff: args.Diff, toolUseID: req.ToolUseID}, nil
}

type modifyFileHandle struct {
	resolved  vfs.ResolvedPath
	original  string
	diff      []SearchReplaceBlock
	toolUseID string
}

func (h modifyFileHandle) PreviewEvent() tool.PreviewEvent {
	after, err := applyReplacements(h.original, h.diff)
	preview := tool.PreviewEvent{
		ToolUseID: h.toolUseID,
		ToolName:  "modify_file",
		Summary:   fmt.Sprintf("modify %s (%d block(s))", h.resolved.VirtualPath, len(h.diff)),
		Before:    h.original,
	}
	if err == nil {
		preview.After = after
	}
	return preview
}

func (h modifyFileHandle) Execute(ctx context.Context) (tool.Output, error) {
	after, err := applyReplacements(h.original, h.diff)
	if err != nil {
		return tool.ErrorResult(err.Error()), nil
	}
	if err := os.WriteFile(h.resolved.RealPath, []byte(after), 0o644); err != nil {
		return tool.ErrorResult(fmt.Sprintf("writing file: %v", err)), nil
	}

	added, removed := lineDelta(h.original, after)
	content, _ := json.Marshal(map[string]any{
		"success":      true,
		"lines_added":   added,
		"lines_removed": removed,
	})
	return tool.Result(string(content), false, tool.ContinuationContinue), nil
}

// applyReplacements runs every search/replace block against content in
// order, each seeing the previous block's result.
func applyReplacements(content string, blocks []SearchReplaceBlock) (string, error) {
	result := content
	for _, block := range blocks {
		matched, err := resolveSearch(result, block.Search)
		if err != nil {
			return "", err
		}

		if matched == block.Replace {
			return "", fmt.Errorf(
				"Search and replace contents are identical for the following pattern; no change would be made:\n\n%s",
				block.Replace,
			)
		}

		result = strings.Replace(result, matched, block.Replace, 1)
	}
	return result, nil
}

// resolveSearch finds exactly one occurrence of search in source, or
// returns a descriptive error: "more than once" when ambiguous, or a fuzzy
// "did you mean" correction when it does not appear at all.
func resolveSearch(source, search string) (string, error) {
	count := strings.Count(source, search)

	switch {
	case count > 1:
		return "", fmt.Errorf(
			"the following search pattern appears more than once in the file (found %d times); use more surrounding context to match exactly one occurrence:\n\n%s",
			count, search,
		)
	case count == 1:
		return search, nil
	}

	sourceLines := strings.Split(source, "\n")
	searchLines := strings.Split(search, "\n")

	best, ok := fuzzy.FindClosestMatch(sourceLines, searchLines)
	if !ok {
		return "", fmt.Errorf("exact match not found; re-read the file to see its actual content")
	}

	feedback := best.CorrectionFeedback()
	if feedback == "" {
		feedback = "found a perfect line-level match, but the exact string search failed; this may be whitespace/formatting drift — re-read the file to see its actual content"
	}
	return "", fmt.Errorf("exact match not found. %s", feedback)
}

func lineDelta(before, after string) (added, removed int) {
	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")
	if len(afterLines) > len(beforeLines) {
		added = len(afterLines) - len(beforeLines)
	} else {
		removed = len(beforeLines) - len(afterLines)
	}
	return added, removed
}
