// Package review implements the /review [deep] slash command's sub-agent
// fan-out from spec §C.4 (supplemented from the original's review
// module): a standard pass feeds the whole unstaged diff to one reviewer
// sub-agent, while a deep pass splits the diff into hunks, reviews each
// concurrently, and consolidates the per-hunk findings into one report.
//
// Grounded on tycode-core/src/modules/review/command.rs and its sibling
// diff.rs (referenced via `super::diff` but not present in this
// retrieval; git-diff/hunk-parsing is reconstructed from the call shape
// command.rs exercises: `git_diff`, `git_diff_expanded`, `parse_hunks`
// returning items with `file_path`/`header`/`content`).
package review

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitDiff returns the unstaged diff for a workspace, equivalent to
// `git diff` run at the workspace root.
func GitDiff(ctx context.Context, workspaceRoot string) (string, error) {
	return runGitDiff(ctx, workspaceRoot, "-U3")
}

// GitDiffExpanded returns the unstaged diff with a wider context window,
// used by the deep review pass so each hunk carries enough surrounding
// code for a sub-agent to judge it without re-reading the file.
func GitDiffExpanded(ctx context.Context, workspaceRoot string, contextLines int) (string, error) {
	return runGitDiff(ctx, workspaceRoot, fmt.Sprintf("-U%d", contextLines))
}

func runGitDiff(ctx context.Context, workspaceRoot string, contextFlag string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", contextFlag)
	cmd.Dir = workspaceRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git diff: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// Hunk is one `@@ ... @@` section of a unified diff, scoped to the file
// it belongs to.
type Hunk struct {
	FilePath string
	Header   string
	Content  string
}

// ParseHunks splits a unified diff into its per-file, per-hunk pieces, so
// a deep review can fan them out to independent sub-agents. Each hunk's
// Content carries its `@@ ... @@` header line plus every following
// context/added/removed line up to the next hunk or file boundary.
func ParseHunks(diff string) []Hunk {
	var hunks []Hunk
	var currentFile string
	var currentHeader string
	var currentLines []string

	flush := func() {
		if currentHeader == "" {
			return
		}
		hunks = append(hunks, Hunk{
			FilePath: currentFile,
			Header:   currentHeader,
			Content:  strings.Join(currentLines, "\n"),
		})
		currentHeader = ""
		currentLines = nil
	}

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			currentFile = parseDiffGitFile(line)
		case strings.HasPrefix(line, "@@"):
			flush()
			currentHeader = line
			currentLines = []string{line}
		case currentHeader != "":
			currentLines = append(currentLines, line)
		}
	}
	flush()

	return hunks
}

// parseDiffGitFile extracts the "b/" path from a `diff --git a/x b/x`
// line, falling back to the raw line if it doesn't match the expected
// shape.
func parseDiffGitFile(line string) string {
	fields := strings.Fields(line)
	for i := len(fields) - 1; i >= 0; i-- {
		if strings.HasPrefix(fields[i], "b/") {
			return strings.TrimPrefix(fields[i], "b/")
		}
	}
	return line
}
