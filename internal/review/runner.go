package review

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

const diffReviewPrompt = "You are reviewing unstaged git changes. The git diff is provided below. " +
	"Use set_tracked_files to examine the full contents of changed files and run_build_test to verify " +
	"compilation. After thorough investigation, call complete_task with your findings: approve or reject " +
	"with specific recommendations. Be systematic — check correctness, style, completeness, and potential bugs."

const hunkReviewPrompt = "You are reviewing a single diff hunk. Analyze the change for correctness, " +
	"potential bugs, style issues, and completeness. Call complete_task with your findings: note any " +
	"issues found or confirm the change looks correct."

const consolidationPrompt = "You received individual reviews for each diff hunk. Synthesize these into a " +
	"unified code review report. Provide an overall approve/reject decision with a summary of all findings. " +
	"Call complete_task with the consolidated report."

// SubAgentRunner runs a fresh reviewer sub-agent to completion against the
// given task text and returns its final report. The chat actor provides
// the concrete implementation (spawning a "reviewer" agent via
// internal/agentstack and driving it through internal/toolpipeline); this
// package only depends on the narrow seam so it has no dependency on the
// provider/actor packages.
type SubAgentRunner interface {
	Run(ctx context.Context, task string) (string, error)
}

// Progress receives human-readable milestones during a deep review's
// concurrent hunk fan-out, so the actor can surface them to the user the
// way the original streams "Review progress: N/total" system messages.
type Progress func(message string)

// Runner implements modules.ReviewRunner against a SubAgentRunner.
//
// Grounded on tycode-core/src/modules/review/command.rs's
// standard_review/deep_review split: a standard pass is one sub-agent
// call over the whole diff; a deep pass fans the diff's hunks out to one
// sub-agent each (concurrently, via errgroup in place of the original's
// FuturesUnordered), then a final sub-agent call consolidates the
// per-hunk reports into one.
type Runner struct {
	WorkspaceRoot string
	Agent         SubAgentRunner
	OnProgress    Progress
}

// Review runs the standard or deep review pass depending on deep, and
// returns the report text ready to hand back as a "=== Code Review ==="
// system message.
func (r *Runner) Review(ctx context.Context, deep bool) (string, error) {
	if deep {
		return r.deepReview(ctx)
	}
	return r.standardReview(ctx)
}

func (r *Runner) standardReview(ctx context.Context) (string, error) {
	diff, err := GitDiff(ctx, r.WorkspaceRoot)
	if err != nil {
		return "", fmt.Errorf("failed to get git diff: %w", err)
	}
	if strings.TrimSpace(diff) == "" {
		return "No unstaged changes found.", nil
	}

	r.progress("Reviewing unstaged changes...")
	result, err := r.Agent.Run(ctx, diffReviewPrompt+"\n\n"+diff)
	if err != nil {
		return "", fmt.Errorf("review failed: %w", err)
	}
	return "=== Code Review ===\n\n" + result, nil
}

func (r *Runner) deepReview(ctx context.Context) (string, error) {
	diff, err := GitDiffExpanded(ctx, r.WorkspaceRoot, 15)
	if err != nil {
		return "", fmt.Errorf("failed to get git diff: %w", err)
	}
	if strings.TrimSpace(diff) == "" {
		return "No unstaged changes found.", nil
	}

	hunks := ParseHunks(diff)
	if len(hunks) == 0 {
		return "No hunks found in diff.", nil
	}

	total := len(hunks)
	r.progress(fmt.Sprintf("Launched %d review sub-agents", total))

	results := make([]string, total)
	completed := 0
	milestoneStep := total / 5
	if milestoneStep < 1 {
		milestoneStep = 1
	}
	nextMilestone := milestoneStep

	g, gCtx := errgroup.WithContext(ctx)
	resultsCh := make(chan int, total)
	for i, hunk := range hunks {
		i, hunk := i, hunk
		label := fmt.Sprintf("[%d/%d] %s: %s", i+1, total, hunk.FilePath, hunk.Header)
		g.Go(func() error {
			result, err := r.Agent.Run(gCtx, hunkReviewPrompt+"\n\n"+hunk.Content)
			if err != nil {
				results[i] = fmt.Sprintf("%s\nReview failed: %v", label, err)
			} else {
				results[i] = fmt.Sprintf("%s\n%s", label, result)
			}
			resultsCh <- i
			return nil
		})
	}

	go func() {
		g.Wait()
		close(resultsCh)
	}()

	for range resultsCh {
		completed++
		if completed >= nextMilestone && completed < total {
			pct := (completed * 100) / total
			r.progress(fmt.Sprintf("Review progress: %d/%d (%d%%) complete", completed, total, pct))
			nextMilestone += milestoneStep
		}
	}

	r.progress("Aggregating reviews...")
	consolidated, err := r.Agent.Run(ctx, consolidationPrompt+"\n\n"+strings.Join(results, "\n\n---\n\n"))
	if err != nil {
		return "", fmt.Errorf("review failed: %w", err)
	}
	return "=== Code Review ===\n\n" + consolidated, nil
}

func (r *Runner) progress(message string) {
	if r.OnProgress != nil {
		r.OnProgress(message)
	}
}
