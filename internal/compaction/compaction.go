// Package compaction splits an oversized batch of pending memory entries
// into token-budgeted chunks and merges their individual summaries into
// one, so a background compaction run never itself blows through the
// summarizer sub-agent's own context window just from the size of what
// it's asked to summarize.
//
// Grounded on the teacher's internal/compaction/compaction.go (character-
// ratio token estimation, ChunkMessagesByMaxTokens, chunk-then-merge
// summarization) — adapted from the teacher's generic conversation
// Message to the memory log's Entry shape, and trimmed to the one call
// path internal/memory/compaction.go actually needs (no adaptive chunk
// ratio, no multi-part parallel staging, no history pruning — those
// concerns belong to prunedConversation in internal/chatactor, not here).
package compaction

import (
	"context"
	"fmt"
)

const (
	// charsPerToken is the approximate character-to-token ratio used for
	// estimation when no real tokenizer is wired in.
	charsPerToken = 4

	// DefaultMaxChunkTokens bounds a single summarization call's input.
	// Matches the teacher's SummarizationConfig.MaxChunkTokens default.
	DefaultMaxChunkTokens = 20000
)

// Entry is the minimal shape compaction needs from a memory log entry.
// Kept independent of internal/memory's Entry type so this package has no
// import back on memory (memory imports this one, not the reverse).
type Entry struct {
	Seq     uint64
	Source  string
	Content string
}

// EstimateTokens estimates a string's token count with a 4-chars-per-token
// heuristic — the same approximation the teacher's EstimateTokens uses in
// the absence of a real tokenizer.
func EstimateTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// EstimateEntriesTokens sums the estimated token count across entries.
func EstimateEntriesTokens(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += EstimateTokens(e.Content)
	}
	return total
}

// ChunkEntriesByMaxTokens splits entries into chunks where each chunk's
// estimated token total does not exceed maxTokens. A single entry larger
// than maxTokens gets its own chunk rather than being dropped or split
// mid-content. Grounded on the teacher's ChunkMessagesByMaxTokens.
func ChunkEntriesByMaxTokens(entries []Entry, maxTokens int) [][]Entry {
	if len(entries) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		return [][]Entry{entries}
	}

	var result [][]Entry
	var current []Entry
	currentTokens := 0

	for _, e := range entries {
		tokens := EstimateTokens(e.Content)

		if tokens > maxTokens {
			if len(current) > 0 {
				result = append(result, current)
				current = nil
				currentTokens = 0
			}
			result = append(result, []Entry{e})
			continue
		}

		if currentTokens+tokens > maxTokens && len(current) > 0 {
			result = append(result, current)
			current = nil
			currentTokens = 0
		}

		current = append(current, e)
		currentTokens += tokens
	}

	if len(current) > 0 {
		result = append(result, current)
	}

	return result
}

// ChunkSummarizer produces a summary of one chunk of entries, optionally
// folding in a previous summary. Implemented by an adapter over
// memory.Summarizer in production.
type ChunkSummarizer interface {
	Summarize(ctx context.Context, previousSummary string, chunk []Entry) (string, error)
}

// SummarizeChunked summarizes pending against maxChunkTokens: if it all
// fits in one chunk, it's summarized directly against previousSummary.
// Otherwise each chunk is summarized independently (without
// previousSummary, which is folded in only once, during the merge pass)
// and the chunk summaries are merged into a single final summary alongside
// previousSummary.
func SummarizeChunked(ctx context.Context, previousSummary string, pending []Entry, maxChunkTokens int, summarizer ChunkSummarizer) (string, error) {
	if len(pending) == 0 {
		return previousSummary, nil
	}
	if maxChunkTokens <= 0 {
		maxChunkTokens = DefaultMaxChunkTokens
	}

	chunks := ChunkEntriesByMaxTokens(pending, maxChunkTokens)
	if len(chunks) <= 1 {
		return summarizer.Summarize(ctx, previousSummary, pending)
	}

	chunkSummaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		summary, err := summarizer.Summarize(ctx, "", chunk)
		if err != nil {
			return "", fmt.Errorf("summarizing chunk %d/%d: %w", i+1, len(chunks), err)
		}
		chunkSummaries = append(chunkSummaries, summary)
	}

	return mergeSummaries(ctx, previousSummary, chunkSummaries, summarizer)
}

// mergeSummaries folds the previous summary and every chunk summary into
// one final pass, presented to the summarizer as synthetic entries so the
// same ChunkSummarizer implementation handles both the per-chunk and the
// merge call.
func mergeSummaries(ctx context.Context, previousSummary string, chunkSummaries []string, summarizer ChunkSummarizer) (string, error) {
	merged := make([]Entry, len(chunkSummaries))
	for i, s := range chunkSummaries {
		merged[i] = Entry{Source: fmt.Sprintf("chunk %d/%d", i+1, len(chunkSummaries)), Content: s}
	}
	return summarizer.Summarize(ctx, previousSummary, merged)
}
