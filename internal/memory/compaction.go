package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tycode-ai/tycode/internal/compaction"
)

// Compaction is an AI-generated summary of every memory entry through a
// given sequence number. The raw log is never truncated; a compaction is a
// compressed view layered on top of it. Grounded on
// tycode-core/src/modules/memory/compaction.rs's Compaction/CompactionStore.
type Compaction struct {
	ThroughSeq            uint64    `json:"through_seq"`
	Summary               string    `json:"summary"`
	CreatedAt             time.Time `json:"created_at"`
	MemoriesCount         int       `json:"memories_count"`
	PreviousCompactionSeq *uint64   `json:"previous_compaction_seq,omitempty"`
}

// CompactionStore manages compaction_<through_seq>.json files in a
// directory (the same directory that holds the memory log).
type CompactionStore struct {
	dir string
}

// NewCompactionStore opens a compaction store rooted at dir.
func NewCompactionStore(dir string) *CompactionStore {
	return &CompactionStore{dir: dir}
}

// FindLatest scans the directory for the highest through_seq and returns
// that compaction, or nil if none exists yet.
func (s *CompactionStore) FindLatest() (*Compaction, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading compaction directory: %w", err)
	}

	var highest uint64
	found := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if seq, ok := parseSeqSuffix(e.Name(), "compaction_", ".json"); ok {
			if !found || seq > highest {
				highest = seq
				found = true
			}
		}
	}
	if !found {
		return nil, nil
	}
	return s.Read(highest)
}

// Save writes a compaction file. This is a one-shot write: compaction
// files are never mutated after creation, only superseded by a later,
// higher-through_seq file, so a plain write (no temp+rename) is sufficient.
func (s *CompactionStore) Save(c Compaction) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating compaction directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding compaction: %w", err)
	}
	if err := os.WriteFile(s.path(c.ThroughSeq), data, 0o644); err != nil {
		return fmt.Errorf("writing compaction file: %w", err)
	}
	return nil
}

// Read loads a specific compaction by its through_seq.
func (s *CompactionStore) Read(throughSeq uint64) (*Compaction, error) {
	data, err := os.ReadFile(s.path(throughSeq))
	if err != nil {
		return nil, fmt.Errorf("reading compaction file: %w", err)
	}
	var c Compaction
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing compaction file: %w", err)
	}
	return &c, nil
}

func (s *CompactionStore) path(throughSeq uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("compaction_%d.json", throughSeq))
}

// Summarizer produces a new compaction summary from the previous summary
// (if any) and the memory entries accrued since it. Implemented by an
// agent-stack-driven sub-run of the memory summarizer agent in production;
// stubbed directly in tests.
type Summarizer interface {
	Summarize(ctx context.Context, previousSummary string, pending []Entry) (string, error)
}

// MemoriesSinceLastCompaction counts how many log entries have not yet been
// folded into a compaction.
func MemoriesSinceLastCompaction(log *Log, store *CompactionStore) (int, error) {
	latest, err := store.FindLatest()
	if err != nil {
		return 0, err
	}
	var throughSeq uint64
	if latest != nil {
		throughSeq = latest.ThroughSeq
	}
	all, err := log.ReadAll()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range all {
		if e.Seq > throughSeq {
			n++
		}
	}
	return n, nil
}

// RunCompaction summarizes every memory entry since the last compaction and
// persists the result. Returns nil, nil if there is nothing new to compact.
func RunCompaction(ctx context.Context, log *Log, store *CompactionStore, summarizer Summarizer) (*Compaction, error) {
	latest, err := store.FindLatest()
	if err != nil {
		return nil, err
	}
	var throughSeq uint64
	var previousSummary string
	if latest != nil {
		throughSeq = latest.ThroughSeq
		previousSummary = latest.Summary
	}

	all, err := log.ReadAll()
	if err != nil {
		return nil, err
	}
	var pending []Entry
	var maxSeq uint64
	for _, e := range all {
		if e.Seq > throughSeq {
			pending = append(pending, e)
			if e.Seq > maxSeq {
				maxSeq = e.Seq
			}
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	maxChunkTokens := compaction.DefaultMaxChunkTokens
	summary, err := compaction.SummarizeChunked(ctx, previousSummary, toCompactionEntries(pending), maxChunkTokens, &chunkSummarizerAdapter{summarizer: summarizer})
	if err != nil {
		return nil, fmt.Errorf("summarizing memories: %w", err)
	}

	compaction := Compaction{
		ThroughSeq:    maxSeq,
		Summary:       summary,
		CreatedAt:     time.Now().UTC(),
		MemoriesCount: len(pending),
	}
	if latest != nil {
		prev := latest.ThroughSeq
		compaction.PreviousCompactionSeq = &prev
	}

	if err := store.Save(compaction); err != nil {
		return nil, err
	}
	return &compaction, nil
}

// toCompactionEntries narrows Entry down to the shape internal/compaction
// needs for token estimation and chunk splitting.
func toCompactionEntries(entries []Entry) []compaction.Entry {
	out := make([]compaction.Entry, len(entries))
	for i, e := range entries {
		out[i] = compaction.Entry{Seq: e.Seq, Source: e.Source, Content: e.Content}
	}
	return out
}

// chunkSummarizerAdapter implements compaction.ChunkSummarizer over a
// Summarizer, reconstituting memory Entry values (CreatedAt is not needed
// for summarization, so it's left zero) from the narrower compaction.Entry
// chunks compaction.SummarizeChunked hands it.
type chunkSummarizerAdapter struct {
	summarizer Summarizer
}

func (a *chunkSummarizerAdapter) Summarize(ctx context.Context, previousSummary string, chunk []compaction.Entry) (string, error) {
	pending := make([]Entry, len(chunk))
	for i, e := range chunk {
		pending[i] = Entry{Seq: e.Seq, Source: e.Source, Content: e.Content}
	}
	return a.summarizer.Summarize(ctx, previousSummary, pending)
}

// FormatForSummary renders pending entries (and the previous summary, if
// any) into the prompt text handed to the summarizer agent.
func FormatForSummary(previousSummary string, pending []Entry) string {
	var b strings.Builder
	if previousSummary != "" {
		b.WriteString("# Previous Compaction Summary\n\n")
		b.WriteString(previousSummary)
		b.WriteString("\n\n---\n\n")
	}
	b.WriteString("# New Memories Since Last Compaction\n\n")
	for _, e := range pending {
		source := e.Source
		if source == "" {
			source = "global"
		}
		fmt.Fprintf(&b, "## Memory #%d (%s)\n%s\n\n", e.Seq, source, e.Content)
	}
	b.WriteString("\n---\n\nPlease consolidate the previous summary (if any) with the new memories into a single comprehensive summary.")
	return b.String()
}
