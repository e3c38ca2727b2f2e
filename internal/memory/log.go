// Package memory implements the append-only memory log and its AI-generated
// compaction summaries (spec §4.9). The raw log is never truncated or
// rewritten in place; compactions are separate files layered on top of it.
//
// Grounded on tycode-core/src/modules/memory/{background,compaction,command}.rs
// for the on-disk scheme and fire-and-forget background task shape, and on
// the teacher's atomic-write/fsync discipline used elsewhere in its config
// and session stores.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Entry is one append-only memory record.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Log is an append-only, fsync-on-write memory store backed by a single
// JSON-lines file. Appends are atomic: each write goes to a temp file in the
// same directory and is renamed into place, so a crash mid-write never
// corrupts previously committed entries.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog opens (without yet creating) the memory log at path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the log's file path.
func (l *Log) Path() string {
	return l.path
}

// Append adds a new entry with the next monotonic sequence number and
// fsyncs it to disk before returning.
func (l *Log) Append(content, source string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.readAllLocked()
	if err != nil {
		return Entry{}, err
	}

	var maxSeq uint64
	for _, e := range existing {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}

	entry := Entry{Seq: maxSeq + 1, Content: content, Source: source, CreatedAt: time.Now().UTC()}
	existing = append(existing, entry)

	if err := l.writeAllLocked(existing); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ReadAll returns every entry in the log in sequence order.
func (l *Log) ReadAll() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAllLocked()
}

func (l *Log) readAllLocked() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading memory log: %w", err)
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("parsing memory log line: %w", err)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, nil
}

// writeAllLocked rewrites the whole log via temp-file-then-rename, fsyncing
// both the file and its containing directory so the rename itself survives
// a crash.
func (l *Log) writeAllLocked(entries []Entry) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating memory directory: %w", err)
	}

	var b strings.Builder
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding memory entry: %w", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(dir, ".memory-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp memory file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp memory file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsyncing temp memory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp memory file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("renaming memory file into place: %w", err)
	}

	if dirHandle, err := os.Open(dir); err == nil {
		dirHandle.Sync()
		dirHandle.Close()
	}
	return nil
}

// parseSeqSuffix extracts the numeric sequence from a "<prefix><seq><suffix>"
// filename, e.g. parseSeqSuffix("compaction_42.json", "compaction_", ".json").
func parseSeqSuffix(name, prefix, suffix string) (uint64, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	digits := name[len(prefix) : len(name)-len(suffix)]
	if digits == "" {
		return 0, false
	}
	seq, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
