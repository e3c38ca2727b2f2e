package vfs

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// TrackedFiles owns the set of virtual paths the user/agent has declared
// "in context" (spec §3, §4.3). Replacement is atomic; reads are
// read-through against the current on-disk content.
type TrackedFiles struct {
	mu       sync.RWMutex
	paths    map[string]bool
	resolver *Resolver
}

// NewTrackedFiles creates an empty tracked-files set bound to a resolver.
func NewTrackedFiles(resolver *Resolver) *TrackedFiles {
	return &TrackedFiles{paths: make(map[string]bool), resolver: resolver}
}

// Set atomically replaces the tracked set. Every path must resolve and
// exist on disk; on any miss, the whole call fails with a precise list of
// missing paths and the set is left unchanged.
func (t *TrackedFiles) Set(paths []string) error {
	resolved := make([]ResolvedPath, 0, len(paths))
	var missing []string

	for _, p := range paths {
		rp, err := t.resolver.Resolve(p)
		if err != nil {
			missing = append(missing, p)
			continue
		}
		if _, err := os.Stat(rp.RealPath); err != nil {
			missing = append(missing, p)
			continue
		}
		resolved = append(resolved, rp)
	}

	if len(missing) > 0 {
		return fmt.Errorf("file(s) not found: %v", missing)
	}

	next := make(map[string]bool, len(resolved))
	for _, rp := range resolved {
		next[rp.VirtualPath] = true
	}

	t.mu.Lock()
	t.paths = next
	t.mu.Unlock()
	return nil
}

// Clear empties the tracked set (an empty Set([]) call is equivalent).
func (t *TrackedFiles) Clear() {
	t.mu.Lock()
	t.paths = make(map[string]bool)
	t.mu.Unlock()
}

// List returns the currently tracked virtual paths, sorted.
func (t *TrackedFiles) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.paths))
	for p := range t.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// TrackedFileContent is a rendered tracked file: its virtual path and
// current on-disk contents.
type TrackedFileContent struct {
	VirtualPath string
	Content     string
}

// ReadAll reads the current on-disk contents of every tracked file. A file
// that fails to read is logged by the caller and omitted, per spec §4.3.
func (t *TrackedFiles) ReadAll() ([]TrackedFileContent, []error) {
	paths := t.List()
	out := make([]TrackedFileContent, 0, len(paths))
	var errs []error

	for _, vp := range paths {
		rp, err := t.resolver.Resolve(vp)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolving tracked file %s: %w", vp, err))
			continue
		}
		data, err := os.ReadFile(rp.RealPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("reading tracked file %s: %w", vp, err))
			continue
		}
		out = append(out, TrackedFileContent{VirtualPath: vp, Content: string(data)})
	}
	return out, errs
}
