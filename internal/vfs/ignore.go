package vfs

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// IgnoreRules evaluates gitignore-style patterns for one workspace. Patterns
// are loaded from the workspace's `.gitignore` plus a small built-in default
// set, mirroring the teacher's config-reload pattern: an fsnotify watcher
// keeps the compiled rule set fresh without a restart.
type IgnoreRules struct {
	mu       sync.RWMutex
	patterns []string
	root     string
	watcher  *fsnotify.Watcher
}

var defaultIgnorePatterns = []string{
	".git/", "node_modules/", "target/", "dist/", "build/", ".tycode/",
}

// NewIgnoreRules loads `<root>/.gitignore` (if present) plus the built-in
// defaults, and starts watching it for changes.
func NewIgnoreRules(root string) (*IgnoreRules, error) {
	ir := &IgnoreRules{root: root}
	ir.reload()

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if watchErr := watcher.Add(root); watchErr == nil {
			ir.watcher = watcher
			go ir.watchLoop()
		} else {
			_ = watcher.Close()
		}
	}
	return ir, nil
}

func (ir *IgnoreRules) watchLoop() {
	for {
		select {
		case event, ok := <-ir.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == ".gitignore" {
				ir.reload()
			}
		case _, ok := <-ir.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (ir *IgnoreRules) reload() {
	patterns := append([]string{}, defaultIgnorePatterns...)

	f, err := os.Open(filepath.Join(ir.root, ".gitignore"))
	if err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, line)
		}
	}

	ir.mu.Lock()
	ir.patterns = patterns
	ir.mu.Unlock()
}

// Close stops the underlying filesystem watcher, if any.
func (ir *IgnoreRules) Close() error {
	if ir.watcher != nil {
		return ir.watcher.Close()
	}
	return nil
}

// Ignored reports whether a workspace-relative path (slash-separated)
// matches any loaded ignore pattern.
func (ir *IgnoreRules) Ignored(relPath string) bool {
	ir.mu.RLock()
	patterns := ir.patterns
	ir.mu.RUnlock()

	relPath = strings.TrimPrefix(relPath, "/")
	for _, pattern := range patterns {
		if matchesIgnorePattern(pattern, relPath) {
			return true
		}
	}
	return false
}

// matchesIgnorePattern implements a practical (non-exhaustive) subset of
// gitignore semantics: directory patterns (trailing slash) match any path
// component, glob patterns use filepath.Match per path segment, and plain
// names match anywhere in the path.
func matchesIgnorePattern(pattern, relPath string) bool {
	if pattern == "" {
		return false
	}
	isDir := strings.HasSuffix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	segments := strings.Split(relPath, "/")
	for i, seg := range segments {
		if ok, _ := filepath.Match(pattern, seg); ok {
			if isDir {
				return i < len(segments)-1 || i == len(segments)-1
			}
			return true
		}
	}
	if !isDir && strings.Contains(pattern, "/") {
		ok, _ := filepath.Match(pattern, relPath)
		return ok
	}
	return false
}
