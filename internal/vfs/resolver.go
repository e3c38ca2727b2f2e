// Package vfs implements the virtual filesystem resolver, gitignore-style
// ignore rules, and the tracked-files set from spec §4.3. Grounded on
// tycode-core/src/file/{resolver,access}.rs from the original
// implementation, generalized into idiomatic Go with an fsnotify-backed
// live-reload watcher for .gitignore changes (teacher pattern from
// internal/config's fsnotify use).
package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvedPath is a virtual path resolved against a known workspace root.
type ResolvedPath struct {
	Workspace    string
	VirtualPath  string
	RealPath     string
}

// Resolver maps between the `/<workspace>/<relative>` virtual view and real
// on-disk paths across one or more workspace roots.
type Resolver struct {
	workspaces map[string]string // name -> canonical root
}

// NewResolver canonicalizes each workspace root and keys it by its final
// path component. Non-existent roots are skipped (mirrors VSCode
// multi-workspace deletion tolerance in the original).
func NewResolver(workspaceRoots []string) (*Resolver, error) {
	workspaces := make(map[string]string)
	for _, root := range workspaceRoots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving workspace root %q: %w", root, err)
		}
		real, err := filepath.EvalSymlinks(abs)
		if err != nil {
			real = abs
		}
		name := filepath.Base(real)
		if name == "" || name == "." || name == string(filepath.Separator) {
			return nil, fmt.Errorf("cannot derive workspace name for %q", real)
		}
		workspaces[name] = real
	}
	return &Resolver{workspaces: workspaces}, nil
}

// Roots returns the known workspace names.
func (r *Resolver) Roots() []string {
	names := make([]string, 0, len(r.workspaces))
	for name := range r.workspaces {
		names = append(names, name)
	}
	return names
}

// Root returns the real root path for a workspace name, if known.
func (r *Resolver) Root(workspace string) (string, bool) {
	root, ok := r.workspaces[workspace]
	return root, ok
}

// Resolve accepts any of: `name`, `/name`, `./name`, `name/x`, `/name/x`,
// `./name/x`, a real absolute path under a known root, or (with exactly one
// workspace) a bare relative path.
func (r *Resolver) Resolve(pathStr string) (ResolvedPath, error) {
	cleaned := filepath.ToSlash(pathStr)
	root, relative := splitRoot(cleaned)

	if wsRoot, ok := r.workspaces[root]; ok {
		virtual := "/" + filepath.ToSlash(filepath.Join(root, relative))
		real := filepath.Join(wsRoot, relative)
		return ResolvedPath{Workspace: root, VirtualPath: virtual, RealPath: real}, nil
	}

	// Tolerate real absolute paths under a known workspace root.
	if filepath.IsAbs(pathStr) {
		for name, wsRoot := range r.workspaces {
			rel, err := filepath.Rel(wsRoot, pathStr)
			if err == nil && !strings.HasPrefix(rel, "..") {
				virtual := "/" + filepath.ToSlash(filepath.Join(name, rel))
				return ResolvedPath{Workspace: name, VirtualPath: virtual, RealPath: pathStr}, nil
			}
		}
	}

	if len(r.workspaces) == 1 {
		var name, wsRoot string
		for n, w := range r.workspaces {
			name, wsRoot = n, w
		}
		trimmed := strings.TrimPrefix(strings.TrimPrefix(cleaned, "/"), "./")
		virtual := "/" + filepath.ToSlash(filepath.Join(name, trimmed))
		real := filepath.Join(wsRoot, trimmed)
		return ResolvedPath{Workspace: name, VirtualPath: virtual, RealPath: real}, nil
	}

	return ResolvedPath{}, fmt.Errorf("no root directory: %s (known: %v). Be sure to use absolute paths!", root, r.Roots())
}

// Canonicalize converts a real on-disk path back into its virtual form.
func (r *Resolver) Canonicalize(realPath string) (ResolvedPath, error) {
	abs, err := filepath.Abs(realPath)
	if err != nil {
		return ResolvedPath{}, err
	}
	for name, wsRoot := range r.workspaces {
		rel, err := filepath.Rel(wsRoot, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		virtual := "/" + filepath.ToSlash(filepath.Join(name, rel))
		return ResolvedPath{Workspace: name, VirtualPath: virtual, RealPath: abs}, nil
	}
	return ResolvedPath{}, fmt.Errorf("no workspace found containing %s", realPath)
}

// splitRoot returns the first normal path component (the would-be
// workspace name) and the remainder of the path.
func splitRoot(path string) (root, remaining string) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(path, "./"), "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
