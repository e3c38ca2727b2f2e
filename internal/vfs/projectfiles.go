package vfs

import (
	"io/fs"
	"path/filepath"
	"sort"
)

// ListProjectFiles walks every known workspace root and returns the
// `<workspace>/<relative>` virtual path of every file not excluded by
// ignore, sorted for deterministic rendering. Used to populate the
// project-tree section of the assembled context (spec §4.4).
func ListProjectFiles(resolver *Resolver, ignore *IgnoreRules) ([]string, error) {
	var paths []string
	for _, workspace := range resolver.Roots() {
		root, ok := resolver.Root(workspace)
		if !ok {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if ignore != nil {
				checkPath := rel
				if d.IsDir() {
					checkPath += "/"
				}
				if ignore.Ignored(checkPath) {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
			}
			if d.IsDir() {
				return nil
			}
			paths = append(paths, workspace+"/"+rel)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(paths)
	return paths, nil
}
