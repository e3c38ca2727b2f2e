package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWorkspace(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(root, 0o755))
	return root
}

func TestResolver_SingleWorkspaceBarePath(t *testing.T) {
	root := mustWorkspace(t, "myproj")
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib.rs"), []byte("x"), 0o644))

	r, err := NewResolver([]string{root})
	require.NoError(t, err)

	rp, err := r.Resolve("src/lib.rs")
	require.NoError(t, err)
	assert.Equal(t, "myproj", rp.Workspace)
	assert.Equal(t, "/myproj/src/lib.rs", rp.VirtualPath)
	assert.Equal(t, filepath.Join(root, "src/lib.rs"), rp.RealPath)
}

func TestResolver_ExplicitWorkspacePrefix(t *testing.T) {
	root := mustWorkspace(t, "myproj")
	r, err := NewResolver([]string{root})
	require.NoError(t, err)

	for _, p := range []string{"myproj/src/lib.rs", "/myproj/src/lib.rs", "./myproj/src/lib.rs"} {
		rp, err := r.Resolve(p)
		require.NoError(t, err, p)
		assert.Equal(t, "/myproj/src/lib.rs", rp.VirtualPath, p)
	}
}

func TestResolver_RealAbsolutePathUnderRoot(t *testing.T) {
	root := mustWorkspace(t, "myproj")
	r, err := NewResolver([]string{root})
	require.NoError(t, err)

	real := filepath.Join(root, "a", "b.txt")
	rp, err := r.Resolve(real)
	require.NoError(t, err)
	assert.Equal(t, "/myproj/a/b.txt", rp.VirtualPath)
}

func TestResolver_MultipleWorkspacesRequireExplicitPrefix(t *testing.T) {
	root1 := mustWorkspace(t, "one")
	root2 := mustWorkspace(t, "two")
	r, err := NewResolver([]string{root1, root2})
	require.NoError(t, err)

	_, err = r.Resolve("src/lib.rs")
	assert.Error(t, err)

	rp, err := r.Resolve("/two/src/lib.rs")
	require.NoError(t, err)
	assert.Equal(t, "two", rp.Workspace)
}

func TestResolver_Canonicalize(t *testing.T) {
	root := mustWorkspace(t, "myproj")
	r, err := NewResolver([]string{root})
	require.NoError(t, err)

	real := filepath.Join(root, "sub", "file.go")
	rp, err := r.Canonicalize(real)
	require.NoError(t, err)
	assert.Equal(t, "/myproj/sub/file.go", rp.VirtualPath)
}
