package walk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCollectFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.cs"), "class A {}")
	writeFile(t, filepath.Join(dir, "b.txt"), "ignored")

	entries, err := Collect(dir, Options{Extensions: []string{"cs"}})
	require.NoError(t, err)

	var relPaths []string
	for _, e := range entries {
		if !e.IsDir {
			relPaths = append(relPaths, e.RelPath)
		}
	}
	require.Equal(t, []string{"a.cs"}, relPaths)
}

func TestCollectSkipsHiddenByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/main")
	writeFile(t, filepath.Join(dir, "visible.cs"), "class A {}")

	entries, err := Collect(dir, Options{Extensions: []string{"cs"}})
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.RelPath, ".git")
	}
}

func TestCollectRespectsExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "vendor", "lib.cs"), "class V {}")
	writeFile(t, filepath.Join(dir, "src", "main.cs"), "class M {}")

	entries, err := Collect(dir, Options{Extensions: []string{"cs"}, ExcludeGlobs: []string{"vendor/**"}})
	require.NoError(t, err)

	var relPaths []string
	for _, e := range entries {
		if !e.IsDir {
			relPaths = append(relPaths, e.RelPath)
		}
	}
	require.Equal(t, []string{filepath.ToSlash(filepath.Join("src", "main.cs"))}, relPaths)
}

func TestCollectIsSortedByRelPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "z.cs"), "")
	writeFile(t, filepath.Join(dir, "a.cs"), "")

	entries, err := Collect(dir, Options{Extensions: []string{"cs"}})
	require.NoError(t, err)
	require.True(t, entries[0].RelPath < entries[1].RelPath)
}

func TestWorkersDefaultsToNumCPU(t *testing.T) {
	require.Greater(t, Workers(0), 0)
	require.Equal(t, 3, Workers(3))
}
