package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codeindex/internal/config"
	"github.com/standardbeagle/codeindex/internal/contentindex"
	"github.com/standardbeagle/codeindex/internal/defindex"
)

func writeFixture(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func newTestEngine(t *testing.T, root string) *Engine {
	t.Helper()
	cfg := config.Defaults()
	cfg.Root = root
	cfg.Extensions = []string{"cs"}
	return New(cfg, nil)
}

func TestReindexBuildsAllThreeIndexes(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "Controller.cs", "public class Controller {\n    public void HandleRequest() {}\n}\n")
	writeFixture(t, dir, "Service.cs", "public class Service {\n    public void DoWork() {}\n}\n")
	writeFixture(t, dir, "notes.txt", "irrelevant extension\n")

	e := newTestEngine(t, dir)
	stats, err := e.Reindex(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.FilesIndexed)
	require.GreaterOrEqual(t, stats.DefsIndexed, 4)

	res, err := e.Content().Search(contentindex.Query{Terms: []string{"dowork"}})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	require.Equal(t, "Service.cs", res.Files[0].Path)

	_, ids, err := e.Defs().Lookup(defindex.LookupQuery{Names: []string{"HandleRequest"}})
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func TestReindexTwiceReplacesIndexesAtomically(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "A.cs", "public class A {}\n")

	e := newTestEngine(t, dir)
	_, err := e.Reindex(context.Background())
	require.NoError(t, err)
	first := e.Content()

	writeFixture(t, dir, "B.cs", "public class B {}\n")
	_, err = e.Reindex(context.Background())
	require.NoError(t, err)
	second := e.Content()

	require.NotSame(t, first, second)
	require.Len(t, second.Files, 2)
}

func TestExcludeGlobsExpandsPlainDirNames(t *testing.T) {
	cfg := config.Defaults()
	cfg.ExcludeDirs = []string{".git", "bin"}
	cfg.ExcludeGlobs = []string{"**/*.generated.cs"}
	globs := excludeGlobs(cfg)
	require.Contains(t, globs, "**/.git")
	require.Contains(t, globs, "**/.git/**")
	require.Contains(t, globs, "**/bin")
	require.Contains(t, globs, "**/*.generated.cs")
}
