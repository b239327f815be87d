package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codeindex/internal/contentindex"
)

func TestWatcherAppliesNewFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file watcher integration test in short mode")
	}

	dir := t.TempDir()
	writeFixture(t, dir, "A.cs", "public class A {}\n")

	e := newTestEngine(t, dir)
	_, err := e.Reindex(context.Background())
	require.NoError(t, err)

	w, err := StartWatcher(e)
	require.NoError(t, err)
	defer w.Stop()

	writeFixture(t, dir, "B.cs", "public class B { void Widget() {} }\n")

	require.Eventually(t, func() bool {
		res, err := e.Content().Search(contentindex.Query{Terms: []string{"widget"}})
		return err == nil && len(res.Files) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherAppliesRemoval(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file watcher integration test in short mode")
	}

	dir := t.TempDir()
	writeFixture(t, dir, "A.cs", "public class A { void Gadget() {} }\n")

	e := newTestEngine(t, dir)
	_, err := e.Reindex(context.Background())
	require.NoError(t, err)

	w, err := StartWatcher(e)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.Remove(filepath.Join(dir, "A.cs")))

	require.Eventually(t, func() bool {
		res, err := e.Content().Search(contentindex.Query{Terms: []string{"gadget"}})
		return err == nil && len(res.Files) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestExcludedPathNeverScheduled(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "A.cs", "public class A {}\n")

	e := newTestEngine(t, dir)
	e.cfg.ExcludeDirs = []string{"bin"}

	w := &Watcher{engine: e, timers: make(map[string]*time.Timer), visited: make(map[string]bool)}
	require.True(t, w.excluded("bin/Debug/A.cs"))
	require.False(t, w.excluded("src/A.cs"))
}
