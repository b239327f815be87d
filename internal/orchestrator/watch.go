package orchestrator

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/codeindex/internal/update"
)

// watchDebounceDefault is the coalescing window for rapid-fire editor
// saves.
const watchDebounceDefault = 50 * time.Millisecond

// Watcher applies filesystem change events to an Engine's live indexes,
// debounced per path so a burst of writes to the same file collapses into
// one re-index.
type Watcher struct {
	engine   *Engine
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	visited map[string]bool

	done chan struct{}
}

// StartWatcher creates and starts a Watcher over e.Root(), returning it so
// the caller can Stop it on shutdown. A nil engine.watcher is left in
// place if the caller never calls this (one-shot CLI builds don't watch).
func StartWatcher(e *Engine) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		engine:   e,
		fsw:      fsw,
		debounce: watchDebounceDefault,
		timers:   make(map[string]*time.Timer),
		visited:  make(map[string]bool),
		done:     make(chan struct{}),
	}

	if err := w.addTree(e.Root()); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	e.watcher = w
	return w, nil
}

// Stop releases the underlying fsnotify watch, ends the event loop, and
// cancels pending debounce timers. It does not wait for an apply whose
// timer has already fired.
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.fsw.Close()

	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()

	return err
}

// addTree recursively registers a watch on root and every non-excluded
// subdirectory, with a resolved-path guard against symlink cycles.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		real, err := filepath.EvalSymlinks(p)
		if err != nil {
			return nil
		}
		if w.visited[real] {
			return filepath.SkipDir
		}
		w.visited[real] = true

		rel, _ := w.engine.RelPath(p)
		if rel != "" && w.excluded(rel) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(p); err != nil {
			return nil // best-effort: a directory we can't watch is simply missed
		}
		return nil
	})
}

func (w *Watcher) excluded(relPath string) bool {
	for _, g := range excludeGlobs(w.engine.cfg) {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if rel, err := w.engine.RelPath(ev.Name); err == nil && w.excluded(rel) {
		return
	}

	info, statErr := os.Stat(ev.Name)
	if statErr == nil && info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			_ = w.fsw.Add(ev.Name)
		}
		return
	}

	if !hasAnyConfiguredExtension(ev.Name, w.engine.cfg.Extensions) {
		return
	}

	w.scheduleApply(ev.Name)
}

func hasAnyConfiguredExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, want := range extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// scheduleApply debounces repeated events for the same path, so a save
// that fires Write then Chmod only triggers one re-index.
func (w *Watcher) scheduleApply(absPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[absPath]; ok {
		t.Stop()
	}
	w.timers[absPath] = time.AfterFunc(w.debounce, func() {
		w.apply(absPath)
		w.mu.Lock()
		delete(w.timers, absPath)
		w.mu.Unlock()
	})
}

func (w *Watcher) apply(absPath string) {
	rel, err := w.engine.RelPath(absPath)
	if err != nil {
		return
	}

	w.engine.buildMu.Lock()
	defer w.engine.buildMu.Unlock()

	decision := update.ApplyFromDisk(w.engine.pool(), absPath, rel, w.engine.parseFileForDefs)
	w.engine.log.Infof("watch: %s %s", decision, rel)

	// Repeated replace/remove cycles on the same paths (the common case
	// under a live watcher) accumulate tombstones in the definition index;
	// warn once the ratio crosses the 2:1 threshold so an
	// operator knows a full reindex would reclaim space.
	if w.engine.Defs().TombstoneRatioExceeds(2) {
		w.engine.log.Warnf("definition index tombstone ratio exceeds 2:1 for %s; consider a full reindex", w.engine.cfg.Root)
	}
}
