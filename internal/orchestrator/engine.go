// Package orchestrator ties the content, definition, and file indexes to
// the shared directory walk, the incremental-update pool, and an optional
// fsnotify watcher, presenting the single reader/writer-disciplined Engine
// the MCP server and CLI drive.
package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codeindex/internal/config"
	"github.com/standardbeagle/codeindex/internal/contentindex"
	"github.com/standardbeagle/codeindex/internal/defindex"
	"github.com/standardbeagle/codeindex/internal/diag"
	"github.com/standardbeagle/codeindex/internal/errs"
	"github.com/standardbeagle/codeindex/internal/fileindex"
	"github.com/standardbeagle/codeindex/internal/mcpserver"
	"github.com/standardbeagle/codeindex/internal/persist"
	"github.com/standardbeagle/codeindex/internal/update"
	"github.com/standardbeagle/codeindex/internal/walk"
)

// Engine owns the three live indexes for one root directory and serializes
// access to them: one writer (build or incremental apply) at a time,
// unlimited concurrent readers, via the RWMutex each index already holds
// internally plus a build-level mutex here that prevents two rebuilds
// from interleaving.
type Engine struct {
	cfg config.Config
	log *diag.Logger

	buildMu sync.Mutex // serializes Reindex/watcher-driven Apply calls

	mu      sync.RWMutex // guards swapping the three index pointers themselves
	content *contentindex.ContentIndex
	defs    *defindex.DefinitionIndex
	files   *fileindex.FileIndex

	watcher *Watcher
}

var _ mcpserver.Engine = (*Engine)(nil)

// New creates an Engine with empty indexes for cfg.Root; call Reindex or
// LoadCached before serving queries.
func New(cfg config.Config, log *diag.Logger) *Engine {
	if log == nil {
		log = diag.Default()
	}
	now := time.Now()
	return &Engine{
		cfg:     cfg,
		log:     log,
		content: contentindex.New(cfg.Root, cfg.Extensions, now, cfg.MaxIndexAgeSecs),
		defs:    defindex.New(cfg.Root, cfg.Extensions, now),
		files:   fileindex.New(cfg.Root, now, cfg.MaxIndexAgeSecs),
	}
}

func (e *Engine) Content() *contentindex.ContentIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.content
}

func (e *Engine) Defs() *defindex.DefinitionIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.defs
}

func (e *Engine) Files() *fileindex.FileIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.files
}

// pool returns an update.Pool over the engine's current live indexes, for
// the incremental-apply path the watcher drives.
func (e *Engine) pool() update.Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return update.Pool{Content: e.content, Defs: e.defs}
}

// Reindex performs a full synchronous rebuild of all three indexes,
// bypassing staleness checks, and swaps them in atomically
// (search_reindex).
func (e *Engine) Reindex(ctx context.Context) (mcpserver.ReindexStats, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()

	entries, err := walk.Collect(e.cfg.Root, walk.Options{
		Extensions:   e.cfg.Extensions,
		ExcludeGlobs: excludeGlobs(e.cfg),
	})
	if err != nil {
		return mcpserver.ReindexStats{}, err
	}

	var relPaths []string
	for _, en := range entries {
		if !en.IsDir {
			relPaths = append(relPaths, en.RelPath)
		}
	}

	defsIdx, summary := defindex.Build(e.cfg.Root, e.cfg.Extensions, relPaths, e.cfg.ResolveWorkers())

	contentIdx, err := buildContent(e.cfg, entries)
	if err != nil {
		return mcpserver.ReindexStats{}, err
	}

	fileEntries := make([]fileindex.FileEntry, len(entries))
	for i, en := range entries {
		fileEntries[i] = fileindex.FileEntry{Path: en.RelPath, Size: en.Size, Modified: en.Modified, IsDir: en.IsDir}
	}
	filesIdx := fileindex.New(e.cfg.Root, time.Now(), e.cfg.MaxIndexAgeSecs)
	filesIdx.SetEntries(fileEntries)

	e.mu.Lock()
	e.content = contentIdx
	e.defs = defsIdx
	e.files = filesIdx
	e.mu.Unlock()

	elapsed := time.Since(start)
	e.log.Infof("rebuild complete: %d files, %d defs, %d call sites, %d lossy, %d parse errors, elapsed %s",
		summary.FilesParsed, summary.DefsExtracted, summary.CallSites, summary.LossyFiles, summary.ParseErrors, elapsed)
	for _, sf := range summary.Suspicious {
		e.log.Warnf("suspicious file with zero definitions: %s (%d bytes)", sf.Path, sf.Size)
	}

	return mcpserver.ReindexStats{
		FilesIndexed:  len(relPaths),
		DefsIndexed:   summary.DefsExtracted,
		TokensIndexed: int(contentIdx.TotalTokens),
		Elapsed:       elapsed,
	}, nil
}

// excludeGlobs expands cfg's plain directory names into doublestar
// patterns matching that name at any depth, then appends cfg's own
// glob patterns (already gitignore/build-artifact enriched by
// config.Load) verbatim.
func excludeGlobs(cfg config.Config) []string {
	out := make([]string, 0, len(cfg.ExcludeDirs)*2+len(cfg.ExcludeGlobs))
	for _, d := range cfg.ExcludeDirs {
		d = strings.Trim(d, "/")
		if d == "" {
			continue
		}
		out = append(out, "**/"+d, "**/"+d+"/**")
	}
	out = append(out, cfg.ExcludeGlobs...)
	return out
}

// buildContent reads and tokenizes every entry's content in parallel
// (bounded by NumCPU), then flushes each file into a fresh
// ContentIndex on a single goroutine to preserve the one-posting-per-file
// invariant AddFile relies on.
func buildContent(cfg config.Config, entries []walk.Entry) (*contentindex.ContentIndex, error) {
	type fileLines struct {
		relPath string
		lines   []string
	}
	results := make([]fileLines, len(entries))

	g := new(errgroup.Group)
	g.SetLimit(walk.Workers(cfg.Workers))
	for i, en := range entries {
		i, en := i, en
		g.Go(func() error {
			if en.IsDir {
				return nil
			}
			content, err := os.ReadFile(en.AbsPath)
			if err != nil {
				return nil
			}
			text := string(content)
			if !utf8.ValidString(text) {
				text = strings.ToValidUTF8(text, "�")
			}
			results[i] = fileLines{relPath: en.RelPath, lines: strings.Split(text, "\n")}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := contentindex.New(cfg.Root, cfg.Extensions, time.Now(), cfg.MaxIndexAgeSecs)
	for _, r := range results {
		if r.relPath == "" {
			continue
		}
		idx.AddFile(r.relPath, r.lines)
	}
	return idx, nil
}

// Root returns the engine's configured root directory.
func (e *Engine) Root() string { return e.cfg.Root }

// RelPath converts an absolute path under the engine's root to the
// relative form the indexes key on.
func (e *Engine) RelPath(absPath string) (string, error) {
	rel, err := filepath.Rel(e.cfg.Root, absPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Save persists the engine's three live indexes under cacheDir, one blob
// per purpose named per persist.FileName (cache-file layout).
func (e *Engine) Save(cacheDir string) error {
	e.mu.RLock()
	content, defs, files := e.content, e.defs, e.files
	e.mu.RUnlock()

	root := canonicalRoot(e.cfg.Root)
	if err := persist.Save(cachePath(cacheDir, root, persist.PurposeContent, e.cfg.Extensions), persist.PurposeContent, content); err != nil {
		return err
	}
	if err := persist.Save(cachePath(cacheDir, root, persist.PurposeDefs, e.cfg.Extensions), persist.PurposeDefs, defs); err != nil {
		return err
	}
	if err := persist.Save(cachePath(cacheDir, root, persist.PurposeFiles, nil), persist.PurposeFiles, files); err != nil {
		return err
	}
	return nil
}

// LoadCached loads previously-saved indexes from cacheDir into the engine,
// swapping them in atomically only if all three load cleanly and the
// content index is still fresh. A cache miss, corruption on any one
// blob, or a stale index (errs.StaleIndex) fails the whole load so the
// caller falls back to Reindex rather than serving a partially-stale
// engine.
func (e *Engine) LoadCached(cacheDir string) error {
	root := canonicalRoot(e.cfg.Root)

	content := contentindex.New(e.cfg.Root, e.cfg.Extensions, time.Now(), e.cfg.MaxIndexAgeSecs)
	if err := persist.Load(cachePath(cacheDir, root, persist.PurposeContent, e.cfg.Extensions), persist.PurposeContent, content); err != nil {
		return err
	}
	defs := defindex.New(e.cfg.Root, e.cfg.Extensions, time.Now())
	if err := persist.Load(cachePath(cacheDir, root, persist.PurposeDefs, e.cfg.Extensions), persist.PurposeDefs, defs); err != nil {
		return err
	}
	files := fileindex.New(e.cfg.Root, time.Now(), e.cfg.MaxIndexAgeSecs)
	if err := persist.Load(cachePath(cacheDir, root, persist.PurposeFiles, nil), persist.PurposeFiles, files); err != nil {
		return err
	}

	if now := time.Now(); content.IsStale(now) {
		age := int64(now.Sub(content.CreatedAt).Seconds())
		return errs.StaleIndex(age, content.MaxAgeSecs)
	}

	e.mu.Lock()
	e.content, e.defs, e.files = content, defs, files
	e.mu.Unlock()
	return nil
}

func canonicalRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	return filepath.Clean(abs)
}

func cachePath(cacheDir, root string, purpose persist.Purpose, extensions []string) string {
	return filepath.Join(cacheDir, persist.FileName("codeindex", root, purpose, extensions))
}

// parseFileForDefs re-parses one file's content into a defindex.ParsedFile
// for the incremental-apply path, reusing the same per-extension dispatch
// defindex.Build uses internally for the initial build.
func (e *Engine) parseFileForDefs(relPath string, content []byte) defindex.ParsedFile {
	pf := defindex.ParseOne(relPath, content)
	pf.Path = relPath
	return pf
}
