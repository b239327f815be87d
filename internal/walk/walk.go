// Package walk implements the shared directory walk used by the content,
// definition, and file index builders.
package walk

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/codeindex/pkg/pathutil"
)

// Options controls which files Collect returns.
type Options struct {
	// Extensions restricts results to these lowercase, no-dot extensions.
	// Empty means no extension filter (file-index build uses this).
	Extensions []string
	// Hidden includes dotfiles/dot-directories when true.
	Hidden bool
	// ExcludeGlobs is a list of doublestar glob patterns matched against
	// the path relative to root; a match excludes the file or directory.
	ExcludeGlobs []string
}

// Entry is one discovered path.
type Entry struct {
	RelPath  string
	AbsPath  string
	Size     int64
	Modified int64
	IsDir    bool
}

// Workers returns the default bounded-parallelism worker count:
// runtime.NumCPU() unless overridden.
func Workers(configured int) int {
	if configured > 0 {
		return configured
	}
	return runtime.NumCPU()
}

// Collect walks root synchronously (the walk itself is cheap; callers
// parallelize the per-file work that follows, via golang.org/x/sync/errgroup)
// and returns every entry surviving opts' filters, sorted by RelPath so
// the single-threaded index merge sees files in a stable order.
func Collect(root string, opts Options) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // per-file read errors are counted elsewhere, not propagated
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = pathutil.Clean(rel)
		if rel == "." {
			return nil
		}

		if !opts.Hidden && isHidden(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAnyGlob(rel, opts.ExcludeGlobs) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			entries = append(entries, Entry{RelPath: rel, AbsPath: p, IsDir: true})
			return nil
		}

		if len(opts.Extensions) > 0 && !hasAnyExtension(rel, opts.Extensions) {
			return nil
		}

		info, infoErr := d.Info()
		var size int64
		var mtime int64
		if infoErr == nil {
			size = info.Size()
			mtime = info.ModTime().Unix()
		}
		entries = append(entries, Entry{
			RelPath:  rel,
			AbsPath:  p,
			Size:     size,
			Modified: mtime,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })
	return entries, nil
}

func isHidden(relPath string) bool {
	for _, part := range strings.Split(relPath, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func matchesAnyGlob(relPath string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
	}
	return false
}

func hasAnyExtension(relPath string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(relPath)), ".")
	for _, want := range extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
