// Package update implements the shared incremental-update orchestration
// that keeps the content index and definition index in lock-step for a
// single changed path.
package update

import (
	"bufio"
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/standardbeagle/codeindex/internal/contentindex"
	"github.com/standardbeagle/codeindex/internal/defindex"
)

// Decision is the classification of one filesystem change event.
type Decision string

const (
	DecisionAdd       Decision = "add"
	DecisionReplace   Decision = "replace"
	DecisionRemove    Decision = "remove"
	DecisionSkip      Decision = "skip"      // path neither on disk nor indexed
	DecisionUnchanged Decision = "unchanged" // content hash matches what's already indexed
)

// Classify decides what to do with a changed path given whether it
// currently exists on disk and whether the content index already has an
// entry for it (add vs replace vs remove is keyed off exactly
// these two facts).
func Classify(existsOnDisk, alreadyIndexed bool) Decision {
	switch {
	case !existsOnDisk && alreadyIndexed:
		return DecisionRemove
	case existsOnDisk && alreadyIndexed:
		return DecisionReplace
	case existsOnDisk && !alreadyIndexed:
		return DecisionAdd
	default:
		return DecisionSkip
	}
}

// Pool groups the two indexes that must be mutated together for a single
// path change.
type Pool struct {
	Content *contentindex.ContentIndex
	Defs    *defindex.DefinitionIndex
}

// Apply classifies relPath against both indexes' current state and
// applies the matching add/replace/remove to each, in that order: content
// index first, then definition index. pf carries the already-parsed
// definitions for relPath (the caller is responsible for invoking the
// tree-sitter extractor; update does not parse) and is ignored on
// remove.
func Apply(pool Pool, relPath string, content []byte, pf defindex.ParsedFile) Decision {
	_, existsInContent := pool.Content.PathID(relPath)
	_, existsInDefs := pool.Defs.PathID(relPath)
	alreadyIndexed := existsInContent || existsInDefs

	existsOnDisk := content != nil
	decision := Classify(existsOnDisk, alreadyIndexed)

	switch decision {
	case DecisionRemove:
		if id, ok := pool.Content.PathID(relPath); ok {
			pool.Content.RemoveFile(id)
		}
		if id, ok := pool.Defs.PathID(relPath); ok {
			pool.Defs.RemoveFile(id)
		}
	case DecisionAdd, DecisionReplace:
		lines := splitLines(content)
		if decision == DecisionAdd {
			pool.Content.AddFile(relPath, lines)
		} else {
			pool.Content.ReplaceFile(relPath, lines)
		}
		pf.Path = relPath
		pool.Defs.AppendFile(pf)
	}
	return decision
}

// ApplyFromDisk is the convenience path the orchestrator's fsnotify
// handler uses: it reads relPath itself (a missing file means remove),
// decodes lossily on invalid UTF-8, and defers definition re-parsing to
// parseFn. With a nil parseFn the definition index still records the path
// on add or replace, with no definitions (any it held are removed).
func ApplyFromDisk(pool Pool, absPath, relPath string, parseFn func(path string, content []byte) defindex.ParsedFile) Decision {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return Apply(pool, relPath, nil, defindex.ParsedFile{})
	}
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}

	// A debounced watcher can coalesce several fsnotify events for a save
	// that never actually changed the file's bytes (editors that touch
	// before writing, or write the same content twice). Comparing against
	// the indexed hash before paying for a re-parse keeps that case cheap.
	lines := splitLines(content)
	if pool.Content.UnchangedHash(relPath, lines) {
		return DecisionUnchanged
	}

	var pf defindex.ParsedFile
	if parseFn != nil {
		pf = parseFn(relPath, content)
	}
	return Apply(pool, relPath, content, pf)
}

func splitLines(content []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
