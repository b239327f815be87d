package defindex

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// SuspiciousFileMinBytes is the default reporting-only threshold: a file
// bigger than this with zero definitions is noted, never rejected.
const SuspiciousFileMinBytes = 500

// SuspiciousFile is a >SuspiciousFileMinBytes-byte file that parsed with
// zero definitions.
type SuspiciousFile struct {
	Path string
	Size int64
}

// BuildSummary reports build-time counters for diagnostic logging.
type BuildSummary struct {
	FilesParsed   int
	DefsExtracted int
	CallSites     int
	LossyFiles    int
	ParseErrors   int
	Suspicious    []SuspiciousFile
}

// languagePool maps each extension to the constructor of its
// languageParser. Nothing is cached: parseOne builds a fresh parser on
// every call, since tree-sitter parsers are not safe for concurrent use.
type languagePool struct {
	csharp     func() (*languageParser, error)
	typescript func() (*languageParser, error)
	tsx        func() (*languageParser, error)
	extra      map[string]ExtraLanguage
}

func newLanguagePool() *languagePool {
	return &languagePool{
		csharp:     newCSharpLanguageParser,
		typescript: newTypeScriptLanguageParser,
		tsx:        newTSXLanguageParser,
		extra: map[string]ExtraLanguage{
			"go": LangGo, "java": LangJava, "py": LangPython, "rs": LangRust,
			"js": LangJavaScript, "jsx": LangJavaScript, "mjs": LangJavaScript,
			"cjs": LangJavaScript,
			"php": LangPHP, "cpp": LangCPP, "cc": LangCPP, "cxx": LangCPP,
			"h": LangCPP, "hpp": LangCPP, "zig": LangZig,
		},
	}
}

// parseOne parses one file's content according to its extension, each
// call building fresh parser state (never shared across goroutines).
func (pool *languagePool) parseOne(ext, path string, content []byte) (ParsedFile, bool) {
	switch ext {
	case "cs":
		lp, err := pool.csharp()
		if err != nil || lp == nil {
			return ParsedFile{}, false
		}
		return ParseCSharp(lp, path, content), true
	case "ts":
		lp, err := pool.typescript()
		if err != nil || lp == nil {
			return ParsedFile{}, false
		}
		return ParseTypeScript(lp, path, content), true
	case "tsx":
		lp, err := pool.tsx()
		if err != nil || lp == nil {
			return ParsedFile{}, false
		}
		return ParseTypeScript(lp, path, content), true
	default:
		if lang, ok := pool.extra[ext]; ok {
			lp, err := newExtraLanguageParser(lang)
			if err != nil || lp == nil {
				return ParsedFile{}, false
			}
			return ParseGeneric(lp, path, content), true
		}
	}
	return ParsedFile{}, false
}

// Build walks relPaths (already filtered by extension/gitignore by the
// caller, per internal/walk; every path is relative to root, the
// canonical key form the rest of the engine uses), parsing each in
// parallel with bounded worker count, then merges results into a fresh
// DefinitionIndex with a single-threaded append pass preserving source
// order per file group.
func Build(root string, extensions []string, relPaths []string, workers int) (*DefinitionIndex, BuildSummary) {
	if workers <= 0 {
		workers = 4
	}

	results := make([]ParsedFile, len(relPaths))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, p := range relPaths {
		i, p := i, p
		g.Go(func() error {
			pool := newLanguagePool()
			content, err := os.ReadFile(filepath.Join(root, p))
			lossy := false
			if err != nil {
				results[i] = ParsedFile{Path: p, ParseFail: true}
				return nil
			}
			if !utf8.Valid(content) {
				lossy = true
				content = []byte(strings.ToValidUTF8(string(content), "�"))
			}
			ext := extOf(p)
			pf, ok := pool.parseOne(ext, p, content)
			if !ok {
				pf = ParsedFile{Path: p, ByteSize: int64(len(content))}
			}
			pf.Lossy = lossy
			results[i] = pf
			return nil
		})
	}
	_ = g.Wait()

	idx := New(root, extensions, time.Now())
	var summary BuildSummary
	for _, pf := range results {
		idx.AppendFile(pf)
		summary.FilesParsed++
		summary.DefsExtracted += len(pf.Defs)
		for _, calls := range pf.Calls {
			summary.CallSites += len(calls)
		}
		if pf.Lossy {
			summary.LossyFiles++
		}
		if pf.ParseFail {
			summary.ParseErrors++
		}
		if len(pf.Defs) == 0 && pf.ByteSize > SuspiciousFileMinBytes {
			summary.Suspicious = append(summary.Suspicious, SuspiciousFile{Path: pf.Path, Size: pf.ByteSize})
		}
	}
	return idx, summary
}

// ParseOne parses a single file's already-read content using the same
// per-extension dispatch Build uses, for the incremental-update path
// (internal/update, internal/orchestrator) where only one file changed.
// A nil pool entry for the extension (unsupported language) yields a
// zero-def ParsedFile rather than an error, matching Build's behavior.
func ParseOne(path string, content []byte) ParsedFile {
	pool := newLanguagePool()
	ext := extOf(path)
	pf, ok := pool.parseOne(ext, path, content)
	if !ok {
		return ParsedFile{Path: path, ByteSize: int64(len(content))}
	}
	return pf
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i+1:])
}
