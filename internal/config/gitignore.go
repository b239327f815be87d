package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// gitignoreRule is one parsed .gitignore line: the cleaned pattern plus
// its modifiers (leading "!" negates, trailing "/" restricts to
// directories, leading "/" anchors to the repository root).
type gitignoreRule struct {
	pattern string
	negate  bool
	dirOnly bool
	rooted  bool
}

// GitignoreParser turns a root-level .gitignore into exclusion globs for
// the index walk, and answers direct should-ignore queries. Matching is
// delegated to doublestar, the same glob engine the walk itself uses, so
// a pattern behaves identically whether it is checked here or handed to
// the walk as an exclusion.
type GitignoreParser struct {
	rules []gitignoreRule
}

func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore reads <rootPath>/.gitignore. A missing file is the
// common case and not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	f, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		gp.AddPattern(strings.TrimSpace(sc.Text()))
	}
	return sc.Err()
}

// AddPattern parses a single .gitignore line into a rule. Blank lines and
// comments are dropped here so callers can feed raw file lines through.
func (gp *GitignoreParser) AddPattern(line string) {
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	var r gitignoreRule
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.rooted = true
		line = line[1:]
	}
	if line == "" {
		return
	}
	r.pattern = line
	gp.rules = append(gp.rules, r)
}

// matchGlob is the rule's base doublestar pattern: unrooted rules match
// at any depth ("**" matches zero segments, so "**/foo" still matches a
// top-level "foo").
func (r gitignoreRule) matchGlob() string {
	if r.rooted {
		return r.pattern
	}
	return "**/" + r.pattern
}

func (r gitignoreRule) matches(path string, isDir bool) bool {
	glob := r.matchGlob()
	if ok, _ := doublestar.Match(glob, path); ok {
		// A directory-only rule names the directory itself.
		return !r.dirOnly || isDir
	}
	if r.dirOnly {
		// Everything under a matched directory is covered too.
		if ok, _ := doublestar.Match(glob+"/**", path); ok {
			return true
		}
	}
	return false
}

// ShouldIgnore reports whether path is excluded by the loaded rules.
// Rules apply in file order and the last match wins, so a later "!"
// rule re-includes what an earlier rule excluded.
func (gp *GitignoreParser) ShouldIgnore(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	ignored := false
	for _, r := range gp.rules {
		if r.matches(path, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

// GetExclusionPatterns renders the non-negated rules as doublestar globs
// for the walk's exclusion list. Negation rules are skipped: a flat
// exclude list has no way to re-include, and losing a "!" rule only
// over-excludes, never leaks ignored files into the index.
func (gp *GitignoreParser) GetExclusionPatterns() []string {
	var out []string
	for _, r := range gp.rules {
		if r.negate {
			continue
		}
		glob := r.matchGlob()
		if r.dirOnly {
			out = append(out, glob, glob+"/**")
		} else {
			out = append(out, glob)
		}
	}
	return out
}
