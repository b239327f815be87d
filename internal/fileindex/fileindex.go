// Package fileindex implements the flat file-name directory listing and
// its substring/regex search with match-tier relevance ranking.
package fileindex

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/codeindex/internal/errs"
)

// FileEntry is one path in the flat listing.
type FileEntry struct {
	Path     string
	Size     int64
	Modified int64 // epoch seconds
	IsDir    bool
}

// FileIndex is a flat file-name directory listing for one root, cached on
// disk and orthogonal to the content index.
type FileIndex struct {
	mu sync.RWMutex

	Root       string
	CreatedAt  time.Time
	MaxAgeSecs int64
	Entries    []FileEntry
}

// New creates an empty FileIndex rooted at root.
func New(root string, createdAt time.Time, maxAgeSecs int64) *FileIndex {
	return &FileIndex{Root: root, CreatedAt: createdAt, MaxAgeSecs: maxAgeSecs}
}

// IsStale reports whether the index's age at now exceeds MaxAgeSecs.
func (f *FileIndex) IsStale(now time.Time) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.MaxAgeSecs <= 0 {
		return false
	}
	return now.Sub(f.CreatedAt) > time.Duration(f.MaxAgeSecs)*time.Second
}

// SetEntries replaces the listing wholesale; the file index is rebuilt
// in full rather than incrementally maintained.
func (f *FileIndex) SetEntries(entries []FileEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Entries = entries
}

// Query is the search_fast argument surface.
type Query struct {
	Pattern    string // comma-separated OR terms
	Dir        string
	Ext        string
	Regex      bool
	IgnoreCase bool
	DirsOnly   bool
	FilesOnly  bool
	CountOnly  bool
}

// Result is one matched file.
type Result struct {
	Path  string
	Size  int64
	IsDir bool
}

// Summary reports aggregate search_fast counters.
type Summary struct {
	TotalMatches int
	TotalIndexed int
}

// Search runs q against the listing, returning results ordered by
// match-tier then stem length then path, so equal-relevance results come
// back in a stable order.
func (f *FileIndex) Search(q Query) ([]Result, Summary, error) {
	terms := splitTerms(q.Pattern)
	if len(terms) == 0 {
		return nil, Summary{}, errs.InvalidArgs("empty pattern")
	}

	searchTerms := terms
	if q.IgnoreCase {
		searchTerms = make([]string, len(terms))
		for i, t := range terms {
			searchTerms[i] = strings.ToLower(t)
		}
	}

	var regexes []*regexp.Regexp
	if q.Regex {
		regexes = make([]*regexp.Regexp, 0, len(terms))
		for _, t := range terms {
			pat := t
			if q.IgnoreCase {
				pat = "(?i)" + t
			}
			re, err := regexp.Compile(pat)
			if err != nil {
				return nil, Summary{}, errs.InvalidRegex(t, err)
			}
			regexes = append(regexes, re)
		}
	}

	f.mu.RLock()
	entries := append([]FileEntry(nil), f.Entries...)
	f.mu.RUnlock()

	var results []Result
	matchCount := 0
	for _, e := range entries {
		if q.DirsOnly && !e.IsDir {
			continue
		}
		if q.FilesOnly && e.IsDir {
			continue
		}
		if q.Dir != "" && !strings.HasPrefix(e.Path, strings.TrimSuffix(q.Dir, "/")+"/") && e.Path != q.Dir {
			continue
		}
		if q.Ext != "" && !strings.EqualFold(strings.TrimPrefix(filepath.Ext(e.Path), "."), q.Ext) {
			continue
		}

		name := filepath.Base(e.Path)
		searchName := name
		if q.IgnoreCase {
			searchName = strings.ToLower(name)
		}

		matched := false
		if regexes != nil {
			for _, re := range regexes {
				if re.MatchString(searchName) {
					matched = true
					break
				}
			}
		} else {
			for _, term := range searchTerms {
				if strings.Contains(searchName, term) {
					matched = true
					break
				}
			}
		}

		if matched {
			matchCount++
			if !q.CountOnly {
				results = append(results, Result{Path: e.Path, Size: e.Size, IsDir: e.IsDir})
			}
		}
	}

	if !q.CountOnly {
		sort.SliceStable(results, func(i, j int) bool {
			stemI := stem(results[i].Path)
			stemJ := stem(results[j].Path)
			tierI := bestMatchTier(stemI, searchTerms)
			tierJ := bestMatchTier(stemJ, searchTerms)
			if tierI != tierJ {
				return tierI < tierJ
			}
			if len(stemI) != len(stemJ) {
				return len(stemI) < len(stemJ)
			}
			return results[i].Path < results[j].Path
		})
	}

	return results, Summary{TotalMatches: matchCount, TotalIndexed: len(entries)}, nil
}

func splitTerms(pattern string) []string {
	var out []string
	for _, t := range strings.Split(pattern, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func stem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// matchTier: exact basename-stem = 0, prefix = 1, contains = 2. Returns the best (lowest) tier across every OR term; a term that
// does not match the stem at all contributes no tier.
const (
	tierExact  = 0
	tierPrefix = 1
	tierOther  = 2
)

func bestMatchTier(stemName string, terms []string) int {
	best := tierOther + 1
	for _, term := range terms {
		var tier int
		switch {
		case stemName == term:
			tier = tierExact
		case strings.HasPrefix(stemName, term):
			tier = tierPrefix
		case strings.Contains(stemName, term):
			tier = tierOther
		default:
			continue
		}
		if tier < best {
			best = tier
		}
	}
	if best > tierOther {
		return tierOther
	}
	return best
}
