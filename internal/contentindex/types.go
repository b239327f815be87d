// Package contentindex implements the token/posting inverted index, its
// trigram-accelerated substring index, and the content query engine
// (token, regex-over-tokens, substring, and phrase search with TF-IDF
// ranking).
package contentindex

import (
	"sort"
	"sync"
	"time"

	"github.com/standardbeagle/codeindex/internal/tokenize"
)

// Posting records that a token appears in a given file on given lines.
// Lines are sorted ascending; duplicates are collapsed during indexing.
type Posting struct {
	FileID uint32
	Lines  []uint32
}

// ContentIndex is the token->postings inverted index for one root
// directory plus its lazily-built trigram acceleration structure.
type ContentIndex struct {
	mu sync.RWMutex

	Root            string
	CreatedAt       time.Time
	MaxAgeSecs      int64
	Files           []string
	FileTokenCounts []uint32
	FileHashes      []uint64 // xxhash of each file's last-indexed content, by FileID
	Index           map[string][]Posting
	TotalTokens     uint64
	Extensions      []string
	Trigram         TrigramIndex
	TrigramDirty    bool
	PathToID        map[string]uint32

	MinTokenLen int

	// FileReader overrides how phrase/context-line verification reads file
	// content; nil means read from disk. Tests set this to avoid touching
	// the filesystem.
	FileReader FileReader
}

// New creates an empty ContentIndex rooted at root, indexing extensions.
func New(root string, extensions []string, createdAt time.Time, maxAgeSecs int64) *ContentIndex {
	if len(extensions) > 0 {
		sorted := append([]string(nil), extensions...)
		sort.Strings(sorted)
		extensions = sorted
	}
	return &ContentIndex{
		Root:        root,
		CreatedAt:   createdAt,
		MaxAgeSecs:  maxAgeSecs,
		Index:       make(map[string][]Posting),
		Extensions:  extensions,
		PathToID:    make(map[string]uint32),
		MinTokenLen: tokenize.DefaultMinLen,
	}
}

// IsStale reports whether the index's age at now exceeds MaxAgeSecs.
func (c *ContentIndex) IsStale(now time.Time) bool {
	if c.MaxAgeSecs <= 0 {
		return false
	}
	return now.Sub(c.CreatedAt) > time.Duration(c.MaxAgeSecs)*time.Second
}

// UnchangedHash reports whether path is already indexed with exactly the
// given content, letting callers (the incremental watcher) skip a
// tokenize-and-merge pass when a filesystem event fires for content that
// didn't actually change (editors commonly touch a file more than once
// per save).
func (c *ContentIndex) UnchangedHash(path string, lines []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.PathToID[path]
	if !ok || int(id) >= len(c.FileHashes) {
		return false
	}
	return c.FileHashes[id] == hashLines(lines)
}

// PathID returns the file_id currently indexed for path, if any.
func (c *ContentIndex) PathID(path string) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.PathToID[path]
	return id, ok
}

// FileCount returns the number of files currently tracked (tombstoned
// slots, if any are ever introduced for content files, still count).
func (c *ContentIndex) FileCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.Files)
}

// insertPostingSorted inserts p into postings, keeping the slice sorted
// ascending by FileID. Callers are responsible for having removed any
// prior posting for the same FileID first (remove before add).
func insertPostingSorted(postings []Posting, p Posting) []Posting {
	idx := sort.Search(len(postings), func(i int) bool {
		return postings[i].FileID >= p.FileID
	})
	postings = append(postings, Posting{})
	copy(postings[idx+1:], postings[idx:])
	postings[idx] = p
	return postings
}

// removePostingForFile removes the posting for fileID from postings, if
// present, preserving order.
func removePostingForFile(postings []Posting, fileID uint32) []Posting {
	for i, p := range postings {
		if p.FileID == fileID {
			return append(postings[:i:i], postings[i+1:]...)
		}
	}
	return postings
}
