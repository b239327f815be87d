package contentindex

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/standardbeagle/codeindex/internal/tokenize"
)

// hashLines computes a fast, non-cryptographic digest of a file's
// content for change detection: a cheap equality check before paying
// for a tokenize/postings-merge pass.
func hashLines(lines []string) uint64 {
	h := xxhash.New()
	for _, l := range lines {
		_, _ = h.WriteString(l)
		_, _ = h.Write(newlineByte)
	}
	return h.Sum64()
}

var newlineByte = []byte{'\n'}

// fileTokens is the per-file accumulator a build worker fills in before
// flushing it into the shared index (per-file maps are flushed
// one file at a time so each token's posting list receives at most one
// Posting per file).
type fileTokens struct {
	path       string
	perToken   map[string][]uint32 // token -> sorted, deduped line numbers
	tokenCount uint32
	hash       uint64
}

// tokenizeFile tokenizes the lines of one file's content (already
// lossy-UTF-8 decoded and split on "\n" by the caller) into a fileTokens
// accumulator.
func tokenizeFile(path string, lines []string, minLen int) fileTokens {
	ft := fileTokens{path: path, perToken: make(map[string][]uint32), hash: hashLines(lines)}
	for lineNo, line := range lines {
		toks := tokenize.Tokenize(line, minLen)
		ft.tokenCount += uint32(len(toks))
		ln := uint32(lineNo + 1)
		for _, tok := range toks {
			lst := ft.perToken[tok]
			if len(lst) == 0 || lst[len(lst)-1] != ln {
				ft.perToken[tok] = append(lst, ln)
			}
		}
	}
	return ft
}

// flush appends one file's accumulated tokens into the global index,
// assigning it a new file_id. Must be called with c.mu held for writing.
func (c *ContentIndex) flush(ft fileTokens) uint32 {
	fileID := uint32(len(c.Files))
	c.Files = append(c.Files, ft.path)
	c.FileTokenCounts = append(c.FileTokenCounts, ft.tokenCount)
	c.FileHashes = append(c.FileHashes, ft.hash)
	c.PathToID[ft.path] = fileID
	c.TotalTokens += uint64(ft.tokenCount)

	tokens := make([]string, 0, len(ft.perToken))
	for tok := range ft.perToken {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	for _, tok := range tokens {
		c.Index[tok] = append(c.Index[tok], Posting{FileID: fileID, Lines: ft.perToken[tok]})
	}
	c.TrigramDirty = true
	return fileID
}

// AddFile tokenizes lines for path and merges the result into the index
// under a fresh file_id. It assumes path is not already present; callers
// performing a replace must call RemoveFile first.
func (c *ContentIndex) AddFile(path string, lines []string) uint32 {
	ft := tokenizeFile(path, lines, c.minLenOrDefault())
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flush(ft)
}

func (c *ContentIndex) minLenOrDefault() int {
	if c.MinTokenLen > 0 {
		return c.MinTokenLen
	}
	return tokenize.DefaultMinLen
}

// RemoveFile deletes every posting for fileID from every token's list
// and clears the file's path_to_id entry. The file's slot in Files and
// FileTokenCounts is left in place so file_ids stay stable, the same
// way the definition index keeps tombstones, but the path no longer
// resolves to it.
func (c *ContentIndex) RemoveFile(fileID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeFileLocked(fileID)
}

func (c *ContentIndex) removeFileLocked(fileID uint32) {
	if int(fileID) >= len(c.Files) {
		return
	}
	path := c.Files[fileID]
	if old, ok := c.PathToID[path]; ok && old == fileID {
		delete(c.PathToID, path)
	}
	removedTokens := int(c.FileTokenCounts[fileID])
	for tok, postings := range c.Index {
		updated := removePostingForFile(postings, fileID)
		if len(updated) == 0 {
			delete(c.Index, tok)
		} else if len(updated) != len(postings) {
			c.Index[tok] = updated
		}
	}
	if removedTokens > 0 && uint64(removedTokens) <= c.TotalTokens {
		c.TotalTokens -= uint64(removedTokens)
	}
	c.FileTokenCounts[fileID] = 0
	c.FileHashes[fileID] = 0
	c.TrigramDirty = true
}

// ReplaceFile performs the remove-then-add discipline for an existing
// path, reusing the old file_id so other structures that
// reference it (none in this package, but future neighbors might) stay
// stable. It returns the (possibly new) file_id.
func (c *ContentIndex) ReplaceFile(path string, lines []string) uint32 {
	c.mu.Lock()
	if id, ok := c.PathToID[path]; ok {
		c.removeFileLocked(id)
		c.mu.Unlock()
		ft := tokenizeFile(path, lines, c.minLenOrDefault())
		c.mu.Lock()
		fileID := id
		c.Files[fileID] = ft.path
		c.FileTokenCounts[fileID] = ft.tokenCount
		c.FileHashes[fileID] = ft.hash
		c.PathToID[ft.path] = fileID
		c.TotalTokens += uint64(ft.tokenCount)
		tokens := make([]string, 0, len(ft.perToken))
		for tok := range ft.perToken {
			tokens = append(tokens, tok)
		}
		sort.Strings(tokens)
		for _, tok := range tokens {
			c.Index[tok] = insertPostingSorted(c.Index[tok], Posting{FileID: fileID, Lines: ft.perToken[tok]})
		}
		c.TrigramDirty = true
		c.mu.Unlock()
		return fileID
	}
	c.mu.Unlock()
	return c.AddFile(path, lines)
}
