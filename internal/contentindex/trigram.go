package contentindex

import (
	"sort"
	"strings"
)

// TrigramIndex accelerates substring search over a Content Index's token
// set. tokens is the canonical sorted token list; trigramMap maps each
// 3-character window to the sorted, deduplicated set of token-ids (indices
// into tokens) whose token contains that window.
type TrigramIndex struct {
	Tokens     []string
	TrigramMap map[string][]uint32
}

// generateTrigrams returns every 3-character sliding window of t. Tokens
// shorter than 3 runes contribute no trigrams.
func generateTrigrams(t string) []string {
	runes := []rune(t)
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}

// buildTrigram collects every distinct token currently posted in idx and
// builds a fresh TrigramIndex over them. Must be called without c.mu held
// for writing (it only reads); the caller swaps the result in under a
// brief write lock.
func (c *ContentIndex) buildTrigram() TrigramIndex {
	c.mu.RLock()
	tokenSet := make(map[string]struct{}, len(c.Index))
	for tok, postings := range c.Index {
		if len(postings) == 0 {
			continue
		}
		tokenSet[tok] = struct{}{}
	}
	c.mu.RUnlock()

	tokens := make([]string, 0, len(tokenSet))
	for tok := range tokenSet {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	trigramMap := make(map[string][]uint32)
	for id, tok := range tokens {
		for _, tri := range generateTrigrams(tok) {
			trigramMap[tri] = append(trigramMap[tri], uint32(id))
		}
	}
	for tri, ids := range trigramMap {
		trigramMap[tri] = dedupSortedUint32(ids)
	}
	return TrigramIndex{Tokens: tokens, TrigramMap: trigramMap}
}

// EnsureTrigram rebuilds the trigram index if TrigramDirty is set,
// building under a read lock and swapping the result in under a brief
// write lock so queries never block on rebuild time.
func (c *ContentIndex) EnsureTrigram() {
	c.mu.RLock()
	dirty := c.TrigramDirty
	c.mu.RUnlock()
	if !dirty {
		return
	}

	fresh := c.buildTrigram()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.TrigramDirty {
		return // someone else rebuilt it first
	}
	c.Trigram = fresh
	c.TrigramDirty = false
}

// intersectSorted merges two ascending, deduplicated uint32 slices in
// O(|a|+|b|).
func intersectSorted(a, b []uint32) []uint32 {
	out := make([]uint32, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func dedupSortedUint32(ids []uint32) []uint32 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	var last uint32
	have := false
	for _, id := range ids {
		if have && id == last {
			continue
		}
		out = append(out, id)
		last = id
		have = true
	}
	return out
}

// CandidateTokens returns the set of tokens in the trigram index that
// could contain q as a substring: for q shorter than 3
// runes, fall back to a linear scan of the token list; otherwise intersect
// the posting lists of q's trigrams and verify each candidate truly
// contains q (trigrams are necessary but not sufficient).
func (c *ContentIndex) CandidateTokens(q string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len([]rune(q)) < 3 {
		var out []string
		for _, tok := range c.Trigram.Tokens {
			if strings.Contains(tok, q) {
				out = append(out, tok)
			}
		}
		return out
	}

	tris := generateTrigrams(q)
	if len(tris) == 0 {
		return nil
	}
	var ids []uint32
	for i, tri := range tris {
		posting, ok := c.Trigram.TrigramMap[tri]
		if !ok {
			return nil
		}
		if i == 0 {
			ids = posting
		} else {
			ids = intersectSorted(ids, posting)
		}
		if len(ids) == 0 {
			return nil
		}
	}

	var out []string
	for _, id := range ids {
		if int(id) >= len(c.Trigram.Tokens) {
			continue
		}
		tok := c.Trigram.Tokens[id]
		if strings.Contains(tok, q) {
			out = append(out, tok)
		}
	}
	return out
}
