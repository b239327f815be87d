package contentindex

import (
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/standardbeagle/codeindex/internal/errs"
	"github.com/standardbeagle/codeindex/internal/tokenize"
	"github.com/standardbeagle/codeindex/pkg/pathutil"
)

// FileReader reads a file's full content for phrase verification and
// context-line rendering. Queries hold no lock while reading.
type FileReader func(path string) (string, error)

func defaultFileReader(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Mode selects OR vs AND term combination.
type Mode int

const (
	ModeOR Mode = iota
	ModeAND
)

// Query is the full argument surface for a content search, matching the
// search_grep tool.
type Query struct {
	Terms        []string
	Mode         Mode
	Regex        bool
	Phrase       bool
	Substring    *bool // nil = default (true unless Regex or Phrase set)
	Dir          string
	Ext          string
	ExcludeDir   []string
	Exclude      []string
	ContextLines int
	ShowLines    bool
	MaxResults   int
	CountOnly    bool
}

// LineBlock is a run of consecutive matched (or context) lines.
type LineBlock struct {
	StartLine int
	EndLine   int
	Text      []string
}

// FileResult is one file's aggregate score and matched lines.
type FileResult struct {
	Path         string
	Score        float64
	Occurrences  int
	Lines        []uint32
	LineContent  []LineBlock
	TermsMatched int
}

// Result is the full output of a content query.
type Result struct {
	Files         []FileResult
	TotalMatches  int
	MatchedTokens []string // only set for substring queries
}

// effectiveSubstring resolves the substring/regex/phrase mode:
// phrase, else substring (default true for plain
// identifiers, disabled when regex or phrase is set; error if caller sets
// substring explicitly together with regex or phrase).
func (q Query) effectiveSubstring() (bool, error) {
	if q.Phrase {
		if q.Substring != nil && *q.Substring {
			return false, errs.InvalidArgs("cannot combine substring=true with phrase=true")
		}
		return false, nil
	}
	if q.Regex {
		if q.Substring != nil && *q.Substring {
			return false, errs.InvalidArgs("cannot combine substring=true with regex=true")
		}
		return false, nil
	}
	if q.Substring != nil {
		return *q.Substring, nil
	}
	return true, nil
}

// Search dispatches to exactly one search mode per call.
func (c *ContentIndex) Search(q Query) (*Result, error) {
	if q.Phrase {
		return c.searchPhrase(q)
	}
	useSubstring, err := q.effectiveSubstring()
	if err != nil {
		return nil, err
	}
	if useSubstring && !q.Regex {
		return c.searchSubstring(q)
	}
	return c.searchTokens(q)
}

func (c *ContentIndex) fileSurvivesFilters(path string, q Query) bool {
	if q.Dir != "" && !pathutil.InDir(path, q.Dir) {
		return false
	}
	if q.Ext != "" {
		if !strings.HasSuffix(path, "."+strings.TrimPrefix(q.Ext, ".")) {
			return false
		}
	}
	for _, ex := range q.ExcludeDir {
		if ex != "" && strings.Contains(path, ex) {
			return false
		}
	}
	for _, ex := range q.Exclude {
		if ex != "" && strings.Contains(path, ex) {
			return false
		}
	}
	return true
}

// expandRegexTerm replaces a term with the set of index keys matching it
// as an anchored case-insensitive regex (regex-over-tokens).
func (c *ContentIndex) expandRegexTerm(term string) ([]string, error) {
	re, err := regexp.Compile("(?i)^(?:" + term + ")$")
	if err != nil {
		return nil, errs.InvalidRegex(term, err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for tok := range c.Index {
		if re.MatchString(tok) {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out, nil
}

type accum struct {
	score        float64
	lines        map[uint32]struct{}
	termsMatched map[int]struct{}
	occurrences  int
}

// searchTokens implements the plain/regex token search and ranking
// pipeline shared by the substring path ("Token search").
func (c *ContentIndex) searchTokens(q Query) (*Result, error) {
	var groups [][]string // one group of expanded token keys per term
	for _, term := range q.Terms {
		if term == "" {
			continue
		}
		if q.Regex {
			keys, err := c.expandRegexTerm(term)
			if err != nil {
				return nil, err
			}
			groups = append(groups, keys)
		} else {
			groups = append(groups, []string{strings.ToLower(term)})
		}
	}
	return c.scoreGroups(groups, q, nil)
}

// scoreGroups runs the IDF/TF accumulation over termIdx->token-key groups.
// matchedTokensOut, if non-nil, is appended with every token key that
// contributed a surviving posting (used by the substring path to report
// which tokens matched).
func (c *ContentIndex) scoreGroups(groups [][]string, q Query, matchedTokensOut *[]string) (*Result, error) {
	c.mu.RLock()
	numFiles := len(c.Files)
	c.mu.RUnlock()

	results := make(map[uint32]*accum)
	tokensWithHits := make(map[string]struct{})

	for termIdx, keys := range groups {
		for _, key := range keys {
			c.mu.RLock()
			postings := c.Index[key]
			c.mu.RUnlock()
			if len(postings) == 0 {
				continue
			}
			df := len(postings)
			idf := math.Log(float64(numFiles) / float64(df))
			for _, p := range postings {
				c.mu.RLock()
				path := ""
				var tokenCount uint32
				if int(p.FileID) < len(c.Files) {
					path = c.Files[p.FileID]
					tokenCount = c.FileTokenCounts[p.FileID]
				}
				c.mu.RUnlock()
				if path == "" || !c.fileSurvivesFilters(path, q) {
					continue
				}
				if tokenCount == 0 {
					continue
				}
				tf := float64(len(p.Lines)) / float64(tokenCount)
				a, ok := results[p.FileID]
				if !ok {
					a = &accum{lines: make(map[uint32]struct{}), termsMatched: make(map[int]struct{})}
					results[p.FileID] = a
				}
				a.score += tf * idf
				a.occurrences += len(p.Lines)
				for _, ln := range p.Lines {
					a.lines[ln] = struct{}{}
				}
				a.termsMatched[termIdx] = struct{}{}
				tokensWithHits[key] = struct{}{}
			}
		}
	}

	numTerms := len(groups)
	var files []FileResult
	for fileID, a := range results {
		if q.Mode == ModeAND && len(a.termsMatched) < numTerms {
			continue
		}
		c.mu.RLock()
		path := c.Files[fileID]
		c.mu.RUnlock()
		lines := sortedLines(a.lines)
		files = append(files, FileResult{
			Path:         path,
			Score:        roundScore(a.score),
			Occurrences:  a.occurrences,
			Lines:        lines,
			TermsMatched: len(a.termsMatched),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Score != files[j].Score {
			return files[i].Score > files[j].Score
		}
		return files[i].Path < files[j].Path
	})

	totalMatches := len(files)
	if q.MaxResults > 0 && len(files) > q.MaxResults {
		files = files[:q.MaxResults]
	}

	if !q.CountOnly && q.ShowLines {
		for i := range files {
			files[i].LineContent = c.loadLineContent(files[i].Path, files[i].Lines, q.ContextLines)
		}
	}

	if matchedTokensOut != nil {
		var toks []string
		for tok := range tokensWithHits {
			toks = append(toks, tok)
		}
		sort.Strings(toks)
		*matchedTokensOut = toks
	}

	res := &Result{Files: files, TotalMatches: totalMatches}
	if q.CountOnly {
		res.Files = nil
	}
	return res, nil
}

func roundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}

func sortedLines(set map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(set))
	for ln := range set {
		out = append(out, ln)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// searchSubstring resolves each term to a candidate token set via the
// trigram index, then runs the same token scoring pipeline over the union
// ("Substring").
func (c *ContentIndex) searchSubstring(q Query) (*Result, error) {
	c.EnsureTrigram()

	var groups [][]string
	for _, term := range q.Terms {
		if term == "" {
			continue
		}
		groups = append(groups, c.CandidateTokens(strings.ToLower(term)))
	}

	var matchedTokens []string
	res, err := c.scoreGroups(groups, q, &matchedTokens)
	if err != nil {
		return nil, err
	}
	res.MatchedTokens = matchedTokens
	return res, nil
}

// searchPhrase: tokenize, AND-intersect
// candidate files via postings, then verify line-by-line against the raw
// phrase text.
func (c *ContentIndex) searchPhrase(q Query) (*Result, error) {
	if len(q.Terms) == 0 {
		return nil, errs.EmptyPhrase("")
	}
	phrase := q.Terms[0]
	toks := tokenize.Tokenize(phrase, 2)
	if len(toks) == 0 {
		return nil, errs.EmptyPhrase(phrase)
	}

	groups := make([][]string, len(toks))
	for i, t := range toks {
		groups[i] = []string{t}
	}
	andQuery := q
	andQuery.Mode = ModeAND
	andQuery.CountOnly = false
	candidates, err := c.scoreGroups(groups, andQuery, nil)
	if err != nil {
		return nil, err
	}

	hasPunct := false
	for _, r := range phrase {
		if !isAlnumSpace(r) {
			hasPunct = true
			break
		}
	}

	var phraseRe *regexp.Regexp
	if !hasPunct {
		escaped := make([]string, len(toks))
		for i, t := range toks {
			escaped[i] = regexp.QuoteMeta(t)
		}
		phraseRe, err = regexp.Compile("(?i)" + strings.Join(escaped, `\s+`))
		if err != nil {
			return nil, errs.InvalidRegex(phrase, err)
		}
	}

	var out []FileResult
	for _, cand := range candidates.Files {
		_, lines, err := c.readFileLines(cand.Path)
		if err != nil {
			continue
		}
		var matchLines []uint32
		var blocks []LineBlock
		for i, line := range lines {
			var matched bool
			if hasPunct {
				matched = strings.Contains(strings.ToLower(line), strings.ToLower(phrase))
			} else {
				matched = phraseRe.MatchString(line)
			}
			if matched {
				ln := uint32(i + 1)
				matchLines = append(matchLines, ln)
				if q.ShowLines {
					blocks = append(blocks, LineBlock{StartLine: int(ln), EndLine: int(ln), Text: []string{line}})
				}
			}
		}
		if len(matchLines) == 0 {
			continue
		}
		out = append(out, FileResult{
			Path:        cand.Path,
			Occurrences: len(matchLines),
			Lines:       matchLines,
			LineContent: mergeLineBlocks(blocks),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Lines) != len(out[j].Lines) {
			return len(out[i].Lines) > len(out[j].Lines)
		}
		return out[i].Path < out[j].Path
	})

	totalMatches := len(out)
	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	res := &Result{Files: out, TotalMatches: totalMatches}
	if q.CountOnly {
		res.Files = nil
	}
	return res, nil
}

func isAlnumSpace(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '\t' || r == '_'
}

func mergeLineBlocks(blocks []LineBlock) []LineBlock {
	if len(blocks) == 0 {
		return nil
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].StartLine < blocks[j].StartLine })
	out := []LineBlock{blocks[0]}
	for _, b := range blocks[1:] {
		last := &out[len(out)-1]
		if b.StartLine <= last.EndLine+1 {
			last.EndLine = b.EndLine
			last.Text = append(last.Text, b.Text...)
			continue
		}
		out = append(out, b)
	}
	return out
}

// readFileLines reads and line-splits a file for phrase verification.
// Overridable in tests via the FileReader field.
func (c *ContentIndex) readFileLines(path string) (string, []string, error) {
	reader := c.FileReader
	if reader == nil {
		reader = defaultFileReader
	}
	content, err := reader(path)
	if err != nil {
		return "", nil, err
	}
	return content, strings.Split(content, "\n"), nil
}

// loadLineContent groups matched lines into LineBlocks with contextLines
// of surrounding context, merging overlapping ranges.
func (c *ContentIndex) loadLineContent(path string, matched []uint32, contextLines int) []LineBlock {
	_, lines, err := c.readFileLines(path)
	if err != nil {
		return nil
	}
	var blocks []LineBlock
	for _, ln := range matched {
		start := int(ln) - contextLines
		if start < 1 {
			start = 1
		}
		end := int(ln) + contextLines
		if end > len(lines) {
			end = len(lines)
		}
		var text []string
		for l := start; l <= end; l++ {
			text = append(text, lines[l-1])
		}
		blocks = append(blocks, LineBlock{StartLine: start, EndLine: end, Text: text})
	}
	return mergeLineBlocks(blocks)
}
