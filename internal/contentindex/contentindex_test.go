package contentindex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, files map[string]string) *ContentIndex {
	t.Helper()
	ci := New("/repo", []string{"cs"}, time.Now(), 0)
	content := make(map[string]string, len(files))
	for path, text := range files {
		content[path] = text
		lines := splitLines(text)
		ci.AddFile(path, lines)
	}
	ci.FileReader = func(path string) (string, error) { return content[path], nil }
	return ci
}

func splitLines(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == '\n' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	out = append(out, cur)
	return out
}

func TestMultiTermANDSearch(t *testing.T) {
	ci := newTestIndex(t, map[string]string{
		"both.cs":         "HttpClient ILogger",
		"only_client.cs":  "HttpClient",
		"only_logger.cs":  "ILogger",
		"neither.cs":      "class Empty { int x; }",
	})
	// Mixed-case terms: index tokens are always lowercase, so the query
	// side must lower them before lookup.
	res, err := ci.Search(Query{Terms: []string{"HttpClient", "ILogger"}, Mode: ModeAND})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	require.Equal(t, "both.cs", res.Files[0].Path)
}

func TestPhraseWithPunctuation(t *testing.T) {
	ci := newTestIndex(t, map[string]string{
		"a.cs": "var client = new HttpClient();",
		"b.cs": "// HttpClient is useful\n// but we use new patterns here",
	})
	res, err := ci.Search(Query{Terms: []string{"new HttpClient"}, Phrase: true, ShowLines: true})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	require.Equal(t, "a.cs", res.Files[0].Path)
}

func TestRegexOverTokens(t *testing.T) {
	ci := newTestIndex(t, map[string]string{
		"a.cs": "ITenantCache IUserCache ISessionCache INotAMatch",
	})
	res, err := ci.Search(Query{Terms: []string{"i.*cache"}, Regex: true})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	require.Equal(t, 3, res.Files[0].Occurrences)
}

func TestSubstringWithTrigrams(t *testing.T) {
	ci := newTestIndex(t, map[string]string{
		"a.cs": "databaseconnectionfactory",
	})
	res, err := ci.Search(Query{Terms: []string{"connection"}})
	require.NoError(t, err)
	require.Contains(t, res.MatchedTokens, "databaseconnectionfactory")
}

func TestSubstringMixedCaseTermMatchesLowercasePostings(t *testing.T) {
	ci := newTestIndex(t, map[string]string{
		"a.cs": "databaseconnectionfactory",
	})
	res, err := ci.Search(Query{Terms: []string{"Connection"}})
	require.NoError(t, err)
	require.Contains(t, res.MatchedTokens, "databaseconnectionfactory")
}

func TestSubstringShortTermFallsBackToLinearScan(t *testing.T) {
	ci := newTestIndex(t, map[string]string{
		"a.cs": "abacus abstract zzz",
	})
	res, err := ci.Search(Query{Terms: []string{"ab"}})
	require.NoError(t, err)
	require.NotEmpty(t, res.MatchedTokens)
	for _, tok := range res.MatchedTokens {
		require.Contains(t, tok, "ab")
	}
}

func TestRankingRareTermHigherIDF(t *testing.T) {
	ci := New("/repo", nil, time.Now(), 0)
	ci.AddFile("a.cs", []string{"common rare"})
	ci.AddFile("b.cs", []string{"common"})
	ci.AddFile("c.cs", []string{"common"})

	res, err := ci.Search(Query{Terms: []string{"common"}})
	require.NoError(t, err)
	commonScore := res.Files[0].Score

	res2, err := ci.Search(Query{Terms: []string{"rare"}})
	require.NoError(t, err)
	rareScore := res2.Files[0].Score

	require.Greater(t, rareScore, commonScore)
}

func TestIndexInvariants(t *testing.T) {
	ci := newTestIndex(t, map[string]string{
		"a.cs": "foo bar",
		"b.cs": "foo baz",
	})
	require.Equal(t, len(ci.Files), len(ci.FileTokenCounts))
	for _, postings := range ci.Index {
		seen := map[uint32]bool{}
		for _, p := range postings {
			require.False(t, seen[p.FileID], "duplicate file_id in posting list")
			seen[p.FileID] = true
			require.Less(t, int(p.FileID), len(ci.Files))
		}
	}
}

func TestIncrementalRemoveThenAddIsIdempotent(t *testing.T) {
	ci := newTestIndex(t, map[string]string{"a.cs": "foo bar baz"})
	before := ci.TotalTokens
	ci.RemoveFile(ci.PathToID["a.cs"])
	ci.ReplaceFile("a.cs", []string{"foo bar baz"})
	require.Equal(t, before, ci.TotalTokens)
}

func TestUnchangedHashDetectsIdenticalContent(t *testing.T) {
	ci := newTestIndex(t, map[string]string{"a.cs": "foo bar baz"})
	require.True(t, ci.UnchangedHash("a.cs", []string{"foo bar baz"}))
	require.False(t, ci.UnchangedHash("a.cs", []string{"foo bar quux"}))
	require.False(t, ci.UnchangedHash("never-indexed.cs", []string{"foo bar baz"}))
}

func TestUnchangedHashAfterReplaceReflectsNewContent(t *testing.T) {
	ci := newTestIndex(t, map[string]string{"a.cs": "foo bar baz"})
	ci.ReplaceFile("a.cs", []string{"quux"})
	require.False(t, ci.UnchangedHash("a.cs", []string{"foo bar baz"}))
	require.True(t, ci.UnchangedHash("a.cs", []string{"quux"}))
}
