package fileindex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestIndex() *FileIndex {
	idx := New("/repo", time.Now(), 0)
	idx.SetEntries([]FileEntry{
		{Path: "src/user.go", Size: 100},
		{Path: "src/user_service.go", Size: 200},
		{Path: "src/account.go", Size: 50},
		{Path: "docs/", IsDir: true},
	})
	return idx
}

func TestExactMatchRanksFirst(t *testing.T) {
	idx := newTestIndex()
	results, _, err := idx.Search(Query{Pattern: "user"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "src/user.go", results[0].Path)
}

func TestPrefixBeatsContains(t *testing.T) {
	idx := New("/repo", time.Now(), 0)
	idx.SetEntries([]FileEntry{
		{Path: "a_user_helper.go"},
		{Path: "user_helper.go"},
	})
	results, _, err := idx.Search(Query{Pattern: "user"})
	require.NoError(t, err)
	require.Equal(t, "user_helper.go", results[0].Path)
}

func TestDirsOnlyFilter(t *testing.T) {
	idx := newTestIndex()
	results, _, err := idx.Search(Query{Pattern: "doc", DirsOnly: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].IsDir)
}

func TestCommaSeparatedOrTerms(t *testing.T) {
	idx := newTestIndex()
	results, _, err := idx.Search(Query{Pattern: "account, service"})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestCountOnlyOmitsResults(t *testing.T) {
	idx := newTestIndex()
	results, summary, err := idx.Search(Query{Pattern: "user", CountOnly: true})
	require.NoError(t, err)
	require.Empty(t, results)
	require.Equal(t, 2, summary.TotalMatches)
}

func TestEmptyPatternIsInvalidArgs(t *testing.T) {
	idx := newTestIndex()
	_, _, err := idx.Search(Query{Pattern: ""})
	require.Error(t, err)
}

func TestRegexMode(t *testing.T) {
	idx := newTestIndex()
	results, _, err := idx.Search(Query{Pattern: "^user.*", Regex: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestInvalidRegexReportsError(t *testing.T) {
	idx := newTestIndex()
	_, _, err := idx.Search(Query{Pattern: "(unterminated", Regex: true})
	require.Error(t, err)
}
