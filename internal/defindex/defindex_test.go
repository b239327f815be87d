package defindex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func makeUserServiceIndex(t *testing.T) *DefinitionIndex {
	t.Helper()
	idx := New("/repo", []string{"cs"}, time.Now())
	idx.AppendFile(ParsedFile{
		Path: "UserService.cs",
		Defs: []DefinitionEntry{
			{Name: "UserService", Kind: KindClass, LineStart: 1, LineEnd: 60},
			{Name: "GetUserAsync", Kind: KindMethod, LineStart: 35, LineEnd: 50, Parent: "UserService"},
		},
	})
	return idx
}

func TestContainsLineLookup(t *testing.T) {
	idx := makeUserServiceIndex(t)
	defs, _, err := idx.Lookup(LookupQuery{File: "UserService.cs", ContainsLine: 42})
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, "GetUserAsync", defs[0].Name)
	require.Equal(t, "UserService", defs[0].Parent)
}

func TestIncrementalRemove(t *testing.T) {
	idx := New("/repo", []string{"cs"}, time.Now())
	idx.AppendFile(ParsedFile{Path: "file0.cs", Defs: []DefinitionEntry{{Name: "ClassA", Kind: KindClass}}})
	idx.AppendFile(ParsedFile{Path: "file1.cs", Defs: []DefinitionEntry{{Name: "ClassB", Kind: KindClass}}})

	id0 := idx.PathToID["file0.cs"]
	idx.RemoveFile(id0)

	require.Empty(t, idx.NameIndex["classa"])
	require.NotEmpty(t, idx.NameIndex["classb"])
	_, ok := idx.PathToID["file0.cs"]
	require.False(t, ok)
}

func TestTombstoneRatioWarningThreshold(t *testing.T) {
	idx := New("/repo", nil, time.Now())
	idx.AppendFile(ParsedFile{Path: "a.cs", Defs: []DefinitionEntry{{Name: "A", Kind: KindClass}}})
	idx.AppendFile(ParsedFile{Path: "b.cs", Defs: []DefinitionEntry{{Name: "B", Kind: KindClass}}})
	idx.AppendFile(ParsedFile{Path: "c.cs", Defs: []DefinitionEntry{{Name: "C", Kind: KindClass}}})
	idx.AppendFile(ParsedFile{Path: "d.cs", Defs: []DefinitionEntry{{Name: "D", Kind: KindClass}}})

	require.False(t, idx.TombstoneRatioExceeds(2))
	idx.RemoveFile(idx.PathToID["a.cs"])
	idx.RemoveFile(idx.PathToID["b.cs"])
	// 2 tombstoned, 2 active: ratio 1:1, under the 2:1 threshold
	require.False(t, idx.TombstoneRatioExceeds(2))
	idx.RemoveFile(idx.PathToID["c.cs"])
	// 3 tombstoned, 1 active: 3 > 1*2 -> ratio exceeded
	require.True(t, idx.TombstoneRatioExceeds(2))
}

func TestSecondaryIndexInvariants(t *testing.T) {
	idx := makeUserServiceIndex(t)
	for fileID, ids := range idx.FileIndex {
		for _, id := range ids {
			require.Equal(t, fileID, idx.Definitions[id].FileID)
		}
	}
}

func TestParseOneExtraLanguagesGenericWalk(t *testing.T) {
	cases := []struct {
		path     string
		src      string
		wantName string
		wantKind DefinitionKind
	}{
		{"main.go", "package main\n\nfunc Run() {}\n", "Run", KindFunction},
		{"app.py", "def handler():\n    pass\n", "handler", KindFunction},
		{"widget.js", "class Widget {\n  render() {}\n}\n", "Widget", KindClass},
		{"widget.jsx", "function mount() {}\n", "mount", KindFunction},
		{"lib.rs", "fn compute() {}\n", "compute", KindFunction},
	}
	for _, c := range cases {
		pf := ParseOne(c.path, []byte(c.src))
		require.False(t, pf.ParseFail, c.path)
		found := false
		for _, d := range pf.Defs {
			if d.Name == c.wantName && d.Kind == c.wantKind {
				found = true
			}
		}
		require.True(t, found, "%s: expected %s %q in %+v", c.path, c.wantKind, c.wantName, pf.Defs)
	}
}

func TestParseOneJSMethodGetsClassParent(t *testing.T) {
	pf := ParseOne("widget.js", []byte("class Widget {\n  render() {}\n}\n"))
	for _, d := range pf.Defs {
		if d.Name == "render" {
			require.Equal(t, KindMethod, d.Kind)
			require.Equal(t, "Widget", d.Parent)
			return
		}
	}
	t.Fatalf("render method not extracted: %+v", pf.Defs)
}

func TestDefinitionKindRoundTrip(t *testing.T) {
	for _, k := range allKinds {
		parsed, ok := ParseDefinitionKind(string(k))
		require.True(t, ok)
		require.Equal(t, k, parsed)
	}
	parsed, ok := ParseDefinitionKind("ENUMMEMBER")
	require.True(t, ok)
	require.Equal(t, KindEnumMember, parsed)
}

func TestCallGraphInvariantNonEmptyOrAbsent(t *testing.T) {
	idx := New("/repo", nil, time.Now())
	idx.AppendFile(ParsedFile{
		Path: "a.cs",
		Defs: []DefinitionEntry{{Name: "Do", Kind: KindMethod}},
		Calls: map[int][]CallSite{
			0: {{MethodName: "Helper", Line: 5}},
		},
	})
	for id, def := range idx.Definitions {
		if def.Kind != KindMethod {
			continue
		}
		calls, ok := idx.MethodCalls[uint32(id)]
		if ok {
			require.NotEmpty(t, calls)
		}
	}
}
