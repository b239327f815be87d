package callgraph

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codeindex/internal/defindex"
)

func buildChain(t *testing.T) *defindex.DefinitionIndex {
	t.Helper()
	idx := defindex.New("/repo", []string{"cs"}, time.Now())
	idx.AppendFile(defindex.ParsedFile{
		Path: "Controller.cs",
		Defs: []defindex.DefinitionEntry{
			{Name: "HandleRequest", Kind: defindex.KindMethod, Parent: "Controller"},
		},
		Calls: map[int][]defindex.CallSite{
			0: {{MethodName: "DoWork", ReceiverType: "Service", Line: 10}},
		},
	})
	idx.AppendFile(defindex.ParsedFile{
		Path: "Service.cs",
		Defs: []defindex.DefinitionEntry{
			{Name: "DoWork", Kind: defindex.KindMethod, Parent: "Service"},
		},
		Calls: map[int][]defindex.CallSite{
			0: {{MethodName: "Helper", ReceiverType: "", Line: 20}},
		},
	})
	idx.AppendFile(defindex.ParsedFile{
		Path: "Helpers.cs",
		Defs: []defindex.DefinitionEntry{
			{Name: "Helper", Kind: defindex.KindMethod, Parent: "Helpers"},
		},
	})
	return idx
}

func TestWhoCallsUpDirectionDepthOne(t *testing.T) {
	idx := buildChain(t)
	nodes := Who(idx, Query{Method: "DoWork", Class: "Service", Direction: DirectionUp, Depth: 1})
	require.Len(t, nodes, 1)
	require.Equal(t, "HandleRequest", nodes[0].Name)
	require.Equal(t, 1, nodes[0].Depth)
}

func TestWhoCallsUpDirectionUnboundedDepthWalksTransitively(t *testing.T) {
	idx := buildChain(t)
	nodes := Who(idx, Query{Method: "Helper", Direction: DirectionUp, Depth: 0})
	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	require.Contains(t, names, "DoWork")
	require.Contains(t, names, "HandleRequest")
}

func TestWhoCallsDownDirection(t *testing.T) {
	idx := buildChain(t)
	nodes := Who(idx, Query{Method: "HandleRequest", Class: "Controller", Direction: DirectionDown, Depth: 1})
	require.Len(t, nodes, 1)
	require.Equal(t, "DoWork", nodes[0].Name)
}

func TestWhoCallsDownDirectionTransitive(t *testing.T) {
	idx := buildChain(t)
	nodes := Who(idx, Query{Method: "HandleRequest", Class: "Controller", Direction: DirectionDown, Depth: 0})
	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	require.Contains(t, names, "DoWork")
	require.Contains(t, names, "Helper")
}

func TestWhoCallsNoSeedsReturnsEmpty(t *testing.T) {
	idx := buildChain(t)
	nodes := Who(idx, Query{Method: "DoesNotExist", Direction: DirectionUp, Depth: 1})
	require.Empty(t, nodes)
}

func TestExpandInterfacesIncludesImplementations(t *testing.T) {
	idx := defindex.New("/repo", []string{"cs"}, time.Now())
	idx.AppendFile(defindex.ParsedFile{
		Path: "IRepo.cs",
		Defs: []defindex.DefinitionEntry{
			{Name: "Save", Kind: defindex.KindMethod, Parent: "IRepository"},
		},
	})
	idx.AppendFile(defindex.ParsedFile{
		Path: "Repo.cs",
		Defs: []defindex.DefinitionEntry{
			{Name: "Repository", Kind: defindex.KindClass, BaseTypes: []string{"IRepository"}},
			{Name: "Save", Kind: defindex.KindMethod, Parent: "Repository"},
		},
	})
	idx.AppendFile(defindex.ParsedFile{
		Path: "Caller.cs",
		Defs: []defindex.DefinitionEntry{
			{Name: "Persist", Kind: defindex.KindMethod, Parent: "Caller"},
		},
		Calls: map[int][]defindex.CallSite{
			0: {{MethodName: "Save", ReceiverType: "Repository", Line: 7}},
		},
	})

	nodes := Who(idx, Query{Method: "Save", Class: "IRepository", Direction: DirectionUp, Depth: 1, ResolveInterfaces: true})
	require.Len(t, nodes, 1)
	require.Equal(t, "Persist", nodes[0].Name)
}

func TestWhoCallsUpInterfaceReceiverBeyondDepthOne(t *testing.T) {
	idx := defindex.New("/repo", []string{"cs"}, time.Now())
	idx.AppendFile(defindex.ParsedFile{
		Path: "Store.cs",
		Defs: []defindex.DefinitionEntry{
			{Name: "Store", Kind: defindex.KindClass},
			{Name: "Save", Kind: defindex.KindMethod, Parent: "Store"},
		},
	})
	// Wrapper implements IWrapper; its Do method calls Store.Save.
	idx.AppendFile(defindex.ParsedFile{
		Path: "Wrapper.cs",
		Defs: []defindex.DefinitionEntry{
			{Name: "Wrapper", Kind: defindex.KindClass, BaseTypes: []string{"IWrapper"}},
			{Name: "Do", Kind: defindex.KindMethod, Parent: "Wrapper"},
		},
		Calls: map[int][]defindex.CallSite{
			1: {{MethodName: "Save", ReceiverType: "Store", Line: 5}},
		},
	})
	// Outer.Run calls Do through the IWrapper interface, so reaching it at
	// depth 2 requires interface resolution on the intermediate frontier.
	idx.AppendFile(defindex.ParsedFile{
		Path: "Outer.cs",
		Defs: []defindex.DefinitionEntry{
			{Name: "Run", Kind: defindex.KindMethod, Parent: "Outer"},
		},
		Calls: map[int][]defindex.CallSite{
			0: {{MethodName: "Do", ReceiverType: "IWrapper", Line: 9}},
		},
	})

	nodes := Who(idx, Query{Method: "Save", Class: "Store", Direction: DirectionUp, Depth: 2})
	byName := map[string]int{}
	for _, n := range nodes {
		byName[n.Name] = n.Depth
	}
	require.Equal(t, 1, byName["Do"])
	require.Equal(t, 2, byName["Run"])
}

func TestSafetyCeilingBoundsVisitedNodes(t *testing.T) {
	idx := defindex.New("/repo", []string{"cs"}, time.Now())
	idx.AppendFile(defindex.ParsedFile{
		Path: "Seed.cs",
		Defs: []defindex.DefinitionEntry{{Name: "Root", Kind: defindex.KindMethod, Parent: "Root"}},
	})
	for i := 0; i < 50; i++ {
		idx.AppendFile(defindex.ParsedFile{
			Path:  fmt.Sprintf("gen%d.cs", i),
			Defs:  []defindex.DefinitionEntry{{Name: "Root", Kind: defindex.KindMethod, Parent: "Root"}},
			Calls: map[int][]defindex.CallSite{0: {{MethodName: "Root", Line: i}}},
		})
	}
	nodes := Who(idx, Query{Method: "Root", Direction: DirectionUp, Depth: 0})
	require.LessOrEqual(t, len(nodes), safetyCeiling)
}
