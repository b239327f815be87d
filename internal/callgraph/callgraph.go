// Package callgraph implements the def-id -> call-site BFS traversal over
// a defindex.DefinitionIndex.
package callgraph

import (
	"strings"

	"github.com/standardbeagle/codeindex/internal/defindex"
)

// safetyCeiling bounds total visited nodes for worst-case protection
//.
const safetyCeiling = 10000

// Direction selects which way the BFS walks the call graph.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Query is the argument surface for search_callers.
type Query struct {
	Method            string
	Class             string // "" means unscoped
	Direction         Direction
	Depth             int
	ResolveInterfaces bool
}

// Node is one call-graph traversal hit.
type Node struct {
	DefID    uint32
	Name     string
	Parent   string
	Depth    int
	CallLine int
}

// Who answers "who calls / is called by" method (optionally scoped to
// class). The index's read lock is held for the whole
// traversal so a concurrent incremental update cannot tombstone entries
// mid-walk.
func Who(idx *defindex.DefinitionIndex, q Query) []Node {
	idx.RLock()
	defer idx.RUnlock()

	seeds := seedDefIDs(idx, q)
	if q.ResolveInterfaces {
		seeds = expandInterfaces(idx, seeds, q)
	}
	if q.Direction == DirectionDown {
		return bfsDown(idx, seeds, q.Depth)
	}
	return bfsUp(idx, seeds, q.Depth)
}

func seedDefIDs(idx *defindex.DefinitionIndex, q Query) map[uint32]struct{} {
	seeds := make(map[uint32]struct{})
	lname := strings.ToLower(q.Method)
	for id, def := range idx.Definitions {
		if def.Tombstone {
			continue
		}
		if strings.ToLower(def.Name) != lname {
			continue
		}
		if q.Class != "" && !strings.EqualFold(def.Parent, q.Class) {
			continue
		}
		seeds[uint32(id)] = struct{}{}
	}
	return seeds
}

// expandInterfaces adds, for every seed, the def-ids of methods on types
// that list the seed's parent in BaseTypes (i.e. implement an interface
// the seed belongs to), and symmetrically includes implementations when
// the seed itself is on an interface.
func expandInterfaces(idx *defindex.DefinitionIndex, seeds map[uint32]struct{}, q Query) map[uint32]struct{} {
	out := make(map[uint32]struct{}, len(seeds))
	for id := range seeds {
		out[id] = struct{}{}
	}
	lname := strings.ToLower(q.Method)
	for seedID := range seeds {
		seedParent := idx.Definitions[seedID].Parent
		if seedParent == "" {
			continue
		}
		for id, def := range idx.Definitions {
			if def.Tombstone || strings.ToLower(def.Name) != lname {
				continue
			}
			// BaseTypes live on the type entry, not the method entry.
			if implementsInterface(idx, def.Parent, seedParent) {
				out[uint32(id)] = struct{}{}
			}
		}
	}
	return out
}

// targetSet is one BFS level's worth of methods being called into: the
// seed set at depth 1, the previous frontier at every level after.
type targetSet struct {
	names   map[string]struct{}
	parents map[uint32]string
}

func newTargetSet(idx *defindex.DefinitionIndex, ids []uint32) targetSet {
	ts := targetSet{names: make(map[string]struct{}), parents: make(map[uint32]string)}
	for _, id := range ids {
		def := idx.Definitions[id]
		ts.names[strings.ToLower(def.Name)] = struct{}{}
		ts.parents[id] = def.Parent
	}
	return ts
}

// matches reports whether cs calls into the set: names match and either
// the receiver type is unresolved (name-only match), equals a target's
// parent, or is an interface the target's parent implements. The same
// rule applies at every BFS level.
func (ts targetSet) matches(idx *defindex.DefinitionIndex, cs defindex.CallSite) bool {
	if _, ok := ts.names[strings.ToLower(cs.MethodName)]; !ok {
		return false
	}
	for _, parent := range ts.parents {
		if cs.ReceiverType == "" || strings.EqualFold(cs.ReceiverType, parent) || implementsInterface(idx, parent, cs.ReceiverType) {
			return true
		}
	}
	return false
}

// bfsUp walks the inverse of method_calls, level by level: each level's
// callers become the next level's targets.
func bfsUp(idx *defindex.DefinitionIndex, seeds map[uint32]struct{}, depth int) []Node {
	var seedIDs []uint32
	for id := range seeds {
		seedIDs = append(seedIDs, id)
	}
	targets := newTargetSet(idx, seedIDs)

	visited := make(map[uint32]struct{})
	var out []Node
	level := 0

	for depth <= 0 || level < depth {
		if len(targets.names) == 0 || len(visited) >= safetyCeiling {
			break
		}
		level++
		var next []uint32
		for callerID, calls := range idx.MethodCalls {
			if _, already := visited[callerID]; already {
				continue
			}
			for _, cs := range calls {
				if !targets.matches(idx, cs) {
					continue
				}
				visited[callerID] = struct{}{}
				def := idx.Definitions[callerID]
				out = append(out, Node{DefID: callerID, Name: def.Name, Parent: def.Parent, Depth: level, CallLine: cs.Line})
				next = append(next, callerID)
				break
			}
			if len(visited) >= safetyCeiling {
				break
			}
		}
		if len(next) == 0 {
			break
		}
		targets = newTargetSet(idx, next)
	}
	return out
}

// bfsDown walks method_calls[seed] forward, resolving each call site back
// to a def-id via the name index restricted (when possible) to the
// receiver type.
func bfsDown(idx *defindex.DefinitionIndex, seeds map[uint32]struct{}, depth int) []Node {
	visited := make(map[uint32]struct{})
	var frontier []uint32
	for id := range seeds {
		frontier = append(frontier, id)
		visited[id] = struct{}{}
	}

	var out []Node
	level := 0
	for depth <= 0 || level < depth {
		if len(frontier) == 0 || len(visited) >= safetyCeiling {
			break
		}
		level++
		var next []uint32
		for _, id := range frontier {
			for _, cs := range idx.MethodCalls[id] {
				target, ok := resolveCallTarget(idx, cs)
				if !ok {
					continue
				}
				if _, seen := visited[target]; seen {
					continue
				}
				visited[target] = struct{}{}
				def := idx.Definitions[target]
				out = append(out, Node{DefID: target, Name: def.Name, Parent: def.Parent, Depth: level, CallLine: cs.Line})
				next = append(next, target)
				if len(visited) >= safetyCeiling {
					break
				}
			}
		}
		frontier = next
	}
	return out
}

func resolveCallTarget(idx *defindex.DefinitionIndex, cs defindex.CallSite) (uint32, bool) {
	candidates := idx.NameIndex[strings.ToLower(cs.MethodName)]
	if len(candidates) == 0 {
		return 0, false
	}
	if cs.ReceiverType != "" {
		for _, id := range candidates {
			if int(id) < len(idx.Definitions) && strings.EqualFold(idx.Definitions[id].Parent, cs.ReceiverType) {
				return id, true
			}
		}
	}
	return candidates[0], true
}

func implementsInterface(idx *defindex.DefinitionIndex, typeName, ifaceName string) bool {
	if typeName == "" || ifaceName == "" {
		return false
	}
	for _, def := range idx.Definitions {
		if def.Tombstone || !strings.EqualFold(def.Name, typeName) {
			continue
		}
		for _, bt := range def.BaseTypes {
			if strings.EqualFold(bt, ifaceName) {
				return true
			}
		}
	}
	return false
}
