package defindex

import (
	"regexp"
	"strings"
)

// LookupQuery is the argument surface for search_definitions.
type LookupQuery struct {
	Names        []string
	Kind         string
	Attribute    string
	BaseType     string
	Parent       string
	File         string
	ContainsLine int // 0 means unset
	Regex        bool
	MaxResults   int
}

// Lookup returns definitions matching q, deterministic in def-id order.
// With ContainsLine set, only the innermost definition spanning that line
// is returned.
func (d *DefinitionIndex) Lookup(q LookupQuery) ([]DefinitionEntry, []uint32, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	candidate := make(map[uint32]struct{})
	haveCandidate := false

	addAll := func(ids []uint32) {
		if !haveCandidate {
			for _, id := range ids {
				candidate[id] = struct{}{}
			}
			haveCandidate = true
			return
		}
		keep := make(map[uint32]struct{})
		for _, id := range ids {
			if _, ok := candidate[id]; ok {
				keep[id] = struct{}{}
			}
		}
		candidate = keep
	}

	if len(q.Names) > 0 {
		var re *regexp.Regexp
		var err error
		if q.Regex && len(q.Names) == 1 {
			re, err = regexp.Compile("(?i)" + q.Names[0])
			if err != nil {
				return nil, nil, err
			}
		}
		var ids []uint32
		if re != nil {
			for name, nids := range d.NameIndex {
				if re.MatchString(name) {
					ids = append(ids, nids...)
				}
			}
		} else {
			for _, n := range q.Names {
				ids = append(ids, d.NameIndex[strings.ToLower(strings.TrimSpace(n))]...)
			}
		}
		addAll(ids)
	}
	if q.Kind != "" {
		if k, ok := ParseDefinitionKind(q.Kind); ok {
			addAll(d.KindIndex[k])
		} else {
			addAll(nil)
		}
	}
	if q.Attribute != "" {
		addAll(d.AttributeIndex[strings.ToLower(q.Attribute)])
	}
	if q.BaseType != "" {
		addAll(d.BaseTypeIndex[strings.ToLower(q.BaseType)])
	}
	if q.File != "" {
		if id, ok := d.PathToID[q.File]; ok {
			addAll(d.FileIndex[id])
		} else {
			addAll(nil)
		}
	}

	var ids []uint32
	if haveCandidate {
		for id := range candidate {
			ids = append(ids, id)
		}
	} else {
		for id := range d.Definitions {
			ids = append(ids, uint32(id))
		}
	}

	var out []DefinitionEntry
	var outIDs []uint32
	for _, id := range sortUint32(ids) {
		if int(id) >= len(d.Definitions) {
			continue
		}
		def := d.Definitions[id]
		if def.Tombstone {
			continue
		}
		if q.Parent != "" && !strings.EqualFold(def.Parent, q.Parent) {
			continue
		}
		if q.ContainsLine > 0 && !(def.LineStart <= q.ContainsLine && q.ContainsLine <= def.LineEnd) {
			continue
		}
		out = append(out, def)
		outIDs = append(outIDs, id)
		if q.MaxResults > 0 && len(out) >= q.MaxResults && q.ContainsLine == 0 {
			break
		}
	}
	if q.ContainsLine > 0 && len(out) > 1 {
		// Keep only the innermost (narrowest) definition spanning the line.
		best := 0
		for i := range out {
			if out[i].LineEnd-out[i].LineStart < out[best].LineEnd-out[best].LineStart {
				best = i
			}
		}
		out, outIDs = out[best:best+1], outIDs[best:best+1]
	}
	return out, outIDs, nil
}

func sortUint32(ids []uint32) []uint32 {
	// simple insertion sort is fine; def-id lists are small relative to
	// total file counts in practice, and determinism matters more than
	// micro-optimizing this path.
	out := append([]uint32(nil), ids...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
