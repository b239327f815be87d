package defindex

import "strings"

// ParsedFile is what a per-file (or per-chunk) parse worker produces.
// Call keys are LOCAL indices into Defs; the merger rewrites them to
// global def-ids via base_def_idx + local_idx.
type ParsedFile struct {
	Path      string
	Defs      []DefinitionEntry
	Calls     map[int][]CallSite // local def index -> call sites
	Stats     map[int]CodeStats
	Lossy     bool
	ByteSize  int64
	ParseFail bool
}

// AppendFile merges one parsed file into the global index under a fresh
// (or reused, on replace) file_id, updating every secondary index in
// lock-step.
func (d *DefinitionIndex) AppendFile(pf ParsedFile) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	var fileID uint32
	if id, ok := d.PathToID[pf.Path]; ok {
		d.removeFileLocked(id)
		fileID = id
		d.Files[fileID] = pf.Path
	} else {
		fileID = uint32(len(d.Files))
		d.Files = append(d.Files, pf.Path)
	}
	d.PathToID[pf.Path] = fileID

	if pf.Lossy {
		d.LossyFileCount++
	}
	if pf.ParseFail {
		d.ParseErrors++
	}
	if len(pf.Defs) == 0 {
		d.EmptyFileIDs = append(d.EmptyFileIDs, EmptyFile{FileID: fileID, ByteSize: pf.ByteSize})
	}

	baseDefIdx := uint32(len(d.Definitions))
	var newDefIDs []uint32
	for _, def := range pf.Defs {
		def.FileID = fileID
		defID := uint32(len(d.Definitions))
		d.Definitions = append(d.Definitions, def)
		newDefIDs = append(newDefIDs, defID)

		lname := strings.ToLower(def.Name)
		d.NameIndex[lname] = append(d.NameIndex[lname], defID)
		d.KindIndex[def.Kind] = append(d.KindIndex[def.Kind], defID)

		seenAttr := make(map[string]struct{})
		for _, attr := range def.Attributes {
			la := strings.ToLower(strings.SplitN(attr, "(", 2)[0])
			if _, dup := seenAttr[la]; dup {
				continue
			}
			seenAttr[la] = struct{}{}
			d.AttributeIndex[la] = append(d.AttributeIndex[la], defID)
		}
		for _, bt := range def.BaseTypes {
			lbt := strings.ToLower(bt)
			d.BaseTypeIndex[lbt] = append(d.BaseTypeIndex[lbt], defID)
		}
		d.FileIndex[fileID] = append(d.FileIndex[fileID], defID)
	}

	for localIdx, sites := range pf.Calls {
		if localIdx < 0 || localIdx >= len(newDefIDs) {
			continue
		}
		d.MethodCalls[baseDefIdx+uint32(localIdx)] = sites
	}
	for localIdx, stats := range pf.Stats {
		if localIdx < 0 || localIdx >= len(newDefIDs) {
			continue
		}
		d.CodeStats[baseDefIdx+uint32(localIdx)] = stats
	}

	return fileID
}

// RemoveFile tombstones every definition belonging to fileID and prunes it
// from every secondary index ("Remove").
func (d *DefinitionIndex) RemoveFile(fileID uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeFileLocked(fileID)
}

func (d *DefinitionIndex) removeFileLocked(fileID uint32) {
	ids := d.FileIndex[fileID]
	if len(ids) == 0 {
		for path, id := range d.PathToID {
			if id == fileID {
				delete(d.PathToID, path)
			}
		}
		return
	}
	remove := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
		d.Definitions[id].Tombstone = true
		delete(d.MethodCalls, id)
		delete(d.CodeStats, id)
	}

	pruneIndex(d.NameIndex, remove)
	pruneKindIndex(d.KindIndex, remove)
	pruneIndex(d.AttributeIndex, remove)
	pruneIndex(d.BaseTypeIndex, remove)

	delete(d.FileIndex, fileID)
	for path, id := range d.PathToID {
		if id == fileID {
			delete(d.PathToID, path)
		}
	}
}

func pruneIndex(idx map[string][]uint32, remove map[uint32]struct{}) {
	for key, ids := range idx {
		kept := ids[:0]
		for _, id := range ids {
			if _, gone := remove[id]; !gone {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(idx, key)
		} else {
			idx[key] = kept
		}
	}
}

func pruneKindIndex(idx map[DefinitionKind][]uint32, remove map[uint32]struct{}) {
	for key, ids := range idx {
		kept := ids[:0]
		for _, id := range ids {
			if _, gone := remove[id]; !gone {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(idx, key)
		} else {
			idx[key] = kept
		}
	}
}
