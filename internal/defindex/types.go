// Package defindex implements the AST-derived Definition Index: parsing
// via tree-sitter, the definition record model, its secondary indexes, and
// the tombstone-based incremental-update discipline.
package defindex

import (
	"strings"
	"sync"
	"time"
)

// DefinitionKind is the closed set of entity kinds the parsers emit.
// String values are the stable form used for JSON output, round-trip
// parsing, and as a map key: lowercase for one-word kinds, camelCase for
// multi-word ones (enumMember, typeAlias, storedProcedure, ...).
type DefinitionKind string

const (
	KindClass       DefinitionKind = "class"
	KindInterface   DefinitionKind = "interface"
	KindEnum        DefinitionKind = "enum"
	KindStruct      DefinitionKind = "struct"
	KindRecord      DefinitionKind = "record"
	KindMethod      DefinitionKind = "method"
	KindProperty    DefinitionKind = "property"
	KindField       DefinitionKind = "field"
	KindConstructor DefinitionKind = "constructor"
	KindDelegate    DefinitionKind = "delegate"
	KindEvent       DefinitionKind = "event"
	KindEnumMember  DefinitionKind = "enumMember"

	KindFunction  DefinitionKind = "function"
	KindTypeAlias DefinitionKind = "typeAlias"
	KindVariable  DefinitionKind = "variable"

	KindStoredProcedure DefinitionKind = "storedProcedure"
	KindTable           DefinitionKind = "table"
	KindView            DefinitionKind = "view"
	KindSQLFunction     DefinitionKind = "sqlFunction"
	KindUserDefinedType DefinitionKind = "userDefinedType"
	KindColumn          DefinitionKind = "column"
	KindSQLIndex        DefinitionKind = "sqlIndex"
)

// ParseDefinitionKind parses a case-insensitive kind name back into its
// canonical form.
func ParseDefinitionKind(s string) (DefinitionKind, bool) {
	lower := strings.ToLower(s)
	for _, k := range allKinds {
		if strings.ToLower(string(k)) == lower {
			return k, true
		}
	}
	return "", false
}

var allKinds = []DefinitionKind{
	KindClass, KindInterface, KindEnum, KindStruct, KindRecord, KindMethod,
	KindProperty, KindField, KindConstructor, KindDelegate, KindEvent,
	KindEnumMember, KindFunction, KindTypeAlias, KindVariable,
	KindStoredProcedure, KindTable, KindView, KindSQLFunction,
	KindUserDefinedType, KindColumn, KindSQLIndex,
}

// DefinitionEntry is a named, source-located entity extracted from an AST.
// Its position in DefinitionIndex.Definitions is its def-id; once appended,
// an entry is only ever changed in place by setting its Tombstone flag.
type DefinitionEntry struct {
	FileID     uint32
	Name       string
	Kind       DefinitionKind
	LineStart  int
	LineEnd    int
	Parent     string // "" means none
	Signature  string
	Modifiers  []string
	Attributes []string
	BaseTypes  []string
	// Tombstone marks a slot whose referring secondary-index entries have
	// been removed; the slot is kept to preserve stable def-ids rather
	// than shifted out of Definitions.
	Tombstone bool
}

// CodeStats holds per-definition structural metrics, populated for
// Method/Constructor/Function kinds.
type CodeStats struct {
	CyclomaticComplexity uint16
	CognitiveComplexity  uint16
	MaxNestingDepth      uint8
	ParamCount           uint8
	ReturnCount          uint16
	CallCount            uint16
	LambdaCount          uint16
}

// CallSite is a textual occurrence of a method invocation in a body.
type CallSite struct {
	MethodName        string
	ReceiverType       string // "" means unresolved (None)
	Line               int
	ReceiverIsGeneric bool
}

// DefinitionIndex is the parsed-definitions store for one root plus its
// secondary indexes.
type DefinitionIndex struct {
	mu sync.RWMutex

	Root       string
	CreatedAt  time.Time
	Extensions []string

	Files       []string
	PathToID    map[string]uint32
	Definitions []DefinitionEntry

	NameIndex      map[string][]uint32 // lowercased name -> def-ids
	KindIndex      map[DefinitionKind][]uint32
	AttributeIndex map[string][]uint32 // lowercased attribute name -> def-ids
	BaseTypeIndex  map[string][]uint32 // lowercased base type -> def-ids
	FileIndex      map[uint32][]uint32 // file_id -> def-ids

	MethodCalls map[uint32][]CallSite

	ParseErrors      int
	LossyFileCount   int
	EmptyFileIDs     []EmptyFile
	CodeStats        map[uint32]CodeStats
	ExtensionMethods map[string][]uint32
	SelectorIndex    map[string][]uint32
	TemplateChildren map[uint32][]uint32
}

// EmptyFile records a file that parsed but yielded zero definitions.
type EmptyFile struct {
	FileID   uint32
	ByteSize int64
}

// New creates an empty DefinitionIndex.
func New(root string, extensions []string, createdAt time.Time) *DefinitionIndex {
	return &DefinitionIndex{
		Root:             root,
		CreatedAt:        createdAt,
		Extensions:       extensions,
		PathToID:         make(map[string]uint32),
		NameIndex:        make(map[string][]uint32),
		KindIndex:        make(map[DefinitionKind][]uint32),
		AttributeIndex:   make(map[string][]uint32),
		BaseTypeIndex:    make(map[string][]uint32),
		FileIndex:        make(map[uint32][]uint32),
		MethodCalls:      make(map[uint32][]CallSite),
		CodeStats:        make(map[uint32]CodeStats),
		ExtensionMethods: make(map[string][]uint32),
		SelectorIndex:    make(map[string][]uint32),
		TemplateChildren: make(map[uint32][]uint32),
	}
}

// PathID returns the file_id currently indexed for path, if any.
func (d *DefinitionIndex) PathID(path string) (uint32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.PathToID[path]
	return id, ok
}

// ActiveCount returns the number of non-tombstoned definitions.
func (d *DefinitionIndex) ActiveCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, def := range d.Definitions {
		if !def.Tombstone {
			n++
		}
	}
	return n
}

// TombstoneRatioExceeds reports whether the tombstone-to-active ratio
// exceeds the given multiple (callers warn at 2:1).
func (d *DefinitionIndex) TombstoneRatioExceeds(multiple int) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	active := 0
	for _, def := range d.Definitions {
		if !def.Tombstone {
			active++
		}
	}
	tombstones := len(d.Definitions) - active
	return tombstones > active*multiple
}

// RLock takes the index's read lock for callers (the call-graph
// traversal) that iterate the exported structures directly across many
// accesses rather than through one accessor call.
func (d *DefinitionIndex) RLock() { d.mu.RLock() }

// RUnlock releases the read lock taken by RLock.
func (d *DefinitionIndex) RUnlock() { d.mu.RUnlock() }
