package defindex

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
)

// ExtraLanguage identifies one of the best-effort language extractors:
// only C# and TS/TSX get deep extraction (call sites, attributes, base
// types); the rest share a generic declaration walk that still yields
// name/kind/span definitions.
type ExtraLanguage string

const (
	LangGo         ExtraLanguage = "go"
	LangJava       ExtraLanguage = "java"
	LangJavaScript ExtraLanguage = "javascript"
	LangPython     ExtraLanguage = "python"
	LangRust       ExtraLanguage = "rust"
	LangPHP        ExtraLanguage = "php"
	LangCPP        ExtraLanguage = "cpp"
	LangZig        ExtraLanguage = "zig"
)

// genericDeclKindBySuffix maps node-kind-name substrings (checked in
// order with strings.Contains) to
// the DefinitionKind they most resemble across C-family/Go/Python/Rust
// grammars, since these languages share no single tree-sitter field
// layout the way C#/TS do.
var genericDeclKindBySuffix = []struct {
	suffix string
	kind   DefinitionKind
}{
	{"class_declaration", KindClass},
	{"class_definition", KindClass},
	{"struct_item", KindStruct},
	{"struct_specifier", KindStruct},
	{"type_declaration", KindStruct}, // Go's `type T struct{...}` / `type T interface{...}`
	{"interface_declaration", KindInterface},
	{"trait_item", KindInterface},
	{"enum_item", KindEnum},
	{"enum_specifier", KindEnum},
	{"function_item", KindFunction},
	{"function_definition", KindFunction},
	{"function_declaration", KindFunction},
	{"method_declaration", KindMethod},
	{"method_definition", KindMethod},
	{"method_declaration_statement", KindMethod},
}

func newExtraLanguageParser(lang ExtraLanguage) (*languageParser, error) {
	switch lang {
	case LangGo:
		return newLanguageParser(tree_sitter_go.Language())
	case LangJava:
		return newLanguageParser(tree_sitter_java.Language())
	case LangJavaScript:
		return newLanguageParser(tree_sitter_javascript.Language())
	case LangPython:
		return newLanguageParser(tree_sitter_python.Language())
	case LangRust:
		return newLanguageParser(tree_sitter_rust.Language())
	case LangPHP:
		return newLanguageParser(tree_sitter_php.LanguagePHP())
	case LangCPP:
		return newLanguageParser(tree_sitter_cpp.Language())
	case LangZig:
		return newLanguageParser(tree_sitter_zig.Language())
	}
	return nil, nil
}

// ParseGeneric runs the shared declaration-shaped-node walk used for every
// best-effort extra language: it never extracts call sites or base types,
// only name + kind + span, keyed off the node's Kind() string.
func ParseGeneric(lp *languageParser, path string, content []byte) ParsedFile {
	tree := lp.parser.Parse(content, nil)
	if tree == nil {
		return ParsedFile{Path: path, ParseFail: true, ByteSize: int64(len(content))}
	}
	defer tree.Close()

	pf := ParsedFile{Path: path, Calls: map[int][]CallSite{}, Stats: map[int]CodeStats{}, ByteSize: int64(len(content))}
	walkGenericNode(tree.RootNode(), content, "", &pf)
	return pf
}

func genericKindFor(nodeKind string) (DefinitionKind, bool) {
	for _, e := range genericDeclKindBySuffix {
		if strings.Contains(nodeKind, e.suffix) {
			return e.kind, true
		}
	}
	return "", false
}

func walkGenericNode(n *tree_sitter.Node, content []byte, parent string, pf *ParsedFile) {
	if n == nil {
		return
	}
	if kind, ok := genericKindFor(n.Kind()); ok {
		nameNode := n.ChildByFieldName("name")
		name := nodeText(nameNode, content)
		if name != "" {
			pf.Defs = append(pf.Defs, DefinitionEntry{
				Name: name, Kind: kind,
				LineStart: nodeLine1(n), LineEnd: nodeEndLine1(n), Parent: parent,
			})
			newParent := parent
			if kind == KindClass || kind == KindStruct || kind == KindInterface {
				newParent = name
			}
			for i := uint(0); i < n.ChildCount(); i++ {
				walkGenericNode(n.Child(i), content, newParent, pf)
			}
			return
		}
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		walkGenericNode(n.Child(i), content, parent, pf)
	}
}
