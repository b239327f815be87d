package defindex

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

func newTypeScriptLanguageParser() (*languageParser, error) {
	return newLanguageParser(tree_sitter_typescript.LanguageTypescript())
}

// TSX reuses the plain TypeScript grammar; the constructs extracted here
// (classes, interfaces, functions, methods, type aliases) parse the same
// under both.
func newTSXLanguageParser() (*languageParser, error) {
	return newLanguageParser(tree_sitter_typescript.LanguageTypescript())
}

var tsTypeDeclKinds = map[string]DefinitionKind{
	"class_declaration":     KindClass,
	"interface_declaration": KindInterface,
	"enum_declaration":      KindEnum,
}

// ParseTypeScript extracts definitions from TS/TSX source. Call-site
// extraction is deferred for this language family, so every definition's
// call list stays empty.
func ParseTypeScript(lp *languageParser, path string, content []byte) ParsedFile {
	tree := lp.parser.Parse(content, nil)
	if tree == nil {
		return ParsedFile{Path: path, ParseFail: true, ByteSize: int64(len(content))}
	}
	defer tree.Close()

	pf := ParsedFile{Path: path, Calls: map[int][]CallSite{}, Stats: map[int]CodeStats{}, ByteSize: int64(len(content))}
	walkTSNode(tree.RootNode(), content, "", &pf)
	return pf
}

func walkTSNode(n *tree_sitter.Node, content []byte, parent string, pf *ParsedFile) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "class_declaration", "interface_declaration", "enum_declaration":
		kind := tsTypeDeclKinds[n.Kind()]
		name := nodeText(n.ChildByFieldName("name"), content)
		pf.Defs = append(pf.Defs, DefinitionEntry{
			Name: name, Kind: kind,
			LineStart: nodeLine1(n), LineEnd: nodeEndLine1(n), Parent: parent,
			BaseTypes: extractTSHeritage(n, content),
		})
		for i := uint(0); i < n.ChildCount(); i++ {
			walkTSNode(n.Child(i), content, name, pf)
		}
		return

	case "function_declaration":
		pf.Defs = append(pf.Defs, DefinitionEntry{
			Name: nodeText(n.ChildByFieldName("name"), content), Kind: KindFunction,
			LineStart: nodeLine1(n), LineEnd: nodeEndLine1(n), Parent: parent,
			Signature: nodeText(n.ChildByFieldName("parameters"), content),
		})
		return

	case "method_definition":
		pf.Defs = append(pf.Defs, DefinitionEntry{
			Name: nodeText(n.ChildByFieldName("name"), content), Kind: KindMethod,
			LineStart: nodeLine1(n), LineEnd: nodeEndLine1(n), Parent: parent,
			Signature: nodeText(n.ChildByFieldName("parameters"), content),
		})
		return

	case "public_field_definition", "property_signature":
		pf.Defs = append(pf.Defs, DefinitionEntry{
			Name: nodeText(n.ChildByFieldName("name"), content), Kind: KindProperty,
			LineStart: nodeLine1(n), LineEnd: nodeEndLine1(n), Parent: parent,
		})
		return

	case "type_alias_declaration":
		pf.Defs = append(pf.Defs, DefinitionEntry{
			Name: nodeText(n.ChildByFieldName("name"), content), Kind: KindTypeAlias,
			LineStart: nodeLine1(n), LineEnd: nodeEndLine1(n), Parent: parent,
		})
		return

	case "variable_declarator":
		if parent == "" {
			name := nodeText(n.ChildByFieldName("name"), content)
			if name != "" {
				pf.Defs = append(pf.Defs, DefinitionEntry{
					Name: name, Kind: KindVariable,
					LineStart: nodeLine1(n), LineEnd: nodeEndLine1(n),
				})
			}
		}
		return
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		walkTSNode(n.Child(i), content, parent, pf)
	}
}

func extractTSHeritage(n *tree_sitter.Node, content []byte) []string {
	var out []string
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || child.Kind() != "class_heritage" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			clause := child.Child(j)
			if clause == nil {
				continue
			}
			for k := uint(0); k < clause.ChildCount(); k++ {
				id := clause.Child(k)
				if id != nil && id.Kind() == "identifier" {
					out = append(out, nodeText(id, content))
				}
			}
		}
	}
	return out
}
