package defindex

import (
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// go-tree-sitter's query API (tree_sitter.NewQuery / QueryCursor) is
// available but unused here: every language walks its own parse tree by
// node kind (walkCSharpNode, walkTSNode, walkGenericNode) rather than
// S-expression queries; the walkers need scope context the query DSL
// does not carry.

// nodeText extracts the source text spanned by node.
func nodeText(node *tree_sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > uint(len(content)) || end > uint(len(content)) || start > end {
		return ""
	}
	return string(content[start:end])
}

func nodeLine1(node *tree_sitter.Node) int {
	if node == nil {
		return 0
	}
	return int(node.StartPosition().Row) + 1
}

func nodeEndLine1(node *tree_sitter.Node) int {
	if node == nil {
		return 0
	}
	return int(node.EndPosition().Row) + 1
}

// languageParser bundles a compiled tree-sitter language with a parser
// set to it.
type languageParser struct {
	language *tree_sitter.Language
	parser   *tree_sitter.Parser
}

func newLanguageParser(langPtr unsafe.Pointer) (*languageParser, error) {
	language := tree_sitter.NewLanguage(langPtr)
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(language); err != nil {
		return nil, err
	}
	return &languageParser{language: language, parser: parser}, nil
}
