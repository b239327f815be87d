package defindex

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
)

// csharpTypeDeclKinds are the tree-sitter node kinds that introduce a new
// enclosing type (class/interface/struct/record/enum).
var csharpTypeDeclKinds = map[string]DefinitionKind{
	"class_declaration":     KindClass,
	"interface_declaration": KindInterface,
	"struct_declaration":    KindStruct,
	"record_declaration":    KindRecord,
	"enum_declaration":      KindEnum,
}

// csharpScope tracks what's visible for receiver-type resolution inside a
// method body: local variable declarations, the enclosing type's fields,
// and the current method/constructor's parameters (rule 1-3).
type csharpScope struct {
	typeName string
	fields   map[string]string // field name -> declared type
	locals   map[string]string // local var name -> declared type
	params   map[string]string // ctor/method param name -> declared type
}

func newCSharpLanguageParser() (*languageParser, error) {
	return newLanguageParser(tree_sitter_csharp.Language())
}

// ParseCSharp extracts definitions and call sites from one C# file's
// source.
func ParseCSharp(lp *languageParser, path string, content []byte) ParsedFile {
	tree := lp.parser.Parse(content, nil)
	if tree == nil {
		return ParsedFile{Path: path, ParseFail: true, ByteSize: int64(len(content))}
	}
	defer tree.Close()

	pf := ParsedFile{
		Path:     path,
		Calls:    make(map[int][]CallSite),
		Stats:    make(map[int]CodeStats),
		ByteSize: int64(len(content)),
	}

	root := tree.RootNode()
	fields := collectFields(root, content)
	walkCSharpNode(root, content, "", nil, fields, &pf)
	return pf
}

// collectFields does a pre-pass over the whole tree gathering every
// field_declaration's name->type, keyed loosely (not per-type) since the
// common DI case is a handful of private readonly fields whose names
// rarely collide across sibling types in the same file.
func collectFields(root *tree_sitter.Node, content []byte) map[string]string {
	fields := make(map[string]string)
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		if n.Kind() == "field_declaration" {
			typeNode := n.ChildByFieldName("type")
			typeName := stripGeneric(nodeText(typeNode, content))
			for i := uint(0); i < n.ChildCount(); i++ {
				child := n.Child(i)
				if child == nil || child.Kind() != "variable_declaration" {
					continue
				}
				for j := uint(0); j < child.ChildCount(); j++ {
					decl := child.Child(j)
					if decl == nil || decl.Kind() != "variable_declarator" {
						continue
					}
					nameNode := decl.ChildByFieldName("name")
					name := nodeText(nameNode, content)
					if name != "" {
						fields[name] = typeName
					}
				}
			}
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return fields
}

func stripGeneric(t string) string {
	if i := strings.IndexByte(t, '<'); i >= 0 {
		return t[:i]
	}
	return strings.TrimSpace(t)
}

// walkCSharpNode recurses the tree, emitting a DefinitionEntry for every
// declaration node and, for method-shaped bodies, extracting call sites
// resolved against scope.
func walkCSharpNode(n *tree_sitter.Node, content []byte, parent string, scope *csharpScope, fields map[string]string, pf *ParsedFile) {
	if n == nil {
		return
	}

	switch n.Kind() {
	case "class_declaration", "interface_declaration", "struct_declaration", "record_declaration", "enum_declaration":
		kind := csharpTypeDeclKinds[n.Kind()]
		nameNode := n.ChildByFieldName("name")
		name := nodeText(nameNode, content)
		pf.Defs = append(pf.Defs, DefinitionEntry{
			Name:       name,
			Kind:       kind,
			LineStart:  nodeLine1(n),
			LineEnd:    nodeEndLine1(n),
			Parent:     parent,
			Modifiers:  extractModifiers(n, content),
			Attributes: extractAttributes(n, content),
			BaseTypes:  extractBaseTypes(n, content),
		})
		childScope := &csharpScope{typeName: name, fields: fields, locals: map[string]string{}, params: map[string]string{}}
		for i := uint(0); i < n.ChildCount(); i++ {
			walkCSharpNode(n.Child(i), content, name, childScope, fields, pf)
		}
		return

	case "method_declaration", "constructor_declaration":
		kind := KindMethod
		if n.Kind() == "constructor_declaration" {
			kind = KindConstructor
		}
		nameNode := n.ChildByFieldName("name")
		name := nodeText(nameNode, content)
		params := extractParams(n, content)
		localDefIdx := len(pf.Defs)
		pf.Defs = append(pf.Defs, DefinitionEntry{
			Name:       name,
			Kind:       kind,
			LineStart:  nodeLine1(n),
			LineEnd:    nodeEndLine1(n),
			Parent:     parent,
			Signature:  nodeText(n.ChildByFieldName("parameters"), content),
			Modifiers:  extractModifiers(n, content),
			Attributes: extractAttributes(n, content),
		})

		bodyScope := &csharpScope{typeName: parent, fields: fields, locals: collectLocals(n, content), params: params}
		if scope != nil {
			bodyScope.typeName = scope.typeName
		}
		calls := extractCallSites(n, content, bodyScope)
		if len(calls) > 0 {
			pf.Calls[localDefIdx] = calls
		}
		pf.Stats[localDefIdx] = CodeStats{
			ParamCount: uint8(len(params)),
			CallCount:  uint16(len(calls)),
		}
		return

	case "property_declaration":
		nameNode := n.ChildByFieldName("name")
		pf.Defs = append(pf.Defs, DefinitionEntry{
			Name:       nodeText(nameNode, content),
			Kind:       KindProperty,
			LineStart:  nodeLine1(n),
			LineEnd:    nodeEndLine1(n),
			Parent:     parent,
			Modifiers:  extractModifiers(n, content),
			Attributes: extractAttributes(n, content),
		})
		return

	case "delegate_declaration":
		nameNode := n.ChildByFieldName("name")
		pf.Defs = append(pf.Defs, DefinitionEntry{
			Name: nodeText(nameNode, content), Kind: KindDelegate,
			LineStart: nodeLine1(n), LineEnd: nodeEndLine1(n), Parent: parent,
		})
		return

	case "event_field_declaration":
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child == nil || child.Kind() != "variable_declaration" {
				continue
			}
			for j := uint(0); j < child.ChildCount(); j++ {
				decl := child.Child(j)
				if decl == nil || decl.Kind() != "variable_declarator" {
					continue
				}
				pf.Defs = append(pf.Defs, DefinitionEntry{
					Name: nodeText(decl.ChildByFieldName("name"), content), Kind: KindEvent,
					LineStart: nodeLine1(n), LineEnd: nodeEndLine1(n), Parent: parent,
				})
			}
		}
		return

	case "field_declaration":
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child == nil || child.Kind() != "variable_declaration" {
				continue
			}
			for j := uint(0); j < child.ChildCount(); j++ {
				decl := child.Child(j)
				if decl == nil || decl.Kind() != "variable_declarator" {
					continue
				}
				pf.Defs = append(pf.Defs, DefinitionEntry{
					Name: nodeText(decl.ChildByFieldName("name"), content), Kind: KindField,
					LineStart: nodeLine1(n), LineEnd: nodeEndLine1(n), Parent: parent,
					Modifiers: extractModifiers(n, content),
				})
			}
		}
		return

	case "enum_member_declaration":
		pf.Defs = append(pf.Defs, DefinitionEntry{
			Name: nodeText(n.ChildByFieldName("name"), content), Kind: KindEnumMember,
			LineStart: nodeLine1(n), LineEnd: nodeEndLine1(n), Parent: parent,
		})
		return
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		walkCSharpNode(n.Child(i), content, parent, scope, fields, pf)
	}
}

func extractBaseTypes(n *tree_sitter.Node, content []byte) []string {
	baseList := n.ChildByFieldName("bases")
	if baseList == nil {
		return nil
	}
	var out []string
	for i := uint(0); i < baseList.ChildCount(); i++ {
		child := baseList.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier", "generic_name", "qualified_name":
			out = append(out, stripGeneric(nodeText(child, content)))
		}
	}
	return out
}

func extractModifiers(n *tree_sitter.Node, content []byte) []string {
	var out []string
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child != nil && child.Kind() == "modifier" {
			out = append(out, nodeText(child, content))
		}
	}
	return out
}

func extractAttributes(n *tree_sitter.Node, content []byte) []string {
	var out []string
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || child.Kind() != "attribute_list" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			attr := child.Child(j)
			if attr != nil && attr.Kind() == "attribute" {
				out = append(out, nodeText(attr, content))
			}
		}
	}
	return out
}

func extractParams(n *tree_sitter.Node, content []byte) map[string]string {
	params := make(map[string]string)
	paramList := n.ChildByFieldName("parameters")
	if paramList == nil {
		return params
	}
	for i := uint(0); i < paramList.ChildCount(); i++ {
		p := paramList.Child(i)
		if p == nil || p.Kind() != "parameter" {
			continue
		}
		name := nodeText(p.ChildByFieldName("name"), content)
		typ := stripGeneric(nodeText(p.ChildByFieldName("type"), content))
		if name != "" {
			params[name] = typ
		}
	}
	return params
}

// collectLocals scans a method body for `T x = ...;` and `var x = new T(...)`
// local declarations (receiver-resolution rule 1).
func collectLocals(n *tree_sitter.Node, content []byte) map[string]string {
	locals := make(map[string]string)
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		if n.Kind() == "variable_declaration" {
			typeNode := n.ChildByFieldName("type")
			declaredType := stripGeneric(nodeText(typeNode, content))
			for i := uint(0); i < n.ChildCount(); i++ {
				decl := n.Child(i)
				if decl == nil || decl.Kind() != "variable_declarator" {
					continue
				}
				name := nodeText(decl.ChildByFieldName("name"), content)
				if name == "" {
					continue
				}
				typ := declaredType
				if typ == "var" {
					typ = ""
					value := decl.ChildByFieldName("value")
					for k := uint(0); value == nil && k < decl.ChildCount(); k++ {
						if c := decl.Child(k); c != nil && c.Kind() == "object_creation_expression" {
							value = c
						}
					}
					if value != nil && value.Kind() == "object_creation_expression" {
						typ = stripGeneric(nodeText(value.ChildByFieldName("type"), content))
					}
				}
				if typ == "" {
					continue
				}
				locals[name] = typ
			}
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(n)
	return locals
}

// extractCallSites walks a method body for invocation_expression nodes and
// resolves each receiver type via resolveReceiverType.
func extractCallSites(n *tree_sitter.Node, content []byte, scope *csharpScope) []CallSite {
	var calls []CallSite
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		if n.Kind() == "invocation_expression" {
			fn := n.ChildByFieldName("function")
			if fn != nil {
				switch fn.Kind() {
				case "member_access_expression":
					recv := fn.ChildByFieldName("expression")
					methodName := nodeText(fn.ChildByFieldName("name"), content)
					recvText := nodeText(recv, content)
					recvType, isGeneric := resolveReceiverType(recv, recvText, scope, content)
					calls = append(calls, CallSite{
						MethodName:        methodName,
						ReceiverType:       recvType,
						Line:              nodeLine1(n),
						ReceiverIsGeneric: isGeneric,
					})
				case "identifier":
					calls = append(calls, CallSite{
						MethodName: nodeText(fn, content),
						Line:       nodeLine1(n),
					})
				}
			}
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(n)
	return calls
}

// resolveReceiverType applies a five-source priority: locals,
// fields, constructor params, `this`, then known static class name.
func resolveReceiverType(recv *tree_sitter.Node, recvText string, scope *csharpScope, content []byte) (string, bool) {
	if recvText == "this" {
		if scope != nil {
			return scope.typeName, false
		}
		return "", false
	}
	isGeneric := recv != nil && recv.Kind() == "generic_name"
	if scope != nil {
		if t, ok := scope.locals[recvText]; ok && t != "" {
			return t, isGeneric
		}
		if t, ok := scope.fields[recvText]; ok && t != "" {
			return t, isGeneric
		}
		if t, ok := scope.params[recvText]; ok && t != "" {
			return t, isGeneric
		}
	}
	if len(recvText) > 0 && recvText[0] >= 'A' && recvText[0] <= 'Z' {
		// Rule 5: a capitalized identifier not bound to any local/field/
		// param scope is treated as a known static class name in scope.
		return recvText, isGeneric
	}
	return "", isGeneric
}
