package handlers

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/lang"
	"github.com/DeusData/module-sentinel/internal/parser"
)

// declaratorWrappers are C/C++ declarator kinds that wrap the function declarator.
var declaratorWrappers = map[string]bool{
	"pointer_declarator":       true,
	"reference_declarator":     true,
	"parenthesized_declarator": true,
	"attributed_declarator":    true,
}

// functionDeclarator walks a C/C++ declarator chain down to the
// function_declarator, or returns nil when the declaration is not a function.
func functionDeclarator(node *tree_sitter.Node) *tree_sitter.Node {
	d := node.ChildByFieldName("declarator")
	for d != nil {
		if d.Kind() == "function_declarator" {
			return d
		}
		if !declaratorWrappers[d.Kind()] {
			return nil
		}
		next := d.ChildByFieldName("declarator")
		if next == nil && d.NamedChildCount() > 0 {
			next = d.NamedChild(d.NamedChildCount() - 1)
		}
		d = next
	}
	return nil
}

// funcNameNode returns the name node for a function/method node.
// Handles C++ where the name is inside function_declarator.
func funcNameNode(node *tree_sitter.Node) *tree_sitter.Node {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return nameNode
	}
	if fd := functionDeclarator(node); fd != nil {
		if nameNode := fd.ChildByFieldName("declarator"); nameNode != nil {
			return nameNode
		}
		return findChildByKind(fd, "identifier")
	}
	return nil
}

// resolveFuncNameNode extends funcNameNode with names that live on the
// parent of anonymous function values.
func resolveFuncNameNode(node *tree_sitter.Node) *tree_sitter.Node {
	if n := funcNameNode(node); n != nil {
		return n
	}
	switch node.Kind() {
	case "arrow_function", "function_expression", "function":
		p := node.Parent()
		if p == nil {
			return nil
		}
		switch p.Kind() {
		case "variable_declarator":
			return p.ChildByFieldName("name")
		case "pair":
			return p.ChildByFieldName("key")
		case "field_definition":
			return p.ChildByFieldName("property")
		case "public_field_definition":
			return p.ChildByFieldName("name")
		}
	}
	return nil
}

func findChildByKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

// hasAncestorKind walks up to maxDepth parents and returns true if any has the given kind.
func hasAncestorKind(node *tree_sitter.Node, kind string, maxDepth int) bool {
	p := node.Parent()
	for i := 0; i < maxDepth && p != nil; i++ {
		if p.Kind() == kind {
			return true
		}
		p = p.Parent()
	}
	return false
}

// extractCalleeName returns the called name of a call node.
func extractCalleeName(node *tree_sitter.Node, source []byte) string {
	if funcNode := node.ChildByFieldName("function"); funcNode != nil {
		switch funcNode.Kind() {
		case "identifier", "simple_identifier", "selector_expression", "attribute",
			"member_expression", "field_expression", "qualified_identifier",
			"scoped_identifier", "dot", "name", "qualified_name", "template_function":
			return parser.NodeText(funcNode, source)
		}
	}
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		if obj := node.ChildByFieldName("object"); obj != nil {
			return parser.NodeText(obj, source) + "." + parser.NodeText(nameNode, source)
		}
		return parser.NodeText(nameNode, source)
	}
	if macro := node.ChildByFieldName("macro"); macro != nil {
		return parser.NodeText(macro, source) + "!"
	}
	if first := node.NamedChild(0); first != nil {
		switch first.Kind() {
		case "identifier", "navigation_expression", "simple_identifier", "dot_index_expression", "method_index_expression":
			return parser.NodeText(first, source)
		}
	}
	return ""
}

// extractBaseClasses returns the declared supertypes of a class node.
func extractBaseClasses(node *tree_sitter.Node, source []byte, language lang.Language) []string {
	switch language {
	case lang.Python:
		return extractPythonBases(node, source)
	case lang.Java:
		return extractJavaBases(node, source)
	case lang.TypeScript, lang.TSX, lang.JavaScript:
		return extractTSBases(node, source)
	case lang.CPP:
		return extractCPPBases(node, source)
	case lang.Scala:
		return extractScalaBases(node, source)
	case lang.CSharp:
		return extractCSharpBases(node, source)
	case lang.PHP:
		return extractPHPBases(node, source)
	case lang.Kotlin:
		return extractKotlinBases(node, source)
	}
	return nil
}

func extractPythonBases(node *tree_sitter.Node, source []byte) []string {
	superNode := node.ChildByFieldName("superclasses")
	if superNode == nil {
		return nil
	}
	var bases []string
	for i := uint(0); i < superNode.NamedChildCount(); i++ {
		child := superNode.NamedChild(i)
		if child == nil || child.Kind() == "keyword_argument" {
			continue
		}
		if name := parser.NodeText(child, source); name != "" {
			bases = append(bases, name)
		}
	}
	return bases
}

func extractJavaBases(node *tree_sitter.Node, source []byte) []string {
	var bases []string
	if superNode := node.ChildByFieldName("superclass"); superNode != nil {
		if typeID := findChildByKind(superNode, "type_identifier"); typeID != nil {
			bases = append(bases, parser.NodeText(typeID, source))
		}
	}
	if implNode := node.ChildByFieldName("interfaces"); implNode != nil {
		bases = append(bases, namedChildTexts(implNode, source)...)
	}
	return cleanAll(bases)
}

func extractTSBases(node *tree_sitter.Node, source []byte) []string {
	var bases []string
	for i := uint(0); i < node.ChildCount(); i++ {
		heritage := node.Child(i)
		if heritage == nil || heritage.Kind() != "class_heritage" {
			continue
		}
		for j := uint(0); j < heritage.ChildCount(); j++ {
			clause := heritage.Child(j)
			if clause == nil {
				continue
			}
			switch clause.Kind() {
			case "extends_clause":
				if v := clause.ChildByFieldName("value"); v != nil {
					bases = append(bases, parser.NodeText(v, source))
				} else {
					bases = append(bases, namedChildTexts(clause, source)...)
				}
			case "implements_clause":
				bases = append(bases, namedChildTexts(clause, source)...)
			case "identifier", "member_expression":
				bases = append(bases, parser.NodeText(clause, source))
			}
		}
	}
	return cleanAll(bases)
}

func extractCPPBases(node *tree_sitter.Node, source []byte) []string {
	var bases []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "base_class_clause" {
			continue
		}
		for j := uint(0); j < child.NamedChildCount(); j++ {
			base := child.NamedChild(j)
			if base == nil {
				continue
			}
			switch base.Kind() {
			case "type_identifier", "qualified_identifier", "template_type":
				bases = append(bases, parser.NodeText(base, source))
			}
		}
	}
	return cleanAll(bases)
}

func extractScalaBases(node *tree_sitter.Node, source []byte) []string {
	var bases []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "extends_clause" {
			continue
		}
		for j := uint(0); j < child.NamedChildCount(); j++ {
			typeNode := child.NamedChild(j)
			if typeNode != nil && typeNode.Kind() == "type_identifier" {
				bases = append(bases, parser.NodeText(typeNode, source))
			}
		}
	}
	return cleanAll(bases)
}

func extractCSharpBases(node *tree_sitter.Node, source []byte) []string {
	baseList := node.ChildByFieldName("bases")
	if baseList == nil {
		baseList = findChildByKind(node, "base_list")
	}
	if baseList == nil {
		return nil
	}
	return cleanAll(namedChildTexts(baseList, source))
}

func extractPHPBases(node *tree_sitter.Node, source []byte) []string {
	var bases []string
	for _, kind := range []string{"base_clause", "class_interface_clause"} {
		clause := findChildByKind(node, kind)
		if clause == nil {
			continue
		}
		for i := uint(0); i < clause.NamedChildCount(); i++ {
			child := clause.NamedChild(i)
			if child != nil && (child.Kind() == "name" || child.Kind() == "qualified_name") {
				bases = append(bases, parser.NodeText(child, source))
			}
		}
	}
	return cleanAll(bases)
}

func extractKotlinBases(node *tree_sitter.Node, source []byte) []string {
	var bases []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "delegation_specifier_list" || child.Kind() == "delegation_specifiers" || child.Kind() == "delegation_specifier" {
			texts := namedChildTexts(child, source)
			if child.Kind() == "delegation_specifier" {
				texts = []string{parser.NodeText(child, source)}
			}
			bases = append(bases, texts...)
		}
	}
	return cleanAll(bases)
}

func namedChildTexts(node *tree_sitter.Node, source []byte) []string {
	var names []string
	for k := uint(0); k < node.NamedChildCount(); k++ {
		if child := node.NamedChild(k); child != nil {
			names = append(names, parser.NodeText(child, source))
		}
	}
	return names
}

// cleanTypeName strips generic arguments, constructor calls and access
// specifiers from a supertype reference.
func cleanTypeName(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"public ", "protected ", "private ", "virtual "} {
		s = strings.TrimPrefix(s, prefix)
	}
	if idx := strings.IndexAny(s, "<(["); idx > 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func cleanAll(names []string) []string {
	out := names[:0]
	for _, n := range names {
		if c := cleanTypeName(n); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// isExported reports whether a name is visible outside its file by the
// language's naming convention.
func isExported(name string, language lang.Language) bool {
	if name == "" {
		return false
	}
	switch language {
	case lang.Go:
		return name[0] >= 'A' && name[0] <= 'Z'
	case lang.Python:
		return !strings.HasPrefix(name, "_")
	default:
		return true
	}
}

// leadingText returns the source between the start of node and the start of
// stop, used to look for specifier keywords.
func leadingText(node, stop *tree_sitter.Node, source []byte) string {
	if stop == nil || stop.StartByte() <= node.StartByte() {
		return ""
	}
	end := stop.StartByte()
	if end > uint(len(source)) {
		return ""
	}
	return string(source[node.StartByte():end])
}

func hasWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}
