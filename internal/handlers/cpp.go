package handlers

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/parser"
	"github.com/DeusData/module-sentinel/internal/visitor"
)

func registerCPP(t *visitor.HandlerTable) {
	t.OnSymbol(cppFunctionSymbol, "function_definition", "field_declaration", "declaration")
	t.OnSymbol(cppClassSymbol, "class_specifier", "struct_specifier", "union_specifier", "enum_specifier")
	t.OnSymbol(cppTypedefSymbol, "alias_declaration", "type_definition")
	t.OnSymbol(cppNamespaceSymbol, "namespace_definition")
}

// anchorAtName moves a symbol's position to its name token, the location
// clang reports for the same declaration. For qualified names that is the
// last segment.
func anchorAtName(sym *model.Symbol, nameNode *tree_sitter.Node) {
	if nameNode == nil {
		return
	}
	for wrappedNames[nameNode.Kind()] {
		next := nameNode.ChildByFieldName("name")
		if next == nil {
			break
		}
		nameNode = next
	}
	sym.Line = parser.StartLine(nameNode)
	sym.Column = parser.Column(nameNode)
}

var wrappedNames = map[string]bool{
	"qualified_identifier": true,
	"template_type":        true,
	"template_function":    true,
}

// cppFunctionSymbol handles definitions, in-class method declarations,
// out-of-line `Class::method` definitions and data members.
func cppFunctionSymbol(n *tree_sitter.Node, ctx *visitor.Context) (*model.Symbol, error) {
	if n.Kind() == "declaration" && ctx.Scope.InFunction() {
		return nil, nil
	}
	fd := functionDeclarator(n)
	if fd == nil {
		if n.Kind() == "field_declaration" {
			return cppFieldSymbol(n, ctx)
		}
		return nil, nil
	}
	nameNode := fd.ChildByFieldName("declarator")
	if nameNode == nil {
		return nil, nil
	}
	full := ctx.Text(nameNode)
	if full == "" {
		return nil, nil
	}

	owner, name := "", full
	if nameNode.Kind() == "qualified_identifier" {
		if i := strings.LastIndex(full, "::"); i > 0 {
			owner, name = full[:i], full[i+2:]
		}
	}

	sym := ctx.NewSymbol(n, name, model.KindFunction, model.OriginFunctionHandler)
	anchorAtName(sym, nameNode)
	sym.Confidence = definitionConfidence
	sym.Signature = ctx.FieldText(fd, "parameters")
	sym.ReturnType = ctx.FieldText(n, "type")
	if params := fd.ChildByFieldName("parameters"); params != nil {
		sym.SetFeature(model.FeatureParameterCount, int(params.NamedChildCount()))
	}

	className := ""
	switch {
	case owner != "":
		sym.QualifiedName = ctx.Qualify(owner + ctx.Separator() + name)
		sym.ParentClass = ctx.Qualify(owner)
		className = owner[strings.LastIndex(owner, ":")+1:]
	default:
		if cls, ok := ctx.Scope.CurrentClass(); ok {
			className = cls.Name
		}
	}
	if className != "" || sym.ParentClass != "" {
		sym.Kind = model.KindMethod
		switch {
		case strings.HasPrefix(name, "~"):
			sym.Kind = model.KindDestructor
		case name == className:
			sym.Kind = model.KindConstructor
		}
	}

	if n.ChildByFieldName("body") == nil {
		sym.Confidence = declarationConfidence
		sym.SetFeature(model.FeatureDeclarationOnly, true)
	}
	prefix := leadingText(n, fd, ctx.Source)
	for word, feature := range map[string]string{
		"constexpr": model.FeatureConstexpr,
		"virtual":   model.FeatureVirtual,
		"static":    model.FeatureStatic,
	} {
		if hasWord(prefix, word) {
			sym.SetFeature(feature, true)
		}
	}
	if p := n.Parent(); p != nil && p.Kind() == "template_declaration" {
		sym.SetFeature(model.FeatureTemplate, true)
	}
	return sym, nil
}

func cppFieldSymbol(n *tree_sitter.Node, ctx *visitor.Context) (*model.Symbol, error) {
	if _, ok := ctx.Scope.CurrentClass(); !ok {
		return nil, nil
	}
	d := n.ChildByFieldName("declarator")
	for d != nil && declaratorWrappers[d.Kind()] {
		d = d.ChildByFieldName("declarator")
	}
	if d == nil || d.Kind() != "field_identifier" {
		return nil, nil
	}
	sym := ctx.NewSymbol(n, ctx.Text(d), model.KindField, model.OriginClassHandler)
	sym.Confidence = definitionConfidence
	sym.ReturnType = ctx.FieldText(n, "type")
	return sym, nil
}

func cppClassSymbol(n *tree_sitter.Node, ctx *visitor.Context) (*model.Symbol, error) {
	if n.ChildByFieldName("body") == nil {
		return nil, nil
	}
	sym, err := classSymbol(n, ctx)
	if sym == nil || err != nil {
		return sym, err
	}
	anchorAtName(sym, n.ChildByFieldName("name"))
	if p := n.Parent(); p != nil && p.Kind() == "template_declaration" {
		sym.SetFeature(model.FeatureTemplate, true)
	}
	return sym, nil
}

func cppTypedefSymbol(n *tree_sitter.Node, ctx *visitor.Context) (*model.Symbol, error) {
	if ctx.Scope.InFunction() {
		return nil, nil
	}
	var name string
	switch n.Kind() {
	case "alias_declaration":
		name = ctx.FieldText(n, "name")
	case "type_definition":
		name = ctx.FieldText(n, "declarator")
	}
	name = strings.TrimLeft(name, "*& ")
	if name == "" {
		return nil, nil
	}
	sym := ctx.NewSymbol(n, name, model.KindTypedef, model.OriginClassHandler)
	sym.Confidence = definitionConfidence
	sym.Signature = ctx.FieldText(n, "type")
	return sym, nil
}

func cppNamespaceSymbol(n *tree_sitter.Node, ctx *visitor.Context) (*model.Symbol, error) {
	sym, err := namespaceSymbol(n, ctx)
	if sym == nil || err != nil {
		return sym, err
	}
	anchorAtName(sym, n.ChildByFieldName("name"))
	return sym, nil
}
