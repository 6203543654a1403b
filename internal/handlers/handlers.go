// Package handlers builds the per-language dispatch tables the visitor runs.
package handlers

import (
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/lang"
	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/parser"
	"github.com/DeusData/module-sentinel/internal/visitor"
)

// Confidence levels for structurally derived observations.
const (
	definitionConfidence  = 0.9
	declarationConfidence = 0.75
	variableConfidence    = 0.85
	inheritsConfidence    = 0.85
	callConfidence        = 0.7
	importConfidence      = 0.9
)

var (
	tablesOnce sync.Once
	tables     map[lang.Language]*visitor.HandlerTable
)

// ForLanguage returns the dispatch table for l, or nil if l is unsupported.
// Tables are built once and are read-only afterwards.
func ForLanguage(l lang.Language) *visitor.HandlerTable {
	tablesOnce.Do(func() {
		tables = make(map[lang.Language]*visitor.HandlerTable)
		for _, l := range lang.AllLanguages() {
			if spec := lang.ForLanguage(l); spec != nil {
				tables[l] = build(spec)
			}
		}
	})
	return tables[l]
}

func build(spec *lang.LanguageSpec) *visitor.HandlerTable {
	t := visitor.NewHandlerTable(spec.Language)
	t.OnSymbol(functionSymbol, spec.FunctionNodeTypes...)
	t.OnSymbol(classSymbol, spec.ClassNodeTypes...)
	t.OnSymbol(namespaceSymbol, spec.NamespaceNodeTypes...)
	t.OnRelationship(inheritsRelationships, spec.ClassNodeTypes...)
	t.OnRelationship(callRelationships, spec.CallNodeTypes...)
	t.OnRelationship(importRelationships, spec.ImportNodeTypes...)
	t.OnPattern(classPattern, spec.ClassNodeTypes...)

	switch spec.Language {
	case lang.C, lang.CPP:
		registerCPP(t)
	case lang.JavaScript, lang.TypeScript, lang.TSX:
		registerJS(t)
	case lang.Go:
		registerGo(t)
	case lang.Rust:
		registerRust(t)
	}
	return t
}

func functionSymbol(n *tree_sitter.Node, ctx *visitor.Context) (*model.Symbol, error) {
	nameNode := resolveFuncNameNode(n)
	if nameNode == nil {
		return nil, nil
	}
	name := ctx.Text(nameNode)
	if name == "" || name == "function" {
		return nil, nil
	}

	sym := ctx.NewSymbol(n, name, model.KindFunction, model.OriginFunctionHandler)
	sym.Confidence = definitionConfidence
	if cls, ok := ctx.Scope.CurrentClass(); ok {
		sym.Kind = model.KindMethod
		switch {
		case isConstructor(n.Kind(), name, cls.Name):
			sym.Kind = model.KindConstructor
		case n.Kind() == "destructor_declaration" || strings.HasPrefix(name, "~"):
			sym.Kind = model.KindDestructor
		}
	}

	params := n.ChildByFieldName("parameters")
	if params == nil {
		if fd := functionDeclarator(n); fd != nil {
			params = fd.ChildByFieldName("parameters")
		}
	}
	if params != nil {
		sym.Signature = ctx.Text(params)
		sym.SetFeature(model.FeatureParameterCount, int(params.NamedChildCount()))
	}
	for _, field := range []string{"result", "return_type", "type"} {
		if rt := n.ChildByFieldName(field); rt != nil {
			sym.ReturnType = strings.TrimSpace(strings.TrimPrefix(ctx.Text(rt), ":"))
			break
		}
	}

	prefix := leadingText(n, nameNode, ctx.Source)
	if hasWord(prefix, "async") {
		sym.SetFeature(model.FeatureAsync, true)
	}
	if hasWord(prefix, "static") {
		sym.SetFeature(model.FeatureStatic, true)
	}
	if n.Kind() == "arrow_function" {
		sym.SetFeature(model.FeatureArrowFunction, true)
	}
	if isExported(name, ctx.Language) {
		sym.SetFeature(model.FeatureExported, true)
	}
	return sym, nil
}

func isConstructor(kind, name, className string) bool {
	switch kind {
	case "constructor_declaration", "secondary_constructor":
		return true
	}
	return name == className || name == "constructor" || name == "__init__" || name == "__construct"
}

func classSymbol(n *tree_sitter.Node, ctx *visitor.Context) (*model.Symbol, error) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil, nil
	}
	name := cleanTypeName(ctx.Text(nameNode))
	if name == "" {
		return nil, nil
	}
	sym := ctx.NewSymbol(n, name, classKind(n.Kind()), model.OriginClassHandler)
	sym.Confidence = definitionConfidence
	if bases := extractBaseClasses(n, ctx.Source, ctx.Language); len(bases) > 0 {
		sym.SetFeature(model.FeatureBaseClasses, bases)
	}
	if isExported(name, ctx.Language) {
		sym.SetFeature(model.FeatureExported, true)
	}
	return sym, nil
}

func classKind(kind string) model.SymbolKind {
	switch kind {
	case "interface_declaration", "trait_item", "trait_definition", "trait_declaration":
		return model.KindInterface
	case "enum_declaration", "enum_item", "enum_specifier":
		return model.KindEnum
	case "struct_specifier", "struct_item", "struct_declaration", "union_specifier", "union_item":
		return model.KindStruct
	}
	return model.KindClass
}

func namespaceSymbol(n *tree_sitter.Node, ctx *visitor.Context) (*model.Symbol, error) {
	name := ctx.FieldText(n, "name")
	if name == "" {
		return nil, nil
	}
	sym := ctx.NewSymbol(n, name, model.KindNamespace, model.OriginClassHandler)
	sym.Confidence = definitionConfidence
	return sym, nil
}

func inheritsRelationships(n *tree_sitter.Node, ctx *visitor.Context) ([]model.Relationship, error) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil, nil
	}
	from := ctx.Qualify(cleanTypeName(ctx.Text(nameNode)))
	var rels []model.Relationship
	for _, base := range extractBaseClasses(n, ctx.Source, ctx.Language) {
		rels = append(rels, model.Relationship{
			FromName:   from,
			ToName:     base,
			Type:       model.RelInherits,
			Confidence: inheritsConfidence,
			LineNumber: parser.StartLine(n),
		})
	}
	return rels, nil
}

// enclosingName is the qualified name of the innermost named scope, or the
// file path at top level.
func enclosingName(ctx *visitor.Context) string {
	if q := ctx.Qualify(""); q != "" {
		return q
	}
	return ctx.FilePath
}

func callRelationships(n *tree_sitter.Node, ctx *visitor.Context) ([]model.Relationship, error) {
	callee := extractCalleeName(n, ctx.Source)
	if callee == "" {
		return nil, nil
	}
	return []model.Relationship{{
		FromName:   enclosingName(ctx),
		ToName:     callee,
		Type:       model.RelCalls,
		Confidence: callConfidence,
		LineNumber: parser.StartLine(n),
	}}, nil
}

func importRelationships(n *tree_sitter.Node, ctx *visitor.Context) ([]model.Relationship, error) {
	target := importTarget(n, ctx)
	if target == "" {
		return nil, nil
	}
	return []model.Relationship{{
		FromName:   ctx.FilePath,
		ToName:     target,
		Type:       model.RelImports,
		Confidence: importConfidence,
		LineNumber: parser.StartLine(n),
	}}, nil
}

func importTarget(n *tree_sitter.Node, ctx *visitor.Context) string {
	for _, field := range []string{"path", "source", "module_name", "name", "argument"} {
		if c := n.ChildByFieldName(field); c != nil {
			return strings.Trim(ctx.Text(c), "\"'<>` ")
		}
	}
	text := strings.TrimSpace(ctx.Text(n))
	for _, kw := range []string{"import", "use", "using", "from"} {
		text = strings.TrimPrefix(text, kw+" ")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), ";")
	if i := strings.IndexAny(text, " \n"); i > 0 {
		text = text[:i]
	}
	return strings.Trim(text, "\"'<>()")
}
