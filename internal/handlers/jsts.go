package handlers

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/visitor"
)

func registerJS(t *visitor.HandlerTable) {
	t.OnSymbol(jsVariableFunctionSymbol, "variable_declarator")
}

// jsVariableFunctionSymbol records `const name = () => {}` and
// `const name = function () {}` at module level under the binding's own name.
func jsVariableFunctionSymbol(n *tree_sitter.Node, ctx *visitor.Context) (*model.Symbol, error) {
	if ctx.Scope.InFunction() {
		return nil, nil
	}
	value := n.ChildByFieldName("value")
	if value == nil {
		return nil, nil
	}
	switch value.Kind() {
	case "arrow_function", "function_expression", "function":
	default:
		return nil, nil
	}
	name := ctx.FieldText(n, "name")
	if name == "" {
		return nil, nil
	}
	sym := ctx.NewSymbol(value, name, model.KindFunction, model.OriginVariableHandler)
	sym.QualifiedName = name
	sym.Confidence = variableConfidence
	sym.Signature = ctx.FieldText(value, "parameters")
	if sym.Signature == "" {
		sym.Signature = ctx.FieldText(value, "parameter")
	}
	if value.Kind() == "arrow_function" {
		sym.SetFeature(model.FeatureArrowFunction, true)
	}
	if strings.HasPrefix(strings.TrimSpace(ctx.Text(value)), "async") {
		sym.SetFeature(model.FeatureAsync, true)
	}
	if hasAncestorKind(n, "export_statement", 3) {
		sym.SetFeature(model.FeatureExported, true)
	}
	return sym, nil
}
