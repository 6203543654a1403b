package handlers

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/visitor"
)

func registerGo(t *visitor.HandlerTable) {
	t.OnSymbol(goFunctionSymbol, "function_declaration", "method_declaration")
	t.OnSymbol(goTypeSymbol, "type_spec")
	delete(t.Relationships, "import_declaration")
	t.OnRelationship(importRelationships, "import_spec")
}

func goFunctionSymbol(n *tree_sitter.Node, ctx *visitor.Context) (*model.Symbol, error) {
	sym, err := functionSymbol(n, ctx)
	if sym == nil || err != nil {
		return sym, err
	}
	if recv := receiverType(ctx.FieldText(n, "receiver")); recv != "" {
		sym.Kind = model.KindMethod
		sym.ParentClass = ctx.Qualify(recv)
		sym.QualifiedName = ctx.Qualify(recv + "." + sym.Name)
	}
	return sym, nil
}

// receiverType extracts "Server" from "(s *Server)" or "(Server[T])".
func receiverType(recv string) string {
	recv = strings.Trim(strings.TrimSpace(recv), "()")
	fields := strings.Fields(recv)
	if len(fields) == 0 {
		return ""
	}
	t := strings.TrimLeft(fields[len(fields)-1], "*")
	if i := strings.IndexByte(t, '['); i > 0 {
		t = t[:i]
	}
	return t
}

func goTypeSymbol(n *tree_sitter.Node, ctx *visitor.Context) (*model.Symbol, error) {
	name := ctx.FieldText(n, "name")
	if name == "" {
		return nil, nil
	}
	kind := model.KindTypedef
	if typ := n.ChildByFieldName("type"); typ != nil {
		switch typ.Kind() {
		case "struct_type":
			kind = model.KindStruct
		case "interface_type":
			kind = model.KindInterface
		}
	}
	sym := ctx.NewSymbol(n, name, kind, model.OriginClassHandler)
	sym.Confidence = definitionConfidence
	if isExported(name, ctx.Language) {
		sym.SetFeature(model.FeatureExported, true)
	}
	return sym, nil
}
