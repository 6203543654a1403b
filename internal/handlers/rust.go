package handlers

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/parser"
	"github.com/DeusData/module-sentinel/internal/visitor"
)

func registerRust(t *visitor.HandlerTable) {
	t.OnScope(rustImplScope, "impl_item")
	t.OnRelationship(rustImplRelationships, "impl_item")
}

// rustImplScope opens a class frame for `impl Type` so its functions become
// methods of Type.
func rustImplScope(n *tree_sitter.Node, ctx *visitor.Context) (*model.ScopeInfo, error) {
	typeName := cleanTypeName(ctx.FieldText(n, "type"))
	if typeName == "" {
		return nil, nil
	}
	return &model.ScopeInfo{
		Type:          model.ScopeClass,
		Name:          typeName,
		QualifiedName: ctx.Qualify(typeName),
		StartLine:     parser.StartLine(n),
	}, nil
}

// rustImplRelationships records `impl Trait for Type` as Type inherits Trait.
func rustImplRelationships(n *tree_sitter.Node, ctx *visitor.Context) ([]model.Relationship, error) {
	trait := cleanTypeName(ctx.FieldText(n, "trait"))
	typeName := cleanTypeName(ctx.FieldText(n, "type"))
	if trait == "" || typeName == "" {
		return nil, nil
	}
	return []model.Relationship{{
		FromName:   ctx.Qualify(typeName),
		ToName:     trait,
		Type:       model.RelInherits,
		Confidence: inheritsConfidence,
		LineNumber: parser.StartLine(n),
		Metadata:   map[string]any{"via": "impl"},
	}}, nil
}
