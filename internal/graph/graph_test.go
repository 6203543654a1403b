package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/module-sentinel/internal/model"
)

func nodeByID(v *View, id string) *Node {
	for i := range v.Nodes {
		if v.Nodes[i].ID == id {
			return &v.Nodes[i]
		}
	}
	return nil
}

func sampleInput() Input {
	return Input{
		Symbols: []model.Symbol{
			{Name: "game", QualifiedName: "game", Kind: model.KindNamespace, FilePath: "engine.cpp", Line: 1, EndLine: 40, Confidence: 0.9},
			{Name: "Engine", QualifiedName: "game::Engine", Kind: model.KindClass, FilePath: "engine.cpp", Line: 3, EndLine: 30, Namespace: "game", Confidence: 0.9},
			{Name: "tick", QualifiedName: "game::Engine::tick", Kind: model.KindMethod, FilePath: "engine.cpp", Line: 5, EndLine: 14, Namespace: "game", ParentClass: "Engine", Confidence: 0.6},
			{Name: "tick", QualifiedName: "game::Engine::tick", Kind: model.KindMethod, FilePath: "engine.cpp", Line: 5, EndLine: 14, Namespace: "game", ParentClass: "Engine", Confidence: 0.95, Origin: model.OriginCompiler},
			{Name: "step", QualifiedName: "physics::step", Kind: model.KindFunction, FilePath: "physics.cpp", Line: 2, EndLine: 9, Namespace: "physics", Confidence: 0.8},
		},
		Relationships: []model.Relationship{
			{FromName: "game::Engine::tick", ToName: "step", Type: model.RelCalls, Confidence: 0.7, LineNumber: 7},
			{FromName: "game::Engine::tick", ToName: "step", Type: model.RelCalls, Confidence: 0.9, LineNumber: 8},
			{FromName: "game::Engine::tick", ToName: "cartservice", Type: model.RelInvokes, Confidence: 0.9, CrossLanguage: true, Metadata: map[string]any{"protocol": "grpc"}},
			{FromName: "engine.cpp", ToName: "std.core", Type: model.RelImports, Confidence: 0.9},
			{FromName: "game::Engine::tick", ToName: "std::vector::push_back", Type: model.RelCalls, Confidence: 0.5},
			{FromName: "", ToName: "x", Type: model.RelCalls},
		},
		Metrics: []model.FunctionMetrics{
			{QualifiedName: "game::Engine::tick", Cyclomatic: 4, Cognitive: 3, MaintainabilityIndex: 72.5},
		},
		FileModules: map[string]string{"engine.cpp": "game.engine"},
	}
}

func TestBuildNodes(t *testing.T) {
	v := Build(sampleInput())

	tick := nodeByID(v, "game::Engine::tick")
	require.NotNil(t, tick)
	assert.Equal(t, "method", tick.Type)
	assert.Equal(t, "game::Engine", tick.ParentGroupID)
	assert.Equal(t, "game.engine", tick.ModuleID)
	assert.Equal(t, 10, tick.Size)
	assert.Equal(t, 4.0, tick.Metrics["cyclomatic"])
	assert.Equal(t, 72.5, tick.Metrics["maintainability"])

	engine := nodeByID(v, "game::Engine")
	require.NotNil(t, engine)
	assert.Equal(t, "game", engine.ParentGroupID)

	step := nodeByID(v, "physics::step")
	require.NotNil(t, step)
	assert.Equal(t, "physics", step.ModuleID)
	assert.Nil(t, step.Metrics)
}

func TestBuildKeepsOneNodePerQualifiedName(t *testing.T) {
	v := Build(sampleInput())
	count := 0
	for _, n := range v.Nodes {
		if n.ID == "game::Engine::tick" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestBuildPlaceholders(t *testing.T) {
	v := Build(sampleInput())

	svc := nodeByID(v, "cartservice")
	require.NotNil(t, svc)
	assert.Equal(t, TypeService, svc.Type)

	mod := nodeByID(v, "std.core")
	require.NotNil(t, mod)
	assert.Equal(t, TypeModule, mod.Type)

	file := nodeByID(v, "engine.cpp")
	require.NotNil(t, file)
	assert.Equal(t, TypeFile, file.Type)

	ext := nodeByID(v, "std::vector::push_back")
	require.NotNil(t, ext)
	assert.Equal(t, TypeExternal, ext.Type)
	assert.Equal(t, "push_back", ext.Name)

	// "step" resolves to the unique symbol with that short name.
	assert.Nil(t, nodeByID(v, "step"))
}

func TestBuildEdges(t *testing.T) {
	v := Build(sampleInput())
	require.Len(t, v.Edges, 4)

	var calls *Edge
	for i := range v.Edges {
		if v.Edges[i].Target == "physics::step" {
			calls = &v.Edges[i]
		}
	}
	require.NotNil(t, calls)
	assert.Equal(t, "calls", calls.Type)
	assert.Equal(t, 2.0, calls.Weight)
	assert.Equal(t, 0.9, calls.Details["confidence"])

	stats := v.Summarize()
	assert.Equal(t, 2, stats.EdgesByType["calls"])
	assert.Equal(t, 1, stats.NodesByType[TypeService])
	assert.Equal(t, []string{"calls", "imports", "invokes"}, Types(stats.EdgesByType))
}

func TestBuildEmptyEncodesArrays(t *testing.T) {
	b, err := json.Marshal(Build(Input{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, string(b))
}
