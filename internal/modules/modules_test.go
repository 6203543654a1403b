package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/module-sentinel/internal/model"
)

const interfaceUnit = `module;
#include <cstdint>
export module engine.render:core;
import std;
export import :math;
import <vector>;
// import commented.out;
export namespace engine::render {
  export using Handle = std::uint32_t;
  class Device {};
}
export using Scalar = float;
`

func TestAnalyze(t *testing.T) {
	a := Analyze([]byte(interfaceUnit))
	assert.True(t, a.HasGlobalFragment)
	assert.Equal(t, "engine.render:core", a.ModuleName)
	assert.True(t, a.IsInterface)
	assert.True(t, a.HasModuleSyntax())

	require.Len(t, a.Imports, 3)
	assert.Equal(t, model.ModuleImport{Name: "std", Line: 4}, a.Imports[0])
	assert.Equal(t, model.ModuleImport{Name: ":math", Line: 5, Exported: true}, a.Imports[1])
	assert.Equal(t, "<vector>", a.Imports[2].Name)

	require.Len(t, a.ExportNamespaces, 1)
	assert.Equal(t, model.ExportNamespace{Name: "engine::render", Line: 8}, a.ExportNamespaces[0])

	require.Len(t, a.ExportAliases, 2)
	assert.Equal(t, model.ExportAlias{Name: "Handle", Type: "std::uint32_t", Line: 9}, a.ExportAliases[0])
	assert.Equal(t, "Scalar", a.ExportAliases[1].Name)
}

func TestAnalyzeImplementationUnit(t *testing.T) {
	a := Analyze([]byte("module engine;\nint f() { return 1; }\n"))
	assert.Equal(t, "engine", a.ModuleName)
	assert.False(t, a.IsInterface)
	assert.False(t, a.HasGlobalFragment)
}

func TestAnalyzePlainFile(t *testing.T) {
	a := Analyze([]byte("#include <cstdio>\nint module_count = 0;\nvoid import_all();\n"))
	assert.False(t, a.HasModuleSyntax())
	assert.Empty(t, a.ExportNamespaces)
}

func TestEnhanceBackfillsFirstExportNamespace(t *testing.T) {
	a := Analyze([]byte("export module m;\nexport namespace first {}\nexport namespace second {}\n"))
	raw := &model.RawResult{Symbols: []model.Symbol{
		{Name: "A", QualifiedName: "A", Kind: model.KindClass, Line: 2},
		{Name: "B", QualifiedName: "B", Kind: model.KindClass, Line: 3},
		{Name: "C", QualifiedName: "other::C", Kind: model.KindClass, Namespace: "other", Line: 4},
	}}

	changed := Enhance(raw, a, "m.cppm")
	assert.Equal(t, 2, changed)
	assert.Equal(t, "first", raw.Symbols[0].Namespace)
	assert.Equal(t, "first", raw.Symbols[1].Namespace)
	assert.True(t, raw.Symbols[1].FeatureBool(model.FeatureModuleExported))
	assert.Equal(t, "m", raw.Symbols[1].LanguageFeatures[model.FeatureModuleName])
	assert.Equal(t, "other", raw.Symbols[2].Namespace)
	assert.False(t, raw.Symbols[2].FeatureBool(model.FeatureModuleExported))
}

func TestEnhanceAddsAliasesAndImports(t *testing.T) {
	a := Analyze([]byte(interfaceUnit))
	raw := &model.RawResult{Symbols: []model.Symbol{
		{Name: "Scalar", QualifiedName: "Scalar", Kind: model.KindTypedef, Line: 12},
	}}
	Enhance(raw, a, "/p/core.cppm")

	var handle *model.Symbol
	typedefs := 0
	for i := range raw.Symbols {
		if raw.Symbols[i].Kind == model.KindTypedef {
			typedefs++
		}
		if raw.Symbols[i].Name == "Handle" {
			handle = &raw.Symbols[i]
		}
	}
	assert.Equal(t, 2, typedefs, "existing Scalar typedef is not duplicated")
	require.NotNil(t, handle)
	assert.Equal(t, "engine::render::Handle", handle.QualifiedName)
	assert.Equal(t, "std::uint32_t", handle.Signature)
	assert.Equal(t, model.OriginModuleEnhancer, handle.Origin)
	assert.Equal(t, "/p/core.cppm", handle.FilePath)

	require.Len(t, raw.Relationships, 3)
	for _, r := range raw.Relationships {
		assert.Equal(t, model.RelImports, r.Type)
		assert.Equal(t, "engine.render:core", r.FromName)
	}
	assert.Equal(t, "engine.render:math", raw.Relationships[1].ToName)
	assert.Equal(t, "partition", raw.Relationships[1].Metadata["kind"])
	assert.Equal(t, true, raw.Relationships[1].Metadata["reexported"])
	assert.Equal(t, "header_unit", raw.Relationships[2].Metadata["kind"])
}

func TestEnhanceImportsFromFileWithoutModule(t *testing.T) {
	raw := &model.RawResult{}
	Enhance(raw, Analyze([]byte("import std;\n")), "main.cpp")
	require.Len(t, raw.Relationships, 1)
	assert.Equal(t, "main.cpp", raw.Relationships[0].FromName)
	assert.Equal(t, "std", raw.Relationships[0].ToName)
	assert.Equal(t, 1, raw.Relationships[0].LineNumber)
}

func TestEnhanceNil(t *testing.T) {
	assert.Zero(t, Enhance(nil, &model.ModuleAnalysis{}, "x"))
	assert.Zero(t, Enhance(&model.RawResult{}, nil, "x"))
}
