package postprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/module-sentinel/internal/model"
)

func sym(name, qn string, kind model.SymbolKind, line int, conf float64) model.Symbol {
	return model.Symbol{Name: name, QualifiedName: qn, Kind: kind, Line: line, Column: 1, EndLine: line + 1, Confidence: conf}
}

func TestDedupKey(t *testing.T) {
	arrow := sym("foo", "foo", model.KindFunction, 3, 0.9)
	scoped := sym("foo", "Scope::foo", model.KindFunction, 3, 0.5)
	method := sym("foo", "foo", model.KindMethod, 3, 0.5)
	assert.Equal(t, "function:foo", DedupKey(&arrow))
	assert.Equal(t, "function:foo:3:1", DedupKey(&scoped))
	assert.Equal(t, "method:foo:3:1", DedupKey(&method))
}

func TestDedupKeepsDistinctKeys(t *testing.T) {
	a := sym("foo", "foo", model.KindFunction, 3, 0.9)
	a.SetFeature(model.FeatureArrowFunction, true)
	b := sym("foo", "Scope::foo", model.KindFunction, 3, 0.5)

	res := Process(&model.RawResult{Symbols: []model.Symbol{a, b}}, "x.ts")
	assert.Len(t, res.Symbols, 2)
	assert.Zero(t, res.Processing.DuplicatesRemoved)
}

func TestDedupCollapsesArrowFunctionSeenTwice(t *testing.T) {
	fromVar := sym("handler", "handler", model.KindFunction, 4, 0.8)
	fromVar.Origin = model.OriginVariableHandler
	fromFunc := sym("handler", "handler", model.KindFunction, 4, 0.85)
	fromFunc.Column = 17
	fromFunc.Origin = model.OriginFunctionHandler

	out, removed := Dedup([]model.Symbol{fromFunc, fromVar})
	require.Len(t, out, 1)
	assert.Equal(t, 1, removed)
	assert.Equal(t, model.OriginVariableHandler, out[0].Origin, "variable handler takes priority")
}

func TestDedupReplacementRules(t *testing.T) {
	base := sym("f", "ns::f", model.KindMethod, 10, 0.6)

	withSig := base
	withSig.Confidence = 0.55
	withSig.Signature = "(int)"
	out, removed := Dedup([]model.Symbol{base, withSig})
	require.Len(t, out, 1)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "(int)", out[0].Signature)

	rich := base
	rich.Confidence = 0.55
	for _, k := range []string{"a", "b", "c", "d"} {
		rich.SetFeature(k, true)
	}
	out, _ = Dedup([]model.Symbol{base, rich})
	assert.Len(t, out[0].LanguageFeatures, 4)

	slightlyRicher := base
	slightlyRicher.Confidence = 0.55
	slightlyRicher.LanguageFeatures = map[string]any{"a": true, "b": true}
	out, removed = Dedup([]model.Symbol{base, slightlyRicher})
	assert.Equal(t, 1, removed)
	assert.InDelta(t, 0.6, out[0].Confidence, 1e-9, "existing entry kept")
}

func TestDedupConfidenceMonotonicity(t *testing.T) {
	low := sym("g", "ns::g", model.KindMethod, 2, 0.5)
	high := sym("g", "ns::g", model.KindMethod, 2, 0.65)
	for _, in := range [][]model.Symbol{{low, high}, {high, low}} {
		out, removed := Dedup(in)
		require.Len(t, out, 1)
		assert.Equal(t, 1, removed)
		assert.InDelta(t, 0.65, out[0].Confidence, 1e-9)
	}
}

func TestDedupIdempotent(t *testing.T) {
	in := []model.Symbol{
		sym("a", "a", model.KindFunction, 1, 0.7),
		sym("a", "a", model.KindFunction, 9, 0.9),
		sym("B", "B", model.KindClass, 3, 0.8),
		sym("B", "B", model.KindClass, 3, 0.4),
		sym("c", "B::c", model.KindMethod, 4, 0.8),
	}
	once, removed := Dedup(in)
	assert.Equal(t, 2, removed)
	twice, removedAgain := Dedup(once)
	assert.Zero(t, removedAgain)
	assert.Equal(t, once, twice)
	assert.Equal(t, "a", once[0].Name, "traversal order is preserved")
	assert.Equal(t, 9, once[0].Line, "higher confidence observation wins")
}

func TestValidationEmptyNameCostsTen(t *testing.T) {
	clean := Process(&model.RawResult{Symbols: []model.Symbol{sym("f", "f", model.KindFunction, 5, 0.7)}}, "a.go")
	broken := Process(&model.RawResult{Symbols: []model.Symbol{sym("", "", model.KindFunction, 5, 0.7)}}, "a.go")

	assert.Empty(t, clean.Processing.ValidationErrors)
	require.Len(t, broken.Processing.ValidationErrors, 1)
	assert.Len(t, broken.Symbols, 1, "invalid symbols are reported, not dropped")
	assert.InDelta(t, clean.Processing.QualityScore-10, broken.Processing.QualityScore, 1e-9)
}

func TestValidationFindings(t *testing.T) {
	backwards := sym("f", "f", model.KindFunction, 10, 0.8)
	backwards.EndLine = 4
	long := sym("g", strings.Repeat("x", 201), model.KindMethod, 1, 0.8)
	code := sym("h", "if (x) { return y; } else { return z; } // and more", model.KindFunction, 2, 0.8)
	multiline := sym("i", "a\nb", model.KindFunction, 3, 0.8)
	weak := sym("j", "j", model.KindFunction, 4, 0.2)

	res := Process(&model.RawResult{
		Symbols: []model.Symbol{backwards, long, code, multiline, weak},
		Relationships: []model.Relationship{
			{FromName: "f", ToName: "", Type: model.RelCalls, Confidence: 0.8},
			{FromName: "f", ToName: "g", Type: model.RelCalls, Confidence: 0.1},
		},
	}, "a.c")

	assert.Len(t, res.Processing.ValidationErrors, 2)
	assert.Len(t, res.Processing.ValidationWarnings, 5)
}

func TestDedupRelationships(t *testing.T) {
	res := Process(&model.RawResult{Relationships: []model.Relationship{
		{FromName: "A", ToName: "Base", Type: model.RelInherits, Confidence: 0.8, LineNumber: 3},
		{FromName: "A", ToName: "Base", Type: model.RelInherits, Confidence: 0.95, LineNumber: 3},
		{FromName: "A", ToName: "Base", Type: model.RelUsesType, Confidence: 0.6, LineNumber: 3},
	}}, "a.cpp")
	require.Len(t, res.Relationships, 2)
	assert.InDelta(t, 0.95, res.Relationships[0].Confidence, 1e-9)
}

func TestQualityScore(t *testing.T) {
	kept := []model.Symbol{sym("a", "a", model.KindClass, 1, 0.9), sym("b", "b", model.KindClass, 2, 0.9)}
	assert.InDelta(t, 100.0, QualityScore(0, 0, 0, kept), 1e-9)
	// 100 - 10 - 4 - 20*(2/4) + 2 = 78
	assert.InDelta(t, 78.0, QualityScore(1, 2, 2, kept), 1e-9)
	assert.Zero(t, QualityScore(20, 0, 0, kept))
	assert.InDelta(t, 100.0, QualityScore(0, 0, 0, nil), 1e-9)
}

func TestProcessNil(t *testing.T) {
	res := Process(nil, "a.go")
	assert.Equal(t, "a.go", res.FilePath)
	assert.InDelta(t, 100.0, res.Processing.QualityScore, 1e-9)
	assert.NotNil(t, res.Processing.ValidationErrors)
}
