package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/module-sentinel/internal/clangast"
	"github.com/DeusData/module-sentinel/internal/lang"
	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/strategy"
)

const widgetSource = `class Widget {
public:
    Widget();
    void run();
};
void Widget::run() {}
`

// widgetDecls is what clang reports for widgetSource: positions at the name
// token, constructors as CXXConstructorDecl.
func widgetDecls(file string) []clangast.Decl {
	return []clangast.Decl{
		{Kind: "CXXRecordDecl", Name: "Widget", QualifiedName: "Widget", TagUsed: "class", File: file, Line: 1, Column: 7, EndLine: 5},
		{Kind: "CXXConstructorDecl", Name: "Widget", QualifiedName: "Widget::Widget", ParentClass: "Widget", File: file, Line: 3, Column: 5, EndLine: 3},
		{Kind: "CXXMethodDecl", Name: "run", QualifiedName: "Widget::run", ParentClass: "Widget", File: file, Line: 4, Column: 10, EndLine: 4, Type: "void ()"},
		{Kind: "CXXMethodDecl", Name: "run", QualifiedName: "Widget::run", ParentClass: "Widget", File: file, Line: 6, Column: 14, EndLine: 6, Type: "void ()", Definition: true},
	}
}

func newStructuralExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(t.TempDir(), structuralConfig())
	require.NoError(t, err)
	return e
}

func TestAssembleFoldsCompilerAndStructuralSymbols(t *testing.T) {
	e := newStructuralExtractor(t)
	content := []byte(widgetSource)
	d := strategy.Decision{Strategy: strategy.CompilerFull, Language: lang.CPP}

	res, err := e.traverse(context.Background(), "widget.cpp", d, content)
	require.NoError(t, err)
	require.Len(t, res.Symbols, 4)

	doc := &clangast.ASTDocument{FilePath: "/repo/widget.cpp", Strategy: strategy.CompilerFull, Decls: widgetDecls("/repo/widget.cpp")}
	out, err := assemble("widget.cpp", d, content, stages{used: d.Strategy, compiler: doc, structural: res})
	require.NoError(t, err)

	type key struct {
		kind model.SymbolKind
		qn   string
		line int
	}
	seen := make(map[key]int)
	for _, s := range out.Symbols {
		seen[key{s.Kind, s.QualifiedName, s.Line}]++
		assert.Equal(t, "widget.cpp", s.FilePath)
	}
	assert.Equal(t, map[key]int{
		{model.KindClass, "Widget", 1}:               1,
		{model.KindConstructor, "Widget::Widget", 3}: 1,
		{model.KindMethod, "Widget::run", 4}:         1,
		{model.KindMethod, "Widget::run", 6}:         1,
	}, seen)
	assert.Equal(t, 4, out.Processing.DuplicatesRemoved)
	assert.Equal(t, string(strategy.CompilerFull), out.Strategy)
}

func TestAssembleStructSpecifier(t *testing.T) {
	e := newStructuralExtractor(t)
	content := []byte("struct Point {\n    int x;\n};\n")
	d := strategy.Decision{Strategy: strategy.CompilerFull, Language: lang.CPP}

	res, err := e.traverse(context.Background(), "point.h", d, content)
	require.NoError(t, err)
	doc := &clangast.ASTDocument{FilePath: "/repo/point.h", Decls: []clangast.Decl{
		{Kind: "CXXRecordDecl", Name: "Point", QualifiedName: "Point", TagUsed: "struct", File: "/repo/point.h", Line: 1, Column: 8, EndLine: 3},
	}}
	out, err := assemble("point.h", d, content, stages{used: d.Strategy, compiler: doc, structural: res})
	require.NoError(t, err)

	var points []model.Symbol
	for _, s := range out.Symbols {
		if s.QualifiedName == "Point" {
			points = append(points, s)
		}
	}
	require.Len(t, points, 1)
	assert.Equal(t, model.KindStruct, points[0].Kind)
	assert.Equal(t, model.OriginCompiler, points[0].Origin)
}

func TestAssembleStructuralFailureWithoutCompilerSymbols(t *testing.T) {
	d := strategy.Decision{Strategy: strategy.Structural, Language: lang.CPP}
	_, err := assemble("x.cpp", d, nil, stages{used: d.Strategy, structuralErr: assert.AnError})
	assert.ErrorIs(t, err, assert.AnError)

	doc := &clangast.ASTDocument{FilePath: "/repo/x.cpp", Decls: widgetDecls("/repo/x.cpp")}
	out, err := assemble("x.cpp", d, []byte(widgetSource), stages{used: d.Strategy, compiler: doc, structuralErr: assert.AnError})
	require.NoError(t, err)
	assert.Len(t, out.Symbols, 4)
	assert.Contains(t, out.Processing.AnalysisWarnings, "structural parse failed: "+assert.AnError.Error())
}

const overloadSource = `int processItems(const std::vector<int>& items) {
    int total = 0;
    for (int i : items) {
        if (i > 0) {
            if (i % 2 == 0) {
                total += i;
            }
        }
    }
    return total;
}

int processItems(int a, int b, int c) {
    int n = 0;
    if (a > 0) { n++; }
    if (b > 0) { n++; }
    if (c > 0) { n++; }
    return n;
}
`

func TestFunctionMetricsKeepsOverloadsApart(t *testing.T) {
	e := newStructuralExtractor(t)
	content := []byte(overloadSource)
	d := strategy.Decision{Strategy: strategy.Structural, Language: lang.CPP}

	res, err := e.traverse(context.Background(), "items.cpp", d, content)
	require.NoError(t, err)
	require.Len(t, res.FlowGraphs, 2)
	assert.Equal(t, 0, res.FlowGraphs[0].Function)
	assert.Equal(t, 1, res.FlowGraphs[1].Function)

	ms := functionMetrics(res, content)
	require.Len(t, ms, 2)
	byLine := make(map[int]model.FunctionMetrics)
	for _, m := range ms {
		assert.Equal(t, "processItems", m.QualifiedName)
		byLine[m.Line] = m
	}
	require.Contains(t, byLine, 1)
	require.Contains(t, byLine, 13)

	nested := byLine[1]
	assert.Equal(t, 3, nested.NestingDepth)
	assert.Equal(t, 6, nested.Cognitive)

	flat := byLine[13]
	assert.Equal(t, 1, flat.NestingDepth)
	assert.Equal(t, 3, flat.Cognitive)
}
