package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/module-sentinel/internal/lang"
	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/parser"
	"github.com/DeusData/module-sentinel/internal/visitor"
)

func visit(t *testing.T, l lang.Language, path, src string) *visitor.Result {
	t.Helper()
	tree, err := parser.Parse(l, []byte(src))
	require.NoError(t, err)
	defer tree.Close()
	table := ForLanguage(l)
	require.NotNil(t, table)
	opts := visitor.DefaultOptions()
	opts.Lightweight = true
	return visitor.New(opts).Traverse(context.Background(), tree, path, []byte(src), table)
}

func symbolsByQN(res *visitor.Result, qn string) []model.Symbol {
	var out []model.Symbol
	for _, s := range res.Symbols {
		if s.QualifiedName == qn {
			out = append(out, s)
		}
	}
	return out
}

func oneSymbol(t *testing.T, res *visitor.Result, qn string) model.Symbol {
	t.Helper()
	syms := symbolsByQN(res, qn)
	require.Len(t, syms, 1, "symbol %s", qn)
	return syms[0]
}

func hasRelationship(res *visitor.Result, from, to string, typ model.RelationshipType) bool {
	for _, r := range res.Relationships {
		if r.FromName == from && r.ToName == to && r.Type == typ {
			return true
		}
	}
	return false
}

func TestForLanguageCachesTables(t *testing.T) {
	a := ForLanguage(lang.CPP)
	b := ForLanguage(lang.CPP)
	require.NotNil(t, a)
	assert.Same(t, a, b)
	assert.Nil(t, ForLanguage(lang.Language("cobol")))
	for _, l := range lang.AllLanguages() {
		assert.NotNil(t, ForLanguage(l), "table for %s", l)
	}
}

func TestPythonClassAndMethods(t *testing.T) {
	src := `import os

class Worker(Base, Mixin):
    def __init__(self):
        self.n = 0

    def run(self):
        helper()

def helper():
    pass
`
	res := visit(t, lang.Python, "worker.py", src)

	cls := oneSymbol(t, res, "Worker")
	assert.Equal(t, model.KindClass, cls.Kind)
	assert.Equal(t, []string{"Base", "Mixin"}, cls.LanguageFeatures[model.FeatureBaseClasses])

	ctor := oneSymbol(t, res, "Worker.__init__")
	assert.Equal(t, model.KindConstructor, ctor.Kind)
	assert.Equal(t, "Worker", ctor.ParentClass)

	run := oneSymbol(t, res, "Worker.run")
	assert.Equal(t, model.KindMethod, run.Kind)
	assert.Equal(t, 7, run.Line)

	helper := oneSymbol(t, res, "helper")
	assert.Equal(t, model.KindFunction, helper.Kind)
	assert.Empty(t, helper.ParentClass)

	assert.True(t, hasRelationship(res, "Worker", "Base", model.RelInherits))
	assert.True(t, hasRelationship(res, "Worker", "Mixin", model.RelInherits))
	assert.True(t, hasRelationship(res, "Worker.run", "helper", model.RelCalls))
	assert.True(t, hasRelationship(res, "worker.py", "os", model.RelImports))
	assert.Zero(t, res.Stats.HandlerErrors)
}

func TestCPPNamespaceClassAndMembers(t *testing.T) {
	src := `#include <vector>

namespace engine {
class Renderer : public Base {
public:
    Renderer();
    ~Renderer();
    virtual void draw(int x, int y);
    static Renderer* getInstance();
private:
    int frames_;
};

void Renderer::draw(int x, int y) {
    frames_++;
}
}
`
	res := visit(t, lang.CPP, "renderer.cpp", src)

	ns := oneSymbol(t, res, "engine")
	assert.Equal(t, model.KindNamespace, ns.Kind)
	assert.Equal(t, 11, ns.Column)

	cls := oneSymbol(t, res, "engine::Renderer")
	assert.Equal(t, model.KindClass, cls.Kind)
	assert.Equal(t, "engine", cls.Namespace)
	assert.Equal(t, 4, cls.Line)
	assert.Equal(t, 7, cls.Column)

	ctor := oneSymbol(t, res, "engine::Renderer::Renderer")
	assert.Equal(t, model.KindConstructor, ctor.Kind)
	assert.True(t, ctor.FeatureBool(model.FeatureDeclarationOnly))

	dtor := oneSymbol(t, res, "engine::Renderer::~Renderer")
	assert.Equal(t, model.KindDestructor, dtor.Kind)

	inst := oneSymbol(t, res, "engine::Renderer::getInstance")
	assert.True(t, inst.FeatureBool(model.FeatureStatic))

	field := oneSymbol(t, res, "engine::Renderer::frames_")
	assert.Equal(t, model.KindField, field.Kind)
	assert.Equal(t, "int", field.ReturnType)

	draws := symbolsByQN(res, "engine::Renderer::draw")
	require.Len(t, draws, 2)
	var decl, def model.Symbol
	for _, s := range draws {
		if s.FeatureBool(model.FeatureDeclarationOnly) {
			decl = s
		} else {
			def = s
		}
	}
	assert.True(t, decl.FeatureBool(model.FeatureVirtual))
	assert.Equal(t, declarationConfidence, decl.Confidence)
	assert.Equal(t, model.KindMethod, def.Kind)
	assert.Equal(t, "engine::Renderer", def.ParentClass)
	assert.Equal(t, 14, def.Line)
	assert.Equal(t, 16, def.Column)
	assert.Equal(t, 18, decl.Column)
	assert.Equal(t, 2, def.LanguageFeatures[model.FeatureParameterCount])

	assert.True(t, hasRelationship(res, "engine::Renderer", "Base", model.RelInherits))
	assert.True(t, hasRelationship(res, "renderer.cpp", "vector", model.RelImports))

	require.Len(t, res.Patterns, 1)
	p := res.Patterns[0]
	assert.Equal(t, "singleton", p.Type)
	assert.Equal(t, "engine::Renderer", p.Name)
	assert.InDelta(t, 0.9, p.Confidence, 1e-9)
}

func TestCPPTemplateAndAlias(t *testing.T) {
	src := `template <typename T>
class Box {
public:
    constexpr T get() const { return v; }
    T v;
};

using IntBox = Box<int>;
`
	res := visit(t, lang.CPP, "box.hpp", src)

	box := oneSymbol(t, res, "Box")
	assert.True(t, box.FeatureBool(model.FeatureTemplate))

	get := oneSymbol(t, res, "Box::get")
	assert.Equal(t, model.KindMethod, get.Kind)
	assert.True(t, get.FeatureBool(model.FeatureConstexpr))
	assert.False(t, get.FeatureBool(model.FeatureDeclarationOnly))

	alias := oneSymbol(t, res, "IntBox")
	assert.Equal(t, model.KindTypedef, alias.Kind)
	assert.Equal(t, "Box<int>", alias.Signature)
}

func TestJSArrowFunctionSeenByBothHandlers(t *testing.T) {
	src := `export const handler = async (req) => {
  return process(req);
};

function outer() {
  const inner = () => 1;
  return inner();
}
`
	res := visit(t, lang.JavaScript, "app.js", src)

	handlers := symbolsByQN(res, "handler")
	require.Len(t, handlers, 2)
	origins := map[string]model.Symbol{}
	for _, s := range handlers {
		origins[s.Origin] = s
	}
	v, ok := origins[model.OriginVariableHandler]
	require.True(t, ok)
	assert.True(t, v.FeatureBool(model.FeatureExported))
	assert.True(t, v.FeatureBool(model.FeatureAsync))
	assert.True(t, v.FeatureBool(model.FeatureArrowFunction))
	assert.Equal(t, "(req)", v.Signature)

	f, ok := origins[model.OriginFunctionHandler]
	require.True(t, ok)
	assert.True(t, f.FeatureBool(model.FeatureArrowFunction))
	assert.Equal(t, v.Line, f.Line)

	for _, s := range res.Symbols {
		if s.Name == "inner" {
			assert.NotEqual(t, model.OriginVariableHandler, s.Origin)
			assert.Equal(t, "outer.inner", s.QualifiedName)
		}
	}
	assert.True(t, hasRelationship(res, "handler", "process", model.RelCalls))
}

func TestGoMethodsAndTypes(t *testing.T) {
	src := `package srv

import (
	"fmt"
	"strings"
)

type Server struct{ name string }

type Runner interface{ Run() error }

func (s *Server) Start() error {
	fmt.Println(strings.ToUpper(s.name))
	return nil
}

func helper() {}
`
	res := visit(t, lang.Go, "srv.go", src)

	assert.Equal(t, model.KindStruct, oneSymbol(t, res, "Server").Kind)
	assert.Equal(t, model.KindInterface, oneSymbol(t, res, "Runner").Kind)

	start := oneSymbol(t, res, "Server.Start")
	assert.Equal(t, model.KindMethod, start.Kind)
	assert.Equal(t, "Server", start.ParentClass)
	assert.True(t, start.FeatureBool(model.FeatureExported))

	h := oneSymbol(t, res, "helper")
	assert.False(t, h.FeatureBool(model.FeatureExported))

	assert.True(t, hasRelationship(res, "srv.go", "fmt", model.RelImports))
	assert.True(t, hasRelationship(res, "srv.go", "strings", model.RelImports))
	assert.True(t, hasRelationship(res, "Server.Start", "fmt.Println", model.RelCalls))
}

func TestRustImplTrait(t *testing.T) {
	src := `struct Point { x: i32 }

impl Display for Point {
    fn fmt(&self) -> String {
        format!("{}", self.x)
    }
}
`
	res := visit(t, lang.Rust, "point.rs", src)

	assert.Equal(t, model.KindStruct, oneSymbol(t, res, "Point").Kind)
	fmtFn := oneSymbol(t, res, "Point::fmt")
	assert.Equal(t, model.KindMethod, fmtFn.Kind)
	assert.Equal(t, "Point", fmtFn.ParentClass)
	assert.True(t, hasRelationship(res, "Point", "Display", model.RelInherits))
	assert.True(t, hasRelationship(res, "Point::fmt", "format!", model.RelCalls))
}

func TestClassPatterns(t *testing.T) {
	tests := []struct {
		name string
		l    lang.Language
		src  string
		want string
	}{
		{
			name: "builder",
			l:    lang.JavaScript,
			src:  "class RequestBuilder {\n  withUrl(u) { return this; }\n  withBody(b) { return this; }\n  build() { return {}; }\n}\n",
			want: "builder",
		},
		{
			name: "observer",
			l:    lang.Python,
			src:  "class EventBus:\n    def subscribe(self, fn): pass\n    def unsubscribe(self, fn): pass\n    def notify(self, ev): pass\n",
			want: "observer",
		},
		{
			name: "factory",
			l:    lang.Java,
			src:  "class ShapeFactory {\n  Shape createCircle() { return null; }\n}\n",
			want: "factory",
		},
		{
			name: "none",
			l:    lang.Python,
			src:  "class Plain:\n    def run(self): pass\n",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := visit(t, tt.l, "f", tt.src)
			if tt.want == "" {
				assert.Empty(t, res.Patterns)
				return
			}
			require.Len(t, res.Patterns, 1)
			assert.Equal(t, tt.want, res.Patterns[0].Type)
			assert.GreaterOrEqual(t, res.Patterns[0].Confidence, minPatternConfidence)
		})
	}
}

func TestReceiverType(t *testing.T) {
	cases := map[string]string{
		"(s *Server)":    "Server",
		"(Server)":       "Server",
		"(c *Cache[K])":  "Cache",
		"":               "",
		"(b *pkg.Thing)": "pkg.Thing",
	}
	for in, want := range cases {
		assert.Equal(t, want, receiverType(in), in)
	}
}

func TestHasWord(t *testing.T) {
	assert.True(t, hasWord("static inline int", "static"))
	assert.False(t, hasWord("statically", "static"))
	assert.True(t, hasWord("virtual\tvoid", "virtual"))
}
