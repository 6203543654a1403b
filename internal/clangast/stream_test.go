package clangast

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// astFixture is a trimmed clang JSON dump with elided file/line fields, one
// system declaration, one vendored record and a project namespace.
func astFixture(root string) (string, string) {
	src := filepath.Join(root, "src", "engine.cpp")
	vendor := filepath.Join(root, "third_party", "vec.h")
	return fmt.Sprintf(`{"id":"0x1","kind":"TranslationUnitDecl","loc":{},"range":{"begin":{},"end":{}},"inner":[
{"id":"0x2","kind":"TypedefDecl","loc":{},"range":{"begin":{},"end":{}},"isImplicit":true,"name":"__int128_t","type":{"qualType":"__int128"}},
{"id":"0x10","kind":"FunctionDecl","loc":{"offset":10,"file":"/usr/include/stdio.h","line":50,"col":5,"tokLen":6},"range":{"begin":{"offset":0,"col":1,"tokLen":3},"end":{"offset":30,"col":20,"tokLen":1}},"name":"printf","type":{"qualType":"int (const char *, ...)"}},
{"id":"0x20","kind":"CXXRecordDecl","loc":{"offset":5,"file":%q,"line":3,"col":7,"tokLen":3},"range":{"begin":{"col":1},"end":{"line":9,"col":1}},"name":"Vec","tagUsed":"class","completeDefinition":true},
{"id":"0x30","kind":"NamespaceDecl","loc":{"offset":1,"file":%q,"line":2,"col":11,"tokLen":6},"range":{"begin":{"col":1},"end":{"line":30,"col":1}},"name":"engine","inner":[
 {"id":"0x40","kind":"CXXRecordDecl","loc":{"line":4,"col":7},"range":{"begin":{"col":1},"end":{"line":12,"col":1}},"name":"Renderer","tagUsed":"class","completeDefinition":true,
  "bases":[{"access":"public","type":{"qualType":"Base"},"writtenAccess":"public"}],
  "inner":[
   {"id":"0x41","kind":"CXXRecordDecl","loc":{"line":4,"col":7},"range":{"begin":{"col":1},"end":{"col":7}},"isImplicit":true,"name":"Renderer","tagUsed":"class"},
   {"id":"0x42","kind":"CXXMethodDecl","loc":{"line":6,"col":18},"range":{"begin":{"col":5},"end":{"col":40}},"name":"draw","type":{"qualType":"void (int, Unknown)"},"virtual":true,"inner":[
    {"id":"0x43","kind":"ParmVarDecl","loc":{"col":27},"range":{"begin":{"col":23},"end":{"col":27}},"name":"x","type":{"qualType":"int"}},
    {"id":"0x44","kind":"ParmVarDecl","loc":{"col":38},"range":{"begin":{"col":30},"end":{"col":38}},"name":"u","type":{"qualType":"<<error-type>>"}}
   ]},
   {"id":"0x45","kind":"CXXConstructorDecl","loc":{"line":7,"col":5},"range":{"begin":{"col":5},"end":{"col":14}},"name":"Renderer","type":{"qualType":"void ()"}}
  ]},
 {"id":"0x50","kind":"CXXMethodDecl","loc":{"line":14,"col":16},"range":{"begin":{"col":1},"end":{"line":16,"col":1}},"parentDeclContextId":"0x40","name":"draw","type":{"qualType":"void (int, Unknown)"},"inner":[
  {"id":"0x51","kind":"ParmVarDecl","loc":{"line":14,"col":25},"range":{"begin":{"col":21},"end":{"col":25}},"name":"x","type":{"qualType":"int"}},
  {"id":"0x52","kind":"CompoundStmt","range":{"begin":{"col":40},"end":{"line":16,"col":1}}}
 ]},
 {"id":"0x60","kind":"FunctionTemplateDecl","loc":{"line":18,"col":3},"range":{"begin":{"col":1},"end":{"col":40}},"name":"clamp","inner":[
  {"id":"0x61","kind":"TemplateTypeParmDecl","loc":{"col":19},"range":{"begin":{"col":10},"end":{"col":19}},"name":"T"},
  {"id":"0x62","kind":"FunctionDecl","loc":{"col":3},"range":{"begin":{"col":1},"end":{"col":40}},"name":"clamp","type":{"qualType":"T (T)"},"inner":[
   {"id":"0x63","kind":"ParmVarDecl","loc":{"col":11},"range":{"begin":{"col":9},"end":{"col":11}},"name":"v","type":{"qualType":"T"}},
   {"id":"0x64","kind":"CompoundStmt","range":{"begin":{"col":13},"end":{"col":40}}}
  ]}
 ]}
]},
{"id":"0x70","kind":"FunctionDecl","loc":{"line":32,"col":5},"range":{"begin":{"col":1},"end":{"line":34,"col":1}},"name":"main","type":{"qualType":"int ()"},"inner":[
 {"id":"0x71","kind":"CompoundStmt","range":{"begin":{"line":32,"col":12},"end":{"line":34,"col":1}}}
]}
]}`, vendor, src), src
}

func decodeFixture(t *testing.T, text, root string, maxNodes int) (*collector, error) {
	t.Helper()
	filter, err := NewOriginFilter(root, nil)
	require.NoError(t, err)
	c := newCollector(filter, root, maxNodes)
	return c, decodeStream(strings.NewReader(text), c)
}

func declByQN(c *collector, qn string, definition bool) *Decl {
	for i := range c.Decls {
		if c.Decls[i].QualifiedName == qn && c.Decls[i].Definition == definition {
			return &c.Decls[i]
		}
	}
	return nil
}

func TestDecodeStreamRetainsProjectDeclarations(t *testing.T) {
	root := t.TempDir()
	text, src := astFixture(root)
	c, err := decodeFixture(t, text, root, 0)
	require.NoError(t, err)

	assert.Equal(t, 7, c.Retained)
	assert.Equal(t, 2, c.Discarded)
	assert.False(t, c.Truncated)
	for _, d := range c.Decls {
		assert.Equal(t, src, d.File, d.QualifiedName)
		assert.NotEqual(t, "printf", d.Name)
		assert.NotEqual(t, "Vec", d.Name)
	}

	ns := declByQN(c, "engine", false)
	require.NotNil(t, ns)
	assert.Equal(t, 2, ns.Line)
	assert.Equal(t, 30, ns.EndLine)

	cls := declByQN(c, "engine::Renderer", false)
	require.NotNil(t, cls)
	assert.Equal(t, "CXXRecordDecl", cls.Kind)
	assert.Equal(t, "engine", cls.Namespace)
	assert.Equal(t, 4, cls.Line)
	assert.Equal(t, 12, cls.EndLine)
	assert.Equal(t, []string{"Base"}, cls.Bases)

	decl := declByQN(c, "engine::Renderer::draw", false)
	require.NotNil(t, decl)
	assert.Equal(t, "engine::Renderer", decl.ParentClass)
	assert.Equal(t, 6, decl.Line)
	assert.True(t, decl.Virtual)
	assert.Len(t, decl.Params, 2)

	def := declByQN(c, "engine::Renderer::draw", true)
	require.NotNil(t, def)
	assert.Equal(t, "engine::Renderer", def.ParentClass)
	assert.Equal(t, 14, def.Line)
	assert.Equal(t, 16, def.EndLine)

	ctor := declByQN(c, "engine::Renderer::Renderer", false)
	require.NotNil(t, ctor)
	assert.Equal(t, 7, ctor.Line)

	clamp := declByQN(c, "engine::clamp", true)
	require.NotNil(t, clamp)
	assert.True(t, clamp.Template)
	assert.Equal(t, 18, clamp.Line)

	main := declByQN(c, "main", true)
	require.NotNil(t, main)
	assert.Equal(t, 32, main.Line)
	assert.Empty(t, main.Namespace)
}

func TestDecodeStreamTruncatesAtLimit(t *testing.T) {
	root := t.TempDir()
	text, _ := astFixture(root)
	c, err := decodeFixture(t, text, root, 2)
	require.NoError(t, err)
	assert.True(t, c.Truncated)
	assert.Equal(t, 2, c.Retained)
	assert.Len(t, c.Decls, 2)
}

func TestDecodeStreamKeepsPartialOutput(t *testing.T) {
	root := t.TempDir()
	text, _ := astFixture(root)
	cut := text[:strings.Index(text, `"name":"main"`)]
	c, err := decodeFixture(t, cut, root, 0)
	require.Error(t, err)
	assert.Equal(t, 6, c.Retained)
	assert.Nil(t, declByQN(c, "main", true))
}

func TestDecodeStreamVendorNeverRetained(t *testing.T) {
	root := t.TempDir()
	text, _ := astFixture(root)
	for _, limit := range []int{0, 1, 3, 100} {
		c, _ := decodeFixture(t, text, root, limit)
		for _, d := range c.Decls {
			assert.NotContains(t, d.File, "third_party")
			assert.False(t, strings.HasPrefix(d.File, "/usr/"))
		}
	}
}

func TestDecodeStreamRejectsNonObject(t *testing.T) {
	root := t.TempDir()
	_, err := decodeFixture(t, `[1,2]`, root, 0)
	assert.Error(t, err)
}

func TestExpansionLocationWins(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "m.cpp")
	text := fmt.Sprintf(`{"kind":"TranslationUnitDecl","inner":[
{"id":"0x1","kind":"FunctionDecl","loc":{"spellingLoc":{"file":"<scratch space>","line":1,"col":1},"expansionLoc":{"file":%q,"line":9,"col":3}},"range":{"begin":{},"end":{}},"name":"generated","type":{"qualType":"void ()"}}
]}`, src)
	c, err := decodeFixture(t, text, root, 0)
	require.NoError(t, err)
	require.Len(t, c.Decls, 1)
	assert.Equal(t, src, c.Decls[0].File)
	assert.Equal(t, 9, c.Decls[0].Line)
	assert.Equal(t, 3, c.Decls[0].Column)
}
