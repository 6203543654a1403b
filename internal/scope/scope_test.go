package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/module-sentinel/internal/model"
)

func TestQualifyNested(t *testing.T) {
	tr := New("::")
	tr.Push(model.ScopeInfo{Type: model.ScopeNamespace, Name: "engine", StartLine: 1})
	tr.Push(model.ScopeInfo{Type: model.ScopeNamespace, Name: "gfx", StartLine: 2})
	cls := tr.Push(model.ScopeInfo{Type: model.ScopeClass, Name: "Renderer", StartLine: 3})

	assert.Equal(t, "engine::gfx::Renderer", cls.QualifiedName)
	assert.Equal(t, "engine::gfx::Renderer::draw", tr.Qualify("draw"))
	assert.Equal(t, "engine::gfx", tr.Namespace())

	c, ok := tr.CurrentClass()
	require.True(t, ok)
	assert.Equal(t, "Renderer", c.Name)
	assert.Equal(t, 3, tr.Depth())
}

func TestPopRecordsEndLine(t *testing.T) {
	tr := New(".")
	tr.Push(model.ScopeInfo{Type: model.ScopeClass, Name: "A", StartLine: 1})
	f, ok := tr.Pop(20)
	require.True(t, ok)
	assert.Equal(t, 20, f.EndLine)
	assert.Equal(t, 0, tr.Depth())

	_, ok = tr.Pop(1)
	assert.False(t, ok)
	_, ok = tr.Current()
	assert.False(t, ok)
}

func TestBlocksAreSkippedWhenQualifying(t *testing.T) {
	tr := New(".")
	tr.Push(model.ScopeInfo{Type: model.ScopeClass, Name: "Svc"})
	tr.Push(model.ScopeInfo{Type: model.ScopeBlock})
	assert.Equal(t, "Svc.run", tr.Qualify("run"))
	assert.Equal(t, "Svc", tr.Qualify(""))
}

func TestFunctionShadowsClass(t *testing.T) {
	tr := New(".")
	tr.Push(model.ScopeInfo{Type: model.ScopeClass, Name: "Svc"})
	tr.Push(model.ScopeInfo{Type: model.ScopeFunction, Name: "run"})
	_, ok := tr.CurrentClass()
	assert.False(t, ok)
	assert.True(t, tr.InFunction())
	assert.Equal(t, "Svc.run.inner", tr.Qualify("inner"))
}

func TestEmptyTracker(t *testing.T) {
	tr := New("")
	assert.Equal(t, ".", tr.Separator())
	assert.Equal(t, "main", tr.Qualify("main"))
	assert.Equal(t, "", tr.Namespace())
	assert.False(t, tr.InFunction())
}
