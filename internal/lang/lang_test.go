package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		lang Language
	}{
		{".py", Python},
		{".go", Go},
		{".js", JavaScript},
		{".ts", TypeScript},
		{".tsx", TSX},
		{".rs", Rust},
		{".java", Java},
		{".c", C},
		{".cpp", CPP},
		{".h", CPP},
		{".ixx", CPP},
		{".cppm", CPP},
		{".cs", CSharp},
		{".php", PHP},
		{".lua", Lua},
		{".scala", Scala},
		{".kt", Kotlin},
		{".kts", Kotlin},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			spec := ForExtension(tt.ext)
			require.NotNil(t, spec)
			assert.Equal(t, tt.lang, spec.Language)
		})
	}
}

func TestForLanguage(t *testing.T) {
	for _, lang := range AllLanguages() {
		spec := ForLanguage(lang)
		require.NotNil(t, spec, "ForLanguage(%s)", lang)
		assert.NotEmpty(t, spec.Separator, "ForLanguage(%s) separator", lang)
		assert.NotEmpty(t, spec.FunctionNodeTypes, "ForLanguage(%s) function node types", lang)
	}
}

func TestUnknownExtension(t *testing.T) {
	assert.Nil(t, ForExtension(".xyz"))
}

func TestSeparatorFor(t *testing.T) {
	assert.Equal(t, "::", SeparatorFor(CPP))
	assert.Equal(t, ".", SeparatorFor(Python))
	assert.Equal(t, ".", SeparatorFor(Language("cobol")))
}

func TestIsCFamily(t *testing.T) {
	assert.True(t, IsCFamily(CPP))
	assert.True(t, IsCFamily(C))
	assert.False(t, IsCFamily(Go))
}

func TestControlFlowTables(t *testing.T) {
	spec := ForLanguage(CPP)
	assert.NotEmpty(t, spec.ConditionalNodeTypes)
	assert.NotEmpty(t, spec.LoopNodeTypes)
	assert.NotEmpty(t, spec.ReturnNodeTypes)
}
