package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefault(t *testing.T) {
	cfg := Load("/nonexistent/path")
	assert.Equal(t, 3, cfg.EffectiveMinComplexityScore())
	assert.Equal(t, 10, cfg.EffectiveMaxAnalyzedFunctions())
	assert.Equal(t, 5*time.Second, cfg.EffectiveFunctionTimeout())
	assert.Equal(t, 32*1024, cfg.EffectiveStructuralLimit())
	assert.Equal(t, "clang++", cfg.EffectiveCompilerPath())
	assert.Equal(t, runtime.NumCPU(), cfg.EffectiveWorkers())
	assert.False(t, cfg.CompilerDisabled(), "compiler should be enabled by default")
	assert.True(t, cfg.LanguageEnabled("cpp"), "empty allow-list should enable every language")
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
languages: [cpp, python]
exclude_origins:
  - "**/generated/**"
compiler:
  path: /opt/llvm/bin/clang++
  std: c++23
  timeouts:
    fallback: 15s
  max_retained_nodes: 100
analysis:
  min_complexity_score: 5
  function_timeout: 250ms
strategy:
  structural_limit: 1024
workers: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600))

	cfg := Load(dir)
	assert.Equal(t, "/opt/llvm/bin/clang++", cfg.EffectiveCompilerPath())
	assert.Equal(t, "c++23", cfg.EffectiveStd())
	assert.Equal(t, 15*time.Second, cfg.EffectiveFallbackTimeout())
	assert.Equal(t, 30*time.Second, cfg.EffectiveRewriteTimeout(), "rewrite timeout keeps its default")
	assert.Equal(t, 100, cfg.EffectiveMaxRetainedNodes())
	assert.Equal(t, 5, cfg.EffectiveMinComplexityScore())
	assert.Equal(t, 250*time.Millisecond, cfg.EffectiveFunctionTimeout())
	assert.Equal(t, 1024, cfg.EffectiveStructuralLimit())
	assert.Equal(t, 2, cfg.EffectiveWorkers())
	assert.Len(t, cfg.ExcludeOrigins, 1)
	assert.False(t, cfg.LanguageEnabled("go"))
	assert.True(t, cfg.LanguageEnabled("python"))
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("not: [valid: yaml"), 0o600))
	cfg := Load(dir)
	assert.Equal(t, 3, cfg.EffectiveMinComplexityScore(), "invalid yaml falls back to defaults")
}

func TestNonPositiveValuesFallBack(t *testing.T) {
	zero := 0
	neg := -time.Second
	cfg := &Config{Workers: &zero}
	cfg.Analysis.FunctionTimeout = &neg
	assert.Equal(t, runtime.NumCPU(), cfg.EffectiveWorkers())
	assert.Equal(t, 5*time.Second, cfg.EffectiveFunctionTimeout())
}
