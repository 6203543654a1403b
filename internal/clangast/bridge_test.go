package clangast

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/strategy"
)

// TestHelperProcess stands in for clang when re-executed by the bridge tests.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv("SENTINEL_CLANG_HELPER")
	if mode == "" {
		return
	}
	text, _ := astFixture(os.Getenv("SENTINEL_CLANG_ROOT"))
	partial := text[:strings.Index(text, `"name":"main"`)]
	code := 0
	switch mode {
	case "ok":
		fmt.Fprint(os.Stdout, text)
	case "errors":
		fmt.Fprint(os.Stdout, text)
		fmt.Fprintln(os.Stderr, "engine.cpp:6:30: error: unknown type name 'Unknown'")
		code = 1
	case "fatal":
		fmt.Fprintln(os.Stderr, "engine.cpp:1:10: fatal error: 'missing.h' file not found")
		code = 1
	case "fatal-partial":
		fmt.Fprint(os.Stdout, partial)
		fmt.Fprintln(os.Stderr, "engine.cpp:40:10: fatal error: too many errors emitted")
		code = 1
	case "crash":
		fmt.Fprintln(os.Stderr, "PLEASE submit a bug report")
		code = 2
	case "hang":
		fmt.Fprint(os.Stdout, partial)
		time.Sleep(time.Minute)
	}
	os.Exit(code)
}

type recordedCall struct {
	mu   sync.Mutex
	args []string
}

func newTestBridge(t *testing.T, mode string, opts Options) (*Bridge, string, *recordedCall) {
	t.Helper()
	root := t.TempDir()
	opts.Root = root
	b, err := New(opts)
	require.NoError(t, err)
	rec := &recordedCall{}
	b.command = func(name string, args ...string) *exec.Cmd {
		rec.mu.Lock()
		rec.args = append([]string{name}, args...)
		rec.mu.Unlock()
		cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$")
		cmd.Env = append(os.Environ(),
			"SENTINEL_CLANG_HELPER="+mode,
			"SENTINEL_CLANG_ROOT="+b.opts.Root,
		)
		return cmd
	}
	return b, b.opts.Root, rec
}

func TestGetASTSuccess(t *testing.T) {
	b, root, rec := newTestBridge(t, "ok", Options{})
	src := filepath.Join(root, "src", "engine.cpp")

	doc, err := b.GetAST(context.Background(), src, strategy.CompilerStreamingFiltered)
	require.NoError(t, err)
	assert.False(t, doc.Salvaged)
	assert.Equal(t, 7, doc.Retained)
	assert.Equal(t, 2, doc.Discarded)

	require.NotEmpty(t, rec.args)
	assert.Equal(t, "clang++", rec.args[0])
	assert.Contains(t, rec.args, "-ast-dump=json")
	assert.Contains(t, rec.args, "-std=c++20")
	assert.Equal(t, src, rec.args[len(rec.args)-1])

	syms := doc.Symbols(src)
	assert.Len(t, syms, 7)
	for _, s := range syms {
		assert.Equal(t, model.OriginCompiler, s.Origin)
		assert.InDelta(t, compilerConfidence, s.Confidence, 1e-9)
	}
}

func TestGetASTSalvagesOnNonZeroExit(t *testing.T) {
	b, root, _ := newTestBridge(t, "errors", Options{})
	doc, err := b.GetAST(context.Background(), filepath.Join(root, "src", "engine.cpp"), strategy.CompilerStreamingFiltered)
	require.NoError(t, err)
	assert.True(t, doc.Salvaged)
	assert.Equal(t, 7, doc.Retained)
	assert.Contains(t, doc.Diagnostics, "unknown type name")
}

func TestGetASTFatalWithoutNodesFails(t *testing.T) {
	b, root, _ := newTestBridge(t, "fatal", Options{})
	_, err := b.GetAST(context.Background(), filepath.Join(root, "src", "engine.cpp"), strategy.CompilerStreamingFiltered)
	require.ErrorIs(t, err, ErrFatalDiagnostic)
	assert.Contains(t, err.Error(), "missing.h")
}

func TestGetASTFatalWithNodesSalvages(t *testing.T) {
	b, root, _ := newTestBridge(t, "fatal-partial", Options{})
	doc, err := b.GetAST(context.Background(), filepath.Join(root, "src", "engine.cpp"), strategy.CompilerStreamingFiltered)
	require.NoError(t, err)
	assert.True(t, doc.Salvaged)
	assert.Equal(t, 6, doc.Retained)
}

func TestGetASTCrashWithoutNodesReturnsEmptyDocument(t *testing.T) {
	b, root, _ := newTestBridge(t, "crash", Options{})
	doc, err := b.GetAST(context.Background(), filepath.Join(root, "src", "engine.cpp"), strategy.CompilerStreamingFiltered)
	require.NoError(t, err)
	assert.True(t, doc.Salvaged)
	assert.Zero(t, doc.Retained)
	assert.Empty(t, doc.Decls)
	assert.NotEmpty(t, doc.Failure)
}

func TestGetASTTimeoutSalvagesStreamedNodes(t *testing.T) {
	b, root, _ := newTestBridge(t, "hang", Options{FallbackTimeout: 500 * time.Millisecond})
	start := time.Now()
	doc, err := b.GetAST(context.Background(), filepath.Join(root, "src", "engine.cpp"), strategy.CompilerStreamingFiltered)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 20*time.Second)
	assert.True(t, doc.Salvaged)
	assert.Equal(t, 6, doc.Retained)
}

func TestGetASTStructuralHasNoAST(t *testing.T) {
	b, root, _ := newTestBridge(t, "ok", Options{})
	_, err := b.GetAST(context.Background(), filepath.Join(root, "a.cpp"), strategy.Structural)
	assert.ErrorIs(t, err, ErrNoAST)
}

func TestGetASTUsesCompileDatabase(t *testing.T) {
	b, root, rec := newTestBridge(t, "ok", Options{})
	src := filepath.Join(root, "src", "engine.cpp")
	buildDir := filepath.Join(root, "build")
	require.NoError(t, os.MkdirAll(buildDir, 0o755))
	db := []CompileCommand{{
		Directory: buildDir,
		File:      src,
		Command:   "/usr/bin/clang++ -DNDEBUG -I../include -std=c++23 -o engine.o -c " + src,
	}}
	data, err := json.Marshal(db)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(buildDir, CompileDBName), data, 0o600))

	assert.True(t, b.HasEntry(src))
	doc, err := b.GetAST(context.Background(), src, strategy.CompilerFull)
	require.NoError(t, err)
	assert.Equal(t, 7, doc.Retained)

	assert.Equal(t, []string{
		"/usr/bin/clang++", "-DNDEBUG", "-I../include", "-std=c++23",
		"-fsyntax-only", "-Xclang", "-ast-dump=json", "-Wno-everything",
		src,
	}, rec.args)
}

func TestGetASTSourceRewriteRemovesTempFile(t *testing.T) {
	b, root, rec := newTestBridge(t, "ok", Options{})
	src := filepath.Join(root, "src", "engine.cpp")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("module engine;\nimport std;\nint main() {}\n"), 0o600))

	doc, err := b.GetAST(context.Background(), src, strategy.SourceRewrite)
	require.NoError(t, err)
	assert.Equal(t, 7, doc.Retained)

	tmp := rec.args[len(rec.args)-1]
	assert.True(t, strings.HasPrefix(filepath.Base(tmp), "sentinel-"))
	assert.True(t, strings.HasSuffix(tmp, "-engine.cpp"))
	_, statErr := os.Stat(tmp)
	assert.True(t, os.IsNotExist(statErr), "temp file should be removed")
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(16)
	_, _ = tb.Write([]byte("warning: something long enough\nfatal "))
	_, _ = tb.Write([]byte("error: boom\n"))
	assert.True(t, tb.SawFatal())
	assert.LessOrEqual(t, len(tb.String()), 16)
	assert.True(t, strings.HasSuffix(tb.String(), "boom\n"))
}
