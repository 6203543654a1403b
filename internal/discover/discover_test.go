package discover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/module-sentinel/internal/lang"
)

func TestDiscoverBasic(t *testing.T) {
	dir := t.TempDir()

	// Create a Go file and a Python file
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n")
	writeFile(t, filepath.Join(dir, "app.py"), "def main(): pass\n")

	files, err := Discover(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)

	for _, f := range files {
		assert.NotEmpty(t, f.Path)
		assert.NotEmpty(t, f.RelPath)
		assert.NotEmpty(t, f.Language)
	}
}

func TestDiscoverCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // pre-cancel

	_, err := Discover(ctx, dir, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func relPaths(files []FileInfo) map[string]lang.Language {
	out := make(map[string]lang.Language, len(files))
	for _, f := range files {
		out[f.RelPath] = f.Language
	}
	return out
}

func TestDiscoverIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "engine.cpp"), "int main() {}\n")
	writeFile(t, filepath.Join(dir, "src", "gen", "proto.pb.cc"), "int x;\n")
	writeFile(t, filepath.Join(dir, "third_party", "lib", "x.c"), "int y;\n")
	writeFile(t, filepath.Join(dir, "node_modules", "a.js"), "var a;\n")
	writeFile(t, filepath.Join(dir, "web", "app.min.js"), "var b;\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# readme\n")
	writeFile(t, filepath.Join(dir, IgnoreFileName), "# generated\nthird_party\n**/*.pb.cc\n")

	files, err := Discover(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]lang.Language{"src/engine.cpp": lang.CPP}, relPaths(files))
}

func TestDiscoverLanguageFilterAndSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n")
	writeFile(t, filepath.Join(dir, "tool.py"), "print(1)\n")
	writeFile(t, filepath.Join(dir, "big.go"), "package main\n// "+string(make([]byte, 2048))+"\n")

	files, err := Discover(context.Background(), dir, &Options{
		Enabled:     func(l lang.Language) bool { return l == lang.Go },
		MaxFileSize: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]lang.Language{"main.go": lang.Go}, relPaths(files))
}
