// Package fqn derives dotted module identifiers from repository-relative paths.
package fqn

import (
	"path/filepath"
	"strings"
)

// indexNames are file stems that stand for their directory.
var indexNames = map[string]bool{
	"__init__": true, // Python packages
	"index":    true, // JS/TS
	"mod":      true, // Rust
}

// ModuleID returns the dotted module identifier of a source file.
// Examples:
//   - cmd/server/main.go -> cmd.server.main
//   - pkg/orders/__init__.py -> pkg.orders
//   - web/src/index.ts -> web.src
func ModuleID(relPath string) string {
	relPath = strings.TrimSuffix(relPath, filepath.Ext(relPath))
	parts := splitPath(relPath)
	if len(parts) > 1 && indexNames[parts[len(parts)-1]] {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

// FolderID returns the dotted identifier of a directory.
func FolderID(relDir string) string {
	return strings.Join(splitPath(relDir), ".")
}

func splitPath(p string) []string {
	p = strings.Trim(filepath.ToSlash(filepath.Clean(p)), "/")
	if p == "." || p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
