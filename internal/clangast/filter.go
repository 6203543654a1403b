package clangast

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// ErrInvalidPattern indicates an exclude glob could not be compiled.
var ErrInvalidPattern = errors.New("clangast: invalid glob pattern")

// systemPrefixes are install locations whose declarations never belong to a project.
var systemPrefixes = []string{
	"/usr/",
	"/opt/",
	"/Library/",
	"/System/",
	"/Applications/Xcode",
	`C:\Program Files`,
	"C:/Program Files",
}

// defaultExcludeGlobs match vendored and generated trees inside a project root.
var defaultExcludeGlobs = []string{
	"**/third_party/**",
	"**/vendor/**",
	"**/external/**",
	"**/build/**",
	"**/_deps/**",
	"**/node_modules/**",
}

// OriginFilter decides whether a declaration's source file is project code.
type OriginFilter struct {
	root     string
	prefixes []string
	globs    []glob.Glob
}

// NewOriginFilter returns a filter rooted at root. extra globs are added to
// the built-in vendor/build exclusions.
func NewOriginFilter(root string, extra []string) (*OriginFilter, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	patterns := append(append([]string{}, defaultExcludeGlobs...), extra...)
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		globs = append(globs, g)
	}
	abs = filepath.Clean(abs)
	// A root that itself lives under a system prefix must still admit its own files.
	var prefixes []string
	for _, p := range systemPrefixes {
		if !strings.HasPrefix(filepath.ToSlash(abs)+"/", filepath.ToSlash(p)) {
			prefixes = append(prefixes, p)
		}
	}
	return &OriginFilter{root: abs, prefixes: prefixes, globs: globs}, nil
}

// Root returns the project root the filter admits.
func (f *OriginFilter) Root() string {
	return f.root
}

// Allow reports whether file is inside the root and outside every excluded tree.
// An empty file (a location clang could not attribute) is rejected.
func (f *OriginFilter) Allow(file string) bool {
	if file == "" {
		return false
	}
	slashed := filepath.ToSlash(file)
	for _, p := range f.prefixes {
		if strings.HasPrefix(file, p) || strings.HasPrefix(slashed, filepath.ToSlash(p)) {
			return false
		}
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(f.root, file)
	}
	rel, err := filepath.Rel(f.root, filepath.Clean(file))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	candidate := "/" + filepath.ToSlash(rel)
	for _, g := range f.globs {
		if g.Match(candidate) {
			return false
		}
	}
	return true
}
