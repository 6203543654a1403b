package clangast

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	globalFragment  = regexp.MustCompile(`^\s*module\s*;`)
	moduleDecl      = regexp.MustCompile(`^\s*(export\s+)?module\s+([\w.:]+)\s*;`)
	importDecl      = regexp.MustCompile(`^\s*(?:export\s+)?import\s+(?:[\w.:]+|<[^>]+>|"[^"]+")\s*;`)
	leadingExport   = regexp.MustCompile(`^(\s*)export\s+`)
	exportBlockOpen = regexp.MustCompile(`^(\s*)export\s*\{`)
)

// moduleOf returns the module an implementation or interface unit declares,
// and whether the declaration is exported.
func moduleOf(content []byte) (name string, exported bool) {
	for _, line := range strings.Split(string(content), "\n") {
		if m := moduleDecl.FindStringSubmatch(line); m != nil {
			return m[2], m[1] != ""
		}
	}
	return "", false
}

// interfaceLookup finds the interface unit exporting module for the
// implementation unit at path.
type interfaceLookup func(path, module string) (string, []byte, bool)

// findInterface finds a sibling module interface unit that exports module.
func findInterface(path, module string) (string, []byte, bool) {
	if module == "" {
		return "", nil, false
	}
	// Partitions live in the primary interface's unit family; match the primary name.
	primary := module
	if i := strings.IndexByte(primary, ':'); i >= 0 {
		primary = primary[:i]
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return "", nil, false
	}
	for _, e := range entries {
		if e.IsDir() || !IsModuleInterface(e.Name()) {
			continue
		}
		candidate := filepath.Join(filepath.Dir(path), e.Name())
		if candidate == path {
			continue
		}
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if name, exported := moduleOf(data); exported && (name == module || name == primary) {
			return candidate, data, true
		}
	}
	return "", nil, false
}

func lineDirective(n int, file string) string {
	return "#line " + strconv.Itoa(n) + " " + strconv.Quote(filepath.ToSlash(file))
}

// stripModuleLines comments out module and import declarations so the unit
// compiles as an ordinary translation unit. exportsToo also drops `export`
// keywords, used for spliced interface text.
func stripModuleLines(content []byte, exportsToo bool) []string {
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		switch {
		case globalFragment.MatchString(line), moduleDecl.MatchString(line), importDecl.MatchString(line):
			lines[i] = "// " + line
		case exportsToo && exportBlockOpen.MatchString(line):
			lines[i] = exportBlockOpen.ReplaceAllString(line, "$1{")
		case exportsToo:
			lines[i] = leadingExport.ReplaceAllString(line, "$1")
		}
	}
	return lines
}

// rewriteSource produces the source text clang parses in place of path.
// Line numbering of the original file is preserved with #line directives, so
// reported locations point at the original file, not the temp copy.
func rewriteSource(path string, content []byte, lookup interfaceLookup) ([]byte, string) {
	var b bytes.Buffer
	b.WriteString(lineDirective(1, path))
	b.WriteByte('\n')

	module, exported := moduleOf(content)
	ifacePath := ""
	lines := stripModuleLines(content, false)
	for i, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
		if exported || module == "" || !moduleDecl.MatchString(strings.TrimPrefix(line, "// ")) {
			continue
		}
		iface, data, ok := lookup(path, module)
		if !ok {
			continue
		}
		ifacePath = iface
		b.WriteString(lineDirective(1, iface))
		b.WriteByte('\n')
		for _, il := range stripModuleLines(data, true) {
			b.WriteString(il)
			b.WriteByte('\n')
		}
		b.WriteString(lineDirective(i+2, path))
		b.WriteByte('\n')
	}
	return b.Bytes(), ifacePath
}

// writeRewrite writes the rewritten source to a uniquely named temp file.
// The caller removes it.
func writeRewrite(path string, content []byte, lookup interfaceLookup) (string, string, error) {
	text, iface := rewriteSource(path, content, lookup)
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("sentinel-%d-%s", time.Now().UnixNano(), filepath.Base(path)))
	if err := os.WriteFile(tmp, text, 0o600); err != nil {
		return "", "", fmt.Errorf("write rewrite: %w", err)
	}
	return tmp, iface, nil
}
