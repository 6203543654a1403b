package clangast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CompileDBName is the file name clang tooling reads compile commands from.
const CompileDBName = "compile_commands.json"

// compileDBDirs are the locations searched for a compilation database,
// relative to the project root, in priority order.
var compileDBDirs = []string{
	".",
	"build",
	"out",
	"cmake-build-debug",
	"cmake-build-release",
	"build/debug",
	"build/release",
}

// CompileCommand is one entry of a compilation database.
type CompileCommand struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// AbsFile returns the entry's source file resolved against its directory.
func (c *CompileCommand) AbsFile() string {
	if filepath.IsAbs(c.File) {
		return filepath.Clean(c.File)
	}
	return filepath.Join(c.Directory, c.File)
}

// Args returns the recorded invocation, splitting Command when Arguments is empty.
func (c *CompileCommand) Args() []string {
	if len(c.Arguments) > 0 {
		return append([]string(nil), c.Arguments...)
	}
	return splitCommand(c.Command)
}

// CompileDB is a loaded compilation database. It is read-only once loaded.
type CompileDB struct {
	Path    string
	entries map[string]*CompileCommand
}

// FindCompileDB returns the first compilation database under root, or "".
func FindCompileDB(root string) string {
	for _, dir := range compileDBDirs {
		p := filepath.Join(root, dir, CompileDBName)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// LoadCompileDB parses the database at path.
func LoadCompileDB(path string) (*CompileDB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compile db: %w", err)
	}
	var cmds []CompileCommand
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, fmt.Errorf("parse compile db %s: %w", path, err)
	}
	db := &CompileDB{Path: path, entries: make(map[string]*CompileCommand, len(cmds))}
	for i := range cmds {
		c := &cmds[i]
		if c.File == "" {
			continue
		}
		if c.Directory == "" {
			c.Directory = filepath.Dir(path)
		}
		key := c.AbsFile()
		// First entry wins; later duplicates are usually alternate configurations.
		if _, ok := db.entries[key]; !ok {
			db.entries[key] = c
		}
	}
	return db, nil
}

// Lookup returns the entry for file, if any.
func (db *CompileDB) Lookup(file string) (*CompileCommand, bool) {
	if db == nil {
		return nil, false
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, false
	}
	c, ok := db.entries[filepath.Clean(abs)]
	return c, ok
}

// Len returns the number of distinct files in the database.
func (db *CompileDB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.entries)
}

// astDumpFlags turn any invocation into a JSON AST dump with no object output.
var astDumpFlags = []string{"-fsyntax-only", "-Xclang", "-ast-dump=json", "-Wno-everything"}

// flagsWithValue are dropped together with the argument that follows them.
var flagsWithValue = map[string]bool{
	"-o":  true,
	"-MF": true,
	"-MT": true,
	"-MQ": true,
}

// droppedFlags are dropped on their own.
var droppedFlags = map[string]bool{
	"-c":           true,
	"-MD":          true,
	"-MMD":         true,
	"-MP":          true,
	"-M":           true,
	"-MM":          true,
	"--precompile": true,
}

// rewriteInvocation turns a recorded compile into an AST-dump invocation for
// file. The compiler in args[0] is kept; the source argument is re-appended
// last, forced to C++ for module interface units.
func rewriteInvocation(args []string, file string) []string {
	if len(args) == 0 {
		return nil
	}
	absFile, _ := filepath.Abs(file)
	out := []string{args[0]}
	for i := 1; i < len(args); i++ {
		a := args[i]
		switch {
		case flagsWithValue[a]:
			i++
			continue
		case droppedFlags[a]:
			continue
		case strings.HasPrefix(a, "-o") && len(a) > 2:
			continue
		case strings.HasPrefix(a, "-MF") || strings.HasPrefix(a, "-MT") || strings.HasPrefix(a, "-MQ"):
			continue
		case strings.HasPrefix(a, "-fmodule-output"):
			continue
		case strings.HasSuffix(a, ".o") || strings.HasSuffix(a, ".obj"):
			continue
		case a == file || a == absFile || (!strings.HasPrefix(a, "-") && sameFile(a, absFile)):
			continue
		}
		out = append(out, a)
	}
	out = append(out, astDumpFlags...)
	if IsModuleInterface(file) {
		out = append(out, "-x", "c++")
	}
	return append(out, file)
}

func sameFile(a, absFile string) bool {
	if absFile == "" {
		return false
	}
	return filepath.Base(a) == filepath.Base(absFile) && strings.HasSuffix(absFile, filepath.Clean(a))
}

// moduleInterfaceExts are the extensions of C++20 module interface units.
var moduleInterfaceExts = map[string]bool{
	".ixx":  true,
	".cppm": true,
	".ccm":  true,
	".mpp":  true,
}

// IsModuleInterface reports whether path names a module interface unit.
func IsModuleInterface(path string) bool {
	return moduleInterfaceExts[strings.ToLower(filepath.Ext(path))]
}

// splitCommand splits a shell command line into words, honoring single and
// double quotes and backslash escapes.
func splitCommand(cmd string) []string {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range cmd {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words
}
