package services

import (
	"bufio"
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/DeusData/module-sentinel/internal/lang"
)

const unknownLanguage = "unknown"

// Spawn is a subprocess launch found in source text.
type Spawn struct {
	Command        string
	Script         string
	TargetLanguage string
	Line           int
}

// Target is the script when one was named, the program otherwise.
func (s Spawn) Target() string {
	if s.Script != "" {
		return s.Script
	}
	return s.Program()
}

// Program is the executable name without directories.
func (s Spawn) Program() string {
	fields := strings.Fields(s.Command)
	if len(fields) == 0 {
		return s.Command
	}
	return filepath.Base(fields[0])
}

var (
	jsSpawn = []*regexp.Regexp{
		regexp.MustCompile("child_process\\.(?:spawn|spawnSync|exec|execSync|execFile|fork)\\s*\\(\\s*[\"'`]([^\"'`]+)[\"'`]"),
		regexp.MustCompile("\\b(?:spawn|spawnSync|execSync|execFile|fork)\\s*\\(\\s*[\"'`]([^\"'`]+)[\"'`]"),
	}
	cSpawn = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:std::)?system\s*\(\s*"([^"]+)"`),
		regexp.MustCompile(`\bpopen\s*\(\s*"([^"]+)"`),
		regexp.MustCompile(`\bexec(?:l|v|le|ve|lp|vp|vpe)\s*\(\s*"([^"]+)"`),
	}
	jvmSpawn = []*regexp.Regexp{
		regexp.MustCompile(`ProcessBuilder\s*\(\s*"([^"]+)"`),
		regexp.MustCompile(`Runtime\.getRuntime\(\)\.exec\s*\(\s*"([^"]+)"`),
	}
)

// spawnPatterns hold the subprocess idioms per language. The first
// submatch is the command.
var spawnPatterns = map[lang.Language][]*regexp.Regexp{
	lang.Go: {
		regexp.MustCompile(`exec\.Command\s*\(\s*"([^"]+)"`),
		regexp.MustCompile(`exec\.CommandContext\s*\([^,]+,\s*"([^"]+)"`),
	},
	lang.Python: {
		regexp.MustCompile(`subprocess\.(?:run|call|check_call|check_output|Popen)\s*\(\s*\[\s*["']([^"']+)["']((?:\s*,\s*["'][^"']*["'])*)`),
		regexp.MustCompile(`subprocess\.(?:run|call|check_call|check_output|Popen)\s*\(\s*["']([^"']+)["']`),
		regexp.MustCompile(`os\.(?:system|popen)\s*\(\s*["']([^"']+)["']`),
	},
	lang.JavaScript: jsSpawn,
	lang.TypeScript: jsSpawn,
	lang.TSX:        jsSpawn,
	lang.Rust: {
		regexp.MustCompile(`Command::new\s*\(\s*"([^"]+)"\s*\)((?:\s*\.arg\(\s*"[^"]*"\s*\))*)`),
	},
	lang.C:      cSpawn,
	lang.CPP:    cSpawn,
	lang.Java:   jvmSpawn,
	lang.Kotlin: jvmSpawn,
	lang.Scala:  jvmSpawn,
	lang.CSharp: {
		regexp.MustCompile(`Process\.Start\s*\(\s*"([^"]+)"`),
	},
	lang.PHP: {
		regexp.MustCompile(`\b(?:shell_exec|exec|system|passthru|proc_open|popen)\s*\(\s*['"]([^'"]+)['"]`),
	},
	lang.Lua: {
		regexp.MustCompile(`(?:os\.execute|io\.popen)\s*\(\s*["']([^"']+)["']`),
	},
}

var (
	scriptRe   = regexp.MustCompile(`([^/\s"']+\.(?:py|js|mjs|ts|rb|rs|go|java|jar|sh|php|lua))\b`)
	quotedArgs = regexp.MustCompile(`["']([^"']*)["']`)
)

// languageHints infer the spawned program's language, checked in order.
var languageHints = []struct {
	contains []string
	suffixes []string
	language string
}{
	{[]string{"python"}, []string{".py"}, "python"},
	{[]string{"node", "npx", "deno"}, []string{".js", ".mjs", ".ts"}, "javascript"},
	{[]string{"cargo"}, []string{".rs"}, "rust"},
	{[]string{"go run", "go build"}, []string{".go"}, "go"},
	{[]string{"java"}, []string{".java", ".jar"}, "java"},
	{[]string{"ruby"}, []string{".rb"}, "ruby"},
	{[]string{"php"}, []string{".php"}, "php"},
	{[]string{"lua"}, []string{".lua"}, "lua"},
	{[]string{"psql", "mysql", "sqlite"}, nil, "sql"},
	{[]string{"redis-cli", "memcached"}, nil, "cache"},
	{[]string{"docker", "kubectl"}, nil, "container"},
	{[]string{"bash", "sh "}, []string{".sh"}, "shell"},
}

// InferTargetLanguage guesses what a spawned command runs.
func InferTargetLanguage(command string) string {
	lower := strings.ToLower(command)
	for _, h := range languageHints {
		for _, s := range h.suffixes {
			if strings.HasSuffix(lower, s) {
				return h.language
			}
		}
		for _, c := range h.contains {
			if strings.Contains(lower, c) {
				return h.language
			}
		}
	}
	return unknownLanguage
}

// ScanSpawns reports subprocess launches in content for language l.
func ScanSpawns(l lang.Language, content []byte) []Spawn {
	patterns := spawnPatterns[l]
	if len(patterns) == 0 {
		return nil
	}
	var comments []string
	if spec := lang.ForLanguage(l); spec != nil {
		comments = spec.CommentPrefixes
	}

	var spawns []Spawn
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if isComment(text, comments) {
			continue
		}
		for _, re := range patterns {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			command := m[1]
			// Argument lists written as separate literals belong to the command line.
			if len(m) > 2 && m[2] != "" {
				for _, a := range quotedArgs.FindAllStringSubmatch(m[2], -1) {
					command += " " + a[1]
				}
			}
			s := Spawn{Command: command, Line: line, TargetLanguage: InferTargetLanguage(command)}
			if sm := scriptRe.FindStringSubmatch(command); sm != nil {
				s.Script = sm[1]
			}
			spawns = append(spawns, s)
			break
		}
	}
	return spawns
}
