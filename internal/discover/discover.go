package discover

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/DeusData/module-sentinel/internal/lang"
)

// IgnoreFileName is the per-repository ignore file, one glob per line.
const IgnoreFileName = ".sentinelignore"

// IGNORE_PATTERNS are directory names to skip during discovery.
var IGNORE_PATTERNS = map[string]bool{
	".cache": true, ".claude": true, ".eclipse": true, ".eggs": true,
	".env": true, ".git": true, ".gradle": true, ".hg": true,
	".idea": true, ".maven": true, ".mypy_cache": true, ".nox": true,
	".npm": true, ".nyc_output": true, ".pnpm-store": true,
	".pytest_cache": true, ".ruff_cache": true, ".svn": true,
	".tmp": true, ".tox": true, ".venv": true, ".vs": true,
	".vscode": true, ".yarn": true, "__pycache__": true, "bin": true,
	"bower_components": true, "build": true, "cmake-build-debug": true,
	"cmake-build-release": true, "coverage": true, "dist": true,
	"env": true, "htmlcov": true, "node_modules": true, "obj": true,
	"out": true, "Pods": true, "site-packages": true, "target": true,
	"temp": true, "tmp": true, "vendor": true, "venv": true,
}

// IGNORE_SUFFIXES are file suffixes to skip.
var IGNORE_SUFFIXES = map[string]bool{
	".tmp": true, "~": true, ".pyc": true, ".pyo": true, ".o": true,
	".a": true, ".so": true, ".dll": true, ".class": true, ".pcm": true,
	".min.js": true,
}

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to repo root
	Language lang.Language // detected language
}

// Options configures file discovery.
type Options struct {
	IgnoreFile string // path to an ignore file (optional)
	// Enabled filters languages; nil accepts every supported language.
	Enabled func(lang.Language) bool
	// MaxFileSize skips larger files when positive.
	MaxFileSize int64
}

// matcher holds the compiled extra ignore globs.
type matcher []glob.Glob

func compilePatterns(patterns []string) matcher {
	m := make(matcher, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.TrimSuffix(p, "/"), '/')
		if err != nil {
			slog.Warn("discover.ignore.bad_pattern", "pattern", p, "err", err)
			continue
		}
		m = append(m, g)
	}
	return m
}

func (m matcher) match(name, rel string) bool {
	for _, g := range m {
		if g.Match(name) || g.Match(rel) {
			return true
		}
	}
	return false
}

// shouldSkipDir returns true if the directory should be skipped during discovery.
func shouldSkipDir(name, rel string, extra matcher) bool {
	if IGNORE_PATTERNS[name] {
		return true
	}
	return extra.match(name, rel)
}

// Discover walks a repository and returns all source files.
func Discover(ctx context.Context, repoPath string, opts *Options) ([]FileInfo, error) {
	repoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}

	// Check cancellation before starting walk
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Options{}
	}

	ignPath := opts.IgnoreFile
	if ignPath == "" {
		ignPath = filepath.Join(repoPath, IgnoreFileName)
	}
	patterns, _ := loadIgnoreFile(ignPath)
	extra := compilePatterns(patterns)

	var files []FileInfo

	err = filepath.Walk(repoPath, func(path string, info os.FileInfo, walkErr error) error {
		// Check context cancellation periodically during walk
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(repoPath, path)
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && shouldSkipDir(info.Name(), rel, extra) {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip ignored suffixes
		for suffix := range IGNORE_SUFFIXES {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}
		if extra.match(info.Name(), rel) {
			return nil
		}
		if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
			slog.Debug("discover.skip.size", "path", rel, "size", info.Size())
			return nil
		}

		l, ok := lang.LanguageForExtension(filepath.Ext(path))
		if !ok {
			return nil
		}
		if opts.Enabled != nil && !opts.Enabled(l) {
			return nil
		}
		files = append(files, FileInfo{
			Path:     path,
			RelPath:  rel,
			Language: l,
		})
		return nil
	})

	return files, err
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
