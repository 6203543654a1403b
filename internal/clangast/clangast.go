// Package clangast runs clang as a subprocess, streams its JSON AST dump and
// keeps the project declarations it finds. A failing or slow clang degrades
// the result instead of failing the file whenever anything was salvaged.
package clangast

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/DeusData/module-sentinel/internal/config"
	"github.com/DeusData/module-sentinel/internal/strategy"
)

var (
	// ErrFatalDiagnostic means clang reported a fatal error and nothing was retained.
	ErrFatalDiagnostic = errors.New("clangast: fatal diagnostic")
	// ErrNoAST is returned for strategies that do not use the compiler.
	ErrNoAST = errors.New("clangast: strategy does not use the compiler")
)

// fatalMarker is how clang prefixes diagnostics that stop compilation.
var fatalMarker = []byte("fatal error:")

// Options configures a Bridge.
type Options struct {
	Root             string
	Compiler         string
	Std              string
	IncludePaths     []string
	ExcludeGlobs     []string
	MaxRetainedNodes int
	RewriteTimeout   time.Duration
	FallbackTimeout  time.Duration
	CompileDBTimeout time.Duration
	// StderrLimit bounds the captured diagnostic tail.
	StderrLimit int
}

// OptionsFrom builds bridge options for root from the project configuration.
func OptionsFrom(root string, cfg *config.Config) Options {
	return Options{
		Root:             root,
		Compiler:         cfg.EffectiveCompilerPath(),
		Std:              cfg.EffectiveStd(),
		IncludePaths:     cfg.Compiler.IncludePaths,
		ExcludeGlobs:     cfg.ExcludeOrigins,
		MaxRetainedNodes: cfg.EffectiveMaxRetainedNodes(),
		RewriteTimeout:   cfg.EffectiveRewriteTimeout(),
		FallbackTimeout:  cfg.EffectiveFallbackTimeout(),
		CompileDBTimeout: cfg.EffectiveCompileDBTimeout(),
	}
}

// ASTDocument is what the bridge recovered from one clang run.
type ASTDocument struct {
	FilePath  string
	Strategy  strategy.Strategy
	Decls     []Decl
	Retained  int
	Discarded int
	// Truncated is set when MaxRetainedNodes stopped the stream early.
	Truncated bool
	// Salvaged is set when clang failed and Decls is what streamed before it did.
	Salvaged bool
	// Failure describes the clang failure behind a salvaged document.
	Failure string
	// Interface is the module interface unit spliced into a rewrite, if any.
	Interface   string
	Diagnostics string
	Elapsed     time.Duration
}

// interfaceCacheSize bounds the module interface lookups a bridge keeps.
const interfaceCacheSize = 256

// Bridge runs clang for files of one project. It is safe for concurrent use;
// its state is the compilation database and the module interface cache, both
// filled lazily and kept for the bridge's lifetime (one indexing run).
type Bridge struct {
	opts   Options
	filter *OriginFilter

	dbOnce sync.Once
	db     *CompileDB

	ifaces     *lru.Cache[ifaceKey, ifaceEntry]
	ifaceLoads singleflight.Group

	moduleDirsOnce sync.Once
	moduleDirs     []string

	// command builds the subprocess; tests replace it.
	command func(name string, args ...string) *exec.Cmd
}

// New returns a Bridge for opts.Root.
func New(opts Options) (*Bridge, error) {
	def := OptionsFrom(opts.Root, config.Default())
	if opts.Compiler == "" {
		opts.Compiler = def.Compiler
	}
	if opts.Std == "" {
		opts.Std = def.Std
	}
	if opts.MaxRetainedNodes <= 0 {
		opts.MaxRetainedNodes = def.MaxRetainedNodes
	}
	if opts.RewriteTimeout <= 0 {
		opts.RewriteTimeout = def.RewriteTimeout
	}
	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = def.FallbackTimeout
	}
	if opts.CompileDBTimeout <= 0 {
		opts.CompileDBTimeout = def.CompileDBTimeout
	}
	if opts.StderrLimit <= 0 {
		opts.StderrLimit = 64 * 1024
	}
	filter, err := NewOriginFilter(opts.Root, opts.ExcludeGlobs)
	if err != nil {
		return nil, err
	}
	ifaces, err := lru.New[ifaceKey, ifaceEntry](interfaceCacheSize)
	if err != nil {
		return nil, err
	}
	opts.Root = filter.Root()
	return &Bridge{opts: opts, filter: filter, ifaces: ifaces, command: exec.Command}, nil
}

// Available reports whether the configured compiler can be found.
func (b *Bridge) Available() bool {
	_, err := exec.LookPath(b.opts.Compiler)
	return err == nil
}

// Filter returns the bridge's origin filter.
func (b *Bridge) Filter() *OriginFilter {
	return b.filter
}

// CompileDB returns the project's compilation database, loading it on first
// use. It returns nil when the project has none or it cannot be parsed.
func (b *Bridge) CompileDB() *CompileDB {
	b.dbOnce.Do(func() {
		path := FindCompileDB(b.opts.Root)
		if path == "" {
			return
		}
		db, err := LoadCompileDB(path)
		if err != nil {
			slog.Warn("clang.compiledb.err", "path", path, "err", err)
			return
		}
		slog.Info("clang.compiledb", "path", path, "entries", db.Len())
		b.db = db
	})
	return b.db
}

type ifaceKey struct {
	dir, module string
}

type ifaceEntry struct {
	path string
	data []byte
	ok   bool
}

// interfaceFor is findInterface behind the bridge's LRU cache. Misses are
// cached too, and concurrent lookups of one key share a directory scan.
func (b *Bridge) interfaceFor(path, module string) (string, []byte, bool) {
	key := ifaceKey{dir: filepath.Dir(path), module: module}
	if e, ok := b.ifaces.Get(key); ok {
		return e.path, e.data, e.ok
	}
	v, _, _ := b.ifaceLoads.Do(key.dir+"\x00"+module, func() (any, error) {
		p, data, ok := findInterface(path, module)
		e := ifaceEntry{path: p, data: data, ok: ok}
		b.ifaces.Add(key, e)
		return e, nil
	})
	e := v.(ifaceEntry)
	return e.path, e.data, e.ok
}

// HasEntry reports whether file is listed in the compilation database.
func (b *Bridge) HasEntry(file string) bool {
	_, ok := b.CompileDB().Lookup(file)
	return ok
}

// invocation is one planned clang run.
type invocation struct {
	args    []string
	dir     string
	timeout time.Duration
	cleanup func()
	iface   string
}

// GetAST runs clang on filePath with the given strategy and returns the
// project declarations it found.
func (b *Bridge) GetAST(ctx context.Context, filePath string, s strategy.Strategy) (*ASTDocument, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	inv, err := b.plan(abs, s)
	if err != nil {
		return nil, err
	}
	if inv.cleanup != nil {
		defer inv.cleanup()
	}

	start := time.Now()
	res, err := b.run(ctx, inv)
	if res == nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	doc := &ASTDocument{
		FilePath:    abs,
		Strategy:    s,
		Decls:       res.col.Decls,
		Retained:    res.col.Retained,
		Discarded:   res.col.Discarded,
		Truncated:   res.col.Truncated,
		Interface:   inv.iface,
		Diagnostics: res.stderr.String(),
		Elapsed:     time.Since(start),
	}
	if err == nil {
		return doc, nil
	}

	if doc.Retained == 0 && res.stderr.SawFatal() {
		return nil, fmt.Errorf("%s: %w: %s", filePath, ErrFatalDiagnostic, res.stderr.FirstFatal())
	}
	// Without a fatal diagnostic whatever streamed is the result, even if
	// that is nothing.
	doc.Salvaged = true
	doc.Failure = err.Error()
	slog.Warn("clang.salvage",
		"file", filePath,
		"strategy", string(s),
		"retained", doc.Retained,
		"err", err,
	)
	return doc, nil
}

func (b *Bridge) plan(abs string, s strategy.Strategy) (*invocation, error) {
	switch s {
	case strategy.CompilerFull:
		if entry, ok := b.CompileDB().Lookup(abs); ok {
			return &invocation{
				args:    rewriteInvocation(entry.Args(), entry.AbsFile()),
				dir:     entry.Directory,
				timeout: b.opts.CompileDBTimeout,
			}, nil
		}
		slog.Debug("clang.compiledb.miss", "file", abs)
		return &invocation{args: b.fallbackArgs(abs, abs), dir: b.opts.Root, timeout: b.opts.FallbackTimeout}, nil
	case strategy.SourceRewrite:
		content, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", abs, err)
		}
		tmp, iface, err := writeRewrite(abs, content, b.interfaceFor)
		if err != nil {
			return nil, err
		}
		return &invocation{
			args:    b.fallbackArgs(tmp, abs),
			dir:     b.opts.Root,
			timeout: b.opts.RewriteTimeout,
			cleanup: func() { _ = os.Remove(tmp) },
			iface:   iface,
		}, nil
	case strategy.CompilerStreamingFiltered:
		return &invocation{args: b.fallbackArgs(abs, abs), dir: b.opts.Root, timeout: b.opts.FallbackTimeout}, nil
	default:
		return nil, fmt.Errorf("%s: %w", s, ErrNoAST)
	}
}

// fallbackArgs builds an invocation without a compilation database. source
// is what clang reads; original locates include directories.
func (b *Bridge) fallbackArgs(source, original string) []string {
	args := []string{b.opts.Compiler, "-fsyntax-only", "-Xclang", "-ast-dump=json", "-std=" + b.opts.Std, "-x", "c++"}
	for _, dir := range b.includeDirs(original) {
		args = append(args, "-I"+dir)
	}
	for _, dir := range b.prebuiltModuleDirs() {
		args = append(args, "-fprebuilt-module-path="+dir)
	}
	return append(args, source)
}

// includeDirs lists existing include directories for file: its own
// directory, the conventional project layouts and the configured paths.
func (b *Bridge) includeDirs(file string) []string {
	candidates := []string{
		filepath.Dir(file),
		b.opts.Root,
		filepath.Join(b.opts.Root, "include"),
		filepath.Join(b.opts.Root, "src"),
	}
	for _, p := range b.opts.IncludePaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(b.opts.Root, p)
		}
		candidates = append(candidates, p)
	}
	seen := make(map[string]bool, len(candidates))
	var dirs []string
	for _, d := range candidates {
		d = filepath.Clean(d)
		if seen[d] {
			continue
		}
		seen[d] = true
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// prebuiltModuleDirs finds build directories holding precompiled module files.
func (b *Bridge) prebuiltModuleDirs() []string {
	b.moduleDirsOnce.Do(func() {
		for _, rel := range []string{"build", "build/modules", "build/pcm", "out", "out/modules", "modules"} {
			dir := filepath.Join(b.opts.Root, rel)
			if matches, _ := filepath.Glob(filepath.Join(dir, "*.pcm")); len(matches) > 0 {
				b.moduleDirs = append(b.moduleDirs, dir)
			}
		}
	})
	return b.moduleDirs
}

// runResult is the outcome of one clang process.
type runResult struct {
	col    *collector
	stderr *tailBuffer
}

// run starts clang, streams its stdout through a collector and enforces the
// deadline by killing the whole process group. A non-nil runResult is
// returned whenever the process started, alongside any failure.
func (b *Bridge) run(ctx context.Context, inv *invocation) (*runResult, error) {
	if len(inv.args) == 0 {
		return nil, errors.New("empty compiler invocation")
	}
	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	cmd := b.command(inv.args[0], inv.args[1:]...)
	cmd.Dir = inv.dir
	setProcessGroup(cmd)
	stderr := newTailBuffer(b.opts.StderrLimit)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", inv.args[0], err)
	}

	done := make(chan struct{})
	killed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = killProcessGroup(cmd)
			close(killed)
		case <-done:
		}
	}()

	col := newCollector(b.filter, inv.dir, b.opts.MaxRetainedNodes)
	decodeErr := decodeStream(stdout, col)
	if col.Truncated {
		_ = killProcessGroup(cmd)
	}
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()
	close(done)

	res := &runResult{col: col, stderr: stderr}
	if col.Truncated {
		slog.Info("clang.truncated", "retained", col.Retained)
		return res, nil
	}
	if decodeErr == nil && waitErr == nil {
		return res, nil
	}
	select {
	case <-killed:
		return res, fmt.Errorf("clang timed out after %s: %w", inv.timeout, ctx.Err())
	default:
	}
	if decodeErr != nil {
		return res, fmt.Errorf("ast stream: %w", decodeErr)
	}
	return res, fmt.Errorf("clang exited: %w", waitErr)
}

// tailBuffer keeps the last limit bytes written to it and remembers whether
// a fatal diagnostic ever went past.
type tailBuffer struct {
	mu       sync.Mutex
	limit    int
	buf      []byte
	carry    []byte
	fatal    bool
	fatalMsg string
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.fatal {
		// carry holds the previous chunk's tail so a marker split across writes is seen.
		joined := append(append([]byte{}, t.carry...), p...)
		if i := bytes.Index(joined, fatalMarker); i >= 0 {
			t.fatal = true
			line := joined[i:]
			if nl := bytes.IndexByte(line, '\n'); nl >= 0 {
				line = line[:nl]
			}
			t.fatalMsg = string(line)
		}
		if len(joined) > len(fatalMarker) {
			joined = joined[len(joined)-len(fatalMarker):]
		}
		t.carry = joined
	}
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append([]byte{}, t.buf[over:]...)
	}
	return len(p), nil
}

// SawFatal reports whether a fatal diagnostic was written.
func (t *tailBuffer) SawFatal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fatal
}

// FirstFatal returns the first fatal diagnostic line.
func (t *tailBuffer) FirstFatal() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fatalMsg
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
