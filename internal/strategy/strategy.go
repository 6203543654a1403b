// Package strategy decides how a source file should be parsed: a structural
// tree-sitter parse, or one of the clang AST-dump variants.
package strategy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/DeusData/module-sentinel/internal/config"
	"github.com/DeusData/module-sentinel/internal/lang"
)

// Strategy names one extraction approach.
type Strategy string

const (
	Structural                Strategy = "structural"
	CompilerFull              Strategy = "compiler_full"
	CompilerStreamingFiltered Strategy = "compiler_streaming_filtered"
	SourceRewrite             Strategy = "source_rewrite"
)

// UsesCompiler reports whether s runs the clang bridge.
func (s Strategy) UsesCompiler() bool {
	return s != Structural
}

// Fail-fast conditions. A file that hits one of these is not parsed at all.
var (
	ErrUnreadable = errors.New("strategy: file unreadable")
	ErrEmpty      = errors.New("strategy: file empty")
	ErrBinary     = errors.New("strategy: file is binary")
)

// binarySniffLen is how far into a file a NUL byte marks it as binary.
const binarySniffLen = 8000

// Decision is the selector's verdict for one file.
type Decision struct {
	Strategy Strategy
	// Lightweight asks the visitor to skip control-flow and member-access analysis.
	Lightweight bool
	Language    lang.Language
	Reason      string
}

// Thresholds are the size and density cutoffs of the selection policy.
type Thresholds struct {
	StructuralLimit        int
	HeavyTemplateSize      int
	HeavyTemplateDenseSize int
	// TemplateDensity is template keywords per KiB.
	TemplateDensity float64
}

// ThresholdsFrom reads the effective thresholds from cfg.
func ThresholdsFrom(cfg *config.Config) Thresholds {
	return Thresholds{
		StructuralLimit:        cfg.EffectiveStructuralLimit(),
		HeavyTemplateSize:      cfg.EffectiveHeavyTemplateSize(),
		HeavyTemplateDenseSize: cfg.EffectiveHeavyTemplateDenseSize(),
		TemplateDensity:        cfg.EffectiveTemplateDensity(),
	}
}

// Selector applies the policy. The zero value is not usable; build one with New.
type Selector struct {
	th Thresholds
	// compilerAvailable is false when clang is missing or disabled.
	compilerAvailable bool
}

// New returns a Selector.
func New(th Thresholds, compilerAvailable bool) *Selector {
	return &Selector{th: th, compilerAvailable: compilerAvailable}
}

var (
	moduleLine = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*module\s*;`),
		regexp.MustCompile(`(?m)^\s*export\s+module\s+[\w.:]+\s*;`),
		regexp.MustCompile(`(?m)^\s*module\s+[\w.:]+\s*;`),
		regexp.MustCompile(`(?m)^\s*(?:export\s+)?import\s+[\w.:]+\s*;`),
		regexp.MustCompile(`(?m)^\s*(?:export\s+)?import\s+<[^>]+>\s*;`),
	}
	heavyTemplateInclude = regexp.MustCompile(`#\s*include\s*<(?:vulkan|boost|Eigen|glm)/`)
	templateKeyword      = regexp.MustCompile(`\btemplate\s*<`)
)

// HasModuleSyntax reports whether content uses C++20 module declarations or imports.
func HasModuleSyntax(content []byte) bool {
	for _, re := range moduleLine {
		if re.Match(content) {
			return true
		}
	}
	return false
}

// templateDensity returns template keywords per KiB.
func templateDensity(content []byte) float64 {
	if len(content) == 0 {
		return 0
	}
	n := len(templateKeyword.FindAllIndex(content, -1))
	return float64(n) / (float64(len(content)) / 1024)
}

func (s *Selector) heavyTemplate(content []byte) bool {
	size := len(content)
	if size > s.th.HeavyTemplateSize && heavyTemplateInclude.Match(content) {
		return true
	}
	return size > s.th.HeavyTemplateDenseSize && templateDensity(content) >= s.th.TemplateDensity
}

// Select chooses a strategy for content. hasCompileEntry reports whether the
// project's compilation database lists the file.
func (s *Selector) Select(path string, content []byte, hasCompileEntry bool) (Decision, error) {
	if len(content) == 0 {
		return Decision{}, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	if isBinary(content) {
		return Decision{}, fmt.Errorf("%s: %w", path, ErrBinary)
	}
	l, ok := lang.LanguageForExtension(filepath.Ext(path))
	if !ok {
		return Decision{}, fmt.Errorf("%s: unsupported extension %q", path, filepath.Ext(path))
	}
	d := Decision{Strategy: Structural, Language: l}
	if !lang.IsCFamily(l) {
		d.Reason = "non-C language"
		return d, nil
	}

	switch {
	case hasCompileEntry && s.compilerAvailable:
		d.Strategy = CompilerFull
		d.Reason = "compilation database entry"
	case HasModuleSyntax(content) && s.compilerAvailable:
		d.Strategy = SourceRewrite
		d.Reason = "module syntax"
	case len(content) <= s.th.StructuralLimit:
		d.Reason = "within structural limit"
	case s.heavyTemplate(content):
		d.Lightweight = true
		d.Reason = "heavy template"
	case s.compilerAvailable:
		d.Strategy = CompilerStreamingFiltered
		d.Reason = "large file"
	default:
		d.Reason = "compiler unavailable"
	}
	return d, nil
}

// SelectFile reads path and selects a strategy for it. The content is returned
// so callers don't read the file twice.
func (s *Selector) SelectFile(path string, hasCompileEntry func(string) bool) (Decision, []byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Decision{}, nil, fmt.Errorf("%s: %w: %v", path, ErrUnreadable, err)
	}
	entry := false
	if hasCompileEntry != nil {
		entry = hasCompileEntry(path)
	}
	d, err := s.Select(path, content, entry)
	if err != nil {
		return Decision{}, nil, err
	}
	return d, content, nil
}

func isBinary(content []byte) bool {
	head := content
	if len(head) > binarySniffLen {
		head = head[:binarySniffLen]
	}
	return bytes.IndexByte(head, 0) >= 0
}
