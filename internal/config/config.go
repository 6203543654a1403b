// Package config loads user-overridable extraction settings from
// .sentinel.yaml in the project root.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the per-project configuration file.
const FileName = ".sentinel.yaml"

// Config holds user-overridable settings. Pointer fields distinguish "unset"
// from zero; read them through the Effective* accessors.
type Config struct {
	Languages      []string       `yaml:"languages"`
	ExcludeOrigins []string       `yaml:"exclude_origins"`
	Compiler       CompilerConfig `yaml:"compiler"`
	Analysis       AnalysisConfig `yaml:"analysis"`
	Strategy       StrategyConfig `yaml:"strategy"`
	Workers        *int           `yaml:"workers"`
}

// CompilerConfig configures the clang AST bridge.
type CompilerConfig struct {
	// Path is the clang++ binary. Default: "clang++".
	Path *string `yaml:"path"`
	// Std is the language standard for fallback invocations. Default: "c++20".
	Std          *string        `yaml:"std"`
	IncludePaths []string       `yaml:"include_paths"`
	Timeouts     TimeoutsConfig `yaml:"timeouts"`
	// MaxRetainedNodes bounds the declarations kept from one AST dump.
	MaxRetainedNodes *int `yaml:"max_retained_nodes"`
	// Disabled turns every compiler strategy into a structural parse.
	Disabled *bool `yaml:"disabled"`
}

// TimeoutsConfig holds the tiered compiler deadlines.
type TimeoutsConfig struct {
	Rewrite   *time.Duration `yaml:"rewrite"`
	Fallback  *time.Duration `yaml:"fallback"`
	CompileDB *time.Duration `yaml:"compile_db"`
}

// AnalysisConfig tunes the visitor's analysis budget.
type AnalysisConfig struct {
	MinComplexityScore   *int           `yaml:"min_complexity_score"`
	MaxAnalyzedFunctions *int           `yaml:"max_analyzed_functions"`
	FunctionTimeout      *time.Duration `yaml:"function_timeout"`
	MemberAccessWindow   *int           `yaml:"member_access_window"`
}

// StrategyConfig holds the parse-strategy thresholds.
type StrategyConfig struct {
	StructuralLimit        *int     `yaml:"structural_limit"`
	HeavyTemplateSize      *int     `yaml:"heavy_template_size"`
	HeavyTemplateDenseSize *int     `yaml:"heavy_template_dense_size"`
	TemplateDensity        *float64 `yaml:"template_density"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{}
}

// Load reads .sentinel.yaml from the given directory.
// Returns the default config if the file doesn't exist or is invalid.
func Load(dir string) *Config {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default()
	}
	return cfg
}

func intOr(p *int, def int) int {
	if p != nil && *p > 0 {
		return *p
	}
	return def
}

func durationOr(p *time.Duration, def time.Duration) time.Duration {
	if p != nil && *p > 0 {
		return *p
	}
	return def
}

// EffectiveWorkers returns the worker count, defaulting to NumCPU.
func (c *Config) EffectiveWorkers() int {
	return intOr(c.Workers, runtime.NumCPU())
}

// EffectiveCompilerPath returns the clang binary, default "clang++".
func (c *Config) EffectiveCompilerPath() string {
	if c.Compiler.Path != nil && *c.Compiler.Path != "" {
		return *c.Compiler.Path
	}
	return "clang++"
}

// EffectiveStd returns the fallback language standard, default "c++20".
func (c *Config) EffectiveStd() string {
	if c.Compiler.Std != nil && *c.Compiler.Std != "" {
		return *c.Compiler.Std
	}
	return "c++20"
}

// CompilerDisabled reports whether compiler strategies are turned off.
func (c *Config) CompilerDisabled() bool {
	return c.Compiler.Disabled != nil && *c.Compiler.Disabled
}

// EffectiveMaxRetainedNodes returns the AST node bound, default 50000.
func (c *Config) EffectiveMaxRetainedNodes() int {
	return intOr(c.Compiler.MaxRetainedNodes, 50000)
}

// EffectiveRewriteTimeout returns the source-rewrite deadline, default 30s.
func (c *Config) EffectiveRewriteTimeout() time.Duration {
	return durationOr(c.Compiler.Timeouts.Rewrite, 30*time.Second)
}

// EffectiveFallbackTimeout returns the fallback-invocation deadline, default 60s.
func (c *Config) EffectiveFallbackTimeout() time.Duration {
	return durationOr(c.Compiler.Timeouts.Fallback, 60*time.Second)
}

// EffectiveCompileDBTimeout returns the compile-database deadline, default 120s.
func (c *Config) EffectiveCompileDBTimeout() time.Duration {
	return durationOr(c.Compiler.Timeouts.CompileDB, 120*time.Second)
}

// EffectiveMinComplexityScore returns the control-flow gate, default 3.
func (c *Config) EffectiveMinComplexityScore() int {
	return intOr(c.Analysis.MinComplexityScore, 3)
}

// EffectiveMaxAnalyzedFunctions returns the per-file analysis cap, default 10.
func (c *Config) EffectiveMaxAnalyzedFunctions() int {
	return intOr(c.Analysis.MaxAnalyzedFunctions, 10)
}

// EffectiveFunctionTimeout returns the per-function deadline, default 5s.
func (c *Config) EffectiveFunctionTimeout() time.Duration {
	return durationOr(c.Analysis.FunctionTimeout, 5*time.Second)
}

// EffectiveMemberAccessWindow returns the member-access scan window, default 50 lines.
func (c *Config) EffectiveMemberAccessWindow() int {
	return intOr(c.Analysis.MemberAccessWindow, 50)
}

// EffectiveStructuralLimit returns the structural size limit, default 32 KiB.
func (c *Config) EffectiveStructuralLimit() int {
	return intOr(c.Strategy.StructuralLimit, 32*1024)
}

// EffectiveHeavyTemplateSize returns the heavy-template size threshold, default 200 KiB.
func (c *Config) EffectiveHeavyTemplateSize() int {
	return intOr(c.Strategy.HeavyTemplateSize, 200*1024)
}

// EffectiveHeavyTemplateDenseSize returns the dense-template size threshold, default 50 KiB.
func (c *Config) EffectiveHeavyTemplateDenseSize() int {
	return intOr(c.Strategy.HeavyTemplateDenseSize, 50*1024)
}

// EffectiveTemplateDensity returns template keywords per KiB that mark a dense file, default 2.
func (c *Config) EffectiveTemplateDensity() float64 {
	if c.Strategy.TemplateDensity != nil && *c.Strategy.TemplateDensity > 0 {
		return *c.Strategy.TemplateDensity
	}
	return 2.0
}

// LanguageEnabled reports whether a language passes the optional allow-list.
func (c *Config) LanguageEnabled(name string) bool {
	if len(c.Languages) == 0 {
		return true
	}
	for _, l := range c.Languages {
		if l == name {
			return true
		}
	}
	return false
}
