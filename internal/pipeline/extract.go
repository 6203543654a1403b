package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DeusData/module-sentinel/internal/clangast"
	"github.com/DeusData/module-sentinel/internal/config"
	"github.com/DeusData/module-sentinel/internal/handlers"
	"github.com/DeusData/module-sentinel/internal/lang"
	"github.com/DeusData/module-sentinel/internal/metrics"
	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/modules"
	"github.com/DeusData/module-sentinel/internal/parser"
	"github.com/DeusData/module-sentinel/internal/postprocess"
	"github.com/DeusData/module-sentinel/internal/services"
	"github.com/DeusData/module-sentinel/internal/strategy"
	"github.com/DeusData/module-sentinel/internal/visitor"
)

// Extractor turns one source file into a ProcessedResult. It holds only
// configuration and the shared clang bridge, so it is safe for concurrent use.
type Extractor struct {
	selector    *strategy.Selector
	bridge      *clangast.Bridge // nil when clang is disabled or missing
	full        *visitor.Visitor
	lightweight *visitor.Visitor
}

// NewExtractor builds an Extractor for the project rooted at root.
func NewExtractor(root string, cfg *config.Config) (*Extractor, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	var bridge *clangast.Bridge
	if !cfg.CompilerDisabled() {
		b, err := clangast.New(clangast.OptionsFrom(root, cfg))
		if err != nil {
			return nil, fmt.Errorf("clang bridge: %w", err)
		}
		if b.Available() {
			bridge = b
		} else {
			slog.Info("clang.unavailable", "compiler", cfg.EffectiveCompilerPath())
		}
	}

	opts := visitor.Options{
		MinComplexityScore:   cfg.EffectiveMinComplexityScore(),
		MaxAnalyzedFunctions: cfg.EffectiveMaxAnalyzedFunctions(),
		FunctionTimeout:      cfg.EffectiveFunctionTimeout(),
		MemberAccessWindow:   cfg.EffectiveMemberAccessWindow(),
	}
	light := opts
	light.Lightweight = true

	return &Extractor{
		selector:    strategy.New(strategy.ThresholdsFrom(cfg), bridge != nil),
		bridge:      bridge,
		full:        visitor.New(opts),
		lightweight: visitor.New(light),
	}, nil
}

// CompilerAvailable reports whether compiler strategies can run.
func (e *Extractor) CompilerAvailable() bool {
	return e.bridge != nil
}

func (e *Extractor) hasCompileEntry(path string) bool {
	if e.bridge == nil {
		return false
	}
	return e.bridge.HasEntry(path)
}

// Extract reads absPath, selects a parse strategy and runs every producer on
// it. Records are attributed to relPath. The returned error is fatal for the
// file: unreadable, empty or binary content, or a compiler run that failed
// with a fatal diagnostic before yielding anything.
func (e *Extractor) Extract(ctx context.Context, absPath, relPath string) (*model.ProcessedResult, error) {
	start := time.Now()
	d, content, err := e.selector.SelectFile(absPath, e.hasCompileEntry)
	if err != nil {
		return nil, err
	}
	slog.Debug("strategy.select",
		"file", relPath,
		"strategy", string(d.Strategy),
		"lightweight", d.Lightweight,
		"reason", d.Reason,
	)

	out, err := e.extract(ctx, absPath, relPath, d, content)
	if err != nil {
		return nil, err
	}
	out.Processing.ProcessingTimeMs = time.Since(start).Milliseconds()
	return out, nil
}

func (e *Extractor) extract(ctx context.Context, absPath, relPath string, d strategy.Decision, content []byte) (*model.ProcessedResult, error) {
	st := stages{used: d.Strategy}

	if d.Strategy.UsesCompiler() && e.bridge != nil {
		doc, err := e.bridge.GetAST(ctx, absPath, d.Strategy)
		switch {
		case errors.Is(err, clangast.ErrFatalDiagnostic):
			return nil, err
		case err != nil:
			slog.Warn("pipeline.compiler.fallback", "file", relPath, "strategy", string(d.Strategy), "err", err)
			st.warnings = append(st.warnings, fmt.Sprintf("compiler strategy %s failed, used structural parse: %v", d.Strategy, err))
			st.used = strategy.Structural
		default:
			st.compiler = doc
		}
	}

	st.structural, st.structuralErr = e.traverse(ctx, relPath, d, content)
	return assemble(relPath, d, content, st)
}

// stages carries what the compiler and structural passes produced for one file.
type stages struct {
	used          strategy.Strategy
	compiler      *clangast.ASTDocument
	structural    *visitor.Result
	structuralErr error
	warnings      []string
}

// assemble merges the compiler and structural observations of one file and
// runs the enhancer, service detector, post-processor and metrics on them.
// Both passes report C++ declarations at their name token with the same
// kinds, so the post-processor folds each pair into one symbol.
func assemble(relPath string, d strategy.Decision, content []byte, st stages) (*model.ProcessedResult, error) {
	raw := &model.RawResult{}
	warnings := st.warnings

	if doc := st.compiler; doc != nil {
		raw.Symbols = append(raw.Symbols, doc.Symbols(doc.FilePath)...)
		raw.Relationships = append(raw.Relationships, doc.Relationships(doc.FilePath)...)
		if doc.Salvaged {
			warnings = append(warnings, fmt.Sprintf("compiler failed, salvaged %d declarations: %s", doc.Retained, doc.Failure))
		}
		if doc.Truncated {
			warnings = append(warnings, fmt.Sprintf("compiler output truncated after %d declarations", doc.Retained))
		}
	}

	var flow *visitor.Result
	switch {
	case st.structuralErr != nil && len(raw.Symbols) == 0:
		return nil, st.structuralErr
	case st.structuralErr != nil:
		warnings = append(warnings, fmt.Sprintf("structural parse failed: %v", st.structuralErr))
	case st.structural != nil:
		res := st.structural
		flow = res
		raw.Symbols = append(raw.Symbols, res.Symbols...)
		raw.Relationships = append(raw.Relationships, res.Relationships...)
		raw.Patterns = append(raw.Patterns, res.Patterns...)
		raw.ControlFlowBlocks = res.ControlFlowBlocks
		raw.FlowGraphs = res.FlowGraphs
		warnings = append(warnings, res.Warnings...)
	}

	var module *model.ModuleAnalysis
	if lang.IsCFamily(d.Language) {
		a := modules.Analyze(content)
		if a.HasModuleSyntax() || len(a.ExportNamespaces) > 0 || len(a.ExportAliases) > 0 {
			added := modules.Enhance(raw, a, relPath)
			slog.Debug("modules.enhance", "file", relPath, "module", a.ModuleName, "changes", added)
			module = a
		}
	}

	raw.Relationships = append(raw.Relationships, services.Detect(relPath, d.Language, content, raw.Symbols)...)

	for i := range raw.Symbols {
		raw.Symbols[i].FilePath = relPath
	}
	raw.Warnings = warnings

	out := postprocess.Process(raw, relPath)
	out.Language = string(d.Language)
	out.Strategy = string(st.used)
	out.Module = module
	if flow != nil {
		out.Metrics = functionMetrics(flow, content)
	}
	return out, nil
}

// traverse parses content structurally and runs the language's handlers.
func (e *Extractor) traverse(ctx context.Context, relPath string, d strategy.Decision, content []byte) (*visitor.Result, error) {
	table := handlers.ForLanguage(d.Language)
	if table == nil {
		return nil, fmt.Errorf("%s: no handlers for %s", relPath, d.Language)
	}
	tree, err := parser.Parse(d.Language, content)
	if err != nil {
		return nil, fmt.Errorf("%s: parse: %w", relPath, err)
	}
	defer tree.Close()

	v := e.full
	if d.Lightweight {
		v = e.lightweight
	}
	res := v.Traverse(ctx, tree, relPath, content, table)
	slog.Debug("visitor.done",
		"file", relPath,
		"nodes", res.Stats.NodesVisited,
		"analyzed", res.Stats.FunctionsAnalyzed,
		"timed_out", res.Stats.FunctionsTimedOut,
		"handler_errors", res.Stats.HandlerErrors,
	)
	return res, nil
}

// functionMetrics computes metrics for every function the visitor built a
// flow graph for. Graphs and blocks pair up by analysis ordinal, and each
// graph finds its symbol by qualified name and line, so overloads sharing a
// qualified name keep separate figures.
func functionMetrics(res *visitor.Result, content []byte) []model.FunctionMetrics {
	if len(res.FlowGraphs) == 0 {
		return nil
	}
	type symbolKey struct {
		qn   string
		line int
	}
	callables := make(map[symbolKey]model.Symbol)
	for _, s := range res.Symbols {
		if !s.Kind.IsCallable() {
			continue
		}
		k := symbolKey{s.QualifiedName, s.Line}
		if _, ok := callables[k]; !ok {
			callables[k] = s
		}
	}
	blocks := make(map[int][]model.ControlFlowBlock)
	for _, b := range res.ControlFlowBlocks {
		blocks[b.Function] = append(blocks[b.Function], b)
	}
	lines := strings.Split(string(content), "\n")

	out := make([]model.FunctionMetrics, 0, len(res.FlowGraphs))
	for _, g := range res.FlowGraphs {
		sym, ok := callables[symbolKey{g.SymbolName, g.SymbolLine}]
		if !ok {
			continue
		}
		out = append(out, metrics.Compute(metrics.Input{
			Symbol:     sym,
			Graph:      g,
			Blocks:     blocks[g.Function],
			SourceText: sourceSpan(lines, sym.Line, sym.EndLine),
		}))
	}
	return out
}

// sourceSpan returns the 1-based inclusive line range [from, to].
func sourceSpan(lines []string, from, to int) string {
	if from < 1 || to < from || from > len(lines) {
		return ""
	}
	if to > len(lines) {
		to = len(lines)
	}
	return strings.Join(lines[from-1:to], "\n")
}
