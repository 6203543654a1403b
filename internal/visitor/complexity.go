package visitor

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/model"
)

// keywordCap bounds the keyword contribution to the complexity estimate.
const keywordCap = 10

var controlKeywords = regexp.MustCompile(`\b(if|for|while|switch|try|catch|throw|co_await|co_yield|co_return|await|yield)\b`)

var heavyNameHints = []string{"process", "analyze", "compute", "calculate", "generate", "parse", "validate", "transform", "handle", "execute", "resolve"}

var trivialPrefixes = []string{"get", "set", "is", "has"}

// EstimateComplexity scores a function cheaply from its line span, name,
// parameter count and the control-flow keywords in its own lines.
func EstimateComplexity(sym model.Symbol, lines []string) int {
	score := 0
	span := 1
	if sym.EndLine >= sym.Line {
		span = sym.EndLine - sym.Line + 1
	}
	switch {
	case span > 100:
		score += 5
	case span > 50:
		score += 4
	case span > 20:
		score += 3
	case span > 10:
		score += 2
	case span > 5:
		score++
	}

	name := strings.ToLower(sym.Name)
	for _, hint := range heavyNameHints {
		if strings.Contains(name, hint) {
			score += 2
			break
		}
	}
	for _, p := range trivialPrefixes {
		if strings.HasPrefix(name, p) && span <= 5 {
			score -= 2
			break
		}
	}

	switch params := countParams(sym.Signature); {
	case params > 4:
		score += 2
	case params > 2:
		score++
	}

	if sym.Line >= 1 && sym.Line <= len(lines) {
		end := sym.EndLine
		if end < sym.Line || end > len(lines) {
			end = len(lines)
		}
		hits := 0
		for _, line := range lines[sym.Line-1 : end] {
			hits += len(controlKeywords.FindAllStringIndex(line, -1))
			if hits >= keywordCap {
				hits = keywordCap
				break
			}
		}
		score += hits
	}
	if score < 0 {
		return 0
	}
	return score
}

// countParams counts top-level comma-separated entries inside the first
// parenthesized group of a signature.
func countParams(sig string) int {
	open := strings.IndexByte(sig, '(')
	if open < 0 {
		return 0
	}
	depth, count, seen := 0, 0, false
	for _, r := range sig[open:] {
		switch r {
		case '(', '<', '[', '{':
			depth++
			if depth == 1 {
				continue
			}
		case ')', '>', ']', '}':
			depth--
			if depth == 0 {
				if seen {
					count++
				}
				return count
			}
		case ',':
			if depth == 1 {
				count++
				seen = false
				continue
			}
		case ' ', '\t', '\n':
			continue
		}
		if depth >= 1 {
			seen = true
		}
	}
	return count
}

// gate decides whether a freshly produced function symbol gets control-flow
// extraction, and runs it under the per-function deadline.
func (w *walker) gate(n *tree_sitter.Node, sym *model.Symbol) {
	score := EstimateComplexity(*sym, w.hctx.Lines)
	sym.SetFeature(model.FeatureComplexityScore, score)
	w.res.Symbols[len(w.res.Symbols)-1].SetFeature(model.FeatureComplexityScore, score)

	if score < w.v.opts.MinComplexityScore || w.analyzed >= w.v.opts.MaxAnalyzedFunctions {
		w.res.Stats.FunctionsSkipped++
		return
	}
	function := w.analyzed
	w.analyzed++

	ctx, cancel := context.WithTimeout(w.ctx, w.v.opts.FunctionTimeout)
	defer cancel()

	blocks, graph, err := extractControlFlow(ctx, n, function, sym, w.hctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			w.res.Stats.FunctionsTimedOut++
			w.warn("control flow for %s timed out after %s", sym.QualifiedName, w.v.opts.FunctionTimeout)
			slog.Warn("visitor.cf.timeout", "symbol", sym.QualifiedName, "file", w.hctx.FilePath)
			return
		}
		w.warn("control flow for %s: %v", sym.QualifiedName, err)
		return
	}
	w.res.Stats.FunctionsAnalyzed++
	w.res.ControlFlowBlocks = append(w.res.ControlFlowBlocks, blocks...)
	w.res.FlowGraphs = append(w.res.FlowGraphs, graph)
}
