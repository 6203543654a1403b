// Package metrics computes per-function complexity measures from the
// control-flow blocks the visitor extracts.
package metrics

import (
	"math"
	"strings"

	"github.com/DeusData/module-sentinel/internal/model"
)

// MaxNestingDepth caps the reported nesting depth.
const MaxNestingDepth = 20

// Defaults used by the maintainability index when no source text is available.
const (
	DefaultVolume      = 100.0
	DefaultLinesOfCode = 10
)

// Input is the per-function intermediate representation metrics are computed from.
type Input struct {
	Symbol     model.Symbol
	Graph      model.FlowGraph
	Blocks     []model.ControlFlowBlock
	SourceText string
}

// Compute returns every metric for one function.
func Compute(in Input) model.FunctionMetrics {
	m := model.FunctionMetrics{
		SymbolName:    in.Symbol.Name,
		QualifiedName: in.Symbol.QualifiedName,
		Line:          in.Symbol.Line,
		Cyclomatic:    Cyclomatic(in.Graph),
		Cognitive:     Cognitive(in.Blocks),
		NestingDepth:  NestingDepth(in.Blocks),
		LinesOfCode:   LinesOfCode(in.Symbol, in.SourceText),
		CallSites:     in.Graph.CallSites,
	}
	volume := DefaultVolume
	loc := DefaultLinesOfCode
	if in.SourceText != "" {
		m.Halstead = Halstead(in.SourceText)
		volume = m.Halstead.Volume
		loc = m.LinesOfCode
	}
	m.MaintainabilityIndex = MaintainabilityIndex(volume, m.Cyclomatic, loc)
	return m
}

// Cyclomatic returns E - N + 2 over the flow graph, never less than 1.
func Cyclomatic(g model.FlowGraph) int {
	if len(g.Nodes) == 0 {
		return 1
	}
	cc := len(g.Edges) - len(g.Nodes) + 2
	if cc < 1 {
		return 1
	}
	return cc
}

// Cognitive sums 1 + nesting level for every decision block, adds boolean
// operator counts, and charges extra return points beyond the first.
func Cognitive(blocks []model.ControlFlowBlock) int {
	byID := indexBlocks(blocks)
	total := 0
	returns := 0
	for _, b := range blocks {
		if b.BlockType == model.BlockReturn {
			returns++
			continue
		}
		if !b.BlockType.IsDecision() {
			continue
		}
		total += 1 + ancestorDecisions(b, byID)
		total += b.BooleanOperators
	}
	if returns > 1 {
		total += returns - 1
	}
	return total
}

// NestingDepth is the length of the longest chain of nested decision blocks.
func NestingDepth(blocks []model.ControlFlowBlock) int {
	byID := indexBlocks(blocks)
	depth := 0
	for _, b := range blocks {
		if !b.BlockType.IsDecision() {
			continue
		}
		if d := ancestorDecisions(b, byID) + 1; d > depth {
			depth = d
		}
	}
	if depth > MaxNestingDepth {
		return MaxNestingDepth
	}
	return depth
}

// LinesOfCode counts non-blank lines of the source text, falling back to the
// symbol's line span.
func LinesOfCode(sym model.Symbol, source string) int {
	if source != "" {
		n := 0
		for _, line := range strings.Split(source, "\n") {
			if strings.TrimSpace(line) != "" {
				n++
			}
		}
		return n
	}
	if sym.EndLine >= sym.Line && sym.Line > 0 {
		return sym.EndLine - sym.Line + 1
	}
	return 0
}

// MaintainabilityIndex returns 171 - 5.2 ln(V) - 0.23 CC - 16.2 ln(LOC),
// clamped to [0,100].
func MaintainabilityIndex(volume float64, cyclomatic, loc int) float64 {
	if volume < 1 {
		volume = 1
	}
	if loc < 1 {
		loc = 1
	}
	mi := 171 - 5.2*math.Log(volume) - 0.23*float64(cyclomatic) - 16.2*math.Log(float64(loc))
	if math.IsNaN(mi) {
		return 0
	}
	return math.Max(0, math.Min(100, mi))
}

func indexBlocks(blocks []model.ControlFlowBlock) map[int]model.ControlFlowBlock {
	byID := make(map[int]model.ControlFlowBlock, len(blocks))
	for _, b := range blocks {
		byID[b.ID] = b
	}
	return byID
}

// ancestorDecisions counts decision blocks on the parent chain of b.
// The walk is bounded so a malformed parent cycle cannot loop forever.
func ancestorDecisions(b model.ControlFlowBlock, byID map[int]model.ControlFlowBlock) int {
	n := 0
	cur := b
	for steps := 0; cur.ParentID != model.NoParent && steps <= MaxNestingDepth; steps++ {
		parent, ok := byID[cur.ParentID]
		if !ok {
			break
		}
		if parent.BlockType.IsDecision() {
			n++
		}
		cur = parent
	}
	return n
}
