package visitor

import (
	"context"
	"strings"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/lang"
	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/parser"
)

const maxConditionLen = 100

var caseKinds = []string{"case", "switch_section", "match_arm", "when_entry", "default"}

var catchKinds = map[string]bool{
	"catch_clause":  true,
	"except_clause": true,
	"catch_block":   true,
}

type cfBuilder struct {
	ctx      context.Context
	hctx     *Context
	spec     *lang.LanguageSpec
	function int
	symbol   string
	line     int
	blocks   []model.ControlFlowBlock
	open     []int
	calls    int
}

// extractControlFlow collects the control-flow blocks of one function body
// and builds its flow graph. It returns ctx.Err() as soon as the deadline passes.
func extractControlFlow(ctx context.Context, fn *tree_sitter.Node, function int, sym *model.Symbol, hctx *Context) ([]model.ControlFlowBlock, model.FlowGraph, error) {
	b := &cfBuilder{ctx: ctx, hctx: hctx, spec: hctx.Spec, function: function, symbol: sym.QualifiedName, line: sym.Line}
	if b.spec == nil {
		b.spec = &lang.LanguageSpec{}
	}
	b.add(model.ControlFlowBlock{BlockType: model.BlockEntry, StartLine: parser.StartLine(fn), EndLine: parser.StartLine(fn)}, 1)
	for i := uint(0); i < fn.ChildCount(); i++ {
		if err := b.visit(fn.Child(i)); err != nil {
			return nil, model.FlowGraph{}, err
		}
	}
	b.add(model.ControlFlowBlock{BlockType: model.BlockExit, StartLine: parser.EndLine(fn), EndLine: parser.EndLine(fn)}, 0)
	return b.blocks, b.graph(), nil
}

func (b *cfBuilder) add(blk model.ControlFlowBlock, branches int) int {
	blk.ID = len(b.blocks)
	blk.ParentID = model.NoParent
	if len(b.open) > 0 {
		blk.ParentID = b.open[len(b.open)-1]
	}
	blk.Function = b.function
	blk.SymbolName = b.symbol
	blk.SymbolLine = b.line
	blk.Branches = branches
	blk.Complexity = branches - 1
	if blk.Complexity < 0 {
		blk.Complexity = 0
	}
	blk.Complexity += blk.BooleanOperators
	b.blocks = append(b.blocks, blk)
	return blk.ID
}

func (b *cfBuilder) visit(n *tree_sitter.Node) error {
	if n == nil {
		return nil
	}
	if err := b.ctx.Err(); err != nil {
		return err
	}
	if dl, ok := b.ctx.Deadline(); ok && !time.Now().Before(dl) {
		return context.DeadlineExceeded
	}
	kind := n.Kind()
	blk := model.ControlFlowBlock{StartLine: parser.StartLine(n), EndLine: parser.EndLine(n)}
	branches := 0

	switch {
	case contains(b.spec.ConditionalNodeTypes, kind):
		blk.BlockType = model.BlockConditional
		blk.Condition = b.condition(n)
		blk.BooleanOperators = countBooleanOperators(blk.Condition)
		branches = 2
	case contains(b.spec.LoopNodeTypes, kind):
		blk.BlockType = model.BlockLoop
		blk.LoopType = loopType(kind)
		blk.Condition = b.condition(n)
		blk.BooleanOperators = countBooleanOperators(blk.Condition)
		branches = 2
	case contains(b.spec.SwitchNodeTypes, kind):
		blk.BlockType = model.BlockSwitch
		blk.Condition = b.condition(n)
		branches = max(2, countDescendants(n, isCaseKind, 3))
	case contains(b.spec.TryNodeTypes, kind):
		blk.BlockType = model.BlockTryCatch
		branches = max(2, 1+countDescendants(n, func(k string) bool { return catchKinds[k] }, 2))
	case contains(b.spec.ReturnNodeTypes, kind):
		blk.BlockType = model.BlockReturn
		branches = 1
	case contains(b.spec.CallNodeTypes, kind):
		b.calls++
	}

	if blk.BlockType == "" {
		return b.children(n)
	}
	id := b.add(blk, branches)
	if !blk.BlockType.IsDecision() {
		return b.children(n)
	}
	b.open = append(b.open, id)
	err := b.children(n)
	b.open = b.open[:len(b.open)-1]
	return err
}

func (b *cfBuilder) children(n *tree_sitter.Node) error {
	for i := uint(0); i < n.ChildCount(); i++ {
		if err := b.visit(n.Child(i)); err != nil {
			return err
		}
	}
	return nil
}

func (b *cfBuilder) condition(n *tree_sitter.Node) string {
	for _, field := range []string{"condition", "value", "subject", "left"} {
		if c := n.ChildByFieldName(field); c != nil {
			text := strings.Join(strings.Fields(b.hctx.Text(c)), " ")
			if len(text) > maxConditionLen {
				text = text[:maxConditionLen]
			}
			return text
		}
	}
	return ""
}

// graph turns the block list into a flow graph. Each block has one node; a
// block with k branches has k outgoing edges, so E - N + 2 = 1 + sum(k-1).
func (b *cfBuilder) graph() model.FlowGraph {
	g := model.FlowGraph{Function: b.function, SymbolName: b.symbol, SymbolLine: b.line, CallSites: b.calls}
	exit := len(b.blocks) - 1
	for _, blk := range b.blocks {
		g.Nodes = append(g.Nodes, model.FlowNode{ID: blk.ID, Kind: blk.BlockType, Line: blk.StartLine, Block: blk.ID})
	}
	for _, blk := range b.blocks {
		switch {
		case blk.BlockType == model.BlockExit:
		case blk.BlockType == model.BlockReturn:
			g.Edges = append(g.Edges, model.FlowEdge{From: blk.ID, To: exit, Label: "return"})
		default:
			next := min(blk.ID+1, exit)
			g.Edges = append(g.Edges, model.FlowEdge{From: blk.ID, To: next, Label: "next"})
			after := b.after(blk)
			for i := 1; i < blk.Branches; i++ {
				g.Edges = append(g.Edges, model.FlowEdge{From: blk.ID, To: after, Label: "branch"})
			}
		}
	}
	return g
}

// after returns the first block starting past blk's last line, or the exit.
func (b *cfBuilder) after(blk model.ControlFlowBlock) int {
	for _, other := range b.blocks[blk.ID+1:] {
		if other.StartLine > blk.EndLine {
			return other.ID
		}
	}
	return len(b.blocks) - 1
}

func countBooleanOperators(cond string) int {
	if cond == "" {
		return 0
	}
	n := strings.Count(cond, "&&") + strings.Count(cond, "||")
	for _, w := range strings.Fields(cond) {
		if w == "and" || w == "or" {
			n++
		}
	}
	return n
}

func loopType(kind string) string {
	k := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(kind, "_statement"), "_expression"), "_loop")
	switch k {
	case "enhanced_for", "for_in", "foreach", "for_range":
		return "for_each"
	case "do", "do_while", "repeat":
		return "do_while"
	}
	return k
}

func isCaseKind(k string) bool {
	for _, c := range caseKinds {
		if strings.Contains(k, c) {
			return true
		}
	}
	return false
}

// countDescendants counts nodes matching pred within depth levels below n.
func countDescendants(n *tree_sitter.Node, pred func(string) bool, depth int) int {
	if depth == 0 {
		return 0
	}
	count := 0
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		if pred(c.Kind()) {
			count++
			continue
		}
		count += countDescendants(c, pred, depth-1)
	}
	return count
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
