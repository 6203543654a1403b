// Package visitor walks a tree-sitter syntax tree once and dispatches each
// node to per-language handler tables that produce symbols, relationships,
// patterns and scope frames.
package visitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/lang"
	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/parser"
	"github.com/DeusData/module-sentinel/internal/scope"
)

// Context is handed to every handler. It exposes the file being visited and
// the scope stack as it stands when the handler's node is entered.
type Context struct {
	FilePath string
	Source   []byte
	Lines    []string
	Language lang.Language
	Spec     *lang.LanguageSpec
	Scope    *scope.Tracker
}

// Text returns the source text of n.
func (c *Context) Text(n *tree_sitter.Node) string {
	return parser.NodeText(n, c.Source)
}

// FieldText returns the source text of n's named field.
func (c *Context) FieldText(n *tree_sitter.Node, field string) string {
	return parser.FieldText(n, field, c.Source)
}

// Qualify joins name onto the current scope.
func (c *Context) Qualify(name string) string {
	return c.Scope.Qualify(name)
}

// Separator returns the language's qualified-name separator.
func (c *Context) Separator() string {
	return c.Scope.Separator()
}

// NewSymbol fills the positional and scope-derived fields of a symbol.
func (c *Context) NewSymbol(n *tree_sitter.Node, name string, kind model.SymbolKind, origin string) *model.Symbol {
	sym := &model.Symbol{
		Name:          name,
		QualifiedName: c.Qualify(name),
		Kind:          kind,
		FilePath:      c.FilePath,
		Line:          parser.StartLine(n),
		Column:        parser.Column(n),
		EndLine:       parser.EndLine(n),
		Namespace:     c.Scope.Namespace(),
		Confidence:    0.9,
		Origin:        origin,
	}
	if cls, ok := c.Scope.CurrentClass(); ok {
		sym.ParentClass = cls.QualifiedName
	}
	return sym
}

// Handler families. A nil result with a nil error means "nothing here".
type (
	SymbolHandler       func(n *tree_sitter.Node, ctx *Context) (*model.Symbol, error)
	RelationshipHandler func(n *tree_sitter.Node, ctx *Context) ([]model.Relationship, error)
	PatternHandler      func(n *tree_sitter.Node, ctx *Context) (*model.Pattern, error)
	ScopeHandler        func(n *tree_sitter.Node, ctx *Context) (*model.ScopeInfo, error)
)

// HandlerTable is the typed dispatch table for one language, keyed by node kind.
type HandlerTable struct {
	Language      lang.Language
	Symbols       map[string]SymbolHandler
	Relationships map[string][]RelationshipHandler
	Patterns      map[string]PatternHandler
	Scopes        map[string]ScopeHandler
}

// NewHandlerTable returns an empty table for l.
func NewHandlerTable(l lang.Language) *HandlerTable {
	return &HandlerTable{
		Language:      l,
		Symbols:       map[string]SymbolHandler{},
		Relationships: map[string][]RelationshipHandler{},
		Patterns:      map[string]PatternHandler{},
		Scopes:        map[string]ScopeHandler{},
	}
}

// OnSymbol registers h for each kind, replacing any previous handler.
func (t *HandlerTable) OnSymbol(h SymbolHandler, kinds ...string) {
	for _, k := range kinds {
		t.Symbols[k] = h
	}
}

// OnRelationship appends h to each kind's relationship handlers.
func (t *HandlerTable) OnRelationship(h RelationshipHandler, kinds ...string) {
	for _, k := range kinds {
		t.Relationships[k] = append(t.Relationships[k], h)
	}
}

// OnPattern registers h for each kind.
func (t *HandlerTable) OnPattern(h PatternHandler, kinds ...string) {
	for _, k := range kinds {
		t.Patterns[k] = h
	}
}

// OnScope registers h for each kind.
func (t *HandlerTable) OnScope(h ScopeHandler, kinds ...string) {
	for _, k := range kinds {
		t.Scopes[k] = h
	}
}

// Options tunes the analysis budget of a traversal.
type Options struct {
	MinComplexityScore   int
	MaxAnalyzedFunctions int
	FunctionTimeout      time.Duration
	MemberAccessWindow   int
	// Lightweight disables control-flow and member-access analysis.
	Lightweight bool
}

// DefaultOptions returns the stock analysis budget.
func DefaultOptions() Options {
	return Options{
		MinComplexityScore:   3,
		MaxAnalyzedFunctions: 10,
		FunctionTimeout:      5 * time.Second,
		MemberAccessWindow:   50,
	}
}

// Stats counts what a traversal did.
type Stats struct {
	NodesVisited      int `json:"nodesVisited"`
	HandlerErrors     int `json:"handlerErrors"`
	FunctionsAnalyzed int `json:"functionsAnalyzed"`
	FunctionsSkipped  int `json:"functionsSkipped"`
	FunctionsTimedOut int `json:"functionsTimedOut"`
}

// Result is the raw output of one traversal.
type Result struct {
	model.RawResult
	Stats Stats
}

// Visitor runs traversals. It holds only configuration and is safe to share.
type Visitor struct {
	opts Options
}

// New returns a Visitor with the given options.
func New(opts Options) *Visitor {
	def := DefaultOptions()
	if opts.MinComplexityScore <= 0 {
		opts.MinComplexityScore = def.MinComplexityScore
	}
	if opts.MaxAnalyzedFunctions <= 0 {
		opts.MaxAnalyzedFunctions = def.MaxAnalyzedFunctions
	}
	if opts.FunctionTimeout <= 0 {
		opts.FunctionTimeout = def.FunctionTimeout
	}
	if opts.MemberAccessWindow <= 0 {
		opts.MemberAccessWindow = def.MemberAccessWindow
	}
	return &Visitor{opts: opts}
}

// walker carries the per-traversal state.
type walker struct {
	v        *Visitor
	ctx      context.Context
	hctx     *Context
	table    *HandlerTable
	res      *Result
	analyzed int
	callable []model.Symbol
}

// Traverse visits every node of tree in pre-order and returns what the
// handlers produced. Handler failures are logged, counted and recorded as
// warnings; they never abort the traversal.
func (v *Visitor) Traverse(ctx context.Context, tree *tree_sitter.Tree, filePath string, source []byte, table *HandlerTable) *Result {
	spec := lang.ForLanguage(table.Language)
	w := &walker{
		v:   v,
		ctx: ctx,
		hctx: &Context{
			FilePath: filePath,
			Source:   source,
			Lines:    strings.Split(string(source), "\n"),
			Language: table.Language,
			Spec:     spec,
			Scope:    scope.New(lang.SeparatorFor(table.Language)),
		},
		table: table,
		res:   &Result{},
	}
	if tree != nil {
		w.walk(tree.RootNode())
	}
	if !v.opts.Lightweight {
		w.memberAccess()
	}
	return w.res
}

func (w *walker) walk(n *tree_sitter.Node) {
	if n == nil || w.ctx.Err() != nil {
		return
	}
	w.res.Stats.NodesVisited++
	kind := n.Kind()

	var sym *model.Symbol
	if h, ok := w.table.Symbols[kind]; ok {
		sym = w.symbol(h, n)
	}
	if sym != nil {
		w.res.Symbols = append(w.res.Symbols, *sym)
		if sym.Kind.IsCallable() && sym.Origin != model.OriginVariableHandler {
			w.callable = append(w.callable, *sym)
			if !w.v.opts.Lightweight {
				w.gate(n, sym)
			}
		}
	}
	for _, h := range w.table.Relationships[kind] {
		w.res.Relationships = append(w.res.Relationships, w.relationships(h, n)...)
	}
	if h, ok := w.table.Patterns[kind]; ok {
		if p := w.pattern(h, n); p != nil {
			w.res.Patterns = append(w.res.Patterns, *p)
		}
	}

	var frame *model.ScopeInfo
	if h, ok := w.table.Scopes[kind]; ok {
		frame = w.scope(h, n)
	} else if sym != nil && sym.Origin != model.OriginVariableHandler {
		frame = frameFor(sym)
	}
	if frame != nil {
		w.hctx.Scope.Push(*frame)
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		w.walk(n.Child(i))
	}

	if frame != nil {
		w.hctx.Scope.Pop(parser.EndLine(n))
	}
}

// frameFor derives the scope a symbol opens, if any.
func frameFor(sym *model.Symbol) *model.ScopeInfo {
	var t model.ScopeType
	switch {
	case sym.Kind == model.KindNamespace || sym.Kind == model.KindModule:
		t = model.ScopeNamespace
	case sym.Kind.IsType():
		t = model.ScopeClass
	case sym.Kind.IsCallable():
		t = model.ScopeFunction
	default:
		return nil
	}
	return &model.ScopeInfo{Type: t, Name: sym.Name, QualifiedName: sym.QualifiedName, StartLine: sym.Line}
}

func (w *walker) handlerFailed(family string, n *tree_sitter.Node, err error) {
	w.res.Stats.HandlerErrors++
	w.warn("%s handler failed on %s at line %d: %v", family, n.Kind(), parser.StartLine(n), err)
	slog.Warn("visitor.handler.err",
		"family", family,
		"kind", n.Kind(),
		"file", w.hctx.FilePath,
		"line", parser.StartLine(n),
		"err", err,
	)
}

func recovered(r any) error {
	return fmt.Errorf("handler panic: %v", r)
}

func (w *walker) symbol(h SymbolHandler, n *tree_sitter.Node) (sym *model.Symbol) {
	defer func() {
		if r := recover(); r != nil {
			w.handlerFailed("symbol", n, recovered(r))
			sym = nil
		}
	}()
	s, err := h(n, w.hctx)
	if err != nil {
		w.handlerFailed("symbol", n, err)
		return nil
	}
	if s != nil {
		s.Confidence = model.Clamp(s.Confidence)
	}
	return s
}

func (w *walker) relationships(h RelationshipHandler, n *tree_sitter.Node) (rels []model.Relationship) {
	defer func() {
		if r := recover(); r != nil {
			w.handlerFailed("relationship", n, recovered(r))
			rels = nil
		}
	}()
	out, err := h(n, w.hctx)
	if err != nil {
		w.handlerFailed("relationship", n, err)
		return nil
	}
	for i := range out {
		out[i].Confidence = model.Clamp(out[i].Confidence)
	}
	return out
}

func (w *walker) pattern(h PatternHandler, n *tree_sitter.Node) (p *model.Pattern) {
	defer func() {
		if r := recover(); r != nil {
			w.handlerFailed("pattern", n, recovered(r))
			p = nil
		}
	}()
	out, err := h(n, w.hctx)
	if err != nil {
		w.handlerFailed("pattern", n, err)
		return nil
	}
	return out
}

func (w *walker) scope(h ScopeHandler, n *tree_sitter.Node) (f *model.ScopeInfo) {
	defer func() {
		if r := recover(); r != nil {
			w.handlerFailed("scope", n, recovered(r))
			f = nil
		}
	}()
	out, err := h(n, w.hctx)
	if err != nil {
		w.handlerFailed("scope", n, err)
		return nil
	}
	return out
}

func (w *walker) warn(format string, args ...any) {
	w.res.Warnings = append(w.res.Warnings, fmt.Sprintf(format, args...))
}
