package handlers

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/parser"
	"github.com/DeusData/module-sentinel/internal/visitor"
)

// minPatternConfidence drops weak pattern guesses.
const minPatternConfidence = 0.6

var (
	singletonAccessors = []string{"getinstance", "get_instance", "instance", "shared", "sharedinstance", "default"}
	subscribeNames     = []string{"subscribe", "addlistener", "addobserver", "attach", "on", "register"}
	unsubscribeNames   = []string{"unsubscribe", "removelistener", "removeobserver", "detach", "off", "unregister"}
	notifyNames        = []string{"notify", "notifyobservers", "notifyall", "emit", "publish", "dispatch"}
)

// classPattern inspects a class's own method names for design-pattern idioms.
func classPattern(n *tree_sitter.Node, ctx *visitor.Context) (*model.Pattern, error) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil, nil
	}
	name := cleanTypeName(ctx.Text(nameNode))
	if name == "" {
		return nil, nil
	}
	methods := classMethodNames(n, ctx)
	text := ctx.Text(n)

	candidates := []model.Pattern{
		singletonPattern(name, methods, text),
		factoryPattern(name, methods),
		builderPattern(name, methods),
		observerPattern(methods),
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	if best.Confidence < minPatternConfidence {
		return nil, nil
	}
	best.Name = ctx.Qualify(name)
	if best.Details == nil {
		best.Details = map[string]any{}
	}
	best.Details["line"] = parser.StartLine(n)
	best.Details["filePath"] = ctx.FilePath
	return &best, nil
}

// classMethodNames collects the names of functions declared directly in a
// class body, without descending into nested classes.
func classMethodNames(class *tree_sitter.Node, ctx *visitor.Context) []string {
	if ctx.Spec == nil {
		return nil
	}
	funcKinds := toSet(ctx.Spec.FunctionNodeTypes)
	classKinds := toSet(ctx.Spec.ClassNodeTypes)
	var names []string
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			if c == nil || classKinds[c.Kind()] {
				continue
			}
			if funcKinds[c.Kind()] {
				if nn := resolveFuncNameNode(c); nn != nil {
					name := ctx.Text(nn)
					if i := strings.LastIndex(name, ":"); i >= 0 {
						name = name[i+1:]
					}
					names = append(names, name)
				}
				continue
			}
			walk(c)
		}
	}
	walk(class)
	return names
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, item := range items {
		m[item] = true
	}
	return m
}

func matching(methods []string, want []string) []string {
	var out []string
	for _, m := range methods {
		lm := strings.ToLower(m)
		for _, w := range want {
			if lm == w {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func withPrefix(methods []string, prefixes ...string) []string {
	var out []string
	for _, m := range methods {
		lm := strings.ToLower(m)
		for _, p := range prefixes {
			if strings.HasPrefix(lm, p) && len(lm) > len(p) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func singletonPattern(name string, methods []string, text string) model.Pattern {
	p := model.Pattern{Type: "singleton"}
	accessors := matching(methods, singletonAccessors)
	if len(accessors) == 0 {
		return p
	}
	p.Confidence = 0.7
	lower := strings.ToLower(text)
	if strings.Contains(lower, "static") && strings.Contains(lower, "instance") {
		p.Confidence += 0.1
	}
	if strings.Contains(lower, "private:") || strings.Contains(lower, "private "+strings.ToLower(name)+"(") {
		p.Confidence += 0.1
	}
	p.Details = map[string]any{"accessors": accessors}
	return p
}

func factoryPattern(name string, methods []string) model.Pattern {
	p := model.Pattern{Type: "factory"}
	creators := withPrefix(methods, "create", "make", "new", "build_")
	switch {
	case strings.HasSuffix(name, "Factory"):
		p.Confidence = 0.8
		if len(creators) > 0 {
			p.Confidence = 0.9
		}
	case len(creators) >= 2:
		p.Confidence = 0.65
	}
	if p.Confidence > 0 {
		p.Details = map[string]any{"creators": creators}
	}
	return p
}

func builderPattern(name string, methods []string) model.Pattern {
	p := model.Pattern{Type: "builder"}
	build := matching(methods, []string{"build"})
	steps := withPrefix(methods, "with", "set", "add")
	switch {
	case strings.HasSuffix(name, "Builder") && len(build) > 0:
		p.Confidence = 0.9
	case strings.HasSuffix(name, "Builder"):
		p.Confidence = 0.75
	case len(build) > 0 && len(steps) >= 2:
		p.Confidence = 0.7
	}
	if p.Confidence > 0 {
		p.Details = map[string]any{"steps": steps}
	}
	return p
}

func observerPattern(methods []string) model.Pattern {
	p := model.Pattern{Type: "observer"}
	sub := matching(methods, subscribeNames)
	unsub := matching(methods, unsubscribeNames)
	notify := matching(methods, notifyNames)
	hits := 0
	for _, group := range [][]string{sub, unsub, notify} {
		if len(group) > 0 {
			hits++
		}
	}
	switch hits {
	case 3:
		p.Confidence = 0.85
	case 2:
		p.Confidence = 0.65
	}
	if p.Confidence > 0 {
		p.Details = map[string]any{"subscribe": sub, "unsubscribe": unsub, "notify": notify}
	}
	return p
}
