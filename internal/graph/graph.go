// Package graph projects stored extraction results into the node/edge view
// consumed by dashboards. The view is derived and read-only.
package graph

import (
	"sort"
	"strings"

	"github.com/DeusData/module-sentinel/internal/fqn"
	"github.com/DeusData/module-sentinel/internal/model"
)

// Placeholder node types for relationship endpoints that are not symbols.
const (
	TypeExternal = "external"
	TypeService  = "service"
	TypeProcess  = "process"
	TypeModule   = "module"
	TypeFile     = "file"
)

// Node is one vertex of the graph view.
type Node struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Type          string             `json:"type"`
	Namespace     string             `json:"namespace,omitempty"`
	ModuleID      string             `json:"moduleId,omitempty"`
	ParentGroupID string             `json:"parentGroupId,omitempty"`
	Size          int                `json:"size,omitempty"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
}

// Edge is one directed, typed connection of the graph view.
type Edge struct {
	Source  string         `json:"source"`
	Target  string         `json:"target"`
	Type    string         `json:"type"`
	Details map[string]any `json:"details,omitempty"`
	Weight  float64        `json:"weight,omitempty"`
}

// View is the projection handed to dashboards.
type View struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Input carries everything a projection is built from.
type Input struct {
	Symbols       []model.Symbol
	Relationships []model.Relationship
	Metrics       []model.FunctionMetrics
	// FileModules maps file paths to the C++ module they declare. Other
	// files are grouped by their path-derived module id.
	FileModules map[string]string
}

type builder struct {
	nodes     []Node
	index     map[string]int      // node id -> position in nodes
	shortName map[string][]string // unqualified name -> node ids
	files     map[string]bool
}

// Build projects in into a View. Symbols become nodes keyed by qualified
// name; the highest-confidence observation wins when a name repeats.
// Relationship endpoints that match no symbol become placeholder nodes.
func Build(in Input) *View {
	b := &builder{
		index:     make(map[string]int),
		shortName: make(map[string][]string),
		files:     make(map[string]bool),
	}

	metricsByQN := make(map[string]model.FunctionMetrics, len(in.Metrics))
	for _, m := range in.Metrics {
		metricsByQN[m.QualifiedName] = m
	}

	best := make(map[string]*model.Symbol, len(in.Symbols))
	var order []string
	for i := range in.Symbols {
		sym := &in.Symbols[i]
		b.files[sym.FilePath] = true
		id := nodeID(sym)
		prev, ok := best[id]
		if !ok {
			order = append(order, id)
		}
		if !ok || sym.Confidence > prev.Confidence {
			best[id] = sym
		}
	}

	for _, id := range order {
		sym := best[id]
		n := Node{
			ID:        id,
			Name:      sym.Name,
			Type:      string(sym.Kind),
			Namespace: sym.Namespace,
			ModuleID:  moduleID(in.FileModules, sym.FilePath),
		}
		if sym.EndLine >= sym.Line && sym.EndLine > 0 {
			n.Size = sym.EndLine - sym.Line + 1
		}
		if m, ok := metricsByQN[sym.QualifiedName]; ok {
			n.Metrics = map[string]float64{
				"cyclomatic":      float64(m.Cyclomatic),
				"cognitive":       float64(m.Cognitive),
				"nestingDepth":    float64(m.NestingDepth),
				"linesOfCode":     float64(m.LinesOfCode),
				"maintainability": m.MaintainabilityIndex,
			}
		}
		b.add(n)
		b.shortName[sym.Name] = append(b.shortName[sym.Name], id)
	}

	// Parent groups are resolved once every symbol node exists.
	for _, id := range order {
		b.nodes[b.index[id]].ParentGroupID = b.parentGroup(best[id])
	}

	type edgeKey struct{ source, target, typ string }
	edgeIndex := make(map[edgeKey]int)
	var edges []Edge
	for i := range in.Relationships {
		r := &in.Relationships[i]
		if r.FromName == "" || r.ToName == "" {
			continue
		}
		source := b.resolve(r.FromName, sourcePlaceholder(b, r.FromName))
		target := b.resolve(r.ToName, targetPlaceholder(r.Type))
		key := edgeKey{source, target, string(r.Type)}
		if pos, ok := edgeIndex[key]; ok {
			e := &edges[pos]
			e.Weight++
			if c, _ := e.Details["confidence"].(float64); r.Confidence > c {
				e.Details["confidence"] = r.Confidence
			}
			continue
		}
		details := map[string]any{"confidence": r.Confidence}
		if r.CrossLanguage {
			details["crossLanguage"] = true
		}
		for k, v := range r.Metadata {
			details[k] = v
		}
		edgeIndex[key] = len(edges)
		edges = append(edges, Edge{Source: source, Target: target, Type: string(r.Type), Details: details, Weight: 1})
	}

	if edges == nil {
		edges = []Edge{}
	}
	nodes := b.nodes
	if nodes == nil {
		nodes = []Node{}
	}
	return &View{Nodes: nodes, Edges: edges}
}

func moduleID(modules map[string]string, filePath string) string {
	if m, ok := modules[filePath]; ok {
		return m
	}
	if filePath == "" {
		return ""
	}
	return fqn.ModuleID(filePath)
}

func nodeID(sym *model.Symbol) string {
	if sym.QualifiedName != "" {
		return sym.QualifiedName
	}
	return sym.Name
}

func (b *builder) add(n Node) {
	b.index[n.ID] = len(b.nodes)
	b.nodes = append(b.nodes, n)
}

// resolve maps a relationship endpoint to a node id: exact qualified name,
// then (for code references) a unique unqualified name, then a placeholder
// of placeholderType.
func (b *builder) resolve(name, placeholderType string) string {
	if _, ok := b.index[name]; ok {
		return name
	}
	if placeholderType != TypeExternal {
		b.add(Node{ID: name, Name: name, Type: placeholderType})
		return name
	}
	short := lastSegment(name)
	if ids := b.shortName[short]; len(ids) == 1 {
		return ids[0]
	}
	b.add(Node{ID: name, Name: short, Type: placeholderType})
	return name
}

// parentGroup returns the id of the type or namespace enclosing sym.
func (b *builder) parentGroup(sym *model.Symbol) string {
	qn := nodeID(sym)
	if sym.ParentClass != "" {
		for _, candidate := range []string{qualifiedPrefix(qn), sym.ParentClass} {
			if _, ok := b.index[candidate]; ok && candidate != qn {
				return candidate
			}
		}
	}
	if sym.Namespace != "" && sym.Namespace != qn {
		if _, ok := b.index[sym.Namespace]; ok {
			return sym.Namespace
		}
	}
	return ""
}

func sourcePlaceholder(b *builder, name string) string {
	if b.files[name] {
		return TypeFile
	}
	return TypeExternal
}

func targetPlaceholder(t model.RelationshipType) string {
	switch t {
	case model.RelInvokes:
		return TypeService
	case model.RelSpawns:
		return TypeProcess
	case model.RelImports:
		return TypeModule
	}
	return TypeExternal
}

var separators = []string{"::", ".", "\\", "/"}

// lastSeparator returns the position and width of the rightmost separator.
func lastSeparator(qn string) (int, int) {
	best, width := -1, 0
	for _, sep := range separators {
		if i := strings.LastIndex(qn, sep); i > best {
			best, width = i, len(sep)
		}
	}
	return best, width
}

// qualifiedPrefix strips the last segment of a qualified name.
func qualifiedPrefix(qn string) string {
	if i, _ := lastSeparator(qn); i > 0 {
		return qn[:i]
	}
	return ""
}

func lastSegment(qn string) string {
	i, width := lastSeparator(qn)
	if i < 0 {
		return qn
	}
	return qn[i+width:]
}

// Stats summarizes a View by node and edge type.
type Stats struct {
	NodesByType map[string]int `json:"nodesByType"`
	EdgesByType map[string]int `json:"edgesByType"`
}

// Summarize counts nodes and edges per type.
func (v *View) Summarize() Stats {
	s := Stats{NodesByType: map[string]int{}, EdgesByType: map[string]int{}}
	for _, n := range v.Nodes {
		s.NodesByType[n.Type]++
	}
	for _, e := range v.Edges {
		s.EdgesByType[e.Type]++
	}
	return s
}

// Types returns the map keys sorted, for stable rendering.
func Types(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
