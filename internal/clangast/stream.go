package clangast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// rawLoc is clang's JSON source location. File and Line are elided when they
// repeat the previously printed location, so they must be tracked in order.
type rawLoc struct {
	File         string  `json:"file"`
	Line         int     `json:"line"`
	Col          int     `json:"col"`
	SpellingLoc  *rawLoc `json:"spellingLoc"`
	ExpansionLoc *rawLoc `json:"expansionLoc"`
}

type rawRange struct {
	Begin rawLoc `json:"begin"`
	End   rawLoc `json:"end"`
}

type rawType struct {
	QualType string `json:"qualType"`
}

// rawNode is the subset of a clang AST node the bridge reads.
type rawNode struct {
	ID                  string    `json:"id"`
	Kind                string    `json:"kind"`
	Loc                 rawLoc    `json:"loc"`
	Range               rawRange  `json:"range"`
	Name                string    `json:"name"`
	Type                *rawType  `json:"type"`
	TagUsed             string    `json:"tagUsed"`
	CompleteDefinition  bool      `json:"completeDefinition"`
	IsImplicit          bool      `json:"isImplicit"`
	Virtual             bool      `json:"virtual"`
	Pure                bool      `json:"pure"`
	Constexpr           bool      `json:"constexpr"`
	Inline              bool      `json:"inline"`
	StorageClass        string    `json:"storageClass"`
	ParentDeclContextID string    `json:"parentDeclContextId"`
	Bases               []rawBase `json:"bases"`
	Inner               []rawNode `json:"inner"`
}

type rawBase struct {
	Type   rawType `json:"type"`
	Access string  `json:"access"`
}

// Param is one function parameter.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Decl is one retained declaration from the AST dump.
type Decl struct {
	Kind          string   `json:"kind"`
	Name          string   `json:"name"`
	QualifiedName string   `json:"qualifiedName"`
	Namespace     string   `json:"namespace,omitempty"`
	ParentClass   string   `json:"parentClass,omitempty"`
	File          string   `json:"file"`
	Line          int      `json:"line"`
	Column        int      `json:"column"`
	EndLine       int      `json:"endLine"`
	Type          string   `json:"type,omitempty"`
	TagUsed       string   `json:"tagUsed,omitempty"`
	Params        []Param  `json:"params,omitempty"`
	Bases         []string `json:"bases,omitempty"`
	Virtual       bool     `json:"virtual,omitempty"`
	Pure          bool     `json:"pure,omitempty"`
	Constexpr     bool     `json:"constexpr,omitempty"`
	Static        bool     `json:"static,omitempty"`
	Template      bool     `json:"template,omitempty"`
	Definition    bool     `json:"definition,omitempty"`
}

// retainedKinds are the declaration kinds the bridge keeps.
var retainedKinds = map[string]bool{
	"CXXRecordDecl":      true,
	"RecordDecl":         true,
	"FunctionDecl":       true,
	"CXXMethodDecl":      true,
	"CXXConstructorDecl": true,
	"CXXDestructorDecl":  true,
	"NamespaceDecl":      true,
}

// descendKinds are containers whose children may hold retained declarations.
var descendKinds = map[string]bool{
	"TranslationUnitDecl":                    true,
	"NamespaceDecl":                          true,
	"CXXRecordDecl":                          true,
	"RecordDecl":                             true,
	"ClassTemplateDecl":                      true,
	"FunctionTemplateDecl":                   true,
	"LinkageSpecDecl":                        true,
	"ExportDecl":                             true,
	"ClassTemplatePartialSpecializationDecl": true,
}

// errTruncated stops decoding once the retained-node bound is reached.
var errTruncated = errors.New("clangast: retained node limit reached")

// scope is one enclosing namespace or record during the walk.
type scope struct {
	name     string
	isRecord bool
}

// collector walks decoded nodes in document order, tracking elided locations
// and keeping the declarations the origin filter admits.
type collector struct {
	filter *OriginFilter
	// workDir resolves relative file names reported by clang.
	workDir  string
	maxNodes int

	lastFile string
	lastLine int

	scopes    []scope
	recordQNs map[string]string

	Decls     []Decl
	Retained  int
	Discarded int
	Truncated bool
}

func newCollector(filter *OriginFilter, workDir string, maxNodes int) *collector {
	return &collector{
		filter:    filter,
		workDir:   workDir,
		maxNodes:  maxNodes,
		recordQNs: make(map[string]string),
	}
}

// bare applies one printed location to the tracking state and returns its
// effective file and line.
func (c *collector) bare(l *rawLoc) (string, int) {
	if l.File != "" {
		c.lastFile = l.File
		c.lastLine = l.Line
	} else if l.Line != 0 {
		c.lastLine = l.Line
	}
	return c.lastFile, c.lastLine
}

// location applies loc the way clang prints it: spelling before expansion.
// The expansion location is where a declaration appears in the file.
func (c *collector) location(l *rawLoc) (string, int) {
	if l.SpellingLoc != nil || l.ExpansionLoc != nil {
		file, line := "", 0
		if l.SpellingLoc != nil {
			file, line = c.bare(l.SpellingLoc)
		}
		if l.ExpansionLoc != nil {
			file, line = c.bare(l.ExpansionLoc)
		}
		return file, line
	}
	if l.File == "" && l.Line == 0 && l.Col == 0 {
		return c.lastFile, 0
	}
	return c.bare(l)
}

func (c *collector) resolve(file string) string {
	if file == "" || filepath.IsAbs(file) || c.workDir == "" {
		return file
	}
	return filepath.Join(c.workDir, file)
}

func joinScopes(scopes []scope, name string) string {
	parts := make([]string, 0, len(scopes)+1)
	for _, s := range scopes {
		if s.name != "" {
			parts = append(parts, s.name)
		}
	}
	if name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, "::")
}

func (c *collector) qualify(name string) string {
	return joinScopes(c.scopes, name)
}

func (c *collector) namespace() string {
	var parts []string
	for _, s := range c.scopes {
		if !s.isRecord && s.name != "" {
			parts = append(parts, s.name)
		}
	}
	return strings.Join(parts, "::")
}

func (c *collector) enclosingRecord() string {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i].isRecord {
			return joinScopes(c.scopes[:i+1], "")
		}
	}
	return ""
}

// walk visits n and its subtree. inTemplate marks children of template decls.
func (c *collector) walk(n *rawNode, inTemplate bool) error {
	file, line := c.location(&n.Loc)
	c.location(&n.Range.Begin)
	_, endLine := c.location(&n.Range.End)

	if n.Kind == "TranslationUnitDecl" {
		return c.children(n, false)
	}

	if retainedKinds[n.Kind] && !n.IsImplicit {
		if err := c.consider(n, c.resolve(file), line, endLine, inTemplate); err != nil {
			return err
		}
	}

	if !descendKinds[n.Kind] {
		// Function bodies and expressions still carry locations.
		return c.track(n.Inner)
	}
	switch n.Kind {
	case "NamespaceDecl":
		c.scopes = append(c.scopes, scope{name: n.Name})
		defer func() { c.scopes = c.scopes[:len(c.scopes)-1] }()
	case "CXXRecordDecl", "RecordDecl", "ClassTemplatePartialSpecializationDecl":
		c.scopes = append(c.scopes, scope{name: n.Name, isRecord: true})
		defer func() { c.scopes = c.scopes[:len(c.scopes)-1] }()
	}
	return c.children(n, n.Kind == "ClassTemplateDecl" || n.Kind == "FunctionTemplateDecl")
}

func (c *collector) children(n *rawNode, inTemplate bool) error {
	for i := range n.Inner {
		if err := c.walk(&n.Inner[i], inTemplate); err != nil {
			return err
		}
	}
	return nil
}

// track advances location state through a subtree without retaining anything.
func (c *collector) track(nodes []rawNode) error {
	for i := range nodes {
		n := &nodes[i]
		c.location(&n.Loc)
		c.location(&n.Range.Begin)
		c.location(&n.Range.End)
		if err := c.track(n.Inner); err != nil {
			return err
		}
	}
	return nil
}

func (c *collector) consider(n *rawNode, file string, line, endLine int, inTemplate bool) error {
	isRecord := n.Kind == "CXXRecordDecl" || n.Kind == "RecordDecl"
	if isRecord && (!n.CompleteDefinition || n.Name == "") {
		return nil
	}
	if n.Kind == "NamespaceDecl" && n.Name == "" {
		return nil
	}
	qn := c.qualify(n.Name)
	if isRecord {
		c.recordQNs[n.ID] = qn
	}
	if !c.filter.Allow(file) {
		c.Discarded++
		return nil
	}
	if c.maxNodes > 0 && c.Retained >= c.maxNodes {
		c.Truncated = true
		return errTruncated
	}

	d := Decl{
		Kind:          n.Kind,
		Name:          n.Name,
		QualifiedName: qn,
		Namespace:     c.namespace(),
		ParentClass:   c.enclosingRecord(),
		File:          file,
		Line:          line,
		Column:        n.Loc.Col,
		EndLine:       endLine,
		TagUsed:       n.TagUsed,
		Virtual:       n.Virtual || n.Pure,
		Pure:          n.Pure,
		Constexpr:     n.Constexpr,
		Static:        n.StorageClass == "static",
		Template:      inTemplate,
	}
	if n.Loc.ExpansionLoc != nil {
		d.Column = n.Loc.ExpansionLoc.Col
	}
	if d.EndLine < d.Line {
		d.EndLine = d.Line
	}
	if n.Type != nil {
		d.Type = n.Type.QualType
	}
	for _, b := range n.Bases {
		if b.Type.QualType != "" {
			d.Bases = append(d.Bases, b.Type.QualType)
		}
	}
	switch n.Kind {
	case "FunctionDecl", "CXXMethodDecl", "CXXConstructorDecl", "CXXDestructorDecl":
		// Out-of-line member definitions sit at namespace level and point
		// back at their record.
		if d.ParentClass == "" && n.ParentDeclContextID != "" {
			if owner, ok := c.recordQNs[n.ParentDeclContextID]; ok {
				d.ParentClass = owner
				d.QualifiedName = owner + "::" + n.Name
			}
		}
		for i := range n.Inner {
			p := &n.Inner[i]
			switch p.Kind {
			case "ParmVarDecl":
				param := Param{Name: p.Name}
				if p.Type != nil {
					param.Type = p.Type.QualType
				}
				d.Params = append(d.Params, param)
			case "CompoundStmt", "CXXTryStmt":
				d.Definition = true
			}
		}
	}

	c.Decls = append(c.Decls, d)
	c.Retained++
	return nil
}

// decodeStream reads a clang JSON AST dump from r one top-level declaration
// at a time. The collector holds whatever was retained even when an error is
// returned, so callers can salvage partial output.
func decodeStream(r io.Reader, c *collector) error {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		if name, _ := key.(string); name != "inner" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return fmt.Errorf("skip %v: %w", key, err)
			}
			continue
		}
		if err := expectDelim(dec, '['); err != nil {
			return err
		}
		for dec.More() {
			var n rawNode
			if err := dec.Decode(&n); err != nil {
				return fmt.Errorf("decode declaration: %w", err)
			}
			if err := c.walk(&n, false); err != nil {
				if errors.Is(err, errTruncated) {
					return nil
				}
				return err
			}
		}
		if err := expectDelim(dec, ']'); err != nil {
			return err
		}
	}
	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("expected %q: %w", want, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
