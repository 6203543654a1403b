// Package scope tracks the lexical nesting of namespaces, classes and
// functions during a single traversal.
package scope

import (
	"strings"

	"github.com/DeusData/module-sentinel/internal/model"
)

// Tracker is a stack of scope frames. It is owned by one traversal and is not
// safe for concurrent use.
type Tracker struct {
	sep    string
	frames []model.ScopeInfo
}

// New returns an empty tracker joining names with sep.
func New(sep string) *Tracker {
	if sep == "" {
		sep = "."
	}
	return &Tracker{sep: sep}
}

// Separator returns the qualified-name separator.
func (t *Tracker) Separator() string { return t.sep }

// Push enters a scope. An empty QualifiedName is derived from the enclosing frames.
func (t *Tracker) Push(info model.ScopeInfo) model.ScopeInfo {
	if info.QualifiedName == "" {
		info.QualifiedName = t.Qualify(info.Name)
	}
	t.frames = append(t.frames, info)
	return info
}

// Pop leaves the innermost scope and records its end line. Popping an empty
// tracker returns a zero frame and false.
func (t *Tracker) Pop(endLine int) (model.ScopeInfo, bool) {
	if len(t.frames) == 0 {
		return model.ScopeInfo{}, false
	}
	top := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	top.EndLine = endLine
	return top, true
}

// Depth returns the number of open frames.
func (t *Tracker) Depth() int { return len(t.frames) }

// Current returns the innermost frame.
func (t *Tracker) Current() (model.ScopeInfo, bool) {
	if len(t.frames) == 0 {
		return model.ScopeInfo{}, false
	}
	return t.frames[len(t.frames)-1], true
}

// Qualify joins name onto the innermost named frame.
func (t *Tracker) Qualify(name string) string {
	for i := len(t.frames) - 1; i >= 0; i-- {
		f := t.frames[i]
		if f.Type == model.ScopeBlock || f.QualifiedName == "" {
			continue
		}
		if name == "" {
			return f.QualifiedName
		}
		return f.QualifiedName + t.sep + name
	}
	return name
}

// Namespace returns the joined names of all open namespace frames.
func (t *Tracker) Namespace() string {
	var parts []string
	for _, f := range t.frames {
		if f.Type == model.ScopeNamespace && f.Name != "" {
			parts = append(parts, f.Name)
		}
	}
	return strings.Join(parts, t.sep)
}

// CurrentClass returns the innermost class frame that is not shadowed by a
// function frame.
func (t *Tracker) CurrentClass() (model.ScopeInfo, bool) {
	for i := len(t.frames) - 1; i >= 0; i-- {
		switch t.frames[i].Type {
		case model.ScopeClass:
			return t.frames[i], true
		case model.ScopeFunction:
			return model.ScopeInfo{}, false
		}
	}
	return model.ScopeInfo{}, false
}

// InFunction reports whether any function frame is open.
func (t *Tracker) InFunction() bool {
	for _, f := range t.frames {
		if f.Type == model.ScopeFunction {
			return true
		}
	}
	return false
}
