// Package modules recognizes C++20 module syntax line by line and folds
// what it finds into a file's extracted symbols.
package modules

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/DeusData/module-sentinel/internal/model"
)

const (
	aliasConfidence  = 0.8
	importConfidence = 0.9
)

var (
	globalFragmentRe  = regexp.MustCompile(`^\s*module\s*;`)
	moduleDeclRe      = regexp.MustCompile(`^\s*(export\s+)?module\s+([\w.:]+)\s*;`)
	importRe          = regexp.MustCompile(`^\s*(export\s+)?import\s+([\w.:]+|<[^>]+>|"[^"]+")\s*;`)
	exportNamespaceRe = regexp.MustCompile(`^\s*export\s+namespace\s+([\w]+(?:::[\w]+)*)\s*\{?`)
	exportUsingRe     = regexp.MustCompile(`^\s*export\s+using\s+(\w+)\s*=\s*([^;]+);`)
)

// Analyze scans content for module preambles, module and import
// declarations, exported namespaces and exported aliases. It never fails;
// text it cannot recognize is ignored.
func Analyze(content []byte) *model.ModuleAnalysis {
	a := &model.ModuleAnalysis{}
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(text), "//") {
			continue
		}
		switch {
		case globalFragmentRe.MatchString(text):
			a.HasGlobalFragment = true
		case moduleDeclRe.MatchString(text):
			m := moduleDeclRe.FindStringSubmatch(text)
			if a.ModuleName == "" {
				a.ModuleName = m[2]
				a.IsInterface = m[1] != ""
			}
		case importRe.MatchString(text):
			m := importRe.FindStringSubmatch(text)
			a.Imports = append(a.Imports, model.ModuleImport{
				Name:     strings.Trim(m[2], `"`),
				Line:     line,
				Exported: m[1] != "",
			})
		case exportNamespaceRe.MatchString(text):
			m := exportNamespaceRe.FindStringSubmatch(text)
			a.ExportNamespaces = append(a.ExportNamespaces, model.ExportNamespace{Name: m[1], Line: line})
		case exportUsingRe.MatchString(text):
			m := exportUsingRe.FindStringSubmatch(text)
			a.ExportAliases = append(a.ExportAliases, model.ExportAlias{
				Name: m[1],
				Type: strings.TrimSpace(m[2]),
				Line: line,
			})
		}
	}
	return a
}

// Enhance applies a to raw in place and reports how many symbols changed or
// were added.
//
// Symbols without a namespace are assigned the first exported namespace of
// the file, whatever their position. Files with several sibling export
// namespaces therefore attribute everything to the first one.
func Enhance(raw *model.RawResult, a *model.ModuleAnalysis, filePath string) int {
	if raw == nil || a == nil {
		return 0
	}
	changed := 0
	ns := ""
	if len(a.ExportNamespaces) > 0 {
		ns = a.ExportNamespaces[0].Name
	}

	if ns != "" {
		for i := range raw.Symbols {
			s := &raw.Symbols[i]
			if s.Namespace != "" || s.Kind == model.KindNamespace {
				continue
			}
			s.Namespace = ns
			s.SetFeature(model.FeatureModuleExported, true)
			if a.ModuleName != "" {
				s.SetFeature(model.FeatureModuleName, a.ModuleName)
			}
			changed++
		}
	}

	for _, alias := range a.ExportAliases {
		if hasTypedef(raw.Symbols, alias.Name) {
			continue
		}
		qn := alias.Name
		if ns != "" {
			qn = ns + "::" + alias.Name
		}
		sym := model.Symbol{
			Name:          alias.Name,
			QualifiedName: qn,
			Kind:          model.KindTypedef,
			FilePath:      filePath,
			Line:          alias.Line,
			Column:        1,
			EndLine:       alias.Line,
			Signature:     alias.Type,
			Namespace:     ns,
			Confidence:    aliasConfidence,
			Origin:        model.OriginModuleEnhancer,
		}
		sym.SetFeature(model.FeatureModuleExported, true)
		if a.ModuleName != "" {
			sym.SetFeature(model.FeatureModuleName, a.ModuleName)
		}
		raw.Symbols = append(raw.Symbols, sym)
		changed++
	}

	from := a.ModuleName
	if from == "" {
		from = filePath
	}
	for _, imp := range a.Imports {
		meta := map[string]any{"kind": importKind(imp.Name)}
		if imp.Exported {
			meta["reexported"] = true
		}
		raw.Relationships = append(raw.Relationships, model.Relationship{
			FromName:   from,
			ToName:     resolvePartition(a.ModuleName, imp.Name),
			Type:       model.RelImports,
			Confidence: importConfidence,
			LineNumber: imp.Line,
			Metadata:   meta,
		})
	}
	return changed
}

func hasTypedef(symbols []model.Symbol, name string) bool {
	for i := range symbols {
		if symbols[i].Kind == model.KindTypedef && symbols[i].Name == name {
			return true
		}
	}
	return false
}

// importKind classifies an import target as a header unit, a partition or a module.
func importKind(name string) string {
	switch {
	case strings.HasPrefix(name, "<") || strings.HasSuffix(name, ".h") || strings.HasSuffix(name, ".hpp"):
		return "header_unit"
	case strings.HasPrefix(name, ":"):
		return "partition"
	default:
		return "module"
	}
}

// resolvePartition expands `import :part;` to the owning module's full partition name.
func resolvePartition(module, name string) string {
	if !strings.HasPrefix(name, ":") || module == "" {
		return name
	}
	if i := strings.IndexByte(module, ':'); i >= 0 {
		module = module[:i]
	}
	return module + name
}
