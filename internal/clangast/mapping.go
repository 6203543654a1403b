package clangast

import (
	"path/filepath"
	"strings"

	"github.com/DeusData/module-sentinel/internal/model"
)

// compilerConfidence is the confidence of declarations clang resolved.
const compilerConfidence = 0.95

// unresolvedTypeMarkers appear in clang's spelling of types it could not
// resolve: error recovery, dependent and unnamed types.
var unresolvedTypeMarkers = []string{
	"<dependent type>",
	"<<error-type>>",
	"error-type",
	"<recovery",
	"type-parameter-",
	"(anonymous",
	"(unnamed",
}

func unresolvedType(t string) bool {
	for _, m := range unresolvedTypeMarkers {
		if strings.Contains(t, m) {
			return true
		}
	}
	return false
}

// inFile reports whether decl came from file. An empty file matches everything.
func inFile(d *Decl, file string) bool {
	if file == "" {
		return true
	}
	return filepath.Clean(d.File) == filepath.Clean(file)
}

// returnType extracts "int" from a function qualType like "int (const Foo &) const".
func returnType(qualType string) string {
	if i := strings.IndexByte(qualType, '('); i > 0 {
		return strings.TrimSpace(qualType[:i])
	}
	return ""
}

// Symbols maps the document's declarations located in file to symbols.
// Declarations from other project files reached through includes or a
// spliced interface unit are left out.
func (d *ASTDocument) Symbols(file string) []model.Symbol {
	var out []model.Symbol
	for i := range d.Decls {
		decl := &d.Decls[i]
		if !inFile(decl, file) || decl.Name == "" {
			continue
		}
		out = append(out, decl.symbol())
	}
	return out
}

func (decl *Decl) symbol() model.Symbol {
	sym := model.Symbol{
		Name:          decl.Name,
		QualifiedName: decl.QualifiedName,
		FilePath:      decl.File,
		Line:          decl.Line,
		Column:        decl.Column,
		EndLine:       decl.EndLine,
		Namespace:     decl.Namespace,
		ParentClass:   decl.ParentClass,
		Confidence:    compilerConfidence,
		Origin:        model.OriginCompiler,
	}
	if sym.QualifiedName == "" {
		sym.QualifiedName = decl.Name
	}

	switch decl.Kind {
	case "CXXRecordDecl", "RecordDecl":
		sym.Kind = recordKind(decl.TagUsed)
		if len(decl.Bases) > 0 {
			sym.SetFeature(model.FeatureBaseClasses, append([]string(nil), decl.Bases...))
		}
	case "NamespaceDecl":
		sym.Kind = model.KindNamespace
	case "CXXMethodDecl", "CXXConstructorDecl", "CXXDestructorDecl":
		sym.Kind = memberKind(decl.Kind)
		if decl.ParentClass == "" {
			sym.Kind = model.KindFunction
		}
	default:
		sym.Kind = model.KindFunction
		if decl.ParentClass != "" {
			sym.Kind = model.KindMethod
		}
	}

	if sym.Kind.IsCallable() {
		types := make([]string, 0, len(decl.Params))
		unresolved := false
		for _, p := range decl.Params {
			types = append(types, p.Type)
			if unresolvedType(p.Type) {
				unresolved = true
			}
		}
		sym.Signature = "(" + strings.Join(types, ", ") + ")"
		sym.ReturnType = returnType(decl.Type)
		sym.SetFeature(model.FeatureParameterCount, len(decl.Params))
		if unresolved || unresolvedType(sym.ReturnType) {
			sym.SetFeature(model.FeatureUnresolvedTypes, true)
		}
		if !decl.Definition {
			sym.SetFeature(model.FeatureDeclarationOnly, true)
		}
	}
	if decl.Virtual {
		sym.SetFeature(model.FeatureVirtual, true)
	}
	if decl.Constexpr {
		sym.SetFeature(model.FeatureConstexpr, true)
	}
	if decl.Static {
		sym.SetFeature(model.FeatureStatic, true)
	}
	if decl.Template {
		sym.SetFeature(model.FeatureTemplate, true)
	}
	return sym
}

// recordKind maps clang's tag keyword onto the kinds the structural
// handlers use for the same specifier.
func recordKind(tagUsed string) model.SymbolKind {
	switch tagUsed {
	case "struct", "union":
		return model.KindStruct
	}
	return model.KindClass
}

func memberKind(declKind string) model.SymbolKind {
	switch declKind {
	case "CXXConstructorDecl":
		return model.KindConstructor
	case "CXXDestructorDecl":
		return model.KindDestructor
	}
	return model.KindMethod
}

// Relationships returns the inheritance edges clang resolved for records in file.
func (d *ASTDocument) Relationships(file string) []model.Relationship {
	var out []model.Relationship
	for i := range d.Decls {
		decl := &d.Decls[i]
		if !inFile(decl, file) {
			continue
		}
		for _, base := range decl.Bases {
			out = append(out, model.Relationship{
				FromName:   decl.QualifiedName,
				ToName:     base,
				Type:       model.RelInherits,
				Confidence: compilerConfidence,
				LineNumber: decl.Line,
				Metadata:   map[string]any{"source": "compiler"},
			})
		}
	}
	return out
}
