package lang

// Language represents a supported programming language.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Go         Language = "go"
	Rust       Language = "rust"
	Java       Language = "java"
	C          Language = "c"
	CPP        Language = "cpp"
	TSX        Language = "tsx"
	CSharp     Language = "c-sharp"
	PHP        Language = "php"
	Lua        Language = "lua"
	Scala      Language = "scala"
	Kotlin     Language = "kotlin"
)

// AllLanguages returns all supported languages.
func AllLanguages() []Language {
	return []Language{Python, JavaScript, TypeScript, TSX, Go, Rust, Java, C, CPP, CSharp, PHP, Lua, Scala, Kotlin}
}

// LanguageSpec defines the tree-sitter node types for a language.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string
	// Separator joins scope names into qualified names ("::" or ".").
	Separator string

	FunctionNodeTypes  []string
	ClassNodeTypes     []string
	NamespaceNodeTypes []string
	CallNodeTypes      []string
	ImportNodeTypes    []string
	PackageIndicators  []string

	// Control-flow node kinds, one list per block type.
	ConditionalNodeTypes []string
	LoopNodeTypes        []string
	SwitchNodeTypes      []string
	TryNodeTypes         []string
	ReturnNodeTypes      []string

	// CommentPrefixes are line prefixes treated as comments by line scanners.
	CommentPrefixes []string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".go").
func ForExtension(ext string) *LanguageSpec {
	return registry[ext]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(lang Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == lang {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}

// IsCFamily reports whether the language can be handed to the clang AST bridge.
func IsCFamily(l Language) bool {
	return l == C || l == CPP
}

// SeparatorFor returns the qualified-name separator for a language.
func SeparatorFor(l Language) string {
	if spec := ForLanguage(l); spec != nil && spec.Separator != "" {
		return spec.Separator
	}
	return "."
}
