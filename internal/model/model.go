// Package model holds the records produced by the extraction pipeline.
package model

// SymbolKind is the closed set of symbol categories.
type SymbolKind string

const (
	KindClass       SymbolKind = "class"
	KindStruct      SymbolKind = "struct"
	KindInterface   SymbolKind = "interface"
	KindEnum        SymbolKind = "enum"
	KindFunction    SymbolKind = "function"
	KindMethod      SymbolKind = "method"
	KindConstructor SymbolKind = "constructor"
	KindDestructor  SymbolKind = "destructor"
	KindNamespace   SymbolKind = "namespace"
	KindVariable    SymbolKind = "variable"
	KindField       SymbolKind = "field"
	KindTypedef     SymbolKind = "typedef"
	KindModule      SymbolKind = "module"
)

// IsCallable reports whether symbols of this kind have a body worth analyzing.
func (k SymbolKind) IsCallable() bool {
	switch k {
	case KindFunction, KindMethod, KindConstructor, KindDestructor:
		return true
	}
	return false
}

// IsType reports whether the kind names a type.
func (k SymbolKind) IsType() bool {
	switch k {
	case KindClass, KindStruct, KindInterface, KindEnum:
		return true
	}
	return false
}

// Symbol producers.
const (
	OriginVariableHandler = "variable_handler"
	OriginFunctionHandler = "function_handler"
	OriginClassHandler    = "class_handler"
	OriginCompiler        = "compiler"
	OriginModuleEnhancer  = "module_enhancer"
)

// Well-known LanguageFeatures keys.
const (
	FeatureTemplate         = "isTemplate"
	FeatureConstexpr        = "isConstexpr"
	FeatureVirtual          = "isVirtual"
	FeatureStatic           = "isStatic"
	FeatureAsync            = "isAsync"
	FeatureArrowFunction    = "isArrowFunction"
	FeatureExported         = "isExported"
	FeatureModuleExported   = "isModuleExported"
	FeatureModuleName       = "moduleName"
	FeatureUnresolvedTypes  = "hasUnresolvedTypes"
	FeatureDeclarationOnly  = "isDeclaration"
	FeatureBaseClasses      = "baseClasses"
	FeatureParameterCount   = "parameterCount"
	FeatureComplexityScore  = "complexityScore"
	FeatureLightweightParse = "lightweight"
)

// Symbol is one named declaration observed in a file.
type Symbol struct {
	Name             string         `json:"name"`
	QualifiedName    string         `json:"qualifiedName"`
	Kind             SymbolKind     `json:"kind"`
	FilePath         string         `json:"filePath"`
	Line             int            `json:"line"`
	Column           int            `json:"column"`
	EndLine          int            `json:"endLine,omitempty"`
	Signature        string         `json:"signature,omitempty"`
	ReturnType       string         `json:"returnType,omitempty"`
	Namespace        string         `json:"namespace,omitempty"`
	ParentClass      string         `json:"parentClass,omitempty"`
	Confidence       float64        `json:"confidence"`
	LanguageFeatures map[string]any `json:"languageFeatures,omitempty"`
	Origin           string         `json:"origin,omitempty"`
}

// SetFeature records a language feature, allocating the map on first use.
func (s *Symbol) SetFeature(key string, value any) {
	if s.LanguageFeatures == nil {
		s.LanguageFeatures = make(map[string]any)
	}
	s.LanguageFeatures[key] = value
}

// FeatureBool returns a boolean feature, false when absent.
func (s *Symbol) FeatureBool(key string) bool {
	v, ok := s.LanguageFeatures[key].(bool)
	return ok && v
}

// Clamp returns v limited to [0,1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RelationshipType names an edge category.
type RelationshipType string

const (
	RelCalls       RelationshipType = "calls"
	RelInherits    RelationshipType = "inherits"
	RelReadsField  RelationshipType = "reads_field"
	RelWritesField RelationshipType = "writes_field"
	RelUsesType    RelationshipType = "uses_type"
	RelInvokes     RelationshipType = "invokes"
	RelSpawns      RelationshipType = "spawns"
	RelImports     RelationshipType = "imports"
)

// Relationship references its endpoints by qualified name.
type Relationship struct {
	FromName      string           `json:"fromName"`
	ToName        string           `json:"toName"`
	Type          RelationshipType `json:"type"`
	Confidence    float64          `json:"confidence"`
	LineNumber    int              `json:"lineNumber,omitempty"`
	CrossLanguage bool             `json:"crossLanguage,omitempty"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
}

// Pattern is a detected structural idiom such as a factory or singleton.
type Pattern struct {
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details,omitempty"`
}

// BlockType names a control-flow block category.
type BlockType string

const (
	BlockEntry       BlockType = "entry"
	BlockExit        BlockType = "exit"
	BlockConditional BlockType = "conditional"
	BlockLoop        BlockType = "loop"
	BlockSwitch      BlockType = "switch"
	BlockTryCatch    BlockType = "try_catch"
	BlockReturn      BlockType = "return"
)

// IsDecision reports whether the block type adds a nesting level.
func (b BlockType) IsDecision() bool {
	switch b {
	case BlockConditional, BlockLoop, BlockSwitch, BlockTryCatch:
		return true
	}
	return false
}

// NoParent marks a root control-flow block.
const NoParent = -1

// ControlFlowBlock is one region of a function body. Block IDs are local to
// the function; Function tells analysed functions of one file apart when
// they share a qualified name.
type ControlFlowBlock struct {
	ID               int       `json:"id"`
	ParentID         int       `json:"parentId"`
	Function         int       `json:"function"`
	SymbolName       string    `json:"symbolName"`
	SymbolLine       int       `json:"symbolLine"`
	BlockType        BlockType `json:"blockType"`
	StartLine        int       `json:"startLine"`
	EndLine          int       `json:"endLine"`
	Condition        string    `json:"condition,omitempty"`
	LoopType         string    `json:"loopType,omitempty"`
	Branches         int       `json:"branches,omitempty"`
	BooleanOperators int       `json:"booleanOperators,omitempty"`
	Complexity       int       `json:"complexity"`
}

// FlowNode is a node of a per-function control-flow graph.
type FlowNode struct {
	ID    int       `json:"id"`
	Kind  BlockType `json:"kind"`
	Line  int       `json:"line"`
	Block int       `json:"block"`
}

// FlowEdge connects two FlowNodes.
type FlowEdge struct {
	From  int    `json:"from"`
	To    int    `json:"to"`
	Label string `json:"label,omitempty"`
}

// FlowGraph is the control-flow graph of one function.
type FlowGraph struct {
	Function   int        `json:"function"`
	SymbolName string     `json:"symbolName"`
	SymbolLine int        `json:"symbolLine"`
	Nodes      []FlowNode `json:"nodes"`
	Edges      []FlowEdge `json:"edges"`
	CallSites  int        `json:"callSites"`
}

// ScopeType names a lexical scope category.
type ScopeType string

const (
	ScopeNamespace ScopeType = "namespace"
	ScopeClass     ScopeType = "class"
	ScopeFunction  ScopeType = "function"
	ScopeBlock     ScopeType = "block"
)

// ScopeInfo is one frame of the scope stack.
type ScopeInfo struct {
	Type          ScopeType `json:"type"`
	Name          string    `json:"name"`
	QualifiedName string    `json:"qualifiedName"`
	StartLine     int       `json:"startLine"`
	EndLine       int       `json:"endLine,omitempty"`
}

// HalsteadMetrics are token-based size and effort measures.
type HalsteadMetrics struct {
	DistinctOperators int     `json:"n1"`
	DistinctOperands  int     `json:"n2"`
	TotalOperators    int     `json:"N1"`
	TotalOperands     int     `json:"N2"`
	Vocabulary        int     `json:"vocabulary"`
	Length            int     `json:"length"`
	Volume            float64 `json:"volume"`
	Difficulty        float64 `json:"difficulty"`
	Effort            float64 `json:"effort"`
	Time              float64 `json:"time"`
	Bugs              float64 `json:"bugs"`
}

// FunctionMetrics aggregates all metrics for one analyzed function.
type FunctionMetrics struct {
	SymbolName           string          `json:"symbolName"`
	QualifiedName        string          `json:"qualifiedName"`
	Line                 int             `json:"line"`
	Cyclomatic           int             `json:"cyclomatic"`
	Cognitive            int             `json:"cognitive"`
	NestingDepth         int             `json:"nestingDepth"`
	LinesOfCode          int             `json:"linesOfCode"`
	CallSites            int             `json:"callSites"`
	Halstead             HalsteadMetrics `json:"halstead"`
	MaintainabilityIndex float64         `json:"maintainabilityIndex"`
}

// ExportNamespace is an `export namespace A::B` declaration.
type ExportNamespace struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// ExportAlias is an `export using Alias = Type;` declaration.
type ExportAlias struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Line int    `json:"line"`
}

// ModuleImport is an `import X;` declaration, including header units and partitions.
type ModuleImport struct {
	Name     string `json:"name"`
	Line     int    `json:"line"`
	Exported bool   `json:"exported,omitempty"`
}

// ModuleAnalysis summarizes C++20 module syntax in a file.
type ModuleAnalysis struct {
	HasGlobalFragment bool              `json:"hasGlobalFragment"`
	ModuleName        string            `json:"moduleName,omitempty"`
	IsInterface       bool              `json:"isInterface"`
	Imports           []ModuleImport    `json:"imports,omitempty"`
	ExportNamespaces  []ExportNamespace `json:"exportNamespaces,omitempty"`
	ExportAliases     []ExportAlias     `json:"exportAliases,omitempty"`
}

// HasModuleSyntax reports whether any module construct was seen.
func (m *ModuleAnalysis) HasModuleSyntax() bool {
	return m != nil && (m.HasGlobalFragment || m.ModuleName != "" || len(m.Imports) > 0)
}

// RawResult is the unprocessed output of a symbol producer.
type RawResult struct {
	Symbols           []Symbol           `json:"symbols"`
	Relationships     []Relationship     `json:"relationships"`
	Patterns          []Pattern          `json:"patterns"`
	ControlFlowBlocks []ControlFlowBlock `json:"controlFlowBlocks,omitempty"`
	FlowGraphs        []FlowGraph        `json:"flowGraphs,omitempty"`
	Warnings          []string           `json:"warnings,omitempty"`
}

// ProcessingInfo describes how a file's result was produced.
type ProcessingInfo struct {
	DuplicatesRemoved  int      `json:"duplicatesRemoved"`
	ValidationWarnings []string `json:"validationWarnings"`
	ValidationErrors   []string `json:"validationErrors"`
	AnalysisWarnings   []string `json:"analysisWarnings,omitempty"`
	QualityScore       float64  `json:"qualityScore"`
	ProcessingTimeMs   int64    `json:"processingTimeMs"`
}

// ProcessedResult is the final per-file output handed to storage.
type ProcessedResult struct {
	FilePath      string            `json:"filePath"`
	Language      string            `json:"language"`
	Strategy      string            `json:"strategy"`
	Symbols       []Symbol          `json:"symbols"`
	Relationships []Relationship    `json:"relationships"`
	Patterns      []Pattern         `json:"patterns"`
	Metrics       []FunctionMetrics `json:"metrics,omitempty"`
	Module        *ModuleAnalysis   `json:"module,omitempty"`
	Processing    ProcessingInfo    `json:"processing"`
}
