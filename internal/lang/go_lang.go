package lang

func init() {
	Register(&LanguageSpec{
		Language:          Go,
		FileExtensions:    []string{".go"},
		Separator:         ".",
		FunctionNodeTypes: []string{"function_declaration", "method_declaration"},
		ClassNodeTypes:    []string{"type_spec"},
		CallNodeTypes:     []string{"call_expression"},
		ImportNodeTypes:   []string{"import_declaration"},
		PackageIndicators: []string{"go.mod"},

		ConditionalNodeTypes: []string{"if_statement"},
		LoopNodeTypes:        []string{"for_statement"},
		SwitchNodeTypes:      []string{"expression_switch_statement", "type_switch_statement", "select_statement"},
		ReturnNodeTypes:      []string{"return_statement"},
		CommentPrefixes:      []string{"//", "/*", "*"},
	})
}
