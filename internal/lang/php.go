package lang

func init() {
	Register(&LanguageSpec{
		Language:          PHP,
		FileExtensions:    []string{".php"},
		Separator:         "::",
		FunctionNodeTypes: []string{"function_definition", "method_declaration"},
		ClassNodeTypes: []string{
			"class_declaration",
			"interface_declaration",
			"trait_declaration",
			"enum_declaration",
		},
		NamespaceNodeTypes: []string{"namespace_definition"},
		CallNodeTypes: []string{
			"function_call_expression",
			"member_call_expression",
			"scoped_call_expression",
		},
		ImportNodeTypes:   []string{"namespace_use_declaration"},
		PackageIndicators: []string{"composer.json"},

		ConditionalNodeTypes: []string{"if_statement"},
		LoopNodeTypes:        []string{"for_statement", "foreach_statement", "while_statement", "do_statement"},
		SwitchNodeTypes:      []string{"switch_statement", "match_expression"},
		TryNodeTypes:         []string{"try_statement"},
		ReturnNodeTypes:      []string{"return_statement"},
		CommentPrefixes:      []string{"//", "#", "/*", "*"},
	})
}
