package lang

func init() {
	Register(&LanguageSpec{
		Language:       TypeScript,
		FileExtensions: []string{".ts", ".mts", ".cts"},
		Separator:      ".",
		FunctionNodeTypes: []string{
			"function_declaration",
			"generator_function_declaration",
			"function_expression",
			"arrow_function",
			"method_definition",
		},
		ClassNodeTypes:     []string{"class_declaration", "class", "abstract_class_declaration", "interface_declaration", "enum_declaration"},
		NamespaceNodeTypes: []string{"internal_module"},
		CallNodeTypes:      []string{"call_expression"},
		ImportNodeTypes:    []string{"import_statement"},
		PackageIndicators:  []string{"package.json"},

		ConditionalNodeTypes: []string{"if_statement"},
		LoopNodeTypes:        []string{"for_statement", "for_in_statement", "while_statement", "do_statement"},
		SwitchNodeTypes:      []string{"switch_statement"},
		TryNodeTypes:         []string{"try_statement"},
		ReturnNodeTypes:      []string{"return_statement"},
		CommentPrefixes:      []string{"//", "/*", "*"},
	})
}
