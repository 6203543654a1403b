package lang

func init() {
	Register(&LanguageSpec{
		Language:          C,
		FileExtensions:    []string{".c"},
		Separator:         "::",
		FunctionNodeTypes: []string{"function_definition"},
		ClassNodeTypes:    []string{"struct_specifier", "enum_specifier", "union_specifier"},
		CallNodeTypes:     []string{"call_expression"},
		ImportNodeTypes:   []string{"preproc_include"},
		PackageIndicators: []string{"CMakeLists.txt", "Makefile", "meson.build"},

		ConditionalNodeTypes: []string{"if_statement"},
		LoopNodeTypes:        []string{"for_statement", "while_statement", "do_statement"},
		SwitchNodeTypes:      []string{"switch_statement"},
		ReturnNodeTypes:      []string{"return_statement"},
		CommentPrefixes:      []string{"//", "/*", "*"},
	})
}
