package lang

func init() {
	Register(&LanguageSpec{
		Language:       CPP,
		FileExtensions: []string{".cpp", ".h", ".hpp", ".cc", ".cxx", ".hxx", ".hh", ".ixx", ".cppm", ".ccm", ".mpp"},
		Separator:      "::",
		FunctionNodeTypes: []string{
			"function_definition",
			"field_declaration",
			"declaration",
		},
		ClassNodeTypes: []string{
			"class_specifier",
			"struct_specifier",
			"union_specifier",
			"enum_specifier",
		},
		NamespaceNodeTypes: []string{"namespace_definition"},
		CallNodeTypes:      []string{"call_expression"},
		ImportNodeTypes:    []string{"preproc_include"},
		PackageIndicators:  []string{"CMakeLists.txt", "Makefile", "*.vcxproj", "conanfile.txt"},

		ConditionalNodeTypes: []string{"if_statement"},
		LoopNodeTypes:        []string{"for_statement", "for_range_loop", "while_statement", "do_statement"},
		SwitchNodeTypes:      []string{"switch_statement"},
		TryNodeTypes:         []string{"try_statement"},
		ReturnNodeTypes:      []string{"return_statement", "co_return_statement"},
		CommentPrefixes:      []string{"//", "/*", "*"},
	})
}
