package lang

func init() {
	Register(&LanguageSpec{
		Language:       CSharp,
		FileExtensions: []string{".cs"},
		Separator:      ".",
		FunctionNodeTypes: []string{
			"method_declaration",
			"constructor_declaration",
			"destructor_declaration",
			"local_function_statement",
		},
		ClassNodeTypes: []string{
			"class_declaration",
			"struct_declaration",
			"enum_declaration",
			"interface_declaration",
			"record_declaration",
		},
		NamespaceNodeTypes: []string{"namespace_declaration", "file_scoped_namespace_declaration"},
		CallNodeTypes:      []string{"invocation_expression"},
		ImportNodeTypes:    []string{"using_directive"},
		PackageIndicators:  []string{"*.csproj"},

		ConditionalNodeTypes: []string{"if_statement"},
		LoopNodeTypes:        []string{"for_statement", "foreach_statement", "while_statement", "do_statement"},
		SwitchNodeTypes:      []string{"switch_statement"},
		TryNodeTypes:         []string{"try_statement"},
		ReturnNodeTypes:      []string{"return_statement"},
		CommentPrefixes:      []string{"//", "/*", "*"},
	})
}
