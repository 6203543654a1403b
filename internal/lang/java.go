package lang

func init() {
	Register(&LanguageSpec{
		Language:          Java,
		FileExtensions:    []string{".java"},
		Separator:         ".",
		FunctionNodeTypes: []string{"method_declaration", "constructor_declaration"},
		ClassNodeTypes: []string{
			"class_declaration",
			"interface_declaration",
			"enum_declaration",
			"record_declaration",
		},
		CallNodeTypes:     []string{"method_invocation"},
		ImportNodeTypes:   []string{"import_declaration"},
		PackageIndicators: []string{"pom.xml", "build.gradle"},

		ConditionalNodeTypes: []string{"if_statement"},
		LoopNodeTypes:        []string{"for_statement", "enhanced_for_statement", "while_statement", "do_statement"},
		SwitchNodeTypes:      []string{"switch_expression"},
		TryNodeTypes:         []string{"try_statement", "try_with_resources_statement"},
		ReturnNodeTypes:      []string{"return_statement"},
		CommentPrefixes:      []string{"//", "/*", "*"},
	})
}
