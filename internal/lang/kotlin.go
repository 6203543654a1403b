package lang

func init() {
	Register(&LanguageSpec{
		Language:          Kotlin,
		FileExtensions:    []string{".kt", ".kts"},
		Separator:         ".",
		FunctionNodeTypes: []string{"function_declaration", "secondary_constructor"},
		ClassNodeTypes: []string{
			"class_declaration",
			"object_declaration",
		},
		CallNodeTypes:     []string{"call_expression"},
		ImportNodeTypes:   []string{"import"},
		PackageIndicators: []string{"build.gradle.kts"},

		ConditionalNodeTypes: []string{"if_expression"},
		LoopNodeTypes:        []string{"for_statement", "while_statement", "do_while_statement"},
		SwitchNodeTypes:      []string{"when_expression"},
		TryNodeTypes:         []string{"try_expression"},
		CommentPrefixes:      []string{"//", "/*", "*"},
	})
}
