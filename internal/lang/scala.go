package lang

func init() {
	Register(&LanguageSpec{
		Language:          Scala,
		FileExtensions:    []string{".scala", ".sc"},
		Separator:         ".",
		FunctionNodeTypes: []string{"function_definition"},
		ClassNodeTypes: []string{
			"class_definition",
			"object_definition",
			"trait_definition",
		},
		CallNodeTypes:     []string{"call_expression"},
		ImportNodeTypes:   []string{"import_declaration"},
		PackageIndicators: []string{"build.sbt"},

		ConditionalNodeTypes: []string{"if_expression"},
		LoopNodeTypes:        []string{"for_expression", "while_expression"},
		SwitchNodeTypes:      []string{"match_expression"},
		TryNodeTypes:         []string{"try_expression"},
		ReturnNodeTypes:      []string{"return_expression"},
		CommentPrefixes:      []string{"//", "/*", "*"},
	})
}
