package lang

func init() {
	Register(&LanguageSpec{
		Language:          Rust,
		FileExtensions:    []string{".rs"},
		Separator:         "::",
		FunctionNodeTypes: []string{"function_item"},
		ClassNodeTypes: []string{
			"struct_item",
			"enum_item",
			"union_item",
			"trait_item",
		},
		NamespaceNodeTypes: []string{"mod_item"},
		CallNodeTypes:      []string{"call_expression", "macro_invocation"},
		ImportNodeTypes:    []string{"use_declaration"},
		PackageIndicators:  []string{"Cargo.toml"},

		ConditionalNodeTypes: []string{"if_expression"},
		LoopNodeTypes:        []string{"for_expression", "while_expression", "loop_expression"},
		SwitchNodeTypes:      []string{"match_expression"},
		ReturnNodeTypes:      []string{"return_expression"},
		CommentPrefixes:      []string{"//", "/*", "*"},
	})
}
