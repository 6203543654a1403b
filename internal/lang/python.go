package lang

func init() {
	Register(&LanguageSpec{
		Language:          Python,
		FileExtensions:    []string{".py"},
		Separator:         ".",
		FunctionNodeTypes: []string{"function_definition"},
		ClassNodeTypes:    []string{"class_definition"},
		CallNodeTypes:     []string{"call"},
		ImportNodeTypes:   []string{"import_statement", "import_from_statement"},
		PackageIndicators: []string{"__init__.py"},

		ConditionalNodeTypes: []string{"if_statement"},
		LoopNodeTypes:        []string{"for_statement", "while_statement"},
		SwitchNodeTypes:      []string{"match_statement"},
		TryNodeTypes:         []string{"try_statement"},
		ReturnNodeTypes:      []string{"return_statement"},
		CommentPrefixes:      []string{"#"},
	})
}
