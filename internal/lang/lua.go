package lang

func init() {
	Register(&LanguageSpec{
		Language:          Lua,
		FileExtensions:    []string{".lua"},
		Separator:         ".",
		FunctionNodeTypes: []string{"function_declaration"},
		CallNodeTypes:     []string{"function_call"},

		ConditionalNodeTypes: []string{"if_statement"},
		LoopNodeTypes:        []string{"for_statement", "while_statement", "repeat_statement"},
		ReturnNodeTypes:      []string{"return_statement"},
		CommentPrefixes:      []string{"--"},
	})
}
