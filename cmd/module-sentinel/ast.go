package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/lang"
	"github.com/DeusData/module-sentinel/internal/parser"
)

func newASTCmd() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:    "ast <file>",
		Short:  "Print the tree-sitter syntax tree of a file",
		Long:   "Debugging aid for writing node handlers: prints each node kind, its parent kind and a snippet of its text.",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, ok := lang.LanguageForExtension(filepath.Ext(args[0]))
			if !ok {
				return fmt.Errorf("unsupported file type: %s", args[0])
			}
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			tree, err := parser.Parse(l, source)
			if err != nil {
				return err
			}
			defer tree.Close()
			printAST(cmd.OutOrStdout(), tree.RootNode(), source, 0, depth)
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "Stop below this depth (0 = unlimited)")
	return cmd
}

func printAST(w io.Writer, node *tree_sitter.Node, source []byte, indent, maxDepth int) {
	if node == nil || (maxDepth > 0 && indent >= maxDepth) {
		return
	}
	parentKind := "nil"
	if p := node.Parent(); p != nil {
		parentKind = p.Kind()
	}
	text := string(source[node.StartByte():node.EndByte()])
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	fmt.Fprintf(w, "%s%s (parent=%s) %q\n", strings.Repeat("  ", indent), node.Kind(), parentKind, text)
	for i := uint(0); i < node.ChildCount(); i++ {
		printAST(w, node.Child(i), source, indent+1, maxDepth)
	}
}
