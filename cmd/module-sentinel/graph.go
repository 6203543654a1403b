package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DeusData/module-sentinel/internal/graph"
)

func newGraphCmd(opts *globalOpts) *cobra.Command {
	var (
		out     string
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "graph <path>",
		Short: "Export the graph view of an indexed repository as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, s, project, err := opts.openProject(args[0])
			if err != nil {
				return err
			}
			defer r.CloseAll()

			view, err := graph.Load(s, project)
			if err != nil {
				return err
			}
			if summary {
				return writeGraphStats(cmd.OutOrStdout(), view)
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(view); err != nil {
				return fmt.Errorf("encode graph: %w", err)
			}
			if out != "" && out != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d nodes, %d edges to %s\n", len(view.Nodes), len(view.Edges), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write JSON to this file instead of stdout")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print node and edge counts by type")
	return cmd
}

func writeGraphStats(w io.Writer, v *graph.View) error {
	stats := v.Summarize()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NODES\t%d\n", len(v.Nodes))
	for _, t := range graph.Types(stats.NodesByType) {
		fmt.Fprintf(tw, "  %s\t%d\n", t, stats.NodesByType[t])
	}
	fmt.Fprintf(tw, "EDGES\t%d\n", len(v.Edges))
	for _, t := range graph.Types(stats.EdgesByType) {
		fmt.Fprintf(tw, "  %s\t%d\n", t, stats.EdgesByType[t])
	}
	return tw.Flush()
}
