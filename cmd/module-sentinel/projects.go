package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newProjectsCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List indexed projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.router()
			if err != nil {
				return err
			}
			defer r.CloseAll()
			projects, err := r.ListProjects()
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no indexed projects")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tROOT\tINDEXED\tFILES\tFAILED")
			for _, p := range projects {
				files, failed := 0, 0
				if p.LastRun != nil {
					files, failed = p.LastRun.FilesTotal, p.LastRun.FilesFailed
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", p.Name, p.RootPath, p.IndexedAt, files, failed)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an indexed project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.router()
			if err != nil {
				return err
			}
			defer r.CloseAll()
			if !r.HasProject(args[0]) {
				return fmt.Errorf("project not found: %s", args[0])
			}
			if err := r.DeleteProject(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})
	return cmd
}
