package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DeusData/module-sentinel/internal/report"
)

func newReportCmd(opts *globalOpts) *cobra.Command {
	var (
		format string
		file   string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "report <path>",
		Short: "Print the processing report of an indexed repository",
		Long:  "Without --file, prints the project summary: counts, average quality, failed files and the lowest-quality files. With --file, prints the report of one file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			r, s, project, err := opts.openProject(args[0])
			if err != nil {
				return err
			}
			defer r.CloseAll()

			if file == "" {
				sum, err := report.LoadSummary(s, project, limit)
				if err != nil {
					return err
				}
				return report.WriteSummary(cmd.OutOrStdout(), sum, f)
			}
			fr, err := report.LoadFileReport(s, project, file)
			if err != nil {
				return err
			}
			if fr == nil {
				return fmt.Errorf("%s is not indexed in %s", file, project)
			}
			return report.WriteFileReport(cmd.OutOrStdout(), fr, f, limit)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&file, "file", "", "Repository-relative file to report on")
	cmd.Flags().IntVar(&limit, "limit", report.DefaultIssueLimit, "Max files or issues listed")
	return cmd
}
