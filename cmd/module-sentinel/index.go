package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/DeusData/module-sentinel/internal/pipeline"
	"github.com/DeusData/module-sentinel/internal/store"
)

func newIndexCmd(opts *globalOpts) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index a repository",
		Long:  "Discovers source files, extracts each changed file and stores the results. Unchanged files are skipped by content hash.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if info, err := os.Stat(abs); err != nil {
				return err
			} else if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", abs)
			}

			r, err := opts.router()
			if err != nil {
				return err
			}
			defer r.CloseAll()
			s, err := r.ForProject(pipeline.ProjectNameFromPath(abs))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runIndex(ctx, cmd, s, abs, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Re-extract files even when unchanged")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, s *store.Store, abs string, force bool) error {
	p, err := pipeline.New(ctx, s, abs, nil)
	if err != nil {
		return err
	}
	p.Force = force
	sum, err := p.Run()
	if err != nil {
		return fmt.Errorf("index %s: %w", abs, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files, %d indexed, %d unchanged, %d failed, %d removed in %s\n",
		p.ProjectName, sum.Total, sum.Indexed, sum.Skipped, sum.Failed, sum.Removed, sum.Elapsed.Round(time.Millisecond))
	return nil
}
