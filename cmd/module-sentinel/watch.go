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
	"github.com/DeusData/module-sentinel/internal/watcher"
)

func newWatchCmd(opts *globalOpts) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Index a repository, then re-index whenever its files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			r, err := opts.router()
			if err != nil {
				return err
			}
			defer r.CloseAll()
			project := pipeline.ProjectNameFromPath(abs)
			s, err := r.ForProject(project)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if err := runIndex(ctx, cmd, s, abs, false); err != nil {
				return err
			}

			w := watcher.New(watcher.Roots(watcher.Target{Project: project, Root: abs}),
				func(ctx context.Context, _ watcher.Target, c watcher.Change) error {
					fmt.Fprintf(cmd.OutOrStdout(), "changed: %d added, %d modified, %d removed\n",
						len(c.Added), len(c.Modified), len(c.Removed))
					return runIndex(ctx, cmd, s, abs, false)
				}, watcher.Options{BaseInterval: interval})
			w.Run(ctx)
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Base polling interval")
	return cmd
}
