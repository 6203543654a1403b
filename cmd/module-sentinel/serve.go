package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/DeusData/module-sentinel/internal/tools"
	"github.com/DeusData/module-sentinel/internal/watcher"
)

func newServeCmd(opts *globalOpts) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve indexed projects over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.router()
			if err != nil {
				return err
			}
			defer r.CloseAll()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			srv := tools.NewServer(r, version)
			if watch {
				w := watcher.New(watcher.IndexedProjects(r), func(ctx context.Context, t watcher.Target, _ watcher.Change) error {
					_, err := srv.Index(ctx, t.Root, false)
					return err
				}, watcher.Options{})
				go w.Run(ctx)
				slog.Info("serve.watch", "dir", r.Dir())
			}

			if err := srv.MCPServer().Run(ctx, &mcp.StdioTransport{}); err != nil {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-index projects when their files change")
	return cmd
}
