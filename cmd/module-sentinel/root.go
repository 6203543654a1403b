package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DeusData/module-sentinel/internal/pipeline"
	"github.com/DeusData/module-sentinel/internal/store"
)

// globalOpts holds the persistent flags shared by every subcommand.
type globalOpts struct {
	logLevel string
	cacheDir string
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}
	root := &cobra.Command{
		Use:          "module-sentinel",
		Short:        "Semantic code graph extraction for multi-language repositories",
		Long:         "Indexes C/C++ (including C++20 modules) and other languages into per-file symbols, relationships, patterns and metrics, stored in SQLite.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd, opts.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.cacheDir, "cache-dir", "", "Directory holding project databases (default ~/.cache/module-sentinel)")

	root.AddCommand(
		newIndexCmd(opts),
		newReportCmd(opts),
		newGraphCmd(opts),
		newProjectsCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newASTCmd(),
	)
	return root
}

func setupLogging(cmd *cobra.Command, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})))
	return nil
}

func (o *globalOpts) router() (*store.StoreRouter, error) {
	return store.NewRouter(o.cacheDir)
}

// openProject resolves repoPath to its project and opens the project's
// store. It fails when the repository was never indexed.
func (o *globalOpts) openProject(repoPath string) (*store.StoreRouter, *store.Store, string, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, nil, "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, nil, "", err
	}
	r, err := o.router()
	if err != nil {
		return nil, nil, "", err
	}
	name := pipeline.ProjectNameFromPath(abs)
	if !r.HasProject(name) {
		return nil, nil, "", fmt.Errorf("%s is not indexed (run: module-sentinel index %s)", abs, repoPath)
	}
	s, err := r.ForProject(name)
	if err != nil {
		r.CloseAll()
		return nil, nil, "", err
	}
	return r, s, name, nil
}
