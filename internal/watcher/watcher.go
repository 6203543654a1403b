// Package watcher polls repositories for source changes and re-runs
// indexing when a snapshot differs from the previous one.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/DeusData/module-sentinel/internal/config"
	"github.com/DeusData/module-sentinel/internal/discover"
	"github.com/DeusData/module-sentinel/internal/lang"
	"github.com/DeusData/module-sentinel/internal/store"
)

// controlFiles change how files are extracted, so edits to them trigger a
// re-index even though they are not source files.
var controlFiles = []string{config.FileName, discover.IgnoreFileName, "compile_commands.json"}

// Target is one repository to watch.
type Target struct {
	Project string
	Root    string
}

// Source lists the targets to poll; it is consulted on every tick.
type Source func() ([]Target, error)

// Roots watches a fixed set of repositories.
func Roots(targets ...Target) Source {
	return func() ([]Target, error) { return targets, nil }
}

// IndexedProjects watches every project the router knows about.
func IndexedProjects(r *store.StoreRouter) Source {
	return func() ([]Target, error) {
		infos, err := r.ListProjects()
		if err != nil {
			return nil, err
		}
		targets := make([]Target, 0, len(infos))
		for _, info := range infos {
			if info.RootPath == "" {
				continue
			}
			targets = append(targets, Target{Project: info.Name, Root: info.RootPath})
		}
		return targets, nil
	}
}

// Change describes what differs between two snapshots.
type Change struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return len(c.Added)+len(c.Modified)+len(c.Removed) == 0
}

// IndexFunc re-indexes a target after change was observed.
type IndexFunc func(ctx context.Context, t Target, change Change) error

// Options tunes polling. Zero values select the defaults.
type Options struct {
	// BaseInterval is the tick rate and the minimum per-target interval.
	BaseInterval time.Duration
	// MaxInterval caps the adaptive per-target interval.
	MaxInterval time.Duration
	// FilesPerStep adds one BaseInterval per this many files.
	FilesPerStep int
}

func (o Options) withDefaults() Options {
	if o.BaseInterval <= 0 {
		o.BaseInterval = time.Second
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 60 * time.Second
	}
	if o.FilesPerStep <= 0 {
		o.FilesPerStep = 500
	}
	return o
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

type targetState struct {
	snapshot map[string]fileSnapshot
	interval time.Duration
	nextPoll time.Time
}

// Watcher polls targets for file changes and triggers re-indexing. Polls
// run on the Run goroutine only.
type Watcher struct {
	source  Source
	indexFn IndexFunc
	opts    Options
	states  map[string]*targetState // keyed by root
	ctx     context.Context
}

// New creates a Watcher. indexFn is called when file changes are detected.
func New(source Source, indexFn IndexFunc, opts Options) *Watcher {
	return &Watcher{
		source:  source,
		indexFn: indexFn,
		opts:    opts.withDefaults(),
		states:  make(map[string]*targetState),
		ctx:     context.Background(),
	}
}

// Run blocks until ctx is cancelled. Ticks at BaseInterval, polling each
// target only when its adaptive interval has elapsed.
func (w *Watcher) Run(ctx context.Context) {
	w.ctx = ctx
	ticker := time.NewTicker(w.opts.BaseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollAll()
		}
	}
}

// pollAll polls every target that is due.
func (w *Watcher) pollAll() {
	targets, err := w.source()
	if err != nil {
		slog.Warn("watcher.targets", "err", err)
		return
	}

	now := time.Now()
	for _, t := range targets {
		if w.ctx.Err() != nil {
			return
		}
		state, exists := w.states[t.Root]
		if !exists {
			state = &targetState{}
			w.states[t.Root] = state
		}
		if exists && now.Before(state.nextPoll) {
			continue
		}
		w.poll(t, state)
	}
}

// poll snapshots a target and compares it with the previous snapshot. The
// first poll only records a baseline.
func (w *Watcher) poll(t Target, state *targetState) {
	if _, err := os.Stat(t.Root); err != nil {
		slog.Warn("watcher.root_gone", "project", t.Project, "path", t.Root)
		state.nextPoll = time.Now().Add(w.opts.MaxInterval)
		return
	}

	snap, err := captureSnapshot(w.ctx, t.Root)
	if err != nil {
		slog.Warn("watcher.snapshot", "project", t.Project, "err", err)
		state.nextPoll = time.Now().Add(state.interval)
		return
	}
	interval := w.pollInterval(len(snap))

	if state.snapshot == nil {
		slog.Debug("watcher.baseline", "project", t.Project, "files", len(snap))
		state.snapshot = snap
		state.interval = interval
		state.nextPoll = time.Now().Add(interval)
		return
	}

	change := diff(state.snapshot, snap)
	if change.Empty() {
		state.interval = interval
		state.nextPoll = time.Now().Add(interval)
		return
	}

	slog.Info("watcher.changed", "project", t.Project,
		"added", len(change.Added), "modified", len(change.Modified), "removed", len(change.Removed))
	if err := w.indexFn(w.ctx, t, change); err != nil {
		slog.Warn("watcher.index", "project", t.Project, "err", err)
		// Keep the old snapshot so the next cycle retries.
		state.nextPoll = time.Now().Add(interval)
		return
	}

	state.snapshot = snap
	state.interval = interval
	state.nextPoll = time.Now().Add(interval)
}

// captureSnapshot records mtime and size of every file indexing would
// consider, plus the control files.
func captureSnapshot(ctx context.Context, root string) (map[string]fileSnapshot, error) {
	cfg := config.Load(root)
	files, err := discover.Discover(ctx, root, &discover.Options{
		Enabled: func(l lang.Language) bool { return cfg.LanguageEnabled(string(l)) },
	})
	if err != nil {
		return nil, err
	}

	snap := make(map[string]fileSnapshot, len(files)+len(controlFiles))
	add := func(rel, path string) {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return
		}
		snap[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	for _, f := range files {
		add(f.RelPath, f.Path)
	}
	for _, name := range controlFiles {
		add(name, filepath.Join(root, name))
	}
	return snap, nil
}

// diff compares two snapshots by mtime and size. Lists are sorted.
func diff(prev, cur map[string]fileSnapshot) Change {
	var c Change
	for path, p := range prev {
		n, ok := cur[path]
		switch {
		case !ok:
			c.Removed = append(c.Removed, path)
		case !p.modTime.Equal(n.modTime) || p.size != n.size:
			c.Modified = append(c.Modified, path)
		}
	}
	for path := range cur {
		if _, ok := prev[path]; !ok {
			c.Added = append(c.Added, path)
		}
	}
	sort.Strings(c.Added)
	sort.Strings(c.Modified)
	sort.Strings(c.Removed)
	return c
}

// pollInterval grows with repository size: one BaseInterval plus one per
// FilesPerStep files, capped at MaxInterval.
func (w *Watcher) pollInterval(fileCount int) time.Duration {
	d := w.opts.BaseInterval * time.Duration(1+fileCount/w.opts.FilesPerStep)
	if d > w.opts.MaxInterval {
		d = w.opts.MaxInterval
	}
	return d
}
