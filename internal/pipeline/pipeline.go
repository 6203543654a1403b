package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/module-sentinel/internal/config"
	"github.com/DeusData/module-sentinel/internal/discover"
	"github.com/DeusData/module-sentinel/internal/lang"
	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/store"
)

// Pipeline indexes a repository: discover, extract every changed file in
// parallel, then write all results in one transaction.
type Pipeline struct {
	ctx         context.Context
	Store       *store.Store
	RepoPath    string
	ProjectName string
	Config      *config.Config
	// Force re-extracts files whose content hash is unchanged.
	Force bool

	extractor *Extractor
}

// Summary reports what one Run did.
type Summary struct {
	RunID   string
	Total   int
	Indexed int
	Skipped int
	Failed  int
	Removed int
	Elapsed time.Duration
}

// New creates a Pipeline. A nil cfg loads .sentinel.yaml from repoPath.
func New(ctx context.Context, s *store.Store, repoPath string, cfg *config.Config) (*Pipeline, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if cfg == nil {
		cfg = config.Load(absPath)
	}
	ex, err := NewExtractor(absPath, cfg)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		ctx:         ctx,
		Store:       s,
		RepoPath:    absPath,
		ProjectName: ProjectNameFromPath(absPath),
		Config:      cfg,
		extractor:   ex,
	}, nil
}

// ProjectNameFromPath derives a unique project name from an absolute path
// by replacing path separators with dashes and trimming the leading dash.
func ProjectNameFromPath(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	name := strings.ReplaceAll(cleaned, "/", "-")
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "root"
	}
	return name
}

// checkCancel returns ctx.Err() if the pipeline's context has been cancelled.
func (p *Pipeline) checkCancel() error {
	return p.ctx.Err()
}

// extraction is the outcome for one file, produced without touching the DB.
type extraction struct {
	File   discover.FileInfo
	Hash   string
	Result *model.ProcessedResult
	Err    error
}

// Run indexes the repository. Files whose hash matches the stored one are
// skipped unless Force is set; files that disappeared are removed.
func (p *Pipeline) Run() (*Summary, error) {
	start := time.Now()
	slog.Info("pipeline.start", "project", p.ProjectName, "path", p.RepoPath,
		"compiler", p.extractor.CompilerAvailable())

	if err := p.checkCancel(); err != nil {
		return nil, err
	}

	files, err := discover.Discover(p.ctx, p.RepoPath, &discover.Options{
		Enabled: func(l lang.Language) bool { return p.Config.LanguageEnabled(string(l)) },
	})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("pipeline.discovered", "files", len(files))

	if err := p.Store.UpsertProject(p.ProjectName, p.RepoPath); err != nil {
		return nil, fmt.Errorf("upsert project: %w", err)
	}
	run := &store.Run{ID: uuid.NewString(), Project: p.ProjectName}
	if err := p.Store.InsertRun(run); err != nil {
		return nil, err
	}

	t := time.Now()
	changed, unchanged := p.classifyFiles(files)
	slog.Info("incremental.classify", "changed", len(changed), "unchanged", len(unchanged), "total", len(files))
	slog.Info("pass.timing", "pass", "classify", "elapsed", time.Since(t))

	t = time.Now()
	results, err := p.extractAll(changed)
	if err != nil {
		return nil, err
	}
	slog.Info("pass.timing", "pass", "extract", "elapsed", time.Since(t))

	sum := &Summary{RunID: run.ID, Total: len(files), Skipped: len(unchanged)}
	t = time.Now()
	err = p.Store.WithTransaction(func(txStore *store.Store) error {
		for _, r := range results {
			if err := p.writeResult(txStore, run.ID, r, sum); err != nil {
				return err
			}
		}
		removed, err := p.removeDeletedFiles(txStore, files)
		if err != nil {
			return err
		}
		sum.Removed = removed

		run.FilesTotal = sum.Total
		run.FilesIndexed = sum.Indexed
		run.FilesSkipped = sum.Skipped
		run.FilesFailed = sum.Failed
		return txStore.FinishRun(run)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("pass.timing", "pass", "write", "elapsed", time.Since(t))

	sum.Elapsed = time.Since(start)
	slog.Info("pipeline.done",
		"run", run.ID,
		"indexed", sum.Indexed,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"removed", sum.Removed,
		"elapsed", sum.Elapsed,
	)
	return sum, nil
}

// classifyFiles splits files into changed and unchanged based on stored
// hashes. Every changed file carries its fresh hash.
func (p *Pipeline) classifyFiles(files []discover.FileInfo) (changed []extraction, unchanged []discover.FileInfo) {
	stored, err := p.Store.GetFileHashes(p.ProjectName)
	if err != nil {
		slog.Warn("incremental.hashes.err", "err", err)
		stored = nil
	}

	hashes := make([]string, len(files))
	g := new(errgroup.Group)
	g.SetLimit(p.Config.EffectiveWorkers())
	for i, f := range files {
		g.Go(func() error {
			h, hashErr := fileHash(f.Path)
			if hashErr == nil {
				hashes[i] = h
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, f := range files {
		h := hashes[i]
		if !p.Force && h != "" && stored[f.RelPath] == h {
			unchanged = append(unchanged, f)
			continue
		}
		changed = append(changed, extraction{File: f, Hash: h})
	}
	return changed, unchanged
}

// extractAll runs the extractor over every changed file in parallel. No
// shared state is written here; the slice is filled by index.
func (p *Pipeline) extractAll(changed []extraction) ([]extraction, error) {
	g, gctx := errgroup.WithContext(p.ctx)
	g.SetLimit(p.Config.EffectiveWorkers())
	for i := range changed {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f := changed[i].File
			res, err := p.extractor.Extract(gctx, f.Path, f.RelPath)
			if err != nil {
				slog.Warn("pipeline.file.err", "path", f.RelPath, "lang", f.Language, "err", err)
			}
			changed[i].Result = res
			changed[i].Err = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A cancellation that raced the last workers leaves files marked failed
	// with context errors; report it as a cancelled run instead.
	if err := p.checkCancel(); err != nil {
		return nil, err
	}
	return changed, nil
}

func (p *Pipeline) writeResult(s *store.Store, runID string, r extraction, sum *Summary) error {
	if r.Err != nil {
		sum.Failed++
		if err := s.SaveFailure(p.ProjectName, runID, r.File.RelPath, string(r.File.Language), r.Err.Error()); err != nil {
			return err
		}
		// No hash: the next run retries the file.
		return s.DeleteFileHash(p.ProjectName, r.File.RelPath)
	}
	sum.Indexed++
	if err := s.SaveResult(p.ProjectName, runID, r.Result); err != nil {
		return fmt.Errorf("save %s: %w", r.File.RelPath, err)
	}
	if r.Hash == "" {
		return nil
	}
	return s.UpsertFileHash(p.ProjectName, r.File.RelPath, r.Hash)
}

// removeDeletedFiles drops stored results for files that no longer exist
// on disk or are no longer discovered.
func (p *Pipeline) removeDeletedFiles(s *store.Store, current []discover.FileInfo) (int, error) {
	currentSet := make(map[string]bool, len(current))
	for _, f := range current {
		currentSet[f.RelPath] = true
	}

	indexed := make(map[string]bool)
	records, err := s.Files(p.ProjectName)
	if err != nil {
		return 0, err
	}
	for _, r := range records {
		indexed[r.FilePath] = true
	}
	hashes, err := s.GetFileHashes(p.ProjectName)
	if err != nil {
		return 0, err
	}
	for path := range hashes {
		indexed[path] = true
	}

	removed := 0
	for filePath := range indexed {
		if currentSet[filePath] {
			continue
		}
		if err := s.DeleteFile(p.ProjectName, filePath); err != nil {
			return removed, err
		}
		if err := s.DeleteFileHash(p.ProjectName, filePath); err != nil {
			return removed, err
		}
		slog.Info("incremental.removed", "file", filePath)
		removed++
	}
	return removed, nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
