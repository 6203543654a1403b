package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/module-sentinel/internal/pipeline"
)

func (s *Server) handleIndexRepository(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	repoPath := getStringArg(args, "repo_path")
	if repoPath == "" {
		return errResult("repo_path is required"), nil
	}
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}
	out, err := s.Index(ctx, absPath, getBoolArg(args, "force"))
	if err != nil {
		return errResult(fmt.Sprintf("indexing failed: %v", err)), nil
	}
	return jsonResult(out), nil
}

// Index runs the pipeline for the repository at absPath. Concurrent calls
// for the same repository share one run.
func (s *Server) Index(ctx context.Context, absPath string, force bool) (map[string]any, error) {
	key := absPath
	if force {
		key += "\x00force"
	}
	v, err, _ := s.indexing.Do(key, func() (any, error) {
		return s.index(ctx, absPath, force)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// index runs the pipeline for absPath and reports its summary and counts.
func (s *Server) index(ctx context.Context, absPath string, force bool) (map[string]any, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	project := pipeline.ProjectNameFromPath(absPath)
	st, err := s.router.ForProject(project)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(ctx, st, absPath, nil)
	if err != nil {
		return nil, err
	}
	p.Force = force
	sum, err := p.Run()
	if err != nil {
		return nil, err
	}
	counts, err := st.CountAll(project)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"project":       project,
		"run_id":        sum.RunID,
		"files":         sum.Total,
		"indexed":       sum.Indexed,
		"skipped":       sum.Skipped,
		"failed":        sum.Failed,
		"removed":       sum.Removed,
		"symbols":       counts.Symbols,
		"relationships": counts.Relationships,
		"patterns":      counts.Patterns,
		"elapsed_ms":    sum.Elapsed.Milliseconds(),
	}, nil
}
