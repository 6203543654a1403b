package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleListProjects(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.router.ListProjects()
	if err != nil {
		return errResult(fmt.Sprintf("list projects: %v", err)), nil
	}

	type runInfo struct {
		ID       string `json:"id"`
		Started  string `json:"started_at"`
		Finished string `json:"finished_at,omitempty"`
		Total    int    `json:"files_total"`
		Indexed  int    `json:"files_indexed"`
		Skipped  int    `json:"files_skipped"`
		Failed   int    `json:"files_failed"`
	}
	type projectInfo struct {
		Name      string   `json:"name"`
		RootPath  string   `json:"root_path"`
		IndexedAt string   `json:"indexed_at"`
		LastRun   *runInfo `json:"last_run,omitempty"`
	}

	result := make([]projectInfo, 0, len(projects))
	for _, p := range projects {
		info := projectInfo{
			Name:      p.Name,
			RootPath:  p.RootPath,
			IndexedAt: p.IndexedAt,
		}
		if r := p.LastRun; r != nil {
			info.LastRun = &runInfo{
				ID:       r.ID,
				Started:  r.StartedAt,
				Finished: r.FinishedAt,
				Total:    r.FilesTotal,
				Indexed:  r.FilesIndexed,
				Skipped:  r.FilesSkipped,
				Failed:   r.FilesFailed,
			}
		}
		result = append(result, info)
	}

	return jsonResult(result), nil
}

func (s *Server) handleDeleteProject(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	name := getStringArg(args, "project")
	if name == "" {
		return errResult("project is required"), nil
	}
	if !s.router.HasProject(name) {
		return errResult(fmt.Sprintf("project not found: %s", name)), nil
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if err := s.router.DeleteProject(name); err != nil {
		return errResult(fmt.Sprintf("delete failed: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"deleted": name,
		"status":  "ok",
	}), nil
}
