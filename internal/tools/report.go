package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/module-sentinel/internal/graph"
	"github.com/DeusData/module-sentinel/internal/report"
)

func (s *Server) handleGetFileReport(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project, st, err := s.projectStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	limit := getIntArg(args, "limit", report.DefaultIssueLimit)

	filePath := getStringArg(args, "file_path")
	if filePath == "" {
		sum, err := report.LoadSummary(st, project, limit)
		if err != nil {
			return errResult(fmt.Sprintf("summary: %v", err)), nil
		}
		return jsonResult(sum), nil
	}

	r, err := report.LoadFileReport(st, project, filePath)
	if err != nil {
		return errResult(fmt.Sprintf("file report: %v", err)), nil
	}
	if r == nil {
		return errResult(fmt.Sprintf("file not indexed: %s", filePath)), nil
	}
	r.Processing.AnalysisWarnings = capIssues(r.Processing.AnalysisWarnings, limit)
	r.Processing.ValidationErrors = capIssues(r.Processing.ValidationErrors, limit)
	r.Processing.ValidationWarnings = capIssues(r.Processing.ValidationWarnings, limit)
	return jsonResult(r), nil
}

func capIssues(issues []string, limit int) []string {
	if limit <= 0 || len(issues) <= limit {
		return issues
	}
	return append(issues[:limit:limit], fmt.Sprintf("... and %d more", len(issues)-limit))
}

func (s *Server) handleGetGraphView(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project, st, err := s.projectStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	view, err := graph.Load(st, project)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if getBoolArg(args, "summary_only") {
		stats := view.Summarize()
		return jsonResult(map[string]any{
			"project":    project,
			"nodes":      len(view.Nodes),
			"edges":      len(view.Edges),
			"node_types": stats.NodesByType,
			"edge_types": stats.EdgesByType,
		}), nil
	}
	return jsonResult(view), nil
}
