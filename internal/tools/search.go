package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/store"
)

const maxSearchLimit = 500

type symbolHit struct {
	Name          string  `json:"name"`
	QualifiedName string  `json:"qualified_name"`
	Kind          string  `json:"kind"`
	FilePath      string  `json:"file_path"`
	Line          int     `json:"line"`
	EndLine       int     `json:"end_line,omitempty"`
	Signature     string  `json:"signature,omitempty"`
	Origin        string  `json:"origin,omitempty"`
	Confidence    float64 `json:"confidence"`
}

func toHit(sym model.Symbol) symbolHit {
	return symbolHit{
		Name:          sym.Name,
		QualifiedName: sym.QualifiedName,
		Kind:          string(sym.Kind),
		FilePath:      sym.FilePath,
		Line:          sym.Line,
		EndLine:       sym.EndLine,
		Signature:     sym.Signature,
		Origin:        sym.Origin,
		Confidence:    sym.Confidence,
	}
}

func (s *Server) handleSearchSymbols(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project, st, err := s.projectStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	limit := getIntArg(args, "limit", 50)
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	symbols, err := st.SearchSymbols(store.SearchParams{
		Project:     project,
		NamePattern: getStringArg(args, "name_pattern"),
		Kind:        getStringArg(args, "kind"),
		FilePattern: getStringArg(args, "file_pattern"),
		Limit:       limit,
	})
	if err != nil {
		return errResult(err.Error()), nil
	}

	hits := make([]symbolHit, 0, len(symbols))
	for _, sym := range symbols {
		hits = append(hits, toHit(sym))
	}
	return jsonResult(map[string]any{
		"project": project,
		"total":   len(hits),
		"results": hits,
	}), nil
}

func (s *Server) handleGetCodeSnippet(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	qn := getStringArg(args, "qualified_name")
	if qn == "" {
		return errResult("qualified_name is required"), nil
	}
	project, st, err := s.projectStore(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	candidates, err := st.SearchSymbols(store.SearchParams{Project: project, NamePattern: qn, Limit: maxSearchLimit})
	if err != nil {
		return errResult(err.Error()), nil
	}
	var sym *model.Symbol
	for i := range candidates {
		if candidates[i].QualifiedName == qn {
			sym = &candidates[i]
			break
		}
	}
	if sym == nil {
		return errResult(fmt.Sprintf("symbol not found: %s", qn)), nil
	}

	proj, err := st.GetProject(project)
	if err != nil {
		return errResult(fmt.Sprintf("project not found: %s", project)), nil
	}
	end := sym.EndLine
	if end < sym.Line {
		end = sym.Line
	}
	absPath := filepath.Join(proj.RootPath, sym.FilePath)
	source, err := readLines(absPath, sym.Line, end)
	if err != nil {
		return errResult(fmt.Sprintf("read file: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"symbol":    toHit(*sym),
		"file_path": absPath,
		"source":    source,
	}), nil
}

// readLines reads specific lines from a file, returning them with line numbers.
func readLines(path string, startLine, endLine int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum > endLine {
			break
		}
		if lineNum >= startLine {
			fmt.Fprintf(&sb, "%4d | %s\n", lineNum, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan: %w", err)
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no lines found in range %d-%d (file has %d lines)", startLine, endLine, lineNum)
	}

	return sb.String(), nil
}
