// Package tools exposes indexed projects over the Model Context Protocol.
package tools

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/singleflight"

	"github.com/DeusData/module-sentinel/internal/pipeline"
	"github.com/DeusData/module-sentinel/internal/store"
)

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp    *mcp.Server
	router *store.StoreRouter

	// indexMu serializes index runs; indexing collapses concurrent
	// requests for the same repository into one run.
	indexMu  sync.Mutex
	indexing singleflight.Group
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(r *store.StoreRouter, version string) *Server {
	srv := &Server{
		router: r,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "module-sentinel",
				Version: version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

const projectProps = `
				"project": {
					"type": "string",
					"description": "Project name as returned by list_projects"
				},
				"repo_path": {
					"type": "string",
					"description": "Repository path; used to derive the project name when project is omitted"
				}`

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "index_repository",
		Description: "Index a repository: discover source files, extract symbols, relationships, patterns and function metrics, and store them per file. Unchanged files are skipped by content hash unless force is set.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"repo_path": {
					"type": "string",
					"description": "Absolute path to the repository to index"
				},
				"force": {
					"type": "boolean",
					"description": "Re-extract files even when their content is unchanged"
				}
			},
			"required": ["repo_path"]
		}`),
	}, s.handleIndexRepository)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_file_report",
		Description: "Report processing results. With file_path: strategy, quality score, symbol counts by kind, and validation errors and warnings for that file. Without: the project summary with failed and lowest-quality files.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {` + projectProps + `,
				"file_path": {
					"type": "string",
					"description": "Repository-relative file path (optional)"
				},
				"limit": {
					"type": "integer",
					"description": "Max files or issues listed (default 10)"
				}
			}
		}`),
	}, s.handleGetFileReport)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_graph_view",
		Description: "Return the project's graph view: one node per qualified name with module, parent group, size and metrics, plus merged typed edges. Endpoints outside the project appear as external, service, process, module or file placeholder nodes. Set summary_only for node and edge counts by type.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {` + projectProps + `,
				"summary_only": {
					"type": "boolean",
					"description": "Return counts by type instead of the full view"
				}
			}
		}`),
	}, s.handleGetGraphView)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Search extracted symbols by name glob, kind and file glob. Returns qualified name, kind, location, signature, origin and confidence.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {` + projectProps + `,
				"name_pattern": {
					"type": "string",
					"description": "Glob matched against name or qualified name (e.g. 'Engine::*', '*Handler')"
				},
				"kind": {
					"type": "string",
					"description": "Symbol kind: function, method, class, struct, namespace, enum, typedef, variable, ..."
				},
				"file_pattern": {
					"type": "string",
					"description": "Glob for the file path (e.g. 'src/render/*')"
				},
				"limit": {
					"type": "integer",
					"description": "Max results (default 50, max 500)"
				}
			}
		}`),
	}, s.handleSearchSymbols)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_code_snippet",
		Description: "Return the source lines of a symbol by qualified name, read from disk using the stored file path and line range.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {` + projectProps + `,
				"qualified_name": {
					"type": "string",
					"description": "Qualified name (e.g. 'engine::Renderer::draw')"
				}
			},
			"required": ["qualified_name"]
		}`),
	}, s.handleGetCodeSnippet)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_projects",
		Description: "List indexed projects with root path, indexed_at timestamp and the counters of the latest run.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListProjects)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "delete_project",
		Description: "Delete an indexed project and all its stored results. This action is irreversible.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {
					"type": "string",
					"description": "Name of the project to delete"
				}
			},
			"required": ["project"]
		}`),
	}, s.handleDeleteProject)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return textResult(string(b))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	f, ok := args[key].(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

// getBoolArg extracts a boolean argument from parsed args.
func getBoolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// projectStore resolves the project named by the "project" argument, or
// derived from "repo_path", to its open store.
func (s *Server) projectStore(args map[string]any) (string, *store.Store, error) {
	name := getStringArg(args, "project")
	if name == "" {
		repoPath := getStringArg(args, "repo_path")
		if repoPath == "" {
			return "", nil, fmt.Errorf("project or repo_path is required")
		}
		abs, err := filepath.Abs(repoPath)
		if err != nil {
			return "", nil, fmt.Errorf("invalid path: %w", err)
		}
		name = pipeline.ProjectNameFromPath(abs)
	}
	if !s.router.HasProject(name) {
		return "", nil, fmt.Errorf("project not found: %s (run index_repository first)", name)
	}
	st, err := s.router.ForProject(name)
	if err != nil {
		return "", nil, err
	}
	return name, st, nil
}
