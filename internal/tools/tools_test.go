package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/module-sentinel/internal/pipeline"
	"github.com/DeusData/module-sentinel/internal/store"
)

type handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func setupServer(t *testing.T) (*Server, string) {
	t.Helper()
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, ".sentinel.yaml"), "compiler:\n  disabled: true\n")
	writeFile(t, filepath.Join(repo, "main.go"), `package main

import "os"

func main() {
	addr := os.Getenv("CART_SERVICE_ADDR")
	helper(addr)
}

func helper(addr string) string {
	return addr
}
`)
	writeFile(t, filepath.Join(repo, "broken.go"), "package x\x00\x01")

	r, err := store.NewRouter(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(r.CloseAll)
	return NewServer(r, "test"), repo
}

func call(t *testing.T, h handler, args string) (string, bool) {
	t.Helper()
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(args)}}
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return tc.Text, res.IsError
}

func decode(t *testing.T, text string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &m), text)
	return m
}

func indexRepo(t *testing.T, srv *Server, repo string) map[string]any {
	t.Helper()
	text, isErr := call(t, srv.handleIndexRepository, `{"repo_path": `+quote(repo)+`}`)
	require.False(t, isErr, "index_repository: %s", text)
	return decode(t, text)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestIndexRepository(t *testing.T) {
	srv, repo := setupServer(t)

	out := indexRepo(t, srv, repo)
	assert.Equal(t, pipeline.ProjectNameFromPath(repo), out["project"])
	assert.Equal(t, float64(1), out["indexed"])
	assert.Equal(t, float64(1), out["failed"])
	assert.GreaterOrEqual(t, out["symbols"], float64(2))

	again := indexRepo(t, srv, repo)
	assert.Equal(t, float64(1), again["skipped"])
	assert.Equal(t, float64(0), again["indexed"])
}

func TestIndexRepositoryRequiresPath(t *testing.T) {
	srv, _ := setupServer(t)
	text, isErr := call(t, srv.handleIndexRepository, `{}`)
	assert.True(t, isErr)
	assert.Contains(t, text, "repo_path")
}

func TestProjectToolsBeforeIndexing(t *testing.T) {
	srv, repo := setupServer(t)
	for name, h := range map[string]handler{
		"get_file_report": srv.handleGetFileReport,
		"get_graph_view":  srv.handleGetGraphView,
		"search_symbols":  srv.handleSearchSymbols,
	} {
		text, isErr := call(t, h, `{"repo_path": `+quote(repo)+`}`)
		assert.True(t, isErr, name)
		assert.Contains(t, text, "project not found", name)
	}
}

func TestGetFileReport(t *testing.T) {
	srv, repo := setupServer(t)
	indexRepo(t, srv, repo)

	text, isErr := call(t, srv.handleGetFileReport, `{"repo_path": `+quote(repo)+`}`)
	require.False(t, isErr, text)
	sum := decode(t, text)
	assert.Len(t, sum["failed"], 1)

	text, isErr = call(t, srv.handleGetFileReport, `{"repo_path": `+quote(repo)+`, "file_path": "main.go"}`)
	require.False(t, isErr, text)
	fr := decode(t, text)
	kinds, _ := fr["kinds"].(map[string]any)
	assert.Equal(t, float64(2), kinds["function"], "kinds = %v", fr["kinds"])

	text, isErr = call(t, srv.handleGetFileReport, `{"repo_path": `+quote(repo)+`, "file_path": "missing.go"}`)
	assert.True(t, isErr)
	assert.Contains(t, text, "not indexed")
}

func TestGetGraphView(t *testing.T) {
	srv, repo := setupServer(t)
	indexRepo(t, srv, repo)

	text, isErr := call(t, srv.handleGetGraphView, `{"repo_path": `+quote(repo)+`}`)
	require.False(t, isErr, text)
	view := decode(t, text)
	nodes, _ := view["nodes"].([]any)
	found := map[string]string{}
	for _, n := range nodes {
		m := n.(map[string]any)
		found[m["id"].(string)] = m["type"].(string)
	}
	assert.Equal(t, "service", found["cartservice"], "service placeholder")
	assert.Equal(t, "function", found["helper"])

	text, _ = call(t, srv.handleGetGraphView, `{"repo_path": `+quote(repo)+`, "summary_only": true}`)
	stats := decode(t, text)
	edgeTypes, _ := stats["edge_types"].(map[string]any)
	assert.Equal(t, float64(1), edgeTypes["invokes"], "edge types = %v", stats["edge_types"])
}

func TestSearchSymbolsAndSnippet(t *testing.T) {
	srv, repo := setupServer(t)
	indexRepo(t, srv, repo)

	text, isErr := call(t, srv.handleSearchSymbols, `{"repo_path": `+quote(repo)+`, "name_pattern": "help*"}`)
	require.False(t, isErr, text)
	require.Equal(t, float64(1), decode(t, text)["total"], text)

	text, isErr = call(t, srv.handleGetCodeSnippet, `{"repo_path": `+quote(repo)+`, "qualified_name": "helper"}`)
	require.False(t, isErr, text)
	src, _ := decode(t, text)["source"].(string)
	assert.Contains(t, src, "func helper(addr string) string")
}

func TestListAndDeleteProjects(t *testing.T) {
	srv, repo := setupServer(t)
	indexRepo(t, srv, repo)
	project := pipeline.ProjectNameFromPath(repo)

	text, _ := call(t, srv.handleListProjects, `{}`)
	var projects []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &projects))
	require.Len(t, projects, 1)
	require.Equal(t, project, projects[0]["name"])
	run, _ := projects[0]["last_run"].(map[string]any)
	assert.Equal(t, float64(1), run["files_failed"])

	text, isErr := call(t, srv.handleDeleteProject, `{"project": `+quote(project)+`}`)
	require.False(t, isErr, text)
	assert.False(t, srv.router.HasProject(project), "project still present after delete")
	_, isErr = call(t, srv.handleDeleteProject, `{"project": `+quote(project)+`}`)
	assert.True(t, isErr, "second delete should fail")
}

func TestCapIssues(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "... and 1 more"}, capIssues([]string{"a", "b", "c"}, 2))
	assert.Equal(t, []string{"a"}, capIssues([]string{"a"}, 2))
}
