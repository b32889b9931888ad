package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/soffiafdz/palimpsest-sub000/internal/marker"
	"github.com/soffiafdz/palimpsest-sub000/internal/pageparser"
	"github.com/soffiafdz/palimpsest-sub000/internal/render"
	"github.com/soffiafdz/palimpsest-sub000/internal/storage"
	"github.com/soffiafdz/palimpsest-sub000/internal/syncer"
	"github.com/soffiafdz/palimpsest-sub000/internal/testutil"
	"github.com/soffiafdz/palimpsest-sub000/internal/wiki"
	"github.com/soffiafdz/palimpsest-sub000/internal/wikiservice"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	db := testutil.TestDB(t)
	testutil.Seed(t, db)
	_, files := testutil.TestWiki(t)
	r, err := render.New("")
	if err != nil {
		t.Fatal(err)
	}
	reg, err := wiki.DefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	gen := wiki.NewGenerator(db, files, r, reg, nil)
	if _, err := gen.Generate(context.Background(), wiki.All()); err != nil {
		t.Fatal(err)
	}
	sy := syncer.New(db, gen, pageparser.New(pageparser.NewKeyCache(db), nil), nil)
	return New(wikiservice.New(db, gen, sy), "test"), files
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper; the handlers are called
	// directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "read_page":
		result, err = srv.readPage(ctx, req)
	case "lint_page":
		result, err = srv.lintPage(ctx, req)
	case "sync_wiki":
		result, err = srv.syncWiki(ctx, req)
	case "generate_wiki":
		result, err = srv.generateWiki(ctx, req)
	case "pending_edits":
		result, err = srv.pendingEdits(ctx, req)
	case "get_page_contract":
		result, err = srv.getPageContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestReadPage(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_page", map[string]any{"path": testutil.ChapterPath})
	if r.IsError {
		t.Fatalf("read_page: %s", resultText(r))
	}
	var page wikiservice.PageDetail
	if err := json.Unmarshal([]byte(resultText(r)), &page); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(page.Content, "# The Station\n") || !page.Editable {
		t.Errorf("page = %+v", page)
	}

	r = callTool(t, srv, "read_page", map[string]any{"path": "manuscript/scenes/nope.md"})
	if !r.IsError {
		t.Error("expected error for missing page")
	}
	r = callTool(t, srv, "read_page", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing path argument")
	}
}

func TestLintPage(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "lint_page", map[string]any{"path": testutil.ScenePath})
	if r.IsError || !strings.Contains(resultText(r), `"diagnostics": []`) {
		t.Errorf("lint on disk = %s", resultText(r))
	}

	r = callTool(t, srv, "lint_page", map[string]any{
		"path":    testutil.ScenePath,
		"content": "# Platform\n\n## Sources\n\n- [[1999-01-01]]\n",
	})
	if !strings.Contains(resultText(r), "unresolved-reference") {
		t.Errorf("lint of content = %s", resultText(r))
	}
}

func TestSyncWiki(t *testing.T) {
	srv, files := testServer(t)
	data, err := files.Read(testutil.ChapterPath)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(data), "- **Status:** Draft", "- **Status:** Revised", 1)
	if err := files.Write(testutil.ChapterPath, []byte(edited)); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "sync_wiki", map[string]any{"scope": "manuscript"})
	if r.IsError {
		t.Fatalf("sync_wiki: %s", resultText(r))
	}
	var res syncer.Result
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Ingested != 1 || res.Scope != "manuscript" {
		t.Errorf("result = %+v", res)
	}

	r = callTool(t, srv, "sync_wiki", map[string]any{"mode": "sideways"})
	if !r.IsError {
		t.Error("expected error for unknown mode")
	}
}

func TestSyncWiki_ValidationFailureIsToolError(t *testing.T) {
	srv, files := testServer(t)
	data, _ := files.Read(testutil.ChapterPath)
	if err := files.Write(testutil.ChapterPath, []byte(strings.Replace(string(data), "# The Station\n", "", 1))); err != nil {
		t.Fatal(err)
	}
	r := callTool(t, srv, "sync_wiki", map[string]any{})
	if !r.IsError || !strings.Contains(resultText(r), "missing-title") {
		t.Errorf("sync_wiki = %s", resultText(r))
	}
}

func TestGenerateAndPending(t *testing.T) {
	srv, files := testServer(t)

	r := callTool(t, srv, "pending_edits", map[string]any{})
	if resultText(r) != "no pending edits" {
		t.Errorf("pending = %q", resultText(r))
	}

	r = callTool(t, srv, "generate_wiki", map[string]any{"scope": "journal"})
	if r.IsError || !strings.HasSuffix(resultText(r), "in journal, 0 written, 0 deleted") {
		t.Errorf("generate_wiki = %q", resultText(r))
	}

	if _, err := marker.Add(files, "laptop", time.Now(), testutil.ScenePath); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, srv, "pending_edits", map[string]any{})
	if resultText(r) != testutil.ScenePath {
		t.Errorf("pending = %q", resultText(r))
	}
	r = callTool(t, srv, "generate_wiki", map[string]any{})
	if !r.IsError {
		t.Error("generate_wiki ran over pending edits")
	}
}

func TestPageContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_page_contract", map[string]any{})
	if resultText(r) != PageFormatContract {
		t.Error("contract text mismatch")
	}
	contents, err := srv.readPageFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != FormatURI {
		t.Errorf("resource = %+v", contents[0])
	}
}
