// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes wiki sync tools to editors and LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/syncer"
	"github.com/soffiafdz/palimpsest-sub000/internal/wiki"
	"github.com/soffiafdz/palimpsest-sub000/internal/wikiservice"
)

// FormatURI is the URI of the page format resource.
const FormatURI = "palimpsest://page-format"

// Server wraps the MCP server with palimpsest tools.
type Server struct {
	mcp *server.MCPServer
	svc *wikiservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *wikiservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Palimpsest",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read a wiki page. Reports whether it is editable and whether it differs from what was generated."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Page path relative to the wiki root, e.g. manuscript/chapters/the-station.md")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("lint_page",
		mcp.WithDescription("Validate a page. Pass content to check text before writing it; "+
			"omit it to check the file on disk."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Page path relative to the wiki root")),
		mcp.WithString("content", mcp.Description("Page text to validate instead of the file")),
	), s.lintPage)

	s.mcp.AddTool(mcp.NewTool("sync_wiki",
		mcp.WithDescription("Validate edited manuscript pages, ingest them into the database and regenerate the wiki."),
		mcp.WithString("mode", mcp.Description("full (default), ingest or regenerate")),
		mcp.WithString("scope", mcp.Description("all (default), journal, manuscript, or a family such as chapters")),
		mcp.WithBoolean("force", mcp.Description("Ingest every editable page, not only edited ones")),
	), s.syncWiki)

	s.mcp.AddTool(mcp.NewTool("generate_wiki",
		mcp.WithDescription("Regenerate wiki pages from the database. Refused while edits are pending."),
		mcp.WithString("scope", mcp.Description("all (default), journal, manuscript, or a family")),
	), s.generateWiki)

	s.mcp.AddTool(mcp.NewTool("pending_edits",
		mcp.WithDescription("List pages edited since the last ingest."),
	), s.pendingEdits)

	s.mcp.AddTool(mcp.NewTool("get_page_contract",
		mcp.WithDescription("Returns the editable page format. "+
			"Call this before changing manuscript pages."),
	), s.getPageContract)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Page Format Contract",
			mcp.WithResourceDescription("Format of the editable manuscript pages."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPageFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := s.svc.ReadPage(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(page)
}

func (s *Server) lintPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	var res any
	if content, ok := args["content"].(string); ok {
		res, err = s.svc.LintText(ctx, path, content)
	} else {
		res, err = s.svc.Lint(ctx, path)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) syncWiki(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, err := syncer.ParseMode(req.GetString("mode", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scope, err := wiki.ParseScope(req.GetString("scope", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Sync(ctx, syncer.Options{Mode: mode, Scope: scope, Force: req.GetBool("force", false)})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if res.Failed() {
		out, _ := json.MarshalIndent(res, "", "  ")
		return mcp.NewToolResultError(string(out)), nil
	}
	return jsonResult(res)
}

func (s *Server) generateWiki(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := wiki.ParseScope(req.GetString("scope", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stats, err := s.svc.Generate(ctx, scope)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("generated %d pages in %s, %d written, %d deleted",
		stats.TotalGenerated(), stats.Scope, stats.TotalChanged(), len(stats.Deleted))), nil
}

func (s *Server) pendingEdits(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.svc.Pending(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if m == nil {
		return mcp.NewToolResultText("no pending edits"), nil
	}
	return mcp.NewToolResultText(strings.Join(m.Files, "\n")), nil
}

func (s *Server) getPageContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PageFormatContract), nil
}

func (s *Server) readPageFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     PageFormatContract,
		},
	}, nil
}
