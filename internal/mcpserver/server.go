// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes dream journal tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dreamvault/internal/apperr"
	"github.com/starford/dreamvault/internal/entryservice"
	"github.com/starford/dreamvault/internal/models"
	"github.com/starford/dreamvault/internal/scrape"
)

const contractURI = "dreamvault://journal-format"

// Server wraps the MCP server with dream journal tools.
type Server struct {
	mcp *server.MCPServer
	svc *entryservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *entryservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"DreamVault",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("scrape",
		mcp.WithDescription("Scrape the vault for dream entries and update the index. "+
			"Without arguments the configured selection is used."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("selection_mode", mcp.Description("notes or folder"), mcp.Enum("notes", "folder")),
		mcp.WithString("notes", mcp.Description("Comma-separated note paths (notes mode)")),
		mcp.WithString("folder", mcp.Description("Folder to scan (folder mode, empty for the vault root)")),
		mcp.WithBoolean("recursive", mcp.Description("Include sub-folders (folder mode)")),
	), s.scrape)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List indexed dream entries ordered by date."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("from", mcp.Description("Earliest date, YYYY-MM-DD")),
		mcp.WithString("to", mcp.Description("Latest date, YYYY-MM-DD")),
		mcp.WithString("document", mcp.Description("Only entries of this document")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default: 50)")),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Full-text search through dream titles and content."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default: 20)")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("metric_summary",
		mcp.WithDescription("Count, min, max and mean per metric over indexed entries."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("from", mcp.Description("Earliest date, YYYY-MM-DD")),
		mcp.WithString("to", mcp.Description("Latest date, YYYY-MM-DD")),
	), s.metricSummary)

	s.mcp.AddTool(mcp.NewTool("list_conflicts",
		mcp.WithDescription("List disagreements between front-matter and callout metrics."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("document", mcp.Description("Only conflicts of this document")),
		mcp.WithString("severity", mcp.Description("Severity filter"), mcp.Enum("low", "medium", "high")),
	), s.listConflicts)

	s.mcp.AddTool(mcp.NewTool("preview_extraction",
		mcp.WithDescription("Extract dream entries from Markdown content without writing it to the vault. "+
			"Use it to check a draft against the journal format contract."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown document content")),
		mcp.WithString("path", mcp.Description("Path the document would have; used for path-year dates")),
	), s.previewExtraction)

	s.mcp.AddTool(mcp.NewTool("write_back",
		mcp.WithDescription("Write the reconciled metrics of a single-entry document into its front matter."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the document")),
		mcp.WithString("checksum", mcp.Description("Expected SHA-256 checksum of the current content")),
	), s.writeBack)

	s.mcp.AddTool(mcp.NewTool("get_journal_contract",
		mcp.WithDescription("Returns the dream journal format contract: callout nesting, "+
			"date and title rules, and the configured metrics."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.getJournalContract)

	// Resource: journal format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Journal Format Contract",
			mcp.WithResourceDescription("Callout layout that dream journal documents follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readJournalFormatResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("checksum mismatch: the document changed, read it again")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func optString(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func optInt(req mcp.CallToolRequest, key string, def int) int {
	if v, err := req.RequireFloat(key); err == nil && v > 0 {
		return int(v)
	}
	return def
}

func (s *Server) scrape(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sel *scrape.Selection
	if mode := optString(req, "selection_mode"); mode != "" {
		custom := s.svc.Selection()
		custom.Mode = scrape.Mode(mode)
		custom.Notes = nil
		for _, n := range strings.Split(optString(req, "notes"), ",") {
			if n = strings.TrimSpace(n); n != "" {
				custom.Notes = append(custom.Notes, n)
			}
		}
		custom.Folder = optString(req, "folder")
		if r, err := req.RequireBool("recursive"); err == nil {
			custom.Recursive = r
		}
		sel = &custom
	}
	report, err := s.svc.Scrape(ctx, sel)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(report), nil
}

func (s *Server) entryQuery(req mcp.CallToolRequest, limit int) entryservice.EntryQuery {
	return entryservice.EntryQuery{
		From:     optString(req, "from"),
		To:       optString(req, "to"),
		Document: optString(req, "document"),
		Limit:    limit,
	}
}

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, total, err := s.svc.ListEntries(ctx, s.entryQuery(req, optInt(req, "limit", 50)))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"entries": entries, "total": total}), nil
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, optInt(req, "limit", 20))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) metricSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.svc.MetricSummary(ctx, s.entryQuery(req, 0))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(summary), nil
}

func (s *Server) listConflicts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conflicts, err := s.svc.Conflicts(ctx, optString(req, "document"), models.Severity(optString(req, "severity")))
	if err != nil {
		return errorResult(err), nil
	}
	if len(conflicts) == 0 {
		return mcp.NewToolResultText("no conflicts found"), nil
	}
	return jsonResult(conflicts), nil
}

func (s *Server) previewExtraction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Preview(optString(req, "path"), []byte(content))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(doc), nil
}

func (s *Server) writeBack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.WriteBack(ctx, path, optString(req, "checksum"))
	if err != nil {
		return errorResult(err), nil
	}
	if !res.Changed {
		return mcp.NewToolResultText(fmt.Sprintf("unchanged: %s", path)), nil
	}
	return jsonResult(res), nil
}

func (s *Server) getJournalContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(JournalFormatContract(s.svc.Format())), nil
}

func (s *Server) readJournalFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     JournalFormatContract(s.svc.Format()),
		},
	}, nil
}
