// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Raido tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/storage"
)

// Server wraps the MCP server with Raido tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	db    *index.DB
}

// New creates a new MCP server with all Raido tools registered.
func New(store storage.Provider, db *index.DB) *Server {
	s := &Server{store: store, db: db}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_apis",
		mcp.WithDescription("Full-text search across indexed API descriptions (provider, service, title, description)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchAPIs)

	s.mcp.AddTool(mcp.NewTool("get_api",
		mcp.WithDescription("Get the registry entry for one API version: filename, checksum, validity, endpoint count."),
		mcp.WithString("provider", mcp.Required(), mcp.Description("Provider name (e.g. apis.example.com)")),
		mcp.WithString("service", mcp.Description("Service name; omit for provider-level APIs")),
		mcp.WithString("version", mcp.Required(), mcp.Description("Version key (e.g. 1.0.0)")),
	), s.getAPI)

	s.mcp.AddTool(mcp.NewTool("list_providers",
		mcp.WithDescription("List every provider in the registry with its API entry count."),
	), s.listProviders)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the raw materialized API description document for one entry. "+
			"Documents follow the registry entry format; see the raido://entry-format resource."),
		mcp.WithString("provider", mcp.Required(), mcp.Description("Provider name")),
		mcp.WithString("service", mcp.Description("Service name; omit for provider-level APIs")),
		mcp.WithString("version", mcp.Required(), mcp.Description("Version key")),
	), s.readDocument)

	// Resource: registry entry format contract.
	s.mcp.AddResource(
		mcp.NewResource("raido://entry-format", "Registry Entry Format",
			mcp.WithResourceDescription("Identity and provenance extensions carried by registry documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntryFormatResource,
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

func (s *Server) searchAPIs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.db.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getAPI(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	provider, service, version, err := entryArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := s.db.GetEntry(provider, service, version)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if row == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", entryName(provider, service, version))), nil
	}
	out, _ := json.MarshalIndent(row, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listProviders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := s.db.ListProviders()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s (%d)\n", n, counts[n])
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	provider, service, version, err := entryArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := s.db.GetEntry(provider, service, version)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if row == nil || row.Filename == "" {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", entryName(provider, service, version))), nil
	}
	data, err := s.store.Read(row.Filename)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("document missing: %s", row.Filename)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readEntryFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://entry-format",
			MIMEType: "text/markdown",
			Text:     EntryFormatContract,
		},
	}, nil
}

func entryArgs(req mcp.CallToolRequest) (provider, service, version string, err error) {
	if provider, err = req.RequireString("provider"); err != nil {
		return "", "", "", err
	}
	if version, err = req.RequireString("version"); err != nil {
		return "", "", "", err
	}
	if svc, svcErr := req.RequireString("service"); svcErr == nil {
		service = svc
	}
	return provider, service, version, nil
}

func entryName(provider, service, version string) string {
	if service == "" {
		return provider + ":" + version
	}
	return provider + ":" + service + ":" + version
}
