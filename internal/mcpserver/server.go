// Package mcpserver exposes flowlens queries as MCP tools over stdio, so
// editor agents can validate and cross-reference pipeline scripts.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New builds the MCP server and registers the query tools. Business logic
// lives in Handler; this layer only declares the tool schemas.
func New(h *Handler, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"flowlens",
		version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("validate",
		mcp.WithDescription("Report diagnostics for a pipeline script: parse errors, call-site errors, and unrecognized output accesses."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Path of the script to validate.")),
	), h.Validate)

	s.AddTool(mcp.NewTool("references",
		mcp.WithDescription("List every location that references the symbol at a position. Lines and columns are zero-based."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Path of the script containing the position.")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("Zero-based line of the position.")),
		mcp.WithNumber("col", mcp.Required(), mcp.Description("Zero-based column of the position.")),
		mcp.WithBoolean("include_declaration", mcp.Description("Include the declaration itself. Default: true.")),
	), h.References)

	s.AddTool(mcp.NewTool("rename",
		mcp.WithDescription("Compute the workspace edits that rename the symbol at a position. Lines and columns are zero-based."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Path of the script containing the position.")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("Zero-based line of the position.")),
		mcp.WithNumber("col", mcp.Required(), mcp.Description("Zero-based column of the position.")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("Replacement name for the symbol.")),
	), h.Rename)

	s.AddTool(mcp.NewTool("document_symbols",
		mcp.WithDescription("List the symbols declared in one script, in source order."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Path of the script.")),
	), h.DocumentSymbols)

	s.AddTool(mcp.NewTool("workspace_symbols",
		mcp.WithDescription("Search all loaded scripts for symbols whose name contains a query, case-insensitively. An empty query matches everything."),
		mcp.WithString("query", mcp.Description("Substring to match against symbol names.")),
	), h.WorkspaceSymbols)

	s.AddTool(mcp.NewTool("incoming_calls",
		mcp.WithDescription("List the callers of the callable at a position, grouped by enclosing declaration. Lines and columns are zero-based."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Path of the script containing the position.")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("Zero-based line of the position.")),
		mcp.WithNumber("col", mcp.Required(), mcp.Description("Zero-based column of the position.")),
	), h.IncomingCalls)

	s.AddTool(mcp.NewTool("outgoing_calls",
		mcp.WithDescription("List the callables invoked from the body of the callable at a position. Lines and columns are zero-based."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Path of the script containing the position.")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("Zero-based line of the position.")),
		mcp.WithNumber("col", mcp.Required(), mcp.Description("Zero-based column of the position.")),
	), h.OutgoingCalls)

	return s
}
