package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flowlens/flowlens"
)

// Handler adapts MCP tool calls to Analyzer queries.
type Handler struct {
	engine *flowlens.Engine
}

// NewHandler creates a Handler over a loaded engine.
func NewHandler(engine *flowlens.Engine) *Handler {
	return &Handler{engine: engine}
}

// Validate handles the validate tool.
func (h *Handler) Validate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError("file is required"), nil
	}
	diags := h.engine.Analyzer().Validate(file)
	return jsonResult(map[string]any{"file": file, "diagnostics": diags})
}

// References handles the references tool.
func (h *Handler) References(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, pos, errResult := requirePosition(req)
	if errResult != nil {
		return errResult, nil
	}
	includeDecl := req.GetBool("include_declaration", true)
	locs := h.engine.Analyzer().References(file, pos, includeDecl)
	return jsonResult(map[string]any{"references": locs})
}

// Rename handles the rename tool.
func (h *Handler) Rename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, pos, errResult := requirePosition(req)
	if errResult != nil {
		return errResult, nil
	}
	newName, err := req.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError("new_name is required"), nil
	}
	edits := h.engine.Analyzer().Rename(file, pos, newName)
	if edits == nil {
		return mcp.NewToolResultError("no renameable symbol at position"), nil
	}
	return jsonResult(map[string]any{"edits": edits})
}

// DocumentSymbols handles the document_symbols tool.
func (h *Handler) DocumentSymbols(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError("file is required"), nil
	}
	syms := h.engine.Analyzer().DocumentSymbols(file)
	return jsonResult(map[string]any{"file": file, "symbols": syms})
}

// WorkspaceSymbols handles the workspace_symbols tool.
func (h *Handler) WorkspaceSymbols(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	syms := h.engine.Analyzer().WorkspaceSymbols(query)
	return jsonResult(map[string]any{"query": query, "symbols": syms})
}

// IncomingCalls handles the incoming_calls tool.
func (h *Handler) IncomingCalls(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, pos, errResult := requirePosition(req)
	if errResult != nil {
		return errResult, nil
	}
	a := h.engine.Analyzer()
	handles := a.PrepareCallHierarchy(file, pos)
	if len(handles) == 0 {
		return mcp.NewToolResultError("no callable at position"), nil
	}
	calls := a.IncomingCalls(handles[0])
	return jsonResult(map[string]any{"item": handles[0], "incoming": calls})
}

// OutgoingCalls handles the outgoing_calls tool.
func (h *Handler) OutgoingCalls(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, pos, errResult := requirePosition(req)
	if errResult != nil {
		return errResult, nil
	}
	a := h.engine.Analyzer()
	handles := a.PrepareCallHierarchy(file, pos)
	if len(handles) == 0 {
		return mcp.NewToolResultError("no callable at position"), nil
	}
	calls := a.OutgoingCalls(handles[0])
	return jsonResult(map[string]any{"item": handles[0], "outgoing": calls})
}

// requirePosition extracts the file/line/col triple shared by the
// position-based tools.
func requirePosition(req mcp.CallToolRequest) (string, flowlens.Pos, *mcp.CallToolResult) {
	file, err := req.RequireString("file")
	if err != nil {
		return "", flowlens.Pos{}, mcp.NewToolResultError("file is required")
	}
	line, err := req.RequireInt("line")
	if err != nil {
		return "", flowlens.Pos{}, mcp.NewToolResultError("line is required")
	}
	col, err := req.RequireInt("col")
	if err != nil {
		return "", flowlens.Pos{}, mcp.NewToolResultError("col is required")
	}
	return file, flowlens.Pos{Line: line, Col: col}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
