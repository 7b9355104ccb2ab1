package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowlens/flowlens"
)

const handlerScript = `process P {
    input:
    val a
}

workflow W {
    main:
    P(1)
    P(2, 3)
}
`

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "main.nf")
	require.NoError(t, os.WriteFile(path, []byte(handlerScript), 0o644))

	engine, err := flowlens.New(root)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	require.NoError(t, engine.Load(context.Background()))

	return NewHandler(engine), path
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// resultJSON unmarshals a successful tool result's text payload.
func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.False(t, res.IsError, "expected a successful result")
	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestHandler_Validate(t *testing.T) {
	h, path := newTestHandler(t)

	res, err := h.Validate(context.Background(), callRequest("validate", map[string]any{
		"file": path,
	}))
	require.NoError(t, err)

	out := resultJSON(t, res)
	diags := out["diagnostics"].([]any)
	require.Len(t, diags, 1, "P(2, 3) has the wrong arity")
}

func TestHandler_Validate_MissingFileArg(t *testing.T) {
	h, _ := newTestHandler(t)

	res, err := h.Validate(context.Background(), callRequest("validate", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandler_References(t *testing.T) {
	h, path := newTestHandler(t)

	// position of the P declaration name
	res, err := h.References(context.Background(), callRequest("references", map[string]any{
		"file": path,
		"line": 0,
		"col":  8,
	}))
	require.NoError(t, err)

	out := resultJSON(t, res)
	refs := out["references"].([]any)
	assert.Len(t, refs, 3, "declaration and two call sites")
}

func TestHandler_Rename_NoSymbol(t *testing.T) {
	h, path := newTestHandler(t)

	res, err := h.Rename(context.Background(), callRequest("rename", map[string]any{
		"file":     path,
		"line":     4,
		"col":      0,
		"new_name": "Q",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandler_WorkspaceSymbols(t *testing.T) {
	h, _ := newTestHandler(t)

	res, err := h.WorkspaceSymbols(context.Background(), callRequest("workspace_symbols", map[string]any{
		"query": "w",
	}))
	require.NoError(t, err)

	out := resultJSON(t, res)
	syms := out["symbols"].([]any)
	require.Len(t, syms, 1)
	sym := syms[0].(map[string]any)
	assert.Equal(t, "W", sym["Name"])
}

func TestHandler_IncomingCalls(t *testing.T) {
	h, path := newTestHandler(t)

	res, err := h.IncomingCalls(context.Background(), callRequest("incoming_calls", map[string]any{
		"file": path,
		"line": 0,
		"col":  8,
	}))
	require.NoError(t, err)

	out := resultJSON(t, res)
	incoming := out["incoming"].([]any)
	require.Len(t, incoming, 1, "both call sites group under W")
}

func TestHandler_OutgoingCalls_NoCallable(t *testing.T) {
	h, path := newTestHandler(t)

	res, err := h.OutgoingCalls(context.Background(), callRequest("outgoing_calls", map[string]any{
		"file": path,
		"line": 4,
		"col":  0,
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
