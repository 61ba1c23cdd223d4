package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/suPer8Hu/kinfolk/internal/ai"
)

// RegisterTools exposes the catalog on an MCP server, backed by d.
func RegisterTools(s *server.MCPServer, reg *Registry, d *Dispatcher) {
	for _, t := range reg.Tools() {
		s.AddTool(t, d.handleMCP)
	}
}

func (d *Dispatcher) handleMCP(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.Params.Name
	result := d.Execute(ctx, ai.ToolCall{Name: name, Args: req.GetArguments()})
	if strings.HasPrefix(result, "Error executing tool ") || strings.HasPrefix(result, "Unknown tool: ") {
		return mcp.NewToolResultError(result), nil
	}
	return mcp.NewToolResultText(result), nil
}
