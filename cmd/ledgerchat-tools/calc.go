package main

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newCalcServer() *server.MCPServer {
	s := server.NewMCPServer("calc", version)

	s.AddTool(mcp.NewTool("add_numbers",
		mcp.WithDescription("Add two numbers and return the sum."),
		mcp.WithNumber("a", mcp.Required()),
		mcp.WithNumber("b", mcp.Required()),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := request.GetFloat("a", 0)
		b := request.GetFloat("b", 0)
		return structured(map[string]any{"result": a + b}), nil
	})

	return s
}
