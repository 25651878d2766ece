package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	web "github.com/leonardcser/entity-cache/internal/web"
)

// WebSearchHandler returns the MCP tool handler for the "web-search" tool.
func WebSearchHandler(searcher *web.Searcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		results, err := searcher.Search(ctx, q, req.GetInt("limit", 10))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatResults(results)), nil
	}
}

// formatResults renders an ordered list and ensures only a single URL line.
func formatResults(results []web.Result) string {
	if len(results) == 0 {
		return "No results."
	}
	var sb strings.Builder
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. %s\n   %s", i+1, r.Title, r.Link))
		if r.Description != "" {
			sb.WriteString("\n   ")
			sb.WriteString(r.Description)
		}
		if i < len(results)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
