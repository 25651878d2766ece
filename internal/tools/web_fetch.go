package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	web "github.com/leonardcser/entity-cache/internal/web"
)

// WebFetchHandler returns the MCP tool handler for the "web-fetch" tool.
func WebFetchHandler(fetcher *web.Fetcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		url, err := req.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		p, err := fetcher.Fetch(ctx, url)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatPage(p)), nil
	}
}

func formatPage(p web.Page) string {
	var sb strings.Builder
	if p.FinalURL != "" && p.FinalURL != p.URL {
		sb.WriteString("Redirected to: ")
		sb.WriteString(p.FinalURL)
		sb.WriteString("\n\n")
	}
	if p.Title != "" {
		sb.WriteString("# ")
		sb.WriteString(p.Title)
		sb.WriteString("\n\n")
	}
	if p.Description != "" {
		sb.WriteString(p.Description)
		sb.WriteString("\n\n")
	}
	if len(p.Links) > 0 {
		sb.WriteString("## Links\n")
		for _, l := range p.Links {
			sb.WriteString("- ")
			sb.WriteString(l)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(p.Text)
	return sb.String()
}
