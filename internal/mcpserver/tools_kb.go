package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) listCategories(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.kb.ListCategories()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(cats) == 0 {
		return mcp.NewToolResultText("knowledge base is empty"), nil
	}
	return mcp.NewToolResultText(formatCategories(cats)), nil
}

func (s *Server) readMaterial(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	material, err := req.RequireString("material")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start := req.GetInt("start_line", 0)
	end := req.GetInt("end_line", 0)

	lines, truncated, err := s.kb.ReadRange(category, material, start, end)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatLines(lines, truncated)), nil
}

func (s *Server) grepMaterials(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	material := req.GetString("material", "")
	contextLines := req.GetInt("context_lines", s.grep.ContextLines)

	results, err := s.kb.Grep(category, pattern, material, contextLines, s.grep.MaxMatches)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no matches for %q in %s", pattern, category)), nil
	}
	return mcp.NewToolResultText(formatGrepResults(results)), nil
}

func (s *Server) search(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category := req.GetString("category", "")
	limit := req.GetInt("limit", 20)

	results, err := s.db.Search(query, category, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no results for %q", query)), nil
	}
	return mcp.NewToolResultText(formatSearchResults(results)), nil
}
