package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/studykb/internal/progress"
)

func (s *Server) readProgress(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var statuses []progress.Status
	if raw := req.GetString("status", ""); raw != "" {
		for _, v := range strings.Split(raw, ",") {
			st := progress.Status(strings.TrimSpace(v))
			if !progress.ValidStatus(st) {
				return mcp.NewToolResultError(fmt.Sprintf("invalid status filter: %s", v)), nil
			}
			statuses = append(statuses, st)
		}
	}
	since := req.GetString("since", progress.SinceAll)
	limit := req.GetInt("limit", -1)

	file, err := s.progress.Get(category, statuses, since, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatProgressFile(file)), nil
}

func (s *Server) updateProgress(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	progressID, err := req.RequireString("progress_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := req.GetString("name", "")
	comment := req.GetString("comment", "")

	entry, isNew, oldStatus, err := s.progress.Update(category, progressID, progress.Status(status), name, comment)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	if isNew {
		fmt.Fprintf(&b, "created %s (%s) with status %s\n", progressID, entry.Name, entry.Status)
	} else {
		fmt.Fprintf(&b, "updated %s (%s): %s -> %s\n", progressID, entry.Name, oldStatus, entry.Status)
	}
	if entry.NextReviewAt != nil {
		fmt.Fprintf(&b, "next review: %s (review #%d)\n", entry.NextReviewAt.Format("2006-01-02"), entry.ReviewCount+1)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) deleteProgress(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	progressID, err := req.RequireString("progress_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entry, err := s.progress.Delete(category, progressID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %s (%s)", progressID, entry.Name)), nil
}
