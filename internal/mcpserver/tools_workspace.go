package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// workspaceArgs extracts the category/progress_id pair shared by every
// workspace tool.
func workspaceArgs(req mcp.CallToolRequest) (category, progressID string, err error) {
	if category, err = req.RequireString("category"); err != nil {
		return "", "", err
	}
	if progressID, err = req.RequireString("progress_id"); err != nil {
		return "", "", err
	}
	return category, progressID, nil
}

func (s *Server) listWorkspace(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, progressID, err := workspaceArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	files, err := s.workspace.ListFiles(category, progressID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(files) == 0 {
		return mcp.NewToolResultText("workspace is empty"), nil
	}
	return mcp.NewToolResultText(formatFileList(files)), nil
}

func (s *Server) readWorkspaceFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, progressID, err := workspaceArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start := req.GetInt("start_line", 0)
	end := req.GetInt("end_line", 0)

	lines, truncated, err := s.workspace.ReadFile(category, progressID, path, start, end)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatWorkspaceLines(lines, truncated)), nil
}

func (s *Server) writeWorkspaceFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, progressID, err := workspaceArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.workspace.WriteFile(category, progressID, path, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("written: %s (%d bytes)", path, len(content))), nil
}

func (s *Server) editWorkspaceFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, progressID, err := workspaceArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	oldStr, err := req.RequireString("old_str")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newStr, err := req.RequireString("new_str")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	expected := req.GetInt("expected_replacements", 1)

	result, err := s.workspace.EditFile(category, progressID, path, oldStr, newStr, expected)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !result.Success {
		// The diagnostic carries per-tier match counts and recovery hints.
		return mcp.NewToolResultError(result.Error), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("edited: %s (match: %s)", path, result.MatchType)), nil
}

func (s *Server) deleteWorkspaceFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, progressID, err := workspaceArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.workspace.DeleteFile(category, progressID, path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s (history preserved)", path)), nil
}

func (s *Server) listFileHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, progressID, err := workspaceArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	versions, err := s.workspace.ListFileHistory(category, progressID, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(versions) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no history for %s", path)), nil
	}
	return mcp.NewToolResultText(formatVersions(path, versions)), nil
}

func (s *Server) getFileVersion(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, progressID, err := workspaceArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	versionID, err := req.RequireString("version_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	content, err := s.workspace.GetFileVersion(category, progressID, path, versionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) rollbackFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, progressID, err := workspaceArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	versionID, err := req.RequireString("version_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.workspace.RollbackFile(category, progressID, path, versionID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("rolled back %s to version %s", path, versionID)), nil
}

func (s *Server) diffFileVersions(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, progressID, err := workspaceArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fromVersion, err := req.RequireString("from_version")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	toVersion := req.GetString("to_version", "")

	diff, err := s.workspace.DiffVersions(category, progressID, path, fromVersion, toVersion)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if diff == "" {
		return mcp.NewToolResultText("versions are identical"), nil
	}
	return mcp.NewToolResultText(diff), nil
}
