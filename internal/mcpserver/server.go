// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the study knowledge base, progress tracking, and workspace tools
// for LLM integration via stdio transport.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/studykb/internal/index"
	"github.com/starford/studykb/internal/kb"
	"github.com/starford/studykb/internal/progress"
	"github.com/starford/studykb/internal/workspace"
)

// GrepLimits bounds knowledge-base pattern searches exposed over MCP.
type GrepLimits struct {
	ContextLines int
	MaxMatches   int
}

// Server wraps the MCP server with studykb tools.
type Server struct {
	mcp       *server.MCPServer
	kb        *kb.Service
	progress  *progress.Service
	workspace *workspace.Service
	db        index.MaterialIndex
	grep      GrepLimits
}

// New creates a new MCP server with all studykb tools registered.
func New(kbSvc *kb.Service, progressSvc *progress.Service, workspaceSvc *workspace.Service, db index.MaterialIndex, grep GrepLimits) *Server {
	s := &Server{
		kb:        kbSvc,
		progress:  progressSvc,
		workspace: workspaceSvc,
		db:        db,
		grep:      grep,
	}

	s.mcp = server.NewMCPServer(
		"StudyKB",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	// Knowledge base.
	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List all knowledge-base categories with their materials, titles, and line counts."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("read_material",
		mcp.WithDescription("Read a line range of a study material. Lines are numbered so follow-up reads can page through long files."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category directory name (e.g. \"os\")")),
		mcp.WithString("material", mcp.Required(), mcp.Description("Material name without the .md extension")),
		mcp.WithNumber("start_line", mcp.Description("First line to read, 1-based (default: start of file)")),
		mcp.WithNumber("end_line", mcp.Description("Last line to read, inclusive (default: end of file)")),
	), s.readMaterial)

	s.mcp.AddTool(mcp.NewTool("grep_materials",
		mcp.WithDescription("Search materials in a category with a regular expression. Returns numbered matches with surrounding context lines."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category to search")),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Regular expression (RE2 syntax)")),
		mcp.WithString("material", mcp.Description("Restrict the search to one material (default: all)")),
		mcp.WithNumber("context_lines", mcp.Description("Lines of context around each match")),
	), s.grepMaterials)

	s.mcp.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Full-text search across all indexed materials."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("category", mcp.Description("Restrict results to one category")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.search)

	// Progress tracking.
	s.mcp.AddTool(mcp.NewTool("read_progress",
		mcp.WithDescription("Read learning progress for a category. Entries whose review date has arrived are surfaced with the review status."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("status", mcp.Description("Comma-separated status filter: active, done, review, pending")),
		mcp.WithString("since", mcp.Description("Recency filter: all, 7d, 30d, 90d (default all)")),
		mcp.WithNumber("limit", mcp.Description("Max entries per status group (default: all)")),
	), s.readProgress)

	s.mcp.AddTool(mcp.NewTool("update_progress",
		mcp.WithDescription("Create or update a progress entry. Marking an entry done schedules a spaced-repetition review; completing a review from the review status increments its review count."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Dot-separated knowledge point id (e.g. \"ds.graph.mst\")")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status: active, done, review, pending")),
		mcp.WithString("name", mcp.Description("Human-readable name (required when creating a new entry)")),
		mcp.WithString("comment", mcp.Description("Free-form note about this update")),
	), s.updateProgress)

	s.mcp.AddTool(mcp.NewTool("delete_progress",
		mcp.WithDescription("Delete a progress entry."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Entry id to delete")),
	), s.deleteProgress)

	// Workspaces.
	s.mcp.AddTool(mcp.NewTool("list_workspace",
		mcp.WithDescription("List all files in the workspace of a progress node."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Progress node id")),
	), s.listWorkspace)

	s.mcp.AddTool(mcp.NewTool("read_workspace_file",
		mcp.WithDescription("Read a line range of a workspace file."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Progress node id")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace-relative file path")),
		mcp.WithNumber("start_line", mcp.Description("First line to read, 1-based")),
		mcp.WithNumber("end_line", mcp.Description("Last line to read, inclusive")),
	), s.readWorkspaceFile)

	s.mcp.AddTool(mcp.NewTool("write_workspace_file",
		mcp.WithDescription("Create or overwrite a workspace file. The previous content (if any) is snapshotted to the file's version history first."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Progress node id")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace-relative file path")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full new file content")),
	), s.writeWorkspaceFile)

	s.mcp.AddTool(mcp.NewTool("edit_workspace_file",
		mcp.WithDescription("Replace an exact string in a workspace file. Falls back to whitespace-flexible and then token-level matching when the literal text is not found. The match count must equal expected_replacements or the edit is rejected with a diagnostic."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Progress node id")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace-relative file path")),
		mcp.WithString("old_str", mcp.Required(), mcp.Description("Text to replace (must be unique unless expected_replacements is set)")),
		mcp.WithString("new_str", mcp.Required(), mcp.Description("Replacement text")),
		mcp.WithNumber("expected_replacements", mcp.Description("Exact number of occurrences to replace (default 1)")),
	), s.editWorkspaceFile)

	s.mcp.AddTool(mcp.NewTool("delete_workspace_file",
		mcp.WithDescription("Delete a workspace file. Text content is snapshotted to version history before removal."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Progress node id")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace-relative file path")),
	), s.deleteWorkspaceFile)

	s.mcp.AddTool(mcp.NewTool("list_file_history",
		mcp.WithDescription("List the version history of a workspace file, newest first."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Progress node id")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace-relative file path")),
	), s.listFileHistory)

	s.mcp.AddTool(mcp.NewTool("get_file_version",
		mcp.WithDescription("Read the snapshotted content of one historical version of a workspace file."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Progress node id")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace-relative file path")),
		mcp.WithString("version_id", mcp.Required(), mcp.Description("Version id from list_file_history")),
	), s.getFileVersion)

	s.mcp.AddTool(mcp.NewTool("rollback_file",
		mcp.WithDescription("Restore a workspace file to a historical version. The current content is snapshotted first, so a rollback can itself be rolled back."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Progress node id")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace-relative file path")),
		mcp.WithString("version_id", mcp.Required(), mcp.Description("Version id to restore")),
	), s.rollbackFile)

	s.mcp.AddTool(mcp.NewTool("diff_file_versions",
		mcp.WithDescription("Unified diff between two versions of a workspace file, or between a version and the current content."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Progress node id")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace-relative file path")),
		mcp.WithString("from_version", mcp.Required(), mcp.Description("Older version id")),
		mcp.WithString("to_version", mcp.Description("Newer version id (default: current file content)")),
	), s.diffFileVersions)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Upload a binary asset (image or PDF) into a workspace from a base64 data URI or an http(s) URL. Returns the workspace-relative path and a ready-to-paste Markdown image reference."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name")),
		mcp.WithString("progress_id", mcp.Required(), mcp.Description("Progress node id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("data: URI (base64) or http(s) URL of the asset")),
		mcp.WithString("filename", mcp.Description("Target filename (default: derived from the URL)")),
	), s.uploadAsset)

	s.mcp.AddTool(mcp.NewTool("get_usage_guide",
		mcp.WithDescription("Returns the studykb conventions guide: category layout, progress id scheme, and workspace etiquette. Call this before writing progress entries or workspace files."),
	), s.getUsageGuide)

	// Resource: usage guide.
	s.mcp.AddResource(
		mcp.NewResource("studykb://usage", "StudyKB Usage Guide",
			mcp.WithResourceDescription("Conventions for categories, progress ids, and workspaces."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readUsageGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}
