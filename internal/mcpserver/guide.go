package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// UsageGuide describes the studykb conventions that LLM consumers should
// follow when reading materials, tracking progress, and working in
// workspaces.
const UsageGuide = `# StudyKB Usage Guide

StudyKB is a personal study knowledge base. It holds curated learning
materials, a per-category progress ledger with spaced-repetition review
scheduling, and a scratch workspace per knowledge point.

## Knowledge base layout

` + "```" + `
kb/
  os/                      # category = first-level directory
    scheduling.md          # material = markdown file
    scheduling_index.md    # optional outline, shown as [index]
  ds/
    graph.md
` + "```" + `

- Call ` + "`" + `list_categories` + "`" + ` first to see what exists.
- Materials can be long. Read them in ranges with ` + "`" + `read_material` + "`" + `
  (start_line/end_line) and locate passages with ` + "`" + `grep_materials` + "`" + `
  or full-text ` + "`" + `search` + "`" + ` instead of reading whole files.
- Materials are read-only through this server. Draft in a workspace.

## Progress ids

Progress ids are dot-separated paths from coarse to fine, rooted at the
category name:

` + "```" + `
ds.graph              # the graph chapter
ds.graph.mst          # minimum spanning trees
ds.graph.mst.kruskal  # one specific algorithm
` + "```" + `

Statuses: ` + "`" + `pending` + "`" + ` (not started), ` + "`" + `active` + "`" + ` (in progress),
` + "`" + `done` + "`" + ` (mastered), ` + "`" + `review` + "`" + ` (review due).

- Marking an entry ` + "`" + `done` + "`" + ` schedules its next spaced-repetition
  review automatically.
- When ` + "`" + `read_progress` + "`" + ` shows an entry in ` + "`" + `review` + "`" + `, quiz the
  user on it, then set it back to ` + "`" + `done` + "`" + ` to schedule the next,
  longer interval.
- Always pass ` + "`" + `name` + "`" + ` when creating a new entry, and use
  ` + "`" + `comment` + "`" + ` to record what was covered.

## Workspaces

Each progress node owns an isolated workspace directory addressed by
(category, progress_id). Use it for exercise solutions, summaries, and
scratch notes.

- Paths are workspace-relative, forward slashes, no ` + "`" + `..` + "`" + `.
- Prefer ` + "`" + `edit_workspace_file` + "`" + ` over rewriting whole files: pass the
  exact text to replace in ` + "`" + `old_str` + "`" + `. If the literal text has
  drifted (whitespace, small edits), the server falls back to
  whitespace-flexible and token-level matching and reports which tier
  matched.
- If an edit is rejected because ` + "`" + `old_str` + "`" + ` matches more than once,
  either include more surrounding context or set
  ` + "`" + `expected_replacements` + "`" + ` to the exact occurrence count.
- Every write, edit, and delete snapshots the previous content. Use
  ` + "`" + `list_file_history` + "`" + `, ` + "`" + `diff_file_versions` + "`" + `, and
  ` + "`" + `rollback_file` + "`" + ` to inspect and undo changes.

## Assets

- Upload images and PDFs with ` + "`" + `upload_asset` + "`" + ` (base64 data URI or
  http(s) URL). It returns a ` + "`" + `markdownImage` + "`" + ` string ready to paste.
- Assets land under the workspace's ` + "`" + `assets/` + "`" + ` directory and are
  never overwritten; pick a new filename instead.
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.
`

func (s *Server) getUsageGuide(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(UsageGuide), nil
}

func (s *Server) readUsageGuideResource(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     UsageGuide,
		},
	}, nil
}
