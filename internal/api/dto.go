package api

import (
	"github.com/starford/studykb/internal/kb"
	"github.com/starford/studykb/internal/progress"
	"github.com/starford/studykb/internal/workspace"
)

// CategoryListResponse wraps the knowledge-base category listing.
type CategoryListResponse struct {
	Categories []kb.Category `json:"categories"`
}

// MaterialResponse is a range read of one material.
type MaterialResponse struct {
	Category  string    `json:"category"`
	Material  string    `json:"material"`
	Lines     []kb.Line `json:"lines"`
	Truncated bool      `json:"truncated"`
}

// GrepResponse wraps pattern search hits within a category.
type GrepResponse struct {
	Pattern string          `json:"pattern"`
	Results []kb.GrepResult `json:"results"`
}

// SearchResult is a single full-text search hit in the API response.
type SearchResult struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	Material string `json:"material"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// SearchResponse wraps full-text search results.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// UpdateProgressRequest is the request body for creating or updating a
// progress entry.
type UpdateProgressRequest struct {
	ProgressID string `json:"progress_id"`
	Status     string `json:"status"`
	Name       string `json:"name"`
	Comment    string `json:"comment"`
}

// UpdateProgressResponse reports the stored entry and transition metadata.
type UpdateProgressResponse struct {
	ProgressID string          `json:"progress_id"`
	Entry      *progress.Entry `json:"entry"`
	IsNew      bool            `json:"is_new"`
	OldStatus  string          `json:"old_status,omitempty"`
}

// WriteFileRequest is the request body for writing a workspace file.
type WriteFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// EditFileRequest is the request body for a string replacement edit.
// ExpectedReplacements is a pointer so an omitted field defaults to 1
// instead of the zero count, which the edit strategy would treat as
// "expect no matches".
type EditFileRequest struct {
	Path                 string `json:"path"`
	OldString            string `json:"old_str"`
	NewString            string `json:"new_str"`
	ExpectedReplacements *int   `json:"expected_replacements,omitempty"`
}

// RollbackRequest restores a workspace file to a snapshotted version.
type RollbackRequest struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// FileContentResponse is a range read of one workspace file.
type FileContentResponse struct {
	Path      string           `json:"path"`
	Lines     []workspace.Line `json:"lines"`
	Truncated bool             `json:"truncated"`
}

// FileListResponse wraps a workspace file listing.
type FileListResponse struct {
	Files []workspace.FileInfo `json:"files"`
}

// AssetUploadResponse is returned after a successful asset upload.
type AssetUploadResponse struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}
