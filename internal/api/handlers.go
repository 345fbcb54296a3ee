package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/studykb/internal/index"
	"github.com/starford/studykb/internal/kb"
	"github.com/starford/studykb/internal/progress"
	"github.com/starford/studykb/internal/sse"
	"github.com/starford/studykb/internal/workspace"
)

// GrepLimits bounds knowledge-base pattern searches.
type GrepLimits struct {
	ContextLines int
	MaxMatches   int
}

// Handler holds API route handlers.
type Handler struct {
	kb        *kb.Service
	progress  *progress.Service
	workspace *workspace.Service
	idx       index.MaterialIndex
	broker    *sse.Broker
	grep      GrepLimits
}

// NewHandler creates a new Handler. broker may be nil when SSE is not wired
// (tests, MCP-only mode).
func NewHandler(kbSvc *kb.Service, progressSvc *progress.Service, workspaceSvc *workspace.Service, idx index.MaterialIndex, broker *sse.Broker, grep GrepLimits) *Handler {
	return &Handler{
		kb:        kbSvc,
		progress:  progressSvc,
		workspace: workspaceSvc,
		idx:       idx,
		broker:    broker,
		grep:      grep,
	}
}

func (h *Handler) publishWorkspaceEvent(kind, category, progressID, path string) {
	if h.broker != nil {
		h.broker.PublishWorkspaceEvent(kind, category, progressID, path)
	}
}

// ListCategories handles GET /categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.kb.ListCategories()
	if err != nil {
		slog.Error("list categories failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, CategoryListResponse{Categories: cats})
}

// ReadMaterial handles GET /kb/{category}/{material}.
func (h *Handler) ReadMaterial(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	material := chi.URLParam(r, "material")

	q := r.URL.Query()
	start, _ := strconv.Atoi(q.Get("start_line"))
	end, _ := strconv.Atoi(q.Get("end_line"))

	lines, truncated, err := h.kb.ReadRange(category, material, start, end)
	if err != nil {
		writeServiceError(w, err, "read material failed")
		return
	}
	writeJSON(w, http.StatusOK, MaterialResponse{
		Category:  category,
		Material:  material,
		Lines:     lines,
		Truncated: truncated,
	})
}

// GrepMaterials handles GET /kb/{category}/grep.
func (h *Handler) GrepMaterials(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	q := r.URL.Query()
	pattern := q.Get("q")
	if pattern == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	material := q.Get("material")
	contextLines := h.grep.ContextLines
	if v := q.Get("context"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			contextLines = n
		}
	}

	results, err := h.kb.Grep(category, pattern, material, contextLines, h.grep.MaxMatches)
	if err != nil {
		writeServiceError(w, err, "grep failed")
		return
	}
	writeJSON(w, http.StatusOK, GrepResponse{Pattern: pattern, Results: results})
}

// Search handles GET /search (full-text over the sqlite index).
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	category := r.URL.Query().Get("category")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := h.idx.Search(q, category, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	results := make([]SearchResult, len(rows))
	for i, row := range rows {
		results[i] = SearchResult{
			Path:     row.Path,
			Category: row.Category,
			Material: row.Material,
			Title:    row.Title,
			Snippet:  row.Snippet,
		}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
