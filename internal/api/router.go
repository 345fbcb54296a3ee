package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Knowledge base (read-only).
	r.Get("/categories", h.ListCategories)
	r.Get("/kb/{category}/grep", h.GrepMaterials)
	r.Get("/kb/{category}/{material}", h.ReadMaterial)

	// Full-text search over the sqlite index.
	r.Get("/search", h.Search)

	// Progress tracking.
	r.Get("/progress/{category}", h.GetProgress)
	r.Post("/progress/{category}", h.UpdateProgress)
	r.Delete("/progress/{category}/{progressID}", h.DeleteProgress)

	// Per-progress-node workspaces.
	r.Route("/workspaces/{category}/{progressID}", func(r chi.Router) {
		r.Get("/files", h.ListWorkspaceFiles)
		r.Get("/file", h.ReadWorkspaceFile)
		r.Put("/file", h.WriteWorkspaceFile)
		r.Delete("/file", h.DeleteWorkspaceFile)
		r.Post("/file/edit", h.EditWorkspaceFile)
		r.Get("/file/history", h.WorkspaceFileHistory)
		r.Get("/file/version", h.WorkspaceFileVersion)
		r.Post("/file/rollback", h.RollbackWorkspaceFile)
		r.Get("/file/diff", h.DiffWorkspaceFile)
		r.Post("/assets", h.UploadWorkspaceAsset)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
