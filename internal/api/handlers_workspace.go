package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const maxAssetUploadBytes = 50 << 20 // 50 MB multipart ceiling; per-file cap is enforced by the workspace service

func workspaceParams(r *http.Request) (category, progressID string) {
	return chi.URLParam(r, "category"), chi.URLParam(r, "progressID")
}

// ListWorkspaceFiles handles GET /workspaces/{category}/{progressID}/files.
func (h *Handler) ListWorkspaceFiles(w http.ResponseWriter, r *http.Request) {
	category, progressID := workspaceParams(r)

	files, err := h.workspace.ListFiles(category, progressID)
	if err != nil {
		writeServiceError(w, err, "list workspace files failed")
		return
	}
	writeJSON(w, http.StatusOK, FileListResponse{Files: files})
}

// ReadWorkspaceFile handles GET /workspaces/{category}/{progressID}/file.
func (h *Handler) ReadWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	category, progressID := workspaceParams(r)

	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	start, _ := strconv.Atoi(q.Get("start_line"))
	end, _ := strconv.Atoi(q.Get("end_line"))

	lines, truncated, err := h.workspace.ReadFile(category, progressID, path, start, end)
	if err != nil {
		writeServiceError(w, err, "read workspace file failed")
		return
	}
	writeJSON(w, http.StatusOK, FileContentResponse{Path: path, Lines: lines, Truncated: truncated})
}

// WriteWorkspaceFile handles PUT /workspaces/{category}/{progressID}/file.
func (h *Handler) WriteWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	category, progressID := workspaceParams(r)

	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req WriteFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	if err := h.workspace.WriteFile(category, progressID, req.Path, req.Content); err != nil {
		writeServiceError(w, err, "write workspace file failed")
		return
	}
	h.publishWorkspaceEvent("updated", category, progressID, req.Path)
	writeJSON(w, http.StatusOK, map[string]string{"path": req.Path, "status": "written"})
}

// EditWorkspaceFile handles POST /workspaces/{category}/{progressID}/file/edit.
// A failed match is a 200 with success=false: the diagnostic is the payload.
func (h *Handler) EditWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	category, progressID := workspaceParams(r)

	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req EditFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	expected := 1
	if req.ExpectedReplacements != nil {
		expected = *req.ExpectedReplacements
	}

	result, err := h.workspace.EditFile(category, progressID, req.Path, req.OldString, req.NewString, expected)
	if err != nil {
		writeServiceError(w, err, "edit workspace file failed")
		return
	}
	if result.Success {
		h.publishWorkspaceEvent("updated", category, progressID, req.Path)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":       req.Path,
		"success":    result.Success,
		"match_type": result.MatchType,
		"error":      result.Error,
	})
}

// DeleteWorkspaceFile handles DELETE /workspaces/{category}/{progressID}/file.
func (h *Handler) DeleteWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	category, progressID := workspaceParams(r)

	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}

	if err := h.workspace.DeleteFile(category, progressID, path); err != nil {
		writeServiceError(w, err, "delete workspace file failed")
		return
	}
	h.publishWorkspaceEvent("deleted", category, progressID, path)
	w.WriteHeader(http.StatusNoContent)
}

// WorkspaceFileHistory handles GET /workspaces/{category}/{progressID}/file/history.
func (h *Handler) WorkspaceFileHistory(w http.ResponseWriter, r *http.Request) {
	category, progressID := workspaceParams(r)

	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}

	versions, err := h.workspace.ListFileHistory(category, progressID, path)
	if err != nil {
		writeServiceError(w, err, "list file history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "versions": versions})
}

// WorkspaceFileVersion handles GET /workspaces/{category}/{progressID}/file/version.
func (h *Handler) WorkspaceFileVersion(w http.ResponseWriter, r *http.Request) {
	category, progressID := workspaceParams(r)

	q := r.URL.Query()
	path := q.Get("path")
	version := q.Get("version")
	if path == "" || version == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'path' and 'version' are required"))
		return
	}

	content, err := h.workspace.GetFileVersion(category, progressID, path, version)
	if err != nil {
		writeServiceError(w, err, "get file version failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path, "version": version, "content": content})
}

// RollbackWorkspaceFile handles POST /workspaces/{category}/{progressID}/file/rollback.
func (h *Handler) RollbackWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	category, progressID := workspaceParams(r)

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Version == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and version are required"))
		return
	}

	if err := h.workspace.RollbackFile(category, progressID, req.Path, req.Version); err != nil {
		writeServiceError(w, err, "rollback file failed")
		return
	}
	h.publishWorkspaceEvent("rolled_back", category, progressID, req.Path)
	writeJSON(w, http.StatusOK, map[string]string{"path": req.Path, "restored_version": req.Version})
}

// DiffWorkspaceFile handles GET /workspaces/{category}/{progressID}/file/diff.
func (h *Handler) DiffWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	category, progressID := workspaceParams(r)

	q := r.URL.Query()
	path := q.Get("path")
	from := q.Get("from")
	to := q.Get("to") // empty means current content
	if path == "" || from == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'path' and 'from' are required"))
		return
	}

	diff, err := h.workspace.DiffVersions(category, progressID, path, from, to)
	if err != nil {
		writeServiceError(w, err, "diff file versions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path, "diff": diff})
}

// UploadWorkspaceAsset handles POST /workspaces/{category}/{progressID}/assets
// (multipart/form-data, field "file").
func (h *Handler) UploadWorkspaceAsset(w http.ResponseWriter, r *http.Request) {
	category, progressID := workspaceParams(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxAssetUploadBytes)
	if err := r.ParseMultipartForm(maxAssetUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}

	relPath, err := h.workspace.SaveAsset(category, progressID, header.Filename, data)
	if err != nil {
		writeServiceError(w, err, "save asset failed")
		return
	}
	h.publishWorkspaceEvent("created", category, progressID, relPath)
	writeJSON(w, http.StatusCreated, AssetUploadResponse{Path: relPath, Size: int64(len(data))})
}
