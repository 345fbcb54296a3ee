package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/studykb/internal/progress"
)

// GetProgress handles GET /progress/{category}.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	q := r.URL.Query()
	var statuses []progress.Status
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := progress.Status(strings.TrimSpace(s))
			if !progress.ValidStatus(st) {
				writeJSON(w, http.StatusBadRequest, errorBody("invalid status filter: "+s))
				return
			}
			statuses = append(statuses, st)
		}
	}
	since := q.Get("since")
	if since == "" {
		since = progress.SinceAll
	}
	limit := -1
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	file, err := h.progress.Get(category, statuses, since, limit)
	if err != nil {
		writeServiceError(w, err, "get progress failed")
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// UpdateProgress handles POST /progress/{category}.
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpdateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ProgressID == "" || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("progress_id and status are required"))
		return
	}

	entry, isNew, oldStatus, err := h.progress.Update(category, req.ProgressID, progress.Status(req.Status), req.Name, req.Comment)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, UpdateProgressResponse{
		ProgressID: req.ProgressID,
		Entry:      entry,
		IsNew:      isNew,
		OldStatus:  string(oldStatus),
	})
}

// DeleteProgress handles DELETE /progress/{category}/{progressID}.
func (h *Handler) DeleteProgress(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	progressID := chi.URLParam(r, "progressID")

	if _, err := h.progress.Delete(category, progressID); err != nil {
		writeServiceError(w, err, "delete progress failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
