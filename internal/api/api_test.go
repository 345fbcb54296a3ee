package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/studykb/internal/index"
	"github.com/starford/studykb/internal/kb"
	"github.com/starford/studykb/internal/progress"
	"github.com/starford/studykb/internal/review"
	"github.com/starford/studykb/internal/workspace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv sets up a temp kb, progress store, workspace root, SQLite index,
// and router. authToken="" means disabled auth mode.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()

	kbRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(kbRoot, "os"), 0o755); err != nil {
		t.Fatal(err)
	}
	seed := "# Process Scheduling\n\nround robin\npriority queues\n"
	if err := os.WriteFile(filepath.Join(kbRoot, "os", "scheduling.md"), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	dbFile, err := os.CreateTemp("", "studykb-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := index.Sync(db, kbRoot, testLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	kbSvc := kb.NewService(kbRoot, 500)
	progressSvc := progress.NewService(t.TempDir(), review.NewScheduler(7, 1.5, 90))
	workspaceSvc, err := workspace.NewService(t.TempDir(), workspace.Limits{
		MaxFileSize:        1 << 20,
		MaxReadLines:       500,
		MaxHistoryVersions: 10,
	})
	if err != nil {
		t.Fatalf("workspace.NewService: %v", err)
	}

	h := NewHandler(kbSvc, progressSvc, workspaceSvc, db, nil, GrepLimits{ContextLines: 1, MaxMatches: 50})
	return NewRouter(h, authToken != "", authToken, nil)
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListCategoriesEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/categories", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp CategoryListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Categories) != 1 || resp.Categories[0].Name != "os" {
		t.Errorf("categories = %+v", resp.Categories)
	}
	if resp.Categories[0].Materials[0].Title != "Process Scheduling" {
		t.Errorf("material = %+v", resp.Categories[0].Materials[0])
	}
}

func TestReadMaterialEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/kb/os/scheduling?start_line=3&end_line=3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp MaterialResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Lines) != 1 || resp.Lines[0].Num != 3 || resp.Lines[0].Text != "round robin" {
		t.Errorf("lines = %+v", resp.Lines)
	}
}

func TestReadMaterialNotFound(t *testing.T) {
	router := testEnv(t, "")
	if w := doJSON(t, router, http.MethodGet, "/kb/os/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGrepEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/kb/os/grep?q=priority", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp GrepResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Material != "scheduling" {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Matches[0].LineNum != 4 {
		t.Errorf("match = %+v", resp.Results[0].Matches[0])
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/search?q=robin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Material != "scheduling" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router := testEnv(t, "")
	if w := doJSON(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestProgressCreateAndGet(t *testing.T) {
	router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/progress/ds", UpdateProgressRequest{
		ProgressID: "ds.graph.mst",
		Status:     "active",
		Name:       "Minimum spanning tree",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var upd UpdateProgressResponse
	_ = json.Unmarshal(w.Body.Bytes(), &upd)
	if !upd.IsNew || upd.Entry.Name != "Minimum spanning tree" {
		t.Errorf("response = %+v", upd)
	}

	w = doJSON(t, router, http.MethodGet, "/progress/ds", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var file progress.File
	_ = json.Unmarshal(w.Body.Bytes(), &file)
	if file.Entries["ds.graph.mst"] == nil {
		t.Errorf("entries = %+v", file.Entries)
	}
}

func TestProgressInvalidStatus(t *testing.T) {
	router := testEnv(t, "")
	w := doJSON(t, router, http.MethodPost, "/progress/ds", UpdateProgressRequest{
		ProgressID: "ds.x", Status: "bogus", Name: "X",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestProgressDelete(t *testing.T) {
	router := testEnv(t, "")
	doJSON(t, router, http.MethodPost, "/progress/ds", UpdateProgressRequest{
		ProgressID: "ds.x", Status: "active", Name: "X",
	})

	if w := doJSON(t, router, http.MethodDelete, "/progress/ds/ds.x", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodDelete, "/progress/ds/ds.x", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestWorkspaceWriteReadEditLifecycle(t *testing.T) {
	router := testEnv(t, "")
	base := "/workspaces/ds/ds.graph.mst"

	w := doJSON(t, router, http.MethodPut, base+"/file", WriteFileRequest{Path: "notes.md", Content: "alpha\nbeta\n"})
	if w.Code != http.StatusOK {
		t.Fatalf("write status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, base+"/file?path=notes.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read status = %d", w.Code)
	}
	var content FileContentResponse
	_ = json.Unmarshal(w.Body.Bytes(), &content)
	if len(content.Lines) != 2 || content.Lines[0].Text != "alpha" {
		t.Errorf("lines = %+v", content.Lines)
	}

	w = doJSON(t, router, http.MethodPost, base+"/file/edit", EditFileRequest{
		Path: "notes.md", OldString: "beta", NewString: "gamma",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("edit status = %d, body = %s", w.Code, w.Body.String())
	}
	var edit map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &edit)
	if edit["success"] != true {
		t.Fatalf("edit response = %+v", edit)
	}

	// Overwrite + edit each snapshot a version.
	w = doJSON(t, router, http.MethodGet, base+"/file/history?path=notes.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	var hist struct {
		Versions []struct {
			VersionID string `json:"version_id"`
			Operation string `json:"operation"`
		} `json:"versions"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &hist)
	if len(hist.Versions) != 2 {
		t.Fatalf("versions = %+v", hist.Versions)
	}
	if hist.Versions[0].Operation != "edit" {
		t.Errorf("newest operation = %q", hist.Versions[0].Operation)
	}

	// Pre-edit snapshot content, then rollback to it.
	editVersion := hist.Versions[0].VersionID
	w = doJSON(t, router, http.MethodGet, base+"/file/version?path=notes.md&version="+editVersion, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("version status = %d", w.Code)
	}
	var ver map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &ver)
	if ver["content"] != "alpha\nbeta\n" {
		t.Errorf("snapshot content = %q", ver["content"])
	}

	w = doJSON(t, router, http.MethodPost, base+"/file/rollback", RollbackRequest{Path: "notes.md", Version: editVersion})
	if w.Code != http.StatusOK {
		t.Fatalf("rollback status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, base+"/file?path=notes.md", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &content)
	if content.Lines[1].Text != "beta" {
		t.Errorf("after rollback lines = %+v", content.Lines)
	}

	// Diff between the edit snapshot and current (identical after rollback).
	w = doJSON(t, router, http.MethodGet, base+"/file/diff?path=notes.md&from="+editVersion, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("diff status = %d", w.Code)
	}
}

func TestWorkspaceEditAmbiguousMatchReported(t *testing.T) {
	router := testEnv(t, "")
	base := "/workspaces/ds/ds.x"

	doJSON(t, router, http.MethodPut, base+"/file", WriteFileRequest{Path: "a.md", Content: "dup\ndup\n"})
	w := doJSON(t, router, http.MethodPost, base+"/file/edit", EditFileRequest{
		Path: "a.md", OldString: "dup", NewString: "x",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("edit status = %d", w.Code)
	}
	var edit map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &edit)
	if edit["success"] != false {
		t.Fatalf("ambiguous edit should fail: %+v", edit)
	}
	if !strings.Contains(edit["error"].(string), "exact matches: 2") {
		t.Errorf("diagnostic = %v", edit["error"])
	}
}

func TestWorkspaceEditOmittedExpectedReplacements(t *testing.T) {
	router := testEnv(t, "")
	base := "/workspaces/ds/ds.x"

	doJSON(t, router, http.MethodPut, base+"/file", WriteFileRequest{Path: "a.md", Content: "alpha\nbeta\n"})

	// Omitting expected_replacements must behave as 1, not 0.
	w := doJSON(t, router, http.MethodPost, base+"/file/edit",
		json.RawMessage(`{"path":"a.md","old_str":"beta","new_str":"gamma"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("edit status = %d, body = %s", w.Code, w.Body.String())
	}
	var edit map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &edit)
	if edit["success"] != true {
		t.Fatalf("single-match edit without expected_replacements should succeed: %+v", edit)
	}

	// A search text with zero occurrences must fail the match, not be
	// accepted as a zero-count success that rewrites the file unchanged.
	w = doJSON(t, router, http.MethodPost, base+"/file/edit",
		json.RawMessage(`{"path":"a.md","old_str":"no such text","new_str":"x"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("edit status = %d", w.Code)
	}
	edit = map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &edit)
	if edit["success"] != false {
		t.Fatalf("absent search text should fail: %+v", edit)
	}

	// The failed edit must not have snapshotted anything: one version
	// from the write plus one from the successful edit.
	w = doJSON(t, router, http.MethodGet, base+"/file/history?path=a.md", nil)
	var hist struct {
		Versions []map[string]any `json:"versions"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &hist)
	if len(hist.Versions) != 2 {
		t.Errorf("versions = %d, want 2", len(hist.Versions))
	}
}

func TestWorkspaceDeleteFile(t *testing.T) {
	router := testEnv(t, "")
	base := "/workspaces/ds/ds.x"

	doJSON(t, router, http.MethodPut, base+"/file", WriteFileRequest{Path: "a.md", Content: "x"})
	if w := doJSON(t, router, http.MethodDelete, base+"/file?path=a.md", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, base+"/file?path=a.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("read after delete status = %d, want 404", w.Code)
	}
}

func TestWorkspacePathEscapeRejected(t *testing.T) {
	router := testEnv(t, "")
	base := "/workspaces/ds/ds.x"

	w := doJSON(t, router, http.MethodPut, base+"/file", WriteFileRequest{Path: "../../evil.md", Content: "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("escape write status = %d, want 400", w.Code)
	}
}

func TestWorkspaceListFiles(t *testing.T) {
	router := testEnv(t, "")
	base := "/workspaces/ds/ds.x"

	doJSON(t, router, http.MethodPut, base+"/file", WriteFileRequest{Path: "b.md", Content: "x"})
	doJSON(t, router, http.MethodPut, base+"/file", WriteFileRequest{Path: "a.md", Content: "y"})

	w := doJSON(t, router, http.MethodGet, base+"/files", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp FileListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Files) != 2 || resp.Files[0].Path != "a.md" {
		t.Errorf("files = %+v", resp.Files)
	}
}

func TestAssetUpload(t *testing.T) {
	router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "diagram.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("\x89PNG fake image data"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/workspaces/ds/ds.x/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp AssetUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Path != "assets/diagram.png" {
		t.Errorf("path = %q", resp.Path)
	}
}

func TestAssetUploadBadExtension(t *testing.T) {
	router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "payload.exe")
	_, _ = part.Write([]byte("nope"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/workspaces/ds/ds.x/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("upload status = %d, want 400", w.Code)
	}
}

func TestAuthTokenMode(t *testing.T) {
	router := testEnv(t, "sekrit")

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/categories", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("with token status = %d, want 200", w.Code)
	}
}
