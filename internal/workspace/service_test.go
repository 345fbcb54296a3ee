package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/studykb/internal/apperr"
	"github.com/starford/studykb/internal/history"
)

func testService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(t.TempDir(), Limits{
		MaxFileSize:        1 << 20,
		MaxReadLines:       500,
		MaxHistoryVersions: 50,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func readLinesJoined(t *testing.T, svc *Service, category, progressID, path string) string {
	t.Helper()
	lines, _, err := svc.ReadFile(category, progressID, path, 0, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var texts []string
	for _, l := range lines {
		texts = append(texts, l.Text)
	}
	return strings.Join(texts, "\n")
}

func TestWriteAndReadFile(t *testing.T) {
	svc := testService(t)

	if err := svc.WriteFile("ds", "ds.graph.mst", "note.md", "# MST\nKruskal\n"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	lines, truncated, err := svc.ReadFile("ds", "ds.graph.mst", "note.md", 0, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if truncated {
		t.Error("unexpected truncation")
	}
	if len(lines) != 2 || lines[0].Num != 1 || lines[0].Text != "# MST" || lines[1].Text != "Kruskal" {
		t.Errorf("lines = %+v", lines)
	}
}

func TestProgressIDDotsBecomeUnderscores(t *testing.T) {
	svc := testService(t)
	_ = svc.WriteFile("ds", "ds.graph.mst.kruskal", "note.md", "x")

	want := filepath.Join(svc.root, "ds", "ds_graph_mst_kruskal", "note.md")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("file not at expected workspace path: %v", err)
	}
}

func TestReadFileRange(t *testing.T) {
	svc := testService(t)
	var sb strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	_ = svc.WriteFile("c", "p", "note.md", sb.String())

	lines, truncated, err := svc.ReadFile("c", "p", "note.md", 3, 5)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if truncated {
		t.Error("unexpected truncation")
	}
	if len(lines) != 3 || lines[0].Num != 3 || lines[0].Text != "line 3" || lines[2].Num != 5 {
		t.Errorf("lines = %+v", lines)
	}
}

func TestReadFileTruncation(t *testing.T) {
	svc, err := NewService(t.TempDir(), Limits{MaxFileSize: 1 << 20, MaxReadLines: 3, MaxHistoryVersions: 50})
	if err != nil {
		t.Fatal(err)
	}
	_ = svc.WriteFile("c", "p", "note.md", "1\n2\n3\n4\n5\n6\n")

	lines, truncated, err := svc.ReadFile("c", "p", "note.md", 0, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !truncated {
		t.Error("expected truncation")
	}
	if len(lines) != 3 || lines[2].Num != 3 {
		t.Errorf("lines = %+v", lines)
	}
}

func TestReadFileMissing(t *testing.T) {
	svc := testService(t)
	_, _, err := svc.ReadFile("c", "p", "missing.md", 0, 0)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReadFileTooLarge(t *testing.T) {
	svc, err := NewService(t.TempDir(), Limits{MaxFileSize: 8, MaxReadLines: 500, MaxHistoryVersions: 50})
	if err != nil {
		t.Fatal(err)
	}
	// Bypass WriteFile's own size check.
	dir := svc.Dir("c", "p")
	_ = os.MkdirAll(dir, 0o755)
	_ = os.WriteFile(filepath.Join(dir, "big.md"), []byte("far too large for the limit"), 0o644)

	_, _, err = svc.ReadFile("c", "p", "big.md", 0, 0)
	if !errors.Is(err, apperr.ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestWriteFileTooLarge(t *testing.T) {
	svc, err := NewService(t.TempDir(), Limits{MaxFileSize: 4, MaxReadLines: 500, MaxHistoryVersions: 50})
	if err != nil {
		t.Fatal(err)
	}
	err = svc.WriteFile("c", "p", "note.md", "beyond the cap")
	if !errors.Is(err, apperr.ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestSandboxEnforcement(t *testing.T) {
	svc := testService(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
		"a/../../escape.md",
	}
	for _, p := range cases {
		if _, _, err := svc.ReadFile("c", "p", p, 0, 0); !errors.Is(err, apperr.ErrPathEscape) {
			t.Errorf("ReadFile(%q) err = %v, want ErrPathEscape", p, err)
		}
		if err := svc.WriteFile("c", "p", p, "x"); !errors.Is(err, apperr.ErrPathEscape) {
			t.Errorf("WriteFile(%q) err = %v, want ErrPathEscape", p, err)
		}
		if err := svc.DeleteFile("c", "p", p); !errors.Is(err, apperr.ErrPathEscape) {
			t.Errorf("DeleteFile(%q) err = %v, want ErrPathEscape", p, err)
		}
	}
}

func TestSandboxRejectsSymlinkEscape(t *testing.T) {
	svc := testService(t)
	_ = svc.WriteFile("c", "p", "note.md", "x")

	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.md"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}

	// A symlinked directory inside the workspace pointing outside it.
	if err := os.Symlink(outside, filepath.Join(svc.Dir("c", "p"), "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, _, err := svc.ReadFile("c", "p", "link/secret.md", 0, 0); !errors.Is(err, apperr.ErrPathEscape) {
		t.Errorf("ReadFile through symlink err = %v, want ErrPathEscape", err)
	}
	if err := svc.WriteFile("c", "p", "link/evil.md", "x"); !errors.Is(err, apperr.ErrPathEscape) {
		t.Errorf("WriteFile through symlink err = %v, want ErrPathEscape", err)
	}

	// A symlinked file is rejected the same way.
	if err := os.Symlink(filepath.Join(outside, "secret.md"), filepath.Join(svc.Dir("c", "p"), "alias.md")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.ReadFile("c", "p", "alias.md", 0, 0); !errors.Is(err, apperr.ErrPathEscape) {
		t.Errorf("ReadFile symlinked file err = %v, want ErrPathEscape", err)
	}
}

func TestCreateSnapshotsNewContent(t *testing.T) {
	svc := testService(t)
	_ = svc.WriteFile("c", "p", "note.md", "first")

	versions, err := svc.ListFileHistory("c", "p", "note.md")
	if err != nil {
		t.Fatalf("ListFileHistory: %v", err)
	}
	if len(versions) != 1 || versions[0].Operation != history.OpCreate {
		t.Fatalf("versions = %+v", versions)
	}
	content, err := svc.GetFileVersion("c", "p", "note.md", versions[0].VersionID)
	if err != nil || content != "first" {
		t.Errorf("content = %q, err = %v", content, err)
	}
}

func TestOverwriteSnapshotsOldContent(t *testing.T) {
	svc := testService(t)
	_ = svc.WriteFile("c", "p", "note.md", "old body")
	_ = svc.WriteFile("c", "p", "note.md", "new body")

	versions, _ := svc.ListFileHistory("c", "p", "note.md")
	if len(versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(versions))
	}
	if versions[0].Operation != history.OpWrite {
		t.Errorf("newest op = %s, want write", versions[0].Operation)
	}
	content, _ := svc.GetFileVersion("c", "p", "note.md", versions[0].VersionID)
	if content != "old body" {
		t.Errorf("write snapshot holds %q, want the pre-overwrite content", content)
	}
}

func TestEditFileSuccess(t *testing.T) {
	svc := testService(t)
	_ = svc.WriteFile("c", "p", "note.md", "alpha beta gamma\n")

	res, err := svc.EditFile("c", "p", "note.md", "beta", "BETA", 1)
	if err != nil {
		t.Fatalf("EditFile: %v", err)
	}
	if !res.Success || res.MatchType != "exact" {
		t.Fatalf("result = %+v", res)
	}
	if got := readLinesJoined(t, svc, "c", "p", "note.md"); got != "alpha BETA gamma" {
		t.Errorf("file = %q", got)
	}

	// Pre-edit content snapshotted with operation=edit.
	versions, _ := svc.ListFileHistory("c", "p", "note.md")
	if versions[0].Operation != history.OpEdit {
		t.Errorf("newest op = %s, want edit", versions[0].Operation)
	}
	content, _ := svc.GetFileVersion("c", "p", "note.md", versions[0].VersionID)
	if content != "alpha beta gamma\n" {
		t.Errorf("edit snapshot = %q", content)
	}
}

func TestEditFileAmbiguousNoWriteNoSnapshot(t *testing.T) {
	svc := testService(t)
	_ = svc.WriteFile("c", "p", "note.md", "dup\ndup\n")

	res, err := svc.EditFile("c", "p", "note.md", "dup", "x", 1)
	if err != nil {
		t.Fatalf("EditFile returned error for ambiguous match: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if got := readLinesJoined(t, svc, "c", "p", "note.md"); got != "dup\ndup" {
		t.Errorf("file modified on failed edit: %q", got)
	}
	versions, _ := svc.ListFileHistory("c", "p", "note.md")
	if len(versions) != 1 {
		t.Errorf("failed edit added a snapshot: %+v", versions)
	}
}

func TestEditFileMissing(t *testing.T) {
	svc := testService(t)
	_, err := svc.EditFile("c", "p", "missing.md", "a", "b", 1)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteFile(t *testing.T) {
	svc := testService(t)
	_ = svc.WriteFile("c", "p", "note.md", "doomed")

	if err := svc.DeleteFile("c", "p", "note.md"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, _, err := svc.ReadFile("c", "p", "note.md", 0, 0); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("read after delete err = %v, want ErrNotFound", err)
	}

	// History survives deletion, including the delete-time snapshot.
	versions, _ := svc.ListFileHistory("c", "p", "note.md")
	if len(versions) != 2 || versions[0].Operation != history.OpDelete {
		t.Fatalf("versions = %+v", versions)
	}
	content, err := svc.GetFileVersion("c", "p", "note.md", versions[0].VersionID)
	if err != nil || content != "doomed" {
		t.Errorf("delete snapshot = %q, err = %v", content, err)
	}
}

func TestDeleteDirectoryRejected(t *testing.T) {
	svc := testService(t)
	_ = svc.WriteFile("c", "p", "sub/note.md", "x")

	err := svc.DeleteFile("c", "p", "sub")
	if !errors.Is(err, apperr.ErrIsDirectory) {
		t.Errorf("err = %v, want ErrIsDirectory", err)
	}
}

func TestDeleteBinarySkipsSnapshot(t *testing.T) {
	svc := testService(t)
	dir := svc.Dir("c", "p")
	_ = os.MkdirAll(dir, 0o755)
	_ = os.WriteFile(filepath.Join(dir, "blob.bin"), []byte{0xff, 0xfe, 0x00, 0x80}, 0o644)

	if err := svc.DeleteFile("c", "p", "blob.bin"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	versions, _ := svc.ListFileHistory("c", "p", "blob.bin")
	if len(versions) != 0 {
		t.Errorf("binary delete recorded a snapshot: %+v", versions)
	}
}

func TestListFilesExcludesHistory(t *testing.T) {
	svc := testService(t)
	_ = svc.WriteFile("c", "p", "note.md", "a")
	_ = svc.WriteFile("c", "p", "code/main.go", "package main")

	files, err := svc.ListFiles("c", "p")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %+v", files)
	}
	// Sorted by path.
	if files[0].Path != "code/main.go" || files[1].Path != "note.md" {
		t.Errorf("order = [%s %s]", files[0].Path, files[1].Path)
	}
	for _, f := range files {
		if strings.HasPrefix(f.Path, history.Dir) {
			t.Errorf("history subtree leaked into listing: %s", f.Path)
		}
	}
}

func TestListFilesMissingWorkspace(t *testing.T) {
	svc := testService(t)
	files, err := svc.ListFiles("nope", "nope")
	if err != nil || len(files) != 0 {
		t.Errorf("files = %+v, err = %v", files, err)
	}
}

func TestRollbackPreservesHistory(t *testing.T) {
	svc := testService(t)
	_ = svc.WriteFile("c", "p", "note.md", "C1")
	_ = svc.WriteFile("c", "p", "note.md", "C2")

	// Find the version holding C1 (the snapshot taken when C2 overwrote it).
	versions, _ := svc.ListFileHistory("c", "p", "note.md")
	var c1Version string
	for _, v := range versions {
		content, _ := svc.GetFileVersion("c", "p", "note.md", v.VersionID)
		if content == "C1" {
			c1Version = v.VersionID
			break
		}
	}
	if c1Version == "" {
		t.Fatal("no version holds C1")
	}

	if err := svc.RollbackFile("c", "p", "note.md", c1Version); err != nil {
		t.Fatalf("RollbackFile: %v", err)
	}
	if got := readLinesJoined(t, svc, "c", "p", "note.md"); got != "C1" {
		t.Errorf("file after rollback = %q, want C1", got)
	}

	// The pre-rollback C2 state must still be reachable.
	versions, _ = svc.ListFileHistory("c", "p", "note.md")
	foundC2 := false
	for _, v := range versions {
		content, _ := svc.GetFileVersion("c", "p", "note.md", v.VersionID)
		if content == "C2" {
			foundC2 = true
			break
		}
	}
	if !foundC2 {
		t.Error("rollback destroyed the pre-rollback state")
	}
}

func TestRetentionCapOnDisk(t *testing.T) {
	svc, err := NewService(t.TempDir(), Limits{MaxFileSize: 1 << 20, MaxReadLines: 500, MaxHistoryVersions: 4})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 9; i++ {
		if err := svc.WriteFile("c", "p", "note.md", fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("WriteFile %d: %v", i, err)
		}
	}

	versions, _ := svc.ListFileHistory("c", "p", "note.md")
	if len(versions) != 4 {
		t.Errorf("ledger len = %d, want 4", len(versions))
	}
	blobs, _ := filepath.Glob(filepath.Join(svc.Dir("c", "p"), history.Dir, "note.md", "*.snapshot"))
	if len(blobs) != 4 {
		t.Errorf("snapshot blobs = %d, want 4", len(blobs))
	}
}

func TestDiffVersions(t *testing.T) {
	svc := testService(t)
	_ = svc.WriteFile("c", "p", "note.md", "a\nb\nc\n")
	_ = svc.WriteFile("c", "p", "note.md", "a\nB\nc\n")

	versions, _ := svc.ListFileHistory("c", "p", "note.md")
	// Newest entry snapshots the pre-overwrite content "a\nb\nc\n".
	diff, err := svc.DiffVersions("c", "p", "note.md", versions[0].VersionID, "")
	if err != nil {
		t.Fatalf("DiffVersions: %v", err)
	}
	if !strings.Contains(diff, "-b") || !strings.Contains(diff, "+B") {
		t.Errorf("diff = %q", diff)
	}
}

func TestSaveAsset(t *testing.T) {
	svc := testService(t)

	rel, err := svc.SaveAsset("c", "p", "figure one.png", []byte{0x89, 0x50, 0x4e, 0x47})
	if err != nil {
		t.Fatalf("SaveAsset: %v", err)
	}
	if rel != "assets/figure_one.png" {
		t.Errorf("rel = %q", rel)
	}

	if _, err := svc.SaveAsset("c", "p", "figure one.png", []byte{1}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate asset err = %v, want ErrAlreadyExists", err)
	}
	if _, err := svc.SaveAsset("c", "p", "evil.exe", []byte{1}); err == nil {
		t.Error("expected error for disallowed extension")
	}
}
