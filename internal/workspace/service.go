// Package workspace manages the per-progress-node scratch directories:
// sandboxed file read/write/edit/delete with a version snapshot recorded
// around every mutation.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/starford/studykb/internal/apperr"
	"github.com/starford/studykb/internal/atomicfile"
	"github.com/starford/studykb/internal/editor"
	"github.com/starford/studykb/internal/history"
)

// Limits bounds file sizes and read windows for workspace operations.
type Limits struct {
	MaxFileSize        int64 // bytes
	MaxReadLines       int   // lines per ReadFile call
	MaxHistoryVersions int   // snapshots retained per file
}

// Line is one numbered line returned by ReadFile.
type Line struct {
	Num  int    `json:"num"`
	Text string `json:"text"`
}

// FileInfo describes one workspace file in a listing.
type FileInfo struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Service orchestrates file operations against sandboxed workspace
// directories under root. Text edits are delegated to the edit strategy and
// durability/versioning to a per-workspace history service.
type Service struct {
	root     string // absolute path to the workspaces directory
	strategy *editor.Strategy
	limits   Limits
}

// NewService creates a workspace service rooted at the given directory.
// The directory is created if it does not exist.
func NewService(root string, limits Limits) (*Service, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create root: %w", err)
	}
	return &Service{root: abs, strategy: editor.New(), limits: limits}, nil
}

// Dir returns the workspace directory for a progress node. Dots in the
// progress id map to underscores so ids like "ds.graph.mst" stay one level.
func (s *Service) Dir(category, progressID string) string {
	return filepath.Join(s.root, category, strings.ReplaceAll(progressID, ".", "_"))
}

func (s *Service) historyFor(category, progressID string) *history.Service {
	return history.New(s.Dir(category, progressID), s.limits.MaxHistoryVersions)
}

// resolve canonicalizes filePath against the workspace directory and rejects
// any result outside it (directory traversal, absolute-path injection, and
// symlinks pointing out of the workspace).
func (s *Service) resolve(workspaceDir, filePath string) (string, error) {
	cleaned := filepath.Clean(filePath)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("workspace: absolute path %s: %w", filePath, apperr.ErrPathEscape)
	}
	abs, err := filepath.Abs(filepath.Join(workspaceDir, cleaned))
	if err != nil {
		return "", fmt.Errorf("workspace: resolve path: %w", err)
	}
	if !isDescendant(workspaceDir, abs) {
		return "", fmt.Errorf("workspace: path %s: %w", filePath, apperr.ErrPathEscape)
	}

	// Lexical containment is not enough: a symlink inside the workspace can
	// redirect the path outside it. Compare the real paths too.
	realAbs, err := resolveSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("workspace: resolve path: %w", err)
	}
	realDir, err := resolveSymlinks(workspaceDir)
	if err != nil {
		return "", fmt.Errorf("workspace: resolve path: %w", err)
	}
	if !isDescendant(realDir, realAbs) {
		return "", fmt.Errorf("workspace: path %s: %w", filePath, apperr.ErrPathEscape)
	}
	return abs, nil
}

func isDescendant(dir, path string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator))
}

// resolveSymlinks follows symlinks in the deepest existing ancestor of path
// and rejoins the not-yet-created remainder, so targets that do not exist
// yet (new files, new subdirectories) still canonicalize.
func resolveSymlinks(path string) (string, error) {
	suffix := ""
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(cur), suffix)
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		cur = parent
	}
}

// ReadFile returns the 1-based inclusive line range [startLine, endLine] of
// a workspace file (the whole file when both are 0), capped at the
// configured maximum line count. The second return reports truncation.
func (s *Service) ReadFile(category, progressID, filePath string, startLine, endLine int) ([]Line, bool, error) {
	abs, err := s.resolve(s.Dir(category, progressID), filePath)
	if err != nil {
		return nil, false, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, fmt.Errorf("workspace: file %s: %w", filePath, apperr.ErrNotFound)
		}
		return nil, false, fmt.Errorf("workspace: stat %s: %w", filePath, err)
	}
	if info.Size() > s.limits.MaxFileSize {
		return nil, false, fmt.Errorf("workspace: file is %d bytes (max %d): %w",
			info.Size(), s.limits.MaxFileSize, apperr.ErrTooLarge)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, false, fmt.Errorf("workspace: read %s: %w", filePath, err)
	}
	all := splitLines(string(data))

	if startLine <= 0 {
		startLine = 1
	}
	if endLine <= 0 || endLine > len(all) {
		endLine = len(all)
	}
	start := startLine - 1
	end := endLine
	truncated := false
	if end-start > s.limits.MaxReadLines {
		end = start + s.limits.MaxReadLines
		truncated = true
	}

	var lines []Line
	for i := start; i < end; i++ {
		lines = append(lines, Line{Num: i + 1, Text: all[i]})
	}
	return lines, truncated, nil
}

// WriteFile creates or overwrites a workspace file atomically. Overwrites
// snapshot the previous content first (operation=write); first-time creates
// snapshot the new content afterwards (operation=create), since there is no
// prior state to preserve.
func (s *Service) WriteFile(category, progressID, filePath, content string) error {
	if int64(len(content)) > s.limits.MaxFileSize {
		return fmt.Errorf("workspace: content is %d bytes (max %d): %w",
			len(content), s.limits.MaxFileSize, apperr.ErrTooLarge)
	}

	workspaceDir := s.Dir(category, progressID)
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return fmt.Errorf("workspace: create workspace: %w", err)
	}
	abs, err := s.resolve(workspaceDir, filePath)
	if err != nil {
		return err
	}

	hist := s.historyFor(category, progressID)
	existed := false
	if old, readErr := os.ReadFile(abs); readErr == nil {
		existed = true
		if _, err := hist.SaveSnapshot(filePath, string(old), history.OpWrite, ""); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("workspace: mkdir: %w", err)
	}
	if err := atomicfile.WriteFile(abs, []byte(content)); err != nil {
		return fmt.Errorf("workspace: write %s: %w", filePath, err)
	}

	if !existed {
		if _, err := hist.SaveSnapshot(filePath, content, history.OpCreate, ""); err != nil {
			return err
		}
	}
	return nil
}

// EditFile applies the three-tier replacement strategy to a workspace file.
// On success the pre-edit content is snapshotted (operation=edit) before the
// new content is written. A failed match is reported through the Result, not
// as an error, so callers can surface the diagnostic directly.
func (s *Service) EditFile(category, progressID, filePath, oldString, newString string, expectedReplacements int) (editor.Result, error) {
	abs, err := s.resolve(s.Dir(category, progressID), filePath)
	if err != nil {
		return editor.Result{}, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return editor.Result{}, fmt.Errorf("workspace: file %s: %w", filePath, apperr.ErrNotFound)
		}
		return editor.Result{}, fmt.Errorf("workspace: read %s: %w", filePath, err)
	}
	content := string(data)

	result := s.strategy.PerformReplacement(content, oldString, newString, expectedReplacements)
	if !result.Success {
		return result, nil
	}

	hist := s.historyFor(category, progressID)
	if _, err := hist.SaveSnapshot(filePath, content, history.OpEdit, ""); err != nil {
		return editor.Result{}, err
	}
	if err := atomicfile.WriteFile(abs, []byte(result.Content)); err != nil {
		return editor.Result{}, fmt.Errorf("workspace: write %s: %w", filePath, err)
	}
	return result, nil
}

// DeleteFile removes a workspace file. The pre-deletion content is
// snapshotted best-effort: undecodable (binary) content or a failed read
// skips the snapshot but never blocks the deletion.
func (s *Service) DeleteFile(category, progressID, filePath string) error {
	abs, err := s.resolve(s.Dir(category, progressID), filePath)
	if err != nil {
		return err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("workspace: file %s: %w", filePath, apperr.ErrNotFound)
		}
		return fmt.Errorf("workspace: stat %s: %w", filePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("workspace: %s: %w", filePath, apperr.ErrIsDirectory)
	}

	if data, readErr := os.ReadFile(abs); readErr == nil && utf8.Valid(data) {
		hist := s.historyFor(category, progressID)
		if _, snapErr := hist.SaveSnapshot(filePath, string(data), history.OpDelete, ""); snapErr != nil {
			slog.Warn("workspace: pre-delete snapshot failed",
				slog.String("path", filePath), slog.String("error", snapErr.Error()))
		}
	}

	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("workspace: delete %s: %w", filePath, err)
	}
	return nil
}

// ListFiles enumerates all files under the workspace, sorted by relative
// path. The reserved history subtree is excluded. A workspace that does not
// exist yet yields an empty listing.
func (s *Service) ListFiles(category, progressID string) ([]FileInfo, error) {
	workspaceDir := s.Dir(category, progressID)
	if _, err := os.Stat(workspaceDir); os.IsNotExist(err) {
		return []FileInfo{}, nil
	}

	var files []FileInfo
	err := filepath.WalkDir(workspaceDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == history.Dir {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(workspaceDir, p)
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{
			Path: filepath.ToSlash(rel),
			Type: "file",
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace: list: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	if files == nil {
		files = []FileInfo{}
	}
	return files, nil
}

// ListFileHistory returns the version ledger for a workspace file.
func (s *Service) ListFileHistory(category, progressID, filePath string) ([]history.Version, error) {
	if _, err := s.resolve(s.Dir(category, progressID), filePath); err != nil {
		return nil, err
	}
	return s.historyFor(category, progressID).ListVersions(filePath)
}

// GetFileVersion returns the snapshotted content of one version.
func (s *Service) GetFileVersion(category, progressID, filePath, versionID string) (string, error) {
	if _, err := s.resolve(s.Dir(category, progressID), filePath); err != nil {
		return "", err
	}
	return s.historyFor(category, progressID).GetVersionContent(filePath, versionID)
}

// RollbackFile restores a file to the content of a historical version by
// writing that snapshot through WriteFile. The pre-rollback state is
// snapshotted by WriteFile itself, so a rollback never destroys history.
func (s *Service) RollbackFile(category, progressID, filePath, versionID string) error {
	content, err := s.GetFileVersion(category, progressID, filePath, versionID)
	if err != nil {
		return err
	}
	return s.WriteFile(category, progressID, filePath, content)
}

// splitLines mirrors line-oriented reads: empty content has no lines, and a
// trailing newline does not introduce a phantom final line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
