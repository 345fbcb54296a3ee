package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/studykb/internal/apperr"
	"github.com/starford/studykb/internal/atomicfile"
)

// assetsDir is the workspace subdirectory for binary attachments.
const assetsDir = "assets"

var (
	allowedAssetExts = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".webp": true, ".svg": true, ".pdf": true,
	}
	unsafeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// SaveAsset stores an uploaded attachment under the workspace assets
// directory and returns its workspace-relative path. The filename is
// sanitized, the extension must be on the allow-list, and existing assets
// are never overwritten.
func (s *Service) SaveAsset(category, progressID, filename string, data []byte) (string, error) {
	if int64(len(data)) > s.limits.MaxFileSize {
		return "", fmt.Errorf("workspace: asset is %d bytes (max %d): %w",
			len(data), s.limits.MaxFileSize, apperr.ErrTooLarge)
	}

	filename = unsafeFilenameRe.ReplaceAllString(filepath.Base(filename), "_")
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedAssetExts[ext] {
		return "", fmt.Errorf("workspace: unsupported asset extension %q (allowed: png, jpg, jpeg, gif, webp, svg, pdf)", ext)
	}

	relPath := filepath.ToSlash(filepath.Join(assetsDir, filename))
	workspaceDir := s.Dir(category, progressID)
	abs, err := s.resolve(workspaceDir, relPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err == nil {
		return "", fmt.Errorf("workspace: asset %s: %w", relPath, apperr.ErrAlreadyExists)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("workspace: mkdir assets: %w", err)
	}
	if err := atomicfile.WriteFile(abs, data); err != nil {
		return "", fmt.Errorf("workspace: write asset: %w", err)
	}
	return relPath, nil
}
