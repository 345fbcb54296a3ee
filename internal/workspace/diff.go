package workspace

import (
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/starford/studykb/internal/apperr"
)

// DiffVersions produces a unified diff between two snapshots of a workspace
// file. An empty toVersion diffs the snapshot against the file's current
// content.
func (s *Service) DiffVersions(category, progressID, filePath, fromVersion, toVersion string) (string, error) {
	from, err := s.GetFileVersion(category, progressID, filePath, fromVersion)
	if err != nil {
		return "", err
	}

	var to, toLabel string
	if toVersion == "" {
		abs, err := s.resolve(s.Dir(category, progressID), filePath)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("workspace: file %s: %w", filePath, apperr.ErrNotFound)
			}
			return "", fmt.Errorf("workspace: read %s: %w", filePath, err)
		}
		to = string(data)
		toLabel = filePath + " (current)"
	} else {
		to, err = s.GetFileVersion(category, progressID, filePath, toVersion)
		if err != nil {
			return "", err
		}
		toLabel = filePath + " @ " + toVersion
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(from),
		B:        difflib.SplitLines(to),
		FromFile: filePath + " @ " + fromVersion,
		ToFile:   toLabel,
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("workspace: diff: %w", err)
	}
	return diff, nil
}
