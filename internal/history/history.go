// Package history stores versioned full-file snapshots for one workspace
// directory. Every workspace mutation records an immutable snapshot plus a
// metadata entry in a per-file ledger, enabling diff and rollback.
//
// Layout under the workspace root:
//
//	.history/
//	    {relative_file_path}.history.json   # ledger, versions newest first
//	    {relative_file_path}/
//	        {version_id}.snapshot           # full content at that version
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/starford/studykb/internal/apperr"
	"github.com/starford/studykb/internal/atomicfile"
)

// Dir is the reserved subdirectory holding all ledgers and snapshots.
const Dir = ".history"

// Snapshot operations.
const (
	OpCreate = "create"
	OpWrite  = "write"
	OpEdit   = "edit"
	OpDelete = "delete"
)

// Version is one ledger entry describing a snapshot.
type Version struct {
	VersionID   string `json:"version_id"`
	Timestamp   string `json:"timestamp"`
	Operation   string `json:"operation"`
	Description string `json:"description"`
	Size        int    `json:"size"`
	Lines       int    `json:"lines"`
}

// Ledger is the ordered version list for one tracked file, newest first.
type Ledger struct {
	FilePath string    `json:"file_path"`
	Versions []Version `json:"versions"`
}

// Service manages version history for a single workspace directory.
type Service struct {
	workspace   string
	maxVersions int
}

// New creates a history service scoped to the given workspace directory,
// retaining at most maxVersions snapshots per file.
func New(workspace string, maxVersions int) *Service {
	return &Service{workspace: workspace, maxVersions: maxVersions}
}

func (s *Service) root() string {
	return filepath.Join(s.workspace, Dir)
}

func (s *Service) ledgerPath(filePath string) string {
	return filepath.Join(s.root(), filePath+".history.json")
}

func (s *Service) snapshotDir(filePath string) string {
	return filepath.Join(s.root(), filePath)
}

func (s *Service) snapshotPath(filePath, versionID string) string {
	return filepath.Join(s.snapshotDir(filePath), versionID+".snapshot")
}

// SaveSnapshot writes content as a new snapshot of filePath, prepends a
// metadata entry to the file's ledger, prunes entries beyond the retention
// cap, and returns the new version id (decimal milliseconds since epoch).
func (s *Service) SaveSnapshot(filePath, content, operation, description string) (string, error) {
	ledger, err := s.readLedger(filePath)
	if err != nil {
		return "", err
	}

	versionID := strconv.FormatInt(time.Now().UnixMilli(), 10)
	// Successive saves within the same millisecond would collide; bump
	// until the id is unique within this file's ledger.
	if len(ledger.Versions) > 0 {
		if newest, parseErr := strconv.ParseInt(ledger.Versions[0].VersionID, 10, 64); parseErr == nil {
			if id, _ := strconv.ParseInt(versionID, 10, 64); id <= newest {
				versionID = strconv.FormatInt(newest+1, 10)
			}
		}
	}

	snapDir := s.snapshotDir(filePath)
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return "", fmt.Errorf("history: mkdir snapshot dir: %w", err)
	}
	if err := atomicfile.WriteFile(s.snapshotPath(filePath, versionID), []byte(content)); err != nil {
		return "", fmt.Errorf("history: write snapshot: %w", err)
	}

	if description == "" {
		description = defaultDescription(operation)
	}
	entry := Version{
		VersionID:   versionID,
		Timestamp:   time.Now().Format("2006-01-02T15:04:05-07:00"),
		Operation:   operation,
		Description: description,
		Size:        len(content),
		Lines:       countLines(content),
	}
	ledger.Versions = append([]Version{entry}, ledger.Versions...)

	s.prune(filePath, ledger)

	if err := s.writeLedger(filePath, ledger); err != nil {
		return "", err
	}
	return versionID, nil
}

// ListVersions returns the ledger entries for filePath, newest first.
// A file that has never been tracked yields an empty slice.
func (s *Service) ListVersions(filePath string) ([]Version, error) {
	ledger, err := s.readLedger(filePath)
	if err != nil {
		return nil, err
	}
	return ledger.Versions, nil
}

// GetVersionContent reads back the snapshot stored for (filePath, versionID).
// Returns apperr.ErrNotFound when the snapshot is missing or was pruned.
func (s *Service) GetVersionContent(filePath, versionID string) (string, error) {
	data, err := os.ReadFile(s.snapshotPath(filePath, versionID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("history: snapshot %s @ %s: %w", filePath, versionID, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("history: read snapshot: %w", err)
	}
	return string(data), nil
}

// prune drops ledger entries beyond the retention cap and best-effort
// deletes their snapshot blobs. A missing blob is not an error.
func (s *Service) prune(filePath string, ledger *Ledger) {
	if len(ledger.Versions) <= s.maxVersions {
		return
	}
	removed := ledger.Versions[s.maxVersions:]
	ledger.Versions = ledger.Versions[:s.maxVersions]
	for _, v := range removed {
		_ = os.Remove(s.snapshotPath(filePath, v.VersionID))
	}
}

func (s *Service) readLedger(filePath string) (*Ledger, error) {
	data, err := os.ReadFile(s.ledgerPath(filePath))
	if err != nil {
		if os.IsNotExist(err) {
			return &Ledger{FilePath: filePath, Versions: []Version{}}, nil
		}
		return nil, fmt.Errorf("history: read ledger: %w", err)
	}
	var ledger Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("history: parse ledger: %w", err)
	}
	return &ledger, nil
}

func (s *Service) writeLedger(filePath string, ledger *Ledger) error {
	path := s.ledgerPath(filePath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("history: mkdir ledger dir: %w", err)
	}
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode ledger: %w", err)
	}
	if err := atomicfile.WriteFile(path, data); err != nil {
		return fmt.Errorf("history: write ledger: %w", err)
	}
	return nil
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}

func defaultDescription(operation string) string {
	switch operation {
	case OpCreate:
		return "file created"
	case OpWrite:
		return "file overwritten"
	case OpEdit:
		return "file edited"
	case OpDelete:
		return "file deleted"
	default:
		return "file changed"
	}
}
