package index

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/studykb/internal/kb"
)

// Sync walks the knowledge base and brings the index up to date:
//   - new/changed materials are upserted
//   - materials removed from disk are deleted from the index
func Sync(db *DB, kbRoot string, logger *slog.Logger) error {
	paths, err := listMaterials(kbRoot)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(paths))
	for _, rel := range paths {
		disk[rel] = struct{}{}

		data, err := os.ReadFile(filepath.Join(kbRoot, filepath.FromSlash(rel)))
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		if checksums[rel] == checksumOf(data) {
			continue
		}
		if err := indexMaterial(db, rel, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", rel))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.Delete(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// listMaterials returns the kb-relative slash paths of every markdown file
// under root, skipping hidden directories. A missing root yields no paths.
func listMaterials(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	return out, err
}

// indexMaterial derives the row fields from the kb-relative path and upserts.
func indexMaterial(db *DB, rel string, data []byte) error {
	category := ""
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		category = rel[:i]
	}
	base := strings.TrimSuffix(filepath.Base(rel), ".md")

	row := MaterialRow{
		Path:      rel,
		Category:  category,
		Material:  base,
		Title:     kb.ExtractTitle(data),
		Checksum:  checksumOf(data),
		UpdatedAt: time.Now(),
	}
	return db.Upsert(row, string(data))
}

func checksumOf(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
