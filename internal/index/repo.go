package index

import (
	"fmt"
	"time"
)

// MaterialRow represents a row in the materials table.
type MaterialRow struct {
	Path      string // kb-relative path, e.g. "os/scheduling.md"
	Category  string
	Material  string // file name without the .md extension
	Title     string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path     string
	Category string
	Material string
	Title    string
	Snippet  string
}

// Upsert inserts or replaces a material and its FTS entry within a transaction.
func (db *DB) Upsert(m MaterialRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// Body lives in the materials table so the LIKE fallback can search it.
	_, err = tx.Exec(`
		INSERT INTO materials (path, category, material, title, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			category   = excluded.category,
			material   = excluded.material,
			title      = excluded.title,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, m.Path, m.Category, m.Material, m.Title, m.Checksum, body, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert material: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, m.Path, m.Category, m.Material, m.Title, body); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes a material and its FTS entry.
func (db *DB) Delete(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM materials WHERE path = ?`, path)

	return tx.Commit()
}

// AllChecksums returns path -> checksum for every indexed material.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM materials`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Count returns the number of indexed materials.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM materials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}
