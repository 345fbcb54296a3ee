//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses a LIKE fallback on the
	// materials.body column.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _, _, _ string) error {
	// Body is already stored in the materials table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query, category string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	q := `
		SELECT path, category, material, title, substr(body, 1, 200)
		FROM materials
		WHERE (title LIKE ? OR body LIKE ? OR material LIKE ?)`
	args := []any{like, like, like}
	if category != "" {
		q += ` AND category = ?`
		args = append(args, category)
	}
	q += ` LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Category, &r.Material, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
