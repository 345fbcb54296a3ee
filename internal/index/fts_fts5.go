//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS materials_fts USING fts5(
			path UNINDEXED,
			category UNINDEXED,
			material,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, category, material, title, body string) error {
	_, _ = tx.Exec(`DELETE FROM materials_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO materials_fts (path, category, material, title, body) VALUES (?, ?, ?, ?, ?)`,
		path, category, material, title, body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM materials_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search, optionally restricted to one
// category, and returns matching results with snippets.
func (db *DB) Search(query, category string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
		SELECT path,
		       category,
		       material,
		       title,
		       snippet(materials_fts, 4, '<b>', '</b>', '...', 64)
		FROM materials_fts
		WHERE materials_fts MATCH ?`
	args := []any{query}
	if category != "" {
		q += ` AND category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY rank LIMIT ?`
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
