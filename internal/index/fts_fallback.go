//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the entries table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ string, _ int, _, _ string) error {
	// Title and content are already stored in the entries table.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

// SearchEntries performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) SearchEntries(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT document, block_id, date, title, substr(content, 1, 200)
		FROM entries
		WHERE title LIKE ? OR content LIKE ?
		ORDER BY date, document, position
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Document, &r.BlockID, &r.Date, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
