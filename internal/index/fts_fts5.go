//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			document UNINDEXED,
			position UNINDEXED,
			title,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, document string, position int, title, content string) error {
	_, err := tx.Exec(`INSERT INTO entries_fts (document, position, title, content) VALUES (?, ?, ?, ?)`,
		document, position, title, content)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, document string) error {
	if _, err := tx.Exec(`DELETE FROM entries_fts WHERE document = ?`, document); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// SearchEntries performs an FTS5 full-text search over entry titles and
// content and returns matching entries with snippets.
func (db *DB) SearchEntries(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.document,
		       e.block_id,
		       e.date,
		       e.title,
		       snippet(entries_fts, 3, '<b>', '</b>', '...', 32)
		FROM entries_fts f
		JOIN entries e ON e.document = f.document AND e.position = f.position
		WHERE entries_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
