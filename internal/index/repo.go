package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/dreamvault/internal/journal"
	"github.com/starford/dreamvault/internal/models"
)

// ReplaceDocument stores the extraction result of one document, replacing
// every entry, metric value and conflict previously stored for its path.
func (db *DB) ReplaceDocument(doc *journal.DocumentResult) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := deleteDocument(tx, doc.Path); err != nil {
		return err
	}

	warnings, _ := json.Marshal(nonNil(doc.Warnings))
	_, err = tx.Exec(`INSERT INTO documents (path, checksum, warnings, indexed_at) VALUES (?, ?, ?, ?)`,
		doc.Path, doc.Checksum, string(warnings), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: insert document: %w", err)
	}

	for i, e := range doc.Entries {
		id, err := insertEntry(tx, doc.Path, i, e)
		if err != nil {
			return err
		}
		if err := insertMetricValues(tx, id, e.Metrics); err != nil {
			return err
		}
		if err := ftsUpsert(tx, doc.Path, i, e.Title, e.Content); err != nil {
			return err
		}
	}

	for _, c := range doc.Conflicts {
		fv, _ := json.Marshal(c.FrontmatterValue)
		cv, _ := json.Marshal(c.CalloutValue)
		_, err := tx.Exec(`
			INSERT INTO conflicts (document, block_id, metric, frontmatter_value, callout_value, severity, suggested, applied)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, doc.Path, c.BlockID, c.Metric, string(fv), string(cv), c.Severity, c.SuggestedResolution, c.AppliedResolution)
		if err != nil {
			return fmt.Errorf("index: insert conflict: %w", err)
		}
	}

	return tx.Commit()
}

func insertEntry(tx *sql.Tx, path string, pos int, e models.DreamEntry) (int64, error) {
	metricsJSON, err := json.Marshal(e.Metrics)
	if err != nil {
		return 0, fmt.Errorf("index: encode metrics: %w", err)
	}
	unknown, _ := json.Marshal(nonNil(e.UnknownMetrics))
	calloutJSON, _ := json.Marshal(e.Callout)

	res, err := tx.Exec(`
		INSERT INTO entries (document, position, date, title, content, block_id, word_count,
		                     metrics, metrics_source, has_conflicts, unknown, callout)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, path, pos, e.Date, e.Title, e.Content, e.Source.BlockID, e.WordCount,
		string(metricsJSON), e.MetricsSource, e.HasConflicts, string(unknown), string(calloutJSON))
	if err != nil {
		return 0, fmt.Errorf("index: insert entry: %w", err)
	}
	return res.LastInsertId()
}

func insertMetricValues(tx *sql.Tx, entryID int64, values map[string]models.Value) error {
	if len(values) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO metric_values (entry_id, metric, value, num) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare metric insert: %w", err)
	}
	defer stmt.Close()

	for name, v := range values {
		if models.IsReserved(name) {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("index: encode metric %s: %w", name, err)
		}
		var num any
		if f, ok := v.Float(); ok {
			num = f
		}
		if _, err := stmt.Exec(entryID, name, string(raw), num); err != nil {
			return fmt.Errorf("index: insert metric value: %w", err)
		}
	}
	return nil
}

// DeleteDocument removes a document and everything extracted from it.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDocument(tx, path); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteDocument relies on ON DELETE CASCADE for entries, metric values and
// conflicts; the FTS table has no foreign key and is cleared explicitly.
func deleteDocument(tx *sql.Tx, path string) error {
	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}
	return nil
}

// AllChecksums returns path → checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
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

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
