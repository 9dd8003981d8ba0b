package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/dreamvault/internal/metrics"
	"github.com/starford/dreamvault/internal/models"
)

// EntryFilter narrows entry queries. From and To are inclusive ISO dates.
type EntryFilter struct {
	From     string
	To       string
	Document string
	Limit    int
	Offset   int
}

func (f EntryFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.From != "" {
		conds = append(conds, "e.date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		conds = append(conds, "e.date <= ?")
		args = append(args, f.To)
	}
	if f.Document != "" {
		conds = append(conds, "e.document = ?")
		args = append(args, f.Document)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ConflictFilter narrows conflict queries.
type ConflictFilter struct {
	Document string
	Severity models.Severity
}

// SearchResult represents one search hit.
type SearchResult struct {
	Document string `json:"document"`
	BlockID  string `json:"block_id,omitempty"`
	Date     string `json:"date"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// Stats counts what the index holds.
type Stats struct {
	Documents int `json:"documents"`
	Entries   int `json:"entries"`
	Conflicts int `json:"conflicts"`
}

const entryColumns = `e.document, e.date, e.title, e.content, e.block_id, e.word_count,
	e.metrics, e.metrics_source, e.has_conflicts, e.unknown, e.callout`

// ListEntries returns entries ordered by date, then document order, and the
// total number of entries matching f.
func (db *DB) ListEntries(f EntryFilter) ([]models.DreamEntry, int, error) {
	where, args := f.where()

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries e`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count entries: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	q := `SELECT ` + entryColumns + ` FROM entries e` + where +
		` ORDER BY e.date, e.document, e.position LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(q, append(args, limit, max(f.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list entries: %w", err)
	}
	defer rows.Close()

	var out []models.DreamEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func scanEntry(rows *sql.Rows) (models.DreamEntry, error) {
	var e models.DreamEntry
	var metricsJSON, unknown, calloutJSON, source string
	err := rows.Scan(&e.Source.DocumentID, &e.Date, &e.Title, &e.Content, &e.Source.BlockID, &e.WordCount,
		&metricsJSON, &source, &e.HasConflicts, &unknown, &calloutJSON)
	if err != nil {
		return e, fmt.Errorf("index: scan entry: %w", err)
	}
	e.MetricsSource = models.Provenance(source)
	if err := json.Unmarshal([]byte(metricsJSON), &e.Metrics); err != nil {
		return e, fmt.Errorf("index: decode metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(unknown), &e.UnknownMetrics); err != nil {
		return e, fmt.Errorf("index: decode unknown metrics: %w", err)
	}
	if len(e.UnknownMetrics) == 0 {
		e.UnknownMetrics = nil
	}
	if err := json.Unmarshal([]byte(calloutJSON), &e.Callout); err != nil {
		return e, fmt.Errorf("index: decode callout: %w", err)
	}
	return e, nil
}

// Conflicts returns stored conflicts ordered by document.
func (db *DB) Conflicts(f ConflictFilter) ([]models.MetricConflict, error) {
	var conds []string
	var args []any
	if f.Document != "" {
		conds = append(conds, "document = ?")
		args = append(args, f.Document)
	}
	if f.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(f.Severity))
	}
	q := `SELECT document, block_id, metric, frontmatter_value, callout_value, severity, suggested, applied FROM conflicts`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY document, rowid"

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: conflicts: %w", err)
	}
	defer rows.Close()

	var out []models.MetricConflict
	for rows.Next() {
		var c models.MetricConflict
		var fv, cv, severity, suggested, applied string
		if err := rows.Scan(&c.Document, &c.BlockID, &c.Metric, &fv, &cv, &severity, &suggested, &applied); err != nil {
			return nil, fmt.Errorf("index: scan conflict: %w", err)
		}
		if err := json.Unmarshal([]byte(fv), &c.FrontmatterValue); err != nil {
			return nil, fmt.Errorf("index: decode conflict value: %w", err)
		}
		if err := json.Unmarshal([]byte(cv), &c.CalloutValue); err != nil {
			return nil, fmt.Errorf("index: decode conflict value: %w", err)
		}
		c.Severity = models.Severity(severity)
		c.SuggestedResolution = models.Resolution(suggested)
		c.AppliedResolution = models.Resolution(applied)
		out = append(out, c)
	}
	return out, rows.Err()
}

// MetricValues rebuilds the run-wide aggregate for the entries matching f.
// Limit and Offset are ignored.
func (db *DB) MetricValues(f EntryFilter) (metrics.Aggregate, error) {
	where, args := f.where()
	rows, err := db.conn.Query(`
		SELECT m.metric, m.value
		FROM metric_values m JOIN entries e ON e.id = m.entry_id`+where+`
		ORDER BY e.date, e.document, e.position, m.metric`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: metric values: %w", err)
	}
	defer rows.Close()

	agg := make(metrics.Aggregate)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("index: scan metric value: %w", err)
		}
		var v models.Value
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("index: decode metric value: %w", err)
		}
		agg[name] = append(agg[name], v)
	}
	return agg, rows.Err()
}

// Stats counts documents, entries and conflicts.
func (db *DB) Stats() (Stats, error) {
	var s Stats
	err := db.conn.QueryRow(`
		SELECT (SELECT count(*) FROM documents),
		       (SELECT count(*) FROM entries),
		       (SELECT count(*) FROM conflicts)
	`).Scan(&s.Documents, &s.Entries, &s.Conflicts)
	if err != nil {
		return s, fmt.Errorf("index: stats: %w", err)
	}
	return s, nil
}
