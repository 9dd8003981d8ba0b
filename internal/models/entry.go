package models

import "time"

// EntrySource points back to where an entry was found.
type EntrySource struct {
	DocumentID string `json:"document_id"`
	BlockID    string `json:"block_id,omitempty"`
}

// CalloutMetadata describes the diary callout an entry came from.
type CalloutMetadata struct {
	Type     string   `json:"type"`
	ID       string   `json:"id,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// DreamEntry is one dream diary callout with its reconciled metrics.
type DreamEntry struct {
	Date           string           `json:"date"`
	Title          string           `json:"title"`
	Content        string           `json:"content"`
	Source         EntrySource      `json:"source"`
	WordCount      int              `json:"word_count"`
	Metrics        map[string]Value `json:"metrics"`
	MetricsSource  Provenance       `json:"metrics_source"`
	HasConflicts   bool             `json:"has_conflicts"`
	UnknownMetrics []string         `json:"unknown_metrics,omitempty"`
	Callout        CalloutMetadata  `json:"callout_metadata"`
}

// DocumentMeta is a lightweight description of a vault document.
type DocumentMeta struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
