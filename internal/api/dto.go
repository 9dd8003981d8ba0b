package api

import (
	"github.com/starford/dreamvault/internal/index"
	"github.com/starford/dreamvault/internal/metrics"
	"github.com/starford/dreamvault/internal/models"
	"github.com/starford/dreamvault/internal/scrape"
)

// EntryListResponse wraps paginated entry listings.
type EntryListResponse struct {
	Entries []models.DreamEntry `json:"entries" validate:"required"`
	Total   int                 `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// MetricSummaryResponse wraps per-metric statistics.
type MetricSummaryResponse struct {
	Metrics []metrics.Summary `json:"metrics" validate:"required"`
}

// ConflictListResponse wraps metric conflicts.
type ConflictListResponse struct {
	Conflicts []models.MetricConflict `json:"conflicts" validate:"required"`
}

// ScrapeRequest overrides the configured document selection for one scrape.
type ScrapeRequest struct {
	Mode           string   `json:"selection_mode" example:"folder" validate:"required"`
	Notes          []string `json:"notes,omitempty" example:"Journals/2025-06.md"`
	Folder         string   `json:"folder,omitempty" example:"Journals"`
	Recursive      bool     `json:"recursive,omitempty"`
	ExcludeFolders []string `json:"exclude_folders,omitempty" example:"Journals/Templates"`
	ExcludeNotes   []string `json:"exclude_notes,omitempty"`
	MaxDocuments   int      `json:"max_documents,omitempty" example:"500"`
}

// Selection converts the request into a scrape selection.
func (r ScrapeRequest) Selection() scrape.Selection {
	return scrape.Selection{
		Mode:           scrape.Mode(r.Mode),
		Notes:          r.Notes,
		Folder:         r.Folder,
		Recursive:      r.Recursive,
		ExcludeFolders: r.ExcludeFolders,
		ExcludeNotes:   r.ExcludeNotes,
		MaxDocuments:   r.MaxDocuments,
	}
}
