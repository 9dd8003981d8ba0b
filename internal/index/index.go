package index

import (
	"github.com/starford/dreamvault/internal/journal"
	"github.com/starford/dreamvault/internal/metrics"
	"github.com/starford/dreamvault/internal/models"
)

// EntryIndex defines the interface for entry indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type EntryIndex interface {
	ReplaceDocument(doc *journal.DocumentResult) error
	DeleteDocument(path string) error
	ListEntries(f EntryFilter) ([]models.DreamEntry, int, error)
	SearchEntries(query string, limit int) ([]SearchResult, error)
	Conflicts(f ConflictFilter) ([]models.MetricConflict, error)
	MetricValues(f EntryFilter) (metrics.Aggregate, error)
	AllChecksums() (map[string]string, error)
	Stats() (Stats, error)
	Close() error
}

// Verify *DB satisfies EntryIndex at compile time.
var _ EntryIndex = (*DB)(nil)
