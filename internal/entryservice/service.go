// Package entryservice coordinates the scraper, the entry index and the
// document store for the HTTP and MCP layers.
package entryservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/dreamvault/internal/apperr"
	"github.com/starford/dreamvault/internal/callout"
	"github.com/starford/dreamvault/internal/checksum"
	"github.com/starford/dreamvault/internal/index"
	"github.com/starford/dreamvault/internal/journal"
	"github.com/starford/dreamvault/internal/metrics"
	"github.com/starford/dreamvault/internal/models"
	"github.com/starford/dreamvault/internal/parser"
	"github.com/starford/dreamvault/internal/scrape"
	"github.com/starford/dreamvault/internal/storage"
)

const isoDate = "2006-01-02"

// Service coordinates scraping, queries and front-matter write-back.
type Service struct {
	store     storage.Provider
	db        index.EntryIndex
	scraper   *scrape.Scraper
	selection scrape.Selection
	writeBack bool
	notify    index.EventCallback
	onScrape  func(*ScrapeReport)
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier registers a callback for index changes made by the service.
func WithNotifier(cb index.EventCallback) Option {
	return func(s *Service) { s.notify = cb }
}

// WithScrapeListener registers a callback run after every completed scrape.
func WithScrapeListener(fn func(*ScrapeReport)) Option {
	return func(s *Service) { s.onScrape = fn }
}

// WithWriteBack enables front-matter write-back.
func WithWriteBack(enabled bool) Option {
	return func(s *Service) { s.writeBack = enabled }
}

// New creates a Service. sel is the selection used when a scrape request
// does not bring its own.
func New(store storage.Provider, db index.EntryIndex, scraper *scrape.Scraper, sel scrape.Selection, opts ...Option) *Service {
	s := &Service{
		store:     store,
		db:        db,
		scraper:   scraper,
		selection: sel,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Selection returns the configured default selection.
func (s *Service) Selection() scrape.Selection { return s.selection }

// Preview extracts entries from content without touching the vault or the
// index.
func (s *Service) Preview(path string, content []byte) (*journal.DocumentResult, error) {
	if path == "" {
		path = "preview.md"
	}
	return s.scraper.Extractor().Extract(path, content)
}

// Format describes the journal layout the service extracts.
type Format struct {
	Callouts callout.Vocabulary    `json:"callouts"`
	Metrics  []models.MetricConfig `json:"metrics"`
}

// Format returns the configured callout names and metric vocabulary.
func (s *Service) Format() Format {
	x := s.scraper.Extractor()
	return Format{Callouts: x.Callouts(), Metrics: x.Vocabulary().Configs()}
}

// ScrapeReport summarizes a scrape request.
type ScrapeReport struct {
	RunID    string        `json:"run_id"`
	Tally    scrape.Tally  `json:"tally"`
	Failures []FailureItem `json:"failures"`
	Indexed  []string      `json:"indexed"`
	Removed  []string      `json:"removed"`
	Elapsed  string        `json:"elapsed"`
}

// FailureItem is one document that could not be processed.
type FailureItem struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Scrape syncs the index with sel, or with the default selection when sel is nil.
func (s *Service) Scrape(ctx context.Context, sel *scrape.Selection) (*ScrapeReport, error) {
	selection := s.selection
	if sel != nil {
		selection = *sel
	}
	res, err := index.Sync(ctx, s.db, s.scraper, selection, s.logger)
	if err != nil && res == nil {
		return nil, err
	}

	report := &ScrapeReport{
		RunID:    res.Run.RunID,
		Tally:    res.Run.Tally,
		Failures: make([]FailureItem, 0, len(res.Run.Failures)),
		Indexed:  nonNilSlice(res.Indexed),
		Removed:  nonNilSlice(res.Removed),
		Elapsed:  res.Run.FinishedAt.Sub(res.Run.StartedAt).Round(time.Millisecond).String(),
	}
	for _, f := range res.Run.Failures {
		report.Failures = append(report.Failures, FailureItem{Path: f.Path, Error: f.Err.Error()})
	}
	for _, p := range res.Removed {
		s.emit("deleted", p)
	}
	for _, p := range res.Indexed {
		s.emit("updated", p)
	}
	if err == nil && s.onScrape != nil {
		s.onScrape(report)
	}
	return report, err
}

// EntryQuery filters ListEntries and MetricSummary. Dates are YYYY-MM-DD.
type EntryQuery struct {
	From     string
	To       string
	Document string
	Limit    int
	Offset   int
}

func (q EntryQuery) filter() (index.EntryFilter, error) {
	for _, d := range []string{q.From, q.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(isoDate, d); err != nil {
			return index.EntryFilter{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", apperr.ErrInvalidInput, d)
		}
	}
	if q.From != "" && q.To != "" && q.From > q.To {
		return index.EntryFilter{}, fmt.Errorf("%w: from is after to", apperr.ErrInvalidInput)
	}
	return index.EntryFilter{From: q.From, To: q.To, Document: q.Document, Limit: q.Limit, Offset: q.Offset}, nil
}

// ListEntries returns indexed entries and the total matching q.
func (s *Service) ListEntries(_ context.Context, q EntryQuery) ([]models.DreamEntry, int, error) {
	f, err := q.filter()
	if err != nil {
		return nil, 0, err
	}
	entries, total, err := s.db.ListEntries(f)
	if err != nil {
		return nil, 0, err
	}
	return nonNilSlice(entries), total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", apperr.ErrInvalidInput)
	}
	res, err := s.db.SearchEntries(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// MetricSummary computes per-metric statistics over the entries matching q.
func (s *Service) MetricSummary(_ context.Context, q EntryQuery) ([]metrics.Summary, error) {
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	agg, err := s.db.MetricValues(f)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(metrics.Summarize(agg)), nil
}

// Conflicts returns stored conflicts, optionally for one document or severity.
func (s *Service) Conflicts(_ context.Context, document string, severity models.Severity) ([]models.MetricConflict, error) {
	switch severity {
	case "", models.SeverityLow, models.SeverityMedium, models.SeverityHigh:
	default:
		return nil, fmt.Errorf("%w: unknown severity %q", apperr.ErrInvalidInput, severity)
	}
	res, err := s.db.Conflicts(index.ConflictFilter{Document: document, Severity: severity})
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// Stats returns index counts.
func (s *Service) Stats(_ context.Context) (index.Stats, error) {
	return s.db.Stats()
}

// WriteBackResult describes a front-matter write-back.
type WriteBackResult struct {
	Path     string         `json:"path"`
	Updated  map[string]any `json:"updated"`
	Checksum string         `json:"checksum"`
	Changed  bool           `json:"changed"`
}

// WriteBack writes the reconciled metrics of the document's single dream
// entry into its front matter. ifMatch, when set, must equal the current
// checksum of the document.
func (s *Service) WriteBack(ctx context.Context, path, ifMatch string) (*WriteBackResult, error) {
	if !s.writeBack {
		return nil, fmt.Errorf("%w: front-matter write-back is disabled", apperr.ErrInvalidInput)
	}
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	sum := checksum.Sum(data)
	if ifMatch != "" && ifMatch != sum {
		return nil, apperr.ErrConflict
	}

	x := s.scraper.Extractor()
	doc, err := x.Extract(path, data)
	if err != nil {
		return nil, err
	}
	switch len(doc.Entries) {
	case 0:
		return nil, fmt.Errorf("%w: no dream entry in %s", apperr.ErrNotFound, path)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s has %d", apperr.ErrAmbiguousWriteBack, path, len(doc.Entries))
	}

	em := models.ExtractedMetrics{Values: doc.Entries[0].Metrics, Source: doc.Entries[0].MetricsSource}
	updates := metrics.FrontmatterUpdates(em, x.Vocabulary(), x.FrontmatterOptions())
	res := &WriteBackResult{Path: path, Updated: updates, Checksum: sum}
	if len(updates) == 0 {
		return res, nil
	}

	out, err := parser.UpdateFrontmatter(data, updates)
	if err != nil {
		return nil, err
	}
	if checksum.Equal(out, sum) {
		return res, nil
	}
	if err := s.store.Write(path, out); err != nil {
		return nil, err
	}
	res.Checksum = checksum.Sum(out)
	res.Changed = true
	s.logger.Info("write-back: front matter updated", slog.String("path", path), slog.Int("properties", len(updates)))

	updated, err := s.scraper.ScrapeDocument(ctx, path)
	if err != nil {
		return res, err
	}
	if err := s.db.ReplaceDocument(updated); err != nil {
		return res, err
	}
	s.emit("updated", path)
	return res, nil
}

func (s *Service) emit(kind, path string) {
	if s.notify != nil {
		s.notify(kind, path)
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
