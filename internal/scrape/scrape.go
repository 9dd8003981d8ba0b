// Package scrape runs extraction over a selection of vault documents in
// fixed-size concurrent batches and collects entries, conflicts and the
// run-wide metric aggregate.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dreamvault/internal/checksum"
	"github.com/starford/dreamvault/internal/journal"
	"github.com/starford/dreamvault/internal/metrics"
	"github.com/starford/dreamvault/internal/models"
	"github.com/starford/dreamvault/internal/storage"
)

// DefaultBatchSize bounds the number of documents read at the same time.
const DefaultBatchSize = 5

// DocumentError records a document that could not be processed.
type DocumentError struct {
	Path string
	Err  error
}

func (e DocumentError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e DocumentError) Unwrap() error { return e.Err }

// Tally is the user-facing summary of a run.
type Tally struct {
	Selected  int `json:"selected"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Entries   int `json:"entries"`
	Conflicts int `json:"conflicts"`
}

// Result is the output of one run. Documents and entries appear in batch
// completion order; call SortByPath for a stable order.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	// Selected lists every document path the selection resolved to.
	Selected  []string
	Truncated bool
	Documents []*journal.DocumentResult
	Entries   []models.DreamEntry
	Conflicts []models.MetricConflict
	Aggregate metrics.Aggregate
	Failures  []DocumentError
	Tally     Tally
}

// SortByPath orders documents, entries and conflicts by source path.
// Entries of the same document keep their document order.
func (r *Result) SortByPath() {
	sort.SliceStable(r.Documents, func(i, j int) bool { return r.Documents[i].Path < r.Documents[j].Path })
	sort.SliceStable(r.Entries, func(i, j int) bool {
		return r.Entries[i].Source.DocumentID < r.Entries[j].Source.DocumentID
	})
	sort.SliceStable(r.Conflicts, func(i, j int) bool { return r.Conflicts[i].Document < r.Conflicts[j].Document })
	sort.SliceStable(r.Failures, func(i, j int) bool { return r.Failures[i].Path < r.Failures[j].Path })
}

// Scraper reads documents from a store and extracts dream entries.
type Scraper struct {
	store     storage.Provider
	extractor *journal.Extractor
	batchSize int
	logger    *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithBatchSize sets the number of documents processed concurrently.
func WithBatchSize(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the logger runs derive their run-scoped logger from.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scraper) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Scraper.
func New(store storage.Provider, extractor *journal.Extractor, opts ...Option) *Scraper {
	s := &Scraper{
		store:     store,
		extractor: extractor,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Extractor returns the extractor used for every document.
func (s *Scraper) Extractor() *journal.Extractor { return s.extractor }

type runConfig struct {
	skip func(path, sum string) bool
}

// RunOption tunes a single run.
type RunOption func(*runConfig)

// WithSkip skips extraction for documents for which fn returns true.
// fn receives the path and the SHA-256 checksum of the document contents.
func WithSkip(fn func(path, sum string) bool) RunOption {
	return func(c *runConfig) { c.skip = fn }
}

type outcome struct {
	path    string
	doc     *journal.DocumentResult
	skipped bool
	err     error
}

// Run processes the documents chosen by sel. It returns apperr.ErrNoDocuments
// (without side effects) when the selection is empty. Per-document failures
// never abort the run; they are collected in Result.Failures. Cancelling
// ctx stops the run between batches and returns the partial result.
func (s *Scraper) Run(ctx context.Context, sel Selection, opts ...RunOption) (*Result, error) {
	var cfg runConfig
	for _, o := range opts {
		o(&cfg)
	}

	paths, truncated, err := sel.resolve(s.store)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Selected:  paths,
		Truncated: truncated,
		Aggregate: make(metrics.Aggregate),
	}
	logger := s.logger.With(slog.String("run_id", res.RunID))
	if truncated {
		logger.Warn("scrape: selection truncated", slog.Int("max_documents", sel.MaxDocuments))
	}
	logger.Info("scrape: started", slog.Int("documents", len(paths)), slog.Int("batch_size", s.batchSize))

	for start := 0; start < len(paths); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			res.finish(logger)
			return res, err
		}
		end := min(start+s.batchSize, len(paths))
		s.runBatch(paths[start:end], cfg, res, logger)
	}

	res.finish(logger)
	return res, nil
}

// runBatch reads and extracts one batch concurrently. Outcomes are merged
// into res only after every task of the batch has finished.
func (s *Scraper) runBatch(batch []string, cfg runConfig, res *Result, logger *slog.Logger) {
	done := make(chan outcome, len(batch))
	var g errgroup.Group
	for _, p := range batch {
		g.Go(func() error {
			done <- s.process(p, cfg)
			return nil
		})
	}
	_ = g.Wait()
	close(done)

	for o := range done {
		switch {
		case o.err != nil:
			logger.Warn("scrape: document failed", slog.String("path", o.path), slog.String("error", o.err.Error()))
			res.Failures = append(res.Failures, DocumentError{Path: o.path, Err: o.err})
			res.Tally.Failed++
		case o.skipped:
			res.Tally.Skipped++
		default:
			res.add(o.doc)
			logger.Debug("scrape: document processed",
				slog.String("path", o.path),
				slog.Int("entries", len(o.doc.Entries)),
				slog.Int("conflicts", len(o.doc.Conflicts)))
		}
	}
}

func (s *Scraper) process(path string, cfg runConfig) (o outcome) {
	o.path = path
	defer func() {
		if r := recover(); r != nil {
			o.doc, o.err = nil, fmt.Errorf("scrape: panic: %v", r)
		}
	}()

	data, err := s.store.Read(path)
	if err != nil {
		o.err = err
		return o
	}
	if cfg.skip != nil && cfg.skip(path, checksum.Sum(data)) {
		o.skipped = true
		return o
	}
	o.doc, o.err = s.extractor.Extract(path, data)
	return o
}

// ScrapeDocument reads and extracts a single document.
func (s *Scraper) ScrapeDocument(ctx context.Context, path string) (*journal.DocumentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := s.process(path, runConfig{})
	return o.doc, o.err
}

func (r *Result) add(doc *journal.DocumentResult) {
	r.Documents = append(r.Documents, doc)
	r.Entries = append(r.Entries, doc.Entries...)
	r.Conflicts = append(r.Conflicts, doc.Conflicts...)
	for _, values := range doc.Inline {
		r.Aggregate.Add(values)
	}
	r.Tally.Processed++
}

func (r *Result) finish(logger *slog.Logger) {
	r.FinishedAt = time.Now()
	r.Tally.Selected = len(r.Selected)
	r.Tally.Entries = len(r.Entries)
	r.Tally.Conflicts = len(r.Conflicts)
	logger.Info("scrape: finished",
		slog.Int("processed", r.Tally.Processed),
		slog.Int("skipped", r.Tally.Skipped),
		slog.Int("failed", r.Tally.Failed),
		slog.Int("entries", r.Tally.Entries),
		slog.Int("conflicts", r.Tally.Conflicts),
		slog.Duration("elapsed", r.FinishedAt.Sub(r.StartedAt)))
}
