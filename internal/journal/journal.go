// Package journal turns one vault document into dream entries: it builds the
// callout tree, resolves dates, titles and identifiers for every dream diary,
// parses inline metrics and reconciles them with the document front matter.
package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/dreamvault/internal/callout"
	"github.com/starford/dreamvault/internal/checksum"
	"github.com/starford/dreamvault/internal/metrics"
	"github.com/starford/dreamvault/internal/models"
	"github.com/starford/dreamvault/internal/parser"
	"github.com/starford/dreamvault/internal/reconcile"
	"github.com/starford/dreamvault/internal/resolve"
)

// Options configures an Extractor.
type Options struct {
	Callouts    callout.Vocabulary
	Metrics     []models.MetricConfig
	Frontmatter metrics.FrontmatterOptions
	Strategy    reconcile.Strategy
	// Now is the processing clock; defaults to time.Now.
	Now func() time.Time
}

// Extractor is safe for concurrent use; it holds no per-document state.
type Extractor struct {
	callouts callout.Vocabulary
	vocab    *metrics.Vocabulary
	fmOpts   metrics.FrontmatterOptions
	engine   *reconcile.Engine
	now      func() time.Time
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	vocab := metrics.NewVocabulary(opts.Metrics)
	strategy := opts.Strategy
	if strategy == "" {
		strategy = reconcile.StrategyFrontmatter
	}
	return &Extractor{
		callouts: opts.Callouts,
		vocab:    vocab,
		fmOpts:   opts.Frontmatter,
		engine:   reconcile.NewEngine(vocab, strategy, reconcile.WithClock(now)),
		now:      now,
	}
}

// Callouts returns the callout names the extractor recognizes.
func (x *Extractor) Callouts() callout.Vocabulary { return x.callouts }

// Vocabulary returns the metric vocabulary.
func (x *Extractor) Vocabulary() *metrics.Vocabulary { return x.vocab }

// FrontmatterOptions returns the front-matter coercion settings.
func (x *Extractor) FrontmatterOptions() metrics.FrontmatterOptions { return x.fmOpts }

// DocumentResult is everything extracted from one document.
type DocumentResult struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	// Frontmatter is the parsed property map (nil when absent).
	Frontmatter map[string]any          `json:"frontmatter,omitempty"`
	Entries     []models.DreamEntry     `json:"entries"`
	Conflicts   []models.MetricConflict `json:"conflicts"`
	// Warnings are document-level structural notes, e.g. orphan callouts.
	Warnings []string `json:"warnings,omitempty"`
	// Inline holds, per entry, the values parsed from its metrics callouts
	// before reconciliation, including Words. The run aggregate is fed from
	// here so front-matter values never enter it.
	Inline []map[string]models.Value `json:"-"`
}

// Extract parses data as the document at path.
func (x *Extractor) Extract(path string, data []byte) (*DocumentResult, error) {
	doc, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("journal: parse %s: %w", path, err)
	}

	res := &DocumentResult{
		Path:        path,
		Checksum:    checksum.Sum(data),
		Frontmatter: doc.Frontmatter,
	}
	now := x.now()
	fm := metrics.ExtractFrontmatter(doc.Frontmatter, x.vocab, x.fmOpts, now)

	roots := callout.Build(doc.Lines(), x.callouts)
	for _, root := range roots {
		switch {
		case root.Kind == callout.JournalEntry:
			for _, diary := range root.ChildrenOf(callout.DreamDiary) {
				x.addEntry(res, fm, diary, root, now)
			}
		case root.Kind == callout.DreamDiary:
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("line %d: %s callout outside a journal entry, ignored", doc.BodyLine+root.FirstLine+1, root.Name))
		case root.Orphan:
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("line %d: %s callout outside a dream diary, ignored", doc.BodyLine+root.FirstLine+1, root.Name))
		}
	}
	return res, nil
}

func (x *Extractor) addEntry(res *DocumentResult, fm models.ExtractedMetrics, diary, journal *callout.Block, now time.Time) {
	blocks := []*callout.Block{diary, journal}
	var warnings []string

	metricBlocks := diary.ChildrenOf(callout.MetricsBlock)
	content := Clean(diary.Texts())
	if len(metricBlocks) == 0 && content == "" {
		return
	}

	date := resolve.ResolveDate(resolve.DateInput{
		Blocks:      blocks,
		Frontmatter: res.Frontmatter,
		Path:        res.Path,
		Now:         now,
	})
	switch {
	case date.Precision == resolve.PrecisionYear:
		warnings = append(warnings, "date_precision: year")
	case date.Source == resolve.SourceProcessing:
		warnings = append(warnings, "date: none found, used processing date")
	}
	id, _ := resolve.ResolveID(diary)
	words := WordCount(content)

	var texts []string
	for _, mb := range metricBlocks {
		if t := metrics.JoinLines(mb.Texts()); t != "" {
			texts = append(texts, t)
		}
	}
	parsed := metrics.Parse(strings.Join(texts, ", "), x.vocab)
	parsed.Values[metrics.WordsMetric] = models.Number(float64(words))
	for _, name := range parsed.Unknown {
		warnings = append(warnings, "unknown metric: "+name)
	}

	co := models.ExtractedMetrics{Values: parsed.Values, Source: models.SourceCallout, ExtractedAt: now}
	merged := x.engine.Reconcile(fm, co)
	if merged.Fallback != nil {
		warnings = append(warnings, merged.Fallback.Error())
	}
	for i := range merged.Conflicts {
		merged.Conflicts[i].Document = res.Path
		merged.Conflicts[i].BlockID = id
	}

	res.Entries = append(res.Entries, models.DreamEntry{
		Date:           date.Value,
		Title:          resolve.ResolveTitle(diary.Label),
		Content:        content,
		Source:         models.EntrySource{DocumentID: res.Path, BlockID: id},
		WordCount:      words,
		Metrics:        merged.Metrics.Values,
		MetricsSource:  merged.Metrics.Source,
		HasConflicts:   len(merged.Conflicts) > 0,
		UnknownMetrics: parsed.Unknown,
		Callout: models.CalloutMetadata{
			Type:     diary.Name,
			ID:       id,
			Warnings: warnings,
		},
	})
	res.Conflicts = append(res.Conflicts, merged.Conflicts...)
	res.Inline = append(res.Inline, parsed.Values)
}
