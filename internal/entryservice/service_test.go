package entryservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/dreamvault/internal/apperr"
	"github.com/starford/dreamvault/internal/models"
	"github.com/starford/dreamvault/internal/parser"
	"github.com/starford/dreamvault/internal/scrape"
	"github.com/starford/dreamvault/internal/storage"
	"github.com/starford/dreamvault/internal/testutil"
)

const flight = `---
title: Night
---
> [!journal-entry]
> > [!dream-diary] Flight ^20250603
> > over the sea
> > > [!dream-metrics]
> > > Clarity: 4, Themes: flying
`

const conflicting = `---
dream-clarity: 8
---
> [!journal-entry]
> > [!dream-diary] Ocean ^20250101
> > deep water
> > > [!dream-metrics]
> > > Clarity: 4
> > [!dream-diary] Forest ^20250102
> > tall trees
> > > [!dream-metrics]
> > > Vividness: 2
`

var allDocs = scrape.Selection{Mode: scrape.ModeFolder, Recursive: true}

func testService(t *testing.T, opts ...Option) (*Service, string, storage.Provider) {
	t.Helper()
	vaultDir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	opts = append([]Option{WithLogger(testutil.Logger())}, opts...)
	return New(store, db, testutil.TestScraper(store), allDocs, opts...), vaultDir, store
}

func TestScrapeAndQuery(t *testing.T) {
	svc, vaultDir, _ := testService(t)
	testutil.WriteFile(t, vaultDir, "Journals/flight.md", flight)
	testutil.WriteFile(t, vaultDir, "Journals/conflicting.md", conflicting)

	var events []string
	svc.notify = func(kind, path string) { events = append(events, kind+":"+path) }

	report, err := svc.Scrape(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	want := scrape.Tally{Selected: 2, Processed: 2, Entries: 3, Conflicts: 1}
	if report.Tally != want {
		t.Errorf("tally = %+v, want %+v", report.Tally, want)
	}
	if report.RunID == "" || len(events) != 2 {
		t.Errorf("run id = %q, events = %v", report.RunID, events)
	}

	entries, total, err := svc.ListEntries(context.Background(), EntryQuery{From: "2025-01-02"})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if total != 2 || entries[0].Title != "Forest" || entries[1].Title != "Flight" {
		t.Errorf("total = %d, entries = %+v", total, entries)
	}

	conflicts, err := svc.Conflicts(context.Background(), "", models.SeverityHigh)
	if err != nil {
		t.Fatalf("Conflicts: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].Document != "Journals/conflicting.md" {
		t.Errorf("conflicts = %+v", conflicts)
	}

	summary, err := svc.MetricSummary(context.Background(), EntryQuery{})
	if err != nil {
		t.Fatalf("MetricSummary: %v", err)
	}
	found := false
	for _, s := range summary {
		if s.Metric == "Clarity" {
			found = true
			if s.Count != 3 || s.Min != 4 || s.Max != 8 {
				t.Errorf("Clarity summary = %+v", s)
			}
		}
	}
	if !found {
		t.Errorf("no Clarity summary in %+v", summary)
	}
}

func TestScrapeNoDocuments(t *testing.T) {
	svc, _, _ := testService(t)
	_, err := svc.Scrape(context.Background(), nil)
	if !errors.Is(err, apperr.ErrNoDocuments) {
		t.Errorf("err = %v, want ErrNoDocuments", err)
	}
}

func TestScrapeListener(t *testing.T) {
	var got []*ScrapeReport
	svc, vaultDir, _ := testService(t, WithScrapeListener(func(r *ScrapeReport) { got = append(got, r) }))

	if _, err := svc.Scrape(context.Background(), nil); err == nil {
		t.Fatal("empty vault should fail")
	}
	if len(got) != 0 {
		t.Fatalf("listener ran on failed scrape: %d calls", len(got))
	}

	testutil.WriteFile(t, vaultDir, "Journals/flight.md", flight)
	report, err := svc.Scrape(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(got) != 1 || got[0] != report {
		t.Errorf("listener calls = %d", len(got))
	}
}

func TestQueryValidation(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()
	if _, _, err := svc.ListEntries(ctx, EntryQuery{From: "06/03/2025"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("bad date err = %v", err)
	}
	if _, _, err := svc.ListEntries(ctx, EntryQuery{From: "2025-02-01", To: "2025-01-01"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("inverted range err = %v", err)
	}
	if _, err := svc.Conflicts(ctx, "", "critical"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("severity err = %v", err)
	}
	if _, err := svc.Search(ctx, "", 10); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("empty search err = %v", err)
	}
}

func TestWriteBack(t *testing.T) {
	svc, vaultDir, store := testService(t, WithWriteBack(true))
	testutil.WriteFile(t, vaultDir, "flight.md", flight)

	res, err := svc.WriteBack(context.Background(), "flight.md", "")
	if err != nil {
		t.Fatalf("WriteBack: %v", err)
	}
	if !res.Changed {
		t.Fatal("expected front matter to change")
	}

	data, _ := store.Read("flight.md")
	doc, err := parser.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Frontmatter["title"] != "Night" || doc.Frontmatter["dream-clarity"] != 4 {
		t.Errorf("front matter = %v", doc.Frontmatter)
	}

	entries, _, _ := svc.ListEntries(context.Background(), EntryQuery{})
	if len(entries) != 1 || entries[0].MetricsSource != models.SourceBoth || entries[0].HasConflicts {
		t.Errorf("reindexed entries = %+v", entries)
	}

	again, err := svc.WriteBack(context.Background(), "flight.md", res.Checksum)
	if err != nil {
		t.Fatalf("second WriteBack: %v", err)
	}
	if again.Changed {
		t.Error("second write-back should be a no-op")
	}
}

func TestWriteBackErrors(t *testing.T) {
	svc, vaultDir, _ := testService(t, WithWriteBack(true))
	testutil.WriteFile(t, vaultDir, "two.md", conflicting)
	testutil.WriteFile(t, vaultDir, "flight.md", flight)
	ctx := context.Background()

	if _, err := svc.WriteBack(ctx, "two.md", ""); !errors.Is(err, apperr.ErrAmbiguousWriteBack) {
		t.Errorf("ambiguous err = %v", err)
	}
	if _, err := svc.WriteBack(ctx, "missing.md", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if _, err := svc.WriteBack(ctx, "flight.md", "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale checksum err = %v", err)
	}

	disabled, vault2, _ := testService(t)
	testutil.WriteFile(t, vault2, "flight.md", flight)
	if _, err := disabled.WriteBack(ctx, "flight.md", ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("disabled err = %v", err)
	}
}
