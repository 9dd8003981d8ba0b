package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/dreamvault/internal/apperr"
	"github.com/starford/dreamvault/internal/callout"
	"github.com/starford/dreamvault/internal/journal"
	"github.com/starford/dreamvault/internal/models"
	"github.com/starford/dreamvault/internal/storage"
)

type fakeStore struct {
	docs  map[string]string
	fail  map[string]bool
	panic map[string]bool
	delay time.Duration

	mu      sync.Mutex
	active  int
	maxSeen int
}

func (f *fakeStore) List(string, storage.ListOptions) ([]models.DocumentMeta, error) {
	var out []models.DocumentMeta
	for p := range f.docs {
		out = append(out, models.DocumentMeta{Path: p})
	}
	return out, nil
}

func (f *fakeStore) Read(path string) ([]byte, error) {
	f.mu.Lock()
	f.active++
	f.maxSeen = max(f.maxSeen, f.active)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()
	time.Sleep(f.delay)

	if f.panic[path] {
		panic("store exploded")
	}
	if f.fail[path] {
		return nil, errors.New("read failed")
	}
	data, ok := f.docs[path]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return []byte(data), nil
}

func (f *fakeStore) Write(string, []byte) error { return nil }

func diaryDoc(day int, clarity int) string {
	return fmt.Sprintf("> [!journal-entry]\n> > [!dream-diary] Dream ^202501%02d\n> > flying high\n> > > [!dream-metrics]\n> > > Clarity: %d\n", day, clarity)
}

func newScraper(store storage.Provider, opts ...Option) *Scraper {
	x := journal.New(journal.Options{
		Callouts: callout.DefaultVocabulary(),
		Metrics:  []models.MetricConfig{{Name: "Clarity", Enabled: true, Kind: models.MetricNumber}},
	})
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(store, x, opts...)
}

func notes(paths ...string) Selection {
	return Selection{Mode: ModeNotes, Notes: paths}
}

func TestRunBatchIsolation(t *testing.T) {
	store := &fakeStore{
		docs: map[string]string{
			"1.md": diaryDoc(1, 1),
			"2.md": diaryDoc(2, 2),
			"3.md": diaryDoc(3, 3),
			"4.md": diaryDoc(4, 4),
			"5.md": diaryDoc(5, 5),
		},
		fail: map[string]bool{"3.md": true},
	}
	s := newScraper(store)

	res, err := s.Run(context.Background(), notes("1", "2", "3", "4", "5"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res.SortByPath()

	var docs []string
	for _, e := range res.Entries {
		docs = append(docs, e.Source.DocumentID)
	}
	if diff := cmp.Diff([]string{"1.md", "2.md", "4.md", "5.md"}, docs); diff != "" {
		t.Errorf("entry documents (-want +got):\n%s", diff)
	}
	if len(res.Failures) != 1 || res.Failures[0].Path != "3.md" {
		t.Errorf("failures = %v", res.Failures)
	}
	want := Tally{Selected: 5, Processed: 4, Failed: 1, Entries: 4}
	if diff := cmp.Diff(want, res.Tally); diff != "" {
		t.Errorf("tally (-want +got):\n%s", diff)
	}
	if res.RunID == "" {
		t.Error("run id not set")
	}
}

func TestRunAggregate(t *testing.T) {
	store := &fakeStore{docs: map[string]string{
		"a.md": diaryDoc(1, 2),
		"b.md": diaryDoc(2, 6),
	}}
	res, err := newScraper(store).Run(context.Background(), notes("a.md", "b.md"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(res.Aggregate["Clarity"]); got != 2 {
		t.Errorf("Clarity values = %d, want 2", got)
	}
	if got := len(res.Aggregate["Words"]); got != 2 {
		t.Errorf("Words values = %d, want 2", got)
	}
}

func TestRunAggregateUsesInlineValues(t *testing.T) {
	conflicting := "---\nclarity: 8\nmood: calm\n---\n" + diaryDoc(3, 4)
	store := &fakeStore{docs: map[string]string{"c.md": conflicting}}
	x := journal.New(journal.Options{
		Callouts: callout.DefaultVocabulary(),
		Metrics: []models.MetricConfig{
			{Name: "Clarity", FrontmatterProperty: "clarity", Enabled: true, Kind: models.MetricNumber},
			{Name: "Mood", FrontmatterProperty: "mood", Enabled: true, Kind: models.MetricString},
		},
	})
	s := New(store, x, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	res, err := s.Run(context.Background(), notes("c.md"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(res.Conflicts))
	}
	if got := res.Entries[0].Metrics["Clarity"]; !got.Equal(models.Number(8)) {
		t.Errorf("entry Clarity = %v, want front-matter 8", got)
	}
	want := []models.Value{models.Number(4)}
	if diff := cmp.Diff(want, res.Aggregate["Clarity"], cmp.Comparer(models.Value.Equal)); diff != "" {
		t.Errorf("aggregate Clarity (-want +got):\n%s", diff)
	}
	if _, ok := res.Aggregate["Mood"]; ok {
		t.Error("front-matter-only metric reached the aggregate")
	}
}

func TestRunNoDocuments(t *testing.T) {
	s := newScraper(&fakeStore{})
	_, err := s.Run(context.Background(), Selection{Mode: ModeFolder, Folder: "Journals"})
	if !errors.Is(err, apperr.ErrNoDocuments) {
		t.Errorf("err = %v, want ErrNoDocuments", err)
	}
	_, err = s.Run(context.Background(), notes(" ", ""))
	if !errors.Is(err, apperr.ErrNoDocuments) {
		t.Errorf("err = %v, want ErrNoDocuments", err)
	}
}

func TestRunInvalidSelection(t *testing.T) {
	_, err := newScraper(&fakeStore{}).Run(context.Background(), Selection{Mode: "everything"})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	docs := make(map[string]string)
	var paths []string
	for i := 1; i <= 12; i++ {
		p := fmt.Sprintf("%02d.md", i)
		docs[p] = diaryDoc(i, i)
		paths = append(paths, p)
	}
	store := &fakeStore{docs: docs, delay: 5 * time.Millisecond}
	res, err := newScraper(store, WithBatchSize(3)).Run(context.Background(), notes(paths...))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Tally.Processed != 12 {
		t.Errorf("processed = %d", res.Tally.Processed)
	}
	if store.maxSeen > 3 {
		t.Errorf("max concurrent reads = %d, want <= 3", store.maxSeen)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	store := &fakeStore{
		docs:  map[string]string{"ok.md": diaryDoc(1, 1), "boom.md": ""},
		panic: map[string]bool{"boom.md": true},
	}
	res, err := newScraper(store).Run(context.Background(), notes("boom", "ok"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Tally.Failed != 1 || res.Tally.Processed != 1 {
		t.Errorf("tally = %+v", res.Tally)
	}
}

func TestRunMaxDocuments(t *testing.T) {
	store := &fakeStore{docs: map[string]string{"a.md": diaryDoc(1, 1), "b.md": diaryDoc(2, 1), "c.md": diaryDoc(3, 1)}}
	sel := notes("a", "b", "c")
	sel.MaxDocuments = 2
	res, err := newScraper(store).Run(context.Background(), sel)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Truncated || res.Tally.Selected != 2 || res.Tally.Processed != 2 {
		t.Errorf("truncated = %v, tally = %+v", res.Truncated, res.Tally)
	}
}

func TestRunSkip(t *testing.T) {
	store := &fakeStore{docs: map[string]string{"a.md": diaryDoc(1, 1), "b.md": diaryDoc(2, 1)}}
	res, err := newScraper(store).Run(context.Background(), notes("a", "b"),
		WithSkip(func(path, sum string) bool { return path == "a.md" && sum != "" }))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Tally.Skipped != 1 || res.Tally.Processed != 1 {
		t.Errorf("tally = %+v", res.Tally)
	}
}

func TestRunCancelled(t *testing.T) {
	store := &fakeStore{docs: map[string]string{"a.md": diaryDoc(1, 1)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := newScraper(store).Run(ctx, notes("a"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res == nil || res.Tally.Processed != 0 {
		t.Errorf("res = %+v", res)
	}
}

func TestRunFolder(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	_ = fs.Write("Journals/a.md", []byte(diaryDoc(1, 1)))
	_ = fs.Write("Journals/Templates/t.md", []byte(diaryDoc(2, 1)))
	_ = fs.Write("Other/b.md", []byte(diaryDoc(3, 1)))

	res, err := newScraper(fs).Run(context.Background(), Selection{
		Mode:           ModeFolder,
		Folder:         "Journals",
		Recursive:      true,
		ExcludeFolders: []string{"Journals/Templates"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"Journals/a.md"}, res.Selected); diff != "" {
		t.Errorf("selected (-want +got):\n%s", diff)
	}
}

func TestScrapeDocument(t *testing.T) {
	store := &fakeStore{docs: map[string]string{"a.md": diaryDoc(7, 3)}}
	doc, err := newScraper(store).ScrapeDocument(context.Background(), "a.md")
	if err != nil {
		t.Fatalf("ScrapeDocument: %v", err)
	}
	if len(doc.Entries) != 1 || doc.Entries[0].Date != "2025-01-07" {
		t.Errorf("entries = %+v", doc.Entries)
	}
	if _, err := newScraper(store).ScrapeDocument(context.Background(), "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSelectionIncludes(t *testing.T) {
	folder := Selection{
		Mode:           ModeFolder,
		Folder:         "Journals",
		Recursive:      true,
		ExcludeFolders: []string{"Journals/Templates"},
		ExcludeNotes:   []string{"draft"},
	}
	flat := folder
	flat.Recursive = false

	tests := []struct {
		sel  Selection
		path string
		want bool
	}{
		{folder, "Journals/a.md", true},
		{folder, "Journals/2024/a.md", true},
		{folder, "Journals/Templates/t.md", false},
		{folder, "Journals/draft.md", false},
		{folder, "Other/a.md", false},
		{flat, "Journals/2024/a.md", false},
		{flat, "Journals/a.md", true},
		{notes("Journals/a"), "Journals/a.md", true},
		{notes("Journals/a"), "Journals/b.md", false},
		{Selection{Mode: ModeFolder, Recursive: true}, "x/y.md", true},
	}
	for _, tt := range tests {
		if got := tt.sel.Includes(tt.path); got != tt.want {
			t.Errorf("Includes(%q) with %+v = %v, want %v", tt.path, tt.sel, got, tt.want)
		}
	}
}
