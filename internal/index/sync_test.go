package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/dreamvault/internal/apperr"
	"github.com/starford/dreamvault/internal/scrape"
	"github.com/starford/dreamvault/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func syncEnv(t *testing.T) (string, *scrape.Scraper, *DB) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, scrape.New(store, testExtractor(), scrape.WithLogger(discardLogger())), testDB(t)
}

var wholeVault = scrape.Selection{Mode: scrape.ModeFolder, Recursive: true}

func writeDoc(t *testing.T, vaultDir, rel, text string) {
	t.Helper()
	abs := filepath.Join(vaultDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

const oneDream = "> [!journal-entry]\n> > [!dream-diary] Flight ^20250603\n> > over the hills\n"

func TestSyncIndexesAndSkipsUnchanged(t *testing.T) {
	vaultDir, scraper, db := syncEnv(t)
	writeDoc(t, vaultDir, "a.md", oneDream)
	writeDoc(t, vaultDir, "sub/b.md", twoDreams)

	res, err := Sync(context.Background(), db, scraper, wholeVault, discardLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if diff := cmp.Diff([]string{"a.md", "sub/b.md"}, sortedCopy(res.Indexed)); diff != "" {
		t.Errorf("indexed (-want +got):\n%s", diff)
	}

	res, err = Sync(context.Background(), db, scraper, wholeVault, discardLogger())
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if len(res.Indexed) != 0 || res.Run.Tally.Skipped != 2 {
		t.Errorf("second sync indexed %v, tally %+v", res.Indexed, res.Run.Tally)
	}
}

func TestSyncRemovesStale(t *testing.T) {
	vaultDir, scraper, db := syncEnv(t)
	writeDoc(t, vaultDir, "a.md", oneDream)
	writeDoc(t, vaultDir, "b.md", oneDream)
	if _, err := Sync(context.Background(), db, scraper, wholeVault, discardLogger()); err != nil {
		t.Fatal(err)
	}

	_ = os.Remove(filepath.Join(vaultDir, "b.md"))
	res, err := Sync(context.Background(), db, scraper, wholeVault, discardLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if diff := cmp.Diff([]string{"b.md"}, res.Removed); diff != "" {
		t.Errorf("removed (-want +got):\n%s", diff)
	}
	sums, _ := db.AllChecksums()
	if _, ok := sums["b.md"]; ok {
		t.Error("b.md still indexed")
	}
}

func TestSyncNoDocumentsLeavesIndex(t *testing.T) {
	vaultDir, scraper, db := syncEnv(t)
	writeDoc(t, vaultDir, "a.md", oneDream)
	if _, err := Sync(context.Background(), db, scraper, wholeVault, discardLogger()); err != nil {
		t.Fatal(err)
	}

	empty := scrape.Selection{Mode: scrape.ModeFolder, Folder: "missing-but-empty"}
	_ = os.Mkdir(filepath.Join(vaultDir, "missing-but-empty"), 0o755)
	_, err := Sync(context.Background(), db, scraper, empty, discardLogger())
	if !errors.Is(err, apperr.ErrNoDocuments) {
		t.Fatalf("err = %v, want ErrNoDocuments", err)
	}
	sums, _ := db.AllChecksums()
	if len(sums) != 1 {
		t.Errorf("index changed on fatal sync: %v", sums)
	}
}
