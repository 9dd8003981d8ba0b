// Package testutil provides shared test helpers for setting up vaults, databases and scrapers.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/dreamvault/internal/callout"
	"github.com/starford/dreamvault/internal/index"
	"github.com/starford/dreamvault/internal/journal"
	"github.com/starford/dreamvault/internal/models"
	"github.com/starford/dreamvault/internal/reconcile"
	"github.com/starford/dreamvault/internal/scrape"
	"github.com/starford/dreamvault/internal/storage"
)

// MetricConfigs is a small metric vocabulary used across tests. Clarity is
// mirrored in front matter under "dream-clarity".
var MetricConfigs = []models.MetricConfig{
	{Name: "Clarity", FrontmatterProperty: "dream-clarity", Enabled: true, Kind: models.MetricNumber},
	{Name: "Vividness", Enabled: true, Kind: models.MetricNumber},
	{Name: "Themes", FrontmatterProperty: "dream-themes", Enabled: true, Kind: models.MetricList},
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "dreamvault-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestScraper builds a scraper over store using MetricConfigs and the
// default callout names.
func TestScraper(store storage.Provider) *scrape.Scraper {
	x := journal.New(journal.Options{
		Callouts: callout.DefaultVocabulary(),
		Metrics:  MetricConfigs,
		Strategy: reconcile.StrategyFrontmatter,
	})
	return scrape.New(store, x, scrape.WithLogger(Logger()))
}

// WriteFile writes a vault document, creating parent folders.
func WriteFile(t *testing.T, vaultDir, rel, content string) {
	t.Helper()
	abs := filepath.Join(vaultDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
