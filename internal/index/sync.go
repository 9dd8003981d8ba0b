package index

import (
	"context"
	"log/slog"

	"github.com/starford/dreamvault/internal/scrape"
)

// SyncResult reports what a sync changed in the index.
type SyncResult struct {
	Run     *scrape.Result
	Indexed []string
	Removed []string
}

// Sync scrapes the selection and brings the index up to date:
//   - new/changed documents are extracted and replaced
//   - unchanged documents (same checksum) are skipped
//   - indexed documents no longer in the selection are deleted
//
// Documents that fail to read keep their previous index rows.
func Sync(ctx context.Context, db EntryIndex, scraper *scrape.Scraper, sel scrape.Selection, logger *slog.Logger) (*SyncResult, error) {
	checksums, err := db.AllChecksums()
	if err != nil {
		return nil, err
	}

	run, err := scraper.Run(ctx, sel, scrape.WithSkip(func(path, sum string) bool {
		return checksums[path] == sum
	}))
	if err != nil && run == nil {
		return nil, err
	}

	run.SortByPath()
	out := &SyncResult{Run: run}
	for _, doc := range run.Documents {
		if ierr := db.ReplaceDocument(doc); ierr != nil {
			logger.Warn("sync: index failed", slog.String("path", doc.Path), slog.String("error", ierr.Error()))
			continue
		}
		out.Indexed = append(out.Indexed, doc.Path)
		logger.Debug("sync: indexed", slog.String("path", doc.Path), slog.Int("entries", len(doc.Entries)))
	}
	if err != nil {
		// Cancelled mid-run: the selection was only partly visited.
		return out, err
	}

	selected := make(map[string]struct{}, len(run.Selected))
	for _, p := range run.Selected {
		selected[p] = struct{}{}
	}
	for p := range checksums {
		if _, ok := selected[p]; ok {
			continue
		}
		if derr := db.DeleteDocument(p); derr != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", derr.Error()))
			continue
		}
		out.Removed = append(out.Removed, p)
		logger.Debug("sync: removed stale", slog.String("path", p))
	}
	return out, nil
}
