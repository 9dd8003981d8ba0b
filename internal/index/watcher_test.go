package index

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func sortedCopy(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}

func indexed(db *DB, path string) bool {
	sums, _ := db.AllChecksums()
	_, ok := sums[path]
	return ok
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	vaultDir, scraper, db := syncEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, scraper, wholeVault, vaultDir, discardLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(vaultDir, "new.md"), []byte(oneDream), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return indexed(db, "new.md")
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return slices.Contains(events, "created:new.md") || slices.Contains(events, "updated:new.md")
	}, "expected callback for new.md")
}

func TestWatcher_IgnoresUnselected(t *testing.T) {
	vaultDir, scraper, db := syncEnv(t)
	_ = os.MkdirAll(filepath.Join(vaultDir, "Journals"), 0o755)
	_ = os.MkdirAll(filepath.Join(vaultDir, "Other"), 0o755)
	sel := wholeVault
	sel.Folder = "Journals"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, scraper, sel, vaultDir, discardLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(vaultDir, "Other", "x.md"), []byte(oneDream), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "Journals", "y.md"), []byte(oneDream), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return indexed(db, "Journals/y.md")
	}, "selected file not indexed")
	if indexed(db, "Other/x.md") {
		t.Error("file outside the selection was indexed")
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	vaultDir, scraper, db := syncEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, scraper, wholeVault, vaultDir, discardLogger(), nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(vaultDir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(300 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte(oneDream), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return indexed(db, "subdir/deep.md")
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	vaultDir, scraper, db := syncEnv(t)

	writeDoc(t, vaultDir, "del.md", oneDream)
	if _, err := Sync(context.Background(), db, scraper, wholeVault, discardLogger()); err != nil {
		t.Fatal(err)
	}
	if !indexed(db, "del.md") {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, scraper, wholeVault, vaultDir, discardLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(vaultDir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(db, "del.md")
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	vaultDir, scraper, db := syncEnv(t)

	writeDoc(t, vaultDir, "old.md", oneDream)
	writeDoc(t, vaultDir, "keep.md", oneDream)
	if _, err := Sync(context.Background(), db, scraper, wholeVault, discardLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, scraper, wholeVault, vaultDir, discardLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(vaultDir, "old.md"), filepath.Join(vaultDir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(db, "old.md") && indexed(db, "renamed.md")
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
