package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// watcherTestEnv sets up a kb dir and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, *DB) {
	t.Helper()
	kbRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(kbRoot, "ds"), 0o755); err != nil {
		t.Fatal(err)
	}
	return kbRoot, testDB(t)
}

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

func TestWatcher_NewFileIndexed(t *testing.T) {
	kbRoot, db := watcherTestEnv(t)
	logger := testLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, kbRoot, logger, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(kbRoot, "ds", "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return checksumFor(t, db, "ds/new.md") != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:ds/new.md" {
				return true
			}
		}
		return false
	}, "expected created:ds/new.md callback")
}

func TestWatcher_NewCategoryDirWatched(t *testing.T) {
	kbRoot, db := watcherTestEnv(t)
	logger := testLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, kbRoot, logger, nil)

	time.Sleep(100 * time.Millisecond)

	newCat := filepath.Join(kbRoot, "networking")
	_ = os.MkdirAll(newCat, 0o755)
	time.Sleep(200 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(newCat, "tcp.md"), []byte("# TCP"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return checksumFor(t, db, "networking/tcp.md") != ""
	}, "file in new category dir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	kbRoot, db := watcherTestEnv(t)
	logger := testLogger()

	_ = os.WriteFile(filepath.Join(kbRoot, "ds", "del.md"), []byte("# Delete Me"), 0o644)
	if err := Sync(db, kbRoot, logger); err != nil {
		t.Fatal(err)
	}
	if checksumFor(t, db, "ds/del.md") == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, kbRoot, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(kbRoot, "ds", "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return checksumFor(t, db, "ds/del.md") == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	kbRoot, db := watcherTestEnv(t)
	logger := testLogger()

	_ = os.WriteFile(filepath.Join(kbRoot, "ds", "old.md"), []byte("# Rename"), 0o644)
	if err := Sync(db, kbRoot, logger); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, kbRoot, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(kbRoot, "ds", "old.md"), filepath.Join(kbRoot, "ds", "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return checksumFor(t, db, "ds/old.md") == "" && checksumFor(t, db, "ds/renamed.md") != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
