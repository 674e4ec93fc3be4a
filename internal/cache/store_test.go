package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreWriteAndRead(t *testing.T) {
	store := newTestStore(t)
	name := FileName("https://example.com/a.jpg")

	payload := []byte("payload")
	entry, err := store.Write(context.Background(), name, payload)
	if err != nil {
		t.Fatalf("write error: %v", err)
	}
	if entry.SizeBytes != int64(len(payload)) {
		t.Fatalf("size mismatch: %d", entry.SizeBytes)
	}

	body, err := store.ReadFull(context.Background(), name)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(body) != string(payload) {
		t.Fatalf("cached payload mismatch: %s", string(body))
	}

	stat, err := store.Stat(context.Background(), name)
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if stat.SizeBytes != int64(len(payload)) {
		t.Fatalf("stat size mismatch: %d", stat.SizeBytes)
	}
	if stat.FilePath != filepath.Join(store.Dir(), name) {
		t.Fatalf("unexpected file path %s", stat.FilePath)
	}
}

func TestStoreWriteOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Write(ctx, "a.png", []byte("first version")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if _, err := store.Write(ctx, "a.png", []byte("v2")); err != nil {
		t.Fatalf("overwrite error: %v", err)
	}
	body, err := store.ReadFull(ctx, "a.png")
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(body) != "v2" {
		t.Fatalf("expected overwrite, got %s", string(body))
	}
}

func TestStoreReadRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Write(ctx, "digits.img", []byte("0123456789")); err != nil {
		t.Fatalf("write error: %v", err)
	}

	part, err := store.ReadRange(ctx, "digits.img", 3, 4)
	if err != nil {
		t.Fatalf("read range error: %v", err)
	}
	if string(part) != "3456" {
		t.Fatalf("unexpected range bytes: %s", string(part))
	}

	if _, err := store.ReadRange(ctx, "digits.img", 8, 5); err == nil {
		t.Fatalf("reading past EOF should fail")
	}
}

func TestStoreStatMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Stat(context.Background(), "missing.jpg")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.ReadFull(context.Background(), "missing.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from ReadFull, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Write(ctx, "remove.gif", []byte("data")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := store.Delete(ctx, "remove.gif"); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if _, err := store.Stat(ctx, "remove.gif"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.Delete(ctx, "remove.gif"); err != nil {
		t.Fatalf("deleting a missing file should succeed, got %v", err)
	}
}

func TestStoreIgnoresDirectories(t *testing.T) {
	store := newTestStore(t)
	if err := os.MkdirAll(filepath.Join(store.Dir(), "nested.jpg"), 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}

	if _, err := store.Stat(context.Background(), "nested.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("directories should not be listed, got %d entries", len(entries))
	}
}

func TestStoreListSkipsTempFiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Write(ctx, "keep.webp", []byte("abc")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Dir(), ".cache-123"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp error: %v", err)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "keep.webp" {
		t.Fatalf("unexpected listing: %+v", entries)
	}
	if entries[0].SizeBytes != 3 {
		t.Fatalf("unexpected size: %d", entries[0].SizeBytes)
	}
}

func TestStoreRejectsTraversalNames(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"", "../escape.jpg", "a/b.jpg", ".hidden"} {
		if _, err := store.Write(context.Background(), name, []byte("x")); err == nil {
			t.Fatalf("expected error for name %q", name)
		}
	}
}

func TestStoreTouchBumpsAccessTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Write(ctx, "touch.jpg", []byte("data")); err != nil {
		t.Fatalf("write error: %v", err)
	}

	old := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	path := filepath.Join(store.Dir(), "touch.jpg")
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes error: %v", err)
	}

	if err := store.Touch(ctx, "touch.jpg"); err != nil {
		t.Fatalf("touch error: %v", err)
	}
	entry, err := store.Stat(ctx, "touch.jpg")
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if !entry.AccessTime.After(old) {
		t.Fatalf("access time should move forward, got %v", entry.AccessTime)
	}
	if !entry.ModTime.Equal(old) {
		t.Fatalf("mod time should be preserved, expected %v got %v", old, entry.ModTime)
	}

	if err := store.Touch(ctx, "absent.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("touching a missing file should report ErrNotFound, got %v", err)
	}
}

func TestStoreClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"a.jpg", "b.png", "c.img"} {
		if _, err := store.Write(ctx, name, []byte("0123456789")); err != nil {
			t.Fatalf("write error: %v", err)
		}
	}

	stats, err := CollectStats(ctx, store)
	if err != nil {
		t.Fatalf("stats error: %v", err)
	}
	if stats.FileCount != 3 || stats.TotalBytes != 30 {
		t.Fatalf("unexpected stats before clear: %+v", stats)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear error: %v", err)
	}
	stats, err = CollectStats(ctx, store)
	if err != nil {
		t.Fatalf("stats error: %v", err)
	}
	if stats.FileCount != 0 || stats.TotalBytes != 0 {
		t.Fatalf("expected empty stats after clear, got %+v", stats)
	}
	if stats.Path != store.Dir() {
		t.Fatalf("stats path mismatch: %s", stats.Path)
	}
	if info, err := os.Stat(store.Dir()); err != nil || !info.IsDir() {
		t.Fatalf("cache dir should be recreated: %v", err)
	}
}

// newTestStore returns a Store backed by a temporary directory.
func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "image-cache"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
