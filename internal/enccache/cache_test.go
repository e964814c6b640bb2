package enccache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/face-organizer/internal/faces"
	"github.com/kozaktomas/face-organizer/internal/fingerprint"
)

func testFingerprint(n int) fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		Path:          fmt.Sprintf("/photos/img%03d.jpg", n),
		Size:          int64(1000 + n),
		ModTime:       int64(n),
		ConfigVersion: "abcd1234",
	}
}

func testRecords(path string) []faces.Record {
	return []faces.Record{
		{ImagePath: path, Box: [4]int{10, 10, 50, 50}, Embedding: []float32{0.1, 0.2, 0.3}, Quality: 0.05},
	}
}

func TestStoreAndLookup(t *testing.T) {
	cache := Open(filepath.Join(t.TempDir(), "cache.json"), 100, 0)

	fp := testFingerprint(1)
	cache.Store(fp, testRecords(fp.Path))

	records, ok := cache.Lookup(fp)
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if len(records) != 1 || records[0].ImagePath != fp.Path {
		t.Errorf("unexpected records: %+v", records)
	}

	if _, ok := cache.Lookup(testFingerprint(2)); ok {
		t.Error("expected a miss for an unknown fingerprint")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v; want 1 hit and 1 miss", stats)
	}
}

func TestChangedFingerprintMisses(t *testing.T) {
	cache := Open(filepath.Join(t.TempDir(), "cache.json"), 100, 0)

	fp := testFingerprint(1)
	cache.Store(fp, testRecords(fp.Path))

	modified := fp
	modified.ModTime++
	if _, ok := cache.Lookup(modified); ok {
		t.Error("a changed mtime must invalidate the entry")
	}

	differentConfig := fp
	differentConfig.ConfigVersion = "ffff0000"
	if _, ok := cache.Lookup(differentConfig); ok {
		t.Error("a changed config version must invalidate the entry")
	}
}

func TestEmptyRecordsAreAValidEntry(t *testing.T) {
	cache := Open(filepath.Join(t.TempDir(), "cache.json"), 100, 0)

	fp := testFingerprint(1)
	cache.Store(fp, nil)

	records, ok := cache.Lookup(fp)
	if !ok {
		t.Fatal("a no-faces result should still be a cache hit")
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestFlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	cache := Open(path, 100, 0)
	fp := testFingerprint(1)
	cache.Store(fp, testRecords(fp.Path))
	if err := cache.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	reloaded := Open(path, 100, 0)
	if got := reloaded.Len(); got != 1 {
		t.Fatalf("reloaded cache holds %d entries; want 1", got)
	}

	records, ok := reloaded.Lookup(fp)
	if !ok {
		t.Fatal("expected a hit after reload")
	}
	if records[0].Embedding[1] != 0.2 {
		t.Errorf("embedding did not survive the roundtrip: %v", records[0].Embedding)
	}
}

func TestDiskHitPromotesIntoMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	cache := Open(path, 100, 0)
	fp := testFingerprint(1)
	cache.Store(fp, testRecords(fp.Path))
	if err := cache.Flush(); err != nil {
		t.Fatal(err)
	}

	// A fresh open has an empty memory layer; the first lookup is served
	// from disk and promoted.
	reloaded := Open(path, 100, 0)
	if _, ok := reloaded.Lookup(fp); !ok {
		t.Fatal("expected a disk hit")
	}
	if _, ok := reloaded.Lookup(fp); !ok {
		t.Fatal("expected a memory hit")
	}

	stats := reloaded.Stats()
	if stats.Promotions != 1 {
		t.Errorf("promotions = %d; want 1", stats.Promotions)
	}
	if stats.Hits != 2 {
		t.Errorf("hits = %d; want 2", stats.Hits)
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{definitely not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := Open(path, 100, 0)
	if got := cache.Len(); got != 0 {
		t.Errorf("corrupt cache file should degrade to empty, got %d entries", got)
	}

	// The cache must stay usable.
	fp := testFingerprint(1)
	cache.Store(fp, testRecords(fp.Path))
	if err := cache.Flush(); err != nil {
		t.Fatalf("Flush after corrupt load failed: %v", err)
	}
}

func TestEvictionDropsOldestFirst(t *testing.T) {
	cache := Open(filepath.Join(t.TempDir(), "cache.json"), 2, 0)

	first := testFingerprint(1)
	cache.Store(first, testRecords(first.Path))
	time.Sleep(2 * time.Millisecond)
	second := testFingerprint(2)
	cache.Store(second, testRecords(second.Path))
	time.Sleep(2 * time.Millisecond)
	third := testFingerprint(3)
	cache.Store(third, testRecords(third.Path))

	if got := cache.Len(); got != 2 {
		t.Fatalf("cache holds %d entries; want 2 after eviction", got)
	}
	if _, ok := cache.Lookup(first); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := cache.Lookup(third); !ok {
		t.Error("newest entry should survive eviction")
	}
	if got := cache.Stats().Evictions; got != 1 {
		t.Errorf("evictions = %d; want 1", got)
	}
}

func TestExpiredEntriesPurgedOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	// Write a cache file with one stale and one fresh entry.
	file := map[string]any{
		"version": 1,
		"entries": map[string]any{
			"stale": map[string]any{
				"fingerprint": testFingerprint(1),
				"records":     []faces.Record{},
				"stored_at":   time.Now().Add(-48 * time.Hour),
			},
			"fresh": map[string]any{
				"fingerprint": testFingerprint(2),
				"records":     []faces.Record{},
				"stored_at":   time.Now(),
			},
		},
	}
	data, err := json.Marshal(file)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cache := Open(path, 100, 24*time.Hour)
	if got := cache.Len(); got != 1 {
		t.Errorf("expected only the fresh entry to survive, got %d", got)
	}
}

func TestEntryWithoutEmbeddingLoadsAsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	skewed := testFingerprint(1)
	healthy := testFingerprint(2)

	// An older writer may have stored records without the embedding field;
	// such an entry must degrade to a miss, not be served as a hit.
	file := map[string]any{
		"version": 1,
		"entries": map[string]any{
			skewed.Key(): map[string]any{
				"fingerprint": skewed,
				"records": []map[string]any{
					{"image_path": skewed.Path, "box": [4]int{10, 10, 50, 50}},
				},
				"stored_at": time.Now(),
			},
			healthy.Key(): map[string]any{
				"fingerprint": healthy,
				"records":     testRecords(healthy.Path),
				"stored_at":   time.Now(),
			},
		},
	}
	data, err := json.Marshal(file)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cache := Open(path, 100, 0)
	if _, ok := cache.Lookup(skewed); ok {
		t.Error("an entry with embedding-less records must be a miss")
	}
	if _, ok := cache.Lookup(healthy); !ok {
		t.Error("the healthy entry should still be a hit")
	}
}

func TestFlushIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	cache := Open(path, 100, 0)

	fp := testFingerprint(1)
	cache.Store(fp, testRecords(fp.Path))
	if err := cache.Flush(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not survive a successful flush")
	}

	var file struct {
		Version int `json:"version"`
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("flushed file is not valid JSON: %v", err)
	}
	if file.Version != 1 {
		t.Errorf("file version = %d; want 1", file.Version)
	}
}

func TestClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	cache := Open(path, 100, 0)

	fp := testFingerprint(1)
	cache.Store(fp, testRecords(fp.Path))
	if err := cache.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if got := cache.Len(); got != 0 {
		t.Errorf("expected empty cache after Clear, got %d", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cache file should be removed by Clear")
	}
}
