// Package enccache is the persistent face-encoding cache: a fast in-memory
// layer in front of a single on-disk JSON file. It keeps re-runs from
// re-invoking the detector on files that have not changed.
package enccache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-organizer/internal/faces"
	"github.com/kozaktomas/face-organizer/internal/fingerprint"
)

const fileVersion = 1

// maxMemoryEntries bounds the in-memory layer; the disk layer has its own
// configurable bound.
const maxMemoryEntries = 1000

// Entry is one cached extraction: the fingerprint it was computed under and
// the ordered face records extracted from the file. Entries are written once
// and never mutated.
type Entry struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Records     []faces.Record          `json:"records"`
	StoredAt    time.Time               `json:"stored_at"`
}

// cacheFile is the on-disk format. Unknown fields in future versions are
// ignored; entries that fail to decode degrade to cache misses.
type cacheFile struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// Stats holds the observable counters consumed by reporting.
type Stats struct {
	Hits       int64
	Misses     int64
	Promotions int64 // disk hits promoted into memory
	Evictions  int64
}

// Cache is safe for concurrent use. Lookups take a read lock; stores
// serialize per call; Flush never exposes a partially written file.
type Cache struct {
	path       string
	maxEntries int
	maxAge     time.Duration

	mu      sync.RWMutex
	memory  map[string][]faces.Record
	entries map[string]Entry

	flushMu sync.Mutex // disk writes are single-flight

	hits       atomic.Int64
	misses     atomic.Int64
	promotions atomic.Int64
	evictions  atomic.Int64
}

// Open loads the cache from path. A missing file starts an empty cache; a
// corrupt or unreadable file also starts empty with a logged warning, never
// an error. Entries older than maxAge are purged during load.
func Open(path string, maxEntries int, maxAge time.Duration) *Cache {
	c := &Cache{
		path:       path,
		maxEntries: maxEntries,
		maxAge:     maxAge,
		memory:     make(map[string][]faces.Record),
		entries:    make(map[string]Entry),
	}

	if err := c.load(); err != nil {
		log.Printf("warning: failed to load encoding cache, starting empty: %v", err)
		c.entries = make(map[string]Entry)
	}
	c.purgeExpired()

	return c
}

// Lookup probes the memory layer, then the disk layer. A disk hit is
// promoted into memory (write-through) so repeated lookups stay fast.
func (c *Cache) Lookup(fp fingerprint.Fingerprint) ([]faces.Record, bool) {
	key := fp.Key()

	c.mu.RLock()
	records, ok := c.memory[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return records, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if len(c.memory) < maxMemoryEntries {
		c.memory[key] = entry.Records
		c.promotions.Add(1)
	}
	c.hits.Add(1)
	return entry.Records, true
}

// Store writes the records under the fingerprint to both layers. An empty
// record slice is a valid entry: it remembers that a file has no usable
// faces so detection is not repeated.
func (c *Cache) Store(fp fingerprint.Fingerprint, records []faces.Record) {
	key := fp.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		Fingerprint: fp,
		Records:     records,
		StoredAt:    time.Now(),
	}
	if len(c.memory) < maxMemoryEntries {
		c.memory[key] = records
	}

	c.evictLocked()
}

// Invalidate removes the entry for a fingerprint from both layers.
func (c *Cache) Invalidate(fp fingerprint.Fingerprint) {
	key := fp.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.memory, key)
	delete(c.entries, key)
}

// Clear drops everything and removes the cache file.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.memory = make(map[string][]faces.Record)
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}

// Len returns the number of entries in the disk layer.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Promotions: c.promotions.Load(),
		Evictions:  c.evictions.Load(),
	}
}

// Flush durably persists the disk layer. Safe to call at any time, including
// during concurrent lookups: the snapshot is taken under the read lock and
// written to a temp file followed by an atomic rename, so readers never
// observe a partial file.
func (c *Cache) Flush() error {
	if c.path == "" {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.RLock()
	snapshot := cacheFile{
		Version: fileVersion,
		Entries: make(map[string]Entry, len(c.entries)),
	}
	for k, v := range c.entries {
		snapshot.Entries[k] = v
	}
	c.mu.RUnlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func (c *Cache) load() error {
	if c.path == "" {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse cache file: %w", err)
	}

	c.entries = make(map[string]Entry, len(file.Entries))
	for key, entry := range file.Entries {
		// Entries from older versions may lack a fingerprint or record
		// embeddings; treat them as misses rather than failing the load.
		if entry.Fingerprint.Path == "" || !usableRecords(entry.Records) {
			continue
		}
		c.entries[key] = entry
	}

	return nil
}

// usableRecords reports whether every record carries an embedding. An empty
// record slice is fine (a remembered no-faces file); a record without an
// embedding is version skew and must not be served as a hit.
func usableRecords(records []faces.Record) bool {
	for i := range records {
		if len(records[i].Embedding) == 0 {
			return false
		}
	}
	return true
}

// purgeExpired drops entries older than the configured age bound.
func (c *Cache) purgeExpired() {
	if c.maxAge <= 0 {
		return
	}

	cutoff := time.Now().Add(-c.maxAge)

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.StoredAt.Before(cutoff) {
			delete(c.entries, key)
			delete(c.memory, key)
			c.evictions.Add(1)
		}
	}
}

// evictLocked removes the oldest entries until the disk layer fits the
// configured bound. Caller holds the write lock.
func (c *Cache) evictLocked() {
	if c.maxEntries <= 0 || len(c.entries) <= c.maxEntries {
		return
	}

	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		all = append(all, aged{key, entry.StoredAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].storedAt.Before(all[j].storedAt)
	})

	for i := 0; i < len(all)-c.maxEntries; i++ {
		delete(c.entries, all[i].key)
		delete(c.memory, all[i].key)
		c.evictions.Add(1)
	}
}
