package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store persists clusters (and their assigned names) between runs. Names
// live with the cluster, not with a single session: a resumed run reuses a
// previously stored name instead of asking again, and skipped clusters stay
// skipped.
type Store struct {
	path string

	mu       sync.RWMutex
	clusters map[string]*Cluster
}

type storeFile struct {
	Version  int        `json:"version"`
	Clusters []*Cluster `json:"clusters"`
}

const storeVersion = 1

// OpenStore loads the people store from path. A missing file starts empty.
// Unlike the encoding cache, a corrupt people store is an error: silently
// dropping names would orphan destination folders.
func OpenStore(path string) (*Store, error) {
	s := &Store{
		path:     path,
		clusters: make(map[string]*Cluster),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read people store: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse people store: %w", err)
	}
	for _, c := range file.Clusters {
		if c.ID == "" || len(c.Representative) == 0 {
			continue
		}
		s.clusters[c.ID] = c
	}

	return s, nil
}

// All returns the stored clusters ordered by creation time, which is also
// the representative-matrix order the engine was built with.
func (s *Store) All() []*Cluster {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Get returns a cluster by ID.
func (s *Store) Get(id string) (*Cluster, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clusters[id]
	return c, ok
}

// Put inserts or replaces a cluster. Existing name and skipped decisions are
// kept when the incoming cluster carries none, so re-clustered members do
// not wipe human input.
func (s *Store) Put(c *Cluster) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.clusters[c.ID]; ok {
		if c.Name == "" {
			c.Name = prev.Name
		}
		if !c.Skipped {
			c.Skipped = prev.Skipped
		}
	}
	s.clusters[c.ID] = c
}

// SetName assigns a person name to a cluster.
func (s *Store) SetName(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[id]
	if !ok {
		return fmt.Errorf("cluster %s not found", id)
	}
	c.Name = name
	c.Skipped = false
	return nil
}

// SetSkipped marks a cluster as explicitly skipped by the user.
func (s *Store) SetSkipped(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[id]
	if !ok {
		return fmt.Errorf("cluster %s not found", id)
	}
	c.Skipped = true
	return nil
}

// Unresolved returns clusters that still need a human decision: no name and
// not skipped.
func (s *Store) Unresolved() []*Cluster {
	all := s.All()
	out := make([]*Cluster, 0, len(all))
	for _, c := range all {
		if !c.Named() && !c.Skipped {
			out = append(out, c)
		}
	}
	return out
}

// Reset drops all clusters and removes the store file.
func (s *Store) Reset() error {
	s.mu.Lock()
	s.clusters = make(map[string]*Cluster)
	s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove people store: %w", err)
	}
	return nil
}

// Save writes the store atomically (temp file + rename). Member records are
// persisted along with names so a resumed session can show the same
// representative crops.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	file := storeFile{
		Version:  storeVersion,
		Clusters: s.All(),
	}

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal people store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
