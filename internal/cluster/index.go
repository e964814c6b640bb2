package cluster

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

const indexMaxNeighbors = 16

// IdentityIndex is an approximate-nearest-neighbor index over named-cluster
// representatives, used to identify known people in a photo without scanning
// every cluster linearly. It is an accelerator only: assignment semantics
// stay with the engine.
type IdentityIndex struct {
	mu          sync.RWMutex
	graph       *hnsw.Graph[string]
	savedGraph  *hnsw.SavedGraph[string]
	idToCluster map[string]*Cluster
	path        string
}

// NewIdentityIndex creates an empty index.
func NewIdentityIndex() *IdentityIndex {
	return &IdentityIndex{
		idToCluster: make(map[string]*Cluster),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors) // standard HNSW formula
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build rebuilds the index from named clusters. Unnamed and skipped clusters
// are excluded; identification only ever resolves to a person.
func (ix *IdentityIndex) Build(clusters []*Cluster) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.savedGraph = nil
	ix.idToCluster = make(map[string]*Cluster, len(clusters))

	g := newGraph()
	n := 0
	for _, c := range clusters {
		if !c.Named() || len(c.Representative) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(c.ID, c.Representative))
		ix.idToCluster[c.ID] = c
		n++
	}

	if n == 0 {
		ix.graph = nil
		return
	}
	ix.graph = g
}

// Add inserts a single named cluster into the index.
func (ix *IdentityIndex) Add(c *Cluster) {
	if !c.Named() || len(c.Representative) == 0 {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.graph == nil {
		ix.graph = newGraph()
	}
	ix.graph.Add(hnsw.MakeNode(c.ID, c.Representative))
	ix.idToCluster[c.ID] = c
}

// Search returns up to k nearest clusters with their Euclidean distances to
// the query embedding. Clusters removed from the lookup map since the graph
// was built are filtered out.
func (ix *IdentityIndex) Search(query []float32, k int) ([]*Cluster, []float64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil && ix.savedGraph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	var neighbors []hnsw.Node[string]
	if ix.savedGraph != nil {
		neighbors = ix.savedGraph.Search(query, k)
	} else {
		neighbors = ix.graph.Search(query, k)
	}

	clusters := make([]*Cluster, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		c, ok := ix.idToCluster[n.Key]
		if !ok {
			continue
		}
		clusters = append(clusters, c)
		distances = append(distances, Distance(query, n.Value))
	}

	return clusters, distances, nil
}

// Count returns the number of indexed clusters.
func (ix *IdentityIndex) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.idToCluster)
}

// Save persists the graph to path. An empty index removes the file.
func (ix *IdentityIndex) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if path == "" {
		return nil
	}

	if ix.graph == nil && ix.savedGraph == nil {
		_ = os.Remove(path)
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	if ix.savedGraph != nil {
		if err := ix.savedGraph.Export(f); err != nil {
			return fmt.Errorf("failed to export identity index: %w", err)
		}
		return nil
	}
	if err := ix.graph.Export(f); err != nil {
		return fmt.Errorf("failed to export identity index: %w", err)
	}
	return nil
}

// Load restores the graph from path and rebuilds the cluster lookup from the
// store. A missing file is not an error; callers fall back to Build.
func (ix *IdentityIndex) Load(path string, clusters []*Cluster) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.path = path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load identity index: %w", err)
	}

	ix.savedGraph = saved
	ix.idToCluster = make(map[string]*Cluster, len(clusters))
	for _, c := range clusters {
		if c.Named() {
			ix.idToCluster[c.ID] = c
		}
	}
	return nil
}
