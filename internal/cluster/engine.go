// Package cluster groups face embeddings into person-clusters.
//
// The engine is a greedy nearest-representative assigner, not a globally
// optimal clustering: the result depends on the order records are ingested,
// and re-running over the same image set in a different order may produce a
// different partition. That property is accepted and documented; for a fixed
// record order and tolerance the partition is deterministic.
package cluster

import (
	"time"

	"github.com/google/uuid"
	"github.com/viterin/vek/vek32"

	"github.com/kozaktomas/face-organizer/internal/faces"
)

// Cluster is a set of face records believed to depict one person. The
// representative embedding is fixed at creation (the founding record's
// embedding); later members do not shift it. Clusters never merge
// automatically - merging would require human confirmation.
type Cluster struct {
	ID             string         `json:"id"`
	Name           string         `json:"name,omitempty"`
	Skipped        bool           `json:"skipped,omitempty"`
	Representative []float32      `json:"representative"`
	Members        []faces.Record `json:"members,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Named reports whether the cluster has a person name assigned.
func (c *Cluster) Named() bool {
	return c.Name != ""
}

// Engine assigns face records to clusters using batched Euclidean distance
// against the matrix of representative embeddings. Clustering is
// single-threaded over the aggregated records; it must see a consistent
// snapshot to stay deterministic for a given order.
type Engine struct {
	tolerance float64
	clusters  []*Cluster

	// reps is the flattened representative matrix, one row per cluster in
	// creation order. dists is the reusable per-assignment buffer.
	dim   int
	reps  []float32
	dists []float32
}

// NewEngine creates an engine seeded with existing clusters (from a previous
// run's people store). Tolerance is the maximum embedding distance for a
// record to join a cluster; smaller is stricter. Seeds whose representative
// does not match the matrix dimension are ignored.
func NewEngine(tolerance float64, existing []*Cluster) *Engine {
	e := &Engine{tolerance: tolerance}
	for _, c := range existing {
		e.appendCluster(c)
	}
	return e
}

// Assign runs greedy nearest-representative assignment for each record in
// order: the record joins the cluster with the smallest representative
// distance within tolerance, ties broken by creation order; otherwise it
// founds a new singleton cluster. A cluster with zero members cannot exist.
func (e *Engine) Assign(records []faces.Record) {
	for i := range records {
		e.assignOne(records[i])
	}
}

// AssignOne assigns a single record and returns the cluster it landed in, or
// nil when the record carries no usable embedding.
func (e *Engine) AssignOne(record faces.Record) *Cluster {
	return e.assignOne(record)
}

func (e *Engine) assignOne(record faces.Record) *Cluster {
	// A missing or wrong-dimension embedding cannot found a representative
	// row; rejecting it here keeps the flattened matrix rectangular.
	if len(record.Embedding) == 0 || (e.dim != 0 && len(record.Embedding) != e.dim) {
		return nil
	}

	if idx := e.nearestWithin(record.Embedding, e.tolerance); idx >= 0 {
		c := e.clusters[idx]
		c.Members = append(c.Members, record)
		return c
	}

	c := &Cluster{
		ID:             uuid.NewString(),
		Representative: record.Embedding,
		Members:        []faces.Record{record},
		CreatedAt:      time.Now(),
	}
	e.appendCluster(c)
	return c
}

// nearestWithin computes distances from the query to every representative in
// one batched pass over the matrix and returns the index of the closest
// cluster within tolerance, or -1. Scanning rows in creation order with a
// strict less-than keeps ties on the oldest cluster.
func (e *Engine) nearestWithin(query []float32, tolerance float64) int {
	if len(e.clusters) == 0 || len(query) != e.dim {
		return -1
	}

	for i := 0; i < len(e.clusters); i++ {
		row := e.reps[i*e.dim : (i+1)*e.dim]
		e.dists[i] = vek32.Distance(query, row)
	}

	best := -1
	bestDist := float32(tolerance)
	for i, d := range e.dists[:len(e.clusters)] {
		if d < bestDist || (best == -1 && d == bestDist) {
			best = i
			bestDist = d
		}
	}
	return best
}

// Clusters returns the clusters in creation order.
func (e *Engine) Clusters() []*Cluster {
	return e.clusters
}

func (e *Engine) appendCluster(c *Cluster) {
	if len(c.Representative) == 0 || (e.dim != 0 && len(c.Representative) != e.dim) {
		return
	}
	if e.dim == 0 {
		e.dim = len(c.Representative)
	}
	e.clusters = append(e.clusters, c)
	e.reps = append(e.reps, c.Representative...)
	e.dists = append(e.dists, 0)
}

// Distance returns the Euclidean distance between two embeddings.
func Distance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return float64(vek32.Distance(a, b))
}
