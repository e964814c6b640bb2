// Package pipeline orchestrates the full organize run: scan, cached
// detection, clustering, the naming barrier, and the copy fan-out.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-organizer/internal/cluster"
	"github.com/kozaktomas/face-organizer/internal/config"
	"github.com/kozaktomas/face-organizer/internal/detect"
	"github.com/kozaktomas/face-organizer/internal/enccache"
	"github.com/kozaktomas/face-organizer/internal/fingerprint"
	"github.com/kozaktomas/face-organizer/internal/naming"
	"github.com/kozaktomas/face-organizer/internal/organizer"
)

// Result summarizes an organize run. Every scanned image ends in exactly one
// terminal outcome: copied to one or more destinations, routed to the
// unsorted fallback, failed, or skipped.
type Result struct {
	Scanned     int
	CachedHits  int
	Detected    int
	Failed      int
	Skipped     int
	Clusters    int
	NewClusters int
	Copied      int
	CopySkipped int
	CopyFailed  int
	Stopped     bool
	Abandoned   bool
	Errors      []error

	CacheStats enccache.Stats
}

// Pipeline wires the components of one run. Configuration is immutable for
// the lifetime of the pipeline; per-run knobs are not mutated mid-run.
type Pipeline struct {
	cfg      *config.Config
	detector detect.Detector
	cache    *enccache.Cache
	store    *cluster.Store
	index    *cluster.IdentityIndex
	pool     *Pool

	progress    ProgressFunc
	sessionHook func(*naming.Session)
	counts      Counts
}

// New builds a pipeline. The identity index may be nil when the caller does
// not need the match surface refreshed.
func New(cfg *config.Config, detector detect.Detector, cache *enccache.Cache, store *cluster.Store, index *cluster.IdentityIndex, progress ProgressFunc) *Pipeline {
	model := detect.ModelHOG
	if cfg.Detector.Accelerated {
		model = detect.ModelCNN
	}

	pool := NewPool(detector, cache, PoolConfig{
		Workers:        cfg.Pipeline.MaxWorkers,
		ResizeFactor:   cfg.Detector.ResizeFactor,
		MinFaceQuality: cfg.Pipeline.MinFaceQuality,
		MinFileSize:    cfg.Pipeline.MinFileSize,
		ConfigVersion:  ConfigVersion(model, cfg),
	})

	return &Pipeline{
		cfg:      cfg,
		detector: detector,
		cache:    cache,
		store:    store,
		index:    index,
		pool:     pool,
		progress: progress,
	}
}

// ConfigVersion derives the cache config version for the given model and
// settings. Exposed so commands can invalidate consistently.
func ConfigVersion(model string, cfg *config.Config) string {
	return fingerprint.ConfigVersion(model, cfg.Detector.ResizeFactor, cfg.Pipeline.MinFaceQuality)
}

// SetSessionHook registers a callback invoked with the naming session when
// the naming phase begins, so other surfaces can submit decisions too.
func (p *Pipeline) SetSessionHook(hook func(*naming.Session)) {
	p.sessionHook = hook
}

// Stop requests a cooperative stop of the detection phase. Work completed
// before the stop is retained and reused on resume.
func (p *Pipeline) Stop() {
	p.pool.Stop()
}

// Pool exposes the worker pool, for direct submission by commands that only
// need detection outcomes.
func (p *Pipeline) Pool() *Pool {
	return p.pool
}

func (p *Pipeline) emit(t EventType, path, clusterID, msg string) {
	if p.progress == nil {
		return
	}
	p.progress(Event{Type: t, Path: path, ClusterID: clusterID, Message: msg, Counts: p.counts})
}

// Run executes the whole pipeline from source to destination. The resolver
// is invoked for every cluster without a stored name; naming is a hard
// barrier, nothing proceeds past it while decisions are pending.
func (p *Pipeline) Run(ctx context.Context, sourceDir, destDir string, resolve naming.Resolver) (*Result, error) {
	result := &Result{}

	paths, err := FindImages(sourceDir, p.cfg.Pipeline.MinFileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", sourceDir, err)
	}
	result.Scanned = len(paths)
	p.counts.Scanned = len(paths)
	p.emit(EventScanned, sourceDir, "", fmt.Sprintf("found %d images", len(paths)))

	index, runErr := p.detectAndCluster(ctx, paths, result)

	// Completed cache entries survive a stop; flush before deciding how to
	// finish the run.
	if err := p.cache.Flush(); err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("failed to flush encoding cache: %w", err))
	}

	if runErr != nil {
		return result, runErr
	}
	if result.Stopped {
		p.emit(EventStopped, "", "", "stopped before naming")
		return result, p.store.Save()
	}

	if err := p.store.Save(); err != nil {
		return result, fmt.Errorf("failed to save people store: %w", err)
	}

	session := naming.NewSession(p.store)
	if p.sessionHook != nil {
		p.sessionHook(session)
	}
	for _, req := range session.Pending() {
		p.emit(EventNamingRequested, req.Representative.ImagePath, req.ClusterID, "")
	}
	if err := session.Run(ctx, resolve); err != nil {
		if !errors.Is(err, naming.ErrAbandoned) {
			return result, err
		}
		// Remaining clusters were marked skipped; the run continues and
		// their images fall through to the unsorted folder.
		result.Abandoned = true
	}
	if err := p.store.Save(); err != nil {
		return result, fmt.Errorf("failed to save people store: %w", err)
	}

	if p.index != nil {
		p.index.Build(p.store.All())
		if err := p.index.Save(p.cfg.Cache.IndexPath); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to save identity index: %w", err))
		}
	}

	org := organizer.New(destDir, p.cfg.Organizer.UnsortedDir)
	actions := org.Plan(index)
	summary := org.Execute(actions)
	result.Copied = summary.Copied
	result.CopySkipped = summary.Skipped
	result.CopyFailed = summary.Failed
	result.Errors = append(result.Errors, summary.Errors...)
	p.counts.Copied = summary.Copied
	p.emit(EventCopied, destDir, "", fmt.Sprintf("copied %d files", summary.Copied))

	result.CacheStats = p.cache.Stats()
	p.emit(EventDone, "", "", "")
	return result, nil
}

// detectAndCluster drains the worker pool and feeds the aggregated records
// into the greedy cluster engine. Clustering runs single-threaded over the
// results: it needs a consistent snapshot, and for a fixed arrival order the
// partition is deterministic.
func (p *Pipeline) detectAndCluster(ctx context.Context, paths []string, result *Result) (organizer.ImageIndex, error) {
	existing := p.seedClusters()
	engine := cluster.NewEngine(p.cfg.Pipeline.Tolerance, existing)
	before := len(engine.Clusters())

	index := make(organizer.ImageIndex)

	for outcome := range p.pool.Submit(ctx, paths) {
		switch outcome.Kind {
		case OutcomeCached:
			result.CachedHits++
			p.counts.CachedHits++
			p.emit(EventCachedHit, outcome.Path, "", "")
		case OutcomeDetected:
			result.Detected++
			p.counts.Detected++
			p.emit(EventDetected, outcome.Path, "", "")
		case OutcomeFailed:
			result.Failed++
			p.counts.Failed++
			result.Errors = append(result.Errors, outcome.Err)
			p.emit(EventFailed, outcome.Path, "", outcome.Err.Error())
			continue
		case OutcomeSkipped:
			result.Skipped++
			p.counts.Skipped++
			p.emit(EventSkipped, outcome.Path, "", outcome.Reason)
			continue
		}

		// All records of one image are contiguous here, preserving
		// detection order within the image.
		if _, ok := index[outcome.Path]; !ok {
			index[outcome.Path] = nil
		}
		for _, record := range outcome.Records {
			n := len(engine.Clusters())
			c := engine.AssignOne(record)
			if c == nil {
				result.Errors = append(result.Errors, fmt.Errorf("unusable embedding in %s", record.ImagePath))
				continue
			}
			if len(engine.Clusters()) > n {
				result.NewClusters++
				p.counts.Clusters = len(engine.Clusters())
				p.emit(EventClusterCreated, record.ImagePath, c.ID, "")
			}
			index[outcome.Path] = append(index[outcome.Path], organizer.Assignment{Record: record, Cluster: c})
		}
	}

	if p.pool.Stopped() || ctx.Err() != nil {
		result.Stopped = true
	}

	result.Clusters = len(engine.Clusters())
	p.counts.Clusters = result.Clusters

	for _, c := range engine.Clusters()[before:] {
		p.store.Put(c)
	}
	for _, c := range engine.Clusters()[:before] {
		p.store.Put(c)
	}

	return index, nil
}

// seedClusters loads existing clusters for incremental runs. Members are
// truncated to the founding record: it stays available as the naming
// representative while this run's assignments repopulate the rest.
func (p *Pipeline) seedClusters() []*cluster.Cluster {
	all := p.store.All()
	for _, c := range all {
		if len(c.Members) > 1 {
			c.Members = c.Members[:1]
		}
	}
	return all
}
