package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/face-organizer/internal/detect"
	"github.com/kozaktomas/face-organizer/internal/enccache"
	"github.com/kozaktomas/face-organizer/internal/faces"
	"github.com/kozaktomas/face-organizer/internal/fingerprint"
)

// OutcomeKind classifies the terminal outcome of one image in the pool.
type OutcomeKind int

const (
	OutcomeCached OutcomeKind = iota
	OutcomeDetected
	OutcomeFailed
	OutcomeSkipped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCached:
		return "cached"
	case OutcomeDetected:
		return "detected"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the result for a single image path. Records carry all faces of
// the image contiguously, in detection order; ordering across images is not
// guaranteed.
type Outcome struct {
	Path    string
	Kind    OutcomeKind
	Records []faces.Record
	Reason  string // for Skipped
	Err     error  // for Failed
}

// PoolConfig holds the detection settings the pool runs under.
type PoolConfig struct {
	Workers        int
	ResizeFactor   float64
	MinFaceQuality float64
	MinFileSize    int64
	ConfigVersion  string
}

// Pool is the bounded detection worker pool. Workers pull image paths from
// the submitted batch, check the encoding cache, invoke the detector on
// misses, and emit outcomes. A shared stop flag is observed before each new
// path; in-flight detections complete and their cache writes are kept.
type Pool struct {
	detector detect.Detector
	cache    *enccache.Cache
	cfg      PoolConfig

	stopped atomic.Bool
}

func NewPool(detector detect.Detector, cache *enccache.Cache, cfg PoolConfig) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Pool{detector: detector, cache: cache, cfg: cfg}
}

// Stop requests a cooperative stop. Paths not yet started are not processed;
// completed cache entries remain valid and are reused on the next run.
func (p *Pool) Stop() {
	p.stopped.Store(true)
}

// Stopped reports whether a stop was requested.
func (p *Pool) Stopped() bool {
	return p.stopped.Load()
}

// Submit processes the paths with bounded concurrency and returns a channel
// of outcomes, closed when all started paths finish. The channel is
// unordered across images.
func (p *Pool) Submit(ctx context.Context, paths []string) <-chan Outcome {
	results := make(chan Outcome, len(paths))
	semaphore := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup

	for _, path := range paths {
		if p.stopped.Load() || ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if p.stopped.Load() || ctx.Err() != nil {
				return
			}
			results <- p.processOne(ctx, path)
		}(path)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// processOne runs the full per-image flow: fingerprint, cache probe, resize,
// detect, quality filter, cache store.
func (p *Pool) processOne(ctx context.Context, path string) Outcome {
	size := statSize(path)
	if size < 0 {
		return Outcome{Path: path, Kind: OutcomeFailed, Err: fmt.Errorf("file unreadable: %s", path)}
	}
	if size == 0 || size < p.cfg.MinFileSize {
		return Outcome{Path: path, Kind: OutcomeSkipped, Reason: "file too small"}
	}
	if !IsImagePath(path) {
		return Outcome{Path: path, Kind: OutcomeSkipped, Reason: "unsupported format"}
	}

	fp, err := fingerprint.New(path, p.cfg.ConfigVersion)
	if err != nil {
		return Outcome{Path: path, Kind: OutcomeFailed, Err: err}
	}

	if records, ok := p.cache.Lookup(fp); ok {
		return Outcome{Path: path, Kind: OutcomeCached, Records: records}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Outcome{Path: path, Kind: OutcomeFailed, Err: fmt.Errorf("failed to read %s: %w", path, err)}
	}

	width, height, err := detect.Dimensions(data)
	if err != nil {
		return Outcome{Path: path, Kind: OutcomeSkipped, Reason: "unsupported format"}
	}

	scaled, scale, err := detect.ResizeForDetection(data, p.cfg.ResizeFactor)
	if err != nil {
		return Outcome{Path: path, Kind: OutcomeSkipped, Reason: "unsupported format"}
	}

	detections, err := p.detector.Detect(ctx, scaled)
	if err != nil {
		return Outcome{Path: path, Kind: OutcomeFailed, Err: fmt.Errorf("detection failed for %s: %w", path, err)}
	}

	records := make([]faces.Record, 0, len(detections))
	for _, d := range detections {
		box := detect.ScaleBox(d.Box, scale)
		quality := faces.BoxQuality(box, width, height)
		if quality < p.cfg.MinFaceQuality {
			continue
		}
		records = append(records, faces.Record{
			ImagePath: fp.Path,
			Box:       box,
			Embedding: d.Embedding,
			Quality:   quality,
		})
	}

	// The entry is written only after the whole image succeeded; a stop or
	// failure mid-image never leaves partial records in the cache.
	p.cache.Store(fp, records)

	return Outcome{Path: path, Kind: OutcomeDetected, Records: records}
}
