package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

type Config struct {
	Detector  DetectorConfig
	Cache     CacheConfig
	Pipeline  PipelineConfig
	Organizer OrganizerConfig
	Web       WebConfig
}

type DetectorConfig struct {
	URL          string  // face detection sidecar, defaults to http://localhost:8000
	Accelerated  bool    // use the CNN model on the sidecar instead of HOG
	ResizeFactor float64 // downscale factor applied before detection, (0, 1]
}

type CacheConfig struct {
	Path       string // encoding cache file, defaults to ~/.face-organizer/encodings.json
	PeoplePath string // people store file, defaults to ~/.face-organizer/people.json
	IndexPath  string // HNSW identity index, defaults to ~/.face-organizer/people.hnsw
	MaxEntries int    // disk layer entry bound, oldest evicted first (default 10000)
	MaxAgeDays int    // entries older than this are purged on load (default 30)
}

type PipelineConfig struct {
	Tolerance      float64 // max embedding distance for same-person match, (0, 1]
	MaxWorkers     int     // detection worker bound
	MinFaceQuality float64 // minimum box-area fraction for a face to count
	MinFileSize    int64   // files smaller than this are skipped (bytes)
}

type OrganizerConfig struct {
	UnsortedDir string // folder name for photos without any named face
}

type WebConfig struct {
	Listen string // control server address, defaults to 127.0.0.1:8090
}

const (
	DefaultTolerance      = 0.6
	DefaultResizeFactor   = 0.5
	DefaultMinFaceQuality = 0.002
	DefaultMinFileSize    = 1024
	DefaultMaxEntries     = 10000
	DefaultMaxAgeDays     = 30

	// MaxWorkersCap is a hard cap on detection workers regardless of
	// configuration, to keep the sidecar from being overwhelmed.
	MaxWorkersCap = 16
)

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string) bool {
	s := os.Getenv(key)
	return s == "1" || s == "true" || s == "yes"
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// defaultWorkers returns the default detection worker count, tied to
// available parallelism (min(8, NumCPU)).
func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".face-organizer"
	}
	return filepath.Join(home, ".face-organizer")
}

func Load() *Config {
	dir := stateDir()
	return &Config{
		Detector: DetectorConfig{
			URL:          envString("DETECTOR_URL", "http://localhost:8000"),
			Accelerated:  envBool("DETECTOR_ACCELERATED"),
			ResizeFactor: envFloat("DETECTOR_RESIZE_FACTOR", DefaultResizeFactor),
		},
		Cache: CacheConfig{
			Path:       envString("CACHE_PATH", filepath.Join(dir, "encodings.json")),
			PeoplePath: envString("PEOPLE_PATH", filepath.Join(dir, "people.json")),
			IndexPath:  envString("PEOPLE_INDEX_PATH", filepath.Join(dir, "people.hnsw")),
			MaxEntries: envInt("CACHE_MAX_ENTRIES", DefaultMaxEntries),
			MaxAgeDays: envInt("CACHE_MAX_AGE_DAYS", DefaultMaxAgeDays),
		},
		Pipeline: PipelineConfig{
			Tolerance:      envFloat("FACE_TOLERANCE", DefaultTolerance),
			MaxWorkers:     envInt("MAX_WORKERS", defaultWorkers()),
			MinFaceQuality: envFloat("MIN_FACE_QUALITY", DefaultMinFaceQuality),
			MinFileSize:    int64(envInt("MIN_FILE_SIZE", DefaultMinFileSize)),
		},
		Organizer: OrganizerConfig{
			UnsortedDir: envString("UNSORTED_DIR", "Unsorted"),
		},
		Web: WebConfig{
			Listen: envString("WEB_LISTEN", "127.0.0.1:8090"),
		},
	}
}

// Validate checks value ranges that components depend on. It normalizes
// values that have safe clamps (worker cap) and rejects the rest.
func (c *Config) Validate() error {
	if c.Pipeline.Tolerance <= 0 || c.Pipeline.Tolerance > 1 {
		return fmt.Errorf("tolerance must be in (0, 1], got %g", c.Pipeline.Tolerance)
	}
	if c.Detector.ResizeFactor <= 0 || c.Detector.ResizeFactor > 1 {
		return fmt.Errorf("resize factor must be in (0, 1], got %g", c.Detector.ResizeFactor)
	}
	if c.Pipeline.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be >= 1, got %d", c.Pipeline.MaxWorkers)
	}
	if c.Pipeline.MaxWorkers > MaxWorkersCap {
		c.Pipeline.MaxWorkers = MaxWorkersCap
	}
	if c.Pipeline.MinFaceQuality < 0 {
		return fmt.Errorf("min face quality must be >= 0, got %g", c.Pipeline.MinFaceQuality)
	}
	return nil
}
