// Package fingerprint derives stable cache keys for source files. Two
// fingerprints are equal iff the file (path, size, mtime) and the active
// detection configuration are provably unchanged.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
)

// Fingerprint identifies a (file, detection config) pair.
type Fingerprint struct {
	Path          string `json:"path"` // absolute path
	Size          int64  `json:"size"`
	ModTime       int64  `json:"mod_time"` // unix nanoseconds
	ConfigVersion string `json:"config_version"`
}

// ConfigVersion hashes the detection settings that affect extraction output.
// Changing the model, resize factor, or quality floor invalidates every
// cache entry computed under the previous settings.
func ConfigVersion(model string, resizeFactor, minFaceQuality float64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%.4f|%.6f", model, resizeFactor, minFaceQuality))
	return fmt.Sprintf("%x", sum[:8])
}

// New stats the file and builds its fingerprint under the given config
// version. The path is made absolute so the same file reached through
// different working directories keys identically.
func New(path, configVersion string) (Fingerprint, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("failed to stat %s: %w", abs, err)
	}

	return Fingerprint{
		Path:          abs,
		Size:          info.Size(),
		ModTime:       info.ModTime().UnixNano(),
		ConfigVersion: configVersion,
	}, nil
}

// Key returns the cache key string for this fingerprint.
func (f Fingerprint) Key() string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d|%s", f.Path, f.Size, f.ModTime, f.ConfigVersion))
	return fmt.Sprintf("%x", sum)
}
