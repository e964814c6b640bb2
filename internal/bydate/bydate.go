// Package bydate is the plain date-based organizer: photos are moved into a
// YYYY/MM-MonthName tree using the EXIF taken date, falling back to the file
// modification time. It has no concurrency or clustering concerns.
package bydate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/kozaktomas/face-organizer/internal/pipeline"
)

// Stats summarizes a date-organize run.
type Stats struct {
	Scanned      int
	Moved        int
	Skipped      int
	ExifUsed     int
	FallbackUsed int
	Errors       []error
}

// extractDateTaken reads the EXIF taken date. goexif resolves
// DateTimeOriginal before DateTime, matching the original tool's tag order.
func extractDateTaken(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}

	taken, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return taken, true
}

// fallbackDate returns the file modification time, or now as a last resort.
func fallbackDate(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Now()
	}
	return info.ModTime()
}

// datedDir builds the YYYY/MM-MonthName destination for a date.
func datedDir(root string, date time.Time) string {
	month := fmt.Sprintf("%02d-%s", int(date.Month()), date.Month().String())
	return filepath.Join(root, fmt.Sprintf("%04d", date.Year()), month)
}

// uniqueName probes name.ext, name_1.ext, name_2.ext, ... until free.
func uniqueName(dir, filename string) (string, error) {
	full := filepath.Join(dir, filename)
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return full, nil
	}

	ext := filepath.Ext(filename)
	base := filename[:len(filename)-len(ext)]
	for counter := 1; counter <= 1000; counter++ {
		full = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, counter, ext))
		if _, err := os.Stat(full); os.IsNotExist(err) {
			return full, nil
		}
	}
	return "", errors.New("unique name suffixes exhausted")
}

// moveFile renames src to dest, copying across filesystems when rename
// fails.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close destination: %w", err)
	}
	return os.Remove(src)
}

// Organize moves every supported image under sourceDir into the dated tree
// under destDir. Per-file failures are recorded and the run continues.
func Organize(sourceDir, destRoot string) (*Stats, error) {
	if _, err := os.Stat(sourceDir); err != nil {
		return nil, fmt.Errorf("source directory not accessible: %w", err)
	}
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	paths, err := pipeline.FindImages(sourceDir, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to scan source directory: %w", err)
	}

	stats := &Stats{Scanned: len(paths)}
	for _, path := range paths {
		date, ok := extractDateTaken(path)
		if ok {
			stats.ExifUsed++
		} else {
			date = fallbackDate(path)
			stats.FallbackUsed++
		}

		dir := datedDir(destRoot, date)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, fmt.Errorf("create %s: %w", dir, err))
			continue
		}

		dest, err := uniqueName(dir, filepath.Base(path))
		if err != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, fmt.Errorf("name %s: %w", path, err))
			continue
		}

		if err := moveFile(path, dest); err != nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, fmt.Errorf("move %s: %w", path, err))
			continue
		}
		stats.Moved++
	}

	return stats, nil
}
