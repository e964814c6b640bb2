package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// imageExtensions are the file types the pipeline will consider.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
	".gif":  true,
}

// IsImagePath reports whether the path has a supported image extension.
func IsImagePath(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// FindImages walks root recursively and returns supported image files of at
// least minSize bytes, sorted by file size ascending so small files produce
// early progress. Unreadable subtrees are skipped, not fatal.
func FindImages(root string, minSize int64) ([]string, error) {
	type sized struct {
		path string
		size int64
	}
	var found []sized

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsImagePath(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() < minSize {
			return nil
		}
		found = append(found, sized{path, info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].size == found[j].size {
			return found[i].path < found[j].path
		}
		return found[i].size < found[j].size
	})

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

// statSize returns the size of a file, or -1 when it cannot be statted.
func statSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.Size()
}
