// Package organizer computes the fan-out of each image to person-named
// destination folders and performs idempotent, collision-safe copies.
package organizer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/kozaktomas/face-organizer/internal/cluster"
	"github.com/kozaktomas/face-organizer/internal/faces"
)

// ErrCollisionExhausted means the destination-name suffix search gave up.
// It fails the one copy action, not the run.
var ErrCollisionExhausted = errors.New("destination name collision suffixes exhausted")

// maxCollisionAttempts bounds the "name (N).ext" probe.
const maxCollisionAttempts = 100

// Assignment pairs a face record with the cluster it was assigned to.
type Assignment struct {
	Record  faces.Record
	Cluster *cluster.Cluster
}

// ImageIndex maps an image path to its face assignments in detection order.
// It is derived state, rebuilt each run from records and current clusters.
type ImageIndex map[string][]Assignment

// CopyAction is one planned copy of a source image into a destination
// folder. Person is empty for the unsorted fallback.
type CopyAction struct {
	Source  string
	DestDir string
	Person  string
}

// Summary reports the outcome of an execute pass.
type Summary struct {
	Copied  int
	Skipped int
	Failed  int
	Errors  []error
}

// Organizer plans and executes the copy fan-out.
type Organizer struct {
	destRoot    string
	unsortedDir string
}

func New(destRoot, unsortedDir string) *Organizer {
	if unsortedDir == "" {
		unsortedDir = "Unsorted"
	}
	return &Organizer{destRoot: destRoot, unsortedDir: unsortedDir}
}

// Plan computes the copy actions for every image in the index. An image with
// faces in named clusters is planned once per distinct person; an image with
// no named faces goes to the unsorted fallback. Images are never planned
// into a folder for a cluster they have no face in.
func (o *Organizer) Plan(index ImageIndex) []CopyAction {
	images := make([]string, 0, len(index))
	for path := range index {
		images = append(images, path)
	}
	sort.Strings(images)

	var actions []CopyAction
	for _, path := range images {
		people := make(map[string]bool)
		for _, a := range index[path] {
			if a.Cluster != nil && a.Cluster.Named() {
				people[a.Cluster.Name] = true
			}
		}

		if len(people) == 0 {
			actions = append(actions, CopyAction{
				Source:  path,
				DestDir: filepath.Join(o.destRoot, o.unsortedDir),
			})
			continue
		}

		names := make([]string, 0, len(people))
		for name := range people {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			actions = append(actions, CopyAction{
				Source:  path,
				DestDir: filepath.Join(o.destRoot, name),
				Person:  name,
			})
		}
	}
	return actions
}

// Execute performs the planned copies. It is safe to retry: a destination
// that already holds a file of the same size as the source counts as an
// earlier completed copy and is skipped, so interrupt + re-run never
// duplicates files and never overwrites originals.
func (o *Organizer) Execute(actions []CopyAction) Summary {
	var summary Summary
	for _, action := range actions {
		copied, err := o.executeOne(action)
		switch {
		case err != nil:
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Errorf("copy %s to %s: %w", action.Source, action.DestDir, err))
		case copied:
			summary.Copied++
		default:
			summary.Skipped++
		}
	}
	return summary
}

// executeOne copies one action. Returns false with nil error when the copy
// was already done by a previous run.
func (o *Organizer) executeOne(action CopyAction) (bool, error) {
	srcInfo, err := os.Stat(action.Source)
	if err != nil {
		return false, fmt.Errorf("failed to stat source: %w", err)
	}

	if err := os.MkdirAll(action.DestDir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create destination directory: %w", err)
	}

	dest, done, err := resolveDestination(action.DestDir, filepath.Base(action.Source), srcInfo.Size())
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	if err := copyFile(action.Source, dest); err != nil {
		return false, err
	}
	return true, nil
}

// resolveDestination finds the destination path for a filename. Collisions
// are resolved deterministically: name.ext, then name (1).ext, name (2).ext,
// and so on until a free slot or a same-size file (treated as already
// copied) is found. Existing files are never overwritten.
func resolveDestination(destDir, filename string, srcSize int64) (path string, alreadyCopied bool, err error) {
	ext := filepath.Ext(filename)
	base := filename[:len(filename)-len(ext)]

	for attempt := 0; attempt <= maxCollisionAttempts; attempt++ {
		candidate := filename
		if attempt > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, attempt, ext)
		}
		full := filepath.Join(destDir, candidate)

		info, err := os.Stat(full)
		if os.IsNotExist(err) {
			return full, false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to stat destination: %w", err)
		}
		if info.Size() == srcSize {
			// Same name, same size: a completed copy from an earlier run.
			return full, true, nil
		}
	}
	return "", false, ErrCollisionExhausted
}

// copyFile copies src to dest via a temp file and rename, so an interrupted
// copy never leaves a partial file at the final name.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close destination: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}
