package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIsImagePath(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"photo.jpg", true},
		{"photo.JPG", true},
		{"photo.jpeg", true},
		{"photo.png", true},
		{"photo.webp", true},
		{"photo.gif", true},
		{"photo.tiff", true},
		{"photo.bmp", true},
		{"notes.txt", false},
		{"video.mp4", false},
		{"photo", false},
	}

	for _, tc := range tests {
		if got := IsImagePath(tc.path); got != tc.expected {
			t.Errorf("IsImagePath(%q) = %v; want %v", tc.path, got, tc.expected)
		}
	}
}

func TestFindImagesFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	big := writeFile(t, dir, "big.jpg", 5000)
	small := writeFile(t, dir, "small.jpg", 2000)
	writeFile(t, dir, "tiny.jpg", 100)     // below min size
	writeFile(t, dir, "notes.txt", 5000)   // not an image
	sub := filepath.Join(dir, "vacation")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	nested := writeFile(t, sub, "nested.jpg", 3000)

	paths, err := FindImages(dir, 1024)
	if err != nil {
		t.Fatalf("FindImages failed: %v", err)
	}

	want := []string{small, nested, big} // size ascending
	if len(paths) != len(want) {
		t.Fatalf("found %d images; want %d: %v", len(paths), len(want), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %s; want %s", i, paths[i], want[i])
		}
	}
}

func TestFindImagesMissingRoot(t *testing.T) {
	paths, err := FindImages(filepath.Join(t.TempDir(), "missing"), 1)
	if err != nil {
		t.Fatalf("unreadable root should not be fatal: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected no images, got %v", paths)
	}
}

func TestFindImagesEqualSizeSortedByPath(t *testing.T) {
	dir := t.TempDir()
	b := writeFile(t, dir, "b.jpg", 2048)
	a := writeFile(t, dir, "a.jpg", 2048)

	paths, err := FindImages(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || paths[0] != a || paths[1] != b {
		t.Errorf("equal-size files should sort by path, got %v", paths)
	}
}
