package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewStableForUnchangedFile(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "img.jpg", "image data")

	first, err := New(path, "cfg1")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	second, err := New(path, "cfg1")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if first.Key() != second.Key() {
		t.Error("an unchanged file must produce the same key")
	}
}

func TestNewDetectsFileChange(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "img.jpg", "image data")

	before, err := New(path, "cfg1")
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("image data, now longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	after, err := New(path, "cfg1")
	if err != nil {
		t.Fatal(err)
	}

	if before.Key() == after.Key() {
		t.Error("a changed file must produce a different key")
	}
}

func TestNewDetectsTouchedFile(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "img.jpg", "image data")

	before, err := New(path, "cfg1")
	if err != nil {
		t.Fatal(err)
	}

	// Same content and size, newer mtime.
	newTime := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, newTime, newTime); err != nil {
		t.Fatal(err)
	}
	after, err := New(path, "cfg1")
	if err != nil {
		t.Fatal(err)
	}

	if before.Key() == after.Key() {
		t.Error("a touched file must produce a different key")
	}
}

func TestConfigVersionChangesKey(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "img.jpg", "image data")

	hog, err := New(path, ConfigVersion("hog", 0.5, 0.002))
	if err != nil {
		t.Fatal(err)
	}
	cnn, err := New(path, ConfigVersion("cnn", 0.5, 0.002))
	if err != nil {
		t.Fatal(err)
	}

	if hog.Key() == cnn.Key() {
		t.Error("a model change must invalidate the key")
	}
}

func TestConfigVersion(t *testing.T) {
	base := ConfigVersion("hog", 0.5, 0.002)

	if ConfigVersion("hog", 0.5, 0.002) != base {
		t.Error("identical settings must hash identically")
	}
	if ConfigVersion("hog", 0.25, 0.002) == base {
		t.Error("resize factor change must alter the version")
	}
	if ConfigVersion("hog", 0.5, 0.01) == base {
		t.Error("quality floor change must alter the version")
	}
	if len(base) != 16 {
		t.Errorf("version should be 16 hex characters, got %d: %s", len(base), base)
	}
}

func TestNewMissingFile(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing.jpg"), "cfg1"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestNewResolvesRelativePath(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "img.jpg", "image data")

	t.Chdir(dir)

	fp, err := New("img.jpg", "cfg1")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(fp.Path) {
		t.Errorf("fingerprint path should be absolute, got %s", fp.Path)
	}
}
