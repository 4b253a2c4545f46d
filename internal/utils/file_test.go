package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"photo.jpg", "a.JPEG", "x.png", "y.webp"} {
		if !IsImageFile(name) {
			t.Errorf("%s should be an image", name)
		}
	}
	for _, name := range []string{"notes.txt", "archive", "doc.pdf"} {
		if IsImageFile(name) {
			t.Errorf("%s should not be an image", name)
		}
	}
}

func TestOutputFilename(t *testing.T) {
	got := OutputFilename("/tmp/in/photo.jpg", "out", "_overlay", "png")
	if want := filepath.Join("out", "photo_overlay.png"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	got = OutputFilename("photo.webp", "out", "", "")
	if want := filepath.Join("out", "photo.webp"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"my photo.jpg": "my_photo.jpg",
		"a:b?.png":     "a_b_.png",
		" .hidden. ":   "hidden",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	if got := FormatFileSize(512); got != "512 B" {
		t.Errorf("got %s", got)
	}
	if got := FormatFileSize(1536); got != "1.5 KB" {
		t.Errorf("got %s", got)
	}
	if got := FormatFileSize(3 * 1024 * 1024); got != "3.0 MB" {
		t.Errorf("got %s", got)
	}
}

func TestEnsureDirAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	file := filepath.Join(dir, "f.txt")
	if FileExists(file) {
		t.Error("file should not exist yet")
	}
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(file) {
		t.Error("file should exist")
	}
	if FileExists(dir) {
		t.Error("directory is not a file")
	}
}
