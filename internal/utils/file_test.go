package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateOutputFilename(t *testing.T) {
	tests := []struct {
		input, dir, prefix, suffix, format string
		expected                           string
	}{
		{"photo.jpg", "out", "", "_overlay", "png", filepath.Join("out", "photo_overlay.png")},
		{"a/b/photo.JPG", "out", "x_", "", "", filepath.Join("out", "x_photo.jpg")},
		{"photo.webp", "out", "", "_1", "jpeg", filepath.Join("out", "photo_1.jpg")},
		{"https://example.com/img/cat.png?size=large", "out", "", "", "webp", filepath.Join("out", "cat.webp")},
		{"https://example.com/", "out", "", "", "png", filepath.Join("out", "example.png")},
		{"noext", "out", "", "", "", filepath.Join("out", "noext.jpg")},
	}

	for _, test := range tests {
		got := GenerateOutputFilename(test.input, test.dir, test.prefix, test.suffix, test.format)
		if got != test.expected {
			t.Errorf("GenerateOutputFilename(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.webp", "e.tiff"} {
		if !IsImageFile(name) {
			t.Errorf("IsImageFile(%q) = false", name)
		}
	}
	for _, name := range []string{"a.txt", "b", "c.json"} {
		if IsImageFile(name) {
			t.Errorf("IsImageFile(%q) = true", name)
		}
	}
}

func TestIsRemote(t *testing.T) {
	if !IsRemote("https://example.com/a.jpg") || !IsRemote("http://x/y.png") {
		t.Error("expected URLs to be remote")
	}
	if IsRemote("/tmp/a.jpg") || IsRemote("ftp://x/y.png") {
		t.Error("expected paths to be local")
	}
}

func TestEnsureDirAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if FileExists(dir) {
		t.Error("FileExists should be false for directories")
	}

	path := filepath.Join(dir, "f.png")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Error("FileExists should be true for a written file")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(` a:b*c? `); got != "a_b_c_" {
		t.Errorf("SanitizeFilename = %q", got)
	}
}
