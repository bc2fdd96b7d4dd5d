package visionoverlay

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/vision-overlay/pkg/types"
)

type stubFaces struct {
	dets []types.Detection
	err  error
}

func (s stubFaces) DetectFaces(ctx context.Context, bm types.Bitmap) ([]types.Detection, error) {
	return s.dets, s.err
}

type stubClassifier struct {
	dets []types.Detection
}

func (s stubClassifier) Classify(ctx context.Context, bm types.Bitmap) ([]types.Detection, error) {
	return s.dets, nil
}

// createTestBitmap creates a flat grey photo
func createTestBitmap(width, height int, o types.Orientation) types.Bitmap {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{64, 64, 64, 255})
		}
	}
	return types.Bitmap{Image: img, Orientation: o, Scale: 1}
}

func twoFaces() []types.Detection {
	return []types.Detection{
		types.Face(types.NormalizedRect{X: 0.1, Y: 0.5, Width: 0.2, Height: 0.3}, 0.9),
		types.Face(types.NormalizedRect{X: 0.6, Y: 0.1, Width: 0.2, Height: 0.3}, 0.6),
	}
}

func TestNew(t *testing.T) {
	vo := New()
	if vo == nil {
		t.Fatal("New() returned nil")
	}

	if vo.processor == nil {
		t.Error("processor component is nil")
	}

	if vo.renderer == nil {
		t.Error("renderer component is nil")
	}

	if vo.faces != nil || vo.classifier != nil {
		t.Error("New() should not configure detectors")
	}
}

func TestDetectFacesNotConfigured(t *testing.T) {
	vo := New()
	_, err := vo.DetectFaces(context.Background(), createTestBitmap(100, 100, types.Up))
	if !errors.Is(err, types.ErrDetectionInvocation) {
		t.Errorf("expected ErrDetectionInvocation, got %v", err)
	}

	_, err = vo.Classify(context.Background(), createTestBitmap(100, 100, types.Up))
	if !errors.Is(err, types.ErrDetectionInvocation) {
		t.Errorf("expected ErrDetectionInvocation, got %v", err)
	}
}

func TestDetectFacesWrapsAdapterErrors(t *testing.T) {
	vo := NewWithComponents(stubFaces{err: errors.New("model missing")}, nil, nil)
	_, err := vo.DetectFaces(context.Background(), createTestBitmap(100, 100, types.Up))
	if !errors.Is(err, types.ErrDetectionInvocation) {
		t.Errorf("expected ErrDetectionInvocation, got %v", err)
	}
}

func TestAnalyze(t *testing.T) {
	classifier := stubClassifier{dets: []types.Detection{
		types.Classification("dog", 0.4),
		types.Classification("cat", 0.8),
	}}
	vo := NewWithComponents(stubFaces{dets: twoFaces()}, classifier, nil)

	result, err := vo.Analyze(context.Background(), createTestBitmap(400, 300, types.Right))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.Info.Width != 400 || result.Info.Height != 300 {
		t.Errorf("unexpected raw size %dx%d", result.Info.Width, result.Info.Height)
	}

	if result.Info.DisplayWidth != 300 || result.Info.DisplayHeight != 400 {
		t.Errorf("unexpected display size %dx%d", result.Info.DisplayWidth, result.Info.DisplayHeight)
	}

	if len(result.Faces) != 2 {
		t.Errorf("Expected 2 faces, got %d", len(result.Faces))
	}

	if result.Identifier != "cat" {
		t.Errorf("Identifier = %q, want cat", result.Identifier)
	}

	if len(result.Labels) != 2 || result.Labels[0].Label != "cat" {
		t.Errorf("labels not ranked: %+v", result.Labels)
	}
}

func TestAnalyzeRejectsEmptyImage(t *testing.T) {
	vo := New()
	if _, err := vo.Analyze(context.Background(), types.Bitmap{}); !errors.Is(err, types.ErrNoImage) {
		t.Errorf("expected ErrNoImage, got %v", err)
	}
}

func TestHighlightFace(t *testing.T) {
	vo := New()
	bm := createTestBitmap(100, 100, types.Up)
	faces := twoFaces()

	tests := []struct {
		index int
		pixel image.Point
	}{
		// First face covers x 10..30, y 20..50 in raw pixels.
		{0, image.Point{X: 20, Y: 35}},
		// Second face covers x 60..80, y 60..90.
		{1, image.Point{X: 70, Y: 75}},
		{2, image.Point{X: 20, Y: 35}},
		{-1, image.Point{X: 70, Y: 75}},
	}

	for _, test := range tests {
		out, err := vo.HighlightFace(bm, faces, test.index)
		if err != nil {
			t.Fatalf("HighlightFace(%d) failed: %v", test.index, err)
		}

		if out.Orientation != types.DownMirrored {
			t.Errorf("HighlightFace(%d) orientation = %v", test.index, out.Orientation)
		}

		r, _, _, _ := out.Image.At(test.pixel.X, test.pixel.Y).RGBA()
		g, _, _, _ := bm.Image.At(test.pixel.X, test.pixel.Y).RGBA()
		if r <= g {
			t.Errorf("HighlightFace(%d): pixel %v not tinted", test.index, test.pixel)
		}
	}
}

func TestHighlightFaceWithoutFaces(t *testing.T) {
	vo := New()
	bm := createTestBitmap(50, 50, types.Left)

	out, err := vo.HighlightFace(bm, nil, 3)
	if err != nil {
		t.Fatalf("HighlightFace failed: %v", err)
	}
	if out.Image != bm.Image || out.Orientation != types.Left {
		t.Error("expected the photo to pass through unchanged")
	}
}

func TestProcessImageFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "group.png")

	vo := NewWithComponents(stubFaces{dets: twoFaces()}, nil, nil)
	if err := vo.SaveImage(createTestBitmap(120, 80, types.Up), input, "png", 90); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	written, err := vo.ProcessImageFile(context.Background(), input, dir, "PNG", 90)
	if err != nil {
		t.Fatalf("ProcessImageFile failed: %v", err)
	}

	if len(written) != 2 {
		t.Fatalf("Expected 2 outputs, got %d", len(written))
	}

	want := filepath.Join(dir, "group_face01.png")
	if written[0] != want {
		t.Errorf("first output = %s, want %s", written[0], want)
	}

	for _, path := range written {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("output %s missing: %v", path, err)
		}
	}
}

func TestProcessImageFileNoFaces(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "empty.png")

	vo := NewWithComponents(stubFaces{}, nil, nil)
	if err := vo.SaveImage(createTestBitmap(64, 64, types.Up), input, "png", 90); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	_, err := vo.ProcessImageFile(context.Background(), input, dir, "png", 90)
	if !errors.Is(err, types.ErrEmptyResults) {
		t.Errorf("expected ErrEmptyResults, got %v", err)
	}
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	if version == "" {
		t.Error("Version should not be empty")
	}

	if version != Version {
		t.Errorf("GetVersion() returned %s, expected %s", version, Version)
	}
}

func TestGetBaseName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"photo.jpg", "photo"},
		{"path/to/photo.jpg", "photo"},
		{"image", "image"},
		{"test.image.jpg", "test.image"},
	}

	for _, test := range tests {
		result := getBaseName(test.input)
		if result != test.expected {
			t.Errorf("getBaseName(%s) = %s, expected %s",
				test.input, result, test.expected)
		}
	}
}

func BenchmarkHighlightFace(b *testing.B) {
	vo := New()
	bm := createTestBitmap(1920, 1080, types.Up)
	faces := twoFaces()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vo.HighlightFace(bm, faces, i)
	}
}
