package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	pigo "github.com/esimov/pigo/core"

	"github.com/menta2k/vision-overlay/pkg/overlay"
	"github.com/menta2k/vision-overlay/pkg/types"
)

type fakeVisionClient struct {
	dets   []types.Detection
	err    error
	prompt string
	model  string
}

func (f *fakeVisionClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return "a cat on a sofa", f.err
}

func (f *fakeVisionClient) Classify(ctx context.Context, model, prompt, imgB64 string) ([]types.Detection, error) {
	f.model = model
	f.prompt = prompt
	if imgB64 == "" {
		return nil, errors.New("no image sent")
	}
	return f.dets, f.err
}

func createTestBitmap(width, height int) types.Bitmap {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return types.Bitmap{Image: img, Orientation: types.Up, Scale: 1}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFaceFromPigo(t *testing.T) {
	det := pigo.Detection{Row: 50, Col: 100, Scale: 40, Q: 250}

	face, ok := faceFromPigo(det, 200, 100)
	if !ok {
		t.Fatal("expected face")
	}
	r := face.Rect
	if !approx(r.X, 0.4) || !approx(r.Y, 0.3) || !approx(r.Width, 0.2) || !approx(r.Height, 0.4) {
		t.Errorf("rect = %+v", *r)
	}
	if face.Score() != 1 {
		t.Errorf("confidence = %v, want clamped to 1", face.Score())
	}

	// The overlay conversion must land back on the pixel box pigo reported.
	px := overlay.ToPixelRect(*r, 200, 100).Bounds()
	if px != image.Rect(80, 30, 120, 70) {
		t.Errorf("round trip pixel box = %v", px)
	}
}

func TestFaceFromPigoClipsToFrame(t *testing.T) {
	face, ok := faceFromPigo(pigo.Detection{Row: 5, Col: 5, Scale: 20, Q: 50}, 100, 100)
	if !ok {
		t.Fatal("expected face")
	}
	if face.Rect.X != 0 || !approx(face.Rect.Y+face.Rect.Height, 1) {
		t.Errorf("clipped rect = %+v", *face.Rect)
	}
	if face.Score() != 0.5 {
		t.Errorf("confidence = %v", face.Score())
	}

	if _, ok := faceFromPigo(pigo.Detection{Row: -100, Col: -100, Scale: 20}, 100, 100); ok {
		t.Error("box outside the frame should be dropped")
	}
	if _, ok := faceFromPigo(pigo.Detection{Row: 10, Col: 10, Scale: 0}, 100, 100); ok {
		t.Error("zero-size box should be dropped")
	}
}

func TestPixelToPoint(t *testing.T) {
	p := pixelToPoint(50, 25, 200, 100)
	if !approx(p.X, 0.25) || !approx(p.Y, 0.75) {
		t.Errorf("pixelToPoint = %+v", p)
	}
}

func TestToGrayscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(5, 5, 7, 6))
	img.Set(5, 5, color.RGBA{255, 255, 255, 255})
	img.Set(6, 5, color.RGBA{0, 0, 0, 255})

	gray := toGrayscale(img)
	if len(gray) != 2 || gray[0] != 255 || gray[1] != 0 {
		t.Errorf("toGrayscale = %v", gray)
	}
}

func TestNewPigoDetectorMissingCascade(t *testing.T) {
	cfg := DefaultPigoConfig()
	cfg.CascadePath = "does/not/exist"
	if _, err := NewPigoDetector(cfg, nil); err == nil {
		t.Error("expected error for missing cascade")
	}
}

func TestAsyncDeliversOnce(t *testing.T) {
	want := []types.Detection{types.Classification("cat", 0.9)}
	ch := Async(context.Background(), func(context.Context) ([]types.Detection, error) {
		return want, nil
	})

	select {
	case out := <-ch:
		if out.Err != nil || len(out.Detections) != 1 {
			t.Errorf("unexpected outcome %+v", out)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outcome")
	}

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after the outcome")
	}
}

func TestAsyncWrapsErrors(t *testing.T) {
	out := <-Async(context.Background(), func(context.Context) ([]types.Detection, error) {
		return nil, errors.New("unsupported compute device")
	})
	if !errors.Is(out.Err, types.ErrDetectionInvocation) {
		t.Errorf("expected ErrDetectionInvocation, got %v", out.Err)
	}

	out = <-Async(context.Background(), func(context.Context) ([]types.Detection, error) {
		return nil, types.ErrDecode
	})
	if !errors.Is(out.Err, types.ErrDecode) || errors.Is(out.Err, types.ErrDetectionInvocation) {
		t.Errorf("decode errors should pass through unchanged, got %v", out.Err)
	}
}

func TestModelClassifier(t *testing.T) {
	fake := &fakeVisionClient{dets: []types.Detection{
		types.Classification("cat", 0.2),
		types.Classification("dog", 0.7),
		types.Classification("horse", 0.9),
	}}

	c, err := NewModelClassifier(fake, DefaultClassifierConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	dets, err := c.Classify(context.Background(), createTestBitmap(64, 48))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("expected labels outside the set to be dropped, got %+v", dets)
	}
	if fake.model != DefaultClassifierConfig().Model {
		t.Errorf("model = %q", fake.model)
	}
	if fake.prompt == "" {
		t.Error("prompt not sent")
	}

	if _, err := c.Classify(context.Background(), types.Bitmap{}); !errors.Is(err, types.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}

	desc, err := c.TestVision(context.Background(), createTestBitmap(8, 8))
	if err != nil || desc == "" {
		t.Errorf("TestVision = %q, %v", desc, err)
	}
}

func TestNewModelClassifierValidation(t *testing.T) {
	if _, err := NewModelClassifier(nil, DefaultClassifierConfig(), nil); err == nil {
		t.Error("expected error for nil client")
	}
	cfg := DefaultClassifierConfig()
	cfg.Model = " "
	if _, err := NewModelClassifier(&fakeVisionClient{}, cfg, nil); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestFilterLabelsNoRestriction(t *testing.T) {
	in := []types.Detection{types.Classification("anything", 0.1)}
	if got := filterLabels(in, nil); len(got) != 1 {
		t.Errorf("filterLabels without labels = %+v", got)
	}
}
