// Package visionoverlay highlights detected faces and labels photos.
//
// It takes a photo together with its display orientation, runs a face
// detector or an image classifier over the raw pixel buffer and draws a
// translucent highlight over one face at a time. Detector coordinates are
// normalized with a bottom-left origin; the overlay converts them to raw
// pixel space and re-tags the result so it displays the right way up.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		visionoverlay "github.com/menta2k/vision-overlay"
//		"github.com/menta2k/vision-overlay/pkg/detection"
//	)
//
//	func main() {
//		faces, err := detection.NewPigoDetector(detection.DefaultPigoConfig(), nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		vo := visionoverlay.NewWithComponents(faces, nil, nil)
//
//		bm, err := vo.LoadImage("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := vo.Analyze(context.Background(), bm)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		highlighted, err := vo.HighlightFace(bm, result.Faces, 0)
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := vo.SaveImage(highlighted, "photo_face.png", "png", 90); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
// 1. Processing (pkg/processing): loads photos, reads EXIF orientation, saves results
// 2. Detection (pkg/detection): face finder and vision model classifier adapters
// 3. Overlay (pkg/overlay): draws the highlight and re-tags orientation
// 4. Controller (pkg/controller): single-loop view state for interactive use
package visionoverlay

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/menta2k/vision-overlay/pkg/detection"
	"github.com/menta2k/vision-overlay/pkg/navigator"
	"github.com/menta2k/vision-overlay/pkg/overlay"
	"github.com/menta2k/vision-overlay/pkg/processing"
	"github.com/menta2k/vision-overlay/pkg/ranker"
	"github.com/menta2k/vision-overlay/pkg/types"
)

// Version of the vision overlay library
const Version = "1.0.0"

// VisionOverlay provides a high-level interface over loading, detection and
// highlighting.
type VisionOverlay struct {
	processor  *processing.Processor
	faces      detection.FaceDetector
	classifier detection.Classifier
	renderer   *overlay.Renderer
}

// New creates a VisionOverlay without detectors. Detection calls fail until
// NewWithComponents is used.
func New() *VisionOverlay {
	return NewWithComponents(nil, nil, nil)
}

// NewWithComponents creates a VisionOverlay with the given adapters. A nil
// renderer selects the default style.
func NewWithComponents(faces detection.FaceDetector, classifier detection.Classifier, renderer *overlay.Renderer) *VisionOverlay {
	if renderer == nil {
		renderer = overlay.New()
	}
	return &VisionOverlay{
		processor:  processing.NewProcessor(),
		faces:      faces,
		classifier: classifier,
		renderer:   renderer,
	}
}

// AnalysisResult contains the detections found in one photo
type AnalysisResult struct {
	Info       processing.ImageInfo `json:"info"`
	Faces      []types.Detection    `json:"faces"`
	Labels     []types.Detection    `json:"labels,omitempty"`
	Identifier string               `json:"identifier,omitempty"`
}

// LoadImage loads a photo from a file path or URL
func (vo *VisionOverlay) LoadImage(source string) (types.Bitmap, error) {
	return vo.processor.LoadBitmapSmart(source)
}

// DecodeImage decodes an encoded photo held in memory
func (vo *VisionOverlay) DecodeImage(data []byte) (types.Bitmap, error) {
	return vo.processor.DecodeBitmap(data)
}

// SaveImage writes the bitmap's raw buffer to path
func (vo *VisionOverlay) SaveImage(bm types.Bitmap, path, format string, quality int) error {
	if bm.Image == nil {
		return types.ErrNoImage
	}
	return vo.processor.SaveImage(bm.Image, path, format, quality, false)
}

// DetectFaces runs the face detector over the raw buffer
func (vo *VisionOverlay) DetectFaces(ctx context.Context, bm types.Bitmap) ([]types.Detection, error) {
	if vo.faces == nil {
		return nil, fmt.Errorf("%w: face detector not configured", types.ErrDetectionInvocation)
	}
	out := <-detection.Async(ctx, func(ctx context.Context) ([]types.Detection, error) {
		return vo.faces.DetectFaces(ctx, bm)
	})
	return out.Detections, out.Err
}

// Classify runs the classifier and returns its results ranked by confidence
func (vo *VisionOverlay) Classify(ctx context.Context, bm types.Bitmap) (ranker.Ranking, error) {
	if vo.classifier == nil {
		return ranker.Ranking{}, fmt.Errorf("%w: classifier not configured", types.ErrDetectionInvocation)
	}
	out := <-detection.Async(ctx, func(ctx context.Context) ([]types.Detection, error) {
		return vo.classifier.Classify(ctx, bm)
	})
	if out.Err != nil {
		return ranker.Ranking{}, out.Err
	}
	return ranker.Rank(out.Detections), nil
}

// Analyze runs every configured adapter over the photo
func (vo *VisionOverlay) Analyze(ctx context.Context, bm types.Bitmap) (AnalysisResult, error) {
	if err := vo.ValidateImage(bm); err != nil {
		return AnalysisResult{}, err
	}

	result := AnalysisResult{Info: vo.GetImageInfo(bm)}

	if vo.faces != nil {
		faces, err := vo.DetectFaces(ctx, bm)
		if err != nil {
			return AnalysisResult{}, fmt.Errorf("face detection failed: %w", err)
		}
		result.Faces = faces
	}

	if vo.classifier != nil {
		ranking, err := vo.Classify(ctx, bm)
		if err != nil {
			return AnalysisResult{}, fmt.Errorf("classification failed: %w", err)
		}
		result.Labels = ranking.Items()
		result.Identifier, _ = ranking.TopLabel()
	}

	return result, nil
}

// HighlightFace draws the face at index, wrapping out-of-range indices the
// same way face navigation does. With no faces the photo is returned as is.
func (vo *VisionOverlay) HighlightFace(bm types.Bitmap, faces []types.Detection, index int) (types.Bitmap, error) {
	var nav navigator.Navigator
	nav.Reset(faces)
	if n := nav.Len(); n > 0 {
		steps := ((index % n) + n) % n
		for i := 0; i < steps; i++ {
			nav.Next()
		}
	}

	det, _ := nav.CurrentDetection()
	return vo.renderer.RenderFace(bm, det)
}

// GetImageInfo returns raw and displayed dimensions
func (vo *VisionOverlay) GetImageInfo(bm types.Bitmap) processing.ImageInfo {
	return vo.processor.GetImageInfo(bm)
}

// ValidateImage checks that a photo can be processed
func (vo *VisionOverlay) ValidateImage(bm types.Bitmap) error {
	return vo.processor.ValidateImage(bm)
}

// ProcessImageFile loads a photo, detects faces and writes one highlighted
// copy per face into outputDir. It returns the paths written.
func (vo *VisionOverlay) ProcessImageFile(ctx context.Context, inputPath, outputDir, format string, quality int) ([]string, error) {
	bm, err := vo.LoadImage(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	if err := vo.ValidateImage(bm); err != nil {
		return nil, fmt.Errorf("image validation failed: %w", err)
	}

	faces, err := vo.DetectFaces(ctx, bm)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: no faces detected", types.ErrEmptyResults)
	}

	format = strings.ToLower(format)
	var written []string
	for i := range faces {
		out, err := vo.HighlightFace(bm, faces, i)
		if err != nil {
			return written, fmt.Errorf("failed to render face %d: %w", i+1, err)
		}

		outputPath := filepath.Join(outputDir, fmt.Sprintf("%s_face%02d.%s", getBaseName(inputPath), i+1, format))
		if err := vo.SaveImage(out, outputPath, format, quality); err != nil {
			return written, fmt.Errorf("failed to save face %d: %w", i+1, err)
		}
		written = append(written, outputPath)
	}

	return written, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

// getBaseName extracts the base filename without extension
func getBaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
