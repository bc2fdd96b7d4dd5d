package detection

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"

	pigo "github.com/esimov/pigo/core"
	"go.uber.org/zap"

	"github.com/menta2k/vision-overlay/pkg/types"
)

// PigoConfig holds the face finder parameters
type PigoConfig struct {
	CascadePath      string
	PuplocPath       string
	MinSize          int
	MaxSize          int
	ShiftFactor      float64
	ScaleFactor      float64
	IoUThreshold     float64
	QualityThreshold float32
	Perturbs         int
}

// DefaultPigoConfig returns the parameters used by the CLI
func DefaultPigoConfig() PigoConfig {
	return PigoConfig{
		CascadePath:      "cascade/facefinder",
		PuplocPath:       "cascade/puploc",
		MinSize:          20,
		MaxSize:          1000,
		ShiftFactor:      0.1,
		ScaleFactor:      1.1,
		IoUThreshold:     0.2,
		QualityThreshold: 5.0,
		Perturbs:         63,
	}
}

// PigoDetector finds faces and pupils with the pure Go pigo cascades.
type PigoDetector struct {
	config     PigoConfig
	classifier *pigo.Pigo
	puploc     *pigo.PuplocCascade
	logger     *zap.Logger
}

// NewPigoDetector unpacks the face cascade and, when configured, the pupil
// localisation cascade.
func NewPigoDetector(cfg PigoConfig, logger *zap.Logger) (*PigoDetector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cascade, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}

	d := &PigoDetector{config: cfg, classifier: classifier, logger: logger}

	if cfg.PuplocPath != "" {
		data, err := os.ReadFile(cfg.PuplocPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read puploc cascade: %w", err)
		}
		d.puploc, err = pigo.NewPuplocCascade().UnpackCascade(data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack puploc cascade: %w", err)
		}
	}

	logger.Info("pigo face detector initialized",
		zap.Int("min_size", cfg.MinSize),
		zap.Float32("quality_threshold", cfg.QualityThreshold),
		zap.Bool("landmarks", d.puploc != nil))
	return d, nil
}

// DetectFaces runs the cascade over the raw buffer, ignoring orientation.
func (d *PigoDetector) DetectFaces(ctx context.Context, bm types.Bitmap) ([]types.Detection, error) {
	if bm.Image == nil {
		return nil, types.ErrDecode
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := bm.Image.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	params := pigo.ImageParams{
		Pixels: toGrayscale(bm.Image),
		Rows:   h,
		Cols:   w,
		Dim:    w,
	}

	dets := d.classifier.RunCascade(pigo.CascadeParams{
		MinSize:     d.config.MinSize,
		MaxSize:     d.config.MaxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: params,
	}, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.config.IoUThreshold)

	faces := make([]types.Detection, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.config.QualityThreshold {
			continue
		}
		face, ok := faceFromPigo(det, w, h)
		if !ok {
			continue
		}
		if d.puploc != nil {
			face.Landmarks = d.locatePupils(det, params, w, h)
		}
		faces = append(faces, face)
	}

	d.logger.Debug("faces detected", zap.Int("raw", len(dets)), zap.Int("kept", len(faces)))
	return faces, nil
}

func (d *PigoDetector) locatePupils(det pigo.Detection, params pigo.ImageParams, w, h int) *types.Landmarks {
	scale := float32(det.Scale)
	lm := &types.Landmarks{}

	left := pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: d.config.Perturbs,
	}
	if p := d.puploc.RunDetector(left, params, 0.0, false); p != nil && p.Row > 0 && p.Col > 0 {
		lm.LeftEye = append(lm.LeftEye, pixelToPoint(p.Col, p.Row, w, h))
	}

	right := pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: d.config.Perturbs,
	}
	if p := d.puploc.RunDetector(right, params, 0.0, false); p != nil && p.Row > 0 && p.Col > 0 {
		lm.RightEye = append(lm.RightEye, pixelToPoint(p.Col, p.Row, w, h))
	}

	if len(lm.LeftEye) == 0 && len(lm.RightEye) == 0 {
		return nil
	}
	return lm
}

// faceFromPigo converts a pigo detection (centre row/col plus side length,
// top-left origin) into a bottom-left normalized rectangle clipped to the
// frame.
func faceFromPigo(det pigo.Detection, w, h int) (types.Detection, bool) {
	if w <= 0 || h <= 0 || det.Scale <= 0 {
		return types.Detection{}, false
	}

	half := det.Scale / 2
	box := image.Rect(det.Col-half, det.Row-half, det.Col-half+det.Scale, det.Row-half+det.Scale).
		Intersect(image.Rect(0, 0, w, h))
	if box.Empty() {
		return types.Detection{}, false
	}

	fw, fh := float64(w), float64(h)
	rect := types.NormalizedRect{
		X:      float64(box.Min.X) / fw,
		Y:      1 - float64(box.Max.Y)/fh,
		Width:  float64(box.Dx()) / fw,
		Height: float64(box.Dy()) / fh,
	}

	confidence := float64(det.Q) / 100
	if confidence > 1 {
		confidence = 1
	}
	return types.Face(rect, confidence), true
}

func pixelToPoint(col, row, w, h int) types.Point {
	return types.Point{
		X: float64(col) / float64(w),
		Y: 1 - float64(row)/float64(h),
	}
}

// toGrayscale flattens the image into the row-major luma buffer pigo expects.
func toGrayscale(img image.Image) []uint8 {
	bounds := img.Bounds()
	w := bounds.Dx()
	gray := make([]uint8, w*bounds.Dy())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			gray[(y-bounds.Min.Y)*w+(x-bounds.Min.X)] = g.Y
		}
	}
	return gray
}
