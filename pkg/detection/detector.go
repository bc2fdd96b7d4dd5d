package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/vision-overlay/pkg/client"
	"github.com/menta2k/vision-overlay/pkg/processing"
	"github.com/menta2k/vision-overlay/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultLabels are the classes of the bundled cats-vs-dogs demo.
var DefaultLabels = []string{"cat", "dog"}

// FaceDetector finds faces in the raw buffer of a bitmap. Rectangles are
// normalized with a bottom-left origin.
type FaceDetector interface {
	DetectFaces(ctx context.Context, bm types.Bitmap) ([]types.Detection, error)
}

// Classifier labels a bitmap with confidence scores.
type Classifier interface {
	Classify(ctx context.Context, bm types.Bitmap) ([]types.Detection, error)
}

// Outcome is the single result delivered by Async.
type Outcome struct {
	Detections []types.Detection
	Err        error
}

// Async runs fn on its own goroutine and delivers exactly one Outcome on
// the returned channel, which is then closed. Adapter failures are wrapped
// in types.ErrDetectionInvocation unless they already carry a decode error.
func Async(ctx context.Context, fn func(context.Context) ([]types.Detection, error)) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		dets, err := fn(ctx)
		if err != nil && !errors.Is(err, types.ErrDecode) && !errors.Is(err, types.ErrDetectionInvocation) {
			err = fmt.Errorf("%w: %w", types.ErrDetectionInvocation, err)
		}
		ch <- Outcome{Detections: dets, Err: err}
	}()
	return ch
}

// ClassifierConfig controls how images are sent to the vision model.
type ClassifierConfig struct {
	Model       string
	Labels      []string
	SendFormat  string
	SendSize    int
	SendQuality int
}

// DefaultClassifierConfig returns the settings used by the CLI.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Model:       "openbmb/minicpm-v4.5",
		Labels:      DefaultLabels,
		SendFormat:  "jpg",
		SendSize:    1024,
		SendQuality: 85,
	}
}

// ModelClassifier classifies images through a vision model backend
type ModelClassifier struct {
	client    client.VisionClient
	processor *processing.Processor
	config    ClassifierConfig
	prompt    string
	logger    *zap.Logger
}

// NewModelClassifier creates a classifier on top of a vision client
func NewModelClassifier(vc client.VisionClient, cfg ClassifierConfig, logger *zap.Logger) (*ModelClassifier, error) {
	if vc == nil {
		return nil, fmt.Errorf("vision client is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ModelClassifier{
		client:    vc,
		processor: processing.NewProcessor(),
		config:    cfg,
		prompt:    client.ClassificationPrompt(cfg.Labels),
		logger:    logger,
	}, nil
}

// Classify sends the raw buffer to the model and returns one detection per
// reported label. Labels outside the configured set are dropped.
func (c *ModelClassifier) Classify(ctx context.Context, bm types.Bitmap) ([]types.Detection, error) {
	if bm.Image == nil {
		return nil, types.ErrDecode
	}

	imgB64, err := c.processor.PrepareImageForModel(bm.Image, c.config.SendFormat, c.config.SendSize, c.config.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrDecode, err)
	}

	dets, err := c.client.Classify(ctx, c.config.Model, c.prompt, imgB64)
	if err != nil {
		return nil, err
	}

	dets = filterLabels(dets, c.config.Labels)
	for _, d := range dets {
		c.logger.Debug("classification", zap.String("label", d.Label), zap.Float64("confidence", d.Score()))
	}
	return dets, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (c *ModelClassifier) TestVision(ctx context.Context, bm types.Bitmap) (string, error) {
	if bm.Image == nil {
		return "", types.ErrDecode
	}
	imgB64, err := c.processor.PrepareImageForModel(bm.Image, c.config.SendFormat, c.config.SendSize, c.config.SendQuality)
	if err != nil {
		return "", err
	}
	return c.client.SimpleQuery(ctx, c.config.Model, SimpleTestPrompt, imgB64)
}

func filterLabels(dets []types.Detection, allowed []string) []types.Detection {
	if len(allowed) == 0 {
		return dets
	}
	set := make(map[string]struct{}, len(allowed))
	for _, l := range allowed {
		set[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}

	out := dets[:0:0]
	for _, d := range dets {
		if _, ok := set[d.Label]; ok {
			out = append(out, d)
		}
	}
	return out
}
