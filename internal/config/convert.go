package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/menta2k/vision-overlay/pkg/detection"
	"github.com/menta2k/vision-overlay/pkg/overlay"
)

// ParseHexColor parses #rgb or #rrggbb into an opaque colour.
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// OverlayStyle converts the overlay section into a renderer style.
func (c *Config) OverlayStyle() (overlay.Style, error) {
	col, err := ParseHexColor(c.Overlay.Color)
	if err != nil {
		return overlay.Style{}, err
	}
	return overlay.Style{
		Color:     col,
		FillAlpha: c.Overlay.FillAlpha,
		LineWidth: c.Overlay.LineWidth,
		DotRadius: c.Overlay.DotRadius,
	}, nil
}

// PigoConfig converts the detector section into face finder parameters.
func (c *Config) PigoConfig() detection.PigoConfig {
	cfg := detection.DefaultPigoConfig()
	cfg.CascadePath = c.Detector.CascadePath
	cfg.PuplocPath = c.Detector.PuplocPath
	cfg.MinSize = c.Detector.MinSize
	cfg.MaxSize = c.Detector.MaxSize
	cfg.ShiftFactor = c.Detector.ShiftFactor
	cfg.ScaleFactor = c.Detector.ScaleFactor
	cfg.IoUThreshold = c.Detector.IoUThreshold
	cfg.QualityThreshold = float32(c.Detector.QualityThreshold)
	return cfg
}

// ClassifierSettings converts the classifier section into model settings.
func (c *Config) ClassifierSettings() detection.ClassifierConfig {
	return detection.ClassifierConfig{
		Model:       c.Classifier.Model,
		Labels:      c.Classifier.Labels,
		SendFormat:  c.Classifier.SendFormat,
		SendSize:    c.Classifier.SendSize,
		SendQuality: c.Classifier.SendQuality,
	}
}
