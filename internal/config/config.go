package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Detector   DetectorConfig   `json:"detector"`
	Classifier ClassifierConfig `json:"classifier"`
	Overlay    OverlayConfig    `json:"overlay"`
	Output     OutputConfig     `json:"output"`
}

// DetectorConfig holds the face finder settings
type DetectorConfig struct {
	CascadePath      string  `json:"cascade_path"`
	PuplocPath       string  `json:"puploc_path"`
	MinSize          int     `json:"min_size"`
	MaxSize          int     `json:"max_size"`
	ShiftFactor      float64 `json:"shift_factor"`
	ScaleFactor      float64 `json:"scale_factor"`
	IoUThreshold     float64 `json:"iou_threshold"`
	QualityThreshold float64 `json:"quality_threshold"`
}

// ClassifierConfig holds the vision model backend settings
type ClassifierConfig struct {
	Backend     string   `json:"backend"`
	URL         string   `json:"url"`
	Model       string   `json:"model"`
	Labels      []string `json:"labels"`
	SendFormat  string   `json:"send_format"`
	SendSize    int      `json:"send_size"`
	SendQuality int      `json:"send_quality"`
}

// OverlayConfig holds the highlight style
type OverlayConfig struct {
	Color     string  `json:"color"`
	FillAlpha float64 `json:"fill_alpha"`
	LineWidth float64 `json:"line_width"`
	DotRadius int     `json:"dot_radius"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `json:"format"`
	Quality   int    `json:"quality"`
	Lossless  bool   `json:"lossless"`
	OutputDir string `json:"output_dir"`
	Suffix    string `json:"suffix"`
	Upright   bool   `json:"upright"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			CascadePath:      "cascade/facefinder",
			PuplocPath:       "cascade/puploc",
			MinSize:          20,
			MaxSize:          1000,
			ShiftFactor:      0.1,
			ScaleFactor:      1.1,
			IoUThreshold:     0.2,
			QualityThreshold: 5.0,
		},
		Classifier: ClassifierConfig{
			Backend:     "llamacpp",
			Model:       "openbmb/minicpm-v4.5",
			Labels:      []string{"cat", "dog"},
			SendFormat:  "jpg",
			SendSize:    1024,
			SendQuality: 85,
		},
		Overlay: OverlayConfig{
			Color:     "#ff0000",
			FillAlpha: 0.3,
			LineWidth: 2.0,
			DotRadius: 3,
		},
		Output: OutputConfig{
			Format:    "png",
			Quality:   90,
			OutputDir: "./out",
			Suffix:    "_overlay",
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Detector.CascadePath == "" {
		return fmt.Errorf("detector.cascade_path cannot be empty")
	}

	if c.Detector.MinSize < 1 || c.Detector.MaxSize < c.Detector.MinSize {
		return fmt.Errorf("detector.min_size must be positive and not exceed detector.max_size")
	}

	if c.Detector.ScaleFactor <= 1 {
		return fmt.Errorf("detector.scale_factor must be greater than 1")
	}

	if c.Detector.IoUThreshold < 0 || c.Detector.IoUThreshold > 1 {
		return fmt.Errorf("detector.iou_threshold must be between 0 and 1")
	}

	switch c.Classifier.Backend {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("classifier.backend must be ollama or llamacpp")
	}

	if strings.TrimSpace(c.Classifier.Model) == "" {
		return fmt.Errorf("classifier.model cannot be empty")
	}

	if c.Classifier.SendQuality < 1 || c.Classifier.SendQuality > 100 {
		return fmt.Errorf("classifier.send_quality must be between 1 and 100")
	}

	if _, err := ParseHexColor(c.Overlay.Color); err != nil {
		return fmt.Errorf("overlay.color: %w", err)
	}

	if c.Overlay.FillAlpha < 0 || c.Overlay.FillAlpha > 1 {
		return fmt.Errorf("overlay.fill_alpha must be between 0 and 1")
	}

	if c.Overlay.LineWidth < 0 {
		return fmt.Errorf("overlay.line_width cannot be negative")
	}

	switch strings.ToLower(c.Output.Format) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.format must be png, jpg or webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "vision-overlay", "config.json")
}
