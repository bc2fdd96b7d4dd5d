package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/vision-overlay/internal/config"
	"github.com/menta2k/vision-overlay/internal/logging"
	"github.com/menta2k/vision-overlay/internal/utils"
	"github.com/menta2k/vision-overlay/pkg/client"
	"github.com/menta2k/vision-overlay/pkg/controller"
	"github.com/menta2k/vision-overlay/pkg/detection"
	"github.com/menta2k/vision-overlay/pkg/llamacpp"
	"github.com/menta2k/vision-overlay/pkg/ollama"
	"github.com/menta2k/vision-overlay/pkg/orientation"
	"github.com/menta2k/vision-overlay/pkg/overlay"
	"github.com/menta2k/vision-overlay/pkg/processing"
	"github.com/menta2k/vision-overlay/pkg/types"
)

const defaultOllamaURL = "http://localhost:11435/api/chat"

// result is written next to the overlay as <name>_result.json
type result struct {
	Input       string               `json:"input"`
	Mode        string               `json:"mode"`
	Info        processing.ImageInfo `json:"info"`
	Overlay     string               `json:"overlay,omitempty"`
	Orientation types.Orientation    `json:"overlay_orientation"`
	Upright     bool                 `json:"upright"`
	FaceIndex   int                  `json:"face_index"`
	FaceCount   int                  `json:"face_count"`
	Identifier  string               `json:"identifier,omitempty"`
	Labels      []types.Detection    `json:"labels,omitempty"`
	Message     string               `json:"message,omitempty"`
}

func main() {
	var in, outDir, mode, backend, url, model, cascade, puploc, ext, configPath string
	var face, quality int
	var upright, describe, verbose bool
	var timeout time.Duration

	flag.StringVar(&in, "in", "", "input image path or URL (jpg/png/webp)")
	flag.StringVar(&outDir, "out", "", "output directory (default from config: ./out)")
	flag.StringVar(&mode, "mode", "faces", "what to run: faces or classify")
	flag.IntVar(&face, "face", 0, "index of the face to highlight (wraps around)")
	flag.StringVar(&backend, "backend", "", "classifier backend: ollama or llamacpp")
	flag.StringVar(&url, "url", "", "server URL (defaults: ollama=http://localhost:11435/api/chat, llamacpp=http://localhost:8080)")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.StringVar(&cascade, "cascade", "", "path to the pigo face finder cascade")
	flag.StringVar(&puploc, "puploc", "", "path to the pigo pupil localisation cascade (empty disables landmarks)")
	flag.StringVar(&ext, "ext", "", "overlay output format: png|jpg|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&upright, "upright", false, "rotate the overlay into display orientation before saving")
	flag.BoolVar(&describe, "describe", false, "ask the model to describe the image before classifying")
	flag.StringVar(&configPath, "config", "", "path to a JSON config file (default: "+config.GetConfigPath()+" if present)")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline for detection")
	flag.BoolVar(&verbose, "v", false, "verbose logging")

	flag.Parse()
	if in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -in input.jpg|URL [-mode faces|classify] [-face N] [-backend ollama|llamacpp] [-url server_url] [-out outdir] [-ext png|jpg|webp] [-upright]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	logger, err := logging.NewLogger(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := loadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Flags given on the command line win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.OutputDir = outDir
		case "backend":
			cfg.Classifier.Backend = backend
		case "url":
			cfg.Classifier.URL = url
		case "model":
			cfg.Classifier.Model = model
		case "cascade":
			cfg.Detector.CascadePath = cascade
		case "puploc":
			cfg.Detector.PuplocPath = puploc
		case "ext":
			cfg.Output.Format = ext
		case "quality":
			cfg.Output.Quality = quality
		case "upright":
			cfg.Output.Upright = upright
		}
	})
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := run(ctx, logger, cfg, in, mode, face, describe); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if p := config.GetConfigPath(); utils.FileExists(p) {
		return config.LoadFromFile(p)
	}
	return config.Default(), nil
}

func run(ctx context.Context, logger *zap.Logger, cfg *config.Config, in, mode string, face int, describe bool) error {
	processor := processing.NewProcessor()
	bm, err := processor.LoadBitmapSmart(in)
	if err != nil {
		return err
	}
	if err := processor.ValidateImage(bm); err != nil {
		return err
	}
	info := processor.GetImageInfo(bm)
	logger.Info("image loaded",
		zap.String("input", in),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Stringer("orientation", info.Orientation))

	style, err := cfg.OverlayStyle()
	if err != nil {
		return err
	}
	opts := controller.Options{
		Renderer: overlay.NewWithStyle(style),
		Logger:   logger,
	}

	switch mode {
	case "faces":
		faces, err := detection.NewPigoDetector(cfg.PigoConfig(), logger)
		if err != nil {
			return err
		}
		opts.Faces = faces
	case "classify":
		classifier, err := newClassifier(cfg, logger)
		if err != nil {
			return err
		}
		if describe {
			answer, err := classifier.TestVision(ctx, bm)
			if err != nil {
				logger.Warn("vision self-test failed", zap.Error(err))
			} else {
				logger.Info("vision self-test", zap.String("answer", answer))
			}
		}
		opts.Classifier = classifier
	default:
		return fmt.Errorf("unknown mode %q (use faces or classify)", mode)
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loop := controller.NewLoop(16)
	go loop.Run(loopCtx)

	ctrl := controller.New(loop, opts)
	ctrl.SetImage(bm)
	if mode == "faces" {
		ctrl.RunDetection(ctx)
	} else {
		ctrl.RunClassification(ctx)
	}

	state, err := ctrl.Await(ctx, finished)
	if err != nil {
		return fmt.Errorf("waiting for detection: %w", err)
	}
	if state.ErrorMessage != "" {
		return fmt.Errorf("%s", state.ErrorMessage)
	}

	if state.FaceCount > 0 {
		target := ((face % state.FaceCount) + state.FaceCount) % state.FaceCount
		for i := 0; i < target; i++ {
			ctrl.NextFace()
		}
		state, err = ctrl.Await(ctx, func(s controller.State) bool { return s.FaceIndex == target })
		if err != nil {
			return fmt.Errorf("waiting for face %d: %w", target, err)
		}
	}

	if state.InfoMessage != "" {
		logger.Info(state.InfoMessage)
	}
	if state.Identifier != "" {
		fmt.Println(state.Identifier)
	}

	return writeOutputs(logger, cfg, processor, in, mode, info, state)
}

// finished reports whether a detection or classification run has settled.
func finished(s controller.State) bool {
	if s.Busy {
		return false
	}
	return s.ErrorMessage != "" || s.InfoMessage != "" || s.FaceCount > 0 || s.Identifier != ""
}

func newClassifier(cfg *config.Config, logger *zap.Logger) (*detection.ModelClassifier, error) {
	var vc client.VisionClient
	var err error

	url := cfg.Classifier.URL
	switch cfg.Classifier.Backend {
	case "ollama":
		if url == "" {
			url = defaultOllamaURL
		}
		vc, err = ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	case "llamacpp":
		vc, err = llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", cfg.Classifier.Backend)
	}

	return detection.NewModelClassifier(vc, cfg.ClassifierSettings(), logger)
}

func writeOutputs(logger *zap.Logger, cfg *config.Config, processor *processing.Processor, in, mode string, info processing.ImageInfo, state controller.State) error {
	outDir := cfg.Output.OutputDir
	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}

	res := result{
		Input:      in,
		Mode:       mode,
		Info:       info,
		Upright:    cfg.Output.Upright,
		FaceIndex:  state.FaceIndex,
		FaceCount:  state.FaceCount,
		Identifier: state.Identifier,
		Labels:     state.Labels,
		Message:    state.InfoMessage,
	}

	if state.Overlay != nil && state.FaceCount > 0 {
		img := state.Overlay.Image
		res.Orientation = state.Overlay.Orientation
		if cfg.Output.Upright {
			img = orientation.Upright(img, state.Overlay.Orientation)
			res.Orientation = types.Up
		}

		format := utils.NormalizeFormat(cfg.Output.Format)
		path := utils.GenerateOutputFilename(in, outDir, "", cfg.Output.Suffix, format)
		if err := processor.SaveImage(img, path, format, cfg.Output.Quality, cfg.Output.Lossless); err != nil {
			return fmt.Errorf("failed to save overlay: %w", err)
		}
		res.Overlay = path
		logger.Info("wrote overlay", zap.String("path", path), zap.Stringer("orientation", res.Orientation))
	}

	js, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	jsonPath := utils.GenerateOutputFilename(in, outDir, "", "_result", "json")
	if err := os.WriteFile(jsonPath, js, 0o644); err != nil {
		return err
	}
	logger.Info("wrote result", zap.String("path", jsonPath), zap.String("mode", strings.ToLower(mode)))
	return nil
}
