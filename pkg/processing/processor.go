package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/vision-overlay/pkg/orientation"
	"github.com/menta2k/vision-overlay/pkg/types"
)

// Processor loads, encodes and saves bitmaps
type Processor struct {
	httpClient   *http.Client
	minImageSize int
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		minImageSize: 16,
	}
}

// SetMinImageSize sets the minimum side length accepted by ValidateImage.
func (p *Processor) SetMinImageSize(n int) {
	p.minImageSize = n
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	DisplayWidth  int               `json:"display_width"`
	DisplayHeight int               `json:"display_height"`
	AspectRatio   float64           `json:"aspect_ratio"`
	Orientation   types.Orientation `json:"orientation"`
}

// LoadBitmapFromURL downloads an image and reads its orientation tag
func (p *Processor) LoadBitmapFromURL(imageURL string) (types.Bitmap, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return types.Bitmap{}, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return types.Bitmap{}, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return types.Bitmap{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Vision-Overlay/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Bitmap{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Bitmap{}, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return types.Bitmap{}, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Bitmap{}, fmt.Errorf("failed to read image data: %w", err)
	}
	return p.DecodeBitmap(data)
}

// LoadBitmap loads an image file without applying its orientation tag
func (p *Processor) LoadBitmap(path string) (types.Bitmap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Bitmap{}, fmt.Errorf("failed to open image file: %w", err)
	}
	bm, err := p.DecodeBitmap(data)
	if err != nil {
		return types.Bitmap{}, fmt.Errorf("%s: %w", path, err)
	}
	return bm, nil
}

// LoadBitmapSmart loads from either a file path or URL
func (p *Processor) LoadBitmapSmart(source string) (types.Bitmap, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadBitmapFromURL(source)
	}
	return p.LoadBitmap(source)
}

// DecodeBitmap decodes the raw buffer and reads the EXIF orientation. The
// buffer is left as stored; consumers apply the tag themselves.
func (p *Processor) DecodeBitmap(data []byte) (types.Bitmap, error) {
	img, err := decodeImage(data)
	if err != nil {
		return types.Bitmap{}, fmt.Errorf("%w: %w", types.ErrDecode, err)
	}
	return types.Bitmap{
		Image:       img,
		Orientation: ReadOrientation(bytes.NewReader(data)),
		Scale:       1,
	}, nil
}

// ReadOrientation returns the EXIF orientation of an encoded image, or Up
// when the data carries no usable tag.
func ReadOrientation(r io.Reader) types.Orientation {
	x, err := exif.Decode(r)
	if err != nil {
		return types.Up
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return types.Up
	}
	v, err := tag.Int(0)
	if err != nil {
		return types.Up
	}
	return types.OrientationFromEXIF(v)
}

func decodeImage(data []byte) (image.Image, error) {
	if img, err := imaging.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// GetImageInfo returns raw and displayed dimensions of a bitmap
func (p *Processor) GetImageInfo(bm types.Bitmap) ImageInfo {
	w, h := bm.Size()
	dw, dh := orientation.DisplaySize(w, h, bm.Orientation)

	info := ImageInfo{
		Width:         w,
		Height:        h,
		DisplayWidth:  dw,
		DisplayHeight: dh,
		Orientation:   bm.Orientation,
	}
	if dh > 0 {
		info.AspectRatio = float64(dw) / float64(dh)
	}
	return info
}

// ValidateImage checks that a bitmap has a pixel buffer of usable size
func (p *Processor) ValidateImage(bm types.Bitmap) error {
	if bm.Image == nil {
		return types.ErrNoImage
	}
	w, h := bm.Size()
	if w < p.minImageSize || h < p.minImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)", w, h, p.minImageSize)
	}
	return nil
}
