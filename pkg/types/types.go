package types

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Orientation describes how a raw pixel buffer must be rotated or mirrored
// to be displayed upright.
type Orientation int

const (
	Up Orientation = iota
	UpMirrored
	Down
	DownMirrored
	Left
	LeftMirrored
	Right
	RightMirrored
)

var orientationNames = [...]string{
	Up:            "up",
	UpMirrored:    "up-mirrored",
	Down:          "down",
	DownMirrored:  "down-mirrored",
	Left:          "left",
	LeftMirrored:  "left-mirrored",
	Right:         "right",
	RightMirrored: "right-mirrored",
}

// Orientations returns all eight orientations in declaration order.
func Orientations() []Orientation {
	return []Orientation{Up, UpMirrored, Down, DownMirrored, Left, LeftMirrored, Right, RightMirrored}
}

// Valid reports whether o is one of the eight known orientations.
func (o Orientation) Valid() bool {
	return o >= Up && o <= RightMirrored
}

func (o Orientation) String() string {
	if !o.Valid() {
		return fmt.Sprintf("orientation(%d)", int(o))
	}
	return orientationNames[o]
}

// ParseOrientation parses a name as produced by String.
func ParseOrientation(s string) (Orientation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range orientationNames {
		if name == s {
			return Orientation(i), nil
		}
	}
	return Up, fmt.Errorf("unknown orientation: %q", s)
}

// MarshalText encodes the orientation by name.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes a name produced by MarshalText.
func (o *Orientation) UnmarshalText(text []byte) error {
	v, err := ParseOrientation(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// OrientationFromEXIF maps the EXIF orientation tag (1..8) onto an
// Orientation. Values outside that range are treated as Up.
func OrientationFromEXIF(tag int) Orientation {
	switch tag {
	case 2:
		return UpMirrored
	case 3:
		return Down
	case 4:
		return DownMirrored
	case 5:
		return LeftMirrored
	case 6:
		return Right
	case 7:
		return RightMirrored
	case 8:
		return Left
	default:
		return Up
	}
}

// EXIF returns the EXIF orientation tag value for o.
func (o Orientation) EXIF() int {
	switch o {
	case UpMirrored:
		return 2
	case Down:
		return 3
	case DownMirrored:
		return 4
	case LeftMirrored:
		return 5
	case Right:
		return 6
	case RightMirrored:
		return 7
	case Left:
		return 8
	default:
		return 1
	}
}

// Bitmap is a decoded raster plus the orientation tag it carries.
// Image holds the raw, non-rotated buffer and must not be mutated.
type Bitmap struct {
	Image       image.Image
	Orientation Orientation
	Scale       float64
}

// Size returns the pixel dimensions of the raw buffer.
func (b Bitmap) Size() (int, int) {
	if b.Image == nil {
		return 0, 0
	}
	r := b.Image.Bounds()
	return r.Dx(), r.Dy()
}

// NormalizedRect is a rectangle in [0,1] coordinates with its origin at
// the bottom-left corner.
type NormalizedRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PixelRect is a rectangle in pixel coordinates with its origin at the
// top-left corner.
type PixelRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bounds rounds the rectangle to whole pixels.
func (r PixelRect) Bounds() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	x1 := int(math.Round(r.X + r.Width))
	y1 := int(math.Round(r.Y + r.Height))
	return image.Rect(x0, y0, x1, y1)
}

// Point is a normalized point with a bottom-left origin.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Landmarks holds the eye points reported for a face.
type Landmarks struct {
	LeftEye  []Point `json:"left_eye,omitempty"`
	RightEye []Point `json:"right_eye,omitempty"`
}

// Detection is a single face or classification result.
type Detection struct {
	Rect       *NormalizedRect `json:"rect,omitempty"`
	Landmarks  *Landmarks      `json:"landmarks,omitempty"`
	Label      string          `json:"label,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
}

// HasLabel reports whether the detection carries a label.
func (d Detection) HasLabel() bool { return d.Label != "" }

// HasConfidence reports whether the detection carries a confidence score.
func (d Detection) HasConfidence() bool { return d.Confidence != nil }

// Score returns the confidence, or 0 when none was reported.
func (d Detection) Score() float64 {
	if d.Confidence == nil {
		return 0
	}
	return *d.Confidence
}

// Classification builds a labelled detection.
func Classification(label string, confidence float64) Detection {
	return Detection{Label: label, Confidence: &confidence}
}

// Face builds a detection around a rectangle.
func Face(rect NormalizedRect, confidence float64) Detection {
	return Detection{Rect: &rect, Confidence: &confidence}
}
