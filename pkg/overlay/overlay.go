// Package overlay draws detection rectangles onto a copy of a bitmap's raw
// buffer and re-tags the result so orientation-aware viewers keep the
// highlight registered with the photo.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/menta2k/vision-overlay/pkg/orientation"
	"github.com/menta2k/vision-overlay/pkg/types"
)

// Style controls how the highlight is painted
type Style struct {
	Color     color.NRGBA
	FillAlpha float64
	LineWidth float64
	DotRadius int
}

// DefaultStyle returns the red highlight used by the app.
func DefaultStyle() Style {
	return Style{
		Color:     color.NRGBA{255, 0, 0, 255},
		FillAlpha: 0.3,
		LineWidth: 2.0,
		DotRadius: 3,
	}
}

// Renderer composites detection overlays.
type Renderer struct {
	style Style
}

// New creates a Renderer with the default style
func New() *Renderer {
	return &Renderer{style: DefaultStyle()}
}

// NewWithStyle creates a Renderer with a custom style
func NewWithStyle(style Style) *Renderer {
	return &Renderer{style: style}
}

// Style returns the renderer's style.
func (r *Renderer) Style() Style {
	return r.style
}

// ToPixelRect converts a bottom-left normalized rectangle into a top-left
// pixel rectangle for a w x h raw buffer.
func ToPixelRect(rect types.NormalizedRect, w, h int) types.PixelRect {
	fw, fh := float64(w), float64(h)
	return types.PixelRect{
		X:      rect.X * fw,
		Y:      (1 - rect.Y - rect.Height) * fh,
		Width:  rect.Width * fw,
		Height: rect.Height * fh,
	}
}

// ToPixelPoint converts a bottom-left normalized point into pixel space.
func ToPixelPoint(p types.Point, w, h int) image.Point {
	return image.Point{
		X: int(math.Round(p.X * float64(w))),
		Y: int(math.Round((1 - p.Y) * float64(h))),
	}
}

// Render returns a new bitmap with rect highlighted. A nil rect yields the
// input unchanged. The output is tagged with orientation.Permute of the
// input orientation because the highlight is drawn in raw buffer space.
func (r *Renderer) Render(bm types.Bitmap, rect *types.NormalizedRect) (types.Bitmap, error) {
	if rect == nil {
		return bm, nil
	}

	surface, err := newSurface(bm)
	if err != nil {
		return types.Bitmap{}, err
	}
	w, h := surface.Bounds().Dx(), surface.Bounds().Dy()

	box := ToPixelRect(*rect, w, h).Bounds()
	r.fill(surface, box)
	r.stroke(surface, box)

	return types.Bitmap{
		Image:       surface,
		Orientation: orientation.Permute(bm.Orientation),
		Scale:       bm.Scale,
	}, nil
}

// RenderFace renders a detection's rectangle and, when present, its eye
// landmarks.
func (r *Renderer) RenderFace(bm types.Bitmap, det *types.Detection) (types.Bitmap, error) {
	if det == nil || det.Rect == nil {
		return bm, nil
	}

	out, err := r.Render(bm, det.Rect)
	if err != nil {
		return types.Bitmap{}, err
	}
	if det.Landmarks == nil {
		return out, nil
	}

	surface := out.Image.(*image.NRGBA)
	w, h := surface.Bounds().Dx(), surface.Bounds().Dy()
	for _, pts := range [][]types.Point{det.Landmarks.LeftEye, det.Landmarks.RightEye} {
		for _, p := range pts {
			r.dot(surface, ToPixelPoint(p, w, h))
		}
	}
	return out, nil
}

// newSurface copies the raw buffer, unscaled, into a fresh NRGBA surface
// anchored at the origin.
func newSurface(bm types.Bitmap) (*image.NRGBA, error) {
	if bm.Image == nil {
		return nil, types.ErrDecode
	}

	src := bm.Image.Bounds()
	if src.Empty() {
		return nil, fmt.Errorf("%w: empty %dx%d surface", types.ErrRender, src.Dx(), src.Dy())
	}

	dst := image.NewNRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	draw.Copy(dst, image.Point{}, bm.Image, src, draw.Src, nil)
	return dst, nil
}

func (r *Renderer) fill(dst *image.NRGBA, box image.Rectangle) {
	alpha := uint8(clamp(r.style.FillAlpha, 0, 1)*255 + 0.5)
	mask := image.NewUniform(color.Alpha{A: alpha})
	draw.DrawMask(dst, box, image.NewUniform(r.style.Color), image.Point{}, mask, image.Point{}, draw.Over)
}

// stroke paints a border of LineWidth pixels centred on the box edge.
func (r *Renderer) stroke(dst *image.NRGBA, box image.Rectangle) {
	lw := int(math.Round(r.style.LineWidth))
	if lw <= 0 {
		return
	}

	outer := box.Inset(-lw / 2)
	inner := outer.Inset(lw)
	paint := image.NewUniform(r.style.Color)

	if inner.Empty() {
		draw.Draw(dst, outer, paint, image.Point{}, draw.Over)
		return
	}

	bands := []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y),
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y),
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y),
	}
	for _, b := range bands {
		draw.Draw(dst, b, paint, image.Point{}, draw.Over)
	}
}

func (r *Renderer) dot(dst *image.NRGBA, c image.Point) {
	radius := r.style.DotRadius
	if radius <= 0 {
		radius = 1
	}
	bounds := dst.Bounds()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			p := image.Point{X: c.X + dx, Y: c.Y + dy}
			if p.In(bounds) {
				dst.SetNRGBA(p.X, p.Y, r.style.Color)
			}
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
