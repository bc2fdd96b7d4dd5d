// Package orientation maps orientation tags for rendered overlays and
// turns raw buffers upright the way orientation-aware viewers do.
package orientation

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/vision-overlay/pkg/types"
)

// permutation is the re-tagging applied to an overlay drawn in the raw
// buffer's coordinate space. Right maps to LeftMirrored, which is not the
// inverse of its own display transform; viewers depend on this table as is.
var permutation = map[types.Orientation]types.Orientation{
	types.Up:            types.DownMirrored,
	types.Down:          types.UpMirrored,
	types.Left:          types.RightMirrored,
	types.Right:         types.LeftMirrored,
	types.UpMirrored:    types.Up,
	types.DownMirrored:  types.Down,
	types.LeftMirrored:  types.Right,
	types.RightMirrored: types.Left,
}

// Permute returns the orientation tag to attach to an overlay rendered
// from a bitmap tagged with o. Unknown values pass through unchanged.
func Permute(o types.Orientation) types.Orientation {
	if p, ok := permutation[o]; ok {
		return p
	}
	return o
}

// Upright returns img rotated and mirrored so that it displays upright for
// the given orientation tag.
func Upright(img image.Image, o types.Orientation) image.Image {
	switch o {
	case types.UpMirrored:
		return imaging.FlipH(img)
	case types.Down:
		return imaging.Rotate180(img)
	case types.DownMirrored:
		return imaging.FlipV(img)
	case types.LeftMirrored:
		return imaging.Transpose(img)
	case types.Right:
		return imaging.Rotate270(img)
	case types.RightMirrored:
		return imaging.Transverse(img)
	case types.Left:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// DisplaySize returns the dimensions of a w x h raw buffer once displayed
// with orientation o.
func DisplaySize(w, h int, o types.Orientation) (int, int) {
	switch o {
	case types.Left, types.LeftMirrored, types.Right, types.RightMirrored:
		return h, w
	default:
		return w, h
	}
}
