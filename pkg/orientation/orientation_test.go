package orientation

import (
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/vision-overlay/pkg/types"
)

func TestPermuteTable(t *testing.T) {
	tests := []struct {
		in   types.Orientation
		want types.Orientation
	}{
		{types.Up, types.DownMirrored},
		{types.UpMirrored, types.Up},
		{types.Down, types.UpMirrored},
		{types.DownMirrored, types.Down},
		{types.Left, types.RightMirrored},
		{types.RightMirrored, types.Left},
		{types.Right, types.LeftMirrored},
		{types.LeftMirrored, types.Right},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			for i := 0; i < 3; i++ {
				if got := Permute(tt.in); got != tt.want {
					t.Fatalf("Permute(%v) = %v, want %v", tt.in, got, tt.want)
				}
			}
		})
	}
}

func TestPermuteCoversAllOrientations(t *testing.T) {
	for _, o := range types.Orientations() {
		if _, ok := permutation[o]; !ok {
			t.Errorf("no permutation entry for %v", o)
		}
	}
}

func TestPermuteIsNotAnInvolution(t *testing.T) {
	if got := Permute(Permute(types.Up)); got == types.Up {
		t.Errorf("expected Permute twice on up to differ from up, got %v", got)
	}
}

func TestPermuteUnknownPassesThrough(t *testing.T) {
	unknown := types.Orientation(99)
	if got := Permute(unknown); got != unknown {
		t.Errorf("Permute(%v) = %v, want pass-through", unknown, got)
	}
}

func TestUpright(t *testing.T) {
	// 2x1 buffer: red on the left, blue on the right.
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 0, 255, 255}
	img.SetNRGBA(0, 0, red)
	img.SetNRGBA(1, 0, blue)

	if got := Upright(img, types.Up); got != image.Image(img) {
		t.Error("Up should return the input unchanged")
	}

	flipped := Upright(img, types.UpMirrored)
	if c := color.NRGBAModel.Convert(flipped.At(0, 0)).(color.NRGBA); c != blue {
		t.Errorf("mirrored pixel (0,0) = %v, want blue", c)
	}

	for _, o := range []types.Orientation{types.Left, types.Right, types.LeftMirrored, types.RightMirrored} {
		b := Upright(img, o).Bounds()
		if b.Dx() != 1 || b.Dy() != 2 {
			t.Errorf("Upright(%v) bounds = %v, want 1x2", o, b)
		}
	}
}

func TestDisplaySize(t *testing.T) {
	if w, h := DisplaySize(200, 100, types.Right); w != 100 || h != 200 {
		t.Errorf("DisplaySize(right) = %dx%d", w, h)
	}
	if w, h := DisplaySize(200, 100, types.DownMirrored); w != 200 || h != 100 {
		t.Errorf("DisplaySize(down-mirrored) = %dx%d", w, h)
	}
}
