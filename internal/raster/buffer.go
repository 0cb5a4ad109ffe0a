package raster

import (
	"image"
	"math"
)

// FrameBuffer holds the rendering target as flat slices for cache locality.
type FrameBuffer struct {
	Width  int
	Height int
	Color  []uint8   // RGBA interleaved, len = W*H*4
	ZBuf   []float64 // depth per pixel, larger is closer
}

// NewFrameBuffer allocates a transparent color buffer and a -inf z-buffer.
func NewFrameBuffer(w, h int) *FrameBuffer {
	zbuf := make([]float64, w*h)
	for i := range zbuf {
		zbuf[i] = math.Inf(-1)
	}
	return &FrameBuffer{
		Width:  w,
		Height: h,
		Color:  make([]uint8, w*h*4),
		ZBuf:   zbuf,
	}
}

// Image copies the color buffer into a new NRGBA image.
func (fb *FrameBuffer) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	copy(img.Pix, fb.Color)
	return img
}

// Covered counts pixels with non-zero alpha.
func (fb *FrameBuffer) Covered() int {
	n := 0
	for i := 3; i < len(fb.Color); i += 4 {
		if fb.Color[i] != 0 {
			n++
		}
	}
	return n
}
