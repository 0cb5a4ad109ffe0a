// Package postprocess finishes rendered previews: supersample reduction and
// framing on a square canvas.
package postprocess

import (
	"image"

	"golang.org/x/image/draw"
)

// Downsample scales img to size x size. Color is premultiplied for the
// filter and restored afterwards, so transparent edges keep their color
// instead of fading to black. Images already no larger than size are
// returned as is.
func Downsample(img *image.NRGBA, size int) *image.NRGBA {
	b := img.Bounds()
	if size <= 0 || (b.Dx() <= size && b.Dy() <= size) {
		return img
	}

	premul := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			si, di := img.PixOffset(x, y), premul.PixOffset(x, y)
			a := float64(img.Pix[si+3]) / 255
			for k := 0; k < 3; k++ {
				premul.Pix[di+k] = uint8(float64(img.Pix[si+k])*a + 0.5)
			}
			premul.Pix[di+3] = img.Pix[si+3]
		}
	}

	small := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(small, small.Bounds(), premul, b, draw.Src, nil)
	return unpremultiply(small)
}

func unpremultiply(src *image.RGBA) *image.NRGBA {
	out := image.NewNRGBA(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		a := src.Pix[i+3]
		out.Pix[i+3] = a
		if a <= 1 {
			continue
		}
		inv := 255 / float64(a)
		for k := 0; k < 3; k++ {
			out.Pix[i+k] = clamp8(float64(src.Pix[i+k]) * inv)
		}
	}
	return out
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
