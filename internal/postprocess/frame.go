package postprocess

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// DefaultFill is the share of the canvas the longer side of a framed
// subject occupies.
const DefaultFill = 0.9

// Frame crops img to its visible pixels and centers the result on a
// transparent size x size canvas, scaled so the longer side spans
// fill*size. A fully transparent image yields an empty canvas.
func Frame(img *image.NRGBA, size int, fill float64) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	box, ok := opaqueBounds(img)
	if !ok || size <= 0 {
		return canvas
	}
	if fill <= 0 || fill > 1 {
		fill = DefaultFill
	}

	scale := float64(size) * fill / math.Max(float64(box.Dx()), float64(box.Dy()))
	w := max(1, int(float64(box.Dx())*scale+0.5))
	h := max(1, int(float64(box.Dy())*scale+0.5))
	x0, y0 := (size-w)/2, (size-h)/2
	draw.CatmullRom.Scale(canvas, image.Rect(x0, y0, x0+w, y0+h), img, box, draw.Src, nil)
	return canvas
}

// opaqueBounds is the smallest rectangle holding every pixel with non-zero
// alpha.
func opaqueBounds(img *image.NRGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Pix[img.PixOffset(x, y)+3] == 0 {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}
