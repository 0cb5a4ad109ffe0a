package raster

import (
	"image"
	"image/color"
	"math"

	"xmesh-tool/internal/mathutil"
)

// ScreenVertex is a projected vertex: pixel position, depth (larger is
// closer) and texture coordinate.
type ScreenVertex struct {
	X, Y, Z float64
	U, V    float64
}

// Surface is what a triangle is filled with: tex when set and the mesh has
// UVs, Base otherwise.
type Surface struct {
	Tex    *image.NRGBA
	HasUV  bool
	Base   color.NRGBA
	Lights *LightConfig
}

// RasterizeTriangle fills one flat-shaded triangle with z-buffering.
// Texels with alpha below 8 are discarded.
func RasterizeTriangle(fb *FrameBuffer, a, b, c ScreenVertex, s Surface) {
	e1 := mathutil.Vec3{b.X - a.X, b.Y - a.Y, b.Z - a.Z}
	e2 := mathutil.Vec3{c.X - a.X, c.Y - a.Y, c.Z - a.Z}
	n := e1.Cross(e2)
	if n.Len() < 1e-8 {
		return
	}
	shade := s.Lights.Shade(n.Normalize())

	minX := max(0, int(math.Min(math.Min(a.X, b.X), c.X)))
	maxX := min(fb.Width-1, int(math.Max(math.Max(a.X, b.X), c.X))+1)
	minY := max(0, int(math.Min(math.Min(a.Y, b.Y), c.Y)))
	maxY := min(fb.Height-1, int(math.Max(math.Max(a.Y, b.Y), c.Y))+1)
	if minX >= maxX || minY >= maxY {
		return
	}

	det := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if math.Abs(det) < 1e-8 {
		return
	}
	invDet := 1.0 / det
	textured := s.Tex != nil && s.HasUV

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) - c.Y
		row := sy * fb.Width
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) - c.X
			w0 := ((b.Y-c.Y)*dsx + (c.X-b.X)*dsy) * invDet
			w1 := ((c.Y-a.Y)*dsx + (a.X-c.X)*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := w0*a.Z + w1*b.Z + w2*c.Z
			zi := row + sx
			if z <= fb.ZBuf[zi] {
				continue
			}

			px := s.Base
			if textured {
				px = sample(s.Tex, w0*a.U+w1*b.U+w2*c.U, w0*a.V+w1*b.V+w2*c.V)
			}
			if px.A < 8 {
				continue
			}
			fb.ZBuf[zi] = z

			ci := zi * 4
			fb.Color[ci] = s.Lights.Apply(px.R, shade)
			fb.Color[ci+1] = s.Lights.Apply(px.G, shade)
			fb.Color[ci+2] = s.Lights.Apply(px.B, shade)
			fb.Color[ci+3] = px.A
		}
	}
}

// sample filters tex bilinearly with wrapping UVs.
func sample(tex *image.NRGBA, u, v float64) color.NRGBA {
	w, h := tex.Rect.Dx(), tex.Rect.Dy()
	if w == 0 || h == 0 {
		return color.NRGBA{}
	}
	u -= math.Floor(u)
	v -= math.Floor(v)

	fx, fy := u*float64(w-1), v*float64(h-1)
	x0, y0 := int(fx), int(fy)
	x1, y1 := (x0+1)%w, (y0+1)%h
	dx, dy := fx-float64(x0), fy-float64(y0)

	i00 := y0*tex.Stride + x0*4
	i10 := y0*tex.Stride + x1*4
	i01 := y1*tex.Stride + x0*4
	i11 := y1*tex.Stride + x1*4
	w00, w10 := (1-dx)*(1-dy), dx*(1-dy)
	w01, w11 := (1-dx)*dy, dx*dy

	var out [4]uint8
	for k := 0; k < 4; k++ {
		f := float64(tex.Pix[i00+k])*w00 + float64(tex.Pix[i10+k])*w10 +
			float64(tex.Pix[i01+k])*w01 + float64(tex.Pix[i11+k])*w11
		out[k] = uint8(f + 0.5)
	}
	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: out[3]}
}

// averageColor is the mean opaque color of tex, used for untextured faces.
func averageColor(tex *image.NRGBA) color.NRGBA {
	b := tex.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return defaultBase
	}
	var r, g, bl float64
	for y := 0; y < h; y++ {
		off := y * tex.Stride
		for x := 0; x < w; x++ {
			i := off + x*4
			r += float64(tex.Pix[i])
			g += float64(tex.Pix[i+1])
			bl += float64(tex.Pix[i+2])
		}
	}
	n := float64(w * h)
	return color.NRGBA{R: uint8(r/n + 0.5), G: uint8(g/n + 0.5), B: uint8(bl/n + 0.5), A: 255}
}
