// Package raster is a small software rasterizer for mesh previews.
package raster

import (
	"image"
	"image/color"
	"math"

	"xmesh-tool/internal/mathutil"
	"xmesh-tool/internal/mesh"
)

var defaultBase = color.NRGBA{R: 160, G: 160, B: 170, A: 255}

// Options controls a preview render.
type Options struct {
	// Size is the output edge in pixels; the render is Size*Supersample.
	Size        int
	Supersample int
	// Yaw turns the model about its up axis, Pitch tilts the camera, both
	// in degrees.
	Yaw, Pitch float64
}

// DefaultOptions is a three-quarter view from slightly above.
func DefaultOptions() Options {
	return Options{Size: 256, Supersample: 2, Yaw: 35, Pitch: -20}
}

func (o Options) view() mathutil.Mat3 {
	return mathutil.Mat3Mul(
		mathutil.RotX(mathutil.Deg2Rad(o.Pitch)),
		mathutil.RotY(mathutil.Deg2Rad(o.Yaw)),
	)
}

// RenderMesh draws the triangles of m in engine space (Y up). tex is used
// with the first UV layer when both exist; otherwise faces are filled with
// the texture's average color or a neutral grey.
func RenderMesh(m *mesh.Mesh, tex *image.NRGBA, opts Options) *image.NRGBA {
	if opts.Size <= 0 {
		opts.Size = DefaultOptions().Size
	}
	ss := max(1, opts.Supersample)
	renderSize := opts.Size * ss
	fb := NewFrameBuffer(renderSize, renderSize)
	if m == nil || len(m.Positions) == 0 || len(m.Indices) < 3 {
		return fb.Image()
	}

	verts := project(m.Positions, opts.view(), renderSize, min(16*ss, renderSize/8))
	var uvs [][2]float32
	if len(m.UVs) > 0 && len(m.UVs[0]) == len(m.Positions) {
		uvs = m.UVs[0]
	}
	for i := range verts {
		if uvs != nil {
			verts[i].U, verts[i].V = float64(uvs[i][0]), float64(uvs[i][1])
		}
	}

	lc := DefaultLightConfig()
	s := Surface{Tex: tex, HasUV: uvs != nil, Base: defaultBase, Lights: &lc}
	if tex != nil {
		s.Base = averageColor(tex)
	}

	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := int(m.Indices[t]), int(m.Indices[t+1]), int(m.Indices[t+2])
		if a >= len(verts) || b >= len(verts) || c >= len(verts) {
			continue
		}
		RasterizeTriangle(fb, verts[a], verts[b], verts[c], s)
	}
	return fb.Image()
}

// project rotates positions by r and fits them, centered, into a square
// of renderSize pixels less margin on every side.
func project(pos [][3]float32, r mathutil.Mat3, renderSize, margin int) []ScreenVertex {
	rotated := make([]mathutil.Vec3, len(pos))
	lo := mathutil.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := mathutil.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i, p := range pos {
		v := r.MulVec3(mathutil.Vec3From32(p))
		rotated[i] = v
		lo, hi = lo.Min(v), hi.Max(v)
	}

	center := lo.Add(hi).Scale(0.5)
	span := math.Max(math.Max(hi[0]-lo[0], hi[1]-lo[1]), 0.001)
	scale := float64(renderSize-2*margin) / span
	half := float64(renderSize) / 2

	out := make([]ScreenVertex, len(pos))
	for i, v := range rotated {
		out[i] = ScreenVertex{
			X: half + (v[0]-center[0])*scale,
			Y: half - (v[1]-center[1])*scale,
			Z: v[2] - center[2],
		}
	}
	return out
}
