package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmesh-tool/internal/mathutil"
	"xmesh-tool/internal/mesh"
)

func quad() *mesh.Mesh {
	return &mesh.Mesh{
		Positions: [][3]float32{{-1, -1, 0}, {1, -1, 0}, {1, 1, 0}, {-1, 1, 0}},
		UVs:       [][][2]float32{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}},
		Indices:   []uint16{0, 1, 2, 0, 2, 3},
	}
}

func solid(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestRenderMeshFrontOn(t *testing.T) {
	img := RenderMesh(quad(), nil, Options{Size: 64, Supersample: 1})
	require.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())

	// the quad fills the frame inside an 8px margin
	assert.NotZero(t, img.NRGBAAt(32, 32).A)
	assert.NotZero(t, img.NRGBAAt(20, 20).A)
	assert.Zero(t, img.NRGBAAt(2, 2).A)
	assert.Zero(t, img.NRGBAAt(61, 61).A)
}

func TestRenderMeshSupersampleScalesTarget(t *testing.T) {
	img := RenderMesh(quad(), nil, Options{Size: 32, Supersample: 3, Yaw: 35, Pitch: -20})
	assert.Equal(t, 96, img.Bounds().Dx())
}

func TestRenderMeshTextured(t *testing.T) {
	red := RenderMesh(quad(), solid(color.NRGBA{R: 220, G: 10, B: 10, A: 255}), Options{Size: 32, Supersample: 1})
	px := red.NRGBAAt(16, 16)
	assert.Greater(t, px.R, px.G)
	assert.Greater(t, px.R, px.B)

	// fully transparent texels are discarded
	clear := RenderMesh(quad(), solid(color.NRGBA{R: 255}), Options{Size: 32, Supersample: 1})
	assert.Zero(t, clear.NRGBAAt(16, 16).A)
}

func TestRenderMeshEmpty(t *testing.T) {
	img := RenderMesh(&mesh.Mesh{}, nil, DefaultOptions())
	assert.Equal(t, 512, img.Bounds().Dx())
	fb := NewFrameBuffer(2, 2)
	assert.Zero(t, fb.Covered())
}

func TestRenderMeshSkipsBadIndices(t *testing.T) {
	m := quad()
	m.Indices = append(m.Indices, 0, 1, 40)
	img := RenderMesh(m, nil, Options{Size: 32, Supersample: 1})
	assert.NotZero(t, img.NRGBAAt(16, 16).A)
}

func TestZBufferKeepsNearest(t *testing.T) {
	fb := NewFrameBuffer(8, 8)
	lc := DefaultLightConfig()
	far := Surface{Base: color.NRGBA{B: 255, A: 255}, Lights: &lc}
	near := Surface{Base: color.NRGBA{R: 255, A: 255}, Lights: &lc}
	tri := func(z float64) (ScreenVertex, ScreenVertex, ScreenVertex) {
		return ScreenVertex{X: 0, Y: 0, Z: z}, ScreenVertex{X: 8, Y: 0, Z: z}, ScreenVertex{X: 0, Y: 8, Z: z}
	}

	a, b, c := tri(1)
	RasterizeTriangle(fb, a, b, c, near)
	a, b, c = tri(-1)
	RasterizeTriangle(fb, a, b, c, far)

	img := fb.Image()
	px := img.NRGBAAt(1, 1)
	assert.Greater(t, px.R, px.B)
	assert.Positive(t, fb.Covered())
}

func TestSampleWraps(t *testing.T) {
	tex := solid(color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, sample(tex, 1.25, -0.5))
	assert.Equal(t, color.NRGBA{}, sample(image.NewNRGBA(image.Rect(0, 0, 0, 0)), 0, 0))
}

func TestAverageColor(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 40, G: 50, B: 60, A: 255}, averageColor(solid(color.NRGBA{R: 40, G: 50, B: 60, A: 255})))
	assert.Equal(t, defaultBase, averageColor(image.NewNRGBA(image.Rect(0, 0, 0, 0))))
}

func TestShadeLitFromBothSides(t *testing.T) {
	lc := DefaultLightConfig()
	n := mathutil.Vec3{0, 0, 1}
	assert.InDelta(t, lc.Shade(n), lc.Shade(n.Scale(-1)), 0.5)
	assert.Equal(t, uint8(0), lc.Apply(0, 2))
	assert.Equal(t, uint8(255), clamp255(400))
}
