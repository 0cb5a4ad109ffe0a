package raster

import (
	"math"

	"xmesh-tool/internal/mathutil"
)

// LightConfig holds precomputed lighting parameters.
type LightConfig struct {
	LightDir mathutil.Vec3
	RimDir   mathutil.Vec3
	HalfMain mathutil.Vec3 // Blinn-Phong half-vector of the main light
	Ambient  float64
	Hemi     float64
	Direct   float64
	Rim      float64
	SpecInt  float64
	SpecPow  float64
	Exposure float64
	InvGamma float64
}

// DefaultLightConfig returns a key light from the upper right, a cool rim
// from behind and a mild specular.
func DefaultLightConfig() LightConfig {
	lightDir := mathutil.Vec3{180, 260, 140}.Normalize()
	rimDir := mathutil.Vec3{-160, 130, -210}.Normalize()
	viewDir := mathutil.Vec3{0, -110, -400}.Normalize()

	return LightConfig{
		LightDir: lightDir,
		RimDir:   rimDir,
		HalfMain: lightDir.Sub(viewDir).Normalize(),
		Ambient:  0.55,
		Hemi:     0.50,
		Direct:   1.50,
		Rim:      0.60,
		SpecInt:  0.45,
		SpecPow:  12.0,
		Exposure: 1.05,
		InvGamma: 1.0 / 2.2,
	}
}

// Shade returns the combined lighting scalar for a unit face normal.
// Faces are lit from both sides.
func (lc *LightConfig) Shade(normal mathutil.Vec3) float64 {
	ndlMain := math.Abs(normal.Dot(lc.LightDir))
	ndlRim := math.Abs(normal.Dot(lc.RimDir))
	hemi := ((1.0-math.Abs(normal[1]))*0.5 + 0.5) * lc.Hemi
	spec := math.Pow(max(0, normal.Dot(lc.HalfMain)), lc.SpecPow) * lc.SpecInt
	return lc.Ambient + hemi + ndlMain*lc.Direct + ndlRim*lc.Rim + spec
}

// Apply shades one sRGB channel: decode to linear, scale, tone map and
// encode back.
func (lc *LightConfig) Apply(c uint8, shade float64) uint8 {
	lin := srgbToLinear[c] * shade * lc.Exposure
	return clamp255(math.Pow(acesTonemap(lin), lc.InvGamma) * 255)
}

var srgbToLinear [256]float64

func init() {
	for i := range srgbToLinear {
		srgbToLinear[i] = math.Pow(float64(i)/255.0, 2.2)
	}
}

// acesTonemap is the ACES filmic curve fit.
func acesTonemap(x float64) float64 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
