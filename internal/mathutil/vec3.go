package mathutil

import "math"

// Vec3 is a double-precision vector. Container data is float32; convert at
// the edges with Vec3From32 and F32.
type Vec3 [3]float64

// Vec3From32 widens a stored float32 triple.
func Vec3From32(v [3]float32) Vec3 {
	return Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

// F32 narrows v for storage.
func (v Vec3) F32() [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v[0] * s, v[1] * s, v[2] * s} }

func (a Vec3) Dot(b Vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Min and Max are componentwise.
func (a Vec3) Min(b Vec3) Vec3 {
	return Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])}
}

func (a Vec3) Max(b Vec3) Vec3 {
	return Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])}
}

func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns the zero vector for near-zero input.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}
