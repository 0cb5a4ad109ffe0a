package mathutil

import "math"

// Quat represents a quaternion stored as (x, y, z, w).
type Quat [4]float64

// QuatFromEngine converts the engine's (x, y, z, w) float lane.
func QuatFromEngine(v [4]float32) Quat {
	return Quat{float64(v[0]), float64(v[1]), float64(v[2]), float64(v[3])}
}

// WXYZ returns the components in scalar-first order, the convention most
// editing hosts use for their rotation constructors.
func (q Quat) WXYZ() [4]float64 {
	return [4]float64{q[3], q[0], q[1], q[2]}
}

// Normalize returns q scaled to unit length; a zero quaternion becomes identity.
func (q Quat) Normalize() Quat {
	l := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if l < 1e-12 {
		return Quat{0, 0, 0, 1}
	}
	return Quat{q[0] / l, q[1] / l, q[2] / l, q[3] / l}
}

// QuatToMat3 converts a quaternion to a 3×3 rotation matrix.
func QuatToMat3(q Quat) Mat3 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Mat3{
		1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy),
		2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx),
		2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy),
	}
}
