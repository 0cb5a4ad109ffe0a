package skeleton

import (
	"fmt"

	"xmesh-tool/internal/mathutil"
)

// tailLength is the display length of a joint along its local Y axis.
const tailLength = 6

// Joint is a bone placed in the editing host's coordinate space.
type Joint struct {
	Name   string        `json:"name"`
	Parent int           `json:"parent"`
	Head   mathutil.Vec3 `json:"head"`
	Tail   mathutil.Vec3 `json:"tail"`
	Matrix mathutil.Mat4 `json:"matrix"`
	// LocalRotation is the bone's own rotation relative to its parent,
	// unit length and scalar-first (w, x, y, z).
	LocalRotation [4]float64 `json:"local_rotation"`
}

// BoneName is the vertex group name used for bone i.
func BoneName(i int) string { return fmt.Sprintf("Bone_%d", i) }

// BindPose converts the world matrices to host space with the import
// correction. Mesh positions must use the same correction so the two stay
// aligned.
func (s *Skeleton) BindPose() []Joint {
	corr := mathutil.FromMat3Translation(mathutil.ImportCorrection, mathutil.Vec3{})
	worlds := s.WorldMatrices()
	joints := make([]Joint, len(worlds))
	for i, w := range worlds {
		m := mathutil.Mat4Mul(corr, w)
		head := m.Translation()
		dir := m.Mat3().MulVec3(mathutil.Vec3{0, 1, 0})
		joints[i] = Joint{
			Name:   BoneName(i),
			Parent: s.Bones[i].Parent,
			Head:   head,
			Tail:   head.Add(dir.Scale(tailLength)),
			Matrix: m,

			LocalRotation: s.Bones[i].Rotation.Normalize().WXYZ(),
		}
	}
	return joints
}
