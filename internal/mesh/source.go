package mesh

import (
	"fmt"

	"xmesh-tool/internal/mathutil"
	"xmesh-tool/internal/skeleton"
)

// SourceMesh is a triangulated mesh as the editing host hands it over, in
// host space. Every three corners form a triangle.
type SourceMesh struct {
	Name    string   `json:"name"`
	Corners []Corner `json:"corners"`
}

// Corner is one face corner.
type Corner struct {
	Position [3]float64 `json:"position"`
	Normal   [3]float64 `json:"normal"`
	// Tangent holds xyz and the bitangent sign.
	Tangent *[4]float64 `json:"tangent,omitempty"`
	UV      [2]float64  `json:"uv"`
	Color   *[4]float64 `json:"color,omitempty"`
	// Groups maps vertex group name (Bone_<n>) to weight.
	Groups map[string]float64 `json:"groups,omitempty"`
}

// ToSource expands a decoded mesh into host-space corners, one per index.
func ToSource(m *Mesh) *SourceMesh {
	src := &SourceMesh{
		Name:    fmt.Sprintf("LOD%d_%X", m.LOD, m.Hash),
		Corners: make([]Corner, 0, len(m.Indices)),
	}
	imp := mathutil.ImportCorrection
	for _, idx := range m.Indices[:m.TriangleCount()*3] {
		i := int(idx)
		var c Corner
		c.Position = imp.MulVec3(mathutil.Vec3From32(m.Positions[i]))
		if i < len(m.Normals) {
			c.Normal = imp.MulVec3(mathutil.Vec3From32(m.Normals[i]))
		}
		if i < len(m.Tangents) {
			t := m.Tangents[i]
			r := imp.MulVec3(mathutil.Vec3{float64(t[0]), float64(t[1]), float64(t[2])})
			c.Tangent = &[4]float64{r[0], r[1], r[2], float64(t[3])}
		}
		if len(m.UVs) > 0 && i < len(m.UVs[0]) {
			c.UV = [2]float64{float64(m.UVs[0][i][0]), float64(m.UVs[0][i][1])}
		}
		if len(m.Colors) > 0 && i < len(m.Colors[0]) {
			col := m.Colors[0][i]
			c.Color = &[4]float64{float64(col[0]), float64(col[1]), float64(col[2]), float64(col[3])}
		}
		if i < len(m.Weights) && len(m.Weights[i]) > 0 {
			c.Groups = make(map[string]float64, len(m.Weights[i]))
			for _, in := range m.Weights[i] {
				c.Groups[skeleton.BoneName(in.Bone)] = float64(in.Weight)
			}
		}
		src.Corners = append(src.Corners, c)
	}
	return src
}
