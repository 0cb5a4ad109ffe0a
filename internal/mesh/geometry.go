package mesh

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"xmesh-tool/internal/mathutil"
	"xmesh-tool/internal/vertex"
)

// ErrEmpty is returned when a source mesh yields no vertices.
var ErrEmpty = errors.New("mesh: no vertices extracted")

const (
	minScale   = 0.0001
	maxWeights = 4
)

// Geometry is replacement geometry in engine space, one entry per unique
// vertex, ready for the patch engine.
type Geometry struct {
	Positions   [][3]float32 `json:"positions"`
	Normals     [][3]float32 `json:"normals"`
	Tangents    [][4]float32 `json:"tangents"`
	UVs         [][2]float32 `json:"uvs"`
	Colors      [][4]float32 `json:"colors"`
	BoneIndices [][4]int16   `json:"bone_indices"`
	BoneWeights [][4]float32 `json:"bone_weights"`
	Indices     []uint16     `json:"indices"`

	Bounds vertex.Bounds `json:"bounds"`
}

// VertexCount returns the number of unique vertices.
func (g *Geometry) VertexCount() int { return len(g.Positions) }

// Lane returns the value written for role at vertex i.
func (g *Geometry) Lane(role vertex.Role, i int) vertex.Lane {
	switch role {
	case vertex.RolePosition:
		p := g.Positions[i]
		return vertex.Lane{p[0], p[1], p[2], 1}
	case vertex.RoleNormal:
		n := g.Normals[i]
		return vertex.Lane{n[0], n[1], n[2], 0}
	case vertex.RoleTangent:
		t := g.Tangents[i]
		w := float32(0)
		if t[3] > 0 {
			w = 1
		}
		return vertex.Lane{t[0], t[1], t[2], w}
	case vertex.RoleUV:
		uv := g.UVs[i]
		return vertex.Lane{uv[0], uv[1], 0, 0}
	case vertex.RoleColor:
		return vertex.Lane(g.Colors[i])
	case vertex.RoleWeights:
		// slot 0 stays implicit
		w := g.BoneWeights[i]
		return vertex.Lane{w[1], w[2], w[3], 0}
	case vertex.RoleBoneIndex:
		b := g.BoneIndices[i]
		return vertex.Lane{float32(b[0]), float32(b[1]), float32(b[2]), float32(b[3])}
	}
	return vertex.Lane{}
}

// FitBounds sets Bounds to the box center and half the largest extent.
func (g *Geometry) FitBounds() {
	lo := [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for _, p := range g.Positions {
		for a := 0; a < 3; a++ {
			lo[a] = min(lo[a], p[a])
			hi[a] = max(hi[a], p[a])
		}
	}
	var extent float32
	for a := 0; a < 3; a++ {
		g.Bounds.Offset[a] = (lo[a] + hi[a]) * 0.5
		extent = max(extent, hi[a]-lo[a])
	}
	g.Bounds.Scale = extent * 0.5
	if g.Bounds.Scale <= minScale {
		g.Bounds.Scale = 1
	}
}

type vertexKey [8]int64

func round(v float64, scale float64) int64 { return int64(math.Round(v * scale)) }

func keyOf(pos, normal mathutil.Vec3, uv [2]float64) vertexKey {
	return vertexKey{
		round(pos[0], 1e4), round(pos[1], 1e4), round(pos[2], 1e4),
		round(normal[0], 1e3), round(normal[1], 1e3), round(normal[2], 1e3),
		round(uv[0], 1e4), round(uv[1], 1e4),
	}
}

// Build converts a triangulated host mesh into engine-space geometry.
// Corners that agree on rounded position, normal and UV share a vertex.
func Build(src *SourceMesh) (*Geometry, error) {
	g := &Geometry{}
	seen := make(map[vertexKey]uint16)

	for _, c := range src.Corners {
		pos := mathutil.ExportCorrection.MulVec3(mathutil.Vec3(c.Position))
		normal := mathutil.ExportCorrection.MulVec3(mathutil.Vec3(c.Normal)).Normalize()

		key := keyOf(pos, normal, c.UV)
		if idx, ok := seen[key]; ok {
			g.Indices = append(g.Indices, idx)
			continue
		}
		if len(g.Positions) > math.MaxUint16 {
			return nil, errTooManyVertices(len(g.Positions))
		}
		idx := uint16(len(g.Positions))
		seen[key] = idx
		g.Indices = append(g.Indices, idx)

		tangent := [4]float32{1, 0, 0, 1}
		if c.Tangent != nil {
			t := mathutil.ExportCorrection.MulVec3(mathutil.Vec3{c.Tangent[0], c.Tangent[1], c.Tangent[2]}).Normalize()
			tangent = [4]float32{float32(t[0]), float32(t[1]), float32(t[2]), float32(c.Tangent[3])}
		}
		color := [4]float32{1, 1, 1, 1}
		if c.Color != nil {
			color = [4]float32{float32(c.Color[0]), float32(c.Color[1]), float32(c.Color[2]), float32(c.Color[3])}
		}
		bi, bw := topWeights(c.Groups)

		g.Positions = append(g.Positions, pos.F32())
		g.Normals = append(g.Normals, normal.F32())
		g.Tangents = append(g.Tangents, tangent)
		g.UVs = append(g.UVs, [2]float32{float32(c.UV[0]), float32(c.UV[1])})
		g.Colors = append(g.Colors, color)
		g.BoneIndices = append(g.BoneIndices, bi)
		g.BoneWeights = append(g.BoneWeights, bw)
	}
	if len(g.Positions) == 0 {
		return nil, ErrEmpty
	}
	g.FitBounds()
	return g, nil
}

func errTooManyVertices(n int) error {
	return fmt.Errorf("mesh: %d unique vertices exceed 16-bit indices", n)
}

// topWeights keeps the four heaviest Bone_<n> groups, normalized.
func topWeights(groups map[string]float64) ([4]int16, [4]float32) {
	bi := [4]int16{-1, -1, -1, -1}
	var bw [4]float32

	var list []vertex.Influence
	for name, w := range groups {
		id, ok := ParseBoneName(name)
		if !ok {
			continue
		}
		list = append(list, vertex.Influence{Bone: id, Weight: float32(w)})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Weight != list[j].Weight {
			return list[i].Weight > list[j].Weight
		}
		return list[i].Bone < list[j].Bone
	})
	if len(list) > maxWeights {
		list = list[:maxWeights]
	}
	var total float32
	for _, in := range list {
		total += in.Weight
	}
	for i, in := range list {
		bi[i] = int16(in.Bone)
		bw[i] = in.Weight
		if total > 0 {
			bw[i] = in.Weight / total
		}
	}
	return bi, bw
}

// ParseBoneName extracts n from a "Bone_<n>" vertex group name.
func ParseBoneName(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "Bone_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 || n > math.MaxInt16 {
		return 0, false
	}
	return n, true
}

// FromMesh turns a decoded mesh back into geometry with the given bounds,
// using its first UV and color layers. Missing channels get the same
// defaults Build uses.
func FromMesh(m *Mesh, bounds vertex.Bounds) *Geometry {
	n := len(m.Positions)
	g := &Geometry{
		Positions:   append([][3]float32(nil), m.Positions...),
		Normals:     make([][3]float32, n),
		Tangents:    make([][4]float32, n),
		UVs:         make([][2]float32, n),
		Colors:      make([][4]float32, n),
		BoneIndices: make([][4]int16, n),
		BoneWeights: make([][4]float32, n),
		Indices:     append([]uint16(nil), m.Indices...),
		Bounds:      bounds,
	}
	for i := 0; i < n; i++ {
		g.Normals[i] = [3]float32{0, 0, 1}
		if i < len(m.Normals) {
			g.Normals[i] = m.Normals[i]
		}
		g.Tangents[i] = [4]float32{1, 0, 0, 1}
		if i < len(m.Tangents) {
			g.Tangents[i] = m.Tangents[i]
		}
		if len(m.UVs) > 0 && i < len(m.UVs[0]) {
			g.UVs[i] = m.UVs[0][i]
		}
		g.Colors[i] = [4]float32{1, 1, 1, 1}
		if len(m.Colors) > 0 && i < len(m.Colors[0]) {
			g.Colors[i] = m.Colors[0][i]
		}
		g.BoneIndices[i] = [4]int16{-1, -1, -1, -1}
		if i < len(m.Weights) {
			for k, in := range m.Weights[i] {
				if k == maxWeights {
					break
				}
				g.BoneIndices[i][k] = int16(in.Bone)
				g.BoneWeights[i][k] = in.Weight
			}
		}
	}
	return g
}
