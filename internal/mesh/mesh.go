// Package mesh assembles decoded attribute streams into indexed meshes and
// turns editing-host geometry back into engine-space vertex arrays.
package mesh

import (
	"fmt"
	"math"

	"xmesh-tool/internal/vertex"
)

// Stream is one decoded attribute of a mesh.
type Stream struct {
	Attribute vertex.Attribute
	Role      vertex.Role
	Lanes     []vertex.Lane
}

// Extra is a pass-through channel of a partially understood format.
type Extra struct {
	Name string        `json:"name"`
	Data []vertex.Lane `json:"data"`
}

// Mesh is a decoded mesh in engine space.
type Mesh struct {
	Hash uint64 `json:"hash"`
	LOD  uint16 `json:"lod"`

	Positions [][3]float32 `json:"positions"`
	Normals   [][3]float32 `json:"normals,omitempty"`
	// Tangents carry the bitangent sign (+1 or -1) in w.
	Tangents [][4]float32         `json:"tangents,omitempty"`
	UVs      [][][2]float32       `json:"uvs,omitempty"`
	Colors   [][][4]float32       `json:"colors,omitempty"`
	Weights  [][]vertex.Influence `json:"weights,omitempty"`
	Extras   []Extra              `json:"extras,omitempty"`

	// Indices is a triangle list.
	Indices []uint16 `json:"indices"`
}

// VertexCount returns the number of positions.
func (m *Mesh) VertexCount() int { return len(m.Positions) }

// TriangleCount returns the number of complete triangles.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// Assemble merges decoded streams into m. The first position stream wins;
// every UV and color stream becomes a layer. Skin weights are rebuilt when
// both a bone index stream and a weight stream are present.
func Assemble(m *Mesh, streams []Stream) error {
	var ids, weights *Stream
	for i := range streams {
		s := &streams[i]
		switch s.Role {
		case vertex.RolePosition:
			if m.Positions == nil {
				m.Positions = make([][3]float32, len(s.Lanes))
				for k, l := range s.Lanes {
					m.Positions[k] = [3]float32{l[0], l[1], l[2]}
				}
			}
		case vertex.RoleNormal:
			m.Normals = make([][3]float32, len(s.Lanes))
			for k, l := range s.Lanes {
				m.Normals[k] = [3]float32{l[0], l[1], l[2]}
			}
		case vertex.RoleTangent:
			m.Tangents = make([][4]float32, len(s.Lanes))
			for k, l := range s.Lanes {
				sign := float32(-1)
				if l[3] > 0.5 {
					sign = 1
				}
				m.Tangents[k] = [4]float32{l[0], l[1], l[2], sign}
			}
		case vertex.RoleUV:
			layer := make([][2]float32, len(s.Lanes))
			for k, l := range s.Lanes {
				layer[k] = [2]float32{l[0], l[1]}
			}
			m.UVs = append(m.UVs, layer)
		case vertex.RoleColor:
			layer := make([][4]float32, len(s.Lanes))
			for k, l := range s.Lanes {
				layer[k] = [4]float32(l)
			}
			m.Colors = append(m.Colors, layer)
		case vertex.RoleBoneIndex:
			if ids == nil {
				ids = s
			}
		case vertex.RoleWeights:
			if weights == nil {
				weights = s
			}
		case vertex.RoleExtra:
			m.Extras = append(m.Extras, Extra{
				Name: fmt.Sprintf("%s_%d", s.Attribute.Format, uint32(s.Attribute.Format)),
				Data: s.Lanes,
			})
		}
	}

	if m.Positions == nil {
		return fmt.Errorf("mesh: %X has no position attribute", m.Hash)
	}
	for _, idx := range m.Indices {
		if int(idx) >= len(m.Positions) {
			return fmt.Errorf("mesh: %X index %d out of %d vertices", m.Hash, idx, len(m.Positions))
		}
	}

	if ids != nil && weights != nil {
		n := min(len(m.Positions), len(ids.Lanes), len(weights.Lanes))
		m.Weights = make([][]vertex.Influence, len(m.Positions))
		for k := 0; k < n; k++ {
			var bi [4]int16
			var bw [4]uint8
			for j := 0; j < 4; j++ {
				bi[j] = int16(ids.Lanes[k][j])
				bw[j] = uint8(math.Round(float64(weights.Lanes[k][j]) * 255))
			}
			m.Weights[k] = vertex.ReconstructWeights(bi, bw)
		}
	}
	return nil
}
