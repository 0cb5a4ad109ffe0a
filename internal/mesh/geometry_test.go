package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmesh-tool/internal/vertex"
)

// quad in the host's XY plane; the shared diagonal corners dedup.
func quad() *SourceMesh {
	c := func(x, y float64, u, v float64) Corner {
		return Corner{
			Position: [3]float64{x, y, 0},
			Normal:   [3]float64{0, 0, 1},
			UV:       [2]float64{u, v},
			Groups:   map[string]float64{"Bone_2": 0.75, "Bone_7": 0.25, "Hair": 1},
		}
	}
	return &SourceMesh{
		Name: "quad",
		Corners: []Corner{
			c(0, 0, 0, 0), c(2, 0, 1, 0), c(2, 2, 1, 1),
			c(0, 0, 0, 0), c(2, 2, 1, 1), c(0, 2.00001, 0, 1),
		},
	}
}

func TestBuildDedupsAndCorrects(t *testing.T) {
	g, err := Build(quad())
	require.NoError(t, err)
	require.Equal(t, 4, g.VertexCount())
	assert.Equal(t, []uint16{0, 1, 2, 0, 2, 3}, g.Indices)

	// host (x, y, z) goes back to engine (x, z, -y)
	assert.InDeltaSlice(t, []float32{2, 0, -2}, g.Positions[2][:], 1e-6)
	assert.InDeltaSlice(t, []float32{0, 1, 0}, g.Normals[0][:], 1e-6)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, g.Tangents[0])
	assert.Equal(t, [4]float32{1, 1, 1, 1}, g.Colors[0])

	assert.Equal(t, [4]int16{2, 7, -1, -1}, g.BoneIndices[0])
	assert.InDelta(t, 0.75, g.BoneWeights[0][0], 1e-6)
	assert.InDelta(t, 0.25, g.BoneWeights[0][1], 1e-6)

	assert.InDeltaSlice(t, []float32{1, 0, -1}, g.Bounds.Offset[:], 1e-4)
	assert.InDelta(t, 1.0, g.Bounds.Scale, 1e-4)
}

func TestBuildEmpty(t *testing.T) {
	_, err := Build(&SourceMesh{})
	require.ErrorIs(t, err, ErrEmpty)
}

func TestFitBoundsDegenerate(t *testing.T) {
	g := &Geometry{Positions: [][3]float32{{3, 3, 3}}}
	g.FitBounds()
	assert.Equal(t, vertex.Bounds{Offset: [3]float32{3, 3, 3}, Scale: 1}, g.Bounds)
}

func TestTopWeightsKeepsFour(t *testing.T) {
	bi, bw := topWeights(map[string]float64{
		"Bone_1": 0.1, "Bone_2": 0.2, "Bone_3": 0.3, "Bone_4": 0.4, "Bone_5": 0.5,
	})
	assert.Equal(t, [4]int16{5, 4, 3, 2}, bi)
	var sum float32
	for _, w := range bw {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestParseBoneName(t *testing.T) {
	n, ok := ParseBoneName("Bone_12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	for _, bad := range []string{"bone_1", "Bone_", "Bone_x", "Bone_-3", "Bone_99999"} {
		_, ok := ParseBoneName(bad)
		assert.False(t, ok, bad)
	}
}

func TestGeometryLane(t *testing.T) {
	g := &Geometry{
		Tangents:    [][4]float32{{0, 1, 0, -1}},
		BoneWeights: [][4]float32{{0.4, 0.3, 0.2, 0.1}},
	}
	assert.Equal(t, vertex.Lane{0, 1, 0, 0}, g.Lane(vertex.RoleTangent, 0))
	assert.Equal(t, vertex.Lane{0.3, 0.2, 0.1, 0}, g.Lane(vertex.RoleWeights, 0))
	assert.Equal(t, vertex.Lane{}, g.Lane(vertex.RoleExtra, 0))
}

func TestSourceRoundTrip(t *testing.T) {
	m := &Mesh{
		Hash:      0xAB,
		LOD:       1,
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}},
		Normals:   [][3]float32{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}},
		UVs:       [][][2]float32{{{0, 0}, {1, 0}, {0, 1}}},
		Weights: [][]vertex.Influence{
			{{Bone: 1, Weight: 1}}, {{Bone: 1, Weight: 1}}, {{Bone: 1, Weight: 1}},
		},
		Indices: []uint16{0, 1, 2},
	}
	src := ToSource(m)
	assert.Equal(t, "LOD1_AB", src.Name)
	require.Len(t, src.Corners, 3)
	assert.Equal(t, map[string]float64{"Bone_1": 1}, src.Corners[0].Groups)

	g, err := Build(src)
	require.NoError(t, err)
	require.Equal(t, 3, g.VertexCount())
	for i := range m.Positions {
		assert.InDeltaSlice(t, m.Positions[i][:], g.Positions[i][:], 1e-6)
		assert.InDeltaSlice(t, m.Normals[i][:], g.Normals[i][:], 1e-6)
	}
	assert.Equal(t, [4]int16{1, -1, -1, -1}, g.BoneIndices[0])
}

func TestFromMeshDefaults(t *testing.T) {
	m := &Mesh{Positions: [][3]float32{{1, 2, 3}}, Indices: []uint16{0, 0, 0}}
	b := vertex.Bounds{Scale: 4}
	g := FromMesh(m, b)
	assert.Equal(t, b, g.Bounds)
	assert.Equal(t, [3]float32{0, 0, 1}, g.Normals[0])
	assert.Equal(t, [4]int16{-1, -1, -1, -1}, g.BoneIndices[0])
	assert.Equal(t, [4]float32{1, 1, 1, 1}, g.Colors[0])
}
