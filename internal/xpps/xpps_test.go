package xpps

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmesh-tool/internal/fixture"
	"xmesh-tool/internal/vertex"
)

func twoMeshes() fixture.XPPS {
	return fixture.XPPS{
		Meshes: []fixture.Mesh{
			{
				Hash:       0xABC123,
				Offset:     [3]float32{1, 2, 3},
				Scale:      4,
				IndexCount: 36,
				Attrs: []fixture.Attr{
					{Format: uint32(vertex.FormatSnorm16x3), Stride: 8, Count: 8},
					{Format: uint32(vertex.FormatPacked10), Stride: 4, Count: 8},
					{Format: uint32(vertex.FormatHalf2), Stride: 4, Count: 8},
				},
			},
			{
				Hash:       0xDEF456,
				Scale:      1,
				IndexCount: 3,
				Attrs: []fixture.Attr{
					{Format: uint32(vertex.FormatFloat3), Stride: 16, Count: 3},
				},
			},
		},
	}
}

func TestDecodeMeshRecords(t *testing.T) {
	md, err := Decode(fixture.BuildXPPS(twoMeshes()))
	require.NoError(t, err)
	require.Equal(t, 2, md.Len())
	assert.Equal(t, []uint64{0xABC123, 0xDEF456}, md.Order)

	m, ok := md.Mesh(0xABC123)
	require.True(t, ok)
	assert.Equal(t, [3]float32{1, 2, 3}, m.Offset)
	assert.Equal(t, float32(4), m.Scale)
	assert.Equal(t, uint32(36), m.IndexCount)
	assert.Equal(t, uint32(8), m.VertexCount)
	assert.Equal(t, []vertex.Format{vertex.FormatSnorm16x3, vertex.FormatPacked10, vertex.FormatHalf2}, m.Formats())
	assert.Equal(t, vertex.Bounds{Offset: [3]float32{1, 2, 3}, Scale: 4}, m.Bounds())
	assert.Zero(t, md.SkeletonInfo)
}

func TestDecodeSkipsUnknownChunk(t *testing.T) {
	layout := twoMeshes()
	layout.UnknownChunk = true
	md, err := Decode(fixture.BuildXPPS(layout))
	require.NoError(t, err)
	assert.Equal(t, 2, md.Len())
}

func TestDecodeWithoutSignatureEntries(t *testing.T) {
	layout := twoMeshes()
	layout.EntryHash = 42
	layout.Bones = []fixture.Bone{{Parent: -1, Rot: [4]float32{0, 0, 0, 1}, Scl: [4]float32{1, 1, 1, 0}}}
	md, err := Decode(fixture.BuildXPPS(layout))
	require.NoError(t, err)
	assert.Zero(t, md.Len())
	assert.Zero(t, md.SkeletonInfo)
}

func TestDecodeBothSignatures(t *testing.T) {
	layout := twoMeshes()
	layout.EntryHash = fixture.SignatureB
	md, err := Decode(fixture.BuildXPPS(layout))
	require.NoError(t, err)
	assert.Equal(t, 2, md.Len())
}

func TestDecodeReportsSkeletonInfo(t *testing.T) {
	layout := twoMeshes()
	layout.Bones = []fixture.Bone{{Parent: -1, Rot: [4]float32{0, 0, 0, 1}, Scl: [4]float32{1, 1, 1, 0}}}
	md, err := Decode(fixture.BuildXPPS(layout))
	require.NoError(t, err)
	assert.NotZero(t, md.SkeletonInfo)
}

func TestDecodeShortInputIsEmpty(t *testing.T) {
	md, err := Decode(make([]byte, 10))
	require.NoError(t, err)
	assert.Zero(t, md.Len())
}

func TestDecodeTruncatedIsMalformed(t *testing.T) {
	data := fixture.BuildXPPS(twoMeshes())
	// keep the header, lose the chunk list
	_, err := Decode(data[:300])
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeOversizedDictionaryCount(t *testing.T) {
	data := fixture.BuildXPPS(twoMeshes())
	dic := bytes.Index(data, []byte(" DIC"))
	require.Positive(t, dic)
	binary.LittleEndian.PutUint32(data[dic+8:], 0xFFFFFFFF)

	_, err := Decode(data)
	require.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "exceed container")
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	md, err := Load(filepath.Join(t.TempDir(), "absent.xpps"))
	require.NoError(t, err)
	assert.Zero(t, md.Len())
}

func TestHashesAreUnique(t *testing.T) {
	layout := fixture.XPPS{}
	for i := 0; i < 20; i++ {
		layout.Meshes = append(layout.Meshes, fixture.Mesh{
			Hash:  uint64(1000 + i),
			Scale: 1,
			Attrs: []fixture.Attr{{Format: uint32(vertex.FormatSnorm16x3), Stride: 8, Count: uint32(i + 1)}},
		})
	}
	md, err := Decode(fixture.BuildXPPS(layout))
	require.NoError(t, err)
	require.Len(t, md.Order, 20)
	seen := map[uint64]bool{}
	for _, h := range md.Order {
		assert.False(t, seen[h])
		seen[h] = true
		assert.Equal(t, h, md.Meshes[h].Hash)
	}
}

func TestMeshAddress(t *testing.T) {
	data, ptrs := fixture.BuildXPPSWithPointers(twoMeshes())
	ct, err := Parse(data)
	require.NoError(t, err)

	addr, err := ct.MeshAddress(0xDEF456)
	require.NoError(t, err)
	assert.Equal(t, ct.Abs(ptrs[1]), addr)

	_, err = ct.MeshAddress(0x999)
	require.ErrorIs(t, err, ErrHashNotFound)
}

func TestPatchMesh(t *testing.T) {
	data := fixture.BuildXPPS(twoMeshes())
	before := append([]byte(nil), data...)

	p := MeshPatch{Offset: [3]float32{-1, 0, 1}, Scale: 2.5, IndexCount: 12, VertexCount: 5}
	c, err := PatchMesh(data, 0xABC123, p)
	require.NoError(t, err)
	_, _, dirty := c.Dirty()
	assert.True(t, dirty)

	md, err := Decode(data)
	require.NoError(t, err)
	m, _ := md.Mesh(0xABC123)
	assert.Equal(t, p, PatchFromMeta(m))
	for _, a := range m.Attributes {
		assert.Equal(t, uint32(5), a.Count)
	}

	// the other record is untouched
	other, _ := md.Mesh(0xDEF456)
	orig, err := Decode(before)
	require.NoError(t, err)
	assert.Equal(t, orig.Meshes[0xDEF456], other)
}

func TestPatchMeshUnknownHashLeavesData(t *testing.T) {
	data := fixture.BuildXPPS(twoMeshes())
	before := append([]byte(nil), data...)
	_, err := PatchMesh(data, 0x1, MeshPatch{Scale: 1})
	require.ErrorIs(t, err, ErrHashNotFound)
	assert.Equal(t, before, data)
}

func TestPatchFileAt(t *testing.T) {
	data, ptrs := fixture.BuildXPPSWithPointers(twoMeshes())
	path := filepath.Join(t.TempDir(), "hero.xpps")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p := MeshPatch{Scale: 9, IndexCount: 3, VertexCount: 3}
	require.NoError(t, PatchFileAt(path, ptrs[1], p))

	md, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p, PatchFromMeta(md.Meshes[0xDEF456]))
	assert.Equal(t, float32(4), md.Meshes[0xABC123].Scale)
}

type names map[uint64]string

func (n names) Name(h uint64) string {
	if s, ok := n[h]; ok {
		return s
	}
	return fmt.Sprintf("Unknown_%X", h)
}

func TestFindTextures(t *testing.T) {
	layout := twoMeshes()
	layout.Meshes = append(layout.Meshes, fixture.Mesh{Hash: 0x777, Scale: 1})
	layout.Materials = []*fixture.Material{
		{Textures: []uint64{0x10, 0x20}},
		nil,
		{},
	}
	ct, err := Parse(fixture.BuildXPPS(layout))
	require.NoError(t, err)
	db := names{0x10: "albedo_tex"}

	got, err := ct.FindTextures(0xABC123, db)
	require.NoError(t, err)
	assert.Equal(t, 0, got.MeshIndex)
	assert.Empty(t, got.Status)
	assert.Equal(t, []Texture{{Hash: 0x10, Name: "albedo_tex"}, {Hash: 0x20, Name: "Unknown_20"}}, got.Textures)

	got, err = ct.FindTextures(0xDEF456, db)
	require.NoError(t, err)
	assert.Equal(t, StatusNullMaterial, got.Status)

	got, err = ct.FindTextures(0x777, db)
	require.NoError(t, err)
	assert.Equal(t, StatusNoTextures, got.Status)

	got, err = ct.FindTextures(0x4242, db)
	require.NoError(t, err)
	assert.Equal(t, StatusNoMaterial, got.Status)
}

func TestFindTexturesWithoutModelGroup(t *testing.T) {
	ct, err := Parse(fixture.BuildXPPS(twoMeshes()))
	require.NoError(t, err)
	got, err := ct.FindTextures(0xABC123, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusLinkageMissing, got.Status)
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	geo := filepath.Join(dir, "char.xmesh")
	assert.Equal(t, filepath.Join(dir, FallbackName), ResolvePath(geo))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "char.xpps"), nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "char.xpps"), ResolvePath(geo))
}
