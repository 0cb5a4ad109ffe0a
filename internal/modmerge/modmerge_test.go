package modmerge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmesh-tool/internal/fixture"
	"xmesh-tool/internal/logger"
	"xmesh-tool/internal/vertex"
	"xmesh-tool/internal/xpps"
)

const (
	hashA uint64 = 0xA0
	hashB uint64 = 0xB0
	hashC uint64 = 0xC0
)

type edit struct {
	scale   float32
	indices uint32
	verts   uint32
}

func container(edits map[uint64]edit) []byte {
	layout := fixture.XPPS{}
	for _, h := range []uint64{hashA, hashB, hashC} {
		e := edit{scale: 1, indices: 6, verts: 8}
		if ov, ok := edits[h]; ok {
			if ov.scale != 0 {
				e.scale = ov.scale
			}
			if ov.indices != 0 {
				e.indices = ov.indices
			}
			if ov.verts != 0 {
				e.verts = ov.verts
			}
		}
		layout.Meshes = append(layout.Meshes, fixture.Mesh{
			Hash:       h,
			Scale:      e.scale,
			IndexCount: e.indices,
			Attrs: []fixture.Attr{
				{Format: uint32(vertex.FormatSnorm16x3), Stride: 8, Count: e.verts},
				{Format: uint32(vertex.FormatHalf2), Stride: 4, Count: e.verts},
			},
		})
	}
	return fixture.BuildXPPS(layout)
}

func decode(t *testing.T, data []byte) *xpps.Metadata {
	t.Helper()
	md, err := xpps.Decode(data)
	require.NoError(t, err)
	return md
}

func TestDiff(t *testing.T) {
	orig := decode(t, container(nil))
	mod := decode(t, container(map[uint64]edit{
		hashA: {scale: 2},
		hashC: {verts: 10},
	}))

	changes := Diff(orig, mod)
	require.Len(t, changes, 2)
	assert.False(t, changes[hashA].VertexCountIncreased)
	assert.Equal(t, float32(2), changes[hashA].Meta.Scale)
	assert.True(t, changes[hashC].VertexCountIncreased)
	assert.NotContains(t, changes, hashB)
}

func state(t *testing.T, name string, data []byte, orig *xpps.Metadata) *ModState {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	s, err := LoadState(path, orig)
	require.NoError(t, err)
	return s
}

func TestClassify(t *testing.T) {
	origData := container(nil)
	orig := decode(t, origData)
	mod1Data := container(map[uint64]edit{hashA: {scale: 2}, hashB: {indices: 3}})
	mod1 := state(t, "mod1.xpps", mod1Data, orig)
	mod2 := state(t, "mod2.xpps", container(map[uint64]edit{hashA: {scale: 3}, hashC: {verts: 10}}), orig)
	// same bytes as mod1 under another name
	copyOf1 := state(t, "copy.xpps", mod1Data, orig)

	cl := Classify([]*ModState{mod1, mod2, copyOf1})
	assert.Equal(t, []uint64{hashA}, cl.ConflictHashes())
	assert.Equal(t, []uint64{hashB, hashC}, cl.CleanHashes())
	assert.ElementsMatch(t, []*ModState{mod1, mod2}, cl.Conflicts[hashA])
	assert.Same(t, mod1, cl.Clean[hashB])
	assert.Same(t, mod2, cl.Clean[hashC])
	assert.True(t, mod2.Changes[hashC].VertexCountIncreased)

	res, unresolved := cl.Resolution(nil)
	assert.Equal(t, []uint64{hashA}, unresolved)
	assert.Equal(t, map[uint64]string{hashB: mod1.Path, hashC: mod2.Path}, res)

	res, unresolved = cl.Resolution(map[uint64]string{hashA: mod2.Path})
	assert.Empty(t, unresolved)
	assert.Equal(t, mod2.Path, res[hashA])
}

func TestClassifySingleEditorIsClean(t *testing.T) {
	orig := decode(t, container(nil))
	mod1 := state(t, "mod1.xpps", container(map[uint64]edit{hashA: {scale: 2}}), orig)
	mod2 := state(t, "mod2.xpps", container(map[uint64]edit{hashB: {scale: 2}}), orig)

	cl := Classify([]*ModState{mod1, mod2})
	assert.Empty(t, cl.Conflicts)
	assert.Same(t, mod1, cl.Clean[hashA])
	assert.Same(t, mod2, cl.Clean[hashB])
}

func TestScanConflictsOriginalMissing(t *testing.T) {
	_, err := ScanConflicts(filepath.Join(t.TempDir(), "hero.xpps"), nil)
	assert.ErrorIs(t, err, ErrOriginalMissing)
}

func TestLoadStateMissingMod(t *testing.T) {
	_, err := LoadState(filepath.Join(t.TempDir(), "gone.xpps"), decode(t, container(nil)))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func write(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestMerge(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "orig", "body.xmesh"), []byte("orig geometry"))
	write(t, filepath.Join(root, "orig", "body.xpps"), container(nil))

	mod1 := filepath.Join(root, "mod1", xpps.FallbackName)
	write(t, mod1, container(map[uint64]edit{hashA: {scale: 2}, hashB: {indices: 3}}))
	write(t, filepath.Join(root, "mod1", "body.xmesh"), []byte("mod1 geometry"))
	write(t, filepath.Join(root, "mod1", "chr_gapack_a", "bitmaps", "armor_d"), []byte("tex"))

	mod2 := filepath.Join(root, "mod2", xpps.FallbackName)
	write(t, mod2, container(map[uint64]edit{hashA: {scale: 3}, hashC: {verts: 10}}))
	write(t, filepath.Join(root, "mod2", "body.xmesh"), []byte("mod2 geometry"))
	write(t, filepath.Join(root, "mod2", "cape.xmesh"), []byte("cape geometry"))

	rep, err := ScanConflicts(filepath.Join(root, "orig", "body.xpps"), []string{mod1, mod2})
	require.NoError(t, err)
	resolution, unresolved := rep.Resolution(map[uint64]string{hashA: mod2})
	require.Empty(t, unresolved)
	resolution[0x999] = mod1

	out := filepath.Join(root, "out")
	res, err := Merge(context.Background(), filepath.Join(root, "orig", "body.xmesh"), Options{
		OutputRoot: out,
		Mods:       []string{mod1, mod2},
		Resolution: resolution,
		Log:        logger.Discard(),
		newID:      func() string { return "test" },
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "MERGED_MOD_test"), res.Dir)
	assert.Equal(t, "Success! Merged Mod created in: "+res.Dir, res.Status)
	assert.Equal(t, []string{"body.xmesh", "cape.xmesh"}, res.XMeshes)
	assert.Equal(t, []string{"chr_gapack_a"}, res.TexturePacks)
	assert.Equal(t, []uint64{hashA, hashB, hashC}, res.Applied)
	assert.Equal(t, []uint64{0x999}, res.Missing)

	body, err := os.ReadFile(filepath.Join(res.Dir, "body.xmesh"))
	require.NoError(t, err)
	assert.Equal(t, "mod1 geometry", string(body))
	assert.FileExists(t, filepath.Join(res.Dir, "chr_gapack_a", "bitmaps", "armor_d"))

	merged, err := xpps.Load(res.XPPSPath)
	require.NoError(t, err)
	a, _ := merged.Mesh(hashA)
	assert.Equal(t, float32(3), a.Scale)
	b, _ := merged.Mesh(hashB)
	assert.Equal(t, uint32(3), b.IndexCount)
	c, _ := merged.Mesh(hashC)
	assert.Equal(t, uint32(10), c.VertexCount)
	for _, attr := range c.Attributes {
		assert.Equal(t, uint32(10), attr.Count)
	}

	// the original is untouched
	orig, err := xpps.Load(filepath.Join(root, "orig", "body.xpps"))
	require.NoError(t, err)
	oa, _ := orig.Mesh(hashA)
	assert.Equal(t, float32(1), oa.Scale)
}

func TestMergeOriginalMissing(t *testing.T) {
	root := t.TempDir()
	res, err := Merge(context.Background(), filepath.Join(root, "body.xmesh"), Options{OutputRoot: root})
	require.ErrorIs(t, err, ErrOriginalMissing)
	assert.Contains(t, res.Status, "Error")
}
