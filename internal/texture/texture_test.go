package texture

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmesh-tool/internal/fixture"
	"xmesh-tool/internal/logger"
	"xmesh-tool/internal/xpps"
)

type nameEntry struct {
	name  string
	none  bool // write the 255 sentinel
	hash  uint64
	extra bool
}

func nameDB(entries ...nameEntry) []byte {
	b := make([]byte, 48)
	copy(b, nameDBMagic)
	// table offset zero puts the count at 40
	binary.LittleEndian.PutUint32(b[40:], uint32(len(entries)))
	for _, e := range entries {
		var n [4]byte
		switch {
		case e.none:
			binary.LittleEndian.PutUint32(n[:], noName)
			b = append(b, n[:]...)
		default:
			binary.LittleEndian.PutUint32(n[:], uint32(len(e.name)+1))
			b = append(b, n[:]...)
			b = append(b, e.name...)
			b = append(b, 0)
		}
		b = append(b, make([]byte, entryHashSkip)...)
		var h [8]byte
		binary.LittleEndian.PutUint64(h[:], e.hash)
		b = append(b, h[:]...)
		b = append(b, make([]byte, entryFlagSkip)...)
		if e.extra {
			b = append(b, 1)
			b = append(b, make([]byte, entryExtraBytes)...)
		} else {
			b = append(b, 0)
		}
		b = append(b, make([]byte, entryTailSkip)...)
	}
	return b
}

func TestParseNameDB(t *testing.T) {
	db, err := ParseNameDB(nameDB(
		nameEntry{name: "body_d", hash: 0x10},
		nameEntry{none: true, hash: 0x20},
		nameEntry{name: "body_n", hash: 0x30, extra: true},
		nameEntry{name: "body_m", hash: 0x40},
	))
	require.NoError(t, err)
	assert.Equal(t, 4, db.Len())
	assert.Equal(t, "body_d", db.Name(0x10))
	assert.Equal(t, "", db.Name(0x20))
	assert.Equal(t, "body_n", db.Name(0x30))
	assert.Equal(t, "body_m", db.Name(0x40))
	assert.Equal(t, "Unknown_ABC", db.Name(0xABC))
}

func TestParseNameDBRejectsMagic(t *testing.T) {
	data := nameDB(nameEntry{name: "a", hash: 1})
	copy(data, "SMAN")
	_, err := ParseNameDB(data)
	assert.ErrorIs(t, err, ErrNotNameDB)
}

func TestParseNameDBTruncated(t *testing.T) {
	data := nameDB(nameEntry{name: "a", hash: 1}, nameEntry{name: "b", hash: 2})
	_, err := ParseNameDB(data[:len(data)-10])
	assert.Error(t, err)
}

func TestNilNameDB(t *testing.T) {
	var db *NameDB
	assert.Equal(t, "Unknown_1F", db.Name(0x1F))
	assert.Zero(t, db.Len())
}

func TestNameCacheReloadsOnPathChange(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.texmeshman")
	second := filepath.Join(dir, "b.texmeshman")
	require.NoError(t, os.WriteFile(first, nameDB(nameEntry{name: "one", hash: 1}), 0o644))
	require.NoError(t, os.WriteFile(second, nameDB(nameEntry{name: "two", hash: 1}), 0o644))

	var c NameCache
	db, err := c.Load(first)
	require.NoError(t, err)
	assert.Equal(t, "one", db.Name(1))

	// same path is served from the cache
	require.NoError(t, os.Remove(first))
	again, err := c.Load(first)
	require.NoError(t, err)
	assert.Same(t, db, again)

	other, err := c.Load(second)
	require.NoError(t, err)
	assert.Equal(t, "two", other.Name(1))

	_, err = c.Load(first)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func packRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "chr_gapack_a", "bitmaps", "armor_d"), []byte("a-pack"))
	writeFile(t, filepath.Join(root, "chr_gapack_b", "bitmaps", "armor_d"), []byte("b-pack"))
	writeFile(t, filepath.Join(root, "chr_gapack_b", "bitmaps", "belt_n.sps"), []byte("sps"))
	writeFile(t, filepath.Join(root, "loose", "bitmaps", "cloak_d"), []byte("ignored"))
	return root
}

func TestIndexLocate(t *testing.T) {
	idx, err := BuildIndex(packRoot(t))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	path, pack, ok := idx.Locate("armor_d")
	require.True(t, ok)
	assert.Equal(t, "chr_gapack_a", pack)
	assert.Equal(t, "armor_d", filepath.Base(path))

	// "_b" hint moves the b pack first
	_, pack, ok = idx.Locate("belt_n")
	require.True(t, ok)
	assert.Equal(t, "chr_gapack_b", pack)

	_, _, ok = idx.Locate("cloak_d")
	assert.False(t, ok)
	_, _, ok = idx.Locate("")
	assert.False(t, ok)
}

func TestBuildIndexMissingRoot(t *testing.T) {
	_, err := BuildIndex(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadTextureAndCache(t *testing.T) {
	root := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	path := filepath.Join(root, "x_gapack", "bitmaps", "red.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	got, err := LoadTexture(path)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 200, A: 255}, got.NRGBAAt(1, 1))

	idx, err := BuildIndex(root)
	require.NoError(t, err)
	c := NewCache(idx)
	first := c.Resolve("red.png")
	require.NotNil(t, first)
	assert.Same(t, first, c.Resolve("red.png"))
	assert.Nil(t, c.Resolve("blue.png"))
}

func TestLoadTextureRejectsUnknownPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "armor.sps")
	writeFile(t, path, []byte("not an image"))
	_, err := LoadTexture(path)
	assert.Error(t, err)

	bare := filepath.Join(t.TempDir(), "armor")
	writeFile(t, bare, []byte("not an image"))
	_, err = LoadTexture(bare)
	assert.Error(t, err)
}

func TestLoadTextureTGA(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(2, 1, color.NRGBA{G: 180, B: 40, A: 128})
	path := filepath.Join(t.TempDir(), "belt_d.tga")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tga.Encode(f, img))
	require.NoError(t, f.Close())

	got, err := LoadTexture(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), got.Bounds())
	assert.Equal(t, color.NRGBA{G: 180, B: 40, A: 128}, got.NRGBAAt(2, 1))
}

func TestLoadTextureJPEGNotRoutedToTGA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "skin.JPG")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
	require.NoError(t, f.Close())

	got, err := LoadTexture(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), got.Bounds())
	c := got.NRGBAAt(4, 4)
	assert.InDelta(t, 200, int(c.R), 4)
	assert.Equal(t, uint8(255), c.A)
}

func TestLoadTextureWrongContentForExtension(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	path := filepath.Join(t.TempDir(), "mislabelled.tga")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	_, err = LoadTexture(path)
	assert.Error(t, err)
}

func TestCollectForMod(t *testing.T) {
	root := packRoot(t)
	idx, err := BuildIndex(root)
	require.NoError(t, err)
	db, err := ParseNameDB(nameDB(
		nameEntry{name: "armor_d", hash: 0x100},
		nameEntry{name: "belt_n", hash: 0x200},
		nameEntry{name: "gone_s", hash: 0x300},
	))
	require.NoError(t, err)

	data := fixture.BuildXPPS(fixture.XPPS{
		Meshes: []fixture.Mesh{
			{Hash: 0xA1, Scale: 1, IndexCount: 3, Attrs: []fixture.Attr{{Format: 3252492, Stride: 8, Count: 3}}},
			{Hash: 0xB2, Scale: 1, IndexCount: 3, Attrs: []fixture.Attr{{Format: 3252492, Stride: 8, Count: 3}}},
		},
		Materials: []*fixture.Material{
			{Textures: []uint64{0x100, 0x200, 0x300}},
			nil,
		},
	})
	ct, err := xpps.Parse(data)
	require.NoError(t, err)

	out := t.TempDir()
	col := &Collector{Index: idx, Names: db, Log: logger.Discard()}
	n, err := col.CollectForMod(ct, []uint64{0xA1, 0xB2}, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(out, "chr_gapack_a_A1", "armor_d"))
	assert.FileExists(t, filepath.Join(out, "chr_gapack_b_A1", "belt_n.sps"))

	// a second run finds everything already in place
	n, err = col.CollectForMod(ct, []uint64{0xA1}, out)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCollectForModWithoutIndex(t *testing.T) {
	col := &Collector{}
	n, err := col.CollectForMod(nil, []uint64{1}, t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, n)
}
