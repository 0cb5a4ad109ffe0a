// Package fixture synthesizes metadata and geometry containers in memory
// for tests. Layouts match what the readers in xpps, skeleton and xmesh walk.
package fixture

import (
	"encoding/binary"
	"math"
)

// Signature hashes of mesh asset dictionary entries.
const (
	SignatureA uint64 = 8120115085854712779
	SignatureB uint64 = 8121310221017043393
)

const (
	headerSize   = 256
	packageStart = 64
)

// Attr is one attribute descriptor.
type Attr struct {
	Format uint32
	Stride uint32
	Count  uint32
}

// Mesh is one mesh record of the metadata container.
type Mesh struct {
	Hash       uint64
	Offset     [3]float32
	Scale      float32
	IndexCount uint32
	Attrs      []Attr
}

// Bone is one skeleton bone. Parent -1 is a root.
type Bone struct {
	Rot, Pos, Scl [4]float32
	Parent        int
}

// Material lists the texture hashes of one mesh index. A nil Material in
// XPPS.Materials writes a null material pointer.
type Material struct {
	Textures []uint64
}

// XPPS describes a metadata container.
type XPPS struct {
	Meshes    []Mesh
	Bones     []Bone
	Materials []*Material

	// EntryHash overrides the dictionary entry hash; zero uses SignatureA.
	EntryHash uint64
	// BadSkeletonSignature writes a wrong skeleton signature.
	BadSkeletonSignature bool
	// UnknownChunk puts an unrecognized sub-chunk ahead of the dictionary.
	UnknownChunk bool
}

type arena struct {
	b []byte
}

func (a *arena) alloc(n int) int {
	n = (n + 15) &^ 15
	off := len(a.b)
	a.b = append(a.b, make([]byte, n)...)
	return off
}

func (a *arena) u16(at int, v uint16) { binary.LittleEndian.PutUint16(a.b[at:], v) }
func (a *arena) u32(at int, v uint32) { binary.LittleEndian.PutUint32(a.b[at:], v) }
func (a *arena) u64(at int, v uint64) { binary.LittleEndian.PutUint64(a.b[at:], v) }
func (a *arena) f32(at int, v float32) {
	binary.LittleEndian.PutUint32(a.b[at:], math.Float32bits(v))
}

// MeshPointers records where BuildXPPS placed each mesh record, relative to
// the data region start.
type MeshPointers []uint64

// BuildXPPS lays out a metadata container.
func BuildXPPS(layout XPPS) []byte {
	data, _ := BuildXPPSWithPointers(layout)
	return data
}

// BuildXPPSWithPointers is BuildXPPS that also reports mesh record offsets.
func BuildXPPSWithPointers(layout XPPS) ([]byte, MeshPointers) {
	a := &arena{}
	a.alloc(16) // keep offset 0 unused so zero pointers stay null

	asset := a.alloc(512)

	ptrs := make(MeshPointers, len(layout.Meshes))
	var ptrArray int
	if len(layout.Meshes) > 0 {
		ptrArray = a.alloc(8 * len(layout.Meshes))
	}
	for i, m := range layout.Meshes {
		rec := a.alloc(160)
		attrs := a.alloc(24 * max(1, len(m.Attrs)))
		for k := 0; k < 3; k++ {
			a.f32(rec+56+k*4, m.Offset[k])
		}
		a.f32(rec+68, m.Scale)
		a.u64(rec+80, m.Hash)
		a.u64(rec+96, uint64(attrs))
		a.u64(rec+112, uint64(len(m.Attrs)))
		a.u32(rec+152, m.IndexCount)
		for j, at := range m.Attrs {
			d := attrs + j*24
			a.u64(d, 0x5A5A5A5A5A5A5A5A)
			a.u32(d+8, at.Format)
			a.u32(d+12, at.Stride)
			a.u32(d+16, at.Count)
		}
		a.u64(ptrArray+i*8, uint64(rec))
		ptrs[i] = uint64(rec)
	}

	top := asset + 64
	a.u64(top+128, uint64(ptrArray))
	a.u64(top+136, uint64(len(layout.Meshes)))

	if len(layout.Materials) > 0 {
		group := a.alloc(64)
		matPtrs := a.alloc(8 * len(layout.Materials))
		a.u64(group+40, uint64(matPtrs))
		a.u64(group+48, uint64(len(layout.Materials)))
		for i, mat := range layout.Materials {
			if mat == nil {
				continue
			}
			m := a.alloc(64)
			if len(mat.Textures) > 0 {
				tex := a.alloc(32 * len(mat.Textures))
				for j, h := range mat.Textures {
					a.u64(tex+j*32, h)
				}
				a.u64(m+48, uint64(tex))
				a.u64(m+56, uint64(len(mat.Textures)))
			}
			a.u64(matPtrs+i*8, uint64(m))
		}
		a.u64(top+296, uint64(group))
	}

	if len(layout.Bones) > 0 {
		writeSkeleton(a, top, layout)
	}

	entryHash := layout.EntryHash
	if entryHash == 0 {
		entryHash = SignatureA
	}

	// chunk list: optional unknown chunk, then the dictionary
	chunkLen := 8 + 8 + 16
	if layout.UnknownChunk {
		chunkLen += 8 + 12
	}
	chunks := a.alloc(chunkLen)
	pos := chunks
	if layout.UnknownChunk {
		copy(a.b[pos:], "JUNK")
		a.u32(pos+4, 12)
		pos += 8 + 12
	}
	copy(a.b[pos:], " DIC")
	a.u32(pos+4, 8+16)
	a.u32(pos+8, 1)
	a.u64(pos+16, uint64(asset+16))
	a.u64(pos+24, entryHash)

	file := make([]byte, headerSize+len(a.b))
	copy(file[headerSize:], a.b)
	binary.LittleEndian.PutUint32(file[24:], packageStart)
	binary.LittleEndian.PutUint32(file[40:], headerSize)

	// two table rows: a non-chunk-list row first, then the chunk list
	binary.LittleEndian.PutUint32(file[packageStart+8:], 2)
	row := packageStart + 48
	binary.LittleEndian.PutUint32(file[row:], 1)
	binary.LittleEndian.PutUint32(file[row+4:], 16)
	binary.LittleEndian.PutUint32(file[row+8:], 0)
	row += 40
	binary.LittleEndian.PutUint32(file[row:], 2)
	binary.LittleEndian.PutUint32(file[row+4:], uint32(chunkLen))
	binary.LittleEndian.PutUint32(file[row+8:], uint32(chunks))

	return file, ptrs
}

func writeSkeleton(a *arena, top int, layout XPPS) {
	n := len(layout.Bones)
	info := a.alloc(48)
	skel := a.alloc(32)
	bones := a.alloc(48 * n)
	parents := a.alloc(4 * n)
	tail := a.alloc(16)

	a.u64(info+16, uint64(skel))
	a.u64(info+32, uint64(parents))
	a.u64(info+40, uint64(parents+4*n))
	_ = tail

	if layout.BadSkeletonSignature {
		copy(a.b[skel:], "XXXX")
	} else {
		copy(a.b[skel:], "60SE")
	}
	a.u16(skel+16, uint16(n))
	// relative to the field's own position, in absolute file terms the
	// header size cancels out
	a.u32(skel+24, uint32(int32(bones-(skel+24))))

	for i, b := range layout.Bones {
		at := bones + i*48
		for k := 0; k < 4; k++ {
			a.f32(at+k*4, b.Rot[k])
			a.f32(at+16+k*4, b.Pos[k])
			a.f32(at+32+k*4, b.Scl[k])
		}
		flag := uint16(0x7FFF)
		if b.Parent >= 0 {
			flag = uint16(b.Parent) & 0x7FFF
		}
		a.u16(parents+i*4, uint16(i))
		a.u16(parents+i*4+2, flag)
	}

	a.u64(top+336, uint64(info))
}
