package fixture

import (
	"encoding/binary"
)

// Alias makes an attribute share bytes with another: its offset is the
// other attribute's offset plus Delta.
type Alias struct {
	Of    int
	Delta uint32
}

// XMeshMesh is one mesh of a geometry container.
type XMeshMesh struct {
	Hash    uint64
	LOD     uint16
	Indices []byte
	// Streams holds one raw byte stream per attribute. Entries named in
	// Aliases are ignored.
	Streams [][]byte
	Aliases map[int]Alias
}

// BufferStart is where BuildXMesh places the raw data region.
const BufferStart = 512

// BuildXMesh lays out a geometry container.
func BuildXMesh(meshes []XMeshMesh) []byte {
	header := make([]byte, BufferStart)
	copy(header, "SMBS")
	binary.LittleEndian.PutUint64(header[24:], BufferStart)
	binary.LittleEndian.PutUint32(header[40:], uint32(len(meshes)))

	var buf []byte
	place := func(b []byte) uint32 {
		off := uint32(len(buf))
		buf = append(buf, b...)
		if pad := (16 - len(buf)%16) % 16; pad > 0 {
			buf = append(buf, make([]byte, pad)...)
		}
		return off
	}

	pos := 44
	for _, m := range meshes {
		idxOff := place(m.Indices)
		offsets := make([]uint32, len(m.Streams))
		for i, s := range m.Streams {
			if _, ok := m.Aliases[i]; ok {
				continue
			}
			offsets[i] = place(s)
		}
		for i, al := range m.Aliases {
			offsets[i] = offsets[al.Of] + al.Delta
		}

		binary.LittleEndian.PutUint64(header[pos:], m.Hash)
		binary.LittleEndian.PutUint32(header[pos+8:], idxOff)
		binary.LittleEndian.PutUint16(header[pos+12:], m.LOD)
		header[pos+14] = uint8(len(offsets))
		for i, o := range offsets {
			binary.LittleEndian.PutUint32(header[pos+15+4*i:], o)
		}
		pos += 15 + 4*len(offsets)
	}
	// trailing slack so aliased lanes never read past the end
	buf = append(buf, make([]byte, 64)...)

	return append(header, buf...)
}

// Indices encodes a triangle index list.
func Indices(idx ...uint16) []byte {
	b := make([]byte, 2*len(idx))
	for i, v := range idx {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return b
}
