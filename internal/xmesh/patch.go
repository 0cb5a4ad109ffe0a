package xmesh

import (
	"fmt"

	"xmesh-tool/internal/binio"
	"xmesh-tool/internal/bitset"
	"xmesh-tool/internal/mesh"
	"xmesh-tool/internal/vertex"
	"xmesh-tool/internal/xpps"
)

// TailPattern fills the first attribute's unused compressed-position slots
// after a patch with fewer vertices than the slot holds.
var TailPattern = [8]byte{0x74, 0xFC, 0x0F, 0xFF, 0x01, 0x80, 0x00, 0x00}

const (
	indexSize          = 2
	compressedPosition = 8
)

// PatchStats describes one buffer patch.
type PatchStats struct {
	Vertices int `json:"vertices"`
	Indices  int `json:"indices"`
	// Skipped counts attribute writes dropped because their bytes were
	// already written for the same vertex.
	Skipped int `json:"skipped"`
	// TailVertices counts unused slots filled with TailPattern.
	TailVertices int `json:"tail_vertices"`
}

// CheckCapacity reports ErrCapacityExceeded when g does not fit the slot
// described by meta.
func CheckCapacity(meta *xpps.MeshMeta, g *mesh.Geometry) error {
	if have, limit := len(g.Indices)*indexSize, int(meta.IndexCount)*indexSize; have > limit {
		return fmt.Errorf("%w: index buffer of %X needs %d bytes, slot holds %d", ErrCapacityExceeded, meta.Hash, have, limit)
	}
	if have, limit := g.VertexCount(), int(meta.VertexCount); have > limit {
		return fmt.Errorf("%w: %X has %d vertices, slot holds %d", ErrCapacityExceeded, meta.Hash, have, limit)
	}
	return nil
}

func checkGeometry(g *mesh.Geometry) error {
	n := g.VertexCount()
	if len(g.Normals) != n || len(g.Tangents) != n || len(g.UVs) != n || len(g.Colors) != n ||
		len(g.BoneIndices) != n || len(g.BoneWeights) != n {
		return fmt.Errorf("xmesh: geometry channels disagree on %d vertices", n)
	}
	for _, idx := range g.Indices {
		if int(idx) >= n {
			return fmt.Errorf("xmesh: geometry index %d out of %d vertices", idx, n)
		}
	}
	return nil
}

// writeRoles picks what each attribute receives. Every packed attribute
// after the first is written as a tangent.
func writeRoles(formats []vertex.Format) []vertex.Role {
	roles := vertex.Roles(formats)
	for i, f := range formats {
		if f == vertex.FormatPacked10 && roles[i] == vertex.RoleUnknown {
			roles[i] = vertex.RoleTangent
		}
	}
	return roles
}

type attrPlan struct {
	base   int64
	stride int64
	role   vertex.Role
	codec  vertex.Codec
	write  bool
}

// PatchBuffer writes g over the slot hash in the container's buffer. Every
// capacity and bounds check runs before the first byte changes. The
// returned cursor's dirty range is what must reach the file.
func (ct *Container) PatchBuffer(meta *xpps.MeshMeta, g *mesh.Geometry) (*binio.Cursor, PatchStats, error) {
	var st PatchStats
	h, ok := ct.Header(meta.Hash)
	if !ok {
		return nil, st, fmt.Errorf("%w: %X in geometry headers", ErrHashNotFound, meta.Hash)
	}
	if err := checkGeometry(g); err != nil {
		return nil, st, err
	}
	if err := CheckCapacity(meta, g); err != nil {
		return nil, st, err
	}

	n := g.VertexCount()
	size := int64(len(ct.data))
	idxAddr := ct.IndexAddress(h)
	if idxAddr+int64(meta.IndexCount)*indexSize > size {
		return nil, st, fmt.Errorf("%w: index buffer of %X runs past the file", ErrMalformed, meta.Hash)
	}

	roles := writeRoles(meta.Formats())
	plans := make([]attrPlan, len(meta.Attributes))
	lo, hi := size, int64(0)
	for i, attr := range meta.Attributes {
		base, err := ct.AttributeAddress(h, i)
		if err != nil {
			return nil, st, err
		}
		p := attrPlan{base: base, stride: int64(attr.Stride), role: roles[i]}
		if i == 0 {
			p.role = vertex.RolePosition
			p.codec, _ = vertex.Lookup(vertex.FormatFloat3)
			if attr.Stride == compressedPosition {
				p.codec, _ = vertex.Lookup(vertex.FormatSnorm16x3)
			}
			p.write = true
		} else if c, ok := vertex.Lookup(attr.Format); ok && c.Encode != nil && attr.Format != vertex.FormatSnorm16x3 {
			p.codec = c
			p.write = true
		}
		if p.stride == 0 {
			p.write = false
		}
		if p.write && n > 0 {
			end := base + int64(n)*p.stride
			if base < 0 || end > size {
				return nil, st, fmt.Errorf("%w: attribute %d of %X runs past the file", ErrMalformed, i, meta.Hash)
			}
			lo, hi = min(lo, base), max(hi, end)
		}
		plans[i] = p
	}

	tail := int(meta.VertexCount) - n
	if tail > 0 && len(plans) > 0 && plans[0].stride == compressedPosition {
		end := plans[0].base + int64(meta.VertexCount)*compressedPosition
		if end > size {
			return nil, st, fmt.Errorf("%w: position tail of %X runs past the file", ErrMalformed, meta.Hash)
		}
	} else {
		tail = 0
	}

	// validated; from here on writes cannot fail
	c := binio.NewCursor(ct.data)
	c.SeekTo(idxAddr)
	for _, idx := range g.Indices {
		c.PutU16(idx)
	}
	c.Fill((int(meta.IndexCount) - len(g.Indices)) * indexSize)

	// overlap is tracked per vertex
	written := bitset.New(lo, hi-lo)
	marked := make([]int64, 0, len(plans))
	scratch := make([]byte, 16)
	for v := 0; v < n; v++ {
		marked = marked[:0]
		for i := range plans {
			p := &plans[i]
			if !p.write {
				continue
			}
			addr := p.base + int64(v)*p.stride
			if written.AnySet(addr, addr+p.stride) {
				st.Skipped++
				continue
			}
			clear(scratch)
			p.codec.Encode(scratch[:p.codec.EncodeSize], g.Lane(p.role, v), g.Bounds)
			c.SeekTo(addr)
			if p.stride <= int64(len(scratch)) {
				c.Write(scratch[:p.stride])
			} else {
				c.Write(scratch)
				c.Fill(int(p.stride) - len(scratch))
			}
			written.SetRange(addr, addr+p.stride)
			marked = append(marked, addr, addr+p.stride)
		}
		for k := 0; k < len(marked); k += 2 {
			written.ClearRange(marked[k], marked[k+1])
		}
	}

	if tail > 0 {
		c.SeekTo(plans[0].base + int64(n)*compressedPosition)
		for k := 0; k < tail; k++ {
			c.Write(TailPattern[:])
		}
	}
	if err := c.Err(); err != nil {
		return nil, st, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	st.Vertices = n
	st.Indices = len(g.Indices)
	st.TailVertices = tail
	return c, st, nil
}
