package xmesh

import (
	"fmt"

	"xmesh-tool/internal/binio"
	"xmesh-tool/internal/mesh"
	"xmesh-tool/internal/vertex"
	"xmesh-tool/internal/xpps"
)

// ReadMesh decodes the mesh hash using its metadata record.
func (ct *Container) ReadMesh(hash uint64, md *xpps.Metadata) (*mesh.Mesh, error) {
	h, ok := ct.Header(hash)
	if !ok {
		return nil, fmt.Errorf("%w: %X in geometry headers", ErrHashNotFound, hash)
	}
	meta, ok := md.Mesh(hash)
	if !ok {
		return nil, fmt.Errorf("%w: %X in metadata", ErrHashNotFound, hash)
	}
	return ct.decode(h, meta)
}

// ReadAll decodes every mesh that has a metadata record, in header order.
// keep filters by header; nil keeps all.
func (ct *Container) ReadAll(md *xpps.Metadata, keep func(Header) bool) ([]*mesh.Mesh, error) {
	var out []*mesh.Mesh
	for _, h := range ct.Headers {
		if keep != nil && !keep(h) {
			continue
		}
		meta, ok := md.Mesh(h.Hash)
		if !ok {
			continue
		}
		m, err := ct.decode(h, meta)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (ct *Container) decode(h Header, meta *xpps.MeshMeta) (*mesh.Mesh, error) {
	m := &mesh.Mesh{Hash: h.Hash, LOD: h.LOD}

	addr := ct.IndexAddress(h)
	if addr < 0 || int64(meta.IndexCount)*2 > int64(len(ct.data))-addr {
		return nil, fmt.Errorf("%w: %d indices of %X at %d exceed buffer", ErrMalformed, meta.IndexCount, h.Hash, addr)
	}
	c := binio.NewCursor(ct.data)
	c.SeekTo(addr)
	m.Indices = make([]uint16, meta.IndexCount)
	for i := 0; i < len(m.Indices) && c.Err() == nil; i++ {
		m.Indices[i] = c.U16()
	}
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: indices of %X: %v", ErrMalformed, h.Hash, err)
	}

	roles := vertex.Roles(meta.Formats())
	var streams []mesh.Stream
	for i, attr := range meta.Attributes {
		base, err := ct.AttributeAddress(h, i)
		if err != nil {
			return nil, err
		}
		lanes, known, err := vertex.DecodeStream(ct.data, base, attr, meta.Bounds())
		if err != nil {
			return nil, fmt.Errorf("%w: mesh %X attribute %d: %v", ErrMalformed, h.Hash, i, err)
		}
		if !known {
			continue
		}
		streams = append(streams, mesh.Stream{Attribute: attr, Role: roles[i], Lanes: lanes})
	}
	if err := mesh.Assemble(m, streams); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}
