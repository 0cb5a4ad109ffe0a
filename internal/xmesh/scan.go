package xmesh

import (
	"fmt"
	"os"

	"xmesh-tool/internal/xpps"
)

// SlotInfo summarizes one mesh slot of a geometry container.
type SlotInfo struct {
	Hash       uint64 `json:"hash"`
	LOD        uint16 `json:"lod"`
	Attributes int    `json:"attributes"`
	// Vertices and Triangles are zero when the metadata has no record.
	Vertices    int  `json:"vertices"`
	Triangles   int  `json:"triangles"`
	IndexCount  int  `json:"index_count"`
	HasMetadata bool `json:"has_metadata"`
}

// Slots joins every header with its metadata record.
func (ct *Container) Slots(md *xpps.Metadata) []SlotInfo {
	out := make([]SlotInfo, 0, len(ct.Headers))
	for _, h := range ct.Headers {
		s := SlotInfo{Hash: h.Hash, LOD: h.LOD, Attributes: len(h.AttrOffsets)}
		if meta, ok := md.Mesh(h.Hash); ok {
			s.HasMetadata = true
			s.Vertices = int(meta.VertexCount)
			s.IndexCount = int(meta.IndexCount)
			s.Triangles = s.IndexCount / 3
		}
		out = append(out, s)
	}
	return out
}

// Files holds a geometry container and its metadata companion.
type Files struct {
	XMeshPath string
	XPPSPath  string
	Geometry  *Container
	Metadata  *xpps.Metadata
}

// Open reads a geometry container and the metadata container next to it.
func Open(xmeshPath string) (*Files, error) {
	data, err := os.ReadFile(xmeshPath)
	if err != nil {
		return nil, fmt.Errorf("xmesh: read %s: %w", xmeshPath, err)
	}
	ct, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("xmesh: %s: %w", xmeshPath, err)
	}
	xppsPath := xpps.ResolvePath(xmeshPath)
	md, err := xpps.Load(xppsPath)
	if err != nil {
		return nil, err
	}
	return &Files{XMeshPath: xmeshPath, XPPSPath: xppsPath, Geometry: ct, Metadata: md}, nil
}

// Scan lists the mesh slots of the geometry container at path.
func Scan(xmeshPath string) ([]SlotInfo, error) {
	f, err := Open(xmeshPath)
	if err != nil {
		return nil, err
	}
	return f.Geometry.Slots(f.Metadata), nil
}
