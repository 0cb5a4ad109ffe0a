package xpps

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"xmesh-tool/internal/binio"
	"xmesh-tool/internal/vertex"
)

// mesh record fields, relative to the record address
const (
	recBoundsField      = 56
	recHashField        = 80
	recAttrArrayField   = 96
	recAttrCountField   = 112
	recIndexCountField  = 152
	attrDescriptorSize  = 24
	attrCountFieldDelta = 16
)

// MeshMeta is the metadata record of one mesh.
type MeshMeta struct {
	Hash uint64 `json:"hash"`
	// Pointer is the record address relative to the data region start.
	Pointer uint64 `json:"pointer"`

	Offset [3]float32 `json:"offset"`
	Scale  float32    `json:"scale"`

	// IndexCount counts indices, not triangles.
	IndexCount uint32 `json:"index_count"`
	// VertexCount is the first attribute's element count.
	VertexCount uint32 `json:"vertex_count"`

	AttributesPointer uint64             `json:"attributes_pointer"`
	Attributes        []vertex.Attribute `json:"attributes"`
}

// Bounds returns the position dequantization box.
func (m *MeshMeta) Bounds() vertex.Bounds {
	return vertex.Bounds{Offset: m.Offset, Scale: m.Scale}
}

// Formats lists the attribute formats in descriptor order.
func (m *MeshMeta) Formats() []vertex.Format {
	out := make([]vertex.Format, len(m.Attributes))
	for i, a := range m.Attributes {
		out[i] = a.Format
	}
	return out
}

// Metadata is everything decoded from one metadata container.
type Metadata struct {
	// Meshes maps content hash to record. Hashes are unique per container;
	// a repeated hash keeps the last record read.
	Meshes map[uint64]*MeshMeta
	// Order lists hashes in the order records were first read.
	Order []uint64

	DataStart int64
	// SkeletonInfo is the absolute address of the first skeleton info block,
	// zero when no asset block carries one.
	SkeletonInfo int64
}

// Len returns the number of mesh records.
func (md *Metadata) Len() int { return len(md.Meshes) }

// Mesh returns the record for hash.
func (md *Metadata) Mesh(hash uint64) (*MeshMeta, bool) {
	m, ok := md.Meshes[hash]
	return m, ok
}

func emptyMetadata() *Metadata {
	return &Metadata{Meshes: make(map[uint64]*MeshMeta)}
}

// Load reads and decodes a metadata container. A missing or empty file is
// not an error: it yields empty metadata.
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return emptyMetadata(), nil
		}
		return nil, fmt.Errorf("xpps: read %s: %w", path, err)
	}
	md, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("xpps: decode %s: %w", path, err)
	}
	return md, nil
}

// Decode walks every mesh asset block of data and collects its mesh records.
// Files shorter than the package header decode to empty metadata.
func Decode(data []byte) (*Metadata, error) {
	if len(data) < minContainerSize {
		return emptyMetadata(), nil
	}
	ct, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return ct.Metadata()
}

// Metadata decodes the mesh records of every asset block.
func (ct *Container) Metadata() (*Metadata, error) {
	blocks, err := ct.AssetBlocks()
	if err != nil {
		return nil, err
	}

	md := emptyMetadata()
	md.DataStart = ct.DataStart
	for _, block := range blocks {
		hdr, err := ct.readAssetHeader(block)
		if err != nil {
			return nil, err
		}
		if hdr.skeletonInfo != 0 && md.SkeletonInfo == 0 {
			md.SkeletonInfo = ct.Abs(hdr.skeletonInfo)
		}
		ptrs, err := ct.meshPointers(hdr)
		if err != nil {
			return nil, err
		}
		for _, ptr := range ptrs {
			m, err := ct.readMeshRecord(ptr)
			if err != nil {
				return nil, err
			}
			if _, seen := md.Meshes[m.Hash]; !seen {
				md.Order = append(md.Order, m.Hash)
			}
			md.Meshes[m.Hash] = m
		}
	}
	return md, nil
}

type assetHeader struct {
	address      int64
	meshArray    uint64
	meshCount    uint64
	modelGroup   uint64
	skeletonInfo uint64
}

func (ct *Container) readAssetHeader(block int64) (assetHeader, error) {
	top := block + realHeaderOffset
	c := binio.NewCursor(ct.data)
	h := assetHeader{address: block}

	c.SeekTo(top + meshArrayField)
	h.meshArray = c.U64()
	h.meshCount = c.U64()
	c.SeekTo(top + modelGroupField)
	h.modelGroup = c.U64()
	c.SeekTo(top + skeletonInfoField)
	h.skeletonInfo = c.U64()
	if err := c.Err(); err != nil {
		return h, fmt.Errorf("%w: asset block at %d: %v", ErrMalformed, block, err)
	}
	return h, nil
}

func (ct *Container) meshPointers(h assetHeader) ([]uint64, error) {
	if h.meshCount == 0 {
		return nil, nil
	}
	if h.meshCount > uint64(len(ct.data))/8 {
		return nil, fmt.Errorf("%w: asset block at %d claims %d meshes", ErrMalformed, h.address, h.meshCount)
	}
	c := binio.NewCursor(ct.data)
	c.SeekTo(ct.Abs(h.meshArray))
	ptrs := c.U64s(int(h.meshCount))
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: mesh pointer array: %v", ErrMalformed, err)
	}
	return ptrs, nil
}

func (ct *Container) readMeshRecord(ptr uint64) (*MeshMeta, error) {
	rec := ct.Abs(ptr)
	c := binio.NewCursor(ct.data)
	m := &MeshMeta{Pointer: ptr}

	c.SeekTo(rec + recBoundsField)
	m.Offset = c.Vec3()
	m.Scale = c.F32()
	c.Skip(8)
	m.Hash = c.U64()
	c.Skip(8)
	m.AttributesPointer = c.U64()
	c.Skip(8)
	count := c.U64()
	c.Skip(32)
	m.IndexCount = c.U32()
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: mesh record at %d: %v", ErrMalformed, rec, err)
	}
	if count > uint64(len(ct.data))/attrDescriptorSize {
		return nil, fmt.Errorf("%w: mesh %X claims %d attributes", ErrMalformed, m.Hash, count)
	}

	c.SeekTo(ct.Abs(m.AttributesPointer))
	m.Attributes = make([]vertex.Attribute, count)
	for i := range m.Attributes {
		c.Skip(8)
		m.Attributes[i] = vertex.Attribute{
			Format: vertex.Format(c.U32()),
			Stride: c.U32(),
			Count:  c.U32(),
		}
		c.Skip(4)
		if m.VertexCount == 0 {
			m.VertexCount = m.Attributes[i].Count
		}
	}
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: attributes of mesh %X: %v", ErrMalformed, m.Hash, err)
	}
	return m, nil
}

// MeshAddress finds the absolute record address of hash by re-walking the
// asset blocks.
func (ct *Container) MeshAddress(hash uint64) (int64, error) {
	blocks, err := ct.AssetBlocks()
	if err != nil {
		return 0, err
	}
	c := binio.NewCursor(ct.data)
	for _, block := range blocks {
		hdr, err := ct.readAssetHeader(block)
		if err != nil {
			return 0, err
		}
		ptrs, err := ct.meshPointers(hdr)
		if err != nil {
			return 0, err
		}
		for _, ptr := range ptrs {
			c.SeekTo(ct.Abs(ptr) + recHashField)
			if c.U64() == hash {
				return ct.Abs(ptr), nil
			}
		}
		if err := c.Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return 0, fmt.Errorf("%w: %X", ErrHashNotFound, hash)
}
