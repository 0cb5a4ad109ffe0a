package xpps

import (
	"fmt"
	"os"

	"xmesh-tool/internal/binio"
)

// MeshPatch carries the metadata fields rewritten after a geometry patch.
type MeshPatch struct {
	Offset      [3]float32
	Scale       float32
	IndexCount  uint32
	VertexCount uint32
}

// PatchFromMeta copies the patchable fields of m.
func PatchFromMeta(m *MeshMeta) MeshPatch {
	return MeshPatch{
		Offset:      m.Offset,
		Scale:       m.Scale,
		IndexCount:  m.IndexCount,
		VertexCount: m.VertexCount,
	}
}

// PatchMesh locates hash in data and overwrites its bounds, index count and
// every attribute descriptor's element count. data is modified in place;
// the returned cursor reports the dirty range.
func PatchMesh(data []byte, hash uint64, p MeshPatch) (*binio.Cursor, error) {
	ct, err := Parse(data)
	if err != nil {
		return nil, err
	}
	rec, err := ct.MeshAddress(hash)
	if err != nil {
		return nil, err
	}
	return ct.patchRecord(rec, p)
}

// PatchMeshAt patches the record at ptr, a data-region relative address
// taken from another container's metadata. Containers derived from the
// same original share record addresses, which is what merging relies on.
func PatchMeshAt(data []byte, ptr uint64, p MeshPatch) (*binio.Cursor, error) {
	ct, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return ct.patchRecord(ct.Abs(ptr), p)
}

func (ct *Container) patchRecord(rec int64, p MeshPatch) (*binio.Cursor, error) {
	c := binio.NewCursor(ct.data)

	// read everything before the first write so a bad pointer leaves data intact
	c.SeekTo(rec + recAttrArrayField)
	attrs := c.U64()
	c.SeekTo(rec + recAttrCountField)
	count := c.U64()
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: mesh record at %d: %v", ErrMalformed, rec, err)
	}
	attrBase := ct.Abs(attrs)
	if count > uint64(len(ct.data))/attrDescriptorSize ||
		attrBase+int64(count)*attrDescriptorSize > int64(len(ct.data)) ||
		rec+recIndexCountField+4 > int64(len(ct.data)) {
		return nil, fmt.Errorf("%w: mesh record at %d points outside the file", ErrMalformed, rec)
	}

	c.SeekTo(rec + recBoundsField)
	c.PutVec3(p.Offset)
	c.PutF32(p.Scale)
	c.SeekTo(rec + recIndexCountField)
	c.PutU32(p.IndexCount)
	for i := int64(0); i < int64(count); i++ {
		c.SeekTo(attrBase + i*attrDescriptorSize + attrCountFieldDelta)
		c.PutU32(p.VertexCount)
	}
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c, nil
}

// PatchFile applies PatchMesh to the file at path, writing back only the
// bytes that changed.
func PatchFile(path string, hash uint64, p MeshPatch) error {
	return patchFile(path, func(data []byte) (*binio.Cursor, error) {
		return PatchMesh(data, hash, p)
	})
}

// PatchFileAt applies PatchMeshAt to the file at path.
func PatchFileAt(path string, ptr uint64, p MeshPatch) error {
	return patchFile(path, func(data []byte) (*binio.Cursor, error) {
		return PatchMeshAt(data, ptr, p)
	})
}

func patchFile(path string, apply func([]byte) (*binio.Cursor, error)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("xpps: read %s: %w", path, err)
	}
	c, err := apply(data)
	if err != nil {
		return fmt.Errorf("xpps: patch %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("xpps: open %s: %w", path, err)
	}
	if err := c.FlushDirty(f); err != nil {
		f.Close()
		return fmt.Errorf("xpps: %s: %w", path, err)
	}
	return f.Close()
}
