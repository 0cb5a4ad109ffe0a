package xpps

import (
	"fmt"

	"xmesh-tool/internal/binio"
)

// Material lookup outcomes that carry no textures.
const (
	StatusNoMaterial     = "no material found"
	StatusNullMaterial   = "null material pointer"
	StatusNoTextures     = "material found but no textures"
	StatusLinkageMissing = "material linkage missing"
)

const (
	materialPtrArrayField = 40
	materialTexturesField = 48
	textureEntrySize      = 32
)

// NameResolver turns a texture hash into a human name.
type NameResolver interface {
	Name(hash uint64) string
}

// Texture is one texture reference of a material.
type Texture struct {
	Hash uint64 `json:"hash"`
	Name string `json:"name"`
}

// TextureLookup is the result of FindTextures. Status is empty when
// Textures is non-empty.
type TextureLookup struct {
	MeshIndex int       `json:"mesh_index"`
	Textures  []Texture `json:"textures,omitempty"`
	Status    string    `json:"status,omitempty"`
}

// FindTextures follows mesh index -> material -> texture table for hash.
// names may be nil, in which case names are left empty.
func (ct *Container) FindTextures(hash uint64, names NameResolver) (TextureLookup, error) {
	blocks, err := ct.AssetBlocks()
	if err != nil {
		return TextureLookup{}, err
	}
	for _, block := range blocks {
		hdr, err := ct.readAssetHeader(block)
		if err != nil {
			return TextureLookup{}, err
		}
		ptrs, err := ct.meshPointers(hdr)
		if err != nil {
			return TextureLookup{}, err
		}
		idx := -1
		c := binio.NewCursor(ct.data)
		for i, ptr := range ptrs {
			c.SeekTo(ct.Abs(ptr) + recHashField)
			if c.U64() == hash {
				idx = i
				break
			}
		}
		if err := c.Err(); err != nil {
			return TextureLookup{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if idx < 0 {
			continue
		}
		return ct.materialTextures(hdr, idx, names)
	}
	return TextureLookup{MeshIndex: -1, Status: StatusNoMaterial}, nil
}

func (ct *Container) materialTextures(hdr assetHeader, idx int, names NameResolver) (TextureLookup, error) {
	out := TextureLookup{MeshIndex: idx}
	if hdr.modelGroup == 0 {
		out.Status = StatusLinkageMissing
		return out, nil
	}

	c := binio.NewCursor(ct.data)
	c.SeekTo(ct.Abs(hdr.modelGroup) + materialPtrArrayField)
	matArray := c.U64()
	matCount := c.U64()
	if err := c.Err(); err != nil {
		return out, fmt.Errorf("%w: model group: %v", ErrMalformed, err)
	}
	if uint64(idx) >= matCount {
		out.Status = StatusLinkageMissing
		return out, nil
	}

	c.SeekTo(ct.Abs(matArray) + int64(idx)*8)
	mat := c.U64()
	if err := c.Err(); err != nil {
		return out, fmt.Errorf("%w: material pointer: %v", ErrMalformed, err)
	}
	if mat == 0 {
		out.Status = StatusNullMaterial
		return out, nil
	}

	c.SeekTo(ct.Abs(mat) + materialTexturesField)
	texArray := c.U64()
	texCount := c.U64()
	if err := c.Err(); err != nil {
		return out, fmt.Errorf("%w: material: %v", ErrMalformed, err)
	}
	if texArray == 0 || texCount == 0 {
		out.Status = StatusNoTextures
		return out, nil
	}
	if texCount > uint64(len(ct.data))/textureEntrySize {
		return out, fmt.Errorf("%w: material claims %d textures", ErrMalformed, texCount)
	}

	c.SeekTo(ct.Abs(texArray))
	for i := uint64(0); i < texCount; i++ {
		h := c.U64()
		c.Skip(24)
		t := Texture{Hash: h}
		if names != nil {
			t.Name = names.Name(h)
		}
		out.Textures = append(out.Textures, t)
	}
	if err := c.Err(); err != nil {
		return out, fmt.Errorf("%w: texture table: %v", ErrMalformed, err)
	}
	return out, nil
}
