// Package xpps reads and patches the metadata container (.xpps): the
// package header, its chunk table, the dictionary sub-chunks and the mesh
// asset blocks they point to.
package xpps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"xmesh-tool/internal/binio"
)

var (
	// ErrMalformed marks a container whose structure cannot be walked.
	ErrMalformed = errors.New("xpps: malformed container")
	// ErrHashNotFound is returned when a mesh hash is absent from the metadata.
	ErrHashNotFound = errors.New("xpps: mesh hash not found")
)

// Signature hashes of dictionary entries that point at mesh asset
// containers. Both values are empirical.
const (
	MeshAssetSignatureA uint64 = 8120115085854712779
	MeshAssetSignatureB uint64 = 8121310221017043393
)

const (
	headerOffsetField = 24
	dataStartField    = 40
	entryCountField   = 8
	tableRowsStart    = 48
	tableRowSize      = 40
	kindChunkList     = 2
	dictionaryMagic   = " DIC"
	dictionaryEntry   = 16
	minContainerSize  = 64

	// asset block fields, relative to the real header at block+64
	realHeaderOffset  = 64
	meshArrayField    = 128
	modelGroupField   = 296
	skeletonInfoField = 336
)

// FallbackName is used when no metadata container shares the geometry
// file's stem.
const FallbackName = "hero.xpps"

// IsMeshAssetSignature reports whether h names a mesh asset container.
func IsMeshAssetSignature(h uint64) bool {
	return h == MeshAssetSignatureA || h == MeshAssetSignatureB
}

// Container is a parsed view over a metadata container's bytes.
type Container struct {
	data         []byte
	HeaderOffset int64
	DataStart    int64
}

// Parse validates the fixed header fields of data.
func Parse(data []byte) (*Container, error) {
	if len(data) < minContainerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the package header", ErrMalformed, len(data))
	}
	c := binio.NewCursor(data)
	c.SeekTo(headerOffsetField)
	pkg := int64(c.U32())
	c.SeekTo(dataStartField)
	start := int64(c.U32())
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &Container{data: data, HeaderOffset: pkg, DataStart: start}, nil
}

// Bytes returns the underlying buffer.
func (ct *Container) Bytes() []byte { return ct.data }

// Abs converts a data-region relative pointer to a file offset.
func (ct *Container) Abs(rel uint64) int64 { return ct.DataStart + int64(rel) }

// DictionaryEntry is one resolved dictionary entry.
type DictionaryEntry struct {
	Hash   uint64
	Offset uint64
}

// Dictionaries walks every chunk-list row and returns the entries of all
// " DIC" sub-chunks in file order. Unknown sub-chunk magics are skipped
// using their size field.
func (ct *Container) Dictionaries() ([]DictionaryEntry, error) {
	c := binio.NewCursor(ct.data)
	c.SeekTo(ct.HeaderOffset + entryCountField)
	rows := c.U32()
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: chunk table: %v", ErrMalformed, err)
	}

	var entries []DictionaryEntry
	row := ct.HeaderOffset + tableRowsStart
	for i := uint32(0); i < rows; i++ {
		c.SeekTo(row)
		kind := c.U32()
		size := int64(c.U32())
		off := int64(c.U32())
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("%w: chunk table row %d: %v", ErrMalformed, i, err)
		}
		row += tableRowSize

		if kind != kindChunkList {
			continue
		}
		found, err := ct.scanChunkList(ct.DataStart+off, size)
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
	}
	return entries, nil
}

func (ct *Container) scanChunkList(start, size int64) ([]DictionaryEntry, error) {
	var entries []DictionaryEntry
	c := binio.NewCursor(ct.data)
	c.SeekTo(start)
	end := start + size
	for c.Tell() < end {
		magic := c.String(4)
		csize := int64(c.U32())
		payload := c.Tell()
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("%w: sub-chunk at %d: %v", ErrMalformed, payload-8, err)
		}

		if magic == dictionaryMagic {
			count := c.U32()
			c.Skip(4)
			if err := c.Err(); err != nil {
				return nil, fmt.Errorf("%w: dictionary at %d: %v", ErrMalformed, payload, err)
			}
			if int64(count)*16 > c.Len()-c.Tell() {
				return nil, fmt.Errorf("%w: dictionary at %d: %d entries exceed container", ErrMalformed, payload, count)
			}
			for j := uint32(0); j < count && c.Err() == nil; j++ {
				off := c.U64()
				hash := c.U64()
				entries = append(entries, DictionaryEntry{Hash: hash, Offset: off})
			}
			if err := c.Err(); err != nil {
				return nil, fmt.Errorf("%w: dictionary at %d: %v", ErrMalformed, payload, err)
			}
		}
		c.SeekTo(payload + csize)
	}
	return entries, nil
}

// AssetBlocks returns the addresses of every mesh asset block, in file
// order. Entries whose hash is not a mesh asset signature are ignored.
func (ct *Container) AssetBlocks() ([]int64, error) {
	entries, err := ct.Dictionaries()
	if err != nil {
		return nil, err
	}
	var blocks []int64
	for _, e := range entries {
		if IsMeshAssetSignature(e.Hash) {
			blocks = append(blocks, ct.DataStart+int64(e.Offset)-dictionaryEntry)
		}
	}
	return blocks, nil
}

// ResolvePath returns the metadata container companion of a geometry file:
// <dir>/<stem>.xpps when it exists, <dir>/hero.xpps otherwise.
func ResolvePath(xmeshPath string) string {
	dir := filepath.Dir(xmeshPath)
	stem := strings.TrimSuffix(filepath.Base(xmeshPath), filepath.Ext(xmeshPath))
	candidate := filepath.Join(dir, stem+".xpps")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return filepath.Join(dir, FallbackName)
}
