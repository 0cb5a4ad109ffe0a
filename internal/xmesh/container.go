// Package xmesh reads the geometry container (.xmesh) and patches replacement
// geometry into it in place.
package xmesh

import (
	"errors"
	"fmt"

	"xmesh-tool/internal/binio"
)

var (
	// ErrMalformed marks a geometry container that cannot be walked.
	ErrMalformed = errors.New("xmesh: malformed container")
	// ErrCapacityExceeded is returned when replacement geometry does not fit
	// the slot's original allocation. Nothing is written in that case.
	ErrCapacityExceeded = errors.New("xmesh: capacity exceeded")
	// ErrHashNotFound is returned when a mesh hash is absent from either the
	// metadata or the geometry headers.
	ErrHashNotFound = errors.New("xmesh: mesh hash not found")
)

// Signature is the geometry container magic at offset 0.
const Signature = "SMBS"

const (
	bufferStartField = 24
	meshCountField   = 40
	headersStart     = 44
	headerFixedSize  = 15
)

// Header is one mesh-record header.
type Header struct {
	Hash        uint64   `json:"hash"`
	IndexOffset uint32   `json:"index_offset"`
	LOD         uint16   `json:"lod"`
	AttrOffsets []uint32 `json:"attr_offsets"`
	// At is the header's own file offset.
	At int64 `json:"at"`
}

// Container is a parsed view over a geometry container's bytes.
type Container struct {
	data        []byte
	BufferStart int64
	Headers     []Header
}

// Parse validates the signature and reads every mesh-record header.
func Parse(data []byte) (*Container, error) {
	c := binio.NewCursor(data)
	if sig := c.String(4); sig != Signature {
		return nil, fmt.Errorf("%w: signature %q", ErrMalformed, sig)
	}
	c.SeekTo(bufferStartField)
	start := c.I64()
	c.SeekTo(meshCountField)
	n := c.U32()
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if start < 0 || start > int64(len(data)) {
		return nil, fmt.Errorf("%w: buffer start %d outside %d bytes", ErrMalformed, start, len(data))
	}
	if int64(n) > int64(len(data))/headerFixedSize {
		return nil, fmt.Errorf("%w: %d mesh headers claimed", ErrMalformed, n)
	}

	ct := &Container{data: data, BufferStart: start, Headers: make([]Header, 0, n)}
	for i := uint32(0); i < n; i++ {
		h := Header{At: c.Tell()}
		h.Hash = c.U64()
		h.IndexOffset = c.U32()
		h.LOD = c.U16()
		h.AttrOffsets = c.U32s(int(c.U8()))
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("%w: header %d: %v", ErrMalformed, i, err)
		}
		ct.Headers = append(ct.Headers, h)
	}
	return ct, nil
}

// Bytes returns the underlying buffer.
func (ct *Container) Bytes() []byte { return ct.data }

// Header returns the first header carrying hash.
func (ct *Container) Header(hash uint64) (Header, bool) {
	for _, h := range ct.Headers {
		if h.Hash == hash {
			return h, true
		}
	}
	return Header{}, false
}

// IndexAddress returns the absolute address of h's index buffer.
func (ct *Container) IndexAddress(h Header) int64 {
	return ct.BufferStart + int64(h.IndexOffset)
}

// AttributeAddress returns the absolute address of attribute i of h.
func (ct *Container) AttributeAddress(h Header, i int) (int64, error) {
	if i < 0 || i >= len(h.AttrOffsets) {
		return 0, fmt.Errorf("%w: mesh %X has %d attribute offsets, need %d", ErrMalformed, h.Hash, len(h.AttrOffsets), i+1)
	}
	return ct.BufferStart + int64(h.AttrOffsets[i]), nil
}
