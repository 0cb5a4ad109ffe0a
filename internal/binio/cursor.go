package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/x448/float16"
)

// ErrOutOfBounds is reported when a read or write crosses the end of the buffer.
var ErrOutOfBounds = errors.New("binio: out of bounds")

// Cursor is a little-endian reader/writer over a fixed-size byte buffer.
//
// Reads and writes never grow the buffer. The first access that crosses the
// buffer end records ErrOutOfBounds; that access and every later one returns
// zero values and writes nothing. Callers check Err at convenient points, the
// same way bufio.Scanner is used.
type Cursor struct {
	data []byte
	off  int64
	err  error

	dirtyLo, dirtyHi int64
}

// NewCursor wraps data. Writes modify data in place.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data, dirtyLo: -1}
}

// Bytes returns the underlying buffer.
func (c *Cursor) Bytes() []byte { return c.data }

// Len returns the buffer length.
func (c *Cursor) Len() int64 { return int64(len(c.data)) }

// Err returns the first out-of-bounds error, if any.
func (c *Cursor) Err() error { return c.err }

// SeekTo moves to an absolute offset clamped to [0, Len].
func (c *Cursor) SeekTo(off int64) {
	switch {
	case off < 0:
		off = 0
	case off > int64(len(c.data)):
		off = int64(len(c.data))
	}
	c.off = off
}

// Tell returns the current offset.
func (c *Cursor) Tell() int64 { return c.off }

// Skip advances n bytes.
func (c *Cursor) Skip(n int64) {
	c.take(n)
}

func (c *Cursor) take(n int64) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > int64(len(c.data)) {
		c.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrOutOfBounds, n, c.off, int64(len(c.data))-c.off)
		return nil
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b
}

// Read returns the next n bytes. The slice aliases the buffer.
func (c *Cursor) Read(n int) []byte {
	return c.take(int64(n))
}

func (c *Cursor) U8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *Cursor) U16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *Cursor) I16() int16 { return int16(c.U16()) }

func (c *Cursor) U32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *Cursor) I32() int32 { return int32(c.U32()) }

func (c *Cursor) U64() uint64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (c *Cursor) I64() int64 { return int64(c.U64()) }

func (c *Cursor) F32() float32 { return math.Float32frombits(c.U32()) }

// F16 reads an IEEE half-precision float.
func (c *Cursor) F16() float32 { return float16.Frombits(c.U16()).Float32() }

func (c *Cursor) Vec3() [3]float32 {
	return [3]float32{c.F32(), c.F32(), c.F32()}
}

func (c *Cursor) Vec4() [4]float32 {
	return [4]float32{c.F32(), c.F32(), c.F32(), c.F32()}
}

func (c *Cursor) U32s(n int) []uint32 {
	b := c.take(int64(n) * 4)
	if b == nil {
		return nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

func (c *Cursor) U64s(n int) []uint64 {
	b := c.take(int64(n) * 8)
	if b == nil {
		return nil
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return out
}

// String reads n bytes and returns them as a string.
func (c *Cursor) String(n int) string {
	return string(c.take(int64(n)))
}

// RelOffset32 reads a signed 32-bit offset and returns it added to the
// position the field started at.
func (c *Cursor) RelOffset32() int64 {
	pos := c.off
	return pos + int64(c.I32())
}

func (c *Cursor) put(n int64) []byte {
	start := c.off
	b := c.take(n)
	if b == nil {
		return nil
	}
	if c.dirtyLo < 0 || start < c.dirtyLo {
		c.dirtyLo = start
	}
	if c.off > c.dirtyHi {
		c.dirtyHi = c.off
	}
	return b
}

// Write copies p at the current offset.
func (c *Cursor) Write(p []byte) {
	if b := c.put(int64(len(p))); b != nil {
		copy(b, p)
	}
}

// Fill writes n zero bytes.
func (c *Cursor) Fill(n int) {
	if b := c.put(int64(n)); b != nil {
		clear(b)
	}
}

func (c *Cursor) PutU8(v uint8) {
	if b := c.put(1); b != nil {
		b[0] = v
	}
}

func (c *Cursor) PutU16(v uint16) {
	if b := c.put(2); b != nil {
		binary.LittleEndian.PutUint16(b, v)
	}
}

func (c *Cursor) PutI16(v int16) { c.PutU16(uint16(v)) }

func (c *Cursor) PutU32(v uint32) {
	if b := c.put(4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
	}
}

func (c *Cursor) PutI32(v int32) { c.PutU32(uint32(v)) }

func (c *Cursor) PutU64(v uint64) {
	if b := c.put(8); b != nil {
		binary.LittleEndian.PutUint64(b, v)
	}
}

func (c *Cursor) PutF32(v float32) { c.PutU32(math.Float32bits(v)) }

func (c *Cursor) PutF16(v float32) { c.PutU16(float16.Fromfloat32(v).Bits()) }

func (c *Cursor) PutVec3(v [3]float32) {
	c.PutF32(v[0])
	c.PutF32(v[1])
	c.PutF32(v[2])
}

// Dirty reports the smallest byte range covering every write so far.
func (c *Cursor) Dirty() (lo, hi int64, ok bool) {
	if c.dirtyLo < 0 {
		return 0, 0, false
	}
	return c.dirtyLo, c.dirtyHi, true
}

// FlushDirty writes the dirty range back to w at the same offset.
func (c *Cursor) FlushDirty(w io.WriterAt) error {
	lo, hi, ok := c.Dirty()
	if !ok {
		return nil
	}
	if _, err := w.WriteAt(c.data[lo:hi], lo); err != nil {
		return fmt.Errorf("binio: write back [%d,%d): %w", lo, hi, err)
	}
	return nil
}
