package vertex

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// Lane is one decoded attribute element. Every format widens to four floats;
// unused components hold 0 (or 1 for w where the format implies it).
type Lane [4]float32

// Bounds is the box used to dequantize compressed positions: each axis is
// offset[axis] + raw/32767 * scale.
type Bounds struct {
	Offset [3]float32
	Scale  float32
}

// PositionPad is written to the fourth 16-bit lane of a compressed position.
const PositionPad uint16 = 0x3C00

// Codec decodes and encodes one attribute format. Size is the number of
// payload bytes a decode consumes; EncodeSize is what Encode produces. A nil
// Encode marks a read-only diagnostic format.
type Codec struct {
	Format     Format
	Size       int
	EncodeSize int
	Decode     func(src []byte, b Bounds) Lane
	Encode     func(dst []byte, v Lane, b Bounds)
}

var codecs = map[Format]Codec{
	FormatSnorm16x3: {
		Format: FormatSnorm16x3, Size: 8, EncodeSize: 8,
		Decode: decodeSnormPosition, Encode: encodeSnormPosition,
	},
	FormatFloat3: {
		Format: FormatFloat3, Size: 12, EncodeSize: 16,
		Decode: decodeFloatPosition, Encode: encodeFloatPosition,
	},
	FormatPacked10: {
		Format: FormatPacked10, Size: 4, EncodeSize: 4,
		Decode: decodePacked, Encode: encodePacked,
	},
	FormatHalf2: {
		Format: FormatHalf2, Size: 4, EncodeSize: 4,
		Decode: decodeHalf2, Encode: encodeHalf2,
	},
	FormatUnorm8x4: {
		Format: FormatUnorm8x4, Size: 4, EncodeSize: 4,
		Decode: decodeUnorm8x4, Encode: encodeUnorm8x4,
	},
	FormatBoneIndex: {
		Format: FormatBoneIndex, Size: 8, EncodeSize: 8,
		Decode: decodeBoneIndex, Encode: encodeBoneIndex,
	},
	FormatExtraU16: {
		Format: FormatExtraU16, Size: 2,
		Decode: func(src []byte, _ Bounds) Lane {
			return replicate(float32(float64(binary.LittleEndian.Uint16(src)) / 65535.0))
		},
	},
	FormatExtraF32x2: {
		Format: FormatExtraF32x2, Size: 8,
		Decode: func(src []byte, _ Bounds) Lane {
			return Lane{f32(src), f32(src[4:]), 0, 1}
		},
	},
	FormatExtraF32: {
		Format: FormatExtraF32, Size: 4,
		Decode: func(src []byte, _ Bounds) Lane {
			return replicate(f32(src))
		},
	},
	FormatExtraI16: {
		Format: FormatExtraI16, Size: 2,
		Decode: func(src []byte, _ Bounds) Lane {
			v := int16(binary.LittleEndian.Uint16(src))
			return replicate(float32((float64(v) + 32768) / 65535.0))
		},
	},
	FormatExtraI32: {
		Format: FormatExtraI32, Size: 4,
		Decode: func(src []byte, _ Bounds) Lane {
			v := int32(binary.LittleEndian.Uint32(src))
			return replicate(float32(math.Abs(float64(v)) / 2147483647.0))
		},
	},
}

// Lookup returns the codec for f. Unknown formats report false and are
// skipped by callers.
func Lookup(f Format) (Codec, bool) {
	c, ok := codecs[f]
	return c, ok
}

func replicate(v float32) Lane { return Lane{v, v, v, 1} }

func f32(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }

func decodeSnormPosition(src []byte, b Bounds) Lane {
	var l Lane
	for axis := 0; axis < 3; axis++ {
		raw := int16(binary.LittleEndian.Uint16(src[axis*2:]))
		l[axis] = float32(float64(raw)/32767.0*float64(b.Scale) + float64(b.Offset[axis]))
	}
	l[3] = 1
	return l
}

func encodeSnormPosition(dst []byte, v Lane, b Bounds) {
	for axis := 0; axis < 3; axis++ {
		q := QuantizeSnorm(v[axis], b.Offset[axis], b.Scale)
		binary.LittleEndian.PutUint16(dst[axis*2:], uint16(q))
	}
	binary.LittleEndian.PutUint16(dst[6:], PositionPad)
}

// QuantizeSnorm maps a coordinate into the bounds and truncates it to a
// signed 16-bit lane, clamping to [-1, 1] first.
func QuantizeSnorm(v, offset, scale float32) int16 {
	norm := (float64(v) - float64(offset)) / float64(scale)
	norm = max(-1.0, min(1.0, norm))
	return int16(norm * 32767.0)
}

func decodeFloatPosition(src []byte, _ Bounds) Lane {
	return Lane{f32(src), f32(src[4:]), f32(src[8:]), 1}
}

func encodeFloatPosition(dst []byte, v Lane, _ Bounds) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(dst[8:], math.Float32bits(v[2]))
	binary.LittleEndian.PutUint32(dst[12:], math.Float32bits(1.0))
}

// Unpack1010102 splits a packed value into three [0,1] lanes of 10 bits
// and a [0,1] lane of 2 bits.
func Unpack1010102(v uint32) [4]float32 {
	return [4]float32{
		float32(float64(v&0x3FF) / 1023.0),
		float32(float64((v>>10)&0x3FF) / 1023.0),
		float32(float64((v>>20)&0x3FF) / 1023.0),
		float32(float64((v>>30)&0x3) / 3.0),
	}
}

// Pack1010102 packs x, y, z in [-1,1] and w in [0,1].
func Pack1010102(x, y, z, w float32) uint32 {
	to10 := func(v float32) uint32 {
		n := (float64(v) + 1.0) * 0.5
		n = max(0.0, min(1.0, n))
		return uint32(n * 1023.0)
	}
	to2 := func(v float32) uint32 {
		n := max(0.0, min(1.0, float64(v)))
		return uint32(n * 3.0)
	}
	return to10(x) | to10(y)<<10 | to10(z)<<20 | to2(w)<<30
}

func decodePacked(src []byte, _ Bounds) Lane {
	u := Unpack1010102(binary.LittleEndian.Uint32(src))
	return Lane{u[0]*2 - 1, u[1]*2 - 1, u[2]*2 - 1, u[3]}
}

func encodePacked(dst []byte, v Lane, _ Bounds) {
	binary.LittleEndian.PutUint32(dst, Pack1010102(v[0], v[1], v[2], v[3]))
}

func decodeHalf2(src []byte, _ Bounds) Lane {
	u := float16.Frombits(binary.LittleEndian.Uint16(src)).Float32()
	v := float16.Frombits(binary.LittleEndian.Uint16(src[2:])).Float32()
	return Lane{u, v, 0, 0}
}

func encodeHalf2(dst []byte, v Lane, _ Bounds) {
	binary.LittleEndian.PutUint16(dst, float16.Fromfloat32(v[0]).Bits())
	binary.LittleEndian.PutUint16(dst[2:], float16.Fromfloat32(v[1]).Bits())
}

func decodeUnorm8x4(src []byte, _ Bounds) Lane {
	return Lane{
		float32(src[0]) / 255.0,
		float32(src[1]) / 255.0,
		float32(src[2]) / 255.0,
		float32(src[3]) / 255.0,
	}
}

func encodeUnorm8x4(dst []byte, v Lane, _ Bounds) {
	for i := 0; i < 4; i++ {
		dst[i] = UnormByte(v[i])
	}
}

// UnormByte truncates v*255 to a byte, clamping out-of-range input.
func UnormByte(v float32) uint8 {
	n := float64(v) * 255
	return uint8(max(0, min(255, n)))
}

func decodeBoneIndex(src []byte, _ Bounds) Lane {
	var l Lane
	for i := 0; i < 4; i++ {
		l[i] = float32(int16(binary.LittleEndian.Uint16(src[i*2:])))
	}
	return l
}

func encodeBoneIndex(dst []byte, v Lane, _ Bounds) {
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(math.Round(float64(v[i])))))
	}
}
