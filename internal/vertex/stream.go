package vertex

import (
	"fmt"

	"xmesh-tool/internal/binio"
)

// Attribute describes one vertex data lane: its format, the distance
// between consecutive elements and the number of elements.
type Attribute struct {
	Format Format `json:"format"`
	Stride uint32 `json:"stride"`
	Count  uint32 `json:"count"`
}

// ElementStride is the distance between elements. A zero stride falls back
// to the codec payload size.
func (a Attribute) ElementStride(c Codec) int64 {
	if a.Stride == 0 {
		return int64(c.Size)
	}
	return int64(a.Stride)
}

// DecodeStream decodes count elements of attr starting at base. It returns
// ok=false for formats without a codec.
func DecodeStream(data []byte, base int64, attr Attribute, b Bounds) (lanes []Lane, ok bool, err error) {
	codec, known := Lookup(attr.Format)
	if !known {
		return nil, false, nil
	}
	stride := attr.ElementStride(codec)
	if stride < int64(codec.Size) {
		return nil, true, fmt.Errorf("vertex: %s stride %d below payload %d", attr.Format, stride, codec.Size)
	}

	if attr.Count > 0 {
		need := int64(attr.Count-1)*stride + int64(codec.Size)
		if base < 0 || need > int64(len(data))-base {
			return nil, true, fmt.Errorf("vertex: %s: %d elements of stride %d at %d exceed buffer: %w", attr.Format, attr.Count, stride, base, binio.ErrOutOfBounds)
		}
	}

	cur := binio.NewCursor(data)
	lanes = make([]Lane, attr.Count)
	for i := range lanes {
		cur.SeekTo(base + int64(i)*stride)
		src := cur.Read(codec.Size)
		if err := cur.Err(); err != nil {
			return nil, true, fmt.Errorf("vertex: %s element %d: %w", attr.Format, i, err)
		}
		lanes[i] = codec.Decode(src, b)
	}
	return lanes, true, nil
}
