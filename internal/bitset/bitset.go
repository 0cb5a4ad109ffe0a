// Package bitset tracks which bytes of a buffer region have been written.
package bitset

import "math/bits"

// Bitset is a bitmap over the absolute offsets [base, base+length).
// Offsets outside that window are never set.
type Bitset struct {
	bits   []uint64
	base   int64
	length int64
}

// New returns an empty bitset covering [base, base+length).
func New(base, length int64) *Bitset {
	if length < 0 {
		length = 0
	}
	return &Bitset{
		bits:   make([]uint64, (length+63)/64),
		base:   base,
		length: length,
	}
}

func (b *Bitset) index(off int64) (word int64, bit uint64, ok bool) {
	rel := off - b.base
	if rel < 0 || rel >= b.length {
		return 0, 0, false
	}
	return rel / 64, uint64(rel) % 64, true
}

// Set marks off.
func (b *Bitset) Set(off int64) {
	if w, bit, ok := b.index(off); ok {
		b.bits[w] |= 1 << bit
	}
}

// Clear unmarks off.
func (b *Bitset) Clear(off int64) {
	if w, bit, ok := b.index(off); ok {
		b.bits[w] &^= 1 << bit
	}
}

// IsSet reports whether off is marked.
func (b *Bitset) IsSet(off int64) bool {
	w, bit, ok := b.index(off)
	return ok && b.bits[w]&(1<<bit) != 0
}

// SetRange marks [lo, hi).
func (b *Bitset) SetRange(lo, hi int64) {
	for off := lo; off < hi; off++ {
		b.Set(off)
	}
}

// ClearRange unmarks [lo, hi).
func (b *Bitset) ClearRange(lo, hi int64) {
	for off := lo; off < hi; off++ {
		b.Clear(off)
	}
}

// AnySet reports whether any offset of [lo, hi) is marked.
func (b *Bitset) AnySet(lo, hi int64) bool {
	for off := lo; off < hi; off++ {
		if b.IsSet(off) {
			return true
		}
	}
	return false
}

// Count returns the number of marked offsets.
func (b *Bitset) Count() int {
	n := 0
	for _, w := range b.bits {
		n += bits.OnesCount64(w)
	}
	return n
}
